package api

import (
	"errors"
	"fmt"

	"github.com/illmade-knight/go-gdcache/pkg/request"
)

// ErrorKind classifies a failure of the remote source.
type ErrorKind int

const (
	// KindTransport is a network or IO failure.
	KindTransport ErrorKind = iota
	// KindNoResult means the source has nothing (more) to return.
	KindNoResult
	// KindMalformed means the response could not be decoded into entities.
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindNoResult:
		return "no result"
	case KindMalformed:
		return "malformed response"
	default:
		return "unknown"
	}
}

// Error is returned by Client implementations.
type Error struct {
	Kind    ErrorKind
	Request string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("api %s for %s", e.Kind, e.Request)
	}
	return fmt.Sprintf("api %s for %s: %v", e.Kind, e.Request, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so errors.Is(err, &Error{Kind: KindNoResult}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Request == "" && t.Err == nil
}

// Transport wraps a network failure for req.
func Transport(req request.Request, err error) *Error {
	return &Error{Kind: KindTransport, Request: req.String(), Err: err}
}

// NoResult signals that req has no results.
func NoResult(req request.Request) *Error {
	return &Error{Kind: KindNoResult, Request: req.String()}
}

// Malformed wraps a decoding failure for req.
func Malformed(req request.Request, err error) *Error {
	return &Error{Kind: KindMalformed, Request: req.String(), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind, true
	}
	return 0, false
}

// IsNoResult reports whether err is a NoResult error.
func IsNoResult(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindNoResult
}
