package fetch

import (
	"context"
	"errors"
	"fmt"

	"github.com/illmade-knight/go-gdcache/pkg/api"
	"github.com/illmade-knight/go-gdcache/pkg/cache"
	"github.com/illmade-knight/go-gdcache/pkg/request"
)

// ErrResultConsumed is returned when a Result is polled after it already
// yielded its value. A new Result must be requested for another attempt.
var ErrResultConsumed = errors.New("fetch: result already consumed")

// Error is the uniform error surfaced by the orchestrator, the dependency
// resolver and the pagination stream. Err is either an *api.Error or a
// *cache.Error.
type Error struct {
	Op      Op
	Request string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Request, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// API returns the remote source error, if that is what failed.
func (e *Error) API() (*api.Error, bool) {
	var apiErr *api.Error
	ok := errors.As(e.Err, &apiErr)
	return apiErr, ok
}

// Cache returns the cache error, if that is what failed.
func (e *Error) Cache() (*cache.Error, bool) {
	var cacheErr *cache.Error
	ok := errors.As(e.Err, &cacheErr)
	return cacheErr, ok
}

func cacheFailure(op Op, req request.Request, err error) error {
	var fetchErr *Error
	if errors.As(err, &fetchErr) {
		return err
	}
	return &Error{Op: op, Request: req.String(), Err: err}
}

// sourceFailure classifies an error returned by the remote source. Errors
// that are not *api.Error are treated as transport failures; cancellation is
// passed through untouched.
func sourceFailure(op Op, req request.Request, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		apiErr = api.Transport(req, err)
	}
	return &Error{Op: op, Request: req.String(), Err: apiErr}
}

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}
