package cache

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a cache failure.
type ErrorKind int

const (
	// KindMiss means there is no entry for the key. It is expected and
	// drives a fetch, it is not a failure.
	KindMiss ErrorKind = iota
	// KindBackend is a storage or decoding failure.
	KindBackend
)

func (k ErrorKind) String() string {
	if k == KindMiss {
		return "miss"
	}
	return "backend"
}

// Error is returned by the facade.
type Error struct {
	Kind ErrorKind
	Key  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cache %s for %q", e.Kind, e.Key)
	}
	return fmt.Sprintf("cache %s for %q: %v", e.Kind, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func miss(key string) *Error {
	return &Error{Kind: KindMiss, Key: key}
}

func backend(key string, err error) *Error {
	return &Error{Kind: KindBackend, Key: key, Err: err}
}

// IsMiss reports whether err is a cache miss.
func IsMiss(err error) bool {
	var cacheErr *Error
	return errors.As(err, &cacheErr) && cacheErr.Kind == KindMiss
}

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}
