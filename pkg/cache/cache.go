// Package cache is the cache facade of the fetch core. It stores values
// together with the time they were cached, evaluates a freshness policy on
// lookup, and delegates the bytes to a pluggable Store backend.
package cache

import (
	"context"
	"time"
)

// Store is a byte-oriented key/value backend. Implementations synchronise
// internally; every call is a single short critical section.
type Store interface {
	// Get returns the value stored under key. A missing key is reported as
	// ok == false with a nil error.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set overwrites the value under key. A ttl of zero retains the value
	// until the backend evicts it.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// ExpiringStore is a Store that can report when a value expires. A zero
// expiresAt means the value does not expire.
type ExpiringStore interface {
	Store
	GetWithExpiration(ctx context.Context, key string) (value []byte, expiresAt time.Time, ok bool, err error)
}
