package fetch

import (
	"context"
	"time"
)

// Op names a step of a fetch.
type Op string

const (
	OpLookup  Op = "lookup"
	OpRefresh Op = "refresh"
	OpResolve Op = "resolve"
	OpStore   Op = "store"
)

// Event describes one completed step of a fetch.
type Event struct {
	ID          string
	Op          Op
	Request     string
	Fingerprint string
	// State is the cache state seen by a lookup.
	State string
	// Shared is set on refreshes that attached to an operation already in flight.
	Shared   bool
	Depth    int
	Duration time.Duration
	Err      error
	At       time.Time
}

// Observer receives fetch events. It is called synchronously on the fetch
// path and must not block.
type Observer interface {
	OnFetch(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) OnFetch(ctx context.Context, ev Event) {
	f(ctx, ev)
}

type nopObserver struct{}

func (nopObserver) OnFetch(context.Context, Event) {}
