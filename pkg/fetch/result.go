package fetch

import (
	"context"
	"sync"
	"time"
)

type resultState int

const (
	// statePending: a refresh exists but has not been started.
	statePending resultState = iota
	stateRunning
	// stateReady: the outcome is known and has not been handed out yet.
	stateReady
	stateConsumed
)

// refreshFunc is the refresh operation of a Result.
type refreshFunc[T any] func(ctx context.Context) (T, error)

// Result is the outcome of one fetch attempt. It holds the value found in
// the cache, if any, and the refresh operation, if one is needed. A Result
// yields its outcome exactly once.
//
// The refresh starts lazily on the first call to Poll, Done or Wait, or on
// Detach. A Result that is abandoned before it resolves should be cancelled.
type Result[T any] struct {
	cached    T
	hasCached bool

	refresh *refresher

	mu        sync.Mutex
	state     resultState
	completed bool
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	value     T
	err       error
}

// upToDate is a Result for a fresh cache hit. It needs no refresh.
func upToDate[T any](value T) *Result[T] {
	done := make(chan struct{})
	close(done)
	return &Result[T]{
		cached:    value,
		hasCached: true,
		state:     stateReady,
		completed: true,
		done:      done,
		value:     value,
	}
}

// outdated is a Result for a stale cache hit.
func outdated[T any](ctx context.Context, value T, refresh *refresher) *Result[T] {
	r := absent[T](ctx, refresh)
	r.cached, r.hasCached = value, true
	return r
}

// absent is a Result for a cache miss.
func absent[T any](ctx context.Context, refresh *refresher) *Result[T] {
	rctx, cancel := context.WithCancel(ctx)
	return &Result[T]{
		refresh: refresh,
		state:   statePending,
		ctx:     rctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Cached returns the value that was in the cache when the Result was
// created. It never blocks and does not depend on the refresh.
func (r *Result[T]) Cached() (T, bool) {
	return r.cached, r.hasCached
}

// Refreshing reports whether the Result carries a refresh operation.
func (r *Result[T]) Refreshing() bool {
	return r.refresh != nil
}

// Poll checks for the outcome without blocking. ready is false while the
// refresh is still running. Once the outcome has been returned, further
// polls return ErrResultConsumed.
func (r *Result[T]) Poll() (value T, ready bool, err error) {
	r.start()

	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case stateReady:
		r.state = stateConsumed
		return r.value, true, r.err
	case stateConsumed:
		return value, true, ErrResultConsumed
	default:
		return value, false, nil
	}
}

// Done returns a channel that is closed once Poll would be ready.
func (r *Result[T]) Done() <-chan struct{} {
	r.start()
	return r.done
}

// Wait blocks until the outcome is known, then returns it. If ctx ends first
// the Result is left untouched and may be waited on again.
func (r *Result[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-r.Done():
		value, _, err := r.Poll()
		return value, err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Cancel abandons the Result. A running refresh is cancelled together with
// its sub-fetches, unless another caller shares it; cache writes that
// already happened stay. The Result then resolves with context.Canceled.
func (r *Result[T]) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil || r.completed {
		return
	}
	r.cancel()
	if r.state == statePending {
		r.state = stateReady
		r.err = context.Canceled
		r.completed = true
		close(r.done)
	}
}

// Detach lets the refresh run to completion in the background, independent
// of the context the Result was created with. The Result is consumed;
// callers keep using the value from Cached.
func (r *Result[T]) Detach() error {
	r.mu.Lock()
	if r.state == stateConsumed {
		r.mu.Unlock()
		return ErrResultConsumed
	}
	run := r.state == statePending && r.refresh != nil
	if run {
		r.cancel()
		r.ctx, r.cancel = context.WithCancel(context.WithoutCancel(r.ctx))
	}
	r.state = stateConsumed
	ctx := r.ctx
	r.mu.Unlock()

	if run {
		r.begin(ctx)
	}
	return nil
}

func (r *Result[T]) start() {
	r.mu.Lock()
	run := r.state == statePending && r.refresh != nil
	if run {
		r.state = stateRunning
	}
	ctx := r.ctx
	r.mu.Unlock()

	if run {
		r.begin(ctx)
	}
}

// begin joins the refresh's flight without blocking. A new flight is handed
// to the scheduler; an existing one completes the Result when it finishes.
// If ctx ends first the Result leaves the flight and resolves with ctx's
// error.
func (r *Result[T]) begin(ctx context.Context) {
	f := r.refresh
	started := time.Now()
	c, leader := f.flights.join(ctx, f.key, f.fn)

	stop := context.AfterFunc(ctx, func() {
		f.flights.leave(f.key, c)
		f.report(ctx, !leader, time.Since(started), ctx.Err())
		var zero T
		r.complete(zero, ctx.Err())
	})
	f.flights.notify(c, func() {
		if !stop() {
			return
		}
		f.report(ctx, !leader, time.Since(started), c.err)
		value, _ := c.val.(T)
		r.complete(value, c.err)
	})

	if leader {
		f.sched.Schedule(func() { f.flights.run(f.key, c) })
	}
}

func (r *Result[T]) complete(value T, err error) {
	r.mu.Lock()
	if r.completed {
		r.mu.Unlock()
		return
	}
	r.completed = true
	r.value, r.err = value, err
	if r.state == stateRunning {
		r.state = stateReady
	}
	close(r.done)
	cancel := r.cancel
	r.mu.Unlock()
	cancel()
}
