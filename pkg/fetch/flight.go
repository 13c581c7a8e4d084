package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/illmade-knight/go-gdcache/pkg/api"
)

// call is one in-flight refresh shared by every caller of the same fingerprint.
type call struct {
	done chan struct{}
	val  any
	err  error

	ctx    context.Context
	cancel context.CancelFunc
	fn     func(context.Context) (any, error)

	// guarded by flightGroup.mu
	waiters int
	started bool
	removed bool
	onDone  []func()
}

// flightGroup collapses concurrent refreshes of the same fingerprint into one
// operation. Unlike singleflight.Group an operation is cancelled once every
// caller waiting on it has gone away, and its registry entry is removed
// exactly once, under the same lock that publishes its completion.
//
// An operation runs at most once, on whichever goroutine claims it first:
// the task its creator scheduled, or a blocking caller that finds it not yet
// started. Nothing here occupies a scheduler task while it waits.
type flightGroup struct {
	mu    sync.Mutex
	calls map[string]*call
}

func newFlightGroup() *flightGroup {
	return &flightGroup{calls: make(map[string]*call)}
}

// join registers a waiter on the operation for key, creating it from fn if
// there is none; leader reports the latter. The operation keeps ctx's values
// but is only cancelled when the last waiter leaves. A new operation does
// not run until someone calls run.
func (g *flightGroup) join(ctx context.Context, key string, fn func(context.Context) (any, error)) (c *call, leader bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.calls[key]
	if !ok {
		c = &call{done: make(chan struct{}), fn: fn}
		c.ctx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))
		g.calls[key] = c
	}
	c.waiters++
	return c, !ok
}

// run executes the operation unless it has already been claimed. An
// operation every waiter left before it started completes with
// context.Canceled without running.
func (g *flightGroup) run(key string, c *call) {
	g.mu.Lock()
	if c.started {
		g.mu.Unlock()
		return
	}
	c.started = true
	abandoned := c.removed
	g.mu.Unlock()

	var v any
	err := context.Canceled
	if !abandoned {
		v, err = c.fn(c.ctx)
	}

	g.mu.Lock()
	c.val, c.err = v, err
	g.remove(key, c)
	close(c.done)
	callbacks := c.onDone
	c.onDone = nil
	g.mu.Unlock()

	c.cancel()
	for _, f := range callbacks {
		f()
	}
}

// notify calls f once c has completed, immediately if it already has.
func (g *flightGroup) notify(c *call, f func()) {
	g.mu.Lock()
	select {
	case <-c.done:
		g.mu.Unlock()
		f()
		return
	default:
	}
	c.onDone = append(c.onDone, f)
	g.mu.Unlock()
}

// do joins the operation for key and blocks until it completes or ctx ends.
// An operation nobody has started yet is run on the calling goroutine.
func (g *flightGroup) do(ctx context.Context, key string, fn func(context.Context) (any, error)) (v any, shared bool, err error) {
	c, leader := g.join(ctx, key, fn)
	left := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		g.leave(key, c)
		close(left)
	})

	g.run(key, c)

	select {
	case <-c.done:
		if stop() {
			return c.val, !leader, c.err
		}
		return nil, !leader, ctx.Err()
	case <-left:
		return nil, !leader, ctx.Err()
	}
}

func (g *flightGroup) leave(key string, c *call) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c.waiters--
	if c.waiters == 0 {
		g.remove(key, c)
		c.cancel()
	}
}

// remove must be called with the mutex held.
func (g *flightGroup) remove(key string, c *call) {
	if c.removed {
		return
	}
	c.removed = true
	if g.calls[key] == c {
		delete(g.calls, key)
	}
}

func (g *flightGroup) len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// refresher is the single-flight refresh behind a Result or a sub-fetch.
type refresher struct {
	flights *flightGroup
	sched   api.Scheduler
	key     string
	fn      func(context.Context) (any, error)
	// report is called once per waiter with the outcome it saw.
	report func(ctx context.Context, shared bool, d time.Duration, err error)
}

// do runs or joins the refresh and waits for it on the calling goroutine.
func (f *refresher) do(ctx context.Context) (any, error) {
	started := time.Now()
	v, shared, err := f.flights.do(ctx, f.key, f.fn)
	f.report(ctx, shared, time.Since(started), err)
	return v, err
}
