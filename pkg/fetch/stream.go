package fetch

import (
	"context"
	"iter"
	"sync"

	"github.com/illmade-knight/go-gdcache/pkg/api"
	"github.com/illmade-knight/go-gdcache/pkg/request"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

// PageFunc fetches one page for a paginatable request.
type PageFunc[R request.Paginatable[R], T any] func(ctx context.Context, req R) (*Result[T], error)

// Stream yields the pages of a paginatable request in cursor order. The
// fetch of page n+1 starts as soon as page n has been returned. A Stream ends
// with iterator.Done, either because the source reported no further results
// or after a single error. It cannot be restarted.
type Stream[R request.Paginatable[R], T any] struct {
	fetch  PageFunc[R, T]
	logger zerolog.Logger

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	req      R
	current  *Result[T]
	err      error
	finished bool
}

// NewStream starts fetching req immediately.
func NewStream[R request.Paginatable[R], T any](ctx context.Context, req R, fetch PageFunc[R, T], logger zerolog.Logger) *Stream[R, T] {
	sctx, cancel := context.WithCancel(ctx)
	s := &Stream[R, T]{
		fetch:  fetch,
		logger: logger.With().Str("component", "Stream").Logger(),
		ctx:    sctx,
		cancel: cancel,
		req:    req,
	}
	s.load()
	return s
}

// load must be called with the mutex held or before the stream is shared.
func (s *Stream[R, T]) load() {
	r, err := s.fetch(s.ctx, s.req)
	if err != nil {
		s.current, s.err = nil, err
		return
	}
	s.current = r
	r.Done()
}

// Poll returns the next page without blocking. ready is false while the
// current page is still being fetched. After the last page Poll returns
// iterator.Done.
func (s *Stream[R, T]) Poll() (page T, ready bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return page, true, iterator.Done
	}
	if s.current == nil {
		err = s.err
		s.finish()
		return page, true, err
	}

	page, ready, err = s.current.Poll()
	if !ready {
		return page, false, nil
	}
	if err != nil {
		if api.IsNoResult(err) {
			s.logger.Info().Str("request", s.req.String()).Msg("Stream over request terminating due to exhaustion.")
			err = iterator.Done
		} else {
			s.logger.Error().Err(err).Str("request", s.req.String()).Msg("Stream over request failed.")
		}
		s.finish()
		return page, true, err
	}

	next := s.req.Next()
	if next.Fingerprint() == s.req.Fingerprint() {
		s.logger.Info().Str("request", s.req.String()).Msg("Stream over request terminating at the last page.")
		s.current, s.err = nil, iterator.Done
		return page, true, nil
	}
	s.req = next
	s.load()
	return page, true, nil
}

// Next blocks until the next page is available or ctx ends.
func (s *Stream[R, T]) Next(ctx context.Context) (T, error) {
	for {
		s.mu.Lock()
		var done <-chan struct{}
		if s.current != nil && !s.finished {
			done = s.current.Done()
		}
		s.mu.Unlock()

		if done != nil {
			select {
			case <-done:
			case <-ctx.Done():
				var zero T
				return zero, ctx.Err()
			}
		}

		page, ready, err := s.Poll()
		if ready {
			return page, err
		}
	}
}

// Pages adapts the stream for range loops. Iteration stops after the first
// error; breaking out of the loop closes the stream.
func (s *Stream[R, T]) Pages(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			page, err := s.Next(ctx)
			if err == iterator.Done {
				return
			}
			if !yield(page, err) {
				s.Close()
				return
			}
			if err != nil {
				return
			}
		}
	}
}

// Close cancels the page currently being fetched and ends the stream.
func (s *Stream[R, T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finish()
}

// finish must be called with the mutex held.
func (s *Stream[R, T]) finish() {
	if s.finished {
		return
	}
	s.finished = true
	if s.current != nil {
		s.current.Cancel()
		s.current = nil
	}
	s.cancel()
}
