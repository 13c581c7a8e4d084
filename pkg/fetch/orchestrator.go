// Package fetch is the fetch core: it serves requests from the cache,
// refreshes stale or missing entries from the remote source, makes sure every
// entity a fresh batch references is cached too, and pages through paginated
// requests.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/illmade-knight/go-gdcache/pkg/api"
	"github.com/illmade-knight/go-gdcache/pkg/cache"
	"github.com/illmade-knight/go-gdcache/pkg/model"
	"github.com/illmade-knight/go-gdcache/pkg/request"
	"github.com/rs/zerolog"
)

// Orchestrator decides per request between a fresh cache hit, a stale hit
// that is refreshed, and a miss that has to be fetched.
type Orchestrator struct {
	client   api.Client
	cache    *cache.Cache
	cfg      Config
	flights  *flightGroup
	observer Observer
	logger   zerolog.Logger
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithObserver reports every fetch step to obs.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// New creates an orchestrator. The cache is shared by every fetch and
// sub-fetch the orchestrator runs.
func New(client api.Client, c *cache.Cache, cfg *Config, logger zerolog.Logger, opts ...Option) (*Orchestrator, error) {
	if client == nil {
		return nil, errors.New("api client cannot be nil")
	}
	if c == nil {
		return nil, errors.New("cache cannot be nil")
	}
	if cfg == nil {
		return nil, errors.New("fetch config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		client:   client,
		cache:    c,
		cfg:      *cfg,
		flights:  newFlightGroup(),
		observer: nopObserver{},
		logger:   logger.With().Str("component", "Orchestrator").Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Levels fetches one page of a levels search. Cache backend failures are
// returned immediately; source failures surface through the Result.
func (o *Orchestrator) Levels(ctx context.Context, req request.LevelsRequest) (*Result[[]model.PartialLevel], error) {
	return lookup(ctx, o, req, o.refreshLevels(req))
}

// Level fetches a single full level.
func (o *Orchestrator) Level(ctx context.Context, req request.LevelRequest) (*Result[model.Level], error) {
	return lookup(ctx, o, req, o.refreshLevel(req))
}

// Paginate streams the pages of req, starting at req.Page.
func (o *Orchestrator) Paginate(ctx context.Context, req request.LevelsRequest) *Stream[request.LevelsRequest, []model.PartialLevel] {
	return NewStream[request.LevelsRequest, []model.PartialLevel](ctx, req, o.Levels, o.logger)
}

// InFlight returns the number of refreshes currently registered.
func (o *Orchestrator) InFlight() int {
	return o.flights.len()
}

func lookup[T any](ctx context.Context, o *Orchestrator, req request.Request, refresh refreshFunc[T]) (*Result[T], error) {
	started := time.Now()
	fp := req.Fingerprint()
	entry, err := cache.Lookup[T](ctx, o.cache, fp)

	ev := Event{Op: OpLookup, Request: req.String(), Fingerprint: fp, State: entry.State.String(), Duration: time.Since(started)}
	if err != nil && !cache.IsMiss(err) {
		ev.Err = err
	}
	o.emit(ctx, ev)

	switch {
	case cache.IsMiss(err):
		o.logger.Debug().Str("request", req.String()).Str("fingerprint", fp).Msg("Cache miss. Fetching from source.")
		return absent[T](ctx, newRefresher(o, req, refresh)), nil
	case err != nil:
		return nil, cacheFailure(OpLookup, req, err)
	case entry.State == cache.Stale:
		o.logger.Debug().Str("request", req.String()).Str("fingerprint", fp).Msg("Cache hit on stale entry. Refreshing.")
		return outdated(ctx, entry.Value, newRefresher(o, req, refresh)), nil
	default:
		o.logger.Debug().Str("request", req.String()).Str("fingerprint", fp).Msg("Cache hit.")
		return upToDate(entry.Value), nil
	}
}

// newRefresher routes a refresh through the single-flight registry. The
// refresh runs with the request appended to the resolution chain of the
// context that started it, and every waiter records a refresh event.
func newRefresher[T any](o *Orchestrator, req request.Request, refresh refreshFunc[T]) *refresher {
	fp := req.Fingerprint()
	return &refresher{
		flights: o.flights,
		sched:   o.client,
		key:     fp,
		fn: func(ctx context.Context) (any, error) {
			return refresh(withChain(ctx, fp))
		},
		report: func(ctx context.Context, attached bool, d time.Duration, err error) {
			o.emit(ctx, Event{
				Op:          OpRefresh,
				Request:     req.String(),
				Fingerprint: fp,
				Shared:      attached,
				Depth:       len(chainFrom(ctx)),
				Duration:    d,
				Err:         err,
			})
		},
	}
}

func (o *Orchestrator) refreshLevels(req request.LevelsRequest) refreshFunc[[]model.PartialLevel] {
	return func(ctx context.Context) ([]model.PartialLevel, error) {
		batch, err := o.client.Levels(ctx, req)
		if err != nil {
			return nil, sourceFailure(OpRefresh, req, err)
		}
		levels, companions := model.Partition[model.PartialLevel](batch)
		if len(levels) == 0 {
			return nil, sourceFailure(OpRefresh, req, api.NoResult(req))
		}
		if err := o.integrity(ctx, req, batch); err != nil {
			return nil, err
		}
		if err := o.store(ctx, req, companions, func(ctx context.Context) error {
			return cache.Put(ctx, o.cache, req.Fingerprint(), levels)
		}); err != nil {
			return nil, err
		}
		return levels, nil
	}
}

func (o *Orchestrator) refreshLevel(req request.LevelRequest) refreshFunc[model.Level] {
	return func(ctx context.Context) (model.Level, error) {
		batch, err := o.client.Level(ctx, req)
		if err != nil {
			return model.Level{}, sourceFailure(OpRefresh, req, err)
		}
		levels, companions := model.Partition[model.Level](batch)
		if len(levels) != 1 {
			return model.Level{}, sourceFailure(OpRefresh, req, api.Malformed(req, fmt.Errorf("expected exactly one level, got %d", len(levels))))
		}
		if err := o.integrity(ctx, req, batch); err != nil {
			return model.Level{}, err
		}
		if err := o.store(ctx, req, companions, func(ctx context.Context) error {
			return cache.Put(ctx, o.cache, req.Fingerprint(), levels[0])
		}); err != nil {
			return model.Level{}, err
		}
		return levels[0], nil
	}
}

// store writes the companion entities under their own keys first, then the
// primary value under the request fingerprint. Each write stands on its own;
// a failure leaves earlier writes in place.
func (o *Orchestrator) store(ctx context.Context, req request.Request, companions model.Batch, primary func(context.Context) error) error {
	started := time.Now()
	err := func() error {
		for _, obj := range companions {
			if err := o.cache.PutObject(ctx, obj); err != nil {
				return err
			}
		}
		return primary(ctx)
	}()
	o.emit(ctx, Event{Op: OpStore, Request: req.String(), Fingerprint: req.Fingerprint(), Duration: time.Since(started), Err: err})
	if err != nil {
		return cacheFailure(OpStore, req, err)
	}
	return nil
}

func (o *Orchestrator) emit(ctx context.Context, ev Event) {
	ev.ID = uuid.NewString()
	ev.At = time.Now()
	o.observer.OnFetch(ctx, ev)
}
