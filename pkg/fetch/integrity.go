package fetch

import (
	"context"
	"slices"
	"time"

	"github.com/illmade-knight/go-gdcache/pkg/api"
	"github.com/illmade-knight/go-gdcache/pkg/model"
	"github.com/illmade-knight/go-gdcache/pkg/request"
	"golang.org/x/sync/errgroup"
)

// chain is the list of request fingerprints that led to the current fetch,
// outermost first.
type chain []string

type chainKey struct{}

func chainFrom(ctx context.Context) chain {
	c, _ := ctx.Value(chainKey{}).(chain)
	return c
}

func withChain(ctx context.Context, fp string) context.Context {
	parent := chainFrom(ctx)
	next := make(chain, len(parent), len(parent)+1)
	copy(next, parent)
	return context.WithValue(ctx, chainKey{}, append(next, fp))
}

// depth is the resolve depth of the innermost fetch; a top level fetch is 0.
func (c chain) depth() int {
	if len(c) == 0 {
		return 0
	}
	return len(c) - 1
}

func (c chain) contains(fp string) bool {
	return slices.Contains(c, fp)
}

// integrity makes sure every entity referenced from batch is cached once the
// batch is stored. References satisfied by the batch itself or already
// present in the cache are skipped; the rest are fetched concurrently.
func (o *Orchestrator) integrity(ctx context.Context, req request.Request, batch model.Batch) error {
	ch := chainFrom(ctx)
	if ch.depth() >= o.cfg.MaxResolveDepth {
		if refs := batch.References(); len(refs) > 0 {
			o.logger.Debug().Str("request", req.String()).Int("depth", ch.depth()).Int("references", len(refs)).
				Msg("Resolve depth reached. Leaving references unresolved.")
		}
		return nil
	}

	started := time.Now()
	seen := make(map[model.Key]struct{})
	var subs []request.LevelsRequest
	for _, ref := range batch.References() {
		if _, dup := seen[ref.Target]; dup || batch.Contains(ref.Target) {
			continue
		}
		seen[ref.Target] = struct{}{}

		ok, err := o.cache.Exists(ctx, ref.Target.String())
		if err != nil {
			return cacheFailure(OpResolve, req, err)
		}
		if ok {
			continue
		}

		sub, ok := subRequest(ref)
		if !ok {
			o.logger.Warn().Str("target", ref.Target.String()).Msg("No request can resolve reference. Skipping.")
			continue
		}
		if ch.contains(sub.Fingerprint()) {
			o.logger.Debug().Str("request", sub.String()).Msg("Request already on the resolve chain. Skipping.")
			continue
		}
		subs = append(subs, sub)
	}
	if len(subs) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if o.cfg.MaxConcurrentResolves > 0 {
		g.SetLimit(o.cfg.MaxConcurrentResolves)
	}
	for _, sub := range subs {
		g.Go(func() error {
			return o.resolve(gctx, sub)
		})
	}
	err := g.Wait()

	o.emit(ctx, Event{
		Op:          OpResolve,
		Request:     req.String(),
		Fingerprint: req.Fingerprint(),
		Depth:       ch.depth(),
		Duration:    time.Since(started),
		Err:         err,
	})
	return err
}

// resolve runs one sub-fetch to completion on the calling goroutine. The
// sub-fetch always goes to the source; its result is stored by its own
// refresh.
func (o *Orchestrator) resolve(ctx context.Context, sub request.LevelsRequest) error {
	_, err := newRefresher(o, sub, o.refreshLevels(sub)).do(ctx)
	switch {
	case err == nil:
		return nil
	case api.IsNoResult(err):
		o.logger.Warn().Str("request", sub.String()).Msg("Referenced entity not found at source. Leaving reference unresolved.")
		return nil
	default:
		return err
	}
}

// subRequest builds the request whose response carries the reference target.
// Songs are only returned alongside a level that uses them.
func subRequest(ref model.Reference) (request.LevelsRequest, bool) {
	if ref.Target.Kind != model.KindSong {
		return request.LevelsRequest{}, false
	}
	switch ref.From.Kind {
	case model.KindLevel, model.KindPartialLevel:
		return request.LevelsRequest{}.
			WithID(ref.From.ID).
			WithFilters(request.SearchFilters{Song: request.CustomSong(ref.Target.ID)}), true
	default:
		return request.LevelsRequest{}, false
	}
}
