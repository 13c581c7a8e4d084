package events

import (
	"context"

	"github.com/illmade-knight/go-gdcache/pkg/fetch"
)

type fanout []fetch.Observer

// Fanout returns an observer that hands every event to each of obs in turn.
// Nil observers are ignored.
func Fanout(obs ...fetch.Observer) fetch.Observer {
	f := make(fanout, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			f = append(f, o)
		}
	}
	return f
}

func (f fanout) OnFetch(ctx context.Context, ev fetch.Event) {
	for _, o := range f {
		o.OnFetch(ctx, ev)
	}
}
