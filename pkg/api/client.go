// Package api describes the remote source the fetch core pulls entities from.
// Concrete transports live outside this module; they implement Client.
package api

import (
	"context"

	"github.com/illmade-knight/go-gdcache/pkg/model"
	"github.com/illmade-knight/go-gdcache/pkg/request"
)

// Response is the typed entity collection produced by the response parser.
// Besides the requested entities it may carry companions such as the songs
// and creators referenced by a page of levels.
type Response = model.Batch

// Scheduler hands fire-and-forget work to an executor.
type Scheduler interface {
	Schedule(task func())
}

// Client is the remote source facade.
type Client interface {
	Scheduler
	// Level downloads a single level. The response holds exactly one
	// model.Level plus any companions.
	Level(ctx context.Context, req request.LevelRequest) (Response, error)
	// Levels runs a levels search and returns one page of results.
	Levels(ctx context.Context, req request.LevelsRequest) (Response, error)
}

// GoScheduler runs each task on its own goroutine. Client implementations can
// embed it when they have no executor of their own.
type GoScheduler struct{}

func (GoScheduler) Schedule(task func()) {
	go task()
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(task func())

func (f SchedulerFunc) Schedule(task func()) {
	f(task)
}
