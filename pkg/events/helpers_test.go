package events_test

import (
	"context"
	"sync"

	"github.com/illmade-knight/go-gdcache/pkg/events"
)

// mockInserter records every batch it receives.
type mockInserter struct {
	mu            sync.Mutex
	batches       [][]*events.Row
	closed        bool
	InsertBatchFn func(ctx context.Context, rows []*events.Row) error
}

func (m *mockInserter) InsertBatch(ctx context.Context, rows []*events.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, rows)
	if m.InsertBatchFn != nil {
		return m.InsertBatchFn(ctx, rows)
	}
	return nil
}

func (m *mockInserter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockInserter) Batches() [][]*events.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]*events.Row(nil), m.batches...)
}

func (m *mockInserter) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
