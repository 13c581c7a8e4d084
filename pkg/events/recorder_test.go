package events_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/illmade-knight/go-gdcache/pkg/events"
	"github.com/illmade-knight/go-gdcache/pkg/fetch"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder(t *testing.T, batchSize int, flushInterval time.Duration) (*events.Recorder, *mockInserter) {
	t.Helper()
	inserter := &mockInserter{}
	cfg := &events.RecorderConfig{BatchSize: batchSize, FlushInterval: flushInterval, InsertTimeout: 2 * time.Second}
	rec, err := events.NewRecorder(cfg, inserter, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	rec.Start(ctx)
	t.Cleanup(func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer stopCancel()
		assert.NoError(t, rec.Stop(stopCtx))
	})
	return rec, inserter
}

func event(i int) fetch.Event {
	return fetch.Event{
		ID:          fmt.Sprintf("ev-%d", i),
		Op:          fetch.OpLookup,
		Request:     "LevelsRequest(search, page 0)",
		Fingerprint: "levels:00000000000000ff",
		State:       "stale",
		Duration:    1500 * time.Microsecond,
		At:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRecorder_BatchSizeTrigger(t *testing.T) {
	rec, inserter := newTestRecorder(t, 3, 10*time.Second)

	for i := 0; i < 3; i++ {
		rec.OnFetch(context.Background(), event(i))
	}

	require.Eventually(t, func() bool { return len(inserter.Batches()) == 1 }, time.Second, 10*time.Millisecond)
	batch := inserter.Batches()[0]
	require.Len(t, batch, 3)
	assert.Equal(t, "ev-0", batch[0].EventID)
	assert.Equal(t, "lookup", batch[0].Op)
	assert.InDelta(t, 1.5, batch[0].DurationMs, 0.001)
}

func TestRecorder_FlushIntervalTrigger(t *testing.T) {
	flushInterval := 100 * time.Millisecond
	rec, inserter := newTestRecorder(t, 10, flushInterval)

	rec.OnFetch(context.Background(), event(0))
	rec.OnFetch(context.Background(), event(1))

	require.Eventually(t, func() bool { return len(inserter.Batches()) == 1 }, flushInterval*5, 10*time.Millisecond)
	assert.Len(t, inserter.Batches()[0], 2)
}

func TestRecorder_StopFlushesFinalBatch(t *testing.T) {
	inserter := &mockInserter{}
	cfg := &events.RecorderConfig{BatchSize: 10, FlushInterval: 5 * time.Second, InsertTimeout: time.Second}
	rec, err := events.NewRecorder(cfg, inserter, zerolog.Nop())
	require.NoError(t, err)
	rec.Start(context.Background())

	for i := 0; i < 4; i++ {
		rec.OnFetch(context.Background(), event(i))
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(stopCancel)
	require.NoError(t, rec.Stop(stopCtx))

	batches := inserter.Batches()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 4)
	assert.True(t, inserter.Closed())

	// Events after Stop are ignored, and a second Stop is harmless.
	rec.OnFetch(context.Background(), event(5))
	assert.NoError(t, rec.Stop(stopCtx))
}

func TestRecorder_InsertFailureKeepsRunning(t *testing.T) {
	rec, inserter := newTestRecorder(t, 1, time.Second)
	var fail = true
	inserter.InsertBatchFn = func(context.Context, []*events.Row) error {
		if fail {
			fail = false
			return errors.New("quota exceeded")
		}
		return nil
	}

	rec.OnFetch(context.Background(), event(0))
	rec.OnFetch(context.Background(), event(1))

	require.Eventually(t, func() bool { return len(inserter.Batches()) == 2 }, time.Second, 10*time.Millisecond)
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	inserter := &mockInserter{}
	cfg := &events.RecorderConfig{BatchSize: 1, FlushInterval: time.Second, InsertTimeout: time.Second}
	rec, err := events.NewRecorder(cfg, inserter, zerolog.Nop())
	require.NoError(t, err)

	// Without a running worker the buffer of 2 fills up.
	for i := 0; i < 5; i++ {
		rec.OnFetch(context.Background(), event(i))
	}
	assert.EqualValues(t, 3, rec.Dropped())
}

func TestRecorderConfig_Validate(t *testing.T) {
	assert.NoError(t, events.DefaultRecorderConfig().Validate())

	_, err := events.NewRecorder(&events.RecorderConfig{FlushInterval: time.Second, InsertTimeout: time.Second}, &mockInserter{}, zerolog.Nop())
	var cfgErr *events.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "BatchSize", cfgErr.Field)

	cfg := events.DefaultRecorderConfig()
	_, err = events.NewRecorder(&cfg, nil, zerolog.Nop())
	assert.Error(t, err)
}
