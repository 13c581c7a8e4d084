package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/illmade-knight/go-gdcache/pkg/fetch"
	"github.com/rs/zerolog"
)

// RecorderConfig holds configuration for the Recorder.
type RecorderConfig struct {
	BatchSize     int
	FlushInterval time.Duration // How often to flush a partial batch.
	InsertTimeout time.Duration // The timeout for a single flush operation.
}

// DefaultRecorderConfig returns a RecorderConfig populated with sensible defaults.
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		BatchSize:     500,
		FlushInterval: 10 * time.Second,
		InsertTimeout: 30 * time.Second,
	}
}

// Validate checks whether the configuration values are valid.
func (c RecorderConfig) Validate() error {
	if c.BatchSize <= 0 {
		return &ConfigError{Field: "BatchSize", Message: "must be greater than 0"}
	}
	if c.FlushInterval <= 0 {
		return &ConfigError{Field: "FlushInterval", Message: "must be greater than 0"}
	}
	if c.InsertTimeout <= 0 {
		return &ConfigError{Field: "InsertTimeout", Message: "must be greater than 0"}
	}
	return nil
}

// Recorder collects fetch events into batches and hands them to an Inserter.
// It implements fetch.Observer; events arriving while the buffer is full are
// dropped rather than slowing down the fetch path.
type Recorder struct {
	cfg      RecorderConfig
	inserter Inserter
	logger   zerolog.Logger

	mu      sync.RWMutex
	stopped bool
	input   chan *Row
	wg      sync.WaitGroup
	dropped atomic.Int64
}

// NewRecorder creates a recorder. Start must be called before events are flushed.
func NewRecorder(cfg *RecorderConfig, inserter Inserter, logger zerolog.Logger) (*Recorder, error) {
	if cfg == nil {
		return nil, errors.New("recorder config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if inserter == nil {
		return nil, errors.New("inserter cannot be nil")
	}
	return &Recorder{
		cfg:      *cfg,
		inserter: inserter,
		logger:   logger.With().Str("component", "EventRecorder").Logger(),
		input:    make(chan *Row, cfg.BatchSize*2),
	}, nil
}

// Start begins the batching worker. ctx controls the worker's lifecycle.
func (r *Recorder) Start(ctx context.Context) {
	r.logger.Info().
		Int("batch_size", r.cfg.BatchSize).
		Dur("flush_interval", r.cfg.FlushInterval).
		Msg("Starting event recorder...")
	r.wg.Add(1)
	go r.worker(ctx)
}

// OnFetch queues ev without blocking.
func (r *Recorder) OnFetch(_ context.Context, ev fetch.Event) {
	row := RowOf(ev)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return
	}
	select {
	case r.input <- &row:
	default:
		if n := r.dropped.Add(1); n == 1 || n%1000 == 0 {
			r.logger.Warn().Int64("dropped", n).Msg("Event buffer full. Dropping fetch events.")
		}
	}
}

// Dropped returns the number of events dropped because the buffer was full.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Stop flushes buffered events and shuts the worker down, respecting the
// context's timeout.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	close(r.input)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Error().Err(ctx.Err()).Msg("Timeout waiting for event recorder to stop.")
		return ctx.Err()
	}

	if err := r.inserter.Close(); err != nil {
		r.logger.Error().Err(err).Msg("Error closing event inserter")
	}
	r.logger.Info().Msg("Event recorder stopped.")
	return nil
}

func (r *Recorder) worker(ctx context.Context) {
	defer r.wg.Done()
	batch := make([]*Row, 0, r.cfg.BatchSize)
	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.flush(context.Background(), batch)
			return

		case row, ok := <-r.input:
			if !ok {
				r.flush(ctx, batch)
				return
			}
			batch = append(batch, row)
			if len(batch) >= r.cfg.BatchSize {
				r.flush(ctx, batch)
				batch = make([]*Row, 0, r.cfg.BatchSize)
				ticker.Reset(r.cfg.FlushInterval)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(ctx, batch)
				batch = make([]*Row, 0, r.cfg.BatchSize)
			}
		}
	}
}

func (r *Recorder) flush(ctx context.Context, batch []*Row) {
	if len(batch) == 0 {
		return
	}

	insertCtx, cancel := context.WithTimeout(ctx, r.cfg.InsertTimeout)
	defer cancel()

	if err := r.inserter.InsertBatch(insertCtx, batch); err != nil {
		r.logger.Error().Err(err).Int("batch_size", len(batch)).Msg("Failed to insert event batch. Events lost.")
		return
	}
	r.logger.Debug().Int("batch_size", len(batch)).Msg("Flushed event batch.")
}
