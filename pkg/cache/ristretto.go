package cache

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/ristretto"
)

// RistrettoConfig configures a RistrettoStore. Costs are value sizes in
// bytes, so MaxCost is a memory budget.
type RistrettoConfig struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
}

// DefaultRistrettoConfig sizes the store for roughly 64MB of entries.
func DefaultRistrettoConfig() RistrettoConfig {
	return RistrettoConfig{
		NumCounters: 1e6,
		MaxCost:     64 << 20,
		BufferItems: 64,
	}
}

// RistrettoStore is an admission-controlled in-process Store.
type RistrettoStore struct {
	c *ristretto.Cache
}

func NewRistrettoStore(cfg RistrettoConfig) (*RistrettoStore, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &RistrettoStore{c: c}, nil
}

func (s *RistrettoStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		s.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

// Set waits for the write buffer to drain so the value is visible to the
// next Get. The admission policy may still reject it, which reads as a miss.
func (s *RistrettoStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	s.c.SetWithTTL(key, value, int64(len(value)), ttl)
	s.c.Wait()
	return nil
}

func (s *RistrettoStore) Delete(_ context.Context, key string) error {
	s.c.Del(key)
	return nil
}

func (s *RistrettoStore) Close() error {
	s.c.Close()
	return nil
}
