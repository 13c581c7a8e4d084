package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryConfig configures a MemoryStore.
type MemoryConfig struct {
	// CleanupInterval is how often expired items are purged.
	CleanupInterval time.Duration
}

// MemoryStore is an in-process Store backed by patrickmn/go-cache.
type MemoryStore struct {
	items *gocache.Cache
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &MemoryStore{items: gocache.New(gocache.NoExpiration, interval)}
}

// Get retrieves an item from the store. The returned slice is a copy.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, _, ok, err := s.GetWithExpiration(ctx, key)
	return value, ok, err
}

// GetWithExpiration is Get that also returns the item's expiry.
func (s *MemoryStore) GetWithExpiration(_ context.Context, key string) ([]byte, time.Time, bool, error) {
	item, expiresAt, ok := s.items.GetWithExpiration(key)
	if !ok {
		return nil, time.Time{}, false, nil
	}
	b, ok := item.([]byte)
	if !ok {
		s.items.Delete(key)
		return nil, time.Time{}, false, nil
	}
	return append([]byte(nil), b...), expiresAt, true, nil
}

// Set adds an item to the store.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	s.items.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.items.Delete(key)
	return nil
}

// Len returns the number of stored items, including expired ones not yet purged.
func (s *MemoryStore) Len() int {
	return s.items.ItemCount()
}

func (s *MemoryStore) Close() error {
	s.items.Flush()
	return nil
}
