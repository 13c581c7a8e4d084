package cache

import (
	"context"
	"errors"
	"time"

	"github.com/allegro/bigcache/v3"
)

// BigcacheConfig configures a BigcacheStore.
type BigcacheConfig struct {
	// LifeWindow is the retention of every entry. Bigcache has no per-entry
	// TTL, so the ttl passed to Set is ignored.
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int
}

// BigcacheStore is a GC-friendly in-process Store for large entry counts.
type BigcacheStore struct {
	c *bigcache.BigCache
}

func NewBigcacheStore(cfg BigcacheConfig) (*BigcacheStore, error) {
	if cfg.LifeWindow <= 0 {
		return nil, errors.New("bigcache: LifeWindow must be greater than 0")
	}
	conf := bigcache.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	conf.Verbose = false

	c, err := bigcache.NewBigCache(conf)
	if err != nil {
		return nil, err
	}
	return &BigcacheStore{c: c}, nil
}

func (s *BigcacheStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := s.c.Get(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *BigcacheStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	return s.c.Set(key, value)
}

func (s *BigcacheStore) Delete(_ context.Context, key string) error {
	err := s.c.Delete(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil
	}
	return err
}

func (s *BigcacheStore) Close() error {
	return s.c.Close()
}
