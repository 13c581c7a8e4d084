package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/illmade-knight/go-gdcache/pkg/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Eviction policy works correctly", func(t *testing.T) {
		// Arrange: a store with a max size of 2.
		lru, err := cache.NewLRUStore(2, nil)
		require.NoError(t, err)
		require.NoError(t, lru.Set(ctx, "key1", []byte("1"), 0))
		require.NoError(t, lru.Set(ctx, "key2", []byte("2"), 0))

		// Act 1: Access key1 so it becomes the most recently used.
		_, ok, err := lru.Get(ctx, "key1")
		require.NoError(t, err)
		require.True(t, ok)

		// Act 2: A third key must evict key2, the least recently used.
		require.NoError(t, lru.Set(ctx, "key3", []byte("3"), 0))

		// Assert
		assert.Equal(t, 2, lru.Len())
		_, ok, _ = lru.Get(ctx, "key2")
		assert.False(t, ok, "key2 should have been evicted")
		_, ok, _ = lru.Get(ctx, "key1")
		assert.True(t, ok, "key1 should still be cached")
		_, ok, _ = lru.Get(ctx, "key3")
		assert.True(t, ok)
	})

	t.Run("Expired items are misses", func(t *testing.T) {
		lru, err := cache.NewLRUStore(4, nil)
		require.NoError(t, err)
		require.NoError(t, lru.Set(ctx, "short", []byte("x"), 10*time.Millisecond))

		require.Eventually(t, func() bool {
			_, ok, _ := lru.Get(ctx, "short")
			return !ok
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, 0, lru.Len())
	})

	t.Run("Miss reads through to the fallback and keeps the value", func(t *testing.T) {
		// Arrange
		far := &countingStore{Store: cache.NewMemoryStore(cache.MemoryConfig{})}
		require.NoError(t, far.Store.Set(ctx, "remote", []byte("far"), 0))
		lru, err := cache.NewLRUStore(4, far)
		require.NoError(t, err)

		// Act
		first, ok, err := lru.Get(ctx, "remote")
		require.NoError(t, err)
		require.True(t, ok)
		second, ok, err := lru.Get(ctx, "remote")
		require.NoError(t, err)
		require.True(t, ok)

		// Assert
		assert.Equal(t, []byte("far"), first)
		assert.Equal(t, first, second)
		assert.Equal(t, int32(1), far.gets.Load(), "the second read should be served locally")
	})

	t.Run("Writes go through to the fallback", func(t *testing.T) {
		far := &countingStore{Store: cache.NewMemoryStore(cache.MemoryConfig{})}
		lru, err := cache.NewLRUStore(1, far)
		require.NoError(t, err)

		require.NoError(t, lru.Set(ctx, "a", []byte("a"), 0))
		require.NoError(t, lru.Set(ctx, "b", []byte("b"), 0))

		// a was evicted locally but survives in the far tier.
		got, ok, err := lru.Get(ctx, "a")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("a"), got)
		assert.Equal(t, int32(2), far.sets.Load())
	})

	t.Run("Read-through copy expires with the fallback", func(t *testing.T) {
		far := cache.NewMemoryStore(cache.MemoryConfig{})
		lru, err := cache.NewLRUStore(1, far)
		require.NoError(t, err)

		require.NoError(t, lru.Set(ctx, "a", []byte("a"), 50*time.Millisecond))
		require.NoError(t, lru.Set(ctx, "b", []byte("b"), 0))
		_, ok, err := lru.Get(ctx, "a")
		require.NoError(t, err)
		require.True(t, ok, "a should be read back from the fallback")

		time.Sleep(100 * time.Millisecond)

		_, farOK, err := far.Get(ctx, "a")
		require.NoError(t, err)
		_, nearOK, err := lru.Get(ctx, "a")
		require.NoError(t, err)
		assert.False(t, farOK)
		assert.False(t, nearOK, "the local copy must not outlive the fallback")
	})

	t.Run("Read-through copy is bounded when the fallback has no expiry", func(t *testing.T) {
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		far := &countingStore{Store: cache.NewMemoryStore(cache.MemoryConfig{})}
		require.NoError(t, far.Store.Set(ctx, "remote", []byte("far"), 0))
		lru, err := cache.NewLRUStore(4, far,
			cache.WithBackfillTTL(time.Minute),
			cache.WithLRUClock(func() time.Time { return now }))
		require.NoError(t, err)

		_, ok, err := lru.Get(ctx, "remote")
		require.NoError(t, err)
		require.True(t, ok)
		_, _, _ = lru.Get(ctx, "remote")
		require.Equal(t, int32(1), far.gets.Load())

		now = now.Add(2 * time.Minute)
		_, ok, err = lru.Get(ctx, "remote")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int32(2), far.gets.Load(), "the expired local copy should be read again")
	})

	t.Run("Invalid size", func(t *testing.T) {
		_, err := cache.NewLRUStore(0, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "maxSize must be greater than 0")
	})
}
