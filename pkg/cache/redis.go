package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig holds the configuration for the Redis client.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisClient captures the subset of *redis.Client used by the store.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// RedisStore is a Store backed by Redis. It lets several processes share one
// cache, although the fetch core does not coordinate refreshes across them.
type RedisStore struct {
	client RedisClient
	logger zerolog.Logger
}

// NewRedisStore creates and connects a new RedisStore.
// It pings the Redis server to ensure connectivity before returning.
func NewRedisStore(ctx context.Context, cfg *RedisConfig, logger zerolog.Logger) (*RedisStore, error) {
	if cfg == nil {
		return nil, errors.New("redis config cannot be nil")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info().Str("redis_address", cfg.Addr).Msg("Successfully connected to Redis.")
	return NewRedisStoreWithClient(rdb, logger), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client RedisClient, logger zerolog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		logger: logger.With().Str("component", "RedisStore").Logger(),
	}
}

// Get retrieves an item by key. redis.Nil is a normal miss; any other error
// is a genuine problem.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		s.logger.Error().Err(err).Str("key", key).Msg("Unexpected Redis error during fetch.")
		return nil, false, fmt.Errorf("redis get for %s: %w", key, err)
	}
	return value, true, nil
}

// GetWithExpiration is Get that also returns the key's expiry, read with
// PTTL in the same pipeline.
func (s *RedisStore) GetWithExpiration(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	pipe := s.client.Pipeline()
	get := pipe.Get(ctx, key)
	pttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		s.logger.Error().Err(err).Str("key", key).Msg("Unexpected Redis error during fetch.")
		return nil, time.Time{}, false, fmt.Errorf("redis get for %s: %w", key, err)
	}
	value, err := get.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("redis get for %s: %w", key, err)
	}
	var expiresAt time.Time
	if ttl := pttl.Val(); ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	return value, expiresAt, true, nil
}

// Set stores an item with the given TTL.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to set data in Redis cache.")
		return fmt.Errorf("redis set for %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del for %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis client connection.
func (s *RedisStore) Close() error {
	s.logger.Info().Msg("Closing Redis client connection...")
	return s.client.Close()
}
