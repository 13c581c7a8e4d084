package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/illmade-knight/go-gdcache/pkg/codec"
	"github.com/illmade-knight/go-gdcache/pkg/model"
	"github.com/rs/zerolog"
)

// State is the freshness of an entry, evaluated at lookup time.
type State int

const (
	Missing State = iota
	Fresh
	Stale
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "missing"
	}
}

// Meta is the freshness metadata stored alongside a value.
type Meta struct {
	Key      string
	CachedAt time.Time
}

// Entry is the result of a lookup. Fresh and Stale entries always carry a
// value; Missing entries never do.
type Entry[T any] struct {
	State State
	Value T
	Meta  Meta
}

// Policy decides whether a stored entry has expired.
type Policy interface {
	Expired(meta Meta, now time.Time) bool
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func(meta Meta, now time.Time) bool

func (f PolicyFunc) Expired(meta Meta, now time.Time) bool {
	return f(meta, now)
}

// MaxAge expires entries older than d.
func MaxAge(d time.Duration) Policy {
	return PolicyFunc(func(meta Meta, now time.Time) bool {
		return now.Sub(meta.CachedAt) >= d
	})
}

// Config configures the facade.
type Config struct {
	// Namespace prefixes every key written to the backend.
	Namespace string
	// FreshFor is how long a stored entry counts as fresh.
	FreshFor time.Duration
	// RetainFor is passed to the backend as the entry TTL. Stale entries are
	// still served until the backend drops them. Zero retains forever.
	RetainFor time.Duration
	// Codec names the envelope codec: msgpack, json or cbor.
	Codec string
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Namespace: "gdcache",
		FreshFor:  time.Hour,
		RetainFor: 7 * 24 * time.Hour,
		Codec:     "msgpack",
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	if c.FreshFor <= 0 {
		return &ConfigError{Field: "FreshFor", Message: "must be greater than 0"}
	}
	if c.RetainFor < 0 {
		return &ConfigError{Field: "RetainFor", Message: "must be non-negative"}
	}
	if c.RetainFor > 0 && c.RetainFor < c.FreshFor {
		return &ConfigError{Field: "RetainFor", Message: "must not be shorter than FreshFor"}
	}
	if _, err := codec.ByName(c.Codec); err != nil {
		return &ConfigError{Field: "Codec", Message: err.Error()}
	}
	return nil
}

// record is the envelope written to the backend.
type record[T any] struct {
	CachedAt int64 `json:"cached_at" msgpack:"cached_at" cbor:"cached_at"`
	Value    T     `json:"value" msgpack:"value" cbor:"value"`
}

// Cache is the facade shared by the orchestrator and every sub-fetch.
type Cache struct {
	store  Store
	codec  codec.Codec
	policy Policy
	cfg    Config
	now    func() time.Time
	logger zerolog.Logger
}

// Option customises a Cache.
type Option func(*Cache)

// WithClock replaces the clock used to stamp and evaluate entries.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithPolicy replaces the MaxAge(FreshFor) default policy.
func WithPolicy(p Policy) Option {
	return func(c *Cache) { c.policy = p }
}

// New creates a facade over store.
func New(store Store, cfg *Config, logger zerolog.Logger, opts ...Option) (*Cache, error) {
	if store == nil {
		return nil, fmt.Errorf("cache store cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("cache config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cd, err := codec.ByName(cfg.Codec)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		store:  store,
		codec:  cd,
		policy: MaxAge(cfg.FreshFor),
		cfg:    *cfg,
		now:    time.Now,
		logger: logger.With().Str("component", "Cache").Str("codec", cd.Name()).Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Cache) storeKey(key string) string {
	if c.cfg.Namespace == "" {
		return key
	}
	return c.cfg.Namespace + ":" + key
}

// Lookup reads the entry under key. A missing key yields an Entry in the
// Missing state together with a KindMiss error; a present key yields Fresh or
// Stale as decided by the policy. Anything else is a KindBackend error.
func Lookup[T any](ctx context.Context, c *Cache, key string) (Entry[T], error) {
	missing := Entry[T]{State: Missing, Meta: Meta{Key: key}}

	b, ok, err := c.store.Get(ctx, c.storeKey(key))
	if err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("Cache backend lookup failed.")
		return missing, backend(key, err)
	}
	if !ok {
		c.logger.Debug().Str("key", key).Msg("Cache miss.")
		return missing, miss(key)
	}

	var rec record[T]
	if err := c.codec.Unmarshal(b, &rec); err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("Failed to decode cached entry.")
		return missing, backend(key, fmt.Errorf("decode entry: %w", err))
	}

	meta := Meta{Key: key, CachedAt: time.Unix(0, rec.CachedAt)}
	state := Fresh
	if c.policy.Expired(meta, c.now()) {
		state = Stale
	}
	c.logger.Debug().Str("key", key).Stringer("state", state).Msg("Cache hit.")
	return Entry[T]{State: state, Value: rec.Value, Meta: meta}, nil
}

// Put overwrites the entry under key and stamps it with the current time.
func Put[T any](ctx context.Context, c *Cache, key string, value T) error {
	b, err := c.codec.Marshal(record[T]{CachedAt: c.now().UnixNano(), Value: value})
	if err != nil {
		return backend(key, fmt.Errorf("encode entry: %w", err))
	}
	if err := c.store.Set(ctx, c.storeKey(key), b, c.cfg.RetainFor); err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("Cache backend store failed.")
		return backend(key, err)
	}
	c.logger.Debug().Str("key", key).Msg("Stored cache entry.")
	return nil
}

// PutObject stores a single entity under its entity key.
func (c *Cache) PutObject(ctx context.Context, obj model.Object) error {
	key := model.KeyOf(obj).String()
	switch v := obj.(type) {
	case model.PartialLevel:
		return Put(ctx, c, key, v)
	case model.Level:
		return Put(ctx, c, key, v)
	case model.NewgroundsSong:
		return Put(ctx, c, key, v)
	case model.Creator:
		return Put(ctx, c, key, v)
	default:
		return backend(key, fmt.Errorf("unsupported entity type %T", obj))
	}
}

// Exists reports whether any entry, fresh or stale, is stored under key.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := c.store.Get(ctx, c.storeKey(key))
	if err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("Cache backend lookup failed.")
		return false, backend(key, err)
	}
	return ok, nil
}

// Invalidate removes the entry under key.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if err := c.store.Delete(ctx, c.storeKey(key)); err != nil {
		return backend(key, err)
	}
	return nil
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}
