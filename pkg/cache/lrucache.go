package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"
)

// lruItem is the internal structure stored in the linked list.
type lruItem struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// DefaultBackfillTTL bounds how long a value read through from a fallback
// that cannot report its expiry is kept locally.
const DefaultBackfillTTL = 30 * time.Second

// LRUStore is a thread-safe, in-memory Store with a fixed size and a Least
// Recently Used eviction policy. It can be placed in front of a slower
// fallback Store: writes go to both, and a local miss reads through to the
// fallback and keeps the result locally, never past the fallback's expiry.
// An LRUStore with a fallback is the near/far tiered store.
type LRUStore struct {
	maxSize     int
	fallback    Store
	backfillTTL time.Duration
	now         func() time.Time

	mu    sync.Mutex
	ll    *list.List               // Used to track the order of items (recency).
	items map[string]*list.Element // Used for fast key lookups.
}

// LRUOption configures an LRUStore.
type LRUOption func(*LRUStore)

// WithBackfillTTL sets the longest a value read through from the fallback
// stays local. An ExpiringStore fallback can only shorten it. Non-positive
// values are ignored.
func WithBackfillTTL(ttl time.Duration) LRUOption {
	return func(s *LRUStore) {
		if ttl > 0 {
			s.backfillTTL = ttl
		}
	}
}

// WithLRUClock overrides the clock used for local expiry.
func WithLRUClock(now func() time.Time) LRUOption {
	return func(s *LRUStore) {
		s.now = now
	}
}

// NewLRUStore creates a new size-limited store.
// - maxSize: The maximum number of items to keep locally. Must be > 0.
// - fallback: An optional Store to read through to on a local miss.
func NewLRUStore(maxSize int, fallback Store, opts ...LRUOption) (*LRUStore, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("maxSize must be greater than 0")
	}
	s := &LRUStore{
		maxSize:     maxSize,
		fallback:    fallback,
		backfillTTL: DefaultBackfillTTL,
		now:         time.Now,
		ll:          list.New(),
		items:       make(map[string]*list.Element),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get retrieves an item. A local hit moves the item to the front of the
// recency list. A local miss consults the fallback, if configured.
func (s *LRUStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	if elem, ok := s.items[key]; ok {
		item := elem.Value.(*lruItem)
		if item.expiresAt.IsZero() || s.now().Before(item.expiresAt) {
			s.ll.MoveToFront(elem)
			s.mu.Unlock()
			return item.value, true, nil
		}
		s.remove(elem)
	}
	s.mu.Unlock()

	if s.fallback == nil {
		return nil, false, nil
	}
	value, expiresAt, ok, err := s.readThrough(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}

	s.mu.Lock()
	s.put(key, value, expiresAt)
	s.mu.Unlock()
	return value, true, nil
}

// readThrough reads key from the fallback and returns when the local copy
// must expire.
func (s *LRUStore) readThrough(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	bound := s.now().Add(s.backfillTTL)
	if es, ok := s.fallback.(ExpiringStore); ok {
		value, expiresAt, found, err := es.GetWithExpiration(ctx, key)
		if err != nil || !found {
			return nil, time.Time{}, false, err
		}
		if !expiresAt.IsZero() && expiresAt.Before(bound) {
			bound = expiresAt
		}
		return value, bound, true, nil
	}
	value, found, err := s.fallback.Get(ctx, key)
	return value, bound, found, err
}

// Set stores the item locally and writes it through to the fallback.
func (s *LRUStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.put(key, value, expiresAt)
	s.mu.Unlock()

	if s.fallback != nil {
		if err := s.fallback.Set(ctx, key, value, ttl); err != nil {
			return fmt.Errorf("fallback store set for %s: %w", key, err)
		}
	}
	return nil
}

// Delete removes the item locally and from the fallback.
func (s *LRUStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	if elem, ok := s.items[key]; ok {
		s.remove(elem)
	}
	s.mu.Unlock()

	if s.fallback != nil {
		return s.fallback.Delete(ctx, key)
	}
	return nil
}

// Len returns the number of locally held items.
func (s *LRUStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ll.Len()
}

// Close closes the fallback store, if any.
func (s *LRUStore) Close() error {
	if s.fallback != nil {
		return s.fallback.Close()
	}
	return nil
}

// put must be called with the mutex held.
func (s *LRUStore) put(key string, value []byte, expiresAt time.Time) {
	if elem, ok := s.items[key]; ok {
		item := elem.Value.(*lruItem)
		item.value = value
		item.expiresAt = expiresAt
		s.ll.MoveToFront(elem)
		return
	}
	s.items[key] = s.ll.PushFront(&lruItem{key: key, value: value, expiresAt: expiresAt})
	if s.ll.Len() > s.maxSize {
		s.remove(s.ll.Back())
	}
}

// remove must be called with the mutex held.
func (s *LRUStore) remove(elem *list.Element) {
	item := s.ll.Remove(elem).(*lruItem)
	delete(s.items, item.key)
}
