package fetch_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/illmade-knight/go-gdcache/pkg/api"
	"github.com/illmade-knight/go-gdcache/pkg/cache"
	"github.com/illmade-knight/go-gdcache/pkg/fetch"
	"github.com/illmade-knight/go-gdcache/pkg/model"
	"github.com/illmade-knight/go-gdcache/pkg/request"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeClient is a scripted remote source. Scheduled work runs on its own
// goroutine unless worker is set.
type fakeClient struct {
	worker      api.Scheduler
	levels      func(ctx context.Context, req request.LevelsRequest) (api.Response, error)
	level       func(ctx context.Context, req request.LevelRequest) (api.Response, error)
	levelsCalls atomic.Int32
	levelCalls  atomic.Int32
}

func (c *fakeClient) Schedule(task func()) {
	if c.worker != nil {
		c.worker.Schedule(task)
		return
	}
	go task()
}

func (c *fakeClient) Levels(ctx context.Context, req request.LevelsRequest) (api.Response, error) {
	c.levelsCalls.Add(1)
	if c.levels == nil {
		return nil, api.NoResult(req)
	}
	return c.levels(ctx, req)
}

func (c *fakeClient) Level(ctx context.Context, req request.LevelRequest) (api.Response, error) {
	c.levelCalls.Add(1)
	if c.level == nil {
		return nil, api.NoResult(req)
	}
	return c.level(ctx, req)
}

// fakeClock is a manually advanced clock, safe for use from refresh goroutines.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingStore wraps a MemoryStore, records the order of writes and can
// fail reads of selected keys.
type recordingStore struct {
	*cache.MemoryStore

	mu      sync.Mutex
	writes  []string
	failGet func(key string) bool
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: cache.NewMemoryStore(cache.MemoryConfig{})}
}

func (s *recordingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.failGet != nil && s.failGet(key) {
		return nil, false, errBackendDown
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *recordingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	s.writes = append(s.writes, key)
	s.mu.Unlock()
	return s.MemoryStore.Set(ctx, key, value, ttl)
}

func (s *recordingStore) Writes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.writes...)
}

func (s *recordingStore) indexOf(suffix string) int {
	for i, k := range s.Writes() {
		if strings.HasSuffix(k, suffix) {
			return i
		}
	}
	return -1
}

var errBackendDown = errors.New("backend down")

// harness wires an orchestrator to a fake source and an in-memory cache.
type harness struct {
	client *fakeClient
	store  *recordingStore
	clock  *fakeClock
	cache  *cache.Cache
	orch   *fetch.Orchestrator
}

func newHarness(t *testing.T, cfg fetch.Config, opts ...fetch.Option) *harness {
	t.Helper()
	h := &harness{client: &fakeClient{}, store: newRecordingStore(), clock: newFakeClock()}

	cacheCfg := cache.DefaultConfig()
	cacheCfg.FreshFor = time.Minute
	c, err := cache.New(h.store, &cacheCfg, zerolog.Nop(), cache.WithClock(h.clock.Now))
	require.NoError(t, err)
	h.cache = c

	h.orch, err = fetch.New(h.client, c, &cfg, zerolog.Nop(), opts...)
	require.NoError(t, err)
	return h
}

func songID(id uint64) *uint64 { return &id }

func partial(id uint64, name string) model.PartialLevel {
	return model.PartialLevel{LevelID: id, Name: name, CreatorID: 100 + id}
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
