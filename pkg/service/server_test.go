package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/illmade-knight/go-gdcache/pkg/api"
	"github.com/illmade-knight/go-gdcache/pkg/cache"
	"github.com/illmade-knight/go-gdcache/pkg/fetch"
	"github.com/illmade-knight/go-gdcache/pkg/model"
	"github.com/illmade-knight/go-gdcache/pkg/request"
	"github.com/illmade-knight/go-gdcache/pkg/service"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	api.GoScheduler
	levels func(ctx context.Context, req request.LevelsRequest) (api.Response, error)
	level  func(ctx context.Context, req request.LevelRequest) (api.Response, error)
	calls  atomic.Int32
}

func (c *fakeClient) Levels(ctx context.Context, req request.LevelsRequest) (api.Response, error) {
	c.calls.Add(1)
	return c.levels(ctx, req)
}

func (c *fakeClient) Level(ctx context.Context, req request.LevelRequest) (api.Response, error) {
	c.calls.Add(1)
	return c.level(ctx, req)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type failingStore struct{ *cache.MemoryStore }

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("backend down")
}

func newTestServer(t *testing.T, client *fakeClient, store cache.Store) (*service.Server, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cacheCfg := cache.DefaultConfig()
	cacheCfg.FreshFor = time.Minute
	c, err := cache.New(store, &cacheCfg, zerolog.Nop(), cache.WithClock(clk.Now))
	require.NoError(t, err)

	fetchCfg := fetch.DefaultConfig()
	orch, err := fetch.New(client, c, &fetchCfg, zerolog.Nop())
	require.NoError(t, err)

	cfg := service.DefaultConfig()
	cfg.HTTPPort = ":0"
	srv, err := service.NewServer(&cfg, orch, zerolog.Nop())
	require.NoError(t, err)
	return srv, clk
}

func get(t *testing.T, srv *service.Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestServer_Healthz(t *testing.T) {
	srv, _ := newTestServer(t, &fakeClient{}, cache.NewMemoryStore(cache.MemoryConfig{}))
	rec := get(t, srv, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestServer_LevelsStaleWhileRevalidate(t *testing.T) {
	// --- Arrange ---
	var version atomic.Int32
	client := &fakeClient{levels: func(_ context.Context, req request.LevelsRequest) (api.Response, error) {
		assert.Equal(t, "bloodbath", req.Search)
		assert.EqualValues(t, 2, req.Page)
		return model.Batch{model.PartialLevel{LevelID: 10565740, Name: fmt.Sprintf("v%d", version.Add(1))}}, nil
	}}
	srv, clk := newTestServer(t, client, cache.NewMemoryStore(cache.MemoryConfig{}))
	const target = "/levels?search=bloodbath&page=2"

	decode := func(rec *httptest.ResponseRecorder) []model.PartialLevel {
		var page []model.PartialLevel
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
		return page
	}

	// --- Act & Assert: miss waits for the source ---
	rec := get(t, srv, target)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "missing", rec.Header().Get(service.CacheStateHeader))
	assert.Equal(t, "v1", decode(rec)[0].Name)

	// --- fresh hit does not touch the source ---
	rec = get(t, srv, target)
	assert.Equal(t, "fresh", rec.Header().Get(service.CacheStateHeader))
	assert.Equal(t, "v1", decode(rec)[0].Name)
	assert.EqualValues(t, 1, client.calls.Load())

	// --- stale hit serves the old value and refreshes in the background ---
	clk.Advance(2 * time.Minute)
	rec = get(t, srv, target)
	assert.Equal(t, "stale", rec.Header().Get(service.CacheStateHeader))
	assert.Equal(t, "v1", decode(rec)[0].Name)

	require.Eventually(t, func() bool {
		rec := get(t, srv, target)
		return rec.Header().Get(service.CacheStateHeader) == "fresh" && decode(rec)[0].Name == "v2"
	}, time.Second, 10*time.Millisecond)
}

func TestServer_Level(t *testing.T) {
	client := &fakeClient{level: func(_ context.Context, req request.LevelRequest) (api.Response, error) {
		return model.Batch{model.Level{PartialLevel: model.PartialLevel{LevelID: req.LevelID, Name: "Cataclysm"}}}, nil
	}}
	srv, _ := newTestServer(t, client, cache.NewMemoryStore(cache.MemoryConfig{}))

	rec := get(t, srv, "/levels/42")
	require.Equal(t, http.StatusOK, rec.Code)
	var level model.Level
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &level))
	assert.EqualValues(t, 42, level.LevelID)
	assert.Equal(t, "Cataclysm", level.Name)
}

func TestServer_ErrorMapping(t *testing.T) {
	testCases := []struct {
		name   string
		level  func(context.Context, request.LevelRequest) (api.Response, error)
		store  cache.Store
		target string
		status int
	}{
		{
			name:   "no result",
			level:  func(_ context.Context, req request.LevelRequest) (api.Response, error) { return nil, api.NoResult(req) },
			target: "/levels/1",
			status: http.StatusNotFound,
		},
		{
			name:   "malformed",
			level:  func(_ context.Context, _ request.LevelRequest) (api.Response, error) { return model.Batch{}, nil },
			target: "/levels/1",
			status: http.StatusBadGateway,
		},
		{
			name:   "transport",
			level:  func(_ context.Context, _ request.LevelRequest) (api.Response, error) { return nil, errors.New("reset") },
			target: "/levels/1",
			status: http.StatusServiceUnavailable,
		},
		{
			name:   "cache backend",
			store:  failingStore{cache.NewMemoryStore(cache.MemoryConfig{})},
			target: "/levels/1",
			status: http.StatusInternalServerError,
		},
		{
			name:   "bad id",
			target: "/levels/abc",
			status: http.StatusBadRequest,
		},
		{
			name:   "bad page",
			target: "/levels?page=-1",
			status: http.StatusBadRequest,
		},
		{
			name:   "bad type",
			target: "/levels?type=weekly",
			status: http.StatusBadRequest,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := tc.store
			if store == nil {
				store = cache.NewMemoryStore(cache.MemoryConfig{})
			}
			srv, _ := newTestServer(t, &fakeClient{level: tc.level}, store)

			rec := get(t, srv, tc.target)

			assert.Equal(t, tc.status, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	srv, _ := newTestServer(t, &fakeClient{}, cache.NewMemoryStore(cache.MemoryConfig{}))
	require.NoError(t, srv.Start())

	port := srv.GetHTTPPort()
	require.NotEqual(t, ":0", port)

	resp, err := http.Get("http://localhost" + port + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "OK", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, service.DefaultConfig().Validate())

	cfg := service.DefaultConfig()
	cfg.LogLevel = "loud"
	var cfgErr *service.ConfigError
	require.ErrorAs(t, cfg.Validate(), &cfgErr)
	assert.Equal(t, "LogLevel", cfgErr.Field)

	_, err := service.NewServer(&cfg, nil, zerolog.Nop())
	assert.Error(t, err)
}
