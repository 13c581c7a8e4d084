package cache_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"cloud.google.com/go/storage"
	"github.com/illmade-knight/go-gdcache/pkg/cache"
	"github.com/redis/go-redis/v9"
)

// --- Redis stub ---

type stubRedisClient struct {
	mu     sync.Mutex
	store  map[string][]byte
	ttl    map[string]time.Duration
	getErr error
}

func newStubRedisClient() *stubRedisClient {
	return &stubRedisClient{store: make(map[string][]byte), ttl: make(map[string]time.Duration)}
}

func (c *stubRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	cmd := redis.NewStringCmd(ctx)
	if c.getErr != nil {
		cmd.SetErr(c.getErr)
		return cmd
	}
	if val, ok := c.store[key]; ok {
		cmd.SetVal(string(val))
		return cmd
	}
	cmd.SetErr(redis.Nil)
	return cmd
}

func (c *stubRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, _ := value.([]byte)
	c.store[key] = append([]byte(nil), b...)
	c.ttl[key] = expiration
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (c *stubRedisClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := c.store[k]; ok {
			delete(c.store, k)
			n++
		}
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(n)
	return cmd
}

func (c *stubRedisClient) Close() error { return nil }

// --- GCS mock ---

type mockGCSWriter struct {
	buf    bytes.Buffer
	onDone func([]byte)
}

func (w *mockGCSWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }
func (w *mockGCSWriter) Close() error {
	w.onDone(w.buf.Bytes())
	return nil
}

type mockGCSObjectHandle struct {
	bucket *mockGCSBucketHandle
	name   string
}

func (h *mockGCSObjectHandle) NewWriter(_ context.Context) io.WriteCloser {
	return &mockGCSWriter{onDone: func(b []byte) {
		h.bucket.mu.Lock()
		defer h.bucket.mu.Unlock()
		h.bucket.objects[h.name] = append([]byte(nil), b...)
	}}
}

func (h *mockGCSObjectHandle) NewReader(_ context.Context) (io.ReadCloser, error) {
	h.bucket.mu.Lock()
	defer h.bucket.mu.Unlock()
	b, ok := h.bucket.objects[h.name]
	if !ok {
		return nil, storage.ErrObjectNotExist
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (h *mockGCSObjectHandle) Delete(_ context.Context) error {
	h.bucket.mu.Lock()
	defer h.bucket.mu.Unlock()
	if _, ok := h.bucket.objects[h.name]; !ok {
		return storage.ErrObjectNotExist
	}
	delete(h.bucket.objects, h.name)
	return nil
}

type mockGCSBucketHandle struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (b *mockGCSBucketHandle) Object(name string) cache.GCSObjectHandle {
	return &mockGCSObjectHandle{bucket: b, name: name}
}

type mockGCSClient struct {
	bucket *mockGCSBucketHandle
}

func newMockGCSClient() *mockGCSClient {
	return &mockGCSClient{bucket: &mockGCSBucketHandle{objects: make(map[string][]byte)}}
}

func (c *mockGCSClient) Bucket(_ string) cache.GCSBucketHandle { return c.bucket }

// --- Store doubles ---

// countingStore wraps a Store and counts the calls that reach it.
type countingStore struct {
	cache.Store
	gets atomic.Int32
	sets atomic.Int32
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.gets.Add(1)
	return s.Store.Get(ctx, key)
}

func (s *countingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.sets.Add(1)
	return s.Store.Set(ctx, key, value, ttl)
}

// failingStore fails every operation.
type failingStore struct{ err error }

func (s failingStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, s.err }
func (s failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return s.err
}
func (s failingStore) Delete(context.Context, string) error { return s.err }
func (s failingStore) Close() error                         { return nil }

var errBackendDown = errors.New("backend down")
