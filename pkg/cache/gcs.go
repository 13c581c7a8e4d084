package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
)

// ====================================================================================
// GCSStore keeps entries as objects in a Cloud Storage bucket. It is the
// slowest backend and is meant as a durable far tier behind an LRUStore.
// The interfaces below abstract the storage client so the store can be
// tested without a real bucket.
// ====================================================================================

// GCSClient abstracts the top-level *storage.Client.
type GCSClient interface {
	Bucket(name string) GCSBucketHandle
}

// GCSBucketHandle abstracts a *storage.BucketHandle.
type GCSBucketHandle interface {
	Object(name string) GCSObjectHandle
}

// GCSObjectHandle abstracts a *storage.ObjectHandle. NewReader must return
// an error matching storage.ErrObjectNotExist for absent objects.
type GCSObjectHandle interface {
	NewWriter(ctx context.Context) io.WriteCloser
	NewReader(ctx context.Context) (io.ReadCloser, error)
	Delete(ctx context.Context) error
}

// NewGCSClientAdapter makes the concrete *storage.Client conform to GCSClient.
func NewGCSClientAdapter(client *storage.Client) GCSClient {
	if client == nil {
		return nil
	}
	return &gcsClientAdapter{client: client}
}

type gcsClientAdapter struct {
	client *storage.Client
}

func (a *gcsClientAdapter) Bucket(name string) GCSBucketHandle {
	return &gcsBucketHandleAdapter{handle: a.client.Bucket(name)}
}

type gcsBucketHandleAdapter struct {
	handle *storage.BucketHandle
}

func (a *gcsBucketHandleAdapter) Object(name string) GCSObjectHandle {
	return &gcsObjectHandleAdapter{handle: a.handle.Object(name)}
}

type gcsObjectHandleAdapter struct {
	handle *storage.ObjectHandle
}

func (a *gcsObjectHandleAdapter) NewWriter(ctx context.Context) io.WriteCloser {
	w := a.handle.NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	return w
}

func (a *gcsObjectHandleAdapter) NewReader(ctx context.Context) (io.ReadCloser, error) {
	return a.handle.NewReader(ctx)
}

func (a *gcsObjectHandleAdapter) Delete(ctx context.Context) error {
	return a.handle.Delete(ctx)
}

// GCSConfig holds configuration specific to the GCS store.
type GCSConfig struct {
	BucketName   string
	ObjectPrefix string
}

// gcsHeaderLen is the size of the expiry header written before each value.
const gcsHeaderLen = 8

// GCSStore is a Store that keeps one Cloud Storage object per key. Each
// object starts with an 8-byte big-endian expiry in Unix nanoseconds, zero
// for no expiry; expired objects read as missing and are left for a bucket
// lifecycle rule to delete.
type GCSStore struct {
	client GCSClient
	config GCSConfig
	now    func() time.Time
	logger zerolog.Logger
}

// NewGCSStore creates a store writing to the configured bucket.
func NewGCSStore(gcsClient GCSClient, config GCSConfig, logger zerolog.Logger) (*GCSStore, error) {
	if gcsClient == nil {
		return nil, errors.New("GCS client cannot be nil")
	}
	if config.BucketName == "" {
		return nil, errors.New("GCS bucket name is required")
	}
	return &GCSStore{
		client: gcsClient,
		config: config,
		now:    time.Now,
		logger: logger.With().Str("component", "GCSStore").Str("bucket", config.BucketName).Logger(),
	}, nil
}

func (s *GCSStore) object(key string) GCSObjectHandle {
	return s.client.Bucket(s.config.BucketName).Object(path.Join(s.config.ObjectPrefix, key))
}

// Get reads the object for key. Objects past their expiry header are misses.
func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, _, ok, err := s.GetWithExpiration(ctx, key)
	return value, ok, err
}

// GetWithExpiration is Get that also returns the expiry from the object header.
func (s *GCSStore) GetWithExpiration(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	r, err := s.object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, time.Time{}, false, nil
		}
		return nil, time.Time{}, false, fmt.Errorf("gcs read for %s: %w", key, err)
	}
	defer func() { _ = r.Close() }()

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("gcs read for %s: %w", key, err)
	}
	if len(body) < gcsHeaderLen {
		return nil, time.Time{}, false, fmt.Errorf("gcs object for %s is truncated", key)
	}
	var expiresAt time.Time
	if nanos := int64(binary.BigEndian.Uint64(body[:gcsHeaderLen])); nanos != 0 {
		expiresAt = time.Unix(0, nanos)
		if !s.now().Before(expiresAt) {
			return nil, time.Time{}, false, nil
		}
	}
	return body[gcsHeaderLen:], expiresAt, true, nil
}

// Set writes the object for key, prefixed with its expiry.
func (s *GCSStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var header [gcsHeaderLen]byte
	if ttl > 0 {
		binary.BigEndian.PutUint64(header[:], uint64(s.now().Add(ttl).UnixNano()))
	}

	w := s.object(key).NewWriter(ctx)
	if _, err := w.Write(header[:]); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs write for %s: %w", key, err)
	}
	if _, err := w.Write(value); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs write for %s: %w", key, err)
	}
	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS object writer for %s: %w", key, err)
	}
	s.logger.Debug().Str("key", key).Int("bytes_written", len(value)+gcsHeaderLen).Msg("Stored object in GCS.")
	return nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	err := s.object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs delete for %s: %w", key, err)
	}
	return nil
}

// Close is a no-op; the storage client's lifecycle is managed externally.
func (s *GCSStore) Close() error {
	return nil
}
