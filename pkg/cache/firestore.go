package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreConfig holds configuration for the Firestore client.
type FirestoreConfig struct {
	ProjectID      string
	CollectionName string
}

// firestoreEntry is the document shape. expires_at can back a Firestore TTL
// policy so expired documents are also purged server side.
type firestoreEntry struct {
	Value     []byte    `firestore:"value"`
	ExpiresAt time.Time `firestore:"expires_at,omitempty"`
}

// FirestoreStore keeps entries as documents of a single collection. Suited to
// low volume deployments; use Redis for anything busy.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
	logger     zerolog.Logger
}

// NewFirestoreStore creates a store over an existing client. The client's
// lifecycle is managed by the caller.
func NewFirestoreStore(cfg *FirestoreConfig, client *firestore.Client, logger zerolog.Logger) (*FirestoreStore, error) {
	if client == nil {
		return nil, errors.New("firestore client cannot be nil")
	}
	if cfg == nil || cfg.CollectionName == "" {
		return nil, errors.New("firestore collection name is required")
	}

	logger.Info().Str("project_id", cfg.ProjectID).Str("collection", cfg.CollectionName).Msg("FirestoreStore initialized.")

	return &FirestoreStore{
		client:     client,
		collection: cfg.CollectionName,
		now:        time.Now,
		logger:     logger.With().Str("component", "FirestoreStore").Logger(),
	}, nil
}

// docID maps a cache key onto a valid document id.
func docID(key string) string {
	return strings.ReplaceAll(key, "/", "_")
}

func (s *FirestoreStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	snap, err := s.client.Collection(s.collection).Doc(docID(key)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, false, nil
		}
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to get document from Firestore.")
		return nil, false, fmt.Errorf("firestore get for %s: %w", key, err)
	}

	var entry firestoreEntry
	if err := snap.DataTo(&entry); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to map Firestore document data.")
		return nil, false, fmt.Errorf("firestore DataTo for %s: %w", key, err)
	}
	if !entry.ExpiresAt.IsZero() && !s.now().Before(entry.ExpiresAt) {
		return nil, false, nil
	}
	return entry.Value, true, nil
}

func (s *FirestoreStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entry := firestoreEntry{Value: value}
	if ttl > 0 {
		entry.ExpiresAt = s.now().Add(ttl)
	}
	if _, err := s.client.Collection(s.collection).Doc(docID(key)).Set(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to write document to Firestore.")
		return fmt.Errorf("firestore set for %s: %w", key, err)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, key string) error {
	if _, err := s.client.Collection(s.collection).Doc(docID(key)).Delete(ctx); err != nil {
		return fmt.Errorf("firestore delete for %s: %w", key, err)
	}
	return nil
}

// Close is a no-op as the Firestore client's lifecycle is managed externally.
func (s *FirestoreStore) Close() error {
	s.logger.Info().Msg("FirestoreStore does not close the injected Firestore client.")
	return nil
}
