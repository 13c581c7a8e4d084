package events

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// Inserter writes a batch of rows to a data store.
type Inserter interface {
	InsertBatch(ctx context.Context, rows []*Row) error
	Close() error
}

// BigQueryConfig names the table events are streamed to.
type BigQueryConfig struct {
	ProjectID       string
	DatasetID       string
	TableID         string
	CredentialsFile string // Optional: Path to a service account JSON file.
}

// Validate checks whether the configuration values are valid.
func (c BigQueryConfig) Validate() error {
	if c.DatasetID == "" {
		return &ConfigError{Field: "DatasetID", Message: "cannot be empty"}
	}
	if c.TableID == "" {
		return &ConfigError{Field: "TableID", Message: "cannot be empty"}
	}
	return nil
}

// NewBigQueryClient creates a BigQuery client. It will use Application
// Default Credentials unless a specific credentials file is provided.
func NewBigQueryClient(ctx context.Context, cfg BigQueryConfig, logger zerolog.Logger, opts ...option.ClientOption) (*bigquery.Client, error) {
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		logger.Info().Str("credentials_file", cfg.CredentialsFile).Msg("Using specified credentials file for BigQuery client.")
	}

	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		logger.Error().Err(err).Str("project_id", cfg.ProjectID).Msg("Failed to create BigQuery client.")
		return nil, fmt.Errorf("bigquery.NewClient: %w", err)
	}
	return client, nil
}

// BigQueryInserter streams rows into a BigQuery table.
type BigQueryInserter struct {
	inserter *bigquery.Inserter
	logger   zerolog.Logger
}

// NewBigQueryInserter creates an inserter for the configured table. If the
// table does not exist it is created with a schema inferred from Row.
func NewBigQueryInserter(ctx context.Context, client *bigquery.Client, cfg *BigQueryConfig, logger zerolog.Logger) (*BigQueryInserter, error) {
	if client == nil {
		return nil, errors.New("bigquery client cannot be nil")
	}
	if cfg == nil {
		return nil, errors.New("BigQueryConfig cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger = logger.With().
		Str("component", "BigQueryInserter").
		Str("project_id", client.Project()).
		Str("dataset_id", cfg.DatasetID).
		Str("table_id", cfg.TableID).
		Logger()

	table := client.Dataset(cfg.DatasetID).Table(cfg.TableID)
	if _, err := table.Metadata(ctx); err != nil {
		if !strings.Contains(err.Error(), "notFound") {
			return nil, fmt.Errorf("failed to get BigQuery table metadata: %w", err)
		}
		logger.Warn().Msg("BigQuery table not found. Attempting to create with inferred schema.")
		schema, err := bigquery.InferSchema(Row{})
		if err != nil {
			return nil, fmt.Errorf("failed to infer schema for event rows: %w", err)
		}
		if err := table.Create(ctx, &bigquery.TableMetadata{Schema: schema}); err != nil {
			return nil, fmt.Errorf("failed to create BigQuery table %s.%s: %w", cfg.DatasetID, cfg.TableID, err)
		}
		logger.Info().Msg("BigQuery table created successfully.")
	}

	return &BigQueryInserter{inserter: table.Inserter(), logger: logger}, nil
}

// InsertBatch streams rows to the table. Row level failures are logged one by
// one and returned wrapped.
func (i *BigQueryInserter) InsertBatch(ctx context.Context, rows []*Row) error {
	if len(rows) == 0 {
		return nil
	}

	if err := i.inserter.Put(ctx, rows); err != nil {
		i.logger.Error().Err(err).Int("batch_size", len(rows)).Msg("Failed to insert rows into BigQuery.")
		var multiErr bigquery.PutMultiError
		if errors.As(err, &multiErr) {
			for _, rowErr := range multiErr {
				i.logger.Error().Int("row_index", rowErr.RowIndex).Msgf("BigQuery insert error for row: %v", rowErr.Errors)
			}
		}
		return fmt.Errorf("bigquery Inserter.Put failed: %w", err)
	}

	i.logger.Debug().Int("batch_size", len(rows)).Msg("Successfully inserted batch into BigQuery.")
	return nil
}

// Close is a no-op; the client's lifecycle is managed by whoever created it.
func (i *BigQueryInserter) Close() error {
	return nil
}
