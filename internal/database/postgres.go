// Package database persists ingestion results to PostgreSQL.
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tracklab/ingest/internal/ingest"
)

// DB is the subset of pgxpool.Pool the store needs; pgxmock satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS ingestions (
    id            TEXT PRIMARY KEY,
    source_url    TEXT NOT NULL,
    metadata      JSONB NOT NULL,
    quality       JSONB NOT NULL,
    digest        TEXT,
    blob_uri      TEXT,
    size_bytes    BIGINT NOT NULL,
    content_type  TEXT,
    completed_at  TIMESTAMPTZ NOT NULL
);
`

const insertResult = `
INSERT INTO ingestions (id, source_url, metadata, quality, digest, blob_uri, size_bytes, content_type, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING
`

// Store implements ingest.ResultStore on PostgreSQL.
type Store struct {
	db DB
}

// NewStore wraps an existing connection pool.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Connect opens a pool for dsn and returns a Store over it.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: pool}, nil
}

// EnsureSchema creates the ingestions table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveResult persists one terminal ingestion result.
func (s *Store) SaveResult(ctx context.Context, result ingest.IngestionResult) error {
	metadata, err := json.Marshal(result.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	quality, err := json.Marshal(result.Quality)
	if err != nil {
		return fmt.Errorf("marshal quality: %w", err)
	}
	completed := result.CompletedAt
	if completed.IsZero() {
		completed = time.Now().UTC()
	}
	if _, err := s.db.Exec(ctx, insertResult,
		result.ID,
		result.SourceURL,
		metadata,
		quality,
		result.Digest,
		result.BlobURI,
		result.Asset.Size,
		result.Asset.ContentType,
		completed,
	); err != nil {
		return fmt.Errorf("insert ingestion: %w", err)
	}
	return nil
}

// GetResult loads a persisted result by ID.
func (s *Store) GetResult(ctx context.Context, resultID string) (ingest.IngestionResult, error) {
	const query = `
SELECT id, source_url, metadata, quality, digest, blob_uri, size_bytes, content_type, completed_at
FROM ingestions WHERE id = $1
`
	var (
		result        ingest.IngestionResult
		metadataBytes []byte
		qualityBytes  []byte
	)
	row := s.db.QueryRow(ctx, query, resultID)
	if err := row.Scan(
		&result.ID,
		&result.SourceURL,
		&metadataBytes,
		&qualityBytes,
		&result.Digest,
		&result.BlobURI,
		&result.Asset.Size,
		&result.Asset.ContentType,
		&result.CompletedAt,
	); err != nil {
		return ingest.IngestionResult{}, fmt.Errorf("load ingestion %s: %w", resultID, err)
	}
	if err := json.Unmarshal(metadataBytes, &result.Metadata); err != nil {
		return ingest.IngestionResult{}, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if err := json.Unmarshal(qualityBytes, &result.Quality); err != nil {
		return ingest.IngestionResult{}, fmt.Errorf("unmarshal quality: %w", err)
	}
	return result, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.db.Close()
}
