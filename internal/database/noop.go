package database

import (
	"context"

	"github.com/tracklab/ingest/internal/ingest"
)

// NoOpStore discards results, for runs without a configured database.
type NoOpStore struct{}

// SaveResult implements ingest.ResultStore.
func (NoOpStore) SaveResult(context.Context, ingest.IngestionResult) error {
	return nil
}
