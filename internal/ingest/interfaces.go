package ingest

import (
	"context"
	"io"
	"time"
)

// Validator checks that fetching a caller-supplied URL is safe and returns
// the normalized target. checkDNS controls whether resolved addresses are
// inspected in addition to the literal host.
type Validator interface {
	Validate(ctx context.Context, rawURL string, checkDNS bool) (ValidatedURL, error)
}

// Downloader fetches a validated URL into a scoped temp file, enforcing the
// request's byte and time budgets while streaming.
type Downloader interface {
	Fetch(ctx context.Context, target ValidatedURL, req SourceRequest) (DownloadedAsset, error)
}

// Extractor parses a downloaded asset. It may return partial metadata
// alongside an extraction error when the container is damaged but some
// fields were still recovered.
type Extractor interface {
	Extract(ctx context.Context, asset DownloadedAsset, req SourceRequest) (RawMetadata, error)
}

// Assessor scores metadata quality and repairs invalid values.
type Assessor interface {
	Assess(md RawMetadata) QualityReport
	Repair(md RawMetadata) RawMetadata
}

// BlobStore receives completed asset bytes and returns a storage URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// ResultStore persists terminal ingestion results.
type ResultStore interface {
	SaveResult(ctx context.Context, result IngestionResult) error
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// JobStore persists asynchronous job state.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, jobID string) (Job, error)
	MarkRunning(ctx context.Context, jobID string, at time.Time) error
	MarkFinished(ctx context.Context, jobID string, status JobStatus, errKind, errText string, result *IngestionResult, at time.Time) error
}

// Queue provides enqueue/dequeue semantics for async ingest jobs.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// IDGenerator produces result and job IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock returns the current time (swappable in tests).
type Clock interface {
	Now() time.Time
}
