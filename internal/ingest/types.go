// Package ingest defines core types shared across subsystems.
package ingest

import (
	"net/netip"
	"time"
)

// SourceRequest captures a single caller-supplied ingestion request.
// It is immutable once created; budgets of zero mean "use the configured default".
type SourceRequest struct {
	URL              string            `json:"url"`
	Headers          map[string]string `json:"headers,omitempty"`
	Filename         string            `json:"filename,omitempty"`
	MIMEType         string            `json:"mime_type,omitempty"`
	MaxBytes         int64             `json:"max_bytes,omitempty"`
	Timeout          time.Duration     `json:"timeout,omitempty"`
	QualityThreshold float64           `json:"quality_threshold,omitempty"`
}

// ValidatedURL is the only request target the downloader may use. It carries
// the normalized URL string plus the address set that passed validation.
type ValidatedURL struct {
	Normalized string
	Host       string
	Addrs      []netip.Addr
}

// DownloadedAsset describes a fetched payload spooled to local disk.
// The orchestrator exclusively owns the temp path and deletes it on every exit.
type DownloadedAsset struct {
	Path        string        `json:"path"`
	Size        int64         `json:"size"`
	ContentType string        `json:"content_type,omitempty"`
	Filename    string        `json:"filename,omitempty"`
	Elapsed     time.Duration `json:"elapsed"`
}

// RawMetadata holds everything extracted from an asset. Nil means absent;
// a non-nil pointer to an empty string is a present-but-suspicious value
// that the quality assessor penalizes.
type RawMetadata struct {
	Artist     *string  `json:"artist,omitempty"`
	Title      *string  `json:"title,omitempty"`
	Album      *string  `json:"album,omitempty"`
	Genre      *string  `json:"genre,omitempty"`
	Year       *int     `json:"year,omitempty"`
	Duration   *float64 `json:"duration_seconds,omitempty"`
	Channels   *int     `json:"channels,omitempty"`
	SampleRate *int     `json:"sample_rate,omitempty"`
	Bitrate    *int     `json:"bitrate,omitempty"`
	BitDepth   *int     `json:"bit_depth,omitempty"`
	Format     string   `json:"format,omitempty"`
}

// FillFrom copies fields from delta into m, but only where m has no value yet.
// Later metadata layers (sidecar blocks, filename heuristics) merge through
// this so an earlier, higher-trust source is never overwritten.
func (m *RawMetadata) FillFrom(delta RawMetadata) {
	if m.Artist == nil {
		m.Artist = delta.Artist
	}
	if m.Title == nil {
		m.Title = delta.Title
	}
	if m.Album == nil {
		m.Album = delta.Album
	}
	if m.Genre == nil {
		m.Genre = delta.Genre
	}
	if m.Year == nil {
		m.Year = delta.Year
	}
	if m.Duration == nil {
		m.Duration = delta.Duration
	}
	if m.Channels == nil {
		m.Channels = delta.Channels
	}
	if m.SampleRate == nil {
		m.SampleRate = delta.SampleRate
	}
	if m.Bitrate == nil {
		m.Bitrate = delta.Bitrate
	}
	if m.BitDepth == nil {
		m.BitDepth = delta.BitDepth
	}
	if m.Format == "" {
		m.Format = delta.Format
	}
}

// IsEmpty reports whether no field at all was extracted.
func (m RawMetadata) IsEmpty() bool {
	return m.Artist == nil && m.Title == nil && m.Album == nil &&
		m.Genre == nil && m.Year == nil && m.Duration == nil &&
		m.Channels == nil && m.SampleRate == nil && m.Bitrate == nil &&
		m.BitDepth == nil && m.Format == ""
}

// String returns a pointer to s, for building RawMetadata literals.
func String(s string) *string { return &s }

// Int returns a pointer to i, for building RawMetadata literals.
func Int(i int) *int { return &i }

// Float returns a pointer to f, for building RawMetadata literals.
func Float(f float64) *float64 { return &f }

// QualityLevel buckets a quality score into coarse bands.
type QualityLevel string

// Quality level bands, highest first.
const (
	QualityExcellent QualityLevel = "excellent"
	QualityGood      QualityLevel = "good"
	QualityFair      QualityLevel = "fair"
	QualityPoor      QualityLevel = "poor"
	QualityVeryPoor  QualityLevel = "very_poor"
)

// QualityReport is the derived score for a RawMetadata snapshot. It must be
// recomputed whenever the metadata changes.
type QualityReport struct {
	Score        float64      `json:"score"`
	Level        QualityLevel `json:"level"`
	Issues       []string     `json:"issues,omitempty"`
	Completeness float64      `json:"completeness_pct"`
}

// IngestionResult is the terminal success value of one pipeline run.
type IngestionResult struct {
	ID          string          `json:"id"`
	SourceURL   string          `json:"source_url"`
	Metadata    RawMetadata     `json:"metadata"`
	Quality     QualityReport   `json:"quality"`
	Asset       DownloadedAsset `json:"asset"`
	Digest      string          `json:"digest,omitempty"`
	BlobURI     string          `json:"blob_uri,omitempty"`
	CompletedAt time.Time       `json:"completed_at"`
}

// JobStatus represents the lifecycle state of an asynchronous ingest job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Job tracks one asynchronous ingestion request end-to-end.
type Job struct {
	ID        string           `json:"id"`
	Status    JobStatus        `json:"status"`
	Submitted time.Time        `json:"submitted_at"`
	Started   *time.Time       `json:"started_at,omitempty"`
	Finished  *time.Time       `json:"finished_at,omitempty"`
	ErrorKind string           `json:"error_kind,omitempty"`
	ErrorText string           `json:"error_text,omitempty"`
	Request   SourceRequest    `json:"request"`
	Result    *IngestionResult `json:"result,omitempty"`
}

// QueueItem wraps a job ready to run.
type QueueItem struct {
	JobID     string
	Request   SourceRequest
	Submitted int64
}
