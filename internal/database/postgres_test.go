package database

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/tracklab/ingest/internal/ingest"
)

func sampleResult() ingest.IngestionResult {
	return ingest.IngestionResult{
		ID:        "0192aee3-0001-7000-8000-000000000001",
		SourceURL: "https://example.com/track.mp3",
		Metadata: ingest.RawMetadata{
			Artist: ingest.String("Queen"),
			Title:  ingest.String("Bohemian Rhapsody"),
			Format: "mp3",
		},
		Quality: ingest.QualityReport{
			Score: 0.85,
			Level: ingest.QualityGood,
		},
		Asset: ingest.DownloadedAsset{
			Size:        1024,
			ContentType: "audio/mpeg",
		},
		Digest:      "abc123",
		BlobURI:     "gs://bucket/abc123.mp3",
		CompletedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS ingestions").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	store := NewStore(mock)
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveResult(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	result := sampleResult()
	mock.ExpectExec("INSERT INTO ingestions").
		WithArgs(
			result.ID,
			result.SourceURL,
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			result.Digest,
			result.BlobURI,
			result.Asset.Size,
			result.Asset.ContentType,
			result.CompletedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewStore(mock)
	require.NoError(t, store.SaveResult(context.Background(), result))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetResult(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	want := sampleResult()
	rows := pgxmock.NewRows([]string{
		"id", "source_url", "metadata", "quality", "digest", "blob_uri",
		"size_bytes", "content_type", "completed_at",
	}).AddRow(
		want.ID,
		want.SourceURL,
		[]byte(`{"artist":"Queen","title":"Bohemian Rhapsody","format":"mp3"}`),
		[]byte(`{"score":0.85,"level":"good","completeness_pct":0}`),
		want.Digest,
		want.BlobURI,
		want.Asset.Size,
		want.Asset.ContentType,
		want.CompletedAt,
	)
	mock.ExpectQuery("SELECT id, source_url, metadata").
		WithArgs(want.ID).
		WillReturnRows(rows)

	store := NewStore(mock)
	got, err := store.GetResult(context.Background(), want.ID)
	require.NoError(t, err)
	require.Equal(t, want.SourceURL, got.SourceURL)
	require.Equal(t, "Queen", *got.Metadata.Artist)
	require.Equal(t, ingest.QualityGood, got.Quality.Level)
	require.NoError(t, mock.ExpectationsWereMet())
}
