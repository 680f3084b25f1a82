package ingest

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFillFromOnlyFillsMissing(t *testing.T) {
	t.Parallel()

	md := RawMetadata{
		Artist: String("Queen"),
		Title:  String("Bohemian Rhapsody"),
		Format: "mp3",
	}
	md.FillFrom(RawMetadata{
		Artist: String("Wrong Artist"),
		Album:  String("A Night at the Opera"),
		Year:   Int(1975),
		Format: "flac",
	})

	require.Equal(t, "Queen", *md.Artist)
	require.Equal(t, "A Night at the Opera", *md.Album)
	require.Equal(t, 1975, *md.Year)
	require.Equal(t, "mp3", md.Format)
}

func TestFillFromPresentEmptyStringIsKept(t *testing.T) {
	t.Parallel()

	// A present-but-empty value is still a value; lower layers must not
	// replace it.
	md := RawMetadata{Artist: String("")}
	md.FillFrom(RawMetadata{Artist: String("Filled")})
	require.Equal(t, "", *md.Artist)
}

func TestIsEmpty(t *testing.T) {
	t.Parallel()

	require.True(t, RawMetadata{}.IsEmpty())
	require.False(t, RawMetadata{Format: "mp3"}.IsEmpty())
	require.False(t, RawMetadata{BitDepth: Int(16)}.IsEmpty())
}

func TestErrorKindHelpers(t *testing.T) {
	t.Parallel()

	base := NewError(KindSizeExceeded, "byte budget of %d exceeded", 1024)
	require.Equal(t, KindSizeExceeded, KindOf(base))
	require.True(t, IsKind(base, KindSizeExceeded))
	require.False(t, IsKind(base, KindTimeout))
	require.Contains(t, base.Error(), "1024")

	wrapped := fmt.Errorf("outer context: %w", base)
	require.Equal(t, KindSizeExceeded, KindOf(wrapped))
	require.True(t, IsKind(wrapped, KindSizeExceeded))

	require.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
	require.False(t, IsKind(nil, KindTimeout))
}

func TestWrapErrorPreservesCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := WrapError(KindFetchFailed, cause, "fetching asset")
	require.ErrorIs(t, err, cause)
	require.True(t, IsKind(err, KindFetchFailed))
}
