package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFilenameTrackPrefixAndTwoParts(t *testing.T) {
	t.Parallel()

	md := ParseFilename("01. The Beatles - Hey Jude.mp3")
	require.NotNil(t, md.Artist)
	require.Equal(t, "The Beatles", *md.Artist)
	require.Equal(t, "Hey Jude", *md.Title)
	require.Nil(t, md.Album)
	require.Nil(t, md.Year)
}

func TestParseFilenamePrefixVariants(t *testing.T) {
	t.Parallel()

	cases := []string{
		"(01) The Beatles - Hey Jude.flac",
		"[12] The Beatles - Hey Jude.ogg",
		"3 - The Beatles - Hey Jude.mp3",
		"007. The Beatles - Hey Jude.m4a",
	}
	for _, name := range cases {
		md := ParseFilename(name)
		require.NotNil(t, md.Artist, "input %q", name)
		require.Equal(t, "The Beatles", *md.Artist, "input %q", name)
		require.Equal(t, "Hey Jude", *md.Title, "input %q", name)
	}
}

func TestParseFilenameThreeParts(t *testing.T) {
	t.Parallel()

	md := ParseFilename("Queen - A Night at the Opera - Bohemian Rhapsody.flac")
	require.Equal(t, "Queen", *md.Artist)
	require.Equal(t, "A Night at the Opera", *md.Album)
	require.Equal(t, "Bohemian Rhapsody", *md.Title)
}

func TestParseFilenameParenthetical(t *testing.T) {
	t.Parallel()

	md := ParseFilename("Queen - Bohemian Rhapsody (1975).mp3")
	require.Equal(t, "Queen", *md.Artist)
	require.Equal(t, "Bohemian Rhapsody", *md.Title)
	require.Equal(t, 1975, *md.Year)
	require.Nil(t, md.Album)

	md = ParseFilename("Queen - Bohemian Rhapsody (A Night at the Opera).mp3")
	require.Equal(t, "A Night at the Opera", *md.Album)
	require.Nil(t, md.Year)
}

func TestParseFilenameTitleOnly(t *testing.T) {
	t.Parallel()

	md := ParseFilename("Bohemian Rhapsody.mp3")
	require.Nil(t, md.Artist)
	require.Equal(t, "Bohemian Rhapsody", *md.Title)

	md = ParseFilename("Bohemian Rhapsody (1975).mp3")
	require.Equal(t, "Bohemian Rhapsody", *md.Title)
	require.Equal(t, 1975, *md.Year)
}

func TestParseFilenameRejectsImplausible(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"01.mp3", "7.flac", "x.mp3", "  .ogg", ""} {
		md := ParseFilename(name)
		require.True(t, md.IsEmpty(), "input %q parsed to %+v", name, md)
	}
}

func TestParseFilenameNeverSetsTechnicalFields(t *testing.T) {
	t.Parallel()

	md := ParseFilename("Queen - Bohemian Rhapsody (1975).mp3")
	require.Nil(t, md.Channels)
	require.Nil(t, md.SampleRate)
	require.Nil(t, md.Bitrate)
	require.Nil(t, md.Duration)
	require.Empty(t, md.Format)
}
