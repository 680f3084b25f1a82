package extract

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSniffFormat(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		data []byte
		want Format
	}{
		{"flac", []byte("fLaC\x00\x00\x00\x22rest-of-streaminfo"), FormatFLAC},
		{"ogg", []byte("OggS\x00\x02rest-of-page-header"), FormatOGG},
		{"wav", []byte("RIFF\x24\x08\x00\x00WAVEfmt "), FormatWAV},
		{"m4a", []byte("\x00\x00\x00\x20ftypM4A \x00\x00\x00\x00"), FormatM4A},
		{"mp3 with id3", []byte("ID3\x04\x00\x00\x00\x00\x00\x00rest"), FormatMP3},
		{"mp3 bare sync", []byte{0xFF, 0xFB, 0x90, 0x00, 0x00, 0x00}, FormatMP3},
		{"riff but not wave", []byte("RIFF\x24\x08\x00\x00AVI LIST"), FormatUnknown},
		{"garbage", []byte("not an audio file at all"), FormatUnknown},
		{"too short", []byte("ab"), FormatUnknown},
		{"empty", nil, FormatUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, SniffFormat(bytes.NewReader(tc.data)))
		})
	}
}
