package extract

import (
	"bytes"
	"io"
)

// Format identifies a container by structure, never by file extension.
type Format string

// Containers the extractor understands.
const (
	FormatUnknown Format = ""
	FormatMP3     Format = "mp3"
	FormatFLAC    Format = "flac"
	FormatOGG     Format = "ogg"
	FormatWAV     Format = "wav"
	FormatM4A     Format = "m4a"
)

const sniffLen = 16

// SniffFormat inspects the leading bytes of r and reports the container type.
func SniffFormat(r io.ReaderAt) Format {
	buf := make([]byte, sniffLen)
	n, _ := r.ReadAt(buf, 0)
	if n < 4 {
		return FormatUnknown
	}
	buf = buf[:n]

	switch {
	case bytes.HasPrefix(buf, []byte("fLaC")):
		return FormatFLAC
	case bytes.HasPrefix(buf, []byte("OggS")):
		return FormatOGG
	case bytes.HasPrefix(buf, []byte("RIFF")) && n >= 12 && bytes.Equal(buf[8:12], []byte("WAVE")):
		return FormatWAV
	case n >= 12 && bytes.Equal(buf[4:8], []byte("ftyp")):
		return FormatM4A
	case bytes.HasPrefix(buf, []byte("ID3")):
		return FormatMP3
	case n >= 2 && buf[0] == 0xFF && buf[1]&0xE0 == 0xE0:
		// Bare MPEG frame sync with no ID3 header.
		return FormatMP3
	}
	return FormatUnknown
}
