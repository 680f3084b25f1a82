package extract

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/tracklab/ingest/internal/ingest"
)

// mp4Atom is one box in an ISO base media file.
type mp4Atom struct {
	name   string
	offset int64 // of the payload
	size   int64 // of the payload
}

// readMP4Technicals walks moov/mvhd for timescale and duration, then
// moov/trak/mdia/minf/stbl/stsd/mp4a for channel count and sample rate.
func readMP4Technicals(f *os.File, size int64) (ingest.RawMetadata, error) {
	moov, err := findAtom(f, 0, size, "moov")
	if err != nil {
		return ingest.RawMetadata{}, fmt.Errorf("mp4 file has no moov atom: %w", err)
	}

	md := ingest.RawMetadata{Format: string(FormatM4A)}

	if mvhd, err := findAtom(f, moov.offset, moov.offset+moov.size, "mvhd"); err == nil {
		if dur, ok := readMvhdDuration(f, mvhd); ok {
			md.Duration = ingest.Float(dur)
		}
	}

	if mp4a, err := findAtomPath(f, moov, "trak", "mdia", "minf", "stbl", "stsd"); err == nil {
		if channels, rate, ok := readStsdAudioEntry(f, mp4a); ok {
			md.Channels = ingest.Int(channels)
			md.SampleRate = ingest.Int(rate)
		}
	}

	if md.Duration == nil {
		return md, fmt.Errorf("mp4 moov carries no usable mvhd")
	}
	return md, nil
}

// findAtom scans [start,end) for a top-level atom with the given name.
func findAtom(f *os.File, start, end int64, name string) (mp4Atom, error) {
	var hdr [8]byte
	for pos := start; pos+8 <= end; {
		if _, err := f.ReadAt(hdr[:], pos); err != nil {
			return mp4Atom{}, err
		}
		atomSize := int64(binary.BigEndian.Uint32(hdr[:4]))
		atomName := string(hdr[4:8])
		headerLen := int64(8)
		if atomSize == 1 { // 64-bit size follows
			var ext [8]byte
			if _, err := f.ReadAt(ext[:], pos+8); err != nil {
				return mp4Atom{}, err
			}
			atomSize = int64(binary.BigEndian.Uint64(ext[:]))
			headerLen = 16
		} else if atomSize == 0 { // runs to end of file
			atomSize = end - pos
		}
		if atomSize < headerLen {
			return mp4Atom{}, fmt.Errorf("corrupt atom %q at offset %d", atomName, pos)
		}
		if atomName == name {
			return mp4Atom{name: name, offset: pos + headerLen, size: atomSize - headerLen}, nil
		}
		pos += atomSize
	}
	return mp4Atom{}, io.ErrUnexpectedEOF
}

func findAtomPath(f *os.File, parent mp4Atom, names ...string) (mp4Atom, error) {
	current := parent
	for _, name := range names {
		next, err := findAtom(f, current.offset, current.offset+current.size, name)
		if err != nil {
			return mp4Atom{}, fmt.Errorf("atom %q not found under %q: %w", name, current.name, err)
		}
		current = next
	}
	return current, nil
}

func readMvhdDuration(f *os.File, mvhd mp4Atom) (float64, bool) {
	buf := make([]byte, 32)
	if _, err := f.ReadAt(buf, mvhd.offset); err != nil {
		return 0, false
	}
	version := buf[0]
	var timescale uint32
	var duration uint64
	if version == 1 {
		timescale = binary.BigEndian.Uint32(buf[20:24])
		duration = binary.BigEndian.Uint64(buf[24:32])
	} else {
		timescale = binary.BigEndian.Uint32(buf[12:16])
		duration = uint64(binary.BigEndian.Uint32(buf[16:20]))
	}
	if timescale == 0 || duration == 0 {
		return 0, false
	}
	return float64(duration) / float64(timescale), true
}

// readStsdAudioEntry decodes the first sample entry of an stsd box, assuming
// an audio entry layout (mp4a, alac, etc).
func readStsdAudioEntry(f *os.File, stsd mp4Atom) (channels, sampleRate int, ok bool) {
	// stsd payload: version/flags (4), entry count (4), then entries.
	// An audio sample entry: size (4), format (4), reserved (6), data ref
	// index (2), reserved (8), channel count (2), sample size (2),
	// predefined/reserved (4), sample rate as 16.16 fixed point (4).
	buf := make([]byte, 44)
	if _, err := f.ReadAt(buf, stsd.offset); err != nil {
		return 0, 0, false
	}
	entryCount := binary.BigEndian.Uint32(buf[4:8])
	if entryCount == 0 {
		return 0, 0, false
	}
	channels = int(binary.BigEndian.Uint16(buf[32:34]))
	sampleRate = int(binary.BigEndian.Uint32(buf[40:44]) >> 16)
	if channels == 0 || sampleRate == 0 {
		return 0, 0, false
	}
	return channels, sampleRate, true
}
