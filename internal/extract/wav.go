package extract

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"

	"github.com/tracklab/ingest/internal/ingest"
)

// readWAVTechnicals pulls stream parameters from the fmt chunk.
func readWAVTechnicals(f *os.File) (ingest.RawMetadata, error) {
	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if dec.Err() != nil {
		return ingest.RawMetadata{}, fmt.Errorf("read wav info: %w", dec.Err())
	}
	if dec.SampleRate == 0 {
		return ingest.RawMetadata{}, fmt.Errorf("wav file has no fmt chunk")
	}

	md := ingest.RawMetadata{
		Format:     string(FormatWAV),
		SampleRate: ingest.Int(int(dec.SampleRate)),
		Channels:   ingest.Int(int(dec.NumChans)),
		BitDepth:   ingest.Int(int(dec.BitDepth)),
	}
	if dur, err := dec.Duration(); err == nil && dur > 0 {
		md.Duration = ingest.Float(dur.Seconds())
	}
	if dec.AvgBytesPerSec > 0 {
		md.Bitrate = ingest.Int(int(dec.AvgBytesPerSec) * 8)
	}
	return md, nil
}

// readWAVListInfo parses the RIFF LIST-INFO chunk, the WAV sidecar block
// carrying production metadata (IART, INAM, IPRD, IGNR, ICRD).
func readWAVListInfo(f *os.File) ingest.RawMetadata {
	var md ingest.RawMetadata
	if _, err := f.Seek(0, 0); err != nil {
		return md
	}
	dec := wav.NewDecoder(f)
	dec.ReadMetadata()
	if dec.Metadata == nil {
		return md
	}

	info := dec.Metadata
	if info.Artist != "" {
		md.Artist = ingest.String(info.Artist)
	}
	if info.Title != "" {
		md.Title = ingest.String(info.Title)
	}
	if info.Product != "" {
		md.Album = ingest.String(info.Product)
	}
	if info.Genre != "" {
		md.Genre = ingest.String(info.Genre)
	}
	if info.CreationDate != "" {
		if year, ok := parseYearPrefix(info.CreationDate); ok {
			md.Year = ingest.Int(year)
		}
	}
	return md
}
