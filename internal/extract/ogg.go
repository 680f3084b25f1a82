package extract

import (
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"

	"github.com/tracklab/ingest/internal/ingest"
)

// readOggTechnicals reads the Vorbis identification header and seeks the
// final granule position for an exact sample count.
func readOggTechnicals(rs io.ReadSeeker) (ingest.RawMetadata, error) {
	samples, format, err := oggvorbis.GetLength(rs)
	if err != nil {
		return ingest.RawMetadata{}, fmt.Errorf("read ogg stream: %w", err)
	}

	md := ingest.RawMetadata{
		Format:     string(FormatOGG),
		SampleRate: ingest.Int(format.SampleRate),
		Channels:   ingest.Int(format.Channels),
	}
	if format.SampleRate > 0 && samples > 0 {
		md.Duration = ingest.Float(float64(samples) / float64(format.SampleRate))
	}
	if format.Bitrate.Nominal > 0 {
		md.Bitrate = ingest.Int(int(format.Bitrate.Nominal))
	}
	return md, nil
}
