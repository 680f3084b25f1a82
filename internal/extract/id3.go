package extract

import (
	id3v2 "github.com/bogem/id3v2/v2"

	"github.com/tracklab/ingest/internal/ingest"
)

// readID3v2Frames is the MP3 enhancement layer. It walks raw ID3v2 text
// frames directly, which recovers values the primary tag pass misses on
// files written with mixed v2.3/v2.4 dialects (TYER vs TDRC dates, raw
// TCON genre indices, and so on).
func readID3v2Frames(path string) ingest.RawMetadata {
	var md ingest.RawMetadata
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return md
	}
	defer tag.Close()

	if v := tag.Artist(); v != "" {
		md.Artist = ingest.String(v)
	}
	if v := tag.Title(); v != "" {
		md.Title = ingest.String(v)
	}
	if v := tag.Album(); v != "" {
		md.Album = ingest.String(v)
	}
	if v := tag.Genre(); v != "" {
		md.Genre = ingest.String(v)
	}

	for _, frameID := range []string{"TDRC", "TYER", "TDRL", "TORY"} {
		frame := tag.GetTextFrame(frameID)
		if frame.Text == "" {
			continue
		}
		if year, ok := parseYearPrefix(frame.Text); ok {
			md.Year = ingest.Int(year)
			break
		}
	}
	return md
}
