package extract

import (
	"encoding/binary"
	"fmt"

	"github.com/go-flac/flacvorbis"
	flac "github.com/go-flac/go-flac"

	"github.com/tracklab/ingest/internal/ingest"
)

// readFLACTechnicals decodes the mandatory STREAMINFO block.
func readFLACTechnicals(file *flac.File) (ingest.RawMetadata, error) {
	block := findBlock(file, flac.StreamInfo)
	if block == nil {
		return ingest.RawMetadata{}, fmt.Errorf("flac file has no STREAMINFO block")
	}
	data := block.Data
	if len(data) < 34 {
		return ingest.RawMetadata{}, fmt.Errorf("short STREAMINFO block (%d bytes)", len(data))
	}

	// Bytes 10..17 pack sample rate (20 bits), channels-1 (3), bps-1 (5)
	// and total samples (36) back to back.
	sampleRate := int(uint32(data[10])<<12 | uint32(data[11])<<4 | uint32(data[12])>>4)
	channels := int((data[12]>>1)&0x07) + 1
	bitDepth := int((uint16(data[12]&0x01)<<4)|(uint16(data[13])>>4)) + 1
	totalSamples := (uint64(data[13]&0x0F) << 32) | uint64(binary.BigEndian.Uint32(data[14:18]))

	md := ingest.RawMetadata{
		Format:     string(FormatFLAC),
		SampleRate: ingest.Int(sampleRate),
		Channels:   ingest.Int(channels),
		BitDepth:   ingest.Int(bitDepth),
	}
	if sampleRate > 0 && totalSamples > 0 {
		md.Duration = ingest.Float(float64(totalSamples) / float64(sampleRate))
	}
	return md, nil
}

// readFLACVorbisComments reads the embedded Vorbis comment block. It serves
// as the lower-trust enhancement layer for FLAC: richer production metadata
// than what the primary tag pass surfaces.
func readFLACVorbisComments(file *flac.File) ingest.RawMetadata {
	var md ingest.RawMetadata
	block := findBlock(file, flac.VorbisComment)
	if block == nil {
		return md
	}
	comments, err := flacvorbis.ParseFromMetaDataBlock(*block)
	if err != nil {
		return md
	}

	md.Artist = firstComment(comments, flacvorbis.FIELD_ARTIST)
	md.Title = firstComment(comments, flacvorbis.FIELD_TITLE)
	md.Album = firstComment(comments, flacvorbis.FIELD_ALBUM)
	md.Genre = firstComment(comments, flacvorbis.FIELD_GENRE)
	if date := firstComment(comments, flacvorbis.FIELD_DATE); date != nil {
		if year, ok := parseYearPrefix(*date); ok {
			md.Year = ingest.Int(year)
		}
	}
	return md
}

func findBlock(file *flac.File, blockType flac.BlockType) *flac.MetaDataBlock {
	for _, block := range file.Meta {
		if block.Type == blockType {
			return block
		}
	}
	return nil
}

func firstComment(comments *flacvorbis.MetaDataBlockVorbisComment, field string) *string {
	values, err := comments.Get(field)
	if err != nil || len(values) == 0 || values[0] == "" {
		return nil
	}
	return ingest.String(values[0])
}
