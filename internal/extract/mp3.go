package extract

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/tracklab/ingest/internal/ingest"
)

// MPEG-1 Layer III bitrate table (kbit/s), index 0 and 15 are invalid.
var mp3BitratesV1L3 = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}

// MPEG-2/2.5 Layer III bitrates.
var mp3BitratesV2L3 = [16]int{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0}

var mp3SampleRatesV1 = [4]int{44100, 48000, 32000, 0}

// readMP3Technicals locates the first MPEG audio frame after any ID3v2 tag
// and derives the stream parameters from its header. Duration comes from the
// Xing/Info frame count when present, else from a CBR estimate over the
// audio payload.
func readMP3Technicals(f *os.File, size int64) (ingest.RawMetadata, error) {
	audioStart := skipID3v2(f)

	header, headerOffset, err := findFrameHeader(f, audioStart, size)
	if err != nil {
		return ingest.RawMetadata{}, err
	}

	version := (header >> 19) & 0x3  // 3 = MPEG-1, 2 = MPEG-2, 0 = MPEG-2.5
	layer := (header >> 17) & 0x3    // 1 = Layer III
	bitrateIdx := (header >> 12) & 0xF
	rateIdx := (header >> 10) & 0x3
	channelMode := (header >> 6) & 0x3

	if layer != 1 || rateIdx == 3 || bitrateIdx == 0 || bitrateIdx == 15 {
		return ingest.RawMetadata{}, fmt.Errorf("unsupported mpeg frame header %08x", header)
	}

	sampleRate := mp3SampleRatesV1[rateIdx]
	samplesPerFrame := 1152
	bitrateKbps := mp3BitratesV1L3[bitrateIdx]
	switch version {
	case 2: // MPEG-2
		sampleRate /= 2
		samplesPerFrame = 576
		bitrateKbps = mp3BitratesV2L3[bitrateIdx]
	case 0: // MPEG-2.5
		sampleRate /= 4
		samplesPerFrame = 576
		bitrateKbps = mp3BitratesV2L3[bitrateIdx]
	case 1:
		return ingest.RawMetadata{}, fmt.Errorf("reserved mpeg version in header %08x", header)
	}

	channels := 2
	if channelMode == 3 {
		channels = 1
	}

	md := ingest.RawMetadata{
		Format:     string(FormatMP3),
		SampleRate: ingest.Int(sampleRate),
		Channels:   ingest.Int(channels),
		Bitrate:    ingest.Int(bitrateKbps * 1000),
	}

	if frames, ok := readXingFrameCount(f, headerOffset, version, channelMode); ok && sampleRate > 0 {
		dur := float64(frames) * float64(samplesPerFrame) / float64(sampleRate)
		md.Duration = ingest.Float(dur)
	} else if bitrateKbps > 0 {
		payload := size - headerOffset
		dur := float64(payload*8) / float64(bitrateKbps*1000)
		md.Duration = ingest.Float(dur)
	}
	return md, nil
}

// skipID3v2 returns the offset of the first byte after the ID3v2 tag, or 0
// when the file does not start with one.
func skipID3v2(f *os.File) int64 {
	var hdr [10]byte
	if _, err := f.ReadAt(hdr[:], 0); err != nil {
		return 0
	}
	if string(hdr[:3]) != "ID3" {
		return 0
	}
	// Tag size is a 28-bit syncsafe integer, excluding the 10-byte header.
	size := int64(hdr[6]&0x7F)<<21 | int64(hdr[7]&0x7F)<<14 | int64(hdr[8]&0x7F)<<7 | int64(hdr[9]&0x7F)
	return 10 + size
}

// findFrameHeader scans forward from offset for a plausible frame sync.
func findFrameHeader(f *os.File, offset, size int64) (uint32, int64, error) {
	const scanWindow = 64 * 1024
	end := min(size-4, offset+scanWindow)
	var word [4]byte
	for pos := offset; pos <= end; pos++ {
		if _, err := f.ReadAt(word[:], pos); err != nil {
			if err == io.EOF {
				break
			}
			return 0, 0, err
		}
		if word[0] == 0xFF && word[1]&0xE0 == 0xE0 {
			header := binary.BigEndian.Uint32(word[:])
			if validFrameHeader(header) {
				return header, pos, nil
			}
		}
	}
	return 0, 0, fmt.Errorf("no mpeg frame sync found near offset %d", offset)
}

func validFrameHeader(header uint32) bool {
	if (header>>19)&0x3 == 1 { // reserved version
		return false
	}
	if (header>>17)&0x3 == 0 { // reserved layer
		return false
	}
	if (header>>12)&0xF == 0xF || (header>>12)&0xF == 0 {
		return false
	}
	return (header>>10)&0x3 != 3
}

// readXingFrameCount looks for a Xing/Info block inside the first frame.
func readXingFrameCount(f *os.File, frameOffset int64, version, channelMode uint32) (int64, bool) {
	// Side-info length depends on version and channel count.
	var sideInfo int64
	mono := channelMode == 3
	if version == 3 { // MPEG-1
		sideInfo = 32
		if mono {
			sideInfo = 17
		}
	} else {
		sideInfo = 17
		if mono {
			sideInfo = 9
		}
	}
	pos := frameOffset + 4 + sideInfo

	var block [16]byte
	if _, err := f.ReadAt(block[:], pos); err != nil {
		return 0, false
	}
	magic := string(block[:4])
	if magic != "Xing" && magic != "Info" {
		return 0, false
	}
	flags := binary.BigEndian.Uint32(block[4:8])
	if flags&0x1 == 0 { // frame count absent
		return 0, false
	}
	return int64(binary.BigEndian.Uint32(block[8:12])), true
}
