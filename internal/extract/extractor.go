// Package extract parses downloaded audio assets into structured metadata.
//
// Extraction is a layered merge: container-native tags first, then embedded
// sidecar blocks, then filename heuristics. Each layer only fills fields the
// previous layers left empty, so a higher-trust source is never overwritten
// by a lower-trust one.
package extract

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/dhowden/tag"
	flac "github.com/go-flac/go-flac"
	"go.uber.org/zap"

	"github.com/tracklab/ingest/internal/ingest"
)

// DefaultSentinelPattern matches the downloader's own temp-file naming. A
// title that is itself such an artifact name carries no information and may
// be replaced by the filename layer.
const DefaultSentinelPattern = `^ingest-\d+$`

// Config tunes the extractor.
type Config struct {
	// SentinelPattern overrides DefaultSentinelPattern.
	SentinelPattern string
}

// Extractor implements ingest.Extractor.
type Extractor struct {
	sentinel *regexp.Regexp
	logger   *zap.Logger
}

// New builds an Extractor. An invalid sentinel pattern falls back to the
// default.
func New(cfg Config, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	pattern := cfg.SentinelPattern
	if pattern == "" {
		pattern = DefaultSentinelPattern
	}
	sentinel, err := regexp.Compile(pattern)
	if err != nil {
		logger.Warn("invalid sentinel pattern, using default", zap.String("pattern", pattern), zap.Error(err))
		sentinel = regexp.MustCompile(DefaultSentinelPattern)
	}
	return &Extractor{sentinel: sentinel, logger: logger}
}

// Extract parses asset into RawMetadata. When the container is unreadable it
// returns whatever partial metadata the surviving layers produced alongside
// an extraction error; the caller decides whether the partial result is
// usable.
func (e *Extractor) Extract(_ context.Context, asset ingest.DownloadedAsset, req ingest.SourceRequest) (ingest.RawMetadata, error) {
	f, err := os.Open(asset.Path)
	if err != nil {
		return ingest.RawMetadata{}, ingest.WrapError(ingest.KindExtractionFailed, err, "open asset")
	}
	defer f.Close()

	format := SniffFormat(f)

	var md ingest.RawMetadata

	// Layer 1: container-native descriptive tags. Absence of tags is normal
	// and not a container failure.
	native, nativeErr := readNativeTags(f)
	if nativeErr == nil {
		md.FillFrom(native)
	}

	// Layer 1b: technical fields from stream structure, independent of tags.
	tech, techErr := e.readTechnicals(f, format, asset.Size)
	if techErr == nil {
		md.FillFrom(tech)
	}

	// A tag failure only counts as structural damage when sniffing could not
	// identify the container either.
	var containerErr error
	switch {
	case format == FormatUnknown && nativeErr != nil:
		containerErr = nativeErr
	case techErr != nil:
		e.logger.Debug("technical introspection failed",
			zap.String("format", string(format)), zap.Error(techErr))
		containerErr = techErr
	}

	// Layer 2: embedded sidecar blocks, fill-missing only.
	md.FillFrom(e.readSidecar(asset.Path, f, format))

	// Layer 3: filename heuristics for whatever is still absent.
	e.applyFilenameFallback(&md, asset, req)

	if containerErr != nil {
		if md.IsEmpty() {
			return md, ingest.WrapError(ingest.KindExtractionFailed, containerErr, "unreadable container")
		}
		// Partial extraction: surface the error with the salvage attached.
		return md, ingest.WrapError(ingest.KindExtractionFailed, containerErr, "container damaged, partial metadata only")
	}
	return md, nil
}

// readNativeTags runs the primary tag pass.
func readNativeTags(f *os.File) (ingest.RawMetadata, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return ingest.RawMetadata{}, err
	}
	parsed, err := tag.ReadFrom(f)
	if err != nil {
		return ingest.RawMetadata{}, err
	}

	var md ingest.RawMetadata
	if v := parsed.Artist(); v != "" {
		md.Artist = ingest.String(v)
	}
	if v := parsed.Title(); v != "" {
		md.Title = ingest.String(v)
	}
	if v := parsed.Album(); v != "" {
		md.Album = ingest.String(v)
	}
	if v := parsed.Genre(); v != "" {
		md.Genre = ingest.String(v)
	}
	if y := parsed.Year(); y != 0 {
		md.Year = ingest.Int(y)
	}
	return md, nil
}

func (e *Extractor) readTechnicals(f *os.File, format Format, size int64) (ingest.RawMetadata, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return ingest.RawMetadata{}, err
	}
	switch format {
	case FormatMP3:
		return readMP3Technicals(f, size)
	case FormatFLAC:
		flacFile, err := flac.ParseFile(f.Name())
		if err != nil {
			return ingest.RawMetadata{}, err
		}
		return readFLACTechnicals(flacFile)
	case FormatWAV:
		return readWAVTechnicals(f)
	case FormatOGG:
		return readOggTechnicals(f)
	case FormatM4A:
		return readMP4Technicals(f, size)
	default:
		return ingest.RawMetadata{}, nil
	}
}

// readSidecar parses the container's embedded sidecar metadata block.
func (e *Extractor) readSidecar(path string, f *os.File, format Format) ingest.RawMetadata {
	switch format {
	case FormatMP3:
		return readID3v2Frames(path)
	case FormatFLAC:
		flacFile, err := flac.ParseFile(path)
		if err != nil {
			return ingest.RawMetadata{}
		}
		return readFLACVorbisComments(flacFile)
	case FormatWAV:
		return readWAVListInfo(f)
	default:
		return ingest.RawMetadata{}
	}
}

// applyFilenameFallback merges filename-derived fields into still-missing
// slots. A title matching the sentinel pattern is a generated artifact name,
// not content, and is treated as absent so the filename layer may replace it.
func (e *Extractor) applyFilenameFallback(md *ingest.RawMetadata, asset ingest.DownloadedAsset, req ingest.SourceRequest) {
	name := req.Filename
	if name == "" {
		name = asset.Filename
	}
	if name == "" {
		name = filepath.Base(asset.Path)
	}
	if name == "" {
		return
	}
	if md.Title != nil && e.sentinel.MatchString(*md.Title) {
		md.Title = nil
	}
	md.FillFrom(ParseFilename(name))
}

// parseYearPrefix reads a leading 4-digit year out of a date-ish string
// ("1977", "1977-10-14", "1977/10/14").
func parseYearPrefix(s string) (int, bool) {
	if len(s) < 4 {
		return 0, false
	}
	year, err := strconv.Atoi(s[:4])
	if err != nil || year == 0 {
		return 0, false
	}
	return year, true
}
