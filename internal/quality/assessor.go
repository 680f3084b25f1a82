// Package quality scores extracted metadata and repairs invalid values.
package quality

import (
	"fmt"
	"unicode/utf8"

	"github.com/tracklab/ingest/internal/ingest"
)

// Scoring weights. Essential gaps dominate; range violations cost more than
// a missing optional field so repair (which nulls the value) always raises
// the score.
const (
	penaltyMissingEssential = 0.3
	penaltyMissingOptional  = 0.1
	penaltyOutOfRange       = 0.15
	penaltyEmptyText        = 0.1
	penaltyOverlongText     = 0.05

	maxTextLen = 500

	minYear       = 1900
	maxYear       = 2030
	maxDuration   = 86400
	maxSampleRate = 192000
	minChannels   = 1
	maxChannels   = 8
)

// Assessor implements ingest.Assessor. Both methods are pure: identical
// input always yields identical output.
type Assessor struct{}

// New returns an Assessor.
func New() *Assessor {
	return &Assessor{}
}

// Assess derives a QualityReport for md. It must be re-invoked whenever the
// metadata changes; reports are never patched in place.
func (a *Assessor) Assess(md ingest.RawMetadata) ingest.QualityReport {
	score := 1.0
	var issues []string

	deduct := func(penalty float64, format string, args ...any) {
		score -= penalty
		issues = append(issues, fmt.Sprintf(format, args...))
	}

	essentials := []struct {
		name  string
		value *string
	}{
		{"artist", md.Artist},
		{"title", md.Title},
		{"album", md.Album},
	}
	for _, field := range essentials {
		if field.value == nil {
			deduct(penaltyMissingEssential, "missing essential field: %s", field.name)
		}
	}

	if md.Genre == nil {
		deduct(penaltyMissingOptional, "missing optional field: genre")
	}
	if md.Year == nil {
		deduct(penaltyMissingOptional, "missing optional field: year")
	} else if *md.Year < minYear || *md.Year > maxYear {
		deduct(penaltyOutOfRange, "year %d outside %d-%d", *md.Year, minYear, maxYear)
	}
	if md.Duration == nil {
		deduct(penaltyMissingOptional, "missing optional field: duration")
	} else if *md.Duration <= 0 || *md.Duration > maxDuration {
		deduct(penaltyOutOfRange, "duration %.1fs outside (0, %d]", *md.Duration, maxDuration)
	}
	if md.Channels == nil {
		deduct(penaltyMissingOptional, "missing optional field: channels")
	} else if *md.Channels < minChannels || *md.Channels > maxChannels {
		deduct(penaltyOutOfRange, "channel count %d outside [%d, %d]", *md.Channels, minChannels, maxChannels)
	}
	if md.SampleRate == nil {
		deduct(penaltyMissingOptional, "missing optional field: sample_rate")
	} else if *md.SampleRate <= 0 || *md.SampleRate > maxSampleRate {
		deduct(penaltyOutOfRange, "sample rate %d outside (0, %d]", *md.SampleRate, maxSampleRate)
	}

	for _, field := range []struct {
		name  string
		value *string
	}{
		{"artist", md.Artist},
		{"title", md.Title},
		{"album", md.Album},
		{"genre", md.Genre},
	} {
		if field.value == nil {
			continue
		}
		if *field.value == "" {
			deduct(penaltyEmptyText, "%s is present but empty", field.name)
		} else if len(*field.value) > maxTextLen {
			deduct(penaltyOverlongText, "%s exceeds %d characters", field.name, maxTextLen)
		}
	}

	score = clamp(score)
	return ingest.QualityReport{
		Score:        score,
		Level:        levelFor(score),
		Issues:       issues,
		Completeness: completeness(md),
	}
}

// Repair nulls out-of-range values and truncates overlong text. It never
// guesses replacements and never invents missing values.
func (a *Assessor) Repair(md ingest.RawMetadata) ingest.RawMetadata {
	out := md

	if out.Year != nil && (*out.Year < minYear || *out.Year > maxYear) {
		out.Year = nil
	}
	if out.Duration != nil && (*out.Duration <= 0 || *out.Duration > maxDuration) {
		out.Duration = nil
	}
	if out.Channels != nil && (*out.Channels < minChannels || *out.Channels > maxChannels) {
		out.Channels = nil
	}
	if out.SampleRate != nil && (*out.SampleRate <= 0 || *out.SampleRate > maxSampleRate) {
		out.SampleRate = nil
	}

	out.Artist = truncate(out.Artist)
	out.Title = truncate(out.Title)
	out.Album = truncate(out.Album)
	out.Genre = truncate(out.Genre)
	return out
}

// truncate cuts overlong text to maxTextLen bytes without splitting a rune,
// so the result stays valid UTF-8.
func truncate(s *string) *string {
	if s == nil || len(*s) <= maxTextLen {
		return s
	}
	end := maxTextLen
	for end > 0 && !utf8.RuneStart((*s)[end]) {
		end--
	}
	return ingest.String((*s)[:end])
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func levelFor(score float64) ingest.QualityLevel {
	switch {
	case score >= 0.9:
		return ingest.QualityExcellent
	case score >= 0.7:
		return ingest.QualityGood
	case score >= 0.5:
		return ingest.QualityFair
	case score >= 0.3:
		return ingest.QualityPoor
	default:
		return ingest.QualityVeryPoor
	}
}

func completeness(md ingest.RawMetadata) float64 {
	total := 10
	populated := 0
	for _, present := range []bool{
		md.Artist != nil,
		md.Title != nil,
		md.Album != nil,
		md.Genre != nil,
		md.Year != nil,
		md.Duration != nil,
		md.Channels != nil,
		md.SampleRate != nil,
		md.Bitrate != nil,
		md.BitDepth != nil,
	} {
		if present {
			populated++
		}
	}
	return float64(populated) / float64(total) * 100
}
