package extract

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tracklab/ingest/internal/ingest"
)

// Filename heuristics run as the lowest-trust metadata layer. Patterns are
// tried most-specific-first; the first match wins.
var (
	trackPrefixRe = regexp.MustCompile(`^\s*(?:\(\d{1,3}\)|\[\d{1,3}\]|\d{1,3}\s*[.\-])\s*`)

	// "Artist - Album - Title"
	threePartRe = regexp.MustCompile(`^(.+?)\s*-\s*(.+?)\s*-\s*(.+)$`)

	// "Artist - Title (Album)" / "Artist - Title (1999)" / "Artist - Title"
	twoPartRe = regexp.MustCompile(`^(.+?)\s*-\s*(.+?)(?:\s*\((.+?)\))?$`)

	// "Title (1999)" / "Title - 1999" / "Title"
	titleYearRe = regexp.MustCompile(`^(.+?)(?:\s*\((\d{4})\)|\s*-\s*(\d{4}))?$`)

	yearRe = regexp.MustCompile(`^\d{4}$`)
)

// ParseFilename extracts partial metadata from an audio file name. It never
// returns technical fields; callers merge the result under the
// fill-missing-never-overwrite rule.
func ParseFilename(name string) ingest.RawMetadata {
	stem := strings.TrimSpace(strings.TrimSuffix(name, filepath.Ext(name)))
	stem = trackPrefixRe.ReplaceAllString(stem, "")
	stem = strings.TrimSpace(stem)
	if stem == "" {
		return ingest.RawMetadata{}
	}

	if m := threePartRe.FindStringSubmatch(stem); m != nil {
		if md, ok := fromThreeParts(m[1], m[2], m[3]); ok {
			return md
		}
	}
	if m := twoPartRe.FindStringSubmatch(stem); m != nil {
		if md, ok := fromTwoParts(m[1], m[2], m[3]); ok {
			return md
		}
	}
	if m := titleYearRe.FindStringSubmatch(stem); m != nil {
		title := strings.TrimSpace(m[1])
		if !plausibleTitle(title) {
			return ingest.RawMetadata{}
		}
		md := ingest.RawMetadata{Title: ingest.String(title)}
		if year := firstNonEmpty(m[2], m[3]); year != "" {
			if y, err := strconv.Atoi(year); err == nil {
				md.Year = ingest.Int(y)
			}
		}
		return md
	}
	return ingest.RawMetadata{}
}

func fromThreeParts(artist, album, title string) (ingest.RawMetadata, bool) {
	artist, album, title = strings.TrimSpace(artist), strings.TrimSpace(album), strings.TrimSpace(title)
	if !plausibleTitle(title) || artist == "" || album == "" {
		return ingest.RawMetadata{}, false
	}
	return ingest.RawMetadata{
		Artist: ingest.String(artist),
		Album:  ingest.String(album),
		Title:  ingest.String(title),
	}, true
}

func fromTwoParts(artist, title, parenthetical string) (ingest.RawMetadata, bool) {
	artist, title = strings.TrimSpace(artist), strings.TrimSpace(title)
	if !plausibleTitle(title) || artist == "" {
		return ingest.RawMetadata{}, false
	}
	md := ingest.RawMetadata{
		Artist: ingest.String(artist),
		Title:  ingest.String(title),
	}
	if parenthetical = strings.TrimSpace(parenthetical); parenthetical != "" {
		// A 4-digit parenthetical is a year, anything else an album.
		if yearRe.MatchString(parenthetical) {
			if y, err := strconv.Atoi(parenthetical); err == nil {
				md.Year = ingest.Int(y)
			}
		} else {
			md.Album = ingest.String(parenthetical)
		}
	}
	return md, true
}

// plausibleTitle rejects track-number artifacts: purely numeric strings of
// up to three digits, or anything shorter than two characters.
func plausibleTitle(title string) bool {
	if len([]rune(title)) < 2 {
		return false
	}
	if len(title) <= 3 {
		if _, err := strconv.Atoi(title); err == nil {
			return false
		}
	}
	return true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
