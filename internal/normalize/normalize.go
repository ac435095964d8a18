// Package normalize holds the pure field conversions used by the loader and
// the exploratory cleaning pass. Every function is total: bad input degrades
// to a default value plus a validity flag instead of an error.
package normalize

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ParseDecimal converts a raw numeric field. Commas are treated as decimal
// separators (locale convention in the source files), so "1234,56" parses the
// same as "1234.56". Blank or unparseable input yields (0, false).
func ParseDecimal(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseDate accepts D/M/Y (2- or 4-digit year) and ISO Y-M-D. A 2-digit year
// above 50 maps to the 1900s, otherwise the 2000s. Anything else is invalid.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	switch {
	case strings.Contains(s, "/"):
		parts := strings.Split(s, "/")
		if len(parts) != 3 {
			return time.Time{}, false
		}
		day, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		month, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		yearStr := strings.TrimSpace(parts[2])
		year, err3 := strconv.Atoi(yearStr)
		if err1 != nil || err2 != nil || err3 != nil {
			return time.Time{}, false
		}
		if len(yearStr) == 2 {
			if year > 50 {
				year += 1900
			} else {
				year += 2000
			}
		}
		return makeDate(year, month, day)

	case strings.Contains(s, "-"):
		parts := strings.Split(s, "-")
		if len(parts) != 3 {
			return time.Time{}, false
		}
		year, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		month, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		day, err3 := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err1 != nil || err2 != nil || err3 != nil || len(strings.TrimSpace(parts[0])) != 4 {
			return time.Time{}, false
		}
		return makeDate(year, month, day)
	}

	return time.Time{}, false
}

// makeDate builds the date and rejects values time.Date would silently
// normalize, e.g. 31/02 rolling over into March.
func makeDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || d.Month() != time.Month(month) || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

// stripMarks decomposes and drops combining marks, so "Aduana Atlántida"
// becomes "Aduana Atlantida".
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// CleanText removes diacritics and the U+FFFD replacement glyph left behind by
// earlier lossy re-encodings. Applied uniformly to headers and cells during
// exploratory cleaning; the load path stores fields as received.
func CleanText(raw string) string {
	cleaned, _, err := transform.String(stripMarks, raw)
	if err != nil {
		cleaned = raw
	}
	return strings.ReplaceAll(cleaned, "�", "")
}
