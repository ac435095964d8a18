package parser

import (
	"fmt"
	"os"
	"strings"
)

// Diagnostic is a read-only structural profile of an input file, used to
// inspect malformed sources before (or instead of) loading them.
type Diagnostic struct {
	FirstBytes      string      `json:"first_bytes"`
	TotalLines      int         `json:"total_lines"`
	ColumnCounts    map[int]int `json:"column_counts"`
	MostCommonWidth int         `json:"most_common_width"`
	SampleLines     []string    `json:"sample_lines"`
}

// Diagnose profiles a file: raw byte preview, line count, a histogram of
// column counts per line and the first sampleSize raw lines. It never mutates
// anything.
func Diagnose(path string, delimiter rune, sampleSize int) (*Diagnostic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	preview := data
	if len(preview) > 100 {
		preview = preview[:100]
	}

	diag := &Diagnostic{
		FirstBytes:   fmt.Sprintf("%q", preview),
		ColumnCounts: make(map[int]int),
	}

	for _, line := range splitLines(string(data)) {
		diag.TotalLines++
		width := strings.Count(line, string(delimiter)) + 1
		diag.ColumnCounts[width]++
		if len(diag.SampleLines) < sampleSize {
			diag.SampleLines = append(diag.SampleLines, line)
		}
	}

	best := 0
	for width, count := range diag.ColumnCounts {
		if count > best || (count == best && width > diag.MostCommonWidth) {
			best = count
			diag.MostCommonWidth = width
		}
	}

	return diag, nil
}
