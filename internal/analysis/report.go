// Package analysis implements the exploratory cleaning and profiling pass run
// over a decoded file before deciding how to load it. It is read-only and
// independent from the ingestion pipeline.
package analysis

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/csolorzano/importaciones/internal/models"
	"github.com/csolorzano/importaciones/internal/normalize"
)

// ColumnProfile describes one column of the cleaned dataset.
type ColumnProfile struct {
	Name     string  `json:"name"`
	Missing  int     `json:"missing"`
	Numeric  bool    `json:"numeric"`
	Count    int     `json:"count"`
	Mean     float64 `json:"mean,omitempty"`
	Std      float64 `json:"std,omitempty"`
	Min      float64 `json:"min,omitempty"`
	Q1       float64 `json:"q1,omitempty"`
	Median   float64 `json:"median,omitempty"`
	Q3       float64 `json:"q3,omitempty"`
	Max      float64 `json:"max,omitempty"`
	Outliers int     `json:"outliers"`
}

// Report is the result of profiling a dataset.
type Report struct {
	Rows       int             `json:"rows"`
	Duplicates int             `json:"duplicates"`
	Columns    []ColumnProfile `json:"columns"`
}

// Clean applies the text cleanup to every header name and cell: diacritics
// are stripped and the mojibake replacement glyph removed. The input is not
// modified.
func Clean(header []string, rows []models.RawRow) ([]string, []models.RawRow) {
	cleanHeader := make([]string, len(header))
	for i, col := range header {
		cleanHeader[i] = normalize.CleanText(col)
	}

	cleanRows := make([]models.RawRow, len(rows))
	for i, row := range rows {
		fields := make(map[string]string, len(row.Fields))
		for j, col := range header {
			fields[cleanHeader[j]] = normalize.CleanText(row.Fields[col])
		}
		cleanRows[i] = models.RawRow{Line: row.Line, Fields: fields}
	}
	return cleanHeader, cleanRows
}

// Analyze profiles a cleaned dataset: missing values per column, duplicated
// rows, and for numeric columns descriptive statistics plus IQR-based outlier
// counts.
func Analyze(header []string, rows []models.RawRow) *Report {
	report := &Report{Rows: len(rows)}

	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		parts := make([]string, len(header))
		for i, col := range header {
			parts[i] = row.Fields[col]
		}
		key := strings.Join(parts, "\x1f")
		if seen[key] {
			report.Duplicates++
		}
		seen[key] = true
	}

	for _, col := range header {
		profile := ColumnProfile{Name: col, Numeric: true}
		var values []float64
		for _, row := range rows {
			raw := strings.TrimSpace(row.Fields[col])
			if raw == "" {
				profile.Missing++
				continue
			}
			v, ok := normalize.ParseDecimal(raw)
			if !ok {
				profile.Numeric = false
				continue
			}
			values = append(values, v)
		}
		profile.Count = len(rows) - profile.Missing

		if profile.Numeric && len(values) > 0 {
			describe(&profile, values)
		} else {
			profile.Numeric = false
		}
		report.Columns = append(report.Columns, profile)
	}

	return report
}

func describe(profile *ColumnProfile, values []float64) {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	n := float64(len(sorted))
	mean := sum / n

	var variance float64
	for _, v := range sorted {
		variance += (v - mean) * (v - mean)
	}
	if len(sorted) > 1 {
		variance /= n - 1
	}

	profile.Mean = mean
	profile.Std = math.Sqrt(variance)
	profile.Min = sorted[0]
	profile.Max = sorted[len(sorted)-1]
	profile.Q1 = quantile(sorted, 0.25)
	profile.Median = quantile(sorted, 0.5)
	profile.Q3 = quantile(sorted, 0.75)

	iqr := profile.Q3 - profile.Q1
	lower := profile.Q1 - 1.5*iqr
	upper := profile.Q3 + 1.5*iqr
	for _, v := range sorted {
		if v < lower || v > upper {
			profile.Outliers++
		}
	}
}

// quantile uses linear interpolation between the two nearest ranks.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Write renders the report as a plain-text summary.
func (r *Report) Write(w io.Writer) {
	fmt.Fprintf(w, "Rows: %d\n", r.Rows)
	fmt.Fprintf(w, "Duplicated rows: %d\n", r.Duplicates)
	fmt.Fprintln(w, "--- Missing values per column ---")
	for _, col := range r.Columns {
		fmt.Fprintf(w, "%s: %d\n", col.Name, col.Missing)
	}
	fmt.Fprintln(w, "--- Numeric columns (IQR outliers) ---")
	for _, col := range r.Columns {
		if !col.Numeric {
			continue
		}
		fmt.Fprintf(w, "%s: count=%d mean=%.4f std=%.4f min=%.4f q1=%.4f median=%.4f q3=%.4f max=%.4f outliers=%d\n",
			col.Name, col.Count, col.Mean, col.Std, col.Min, col.Q1, col.Median, col.Q3, col.Max, col.Outliers)
	}
}
