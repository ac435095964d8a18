package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csolorzano/importaciones/internal/models"
)

func row(line int, fields map[string]string) models.RawRow {
	return models.RawRow{Line: line, Fields: fields}
}

func TestClean(t *testing.T) {
	t.Run("Expect: diacritics and mojibake to be stripped from headers and cells", func(t *testing.T) {
		header := []string{"país", "descripción"}
		rows := []models.RawRow{
			row(2, map[string]string{"país": "Atlántida", "descripción": "Caf�e"}),
		}

		cleanHeader, cleanRows := Clean(header, rows)

		assert.Equal(t, []string{"pais", "descripcion"}, cleanHeader)
		require.Len(t, cleanRows, 1)
		assert.Equal(t, "Atlantida", cleanRows[0].Get("pais"))
		assert.Equal(t, "Cafe", cleanRows[0].Get("descripcion"))
		// input untouched
		assert.Equal(t, "Atlántida", rows[0].Get("país"))
	})
}

func TestAnalyze(t *testing.T) {
	t.Run("Expect: numeric columns to be described with IQR outliers", func(t *testing.T) {
		header := []string{"producto", "valor"}
		rows := []models.RawRow{
			row(2, map[string]string{"producto": "Laptop", "valor": "1"}),
			row(3, map[string]string{"producto": "Mouse", "valor": "2"}),
			row(4, map[string]string{"producto": "Teclado", "valor": "3"}),
			row(5, map[string]string{"producto": "Monitor", "valor": "4"}),
			row(6, map[string]string{"producto": "Servidor", "valor": "100"}),
		}

		report := Analyze(header, rows)

		assert.Equal(t, 5, report.Rows)
		assert.Zero(t, report.Duplicates)
		require.Len(t, report.Columns, 2)

		producto := report.Columns[0]
		assert.False(t, producto.Numeric)
		assert.Equal(t, 5, producto.Count)

		valor := report.Columns[1]
		assert.True(t, valor.Numeric)
		assert.InDelta(t, 22.0, valor.Mean, 1e-9)
		assert.InDelta(t, 1.0, valor.Min, 1e-9)
		assert.InDelta(t, 2.0, valor.Q1, 1e-9)
		assert.InDelta(t, 3.0, valor.Median, 1e-9)
		assert.InDelta(t, 4.0, valor.Q3, 1e-9)
		assert.InDelta(t, 100.0, valor.Max, 1e-9)
		assert.Equal(t, 1, valor.Outliers)
	})

	t.Run("Expect: comma decimals to count as numeric", func(t *testing.T) {
		header := []string{"valor"}
		rows := []models.RawRow{
			row(2, map[string]string{"valor": "1,5"}),
			row(3, map[string]string{"valor": "2,5"}),
		}

		report := Analyze(header, rows)

		require.Len(t, report.Columns, 1)
		assert.True(t, report.Columns[0].Numeric)
		assert.InDelta(t, 2.0, report.Columns[0].Mean, 1e-9)
	})

	t.Run("Expect: blank cells to be counted as missing", func(t *testing.T) {
		header := []string{"valor"}
		rows := []models.RawRow{
			row(2, map[string]string{"valor": ""}),
			row(3, map[string]string{"valor": "  "}),
			row(4, map[string]string{"valor": "5"}),
		}

		report := Analyze(header, rows)

		require.Len(t, report.Columns, 1)
		assert.Equal(t, 2, report.Columns[0].Missing)
		assert.Equal(t, 1, report.Columns[0].Count)
		assert.True(t, report.Columns[0].Numeric)
	})

	t.Run("Expect: repeated rows to be counted as duplicates", func(t *testing.T) {
		header := []string{"a", "b"}
		rows := []models.RawRow{
			row(2, map[string]string{"a": "1", "b": "x"}),
			row(3, map[string]string{"a": "1", "b": "x"}),
			row(4, map[string]string{"a": "2", "b": "y"}),
		}

		report := Analyze(header, rows)

		assert.Equal(t, 3, report.Rows)
		assert.Equal(t, 1, report.Duplicates)
	})
}

func TestReport_Write(t *testing.T) {
	header := []string{"valor"}
	rows := []models.RawRow{
		row(2, map[string]string{"valor": "1"}),
		row(3, map[string]string{"valor": "2"}),
	}

	var sb strings.Builder
	Analyze(header, rows).Write(&sb)
	out := sb.String()

	assert.Contains(t, out, "Rows: 2")
	assert.Contains(t, out, "valor: 0")
	assert.Contains(t, out, "mean=1.5000")
}
