// Package parser turns raw delimited bytes into ordered row mappings. The
// source files offer no schema guarantees: wrong column counts, embedded
// delimiters in free text and mixed byte encodings are all expected, so
// decoding tries an ordered list of strategies and keeps the first one that
// yields rows.
package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/csolorzano/importaciones/internal/models"
)

const DefaultDelimiter = ';'

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

type Decoder struct {
	Delimiter rune
}

func NewDecoder(delimiter rune) *Decoder {
	if delimiter == 0 {
		delimiter = DefaultDelimiter
	}
	return &Decoder{Delimiter: delimiter}
}

// byteEncoding is one entry of the encoding fallback chain. A nil charmap
// means the bytes are taken as UTF-8 and must validate as such.
type byteEncoding struct {
	name string
	cm   *charmap.Charmap
}

var fallbackEncodings = []byteEncoding{
	{name: "utf-8"},
	{name: "latin-1", cm: charmap.ISO8859_1},
	{name: "windows-1252", cm: charmap.Windows1252},
	{name: "iso-8859-1", cm: charmap.ISO8859_1},
}

// strategies is tried in order; the first one producing at least one row wins.
// Selection is global per file, partial results are never merged.
var strategies = []struct {
	name string
	run  func(d *Decoder, text string) ([]models.RawRow, *models.DecodeReport, bool)
}{
	{"strict", (*Decoder).strictParse},
	{"lenient", (*Decoder).lenientParse},
	{"line-repair", (*Decoder).repairParse},
}

// DecodeFile reads and decodes a whole file. Structural problems never fail
// the decode; only a byte stream from which no strategy under any encoding
// recovers anything is terminal.
func (d *Decoder) DecodeFile(path string) ([]models.RawRow, *models.DecodeReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return d.Decode(data)
}

func (d *Decoder) Decode(data []byte) ([]models.RawRow, *models.DecodeReport, error) {
	data = bytes.TrimPrefix(data, byteOrderMark)

	for _, enc := range fallbackEncodings {
		text, err := decodeWith(enc, data)
		if err != nil {
			continue
		}
		for _, st := range strategies {
			rows, report, ok := st.run(d, text)
			if !ok {
				continue
			}
			report.Strategy = st.name
			report.Encoding = enc.name
			report.RowsDecoded = len(rows)
			return rows, report, nil
		}
	}

	names := make([]string, 0, len(strategies))
	for _, st := range strategies {
		names = append(names, st.name)
	}
	encs := make([]string, 0, len(fallbackEncodings))
	for _, enc := range fallbackEncodings {
		encs = append(encs, enc.name)
	}
	return nil, nil, fmt.Errorf("could not read file: no rows decoded (strategies tried: %s; encodings tried: %s)",
		strings.Join(names, ", "), strings.Join(encs, ", "))
}

func decodeWith(enc byteEncoding, data []byte) (string, error) {
	if enc.cm == nil {
		if !utf8.Valid(data) {
			return "", fmt.Errorf("input is not valid utf-8")
		}
		return string(data), nil
	}
	decoded, err := enc.cm.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func (d *Decoder) strictParse(text string) ([]models.RawRow, *models.DecodeReport, bool) {
	return d.readerParse(text, false, false)
}

func (d *Decoder) lenientParse(text string) ([]models.RawRow, *models.DecodeReport, bool) {
	return d.readerParse(text, true, true)
}

// readerParse runs a whole-file csv read. A line is accepted only when its
// field count equals the header's; everything else is dropped with a recorded
// reason. The lenient variant relaxes quoting and trims surrounding space.
func (d *Decoder) readerParse(text string, lazyQuotes, trimSpace bool) ([]models.RawRow, *models.DecodeReport, bool) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = d.Delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = lazyQuotes
	r.TrimLeadingSpace = trimSpace

	report := &models.DecodeReport{}

	header, err := r.Read()
	if err == io.EOF {
		// Empty file: zero rows, not a failure.
		return nil, report, true
	}
	if err != nil {
		return nil, nil, false
	}
	if trimSpace {
		trimFields(header)
	}
	want := len(header)
	if want < 2 {
		// The delimiter never appears; this is not a plausible header.
		return nil, nil, false
	}
	report.Header = header

	var rows []models.RawRow
	dataSeen := false
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			dataSeen = true
			report.DroppedLines = append(report.DroppedLines, models.LineIssue{
				Line:   parseErrorLine(err),
				Detail: "unparseable line",
			})
			continue
		}
		dataSeen = true
		line, _ := r.FieldPos(0)
		if len(rec) != want {
			report.DroppedLines = append(report.DroppedLines, models.LineIssue{
				Line:   line,
				Detail: fmt.Sprintf("expected %d columns, found %d", want, len(rec)),
			})
			continue
		}
		if trimSpace {
			trimFields(rec)
		}
		rows = append(rows, models.RawRow{Line: line, Fields: zipRow(header, rec)})
	}

	// A header-only file is a successful zero-row decode. When data lines
	// exist, this strategy only wins if it kept at least one of them.
	return rows, report, len(rows) > 0 || !dataSeen
}

// repairParse processes the file line by line. Lines with too many fields had
// the delimiter embedded in free text: the excess trailing fields are re-joined
// into the last column. Lines with too few fields are padded with empty
// strings. Every repaired or dropped line number is recorded.
func (d *Decoder) repairParse(text string) ([]models.RawRow, *models.DecodeReport, bool) {
	lines := splitLines(text)
	if len(lines) == 0 {
		return nil, &models.DecodeReport{}, true
	}

	header, err := d.parseLine(lines[0])
	if err != nil || len(header) < 2 {
		return nil, nil, false
	}
	want := len(header)
	report := &models.DecodeReport{Header: header}

	var rows []models.RawRow
	dataSeen := false
	for i, line := range lines[1:] {
		lineNum := i + 2
		if strings.TrimSpace(line) == "" {
			continue
		}
		dataSeen = true

		rec, err := d.parseLine(line)
		if err != nil {
			report.DroppedLines = append(report.DroppedLines, models.LineIssue{
				Line:   lineNum,
				Detail: "unparseable line",
			})
			continue
		}

		switch {
		case len(rec) == want:
			// accepted as-is
		case len(rec) > want:
			merged := strings.Join(rec[want-1:], string(d.Delimiter))
			rec = append(rec[:want-1], merged)
			report.RepairedLines = append(report.RepairedLines, models.LineIssue{
				Line:   lineNum,
				Detail: "merged extra trailing fields into last column",
			})
		default:
			for len(rec) < want {
				rec = append(rec, "")
			}
			report.RepairedLines = append(report.RepairedLines, models.LineIssue{
				Line:   lineNum,
				Detail: "padded missing trailing columns",
			})
		}

		rows = append(rows, models.RawRow{Line: lineNum, Fields: zipRow(header, rec)})
	}

	return rows, report, len(rows) > 0 || !dataSeen
}

// parseLine splits a single physical line honoring quoting.
func (d *Decoder) parseLine(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = d.Delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	return r.Read()
}

func splitLines(text string) []string {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	return lines
}

func zipRow(header, rec []string) map[string]string {
	fields := make(map[string]string, len(header))
	for i, col := range header {
		fields[col] = rec[i]
	}
	return fields
}

func trimFields(rec []string) {
	for i, f := range rec {
		rec[i] = strings.TrimSpace(f)
	}
}

func parseErrorLine(err error) int {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return pe.Line
	}
	return 0
}
