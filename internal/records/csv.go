package records

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Options controls how raw rows become records.
type Options struct {
	// Delimiter for CSV. If 0, detected from the header line.
	Delimiter rune
	// DecimalComma accepts "12,5" as a number in addition to "12.5".
	DecimalComma bool
	// MaxRows limits data rows kept; 0 means unlimited.
	MaxRows int
	// Sheet selects the XLSX worksheet by name; empty means the first sheet.
	Sheet string
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{}
}

// Dataset is the parsed content of one uploaded file.
type Dataset struct {
	Name     string
	Header   []string
	Records  []Record
	Warnings []ParseError
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// ParseError describes a row that was repaired or skipped. It never aborts a parse.
type ParseError struct {
	Line   int
	Reason string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseCSVFile reads and parses a CSV file from disk.
func ParseCSVFile(path string, opt Options) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	ds, err := ParseCSV(f, opt)
	if err != nil {
		return nil, err
	}
	ds.Name = filepath.Base(path)
	return ds, nil
}

// ParseCSV parses CSV text using the first line as header. A row with broken
// quoting never swallows the rows after it: reading resumes on the next
// physical line.
func ParseCSV(r io.Reader, opt Options) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(firstLine(data))
	}
	starts := lineStarts(data)
	readerAt := func(line int) *csv.Reader {
		cr := csv.NewReader(bytes.NewReader(data[starts[line-1]:]))
		cr.Comma = delim
		cr.FieldsPerRecord = -1
		return cr
	}

	// first is the physical line the current reader started on.
	first := 1
	cr := readerAt(first)
	ds := &Dataset{}
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ds, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	ds.Header = append([]string(nil), header...)

	for {
		if opt.MaxRows > 0 && len(ds.Records) >= opt.MaxRows {
			break
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, fmt.Errorf("read row: %w", err)
			}
			line := first + pe.StartLine - 1
			if rec, ok := repairBareQuote(ds.Header, physicalLine(data, starts, line), delim, opt, pe.Err); ok {
				ds.Records = append(ds.Records, rec)
				ds.Warnings = append(ds.Warnings, ParseError{Line: line, Reason: "repaired: " + pe.Err.Error()})
			} else {
				ds.Warnings = append(ds.Warnings, ParseError{Line: line, Reason: "skipped: " + pe.Err.Error()})
			}
			if line >= len(starts) {
				break
			}
			first = line + 1
			cr = readerAt(first)
			continue
		}
		pos, _ := cr.FieldPos(0)
		line := first + pos - 1
		rec, warn := buildRecord(ds.Header, row, opt, line)
		if warn != nil {
			ds.Warnings = append(ds.Warnings, *warn)
		}
		ds.Records = append(ds.Records, rec)
	}
	return ds, nil
}

// repairBareQuote re-reads a line whose only fault is a quote inside an
// unquoted field, keeping the quote as text. Unterminated or misplaced quotes
// are not repaired.
func repairBareQuote(header []string, line string, delim rune, opt Options, cause error) (Record, bool) {
	if !errors.Is(cause, csv.ErrBareQuote) {
		return nil, false
	}
	lr := csv.NewReader(strings.NewReader(line))
	lr.Comma = delim
	lr.FieldsPerRecord = -1
	lr.LazyQuotes = true
	row, err := lr.Read()
	if err != nil {
		return nil, false
	}
	rec, _ := buildRecord(header, row, opt, 0)
	return rec, true
}

// lineStarts returns the byte offset of every physical line.
func lineStarts(data []byte) []int {
	starts := []int{0}
	for i, b := range data {
		if b == '\n' && i+1 < len(data) {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// physicalLine returns line n (1-based) without its line ending.
func physicalLine(data []byte, starts []int, n int) string {
	if n < 1 || n > len(starts) {
		return ""
	}
	end := len(data)
	if n < len(starts) {
		end = starts[n]
	}
	return strings.TrimRight(string(data[starts[n-1]:end]), "\r\n")
}

// buildRecord maps cells onto header names. Short rows are padded with Absent
// and extra cells are dropped.
func buildRecord(header, row []string, opt Options, line int) (Record, *ParseError) {
	rec := make(Record, len(header))
	for i, col := range header {
		if i < len(row) {
			rec[col] = Coerce(row[i], opt.DecimalComma)
		} else {
			rec[col] = Absent()
		}
	}
	switch {
	case len(row) < len(header):
		return rec, &ParseError{Line: line, Reason: fmt.Sprintf("padded: %d of %d fields", len(row), len(header))}
	case len(row) > len(header):
		return rec, &ParseError{Line: line, Reason: fmt.Sprintf("truncated: %d of %d fields", len(row), len(header))}
	}
	return rec, nil
}

func firstLine(data []byte) string {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return string(data[:i])
	}
	return string(data)
}

// sniffDelimiter picks the most frequent unquoted candidate in the header line.
func sniffDelimiter(line string) rune {
	candidates := []rune{',', ';', '\t', '|'}
	counts := make(map[rune]int, len(candidates))
	inQuote := false
	for _, ch := range line {
		if ch == '"' {
			inQuote = !inQuote
			continue
		}
		if !inQuote {
			counts[ch]++
		}
	}
	best := ','
	for _, c := range candidates {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}
