package records

import (
	"fmt"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// ParseXLSXFile loads a worksheet into a Dataset using the same rules as CSV.
// An empty sheet name selects the first sheet.
func ParseXLSXFile(path, sheet string, opt Options) (*Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("open xlsx: no sheets in %s", filepath.Base(path))
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	ds := &Dataset{Name: filepath.Base(path)}
	if len(rows) == 0 {
		return ds, nil
	}
	ds.Header = append([]string(nil), rows[0]...)
	for i, row := range rows[1:] {
		if opt.MaxRows > 0 && len(ds.Records) >= opt.MaxRows {
			break
		}
		if len(row) == 0 {
			continue
		}
		// excelize trims trailing empty cells, so short rows are expected here.
		if len(row) < len(ds.Header) {
			padded := make([]string, len(ds.Header))
			copy(padded, row)
			row = padded
		}
		rec, warn := buildRecord(ds.Header, row, opt, i+2)
		if warn != nil {
			ds.Warnings = append(ds.Warnings, *warn)
		}
		ds.Records = append(ds.Records, rec)
	}
	return ds, nil
}
