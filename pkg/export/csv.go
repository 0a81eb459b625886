// Package export renders tabular data for download.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// Table is a header row plus data rows. Rows shorter than Columns are padded with empty cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// WriteCSV streams t to w as RFC 4180 CSV.
func WriteCSV(w io.Writer, t Table) error {
	if len(t.Columns) == 0 {
		return errors.New("csv requires at least one column")
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(t.Columns))
	for i, row := range t.Rows {
		if len(row) > len(t.Columns) {
			return fmt.Errorf("row %d has %d cells, expected at most %d", i, len(row), len(t.Columns))
		}
		for j := range record {
			record[j] = ""
			if j < len(row) {
				record[j] = row[j]
			}
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
