package writer

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/ginjaninja78/ledger-normalizer/internal/table"
)

// CSVWriter writes a table as delimited text. Numbers carry two decimals,
// integers none and Unknown cells are empty.
type CSVWriter struct {
	Delimiter rune
}

// Extension implements Writer.
func (w *CSVWriter) Extension() string {
	return ".csv"
}

// Write implements Writer.
func (w *CSVWriter) Write(path string, tbl *table.Table) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	buffered := bufio.NewWriter(file)
	if err := w.WriteTo(buffered, tbl); err != nil {
		return err
	}
	if err := buffered.Flush(); err != nil {
		return fmt.Errorf("failed to flush file: %w", err)
	}
	return file.Close()
}

// WriteTo writes the header line and every row to out.
func (w *CSVWriter) WriteTo(out io.Writer, tbl *table.Table) error {
	cw := csv.NewWriter(out)
	if w.Delimiter != 0 {
		cw.Comma = w.Delimiter
	}

	if err := cw.Write(tbl.Columns()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(tbl.Columns()))
	for row := 0; row < tbl.Len(); row++ {
		for i, v := range tbl.Row(row) {
			record[i] = v.String()
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", row+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
