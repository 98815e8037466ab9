// =============================================================================
// Ledger Normalizer - Output Writers
// =============================================================================
//
// This module writes a finished table to disk. One Writer exists per output
// format; all of them keep the table's column order and row order so that
// reruns on the same input produce identical artifacts.
//
// FORMATS:
//   csv     encoding/csv, numbers with two decimals, Unknown as empty cell
//   xlsx    excelize stream writer, numbers formatted "0.00"
//   sqlite  one table, rebuilt on every write
//
// =============================================================================

package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/ledger-normalizer/internal/config"
	"github.com/ginjaninja78/ledger-normalizer/internal/table"
)

// Writer writes a table to a file.
type Writer interface {
	// Write replaces the file at path with the table.
	Write(path string, tbl *table.Table) error

	// Extension is the file extension including the dot.
	Extension() string
}

// =============================================================================
// WRITE OPTIONS
// =============================================================================

// Options contains options shared by the writers.
type Options struct {
	// Delimiter is the CSV field separator.
	// Default: ','
	Delimiter rune

	// SheetName is the worksheet written by the xlsx writer.
	// Default: "Normalized"
	SheetName string

	// TableName is the table written by the sqlite writer.
	// Default: "normalized_records"
	TableName string
}

// DefaultOptions returns the default write options.
func DefaultOptions() Options {
	return Options{
		Delimiter: ',',
		SheetName: "Normalized",
		TableName: "normalized_records",
	}
}

// New returns the writer for format.
//
// PARAMETERS:
//   - format: One of config.FormatCSV, config.FormatXLSX, config.FormatSQLite.
//   - opts: Write options.
//
// RETURNS:
//   - The writer, or an error for an unknown format.
func New(format string, opts Options) (Writer, error) {
	switch strings.ToLower(format) {
	case config.FormatCSV:
		return &CSVWriter{Delimiter: opts.Delimiter}, nil
	case config.FormatXLSX:
		return &XLSXWriter{SheetName: opts.SheetName}, nil
	case config.FormatSQLite:
		return &SQLiteWriter{TableName: opts.TableName}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// WriteAll writes tbl once per format to dir/baseName<ext>.
//
// RETURNS:
//   - The paths written, in format order.
//   - An error on the first failing format.
func WriteAll(dir, baseName string, formats []string, tbl *table.Table, opts Options) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var paths []string
	for _, format := range formats {
		w, err := New(format, opts)
		if err != nil {
			return paths, err
		}

		path := filepath.Join(dir, baseName+w.Extension())
		if err := w.Write(path, tbl); err != nil {
			return paths, fmt.Errorf("failed to write %s output: %w", format, err)
		}
		paths = append(paths, path)
	}

	return paths, nil
}
