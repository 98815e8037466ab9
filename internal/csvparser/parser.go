// =============================================================================
// Ledger Normalizer - CSV Parser Module
// =============================================================================
//
// This module is responsible for parsing delimited-text inputs: raw client
// exports saved as CSV and the reference mapping table. It handles:
//   - Different delimiters (comma, pipe, tab, semicolon)
//   - Different encodings (UTF-8, Windows-1252, ISO-8859-1)
//   - A leading UTF-8 byte order mark
//   - Duplicate and empty headers
//   - Quoted fields and ragged rows
//
// Header names are NFC-normalized so a header typed on one machine matches the
// same header exported from another (e.g. a decomposed "é").
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ginjaninja78/ledger-normalizer/internal/config"
	"github.com/ginjaninja78/ledger-normalizer/internal/table"
)

// =============================================================================
// CSV DATA STRUCTURE
// =============================================================================

// CSVData represents the parsed CSV file.
type CSVData struct {
	// Headers contains the cleaned column headers in file order.
	Headers []string

	// Rows contains the data rows as maps of header -> value.
	Rows []map[string]string

	// SourceFile is the path to the source CSV file.
	SourceFile string

	// RowCount is the total number of data rows (excluding the header).
	RowCount int

	// ColumnCount is the number of columns in the CSV.
	ColumnCount int
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a CSV file and returns the parsed data.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//   - settings: The CSV parsing settings from the main configuration.
//
// RETURNS:
//   - A pointer to the CSVData struct containing the parsed data.
//   - An error if the file cannot be read or parsed.
//
// PARSING PROCESS:
//   1. Open the file and wrap it in a decoder for the configured encoding
//   2. Configure the CSV reader with the configured delimiter
//   3. Read and clean the header row
//   4. Convert each non-empty data row to a map of header -> value
func Parse(filePath string, settings config.CSVSettings) (*CSVData, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	data, err := ParseReader(file, settings)
	if err != nil {
		return nil, err
	}
	data.SourceFile = filePath

	return data, nil
}

// ParseReader parses CSV content from r. See Parse.
func ParseReader(r io.Reader, settings config.CSVSettings) (*CSVData, error) {
	reader, err := decodeReader(r, settings.Encoding)
	if err != nil {
		return nil, err
	}

	csvReader := csv.NewReader(reader)
	configureReader(csvReader, settings)

	allRows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	if len(allRows) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	headers := CleanHeaders(allRows[0])
	dataRows := extractDataRows(allRows[1:], headers)

	return &CSVData{
		Headers:     headers,
		Rows:        dataRows,
		RowCount:    len(dataRows),
		ColumnCount: len(headers),
	}, nil
}

// decodeReader wraps r so it yields UTF-8 regardless of the source encoding.
//
// SUPPORTED ENCODINGS:
//   - "UTF-8" (a leading byte order mark is dropped)
//   - "Windows-1252" / "CP1252"
//   - "ISO-8859-1" / "Latin-1"
func decodeReader(r io.Reader, name string) (io.Reader, error) {
	var decoder *encoding.Decoder

	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "UTF-8", "UTF8":
		decoder = unicode.UTF8BOM.NewDecoder()
	case "WINDOWS-1252", "CP1252":
		decoder = charmap.Windows1252.NewDecoder()
	case "ISO-8859-1", "LATIN-1", "LATIN1":
		decoder = charmap.ISO8859_1.NewDecoder()
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}

	return transform.NewReader(bufio.NewReader(r), decoder), nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	reader.Comma = Delimiter(settings.Delimiter)

	// Spreadsheet exports are often ragged and loosely quoted.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

// Delimiter converts a configured delimiter name into the separator rune.
// Empty means a comma.
func Delimiter(name string) rune {
	switch name {
	case "\\t", "tab", "TAB":
		return '\t'
	case "|", "pipe", "PIPE":
		return '|'
	case ";", "semicolon":
		return ';'
	case "":
		return ','
	default:
		return []rune(name)[0]
	}
}

// CleanHeaders cleans and normalizes header values. Workbook headers go
// through the same rules so both formats agree on names.
//
// CLEANING OPERATIONS:
//   - Trim whitespace and apply Unicode NFC normalization
//   - Name empty headers "Column_<n>" (1-based)
//   - Suffix repeated headers with ".1", ".2", ... in file order
func CleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	seen := make(map[string]int, len(headers))

	for i, header := range headers {
		header = CleanHeader(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}

		if n, dup := seen[header]; dup {
			seen[header] = n + 1
			header = fmt.Sprintf("%s.%d", header, n+1)
		} else {
			seen[header] = 0
		}

		cleaned[i] = header
	}

	return cleaned
}

// CleanHeader trims and NFC-normalizes a single header cell.
func CleanHeader(header string) string {
	return norm.NFC.String(strings.TrimSpace(header))
}

// extractDataRows converts data rows to maps, skipping empty rows.
func extractDataRows(rows [][]string, headers []string) []map[string]string {
	dataRows := make([]map[string]string, 0, len(rows))

	for _, row := range rows {
		if isRowEmpty(row) {
			continue
		}

		rowMap := make(map[string]string, len(headers))
		for colIndex, header := range headers {
			if colIndex < len(row) {
				rowMap[header] = strings.TrimSpace(row[colIndex])
			} else {
				rowMap[header] = ""
			}
		}

		dataRows = append(dataRows, rowMap)
	}

	return dataRows
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// RAW RECORD CONVERSION
// =============================================================================

// Records converts parsed rows into raw records for the normalizer. Cells are
// typed with table.InferCell; the file name is the source file's base name.
func (d *CSVData) Records(clientKey string) []table.RawRecord {
	fileName := filepath.Base(d.SourceFile)
	records := make([]table.RawRecord, len(d.Rows))

	for i, row := range d.Rows {
		fields := make(map[string]table.Value, len(d.Headers))
		for _, header := range d.Headers {
			fields[header] = table.InferCell(row[header])
		}
		records[i] = table.RawRecord{FileName: fileName, ClientKey: clientKey, Fields: fields}
	}

	return records
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// GetColumnByHeader returns all values for a specific column.
func GetColumnByHeader(data *CSVData, header string) []string {
	values := make([]string, len(data.Rows))
	for i, row := range data.Rows {
		values[i] = row[header]
	}
	return values
}
