// =============================================================================
// Ledger Normalizer - XLSX Parser
// =============================================================================
//
// This module is responsible for reading workbooks. Three shapes are read:
//   - Raw data sheets: one header row, one record per row (client exports)
//   - Ledger matrices: the wide P&L layout read as an unstyled cell grid
//   - Reference tables: the (Client Name, Original Column Names,
//     Normalized Column Name) mapping sheet
//
// RAW DATA SHEET DISCOVERY:
//   1. The sheet named exactly "Raw Data"
//   2. The first configured variant present ("raw data", "RAW DATA", ...)
//   3. The first sheet of the workbook
//
// CELL TYPING:
//   Cells are read twice: unformatted (the stored value) and formatted (what
//   the user sees). A stored number is kept as a number unless its displayed
//   form is a date or time, in which case the displayed text is kept. This
//   keeps "$1,234.00" numeric while "1/31/2025" stays a date label.
//
// =============================================================================

package xlsxparser

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/ledger-normalizer/internal/csvparser"
	"github.com/ginjaninja78/ledger-normalizer/internal/table"
)

// ErrNoSheets is returned for a workbook without worksheets.
var ErrNoSheets = errors.New("workbook has no sheets")

// PrimaryRawDataSheet is always preferred over the configured variants.
const PrimaryRawDataSheet = "Raw Data"

// =============================================================================
// SHEET STRUCTURE
// =============================================================================

// Sheet is a worksheet read as a header row plus data rows.
type Sheet struct {
	// SourceFile is the path to the workbook.
	SourceFile string

	// Name is the worksheet name.
	Name string

	// Headers are the cleaned header cells in sheet order.
	Headers []string

	// Rows holds one typed value per header for every non-empty data row.
	Rows [][]table.Value
}

// =============================================================================
// SHEET DISCOVERY
// =============================================================================

// FindRawDataSheet picks the worksheet holding the raw records.
//
// PARAMETERS:
//   - f: The open workbook.
//   - variants: Accepted alternative names, in preference order.
//
// RETURNS:
//   - The sheet name.
//   - ErrNoSheets if the workbook is empty.
func FindRawDataSheet(f *excelize.File, variants []string) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", ErrNoSheets
	}

	present := make(map[string]bool, len(sheets))
	for _, name := range sheets {
		present[name] = true
	}

	if present[PrimaryRawDataSheet] {
		return PrimaryRawDataSheet, nil
	}
	for _, variant := range variants {
		if present[variant] {
			return variant, nil
		}
	}

	return sheets[0], nil
}

// =============================================================================
// RAW DATA
// =============================================================================

// ReadRawData opens a workbook and reads its raw-data sheet.
func ReadRawData(path string, variants []string) (*Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheetName, err := FindRawDataSheet(f, variants)
	if err != nil {
		return nil, err
	}

	sheet, err := readSheet(f, sheetName)
	if err != nil {
		return nil, err
	}
	sheet.SourceFile = path

	return sheet, nil
}

// ReadSheet opens a workbook and reads the named sheet, or the first sheet
// when name is empty.
func ReadSheet(path, name string) (*Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if name == "" {
		name = f.GetSheetName(0)
		if name == "" {
			return nil, ErrNoSheets
		}
	}

	sheet, err := readSheet(f, name)
	if err != nil {
		return nil, err
	}
	sheet.SourceFile = path

	return sheet, nil
}

// readSheet reads one worksheet as header + typed rows.
func readSheet(f *excelize.File, name string) (*Sheet, error) {
	raw, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
	}
	formatted, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
	}

	sheet := &Sheet{Name: name}
	if len(raw) == 0 {
		return sheet, nil
	}

	sheet.Headers = csvparser.CleanHeaders(formatted[0])

	for i := 1; i < len(raw); i++ {
		if isRowEmpty(raw[i]) {
			continue
		}

		var display []string
		if i < len(formatted) {
			display = formatted[i]
		}

		row := make([]table.Value, len(sheet.Headers))
		for col := range sheet.Headers {
			row[col] = typeCell(cellAt(raw[i], col), cellAt(display, col))
		}
		sheet.Rows = append(sheet.Rows, row)
	}

	return sheet, nil
}

// typeCell combines the stored and displayed form of a cell.
func typeCell(raw, display string) table.Value {
	v := table.InferCell(raw)
	if v.Kind() == table.KindNumber && looksLikeDate(display) {
		return table.Text(strings.TrimSpace(display))
	}
	return v
}

// looksLikeDate reports whether a displayed cell is a date or time rather
// than an amount: it holds a letter, '/', ':' or a digit-dash-digit run.
func looksLikeDate(display string) bool {
	runes := []rune(strings.TrimSpace(display))
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r), r == '/', r == ':':
			return true
		case r == '-' && i > 0 && i+1 < len(runes) && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]):
			return true
		}
	}
	return false
}

// Records converts the sheet into raw records for the normalizer.
func (s *Sheet) Records(clientKey string) []table.RawRecord {
	fileName := filepath.Base(s.SourceFile)
	records := make([]table.RawRecord, len(s.Rows))

	for i, row := range s.Rows {
		fields := make(map[string]table.Value, len(s.Headers))
		for col, header := range s.Headers {
			fields[header] = row[col]
		}
		records[i] = table.RawRecord{FileName: fileName, ClientKey: clientKey, Fields: fields}
	}

	return records
}

// Column returns the text of every row's cell in column header.
func (s *Sheet) Column(header string) []string {
	col := -1
	for i, h := range s.Headers {
		if h == header {
			col = i
			break
		}
	}

	values := make([]string, len(s.Rows))
	if col < 0 {
		return values
	}
	for i, row := range s.Rows {
		values[i] = row[col].Text()
	}
	return values
}

// =============================================================================
// LEDGER MATRIX
// =============================================================================

// ReadMatrix reads a worksheet as a grid of stored cell values. Date cells
// come back as Excel serial numbers; text cells as typed.
//
// PARAMETERS:
//   - path: The workbook path.
//   - sheet: The worksheet name.
//
// RETURNS:
//   - The grid, rows of varying length (trailing empty cells are dropped).
//   - An error if the workbook or sheet cannot be read.
func ReadMatrix(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if len(f.GetSheetList()) == 0 {
		return nil, ErrNoSheets
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	return rows, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// cellAt returns row[col] or "" when the row is short.
func cellAt(row []string, col int) string {
	if col < len(row) {
		return row[col]
	}
	return ""
}

// isRowEmpty checks if a row contains only empty cells.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
