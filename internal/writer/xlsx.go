package writer

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/ledger-normalizer/internal/table"
)

// twoDecimals is excelize's built-in number format "0.00".
const twoDecimals = 2

// XLSXWriter writes a table to a single-sheet workbook.
type XLSXWriter struct {
	SheetName string
}

// Extension implements Writer.
func (w *XLSXWriter) Extension() string {
	return ".xlsx"
}

// Write implements Writer. Numbers are stored as numbers with a two-decimal
// display format so the workbook reads back the same values.
func (w *XLSXWriter) Write(path string, tbl *table.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := w.SheetName
	if sheet == "" {
		sheet = DefaultOptions().SheetName
	}
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{NumFmt: twoDecimals})
	if err != nil {
		return fmt.Errorf("failed to create number style: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to open stream writer: %w", err)
	}

	columns := tbl.Columns()
	header := make([]interface{}, len(columns))
	for i, name := range columns {
		header[i] = name
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for row := 0; row < tbl.Len(); row++ {
		values := tbl.Row(row)
		cells := make([]interface{}, len(values))
		for i, v := range values {
			cells[i] = cellValue(v, style)
		}

		cell, err := excelize.CoordinatesToCellName(1, row+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", row+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func cellValue(v table.Value, numberStyle int) interface{} {
	switch v.Kind() {
	case table.KindNumber:
		d, _ := v.Decimal()
		return excelize.Cell{StyleID: numberStyle, Value: d.InexactFloat64()}
	case table.KindInteger:
		d, _ := v.Decimal()
		return d.IntPart()
	case table.KindText:
		return v.Text()
	default:
		return nil
	}
}
