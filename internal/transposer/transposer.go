// =============================================================================
// Ledger Normalizer - Date-Header Transposer
// =============================================================================
//
// The transposer converts a wide ledger (categories down column A, periods
// across the header row) into one record per (period, entity).
//
// PHASES (each fails when its predecessor found nothing):
//   1. Header discovery:   parse the header row into dates
//   2. Category discovery: collect column-A labels with their literal rows
//   3. Record emission:    dates x entities, one field per category
//
// ENTITY ATTRIBUTION:
//   A category owned by a location (e.g. "Okotoks Revenue") keeps its value
//   only in that location's row. Every other category keeps its value only in
//   the General row. All other rows get NotApplicable (a true zero), so a
//   ledger total is never counted once per entity.
//
// =============================================================================

package transposer

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/ledger-normalizer/internal/config"
	"github.com/ginjaninja78/ledger-normalizer/internal/schema"
	"github.com/ginjaninja78/ledger-normalizer/internal/table"
)

var (
	// ErrInsufficientDates means the header row held too few parsable dates
	// for the sheet to be a ledger.
	ErrInsufficientDates = errors.New("insufficient date headers")

	// ErrNoCategories means column A held no labels.
	ErrNoCategories = errors.New("no categories found")
)

// Forecast types.
const (
	ForecastActual   = "ACTUAL"
	ForecastForecast = "FORECAST"
)

// Excel serial numbers accepted as header dates: 1950-01-01 to 2100-01-01.
// Smaller numbers in a header row are amounts or years, not dates.
const (
	minSerialDate = 18264
	maxSerialDate = 73051
)

// directLayouts are tried before the configured layouts.
var directLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"1/2/2006",
	"2006/01/02",
	"2-Jan-06",
}

// Output columns shared with the normalizer's standard prefix.
var standardColumns = []string{
	schema.ColumnLocation,
	schema.ColumnMonth,
	schema.ColumnYear,
	schema.ColumnQuarter,
	schema.ColumnDate,
	schema.ColumnForecastType,
}

// =============================================================================
// TYPES
// =============================================================================

// DateHeader is one parsed header cell.
type DateHeader struct {
	Column       int
	Original     string
	Date         time.Time
	Month        string
	Year         int
	Quarter      string
	ISODate      string
	ForecastType string
}

// Category is a column-A label and the row it was found on.
type Category struct {
	Label string
	Row   int
}

// Result is a transposed ledger.
type Result struct {
	Table      *table.Table
	Headers    []DateHeader
	Categories []Category

	// Coerced counts non-empty cells that were not numbers and became 0.
	Coerced int

	// Duplicates lists labels that appeared on more than one row. The last
	// row wins.
	Duplicates []string
}

// Transposer transposes ledgers laid out as described by LedgerSettings.
type Transposer struct {
	settings config.LedgerSettings
	cutoff   time.Time
	owner    map[string]string
	logger   *slog.Logger
}

// New creates a transposer.
func New(settings config.LedgerSettings, logger *slog.Logger) (*Transposer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cutoff, err := settings.Cutoff()
	if err != nil {
		return nil, err
	}

	owner := make(map[string]string, len(settings.LocationLabels))
	for _, l := range settings.LocationLabels {
		owner[l.Label] = l.Entity
	}

	return &Transposer{
		settings: settings,
		cutoff:   cutoff,
		owner:    owner,
		logger:   logger,
	}, nil
}

// Transpose runs all three phases.
func (t *Transposer) Transpose(matrix [][]string) (*Result, error) {
	headers, err := t.DiscoverHeaders(matrix)
	if err != nil {
		return nil, err
	}

	categories, duplicates, err := t.DiscoverCategories(matrix)
	if err != nil {
		return nil, err
	}

	tbl, coerced, err := t.Emit(matrix, headers, categories)
	if err != nil {
		return nil, err
	}

	t.logger.Info("transposed ledger",
		slog.Int("dates", len(headers)),
		slog.Int("categories", len(categories)),
		slog.Int("records", tbl.Len()),
		slog.Int("coerced", coerced),
		slog.String("first_date", headers[0].ISODate),
		slog.String("last_date", headers[len(headers)-1].ISODate))

	return &Result{
		Table:      tbl,
		Headers:    headers,
		Categories: categories,
		Coerced:    coerced,
		Duplicates: duplicates,
	}, nil
}

// =============================================================================
// HEADER DISCOVERY
// =============================================================================

// DiscoverHeaders parses the header row from the start column rightward.
// Cells that are not dates are skipped. Fewer than MinDates dates is
// ErrInsufficientDates.
func (t *Transposer) DiscoverHeaders(matrix [][]string) ([]DateHeader, error) {
	var row []string
	if t.settings.HeaderRow < len(matrix) {
		row = matrix[t.settings.HeaderRow]
	}

	var headers []DateHeader
	for col := t.settings.FirstDateColumn(); col < len(row); col++ {
		cell := strings.TrimSpace(row[col])
		if cell == "" {
			continue
		}

		date, ok := t.parseDate(cell)
		if !ok {
			t.logger.Debug("skipping header cell that is not a date",
				slog.Int("column", col),
				slog.String("value", cell))
			continue
		}

		headers = append(headers, t.describe(col, cell, date))
	}

	if len(headers) < t.settings.MinDates {
		return nil, fmt.Errorf("%w: found %d, need at least %d", ErrInsufficientDates, len(headers), t.settings.MinDates)
	}

	return headers, nil
}

// parseDate tries the stored serial number, then the direct layouts, then the
// configured layouts.
func (t *Transposer) parseDate(cell string) (time.Time, bool) {
	if serial, err := strconv.ParseFloat(cell, 64); err == nil {
		// Written so NaN fails too.
		if !(serial >= minSerialDate && serial <= maxSerialDate) {
			return time.Time{}, false
		}
		date, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, false
		}
		return date, true
	}

	for _, layouts := range [][]string{directLayouts, t.settings.DateLayouts} {
		for _, layout := range layouts {
			if date, err := time.Parse(layout, cell); err == nil {
				return date, true
			}
		}
	}

	return time.Time{}, false
}

// describe derives the period fields of a date.
func (t *Transposer) describe(col int, original string, date time.Time) DateHeader {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	forecast := ForecastActual
	if day.After(t.cutoff) {
		forecast = ForecastForecast
	}

	return DateHeader{
		Column:       col,
		Original:     original,
		Date:         day,
		Month:        day.Month().String(),
		Year:         day.Year(),
		Quarter:      fmt.Sprintf("Q%d", (int(day.Month())-1)/3+1),
		ISODate:      day.Format("2006-01-02"),
		ForecastType: forecast,
	}
}

// =============================================================================
// CATEGORY DISCOVERY
// =============================================================================

// DiscoverCategories collects every non-empty column-A label below the header
// row together with its literal row index. Labels that collide with an output
// column name are skipped. duplicates lists labels seen on more than one row.
func (t *Transposer) DiscoverCategories(matrix [][]string) (categories []Category, duplicates []string, err error) {
	reserved := make(map[string]bool, len(standardColumns))
	for _, name := range standardColumns {
		reserved[name] = true
	}
	seen := make(map[string]bool)

	for row := range matrix {
		if row == t.settings.HeaderRow || len(matrix[row]) == 0 {
			continue
		}

		label := strings.TrimSpace(matrix[row][0])
		if label == "" {
			continue
		}
		if reserved[label] {
			t.logger.Warn("skipping category named like an output column",
				slog.String("category", label),
				slog.Int("row", row))
			continue
		}
		if seen[label] {
			duplicates = append(duplicates, label)
			t.logger.Warn("category appears on more than one row, the last row wins",
				slog.String("category", label),
				slog.Int("row", row))
		}
		seen[label] = true

		categories = append(categories, Category{Label: label, Row: row})
	}

	if len(categories) == 0 {
		return nil, nil, ErrNoCategories
	}

	return categories, duplicates, nil
}

// =============================================================================
// RECORD EMISSION
// =============================================================================

// Emit builds one row per (date, entity) pair, dates outermost. coerced
// counts non-empty cells that were not numbers.
func (t *Transposer) Emit(matrix [][]string, headers []DateHeader, categories []Category) (tbl *table.Table, coerced int, err error) {
	b, err := table.NewBuilder(OutputColumns(categories), 0)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to lay out ledger columns: %w", err)
	}

	for _, header := range headers {
		for _, entity := range t.settings.Entities {
			row := b.AddRow()
			put(b, schema.ColumnLocation, row, table.Text(entity.Name))
			put(b, schema.ColumnMonth, row, table.Text(header.Month))
			put(b, schema.ColumnYear, row, table.Integer(int64(header.Year)))
			put(b, schema.ColumnQuarter, row, table.Text(header.Quarter))
			put(b, schema.ColumnDate, row, table.Text(header.ISODate))
			put(b, schema.ColumnForecastType, row, table.Text(header.ForecastType))

			for _, category := range categories {
				if !t.belongsTo(category.Label, entity.Key) {
					put(b, category.Label, row, table.NotApplicable())
					continue
				}

				raw := cellAt(matrix, category.Row, header.Column)
				value, ok := table.ParseNumber(raw)
				if !ok {
					value, ok = table.ParseStripped(raw)
				}
				if !ok && raw != "" {
					coerced++
				}
				put(b, category.Label, row, table.Number(value))
			}
		}
	}

	if coerced > 0 {
		t.logger.Warn("ledger cells were not numbers and became 0", slog.Int("count", coerced))
	}

	return b.Build(), coerced, nil
}

// belongsTo applies the entity attribution rule.
func (t *Transposer) belongsTo(label, entityKey string) bool {
	if owner, ok := t.owner[label]; ok {
		return owner == entityKey
	}
	return entityKey == config.GeneralEntity
}

// OutputColumns returns the standard columns followed by the distinct
// category labels in lexicographic order.
func OutputColumns(categories []Category) []string {
	seen := make(map[string]bool, len(categories))
	var labels []string
	for _, c := range categories {
		if !seen[c.Label] {
			seen[c.Label] = true
			labels = append(labels, c.Label)
		}
	}
	sort.Strings(labels)

	return append(append([]string(nil), standardColumns...), labels...)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// cellAt returns matrix[row][col], or "" for cells past the end of a row.
func cellAt(matrix [][]string, row, col int) string {
	if row < len(matrix) && col < len(matrix[row]) {
		return strings.TrimSpace(matrix[row][col])
	}
	return ""
}

func put(b *table.Builder, column string, row int, v table.Value) {
	if err := b.Set(column, row, v); err != nil {
		panic(err)
	}
}
