package transposer

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/ledger-normalizer/internal/config"
	"github.com/ginjaninja78/ledger-normalizer/internal/table"
)

func ledgerSettings(t *testing.T) config.LedgerSettings {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	return cfg.Ledger
}

func newTransposer(t *testing.T) *Transposer {
	t.Helper()
	tr, err := New(ledgerSettings(t), nil)
	require.NoError(t, err)
	return tr
}

// sampleLedger has three months with the site revenues adding up to the
// location total.
func sampleLedger() [][]string {
	return [][]string{
		{"", "Jan-23", "Feb-23", "Mar-23"},
		{"Okotoks Revenue", "100", "110", "120"},
		{"Barlow NE Revenue", "200", "210", "220"},
		{},
		{"Eastpoint SE Revenue", "50", "55", "60"},
		{"Corp Revenue", "5", "5", "5"},
		{"Total Location Revenue", "350", "375", "400"},
		{"Professional Fees", "$1,000", "n/a"},
	}
}

func TestDiscoverHeadersSkipsUnparsableCells(t *testing.T) {
	matrix := [][]string{{"", "Jan-23", "Feb-23", "not a date", "Mar-23"}}

	headers, err := newTransposer(t).DiscoverHeaders(matrix)
	require.NoError(t, err)
	require.Len(t, headers, 3)

	assert.Equal(t, []int{1, 2, 4}, []int{headers[0].Column, headers[1].Column, headers[2].Column})
	assert.Equal(t, "January", headers[0].Month)
	assert.Equal(t, 2023, headers[0].Year)
	assert.Equal(t, "Q1", headers[0].Quarter)
	assert.Equal(t, "2023-01-01", headers[0].ISODate)
	assert.Equal(t, "2023-03-01", headers[2].ISODate)
	for _, h := range headers {
		assert.Equal(t, ForecastActual, h.ForecastType)
	}
}

func TestDiscoverHeadersInsufficientDates(t *testing.T) {
	tr := newTransposer(t)

	_, err := tr.DiscoverHeaders([][]string{{"", "Jan-23", "Feb-23"}})
	assert.True(t, errors.Is(err, ErrInsufficientDates))

	result, err := tr.Transpose([][]string{
		{"", "Jan-23", "Feb-23"},
		{"Okotoks Revenue", "1", "2"},
	})
	assert.True(t, errors.Is(err, ErrInsufficientDates))
	assert.Nil(t, result)

	_, err = tr.DiscoverHeaders(nil)
	assert.True(t, errors.Is(err, ErrInsufficientDates))
}

func TestParseDateFormats(t *testing.T) {
	tr := newTransposer(t)

	tests := []struct {
		cell string
		want string
		ok   bool
	}{
		{"44927", "2023-01-01", true},
		{"2023", "", false},
		{"Jan-23", "2023-01-01", true},
		{"JAN-23", "2023-01-01", true},
		{"March 2024", "2024-03-01", true},
		{"7/2025", "2025-07-01", true},
		{"2025-04", "2025-04-01", true},
		{"2025-04-15", "2025-04-15", true},
		{"2025-04-15 00:00:00", "2025-04-15", true},
		{"Oct 2022", "2022-10-01", true},
		{"10/1/2022", "2022-10-01", true},
		{"2022/10/01", "2022-10-01", true},
		{"October 1, 2022", "2022-10-01", true},
		{"Oct 1, 2022", "2022-10-01", true},
		{"1-Oct-22", "2022-10-01", true},
		{"NaN", "", false},
		{"nan", "", false},
		{"Inf", "", false},
		{"Total", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.cell, func(t *testing.T) {
			date, ok := tr.parseDate(tt.cell)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, date.Format("2006-01-02"))
			}
		})
	}
}

func TestForecastCutoffAndQuarter(t *testing.T) {
	matrix := [][]string{{"", "2025-06-30", "2025-07-01", "2025-12-01"}}

	headers, err := newTransposer(t).DiscoverHeaders(matrix)
	require.NoError(t, err)
	require.Len(t, headers, 3)

	assert.Equal(t, ForecastActual, headers[0].ForecastType)
	assert.Equal(t, "Q2", headers[0].Quarter)
	assert.Equal(t, ForecastForecast, headers[1].ForecastType)
	assert.Equal(t, "Q3", headers[1].Quarter)
	assert.Equal(t, "Q4", headers[2].Quarter)
}

func TestDiscoverCategoriesKeepsLiteralRows(t *testing.T) {
	matrix := [][]string{
		{"Header", "Jan-23"},
		{"Okotoks Revenue", "1"},
		{"", "2"},
		{},
		{"  Professional Fees ", "3"},
		{"Month", "4"},
		{"Okotoks Revenue", "5"},
	}

	categories, duplicates, err := newTransposer(t).DiscoverCategories(matrix)
	require.NoError(t, err)

	assert.Equal(t, []Category{
		{Label: "Okotoks Revenue", Row: 1},
		{Label: "Professional Fees", Row: 4},
		{Label: "Okotoks Revenue", Row: 6},
	}, categories)
	assert.Equal(t, []string{"Okotoks Revenue"}, duplicates)
}

func TestDiscoverCategoriesNone(t *testing.T) {
	_, _, err := newTransposer(t).DiscoverCategories([][]string{{"", "Jan-23"}, {"", "1"}})
	assert.True(t, errors.Is(err, ErrNoCategories))
}

func TestTransposeAttributesValuesToOneEntity(t *testing.T) {
	result, err := newTransposer(t).Transpose(sampleLedger())
	require.NoError(t, err)

	tbl := result.Table
	// 3 dates x 5 entities.
	require.Equal(t, 15, tbl.Len())

	assert.Equal(t, []string{
		"Location", "Month", "Year", "Quarter", "Date", "Forecast Type",
		"Barlow NE Revenue", "Corp Revenue", "Eastpoint SE Revenue",
		"Okotoks Revenue", "Professional Fees", "Total Location Revenue",
	}, tbl.Columns())

	rowFor := func(date, location string) int {
		for i := 0; i < tbl.Len(); i++ {
			if tbl.Get(i, "Date").Text() == date && tbl.Get(i, "Location").Text() == location {
				return i
			}
		}
		t.Fatalf("no row for %s / %s", date, location)
		return -1
	}

	okotoks := rowFor("2023-01-01", "Okotoks")
	assert.Equal(t, "100.00", tbl.Get(okotoks, "Okotoks Revenue").String())
	assert.Equal(t, "0.00", tbl.Get(okotoks, "Barlow NE Revenue").String())
	assert.Equal(t, "0.00", tbl.Get(okotoks, "Total Location Revenue").String())
	assert.Equal(t, "0.00", tbl.Get(okotoks, "Professional Fees").String())

	barlow := rowFor("2023-01-01", "Barlow NE")
	assert.Equal(t, "200.00", tbl.Get(barlow, "Barlow NE Revenue").String())
	assert.Equal(t, "0.00", tbl.Get(barlow, "Okotoks Revenue").String())

	corporate := rowFor("2023-01-01", "Corporate")
	assert.Equal(t, "5.00", tbl.Get(corporate, "Corp Revenue").String())

	general := rowFor("2023-01-01", "General")
	assert.Equal(t, "350.00", tbl.Get(general, "Total Location Revenue").String())
	assert.Equal(t, "0.00", tbl.Get(general, "Okotoks Revenue").String())
	assert.Equal(t, "1000.00", tbl.Get(general, "Professional Fees").String())
	assert.Equal(t, table.KindInteger, tbl.Get(general, "Year").Kind())
	assert.Equal(t, "2023", tbl.Get(general, "Year").String())

	// Mar-23 has no Professional Fees cell; Feb-23 holds "n/a".
	assert.Equal(t, "0.00", tbl.Get(rowFor("2023-03-01", "General"), "Professional Fees").String())
	assert.Equal(t, "0.00", tbl.Get(rowFor("2023-02-01", "General"), "Professional Fees").String())
	assert.Equal(t, 1, result.Coerced)

	// Attributed fields are zero, never Unknown.
	for i := 0; i < tbl.Len(); i++ {
		assert.False(t, tbl.Get(i, "Okotoks Revenue").IsNull())
	}
}

func TestEmitKeepsExponentNotation(t *testing.T) {
	matrix := [][]string{
		{"", "44927", "44958", "44986"},
		{"Gross Profit %", "1E-4", "2.5E+3", "0.5"},
	}

	result, err := newTransposer(t).Transpose(matrix)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Coerced)

	tbl := result.Table
	general := func(date string) table.Value {
		for i := 0; i < tbl.Len(); i++ {
			if tbl.Get(i, "Date").Text() == date && tbl.Get(i, "Location").Text() == "General" {
				return tbl.Get(i, "Gross Profit %")
			}
		}
		t.Fatalf("no General row for %s", date)
		return table.Value{}
	}

	small, ok := general("2023-01-01").Decimal()
	require.True(t, ok)
	assert.True(t, small.Equal(decimal.RequireFromString("0.0001")), small.String())
	assert.Equal(t, "0.00", general("2023-01-01").String())

	assert.Equal(t, "2500.00", general("2023-02-01").String())
	assert.Equal(t, "0.50", general("2023-03-01").String())
}

func TestCheckTotals(t *testing.T) {
	settings := ledgerSettings(t)
	tr, err := New(settings, nil)
	require.NoError(t, err)

	matrix := sampleLedger()
	matrix[6][3] = "401"

	result, err := tr.Transpose(matrix)
	require.NoError(t, err)

	checks := CheckTotals(result.Table, settings)
	require.Len(t, checks, 3)

	assert.Equal(t, "2023-01-01", checks[0].Date)
	assert.Equal(t, "350", checks[0].Components.String())
	assert.Equal(t, "350", checks[0].Reported.String())
	assert.True(t, checks[0].Matches())
	assert.True(t, checks[1].Matches())

	assert.False(t, checks[2].Matches())
	assert.Equal(t, "1", checks[2].Difference().String())
}

func TestCheckTotalsWithoutTotalLabel(t *testing.T) {
	settings := ledgerSettings(t)
	tr, err := New(settings, nil)
	require.NoError(t, err)

	result, err := tr.Transpose([][]string{
		{"", "Jan-23", "Feb-23", "Mar-23"},
		{"Okotoks Revenue", "1", "2", "3"},
	})
	require.NoError(t, err)
	assert.Nil(t, CheckTotals(result.Table, settings))
}
