package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/ledger-normalizer/internal/config"
	"github.com/ginjaninja78/ledger-normalizer/internal/table"
)

const (
	mint       = "Mint Med Hat Car Wash"
	dreams     = "Dreams Car Wash"
	greatWhite = "Great White Car Wash"
)

type fixture struct {
	cfg    *config.MainConfig
	schema *config.SchemaData
}

// writeWorkbook saves rows into sheet of a new workbook at path.
func writeWorkbook(t *testing.T, path, sheet string, rows [][]interface{}) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName(f.GetSheetName(0), sheet))
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	require.NoError(t, f.SaveAs(path))
}

func writeText(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	input := filepath.Join(root, "input")
	ledgers := filepath.Join(root, "ledgers")
	require.NoError(t, os.MkdirAll(input, 0755))
	require.NoError(t, os.MkdirAll(ledgers, 0755))

	writeWorkbook(t, filepath.Join(input, mint+" Raw Data.xlsx"), "Raw Data", [][]interface{}{
		{"Location", "Month", "Total - Revenue"},
		{"Medicine Hat", "January", 10000},
		{"Medicine Hat", "February", 2345.67},
	})
	writeText(t, filepath.Join(input, dreams+" Data.csv"),
		"Total Location Revenue,Retail Wash Count\n500,10\nabc,12\n")
	writeText(t, filepath.Join(input, "Legacy Data.xls"), "not a workbook")

	reference := filepath.Join(root, "reference.csv")
	writeText(t, reference, "Client Name,Original Column Names,Normalized Column Name\n"+
		dreams+",Retail Wash Count,Retail Wash Count\n")

	ledger := filepath.Join(ledgers, greatWhite+" P&L.xlsx")
	writeWorkbook(t, ledger, "P&L with Corp", [][]interface{}{
		{"", "Jan-23", "Feb-23", "Mar-23"},
		{"Okotoks Revenue", "100", "110", "120"},
		{"Barlow NE Revenue", "200", "210", "220"},
		{"Eastpoint SE Revenue", "50", "55", "60"},
		{"Total Location Revenue", "350", "375", "400"},
		{"Professional Fees", "1000", "1000", "1000"},
	})

	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.InputDir = input
	cfg.OutputDir = filepath.Join(root, "output")
	cfg.ReferenceTable = reference
	cfg.Ledgers = []config.LedgerSource{{File: ledger, Client: greatWhite}}
	cfg.SumChecks = []config.SumCheck{{Client: mint, Original: "Total - Revenue", Canonical: "Total Revenue"}}

	schemaData, err := config.LoadSchema("")
	require.NoError(t, err)

	return fixture{cfg: cfg, schema: schemaData}
}

func (f fixture) pipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := New(f.cfg, f.schema, nil)
	require.NoError(t, err)
	return p
}

func rowFor(t *testing.T, tbl *table.Table, match func(row int) bool) int {
	t.Helper()
	for row := 0; row < tbl.Len(); row++ {
		if match(row) {
			return row
		}
	}
	t.Fatal("no matching row")
	return -1
}

func TestRunEndToEnd(t *testing.T) {
	f := newFixture(t)

	result, err := f.pipeline(t).Run(false)
	require.NoError(t, err)

	assert.True(t, result.ReferenceFound)
	assert.Equal(t, 1, result.Rules)
	require.Len(t, result.Files, 2)
	assert.Equal(t, mint, result.Files[0].Client)
	assert.Equal(t, "Raw Data", result.Files[0].Sheet)
	assert.Equal(t, dreams, result.Files[1].Client)

	require.Len(t, result.Skipped, 1)
	assert.True(t, errors.Is(result.Skipped[0].Err, ErrUnsupportedFormat))

	tbl := result.Table
	// 2 Mint rows, 2 Dreams rows, 3 dates x 5 ledger entities.
	require.Equal(t, 19, tbl.Len())
	assert.Equal(t, "1", tbl.Get(0, "Record ID").String())
	assert.Equal(t, "19", tbl.Get(18, "Record ID").String())
	assert.Equal(t, mint, tbl.Get(0, "Client Name").Text())
	assert.Equal(t, mint+" Raw Data.xlsx", tbl.Get(0, "File Name").Text())
	assert.Equal(t, "Medicine Hat", tbl.Get(0, "Location").Text())
	assert.Equal(t, "January", tbl.Get(0, "Month").Text())

	// Manual overrides route both clients' totals into Total Revenue.
	assert.Equal(t, "10000.00", tbl.Get(0, "Total Revenue").String())
	assert.Equal(t, "2345.67", tbl.Get(1, "Total Revenue").String())
	assert.Equal(t, "500.00", tbl.Get(2, "Total Revenue").String())
	assert.True(t, tbl.Get(3, "Total Revenue").IsNull())
	assert.Equal(t, 1, result.Report.TotalCleaned())
	assert.Equal(t, "12.00", tbl.Get(3, "Retail Wash Count").String())

	// Ledger rows keep their attribution.
	okotoks := rowFor(t, tbl, func(row int) bool {
		return tbl.Get(row, "Client Name").Text() == greatWhite &&
			tbl.Get(row, "Location").Text() == "Okotoks" &&
			tbl.Get(row, "Date").Text() == "2023-01-01"
	})
	assert.Equal(t, "100.00", tbl.Get(okotoks, "Okotoks Revenue").String())
	assert.Equal(t, "0.00", tbl.Get(okotoks, "Professional Fees").String())
	assert.Equal(t, "ACTUAL", tbl.Get(okotoks, "Forecast Type").Text())
	assert.Equal(t, "Q1", tbl.Get(okotoks, "Quarter").Text())

	general := rowFor(t, tbl, func(row int) bool {
		return tbl.Get(row, "Client Name").Text() == greatWhite &&
			tbl.Get(row, "Location").Text() == "General" &&
			tbl.Get(row, "Date").Text() == "2023-02-01"
	})
	assert.Equal(t, "1000.00", tbl.Get(general, "Professional Fees").String())
	assert.Equal(t, "0.00", tbl.Get(general, "Okotoks Revenue").String())

	require.Len(t, result.Ledgers, 1)
	for _, check := range result.Ledgers[0].Checks {
		assert.True(t, check.Matches(), check.Date)
	}

	require.Len(t, result.Validation.SumChecks, 1)
	sum := result.Validation.SumChecks[0]
	assert.True(t, sum.Matches)
	assert.True(t, sum.NormalizedSum.Equal(decimal.RequireFromString("12345.67")))
	assert.True(t, result.Validation.IsValid)

	assert.Equal(t, []string{filepath.Join(f.cfg.OutputDir, "raw_records_normalized.csv")}, result.OutputFiles)
	assert.FileExists(t, result.OutputFiles[0])
	assert.FileExists(t, result.SummaryFile)
}

func TestRunIsIdempotent(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t)

	first, err := p.Run(false)
	require.NoError(t, err)
	firstCSV, err := os.ReadFile(first.OutputFiles[0])
	require.NoError(t, err)

	second, err := p.Run(false)
	require.NoError(t, err)
	secondCSV, err := os.ReadFile(second.OutputFiles[0])
	require.NoError(t, err)

	assert.Equal(t, string(firstCSV), string(secondCSV))
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRunDryRunWritesNothing(t *testing.T) {
	f := newFixture(t)

	result, err := f.pipeline(t).Run(true)
	require.NoError(t, err)
	assert.Empty(t, result.OutputFiles)
	assert.Empty(t, result.SummaryFile)
	assert.NoDirExists(t, f.cfg.OutputDir)
}

func TestRunWithoutReferenceTable(t *testing.T) {
	f := newFixture(t)
	f.cfg.ReferenceTable = filepath.Join(t.TempDir(), "missing.csv")
	f.cfg.Ledgers = nil

	result, err := f.pipeline(t).Run(true)
	require.NoError(t, err)
	assert.False(t, result.ReferenceFound)

	// Overrides still apply.
	assert.Equal(t, "10000.00", result.Table.Get(0, "Total Revenue").String())
	// Without rules Dreams keeps only the standard columns and its override.
	assert.True(t, result.Table.Get(2, "Retail Wash Count").IsNull())
}

func TestRunNoLoadableFiles(t *testing.T) {
	f := newFixture(t)
	input := t.TempDir()
	writeText(t, filepath.Join(input, "Old Data.xls"), "x")
	f.cfg.InputDir = input
	f.cfg.Ledgers = nil

	result, err := f.pipeline(t).Run(false)
	assert.True(t, errors.Is(err, ErrNoLoadableFiles))
	require.NotNil(t, result)
	assert.Len(t, result.Skipped, 1)
}

func TestRunSkipsBrokenLedger(t *testing.T) {
	f := newFixture(t)
	broken := filepath.Join(t.TempDir(), "short.xlsx")
	writeWorkbook(t, broken, "P&L with Corp", [][]interface{}{
		{"", "Jan-23", "Feb-23"},
		{"Okotoks Revenue", "1", "2"},
	})
	f.cfg.Ledgers = append(f.cfg.Ledgers, config.LedgerSource{File: broken, Client: "Short"})

	result, err := f.pipeline(t).Run(true)
	require.NoError(t, err)
	assert.Len(t, result.Ledgers, 1)
	require.Len(t, result.Skipped, 2)
	assert.Contains(t, result.Skipped[1].Err.Error(), "insufficient date headers")
}

func TestWriteLedger(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t)

	run, err := p.TransposeLedger(f.cfg.Ledgers[0])
	require.NoError(t, err)
	assert.Equal(t, "P&L with Corp", run.Sheet)

	dir := t.TempDir()
	paths, err := p.WriteLedger(run, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, greatWhite+" Raw Data.xlsx"),
		filepath.Join(dir, greatWhite+" Raw Data.csv"),
	}, paths)

	// The written workbook loads like any client export.
	loaded, records, err := p.LoadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, greatWhite, loaded.Client)
	assert.Equal(t, "Raw Data", loaded.Sheet)
	assert.Len(t, records, 15)
}

func TestTransposedLedgerInInputDirLoadsOnce(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t)

	run, err := p.TransposeLedger(f.cfg.Ledgers[0])
	require.NoError(t, err)
	_, err = p.WriteLedger(run, f.cfg.InputDir)
	require.NoError(t, err)

	f.cfg.Ledgers = nil
	result, err := f.pipeline(t).Run(true)
	require.NoError(t, err)

	for _, file := range result.Files {
		assert.NotEqual(t, greatWhite+" Raw Data.csv", filepath.Base(file.Path))
	}

	count := 0
	for row := 0; row < result.Table.Len(); row++ {
		if result.Table.Get(row, "Client Name").Text() == greatWhite {
			count++
		}
	}
	assert.Equal(t, 15, count)
	assert.Equal(t, 2+2+15, result.Table.Len())
}

func TestClientName(t *testing.T) {
	p := newFixture(t).pipeline(t)
	assert.Equal(t, "Dreams Car Wash", p.ClientName("/x/Dreams Car Wash Dashboard_01292025.xlsx"))
}
