package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/ledger-normalizer/internal/config"
	"github.com/ginjaninja78/ledger-normalizer/internal/schema"
	"github.com/ginjaninja78/ledger-normalizer/internal/table"
	"github.com/ginjaninja78/ledger-normalizer/internal/transposer"
)

const mint = "Mint Med Hat Car Wash"

func testRegistry() *schema.Registry {
	return schema.New(&config.SchemaData{
		CanonicalColumns: []string{"Total Revenue", "Wash Count", "Date Header"},
		FinancialColumns: []string{"Total Revenue"},
		TextColumns:      []string{"Date Header"},
		StandardColumns:  []string{"Record ID", "File Name", "Client Name"},
	})
}

func num(s string) table.Value {
	return table.Number(decimal.RequireFromString(s))
}

// outputTable builds a normalized table with one row per (client, revenue) pair.
func outputTable(t *testing.T, rows ...[2]table.Value) *table.Table {
	t.Helper()
	b, err := table.NewBuilder(testRegistry().OutputColumns(), len(rows))
	require.NoError(t, err)
	for i, row := range rows {
		require.NoError(t, b.Set("Record ID", i, table.Integer(int64(i+1))))
		require.NoError(t, b.Set("Client Name", i, row[0]))
		require.NoError(t, b.Set("Total Revenue", i, row[1]))
	}
	return b.Build()
}

func rawRecords() []table.RawRecord {
	return []table.RawRecord{
		{ClientKey: mint, Fields: map[string]table.Value{"Total - Revenue": num("10000")}},
		{ClientKey: mint, Fields: map[string]table.Value{"Total - Revenue": table.Text("2345.67")}},
		{ClientKey: mint, Fields: map[string]table.Value{"Total - Revenue": table.Text("n/a")}},
		{ClientKey: "Dreams Car Wash", Fields: map[string]table.Value{"Total - Revenue": num("99")}},
	}
}

var mintCheck = config.SumCheck{Client: mint, Original: "Total - Revenue", Canonical: "Total Revenue"}

func TestCheckSumMatches(t *testing.T) {
	tbl := outputTable(t,
		[2]table.Value{table.Text(mint), num("10000")},
		[2]table.Value{table.Text(mint), num("2345.67")},
		[2]table.Value{table.Text(mint), table.Unknown()},
		[2]table.Value{table.Text("Dreams Car Wash"), num("99")},
	)

	result, finding := NewValidator(testRegistry()).CheckSum(rawRecords(), tbl, mintCheck)
	assert.Nil(t, finding)
	assert.True(t, result.Matches)
	assert.Equal(t, 3, result.SourceRows)
	assert.Equal(t, "12345.67", result.SourceSum.StringFixed(2))
	assert.Equal(t, "12345.67", result.NormalizedSum.StringFixed(2))
}

func TestCheckSumMismatch(t *testing.T) {
	tbl := outputTable(t,
		[2]table.Value{table.Text(mint), num("10000")},
		[2]table.Value{table.Text(mint), num("2345.60")},
	)

	result, finding := NewValidator(testRegistry()).CheckSum(rawRecords(), tbl, mintCheck)
	require.NotNil(t, finding)
	assert.False(t, result.Matches)
	assert.Equal(t, SeverityError, finding.Severity)
	assert.Equal(t, "0.07", result.Difference().StringFixed(2))
	assert.Contains(t, finding.Error(), "12345.67")
}

func TestCheckSumMissingColumns(t *testing.T) {
	v := NewValidator(testRegistry())
	tbl := outputTable(t, [2]table.Value{table.Text(mint), num("1")})

	_, finding := v.CheckSum(rawRecords(), tbl, config.SumCheck{Client: mint, Original: "Revenue", Canonical: "Total Revenue"})
	require.NotNil(t, finding)
	assert.Equal(t, SeverityWarning, finding.Severity)

	_, finding = v.CheckSum(rawRecords(), tbl, config.SumCheck{Client: mint, Original: "Total - Revenue", Canonical: "Net Revenue"})
	require.NotNil(t, finding)
	assert.Equal(t, SeverityError, finding.Severity)
}

func TestCheckFinancialTypes(t *testing.T) {
	tbl := outputTable(t,
		[2]table.Value{table.Text(mint), num("1")},
		[2]table.Value{table.Text(mint), table.Text("oops")},
	)

	errs := NewValidator(testRegistry()).CheckFinancialTypes(tbl)
	require.Len(t, errs, 1)
	assert.Equal(t, "Total Revenue", errs[0].Field)
	assert.Equal(t, 2, errs[0].Row)
	assert.Equal(t, "oops", errs[0].Value)
}

func TestSummarize(t *testing.T) {
	tbl := outputTable(t,
		[2]table.Value{table.Text(mint), num("10")},
		[2]table.Value{table.Text("Dreams Car Wash"), num("5")},
		[2]table.Value{table.Text(mint), table.Unknown()},
		[2]table.Value{table.Text(mint), num("2.5")},
	)

	summaries := NewValidator(testRegistry()).Summarize(tbl)
	require.Len(t, summaries, 2)
	assert.Equal(t, mint, summaries[0].Client)
	assert.Equal(t, 3, summaries[0].Records)
	assert.Equal(t, "12.50", summaries[0].Total.StringFixed(2))
	assert.Equal(t, 1, summaries[0].Ignored)
	assert.Equal(t, "Dreams Car Wash", summaries[1].Client)
}

func TestValidateAll(t *testing.T) {
	tbl := outputTable(t,
		[2]table.Value{table.Text(mint), num("10000")},
		[2]table.Value{table.Text(mint), table.Text("bad")},
	)

	result := NewValidator(testRegistry()).ValidateAll(rawRecords(), tbl, []config.SumCheck{mintCheck})
	assert.False(t, result.IsValid)
	assert.Equal(t, 2, result.ErrorCount)
	assert.Len(t, result.SumChecks, 1)
	assert.Len(t, result.Clients, 1)
}

func TestValidateLedger(t *testing.T) {
	checks := []transposer.TotalCheck{
		{Date: "2023-01-01", Components: decimal.NewFromInt(350), Reported: decimal.NewFromInt(350)},
		{Date: "2023-02-01", Components: decimal.NewFromInt(375), Reported: decimal.NewFromInt(380)},
	}

	result := NewValidator(testRegistry()).ValidateLedger("Great White Car Wash", checks)
	assert.True(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, SeverityWarning, result.Errors[0].Severity)
	assert.Equal(t, "2023-02-01", result.Errors[0].Field)

	opts := DefaultValidationOptions()
	opts.TreatWarningsAsErrors = true
	strict := NewValidatorWithOptions(testRegistry(), opts).ValidateLedger("Great White Car Wash", checks)
	assert.False(t, strict.IsValid)
}

func TestWriteErrorLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "validation.txt")

	require.NoError(t, WriteErrorLog(nil, path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, WriteErrorLog([]*ValidationError{{
		Severity: SeverityError, Check: CheckSum, Client: mint, Message: "boom",
	}}, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[ERROR] sum, Client 'Mint Med Hat Car Wash': boom")
	assert.Equal(t, "No validation errors.", FormatErrors(nil))
}

func TestMerge(t *testing.T) {
	result := &ValidationResult{IsValid: true, SumChecks: []SumResult{{Client: mint}}}
	result.Merge(&ValidationResult{
		Errors: []*ValidationError{
			{Severity: SeverityWarning, Check: CheckLedgerTotal, Client: "Great White Car Wash"},
			{Severity: SeverityError, Check: CheckFinancial, Field: "Total Revenue"},
		},
		SumChecks: []SumResult{{Client: "Great White Car Wash"}},
	})

	assert.False(t, result.IsValid)
	assert.Equal(t, 1, result.ErrorCount)
	assert.Equal(t, 1, result.WarningCount)
	assert.Len(t, result.Errors, 2)
	require.Len(t, result.SumChecks, 2)
	assert.Equal(t, "Great White Car Wash", result.SumChecks[1].Client)
}
