package mapping

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/ledger-normalizer/internal/config"
	"github.com/ginjaninja78/ledger-normalizer/internal/schema"
)

func testRegistry() *schema.Registry {
	return schema.New(&config.SchemaData{
		CanonicalColumns: []string{"Total Revenue", "Wash Count", "Location"},
		FinancialColumns: []string{"Total Revenue"},
		StandardColumns:  []string{"Record ID", "File Name", "Client Name", "Location"},
	})
}

var testOverrides = []config.OverrideRule{
	{Client: "Mint Med Hat Car Wash", Original: "Total - Revenue", Canonical: "Total Revenue"},
}

func newTestResolver(m Matcher) *Resolver {
	return NewResolver(testRegistry(), m, testOverrides, nil)
}

func TestMappingKeepsInsertionOrder(t *testing.T) {
	m := NewMapping()
	m.Set("b", "Wash Count")
	m.Set("a", "Location")
	m.Set("b", "Total Revenue")

	assert.Equal(t, []Pair{
		{Original: "b", Canonical: "Total Revenue"},
		{Original: "a", Canonical: "Location"},
	}, m.Pairs())
	assert.Equal(t, 2, m.Len())

	got, ok := m.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "Total Revenue", got)
}

func TestResolveDirectLastWriteWins(t *testing.T) {
	rules := []Rule{
		{Client: "Great White Express", Original: "Sales", Canonical: "Total Revenue"},
		{Client: "Nolan Hill", Original: "Sales", Canonical: "Location"},
		{Client: "GREAT WHITE", Original: "Sales", Canonical: "Wash Count"},
		{Client: "Great White", Original: "Site", Canonical: "Location"},
	}

	res := newTestResolver(FirstTokenMatcher{}).Explain("Great White Car Wash", rules)

	assert.Equal(t, SourceDirect, res.Source)
	assert.Equal(t, 3, res.MatchedRules)
	assert.Equal(t, []Pair{
		{Original: "Sales", Canonical: "Wash Count"},
		{Original: "Site", Canonical: "Location"},
	}, res.Mapping.Pairs())
}

func TestResolveGenericFirstClaimWins(t *testing.T) {
	rules := []Rule{
		{Client: "Nolan Hill", Original: "Cars", Canonical: "Wash Count"},
		{Client: "Nolan Hill", Original: "Rev", Canonical: "Wash Count"},
		{Client: "Dreams", Original: "Rev", Canonical: "Total Revenue"},
		{Client: "Dreams", Original: "Junk", Canonical: "Not Canonical"},
	}

	res := newTestResolver(FirstTokenMatcher{}).Explain("Unknown Client", rules)

	assert.Equal(t, SourceGeneric, res.Source)
	assert.Equal(t, []Pair{
		{Original: "Rev", Canonical: "Total Revenue"},
		{Original: "Cars", Canonical: "Wash Count"},
	}, res.Mapping.Pairs())
}

func TestResolveOverridesApplyLast(t *testing.T) {
	rules := []Rule{
		{Client: "Mint Med Hat", Original: "Total - Revenue", Canonical: "Wash Count"},
	}

	resolver := newTestResolver(FirstTokenMatcher{})

	res := resolver.Explain("Mint Med Hat Car Wash", rules)
	assert.Equal(t, 1, res.OverridesApplied)
	got, _ := res.Mapping.Get("Total - Revenue")
	assert.Equal(t, "Total Revenue", got)

	// Overrides are keyed by the exact client name.
	res = resolver.Explain("Mint Med Hat", rules)
	assert.Equal(t, 0, res.OverridesApplied)
	got, _ = res.Mapping.Get("Total - Revenue")
	assert.Equal(t, "Wash Count", got)
}

func TestResolveUnknownClientWithoutRules(t *testing.T) {
	resolver := newTestResolver(FirstTokenMatcher{})

	assert.Equal(t, 0, resolver.Resolve("Someone Else", nil).Len())

	// Overrides still apply without a reference table.
	m := resolver.Resolve("Mint Med Hat Car Wash", nil)
	assert.Equal(t, []Pair{{Original: "Total - Revenue", Canonical: "Total Revenue"}}, m.Pairs())
}

func TestResolveIsDeterministic(t *testing.T) {
	rules := []Rule{
		{Client: "Dreams", Original: "Rev", Canonical: "Total Revenue"},
		{Client: "Dreams", Original: "Count", Canonical: "Wash Count"},
	}
	resolver := newTestResolver(FirstTokenMatcher{})

	first := resolver.Resolve("Dreams Car Wash", rules).Pairs()
	second := resolver.Resolve("Dreams Car Wash", rules).Pairs()
	assert.Equal(t, first, second)
}

func TestFirstTokenMatcher(t *testing.T) {
	m := FirstTokenMatcher{}
	assert.True(t, m.Match("Great White Car Wash", "great white"))
	assert.True(t, m.Match("Great White", "The Great Escape"))
	assert.False(t, m.Match("", "Great White"))
	assert.False(t, m.Match("   ", "Great White"))
	assert.False(t, m.Match("Great White", ""))
}

func TestExactMatcher(t *testing.T) {
	m := NewExactMatcher(map[string][]string{
		"Great White Car Wash": {"Great White", "GW Express"},
	})

	assert.True(t, m.Match("Great White Car Wash", " great white car wash "))
	assert.True(t, m.Match("great white car wash", "gw express"))
	assert.False(t, m.Match("Great White Car Wash", "Great Escape"))
	assert.False(t, m.Match("Nolan Hill", "Great White"))
	assert.False(t, m.Match("", ""))
}

func TestNewMatcher(t *testing.T) {
	m, err := NewMatcher(config.MatcherConfig{Strategy: config.MatcherExact})
	require.NoError(t, err)
	assert.Equal(t, config.MatcherExact, m.Name())

	m, err = NewMatcher(config.MatcherConfig{})
	require.NoError(t, err)
	assert.Equal(t, config.MatcherFirstToken, m.Name())

	_, err = NewMatcher(config.MatcherConfig{Strategy: "fuzzy"})
	assert.Error(t, err)
}

func TestLoadRulesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master_dataframe.csv")
	content := "Client Name,Original Column Names,Normalized Column Name\n" +
		"Great White, Total - Revenue ,Total Revenue\n" +
		"Great White,,Wash Count\n" +
		",Cars,Wash Count\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	rules, found, err := LoadRules(path, config.CSVSettings{})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []Rule{
		{Client: "Great White", Original: "Total - Revenue", Canonical: "Total Revenue"},
		{Client: "", Original: "Cars", Canonical: "Wash Count"},
	}, rules)
}

func TestLoadRulesMissingFile(t *testing.T) {
	rules, found, err := LoadRules(filepath.Join(t.TempDir(), "missing.csv"), config.CSVSettings{})
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, rules)
}

func TestLoadRulesMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("Client Name,Original Column Names\nA,B\n"), 0644))

	_, found, err := LoadRules(path, config.CSVSettings{})
	assert.True(t, found)
	assert.ErrorContains(t, err, HeaderCanonical)
}

func TestLoadRulesXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{HeaderClient, HeaderOriginal, HeaderCanonical},
		{"Nolan Hill", "Total - Revenue", "Total Revenue"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	path := filepath.Join(t.TempDir(), "master.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	rules, found, err := LoadRules(path, config.CSVSettings{})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []Rule{{Client: "Nolan Hill", Original: "Total - Revenue", Canonical: "Total Revenue"}}, rules)
}
