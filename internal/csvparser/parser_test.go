package csvparser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/ledger-normalizer/internal/config"
	"github.com/ginjaninja78/ledger-normalizer/internal/table"
)

func TestParseReaderHeadersAndRows(t *testing.T) {
	input := "\ufeffLocation, Total - Revenue ,,Location\n" +
		"Okotoks,100.50,x,dup\n" +
		",,,\n" +
		"Barlow NE,n/a\n"

	data, err := ParseReader(strings.NewReader(input), config.CSVSettings{Delimiter: ",", Encoding: "UTF-8"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Location", "Total - Revenue", "Column_3", "Location.1"}, data.Headers)
	require.Equal(t, 2, data.RowCount)
	assert.Equal(t, "100.50", data.Rows[0]["Total - Revenue"])
	assert.Equal(t, "dup", data.Rows[0]["Location.1"])
	assert.Equal(t, "", data.Rows[1]["Column_3"])
}

func TestParseReaderWindows1252(t *testing.T) {
	// 0xE9 is "é" in Windows-1252.
	input := []byte("Caf\xe9 Revenue;Notes\n12;ok\n")

	data, err := ParseReader(strings.NewReader(string(input)), config.CSVSettings{Delimiter: ";", Encoding: "Windows-1252"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Caf\u00e9 Revenue", "Notes"}, data.Headers)
	assert.Equal(t, "12", data.Rows[0]["Caf\u00e9 Revenue"])
}

func TestParseReaderUnsupportedEncoding(t *testing.T) {
	_, err := ParseReader(strings.NewReader("a\n1\n"), config.CSVSettings{Encoding: "EBCDIC"})
	assert.Error(t, err)
}

func TestParseReaderEmpty(t *testing.T) {
	_, err := ParseReader(strings.NewReader(""), config.CSVSettings{})
	assert.Error(t, err)
}

func TestCleanHeaderNFC(t *testing.T) {
	decomposed := "Cafe\u0301"
	assert.Equal(t, "Caf\u00e9", CleanHeader("  "+decomposed+" "))
}

func TestParseAndRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Nolan Hill Raw Data.csv")
	require.NoError(t, os.WriteFile(path, []byte("Month,Total - Revenue\nJanuary,250\nFebruary,\n"), 0644))

	data, err := Parse(path, config.CSVSettings{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Month", "Total - Revenue"}, data.Headers)

	records := data.Records("Nolan Hill")
	require.Len(t, records, 2)
	assert.Equal(t, "Nolan Hill Raw Data.csv", records[0].FileName)
	assert.Equal(t, "Nolan Hill", records[0].ClientKey)

	v, ok := records[0].Get("Total - Revenue")
	require.True(t, ok)
	assert.Equal(t, table.KindNumber, v.Kind())

	v, ok = records[1].Get("Total - Revenue")
	require.True(t, ok)
	assert.True(t, v.IsNull())

	assert.Equal(t, []string{"January", "February"}, GetColumnByHeader(data, "Month"))
}
