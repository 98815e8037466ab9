package mapping

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/ledger-normalizer/internal/config"
	"github.com/ginjaninja78/ledger-normalizer/internal/csvparser"
	"github.com/ginjaninja78/ledger-normalizer/internal/xlsxparser"
)

// Reference table column headers.
const (
	HeaderClient    = "Client Name"
	HeaderOriginal  = "Original Column Names"
	HeaderCanonical = "Normalized Column Name"
)

// =============================================================================
// REFERENCE TABLE LOADING
// =============================================================================

// LoadRules reads the reference mapping table.
//
// PARAMETERS:
//   - path: A .csv or .xlsx file. The first sheet of a workbook is used.
//   - settings: CSV settings for delimited files.
//
// RETURNS:
//   - The rules in table order. Rows without an original or a canonical name
//     are dropped. A missing file yields no rules and found=false.
//   - An error if the file exists but cannot be read or lacks a column.
func LoadRules(path string, settings config.CSVSettings) (rules []Rule, found bool, err error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to stat reference table: %w", err)
	}

	var clients, originals, canonicals []string

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		sheet, err := xlsxparser.ReadSheet(path, "")
		if err != nil {
			return nil, true, fmt.Errorf("failed to read reference table: %w", err)
		}
		if err := requireHeaders(sheet.Headers); err != nil {
			return nil, true, err
		}
		clients = sheet.Column(HeaderClient)
		originals = sheet.Column(HeaderOriginal)
		canonicals = sheet.Column(HeaderCanonical)
	default:
		data, err := csvparser.Parse(path, settings)
		if err != nil {
			return nil, true, fmt.Errorf("failed to read reference table: %w", err)
		}
		if err := requireHeaders(data.Headers); err != nil {
			return nil, true, err
		}
		clients = csvparser.GetColumnByHeader(data, HeaderClient)
		originals = csvparser.GetColumnByHeader(data, HeaderOriginal)
		canonicals = csvparser.GetColumnByHeader(data, HeaderCanonical)
	}

	return buildRules(clients, originals, canonicals), true, nil
}

func requireHeaders(headers []string) error {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}
	for _, want := range []string{HeaderClient, HeaderOriginal, HeaderCanonical} {
		if !present[want] {
			return fmt.Errorf("reference table is missing column %q", want)
		}
	}
	return nil
}

func buildRules(clients, originals, canonicals []string) []Rule {
	rules := make([]Rule, 0, len(originals))
	for i := range originals {
		rule := Rule{
			Client:    strings.TrimSpace(clients[i]),
			Original:  csvparser.CleanHeader(originals[i]),
			Canonical: strings.TrimSpace(canonicals[i]),
		}
		if rule.Original == "" || rule.Canonical == "" {
			continue
		}
		rules = append(rules, rule)
	}
	return rules
}
