package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// SCHEMA DATA
// =============================================================================

// SchemaData is the deployment-specific constant data: the canonical and
// financial column lists, manual overrides and file-name rules.
type SchemaData struct {
	// CanonicalColumns in declaration order.
	CanonicalColumns []string `yaml:"canonical_columns"`

	// FinancialColumns are forced to numeric in the normalizer's final pass.
	FinancialColumns []string `yaml:"financial_columns"`

	// TextColumns are canonical columns copied verbatim, never parsed.
	TextColumns []string `yaml:"text_columns"`

	// StandardColumns is the fixed output prefix.
	StandardColumns []string `yaml:"standard_columns"`

	// ManualOverrides are applied by the resolver after all other rules.
	ManualOverrides []OverrideRule `yaml:"manual_overrides"`

	// FileExtensions are stripped from file names before suffix matching.
	FileExtensions []string `yaml:"file_extensions"`

	// ClientSuffixes are tried in order; the first match is stripped.
	ClientSuffixes []string `yaml:"client_suffixes"`

	// RawDataSheets are the accepted raw-data sheet names, in preference order.
	RawDataSheets []string `yaml:"raw_data_sheets"`
}

// OverrideRule is a single hardcoded mapping correction.
type OverrideRule struct {
	Client    string `yaml:"client"`
	Original  string `yaml:"original"`
	Canonical string `yaml:"canonical"`
}

// LoadSchema loads the schema data from path, or the embedded default when
// path is empty.
func LoadSchema(path string) (*SchemaData, error) {
	data := defaultSchemaYAML
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema file: %w", err)
		}
	}

	return ParseSchema(data)
}

// ParseSchema parses and validates a schema YAML document.
func ParseSchema(data []byte) (*SchemaData, error) {
	var schema SchemaData
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	return &schema, nil
}

// Validate checks the schema data for duplicates and dangling references.
func (s *SchemaData) Validate() error {
	if len(s.CanonicalColumns) == 0 {
		return fmt.Errorf("canonical_columns is empty")
	}
	if len(s.StandardColumns) == 0 {
		return fmt.Errorf("standard_columns is empty")
	}

	canonical := make(map[string]bool, len(s.CanonicalColumns))
	for _, name := range s.CanonicalColumns {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("canonical_columns contains an empty name")
		}
		if canonical[name] {
			return fmt.Errorf("duplicate canonical column %q", name)
		}
		canonical[name] = true
	}

	standard := make(map[string]bool, len(s.StandardColumns))
	for _, name := range s.StandardColumns {
		if standard[name] {
			return fmt.Errorf("duplicate standard column %q", name)
		}
		standard[name] = true
	}

	for _, name := range s.FinancialColumns {
		if !canonical[name] {
			return fmt.Errorf("financial column %q is not a canonical column", name)
		}
	}

	for i, rule := range s.ManualOverrides {
		if rule.Client == "" || rule.Original == "" {
			return fmt.Errorf("manual_overrides[%d]: client and original are required", i)
		}
		if !canonical[rule.Canonical] {
			return fmt.Errorf("manual_overrides[%d]: %q is not a canonical column", i, rule.Canonical)
		}
	}

	return nil
}
