// =============================================================================
// Ledger Normalizer - Canonical Schema Registry
// =============================================================================
//
// The registry is the fixed, ordered set of canonical column names every source
// is normalized into, plus the subset that carries amounts. It is built once
// from the schema data and is read-only afterwards, so it is safe to share.
//
// =============================================================================

package schema

import (
	"sort"
	"strings"

	"github.com/ginjaninja78/ledger-normalizer/internal/config"
)

// Standard column names. These are also the canonical join key consumers rely on.
const (
	ColumnRecordID     = "Record ID"
	ColumnFileName     = "File Name"
	ColumnClientName   = "Client Name"
	ColumnLocation     = "Location"
	ColumnMonth        = "Month"
	ColumnYear         = "Year"
	ColumnQuarter      = "Quarter"
	ColumnDate         = "Date"
	ColumnForecastType = "Forecast Type"
)

// Substrings that make any column financial. This is a deliberately broad
// policy: "Expense Category Code" would match too. Confirm with the finance
// owners before narrowing it.
var financialSubstrings = []string{"Revenue", "Expense"}

// Registry exposes the canonical schema.
type Registry struct {
	canonical []string
	canonSet  map[string]bool
	financial []string
	finSet    map[string]bool
	textSet   map[string]bool
	standard  []string
	stdSet    map[string]bool
}

// New builds a registry from schema data.
func New(data *config.SchemaData) *Registry {
	r := &Registry{
		canonical: append([]string(nil), data.CanonicalColumns...),
		canonSet:  toSet(data.CanonicalColumns),
		financial: append([]string(nil), data.FinancialColumns...),
		finSet:    toSet(data.FinancialColumns),
		textSet:   toSet(data.TextColumns),
		standard:  append([]string(nil), data.StandardColumns...),
		stdSet:    toSet(data.StandardColumns),
	}
	return r
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return set
}

// Columns returns the canonical columns in declaration order.
func (r *Registry) Columns() []string {
	return append([]string(nil), r.canonical...)
}

// SortedColumns returns the canonical columns in lexicographic order.
func (r *Registry) SortedColumns() []string {
	sorted := r.Columns()
	sort.Strings(sorted)
	return sorted
}

// FinancialColumns returns the enumerated financial columns.
func (r *Registry) FinancialColumns() []string {
	return append([]string(nil), r.financial...)
}

// StandardColumns returns the fixed output prefix.
func (r *Registry) StandardColumns() []string {
	return append([]string(nil), r.standard...)
}

// IsCanonical reports whether name is a canonical column.
func (r *Registry) IsCanonical(name string) bool {
	return r.canonSet[name]
}

// IsStandard reports whether name is part of the fixed output prefix.
func (r *Registry) IsStandard(name string) bool {
	return r.stdSet[name]
}

// IsText reports whether values mapped into name are copied verbatim.
// Standard columns are always text columns.
func (r *Registry) IsText(name string) bool {
	return r.textSet[name] || r.stdSet[name]
}

// IsFinancial reports whether name is an enumerated financial column or
// contains "Revenue" or "Expense" (case-sensitive).
func (r *Registry) IsFinancial(name string) bool {
	if r.finSet[name] {
		return true
	}
	for _, sub := range financialSubstrings {
		if strings.Contains(name, sub) {
			return true
		}
	}
	return false
}

// OutputColumns is the output schema: the standard prefix in its literal
// order, then every other canonical column sorted lexicographically.
func (r *Registry) OutputColumns() []string {
	columns := r.StandardColumns()
	for _, name := range r.SortedColumns() {
		if !r.stdSet[name] {
			columns = append(columns, name)
		}
	}
	return columns
}
