// =============================================================================
// Ledger Normalizer - Record Normalizer
// =============================================================================
//
// The normalizer turns the combined raw records of a run into the canonical
// table.
//
// PROCESS:
//   1. Lay out the output columns: the standard prefix, then every other
//      canonical column in lexicographic order.
//   2. Seed the standard columns from the record metadata and from raw
//      columns that already carry a standard name.
//   3. For each client, in first-seen order, resolve its mapping once and
//      copy every mapped column into that client's rows:
//      - a populated standard column is never overwritten
//      - text columns are copied verbatim
//      - financial or mixed columns are parsed; unparsable cells become
//        Unknown and are counted as cleaned
//      - purely numeric columns are copied as they are
//   4. Force every financial column to numeric in a final pass.
//
// Bad cells never fail a run. They are counted in the Report and logged.
//
// =============================================================================

package normalizer

import (
	"fmt"
	"log/slog"

	"github.com/ginjaninja78/ledger-normalizer/internal/mapping"
	"github.com/ginjaninja78/ledger-normalizer/internal/schema"
	"github.com/ginjaninja78/ledger-normalizer/internal/table"
)

// =============================================================================
// REPORT
// =============================================================================

// ClientReport summarizes the work done for one client.
type ClientReport struct {
	Client string

	// Rows is the number of records belonging to the client.
	Rows int

	// Source tells whether client-specific rules or the generic mapping applied.
	Source mapping.Source

	// MappedColumns counts mapping entries that wrote into the table.
	MappedColumns int

	// GuardedColumns counts entries skipped because a standard column was
	// already populated.
	GuardedColumns int

	// UnknownTargets counts entries whose target is not an output column.
	UnknownTargets int

	// Cleaned counts cells that could not be parsed as numbers.
	Cleaned int

	// Collisions counts cells left alone because an earlier source column
	// already filled the same canonical cell.
	Collisions int
}

// Report is the outcome of one Normalize call.
type Report struct {
	// Clients in first-seen order.
	Clients []ClientReport

	// FinalCleaned counts cells nulled by the final financial pass.
	FinalCleaned int
}

// TotalCleaned returns the number of cells nulled across all steps.
func (r *Report) TotalCleaned() int {
	total := r.FinalCleaned
	for _, c := range r.Clients {
		total += c.Cleaned
	}
	return total
}

// =============================================================================
// NORMALIZER
// =============================================================================

// Normalizer maps raw records onto the canonical schema.
type Normalizer struct {
	registry *schema.Registry
	resolver *mapping.Resolver
	rules    []mapping.Rule
	logger   *slog.Logger
}

// New creates a normalizer.
//
// PARAMETERS:
//   - registry: The canonical schema.
//   - resolver: Resolves each client's mapping.
//   - rules: The reference table, possibly empty.
//   - logger: Receives cleaning and skip records. May be nil.
func New(registry *schema.Registry, resolver *mapping.Resolver, rules []mapping.Rule, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		registry: registry,
		resolver: resolver,
		rules:    rules,
		logger:   logger,
	}
}

// clientRows groups record indices by client.
type clientRows struct {
	client  string
	indices []int
}

// Normalize builds the canonical table. Record IDs follow the order of
// records, starting at 1. The only error is an invalid output layout.
func (n *Normalizer) Normalize(records []table.RawRecord) (*table.Table, *Report, error) {
	report := &Report{}

	b, err := table.NewBuilder(n.registry.OutputColumns(), len(records))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lay out output columns: %w", err)
	}

	n.seedStandardColumns(b, records)

	for _, group := range partitionByClient(records) {
		report.Clients = append(report.Clients, n.applyClient(b, records, group))
	}

	report.FinalCleaned = n.finalNumericPass(b)

	return b.Build(), report, nil
}

// seedStandardColumns fills the standard prefix.
func (n *Normalizer) seedStandardColumns(b *table.Builder, records []table.RawRecord) {
	for i, rec := range records {
		set(b, schema.ColumnRecordID, i, table.Integer(int64(i+1)))
		set(b, schema.ColumnFileName, i, table.Text(rec.FileName))
		set(b, schema.ColumnClientName, i, table.Text(rec.ClientKey))

		for _, name := range n.registry.StandardColumns() {
			switch name {
			case schema.ColumnRecordID, schema.ColumnFileName, schema.ColumnClientName:
				continue
			}
			if v, ok := rec.Get(name); ok && !v.IsNull() {
				set(b, name, i, verbatim(v))
			}
		}
	}
}

// partitionByClient groups record indices by client key in first-seen order.
func partitionByClient(records []table.RawRecord) []clientRows {
	var groups []clientRows
	position := make(map[string]int)

	for i, rec := range records {
		pos, seen := position[rec.ClientKey]
		if !seen {
			pos = len(groups)
			position[rec.ClientKey] = pos
			groups = append(groups, clientRows{client: rec.ClientKey})
		}
		groups[pos].indices = append(groups[pos].indices, i)
	}

	return groups
}

// applyClient copies one client's mapped columns into the builder.
func (n *Normalizer) applyClient(b *table.Builder, records []table.RawRecord, group clientRows) ClientReport {
	res := n.resolver.Explain(group.client, n.rules)
	report := ClientReport{Client: group.client, Rows: len(group.indices), Source: res.Source}
	written := make(map[string]bool)

	for _, pair := range res.Mapping.Pairs() {
		if !b.HasColumn(pair.Canonical) {
			report.UnknownTargets++
			n.logger.Debug("mapping target is not an output column",
				slog.String("client", group.client),
				slog.String("column", pair.Original),
				slog.String("target", pair.Canonical))
			continue
		}

		// Only rows whose source file carries the column take part.
		var rows []int
		var values []table.Value
		for _, i := range group.indices {
			if v, ok := records[i].Get(pair.Original); ok {
				rows = append(rows, i)
				values = append(values, v)
			}
		}
		if len(rows) == 0 {
			continue
		}

		if n.registry.IsStandard(pair.Canonical) && populated(b, pair.Canonical, group.indices) {
			report.GuardedColumns++
			n.logger.Info("skipping mapping onto populated standard column",
				slog.String("client", group.client),
				slog.String("column", pair.Original),
				slog.String("target", pair.Canonical))
			continue
		}

		coerced, cleaned := n.coerce(pair.Canonical, values)
		if cleaned > 0 {
			report.Cleaned += cleaned
			n.logger.Warn("cleaned non-numeric values",
				slog.String("client", group.client),
				slog.String("column", pair.Original),
				slog.String("target", pair.Canonical),
				slog.Int("count", cleaned))
		}

		collisions := 0
		for k, i := range rows {
			if written[pair.Canonical] && !b.Get(pair.Canonical, i).IsNull() {
				collisions++
				continue
			}
			set(b, pair.Canonical, i, coerced[k])
		}
		if collisions > 0 {
			report.Collisions += collisions
			n.logger.Warn("canonical cells already filled by another source column",
				slog.String("client", group.client),
				slog.String("column", pair.Original),
				slog.String("target", pair.Canonical),
				slog.Int("count", collisions))
		}

		written[pair.Canonical] = true
		report.MappedColumns++
	}

	n.logger.Info("normalized client",
		slog.String("client", group.client),
		slog.Int("rows", report.Rows),
		slog.String("source", string(report.Source)),
		slog.Int("mapped_columns", report.MappedColumns),
		slog.Int("cleaned", report.Cleaned))

	return report
}

// coerce applies the numeric coercion policy to one source column.
func (n *Normalizer) coerce(canonical string, values []table.Value) ([]table.Value, int) {
	out := make([]table.Value, len(values))

	if n.registry.IsText(canonical) {
		for i, v := range values {
			out[i] = verbatim(v)
		}
		return out, 0
	}

	if !n.registry.IsFinancial(canonical) && uniformlyNumeric(values) {
		copy(out, values)
		return out, 0
	}

	cleaned := 0
	for i, v := range values {
		var lost bool
		out[i], lost = table.ToNumber(v)
		if lost {
			cleaned++
		}
	}
	return out, cleaned
}

// finalNumericPass forces every financial output column to numeric.
func (n *Normalizer) finalNumericPass(b *table.Builder) int {
	cleaned := 0

	for _, name := range n.registry.OutputColumns() {
		if n.registry.IsStandard(name) || n.registry.IsText(name) || !n.registry.IsFinancial(name) {
			continue
		}

		columnCleaned := 0
		for row := 0; row < b.Len(); row++ {
			v, lost := table.ToNumber(b.Get(name, row))
			if lost {
				columnCleaned++
			}
			set(b, name, row, v)
		}

		if columnCleaned > 0 {
			cleaned += columnCleaned
			n.logger.Warn("final pass cleaned non-numeric values",
				slog.String("target", name),
				slog.Int("count", columnCleaned))
		}
	}

	return cleaned
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// uniformlyNumeric reports whether every non-null value is a number.
func uniformlyNumeric(values []table.Value) bool {
	for _, v := range values {
		if !v.IsNull() && !v.IsNumeric() {
			return false
		}
	}
	return true
}

// populated reports whether any of rows has a value in column.
func populated(b *table.Builder, column string, rows []int) bool {
	for _, i := range rows {
		if !b.Get(column, i).IsNull() {
			return true
		}
	}
	return false
}

// verbatim keeps a value as a label. Whole numbers such as years lose their
// decimals; other numbers are kept.
func verbatim(v table.Value) table.Value {
	if v.Kind() != table.KindNumber {
		return v
	}
	d, _ := v.Decimal()
	if d.IsInteger() && d.Abs().IntPart() < 1<<53 {
		return table.Integer(d.IntPart())
	}
	return v
}

// set writes into the builder. Rows and columns come from the builder's own
// layout, so a failure is a programming error.
func set(b *table.Builder, column string, row int, v table.Value) {
	if err := b.Set(column, row, v); err != nil {
		panic(err)
	}
}
