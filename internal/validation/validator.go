// =============================================================================
// Ledger Normalizer - Validation Engine
// =============================================================================
//
// This module checks a normalized table after the fact. It never changes the
// table; findings are collected and reported, not thrown.
//
// CHECKS:
//   1. Sum checks:      a configured source column total, read from the raw
//                       records, must equal the canonical column total for
//                       the same client after normalization (within 0.01).
//   2. Financial types: every financial column holds numbers or nulls only.
//   3. Ledger totals:   the transposer's round-trip check, one finding per
//                       mismatching date.
//   4. Client summary:  records per client and the sum of the summary column
//                       (Total Revenue), with the count of cells ignored.
//
// SEVERITY:
//   - "error"   = a number did not survive normalization, the run is flagged
//   - "warning" = worth a look, never flags the run
//
// =============================================================================

package validation

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/ledger-normalizer/internal/config"
	"github.com/ginjaninja78/ledger-normalizer/internal/schema"
	"github.com/ginjaninja78/ledger-normalizer/internal/table"
	"github.com/ginjaninja78/ledger-normalizer/internal/transposer"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Check names used in ValidationError.Check.
const (
	CheckSum         = "sum"
	CheckFinancial   = "financial_type"
	CheckLedgerTotal = "ledger_total"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError represents a single validation finding.
type ValidationError struct {
	// Severity is SeverityError or SeverityWarning.
	Severity string

	// Check is the name of the check that produced the finding.
	Check string

	// Client is the client the finding is about, if any.
	Client string

	// Field is the column that failed validation.
	Field string

	// Value is the offending value, if any.
	Value string

	// Message is a human-readable message.
	Message string

	// Row is the 1-based output row, or 0 when the finding is not about a row.
	Row int
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", strings.ToUpper(e.Severity), e.Check)
	if e.Client != "" {
		fmt.Fprintf(&b, ", Client '%s'", e.Client)
	}
	if e.Row > 0 {
		fmt.Fprintf(&b, ", Row %d", e.Row)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ", Field '%s'", e.Field)
	}
	fmt.Fprintf(&b, ": %s", e.Message)
	if e.Value != "" {
		fmt.Fprintf(&b, " (value: '%s')", e.Value)
	}
	return b.String()
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// SumResult is the outcome of one sum check.
type SumResult struct {
	Client    string
	Original  string
	Canonical string

	// SourceRows counts raw records of the client that carry Original.
	SourceRows int

	SourceSum     decimal.Decimal
	NormalizedSum decimal.Decimal
	Matches       bool
}

// Difference returns |SourceSum - NormalizedSum|.
func (r SumResult) Difference() decimal.Decimal {
	return r.SourceSum.Sub(r.NormalizedSum).Abs()
}

// ClientSummary is the per-client line of the final summary.
type ClientSummary struct {
	Client  string
	Records int

	// Total is the sum of the summary column over the client's rows.
	Total decimal.Decimal

	// Ignored counts cells of the summary column without a number.
	Ignored int
}

// ValidationResult contains the results of validation.
type ValidationResult struct {
	// IsValid is true if there are no errors.
	IsValid bool

	// Errors contains all findings, including warnings.
	Errors []*ValidationError

	// ErrorCount is the number of errors.
	ErrorCount int

	// WarningCount is the number of warnings.
	WarningCount int

	// SumChecks in configuration order.
	SumChecks []SumResult

	// Clients in output order. Empty when the table has no summary column.
	Clients []ClientSummary
}

func (r *ValidationResult) add(errs ...*ValidationError) {
	for _, e := range errs {
		r.Errors = append(r.Errors, e)
		if e.Severity == SeverityError {
			r.ErrorCount++
		} else {
			r.WarningCount++
		}
	}
	r.IsValid = r.ErrorCount == 0
}

// Merge appends the findings and sum checks of other.
func (r *ValidationResult) Merge(other *ValidationResult) {
	r.add(other.Errors...)
	r.SumChecks = append(r.SumChecks, other.SumChecks...)
}

// =============================================================================
// VALIDATOR
// =============================================================================

// ValidationOptions contains options for validation.
type ValidationOptions struct {
	// Tolerance is the largest accepted sum difference.
	// Default: 0.01
	Tolerance decimal.Decimal

	// SummaryColumn is summed per client for the final summary.
	// Default: "Total Revenue"
	SummaryColumn string

	// TreatWarningsAsErrors raises every warning to an error.
	// Default: false
	TreatWarningsAsErrors bool
}

// DefaultValidationOptions returns the default validation options.
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{
		Tolerance:     decimal.New(1, -2),
		SummaryColumn: "Total Revenue",
	}
}

// Validator checks normalized tables against their raw records.
type Validator struct {
	registry *schema.Registry
	options  ValidationOptions
}

// NewValidator creates a validator with the default options.
func NewValidator(registry *schema.Registry) *Validator {
	return NewValidatorWithOptions(registry, DefaultValidationOptions())
}

// NewValidatorWithOptions creates a validator with custom options.
func NewValidatorWithOptions(registry *schema.Registry, options ValidationOptions) *Validator {
	return &Validator{registry: registry, options: options}
}

// =============================================================================
// MAIN VALIDATION FUNCTIONS
// =============================================================================

// ValidateAll runs the sum checks, the financial type check and the client
// summary.
//
// PARAMETERS:
//   - records: The raw records the table was normalized from.
//   - tbl: The normalized table.
//   - checks: The configured sum checks.
//
// RETURNS:
//   - A ValidationResult. It is never nil.
func (v *Validator) ValidateAll(records []table.RawRecord, tbl *table.Table, checks []config.SumCheck) *ValidationResult {
	result := &ValidationResult{IsValid: true}

	for _, check := range checks {
		sum, finding := v.CheckSum(records, tbl, check)
		result.SumChecks = append(result.SumChecks, sum)
		if finding != nil {
			result.add(v.severity(finding))
		}
	}

	for _, finding := range v.CheckFinancialTypes(tbl) {
		result.add(v.severity(finding))
	}

	result.Clients = v.Summarize(tbl)

	return result
}

// ValidateLedger turns the transposer's total checks into findings. A
// mismatch is a warning: the ledger's own total may be wrong.
func (v *Validator) ValidateLedger(client string, checks []transposer.TotalCheck) *ValidationResult {
	result := &ValidationResult{IsValid: true}

	for _, check := range checks {
		if check.Matches() {
			continue
		}
		result.add(v.severity(&ValidationError{
			Severity: SeverityWarning,
			Check:    CheckLedgerTotal,
			Client:   client,
			Field:    check.Date,
			Value:    check.Reported.String(),
			Message: fmt.Sprintf("location revenues add up to %s, ledger total differs by %s",
				check.Components.String(), check.Difference().String()),
		}))
	}

	return result
}

func (v *Validator) severity(e *ValidationError) *ValidationError {
	if v.options.TreatWarningsAsErrors {
		e.Severity = SeverityError
	}
	return e
}

// CheckSum compares the total of check.Original in the client's raw records
// with the total of check.Canonical in the client's output rows. Cells that
// are not numbers count as zero on both sides.
//
// RETURNS:
//   - The SumResult.
//   - A finding when the sums differ or a column is missing, nil otherwise.
func (v *Validator) CheckSum(records []table.RawRecord, tbl *table.Table, check config.SumCheck) (SumResult, *ValidationError) {
	result := SumResult{
		Client:        check.Client,
		Original:      check.Original,
		Canonical:     check.Canonical,
		SourceSum:     decimal.Zero,
		NormalizedSum: decimal.Zero,
	}

	for _, record := range records {
		if record.ClientKey != check.Client {
			continue
		}
		value, ok := record.Get(check.Original)
		if !ok {
			continue
		}
		result.SourceRows++
		if d, ok := numeric(value); ok {
			result.SourceSum = result.SourceSum.Add(d)
		}
	}

	if result.SourceRows == 0 {
		return result, &ValidationError{
			Severity: SeverityWarning,
			Check:    CheckSum,
			Client:   check.Client,
			Field:    check.Original,
			Message:  "source column not found in the client's records",
		}
	}

	if !tbl.HasColumn(check.Canonical) {
		return result, &ValidationError{
			Severity: SeverityError,
			Check:    CheckSum,
			Client:   check.Client,
			Field:    check.Canonical,
			Message:  "canonical column missing from the output",
		}
	}

	for row := 0; row < tbl.Len(); row++ {
		if tbl.Get(row, schema.ColumnClientName).Text() != check.Client {
			continue
		}
		if d, ok := tbl.Get(row, check.Canonical).Decimal(); ok {
			result.NormalizedSum = result.NormalizedSum.Add(d)
		}
	}

	result.Matches = result.Difference().LessThan(v.options.Tolerance)
	if result.Matches {
		return result, nil
	}

	return result, &ValidationError{
		Severity: SeverityError,
		Check:    CheckSum,
		Client:   check.Client,
		Field:    check.Canonical,
		Value:    result.NormalizedSum.StringFixed(2),
		Message: fmt.Sprintf("sum of '%s' was %s before normalization",
			check.Original, result.SourceSum.StringFixed(2)),
	}
}

// CheckFinancialTypes reports every text cell in a financial column.
func (v *Validator) CheckFinancialTypes(tbl *table.Table) []*ValidationError {
	var errs []*ValidationError

	for _, column := range tbl.Columns() {
		if v.registry.IsStandard(column) || v.registry.IsText(column) || !v.registry.IsFinancial(column) {
			continue
		}
		for row := 0; row < tbl.Len(); row++ {
			value := tbl.Get(row, column)
			if value.IsNull() || value.IsNumeric() {
				continue
			}
			errs = append(errs, &ValidationError{
				Severity: SeverityError,
				Check:    CheckFinancial,
				Client:   tbl.Get(row, schema.ColumnClientName).Text(),
				Field:    column,
				Value:    value.Text(),
				Row:      row + 1,
				Message:  "financial column holds text",
			})
		}
	}

	return errs
}

// Summarize returns one line per client in first-seen order. It returns nil
// when the table lacks the summary column.
func (v *Validator) Summarize(tbl *table.Table) []ClientSummary {
	if !tbl.HasColumn(v.options.SummaryColumn) {
		return nil
	}

	var order []string
	summaries := make(map[string]*ClientSummary)

	for row := 0; row < tbl.Len(); row++ {
		client := tbl.Get(row, schema.ColumnClientName).Text()
		summary, ok := summaries[client]
		if !ok {
			summary = &ClientSummary{Client: client, Total: decimal.Zero}
			summaries[client] = summary
			order = append(order, client)
		}

		summary.Records++
		if d, ok := tbl.Get(row, v.options.SummaryColumn).Decimal(); ok {
			summary.Total = summary.Total.Add(d)
		} else {
			summary.Ignored++
		}
	}

	result := make([]ClientSummary, len(order))
	for i, client := range order {
		result[i] = *summaries[client]
	}
	return result
}

// numeric reads a raw value the way the normalizer parses it.
func numeric(v table.Value) (decimal.Decimal, bool) {
	if d, ok := v.Decimal(); ok {
		return d, true
	}
	if v.Kind() == table.KindText {
		return table.ParseNumber(v.Text())
	}
	return decimal.Zero, false
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// FormatErrors formats validation findings for display or logging.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Validation completed with %d finding(s):\n\n", len(errors)))

	for i, err := range errors {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}

	return builder.String()
}

// WriteErrorLog writes validation findings to filePath. Nothing is written
// when there are no findings.
//
// RETURNS:
//   - An error if writing fails.
func WriteErrorLog(errors []*ValidationError, filePath string) error {
	if len(errors) == 0 {
		return nil
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create validation log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	fmt.Fprintf(writer, "Ledger Normalizer - Validation Log\nGenerated: %s\n\n",
		time.Now().Format("2006-01-02 15:04:05"))
	writer.WriteString(FormatErrors(errors))

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush validation log: %w", err)
	}
	return nil
}
