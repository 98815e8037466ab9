package transposer

import (
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/ledger-normalizer/internal/config"
	"github.com/ginjaninja78/ledger-normalizer/internal/schema"
	"github.com/ginjaninja78/ledger-normalizer/internal/table"
)

// Tolerance is the largest difference accepted by the totals check.
var Tolerance = decimal.New(1, -2)

// TotalCheck compares, for one date, the location revenues attributed to
// their entity rows with the ledger's own total on the General row.
type TotalCheck struct {
	Date       string
	Components decimal.Decimal
	Reported   decimal.Decimal
}

// Difference returns |Reported - Components|.
func (c TotalCheck) Difference() decimal.Decimal {
	return c.Reported.Sub(c.Components).Abs()
}

// Matches reports whether the difference is within Tolerance.
func (c TotalCheck) Matches() bool {
	return c.Difference().LessThan(Tolerance)
}

// CheckTotals runs the round-trip check on a transposed table: for every
// date, each TotalComponents label is summed across all entity rows and the
// result compared with the TotalLabel value of the General row. Because
// non-owning rows hold zero, a label leaked into other rows would inflate the
// component sum. No checks are produced when the ledger lacks the total label.
func CheckTotals(tbl *table.Table, settings config.LedgerSettings) []TotalCheck {
	if !tbl.HasColumn(settings.TotalLabel) {
		return nil
	}

	var general string
	for _, e := range settings.Entities {
		if e.Key == config.GeneralEntity {
			general = e.Name
		}
	}

	var order []string
	checks := make(map[string]*TotalCheck)

	for row := 0; row < tbl.Len(); row++ {
		date := tbl.Get(row, schema.ColumnDate).Text()
		check, ok := checks[date]
		if !ok {
			check = &TotalCheck{Date: date, Components: decimal.Zero, Reported: decimal.Zero}
			checks[date] = check
			order = append(order, date)
		}

		for _, label := range settings.TotalComponents {
			if d, ok := tbl.Get(row, label).Decimal(); ok {
				check.Components = check.Components.Add(d)
			}
		}

		if tbl.Get(row, schema.ColumnLocation).Text() == general {
			if d, ok := tbl.Get(row, settings.TotalLabel).Decimal(); ok {
				check.Reported = d
			}
		}
	}

	results := make([]TotalCheck, len(order))
	for i, date := range order {
		results[i] = *checks[date]
	}
	return results
}
