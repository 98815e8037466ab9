package table

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// NUMERIC COERCION
// =============================================================================

// nonNumeric matches everything ParseStripped throws away.
var nonNumeric = regexp.MustCompile(`[^\d.-]`)

// ParseNumber parses s as a plain decimal number. Surrounding whitespace is
// allowed; currency symbols, thousands separators and words are not.
func ParseNumber(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseStripped removes every character other than digits, '.' and '-' and
// parses what is left. ok is false, with a zero value, when nothing parsable
// remains. Exponents are stripped too, so try ParseNumber first.
//
// EXAMPLE:
//   "$1,234.50" -> 1234.50, true
//   "n/a"       -> 0, false
func ParseStripped(s string) (decimal.Decimal, bool) {
	cleaned := nonNumeric.ReplaceAllString(s, "")
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// InferCell types a raw cell read from a file: empty is Unknown, a plain
// number is a Number, everything else is Text.
func InferCell(raw string) Value {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Unknown()
	}
	if d, ok := ParseNumber(trimmed); ok {
		return Number(d)
	}
	return Text(trimmed)
}

// ToNumber coerces v to a number. Numbers and Unknown pass through; text is
// parsed and becomes Unknown when it is not a number. cleaned reports that a
// non-null value was lost.
func ToNumber(v Value) (result Value, cleaned bool) {
	switch v.Kind() {
	case KindNull:
		return v, false
	case KindNumber:
		return v, false
	case KindInteger:
		d, _ := v.Decimal()
		return Number(d), false
	}

	if d, ok := ParseNumber(v.Text()); ok {
		return Number(d), false
	}
	return Unknown(), true
}
