// =============================================================================
// Ledger Normalizer - Table Values
// =============================================================================
//
// This package holds the typed scalar values, raw records and the normalized
// table shared by the loaders, the normalizer, the transposer and the writers.
//
// MISSING VALUES:
//   Two missing-value semantics are kept apart on purpose:
//   - Unknown():       the source had no usable value. Serialized as an empty
//                      cell and excluded from sums.
//   - NotApplicable(): the field does not apply to this row. Stored as a true
//                      zero and included in sums.
//   The normalizer produces Unknown for unparsable cells; the transposer
//   produces NotApplicable for categories owned by another entity.
//
// =============================================================================

package table

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Kind is the type of a Value.
type Kind int

const (
	// KindNull is an Unknown value.
	KindNull Kind = iota
	// KindNumber is a decimal amount, serialized with two decimals.
	KindNumber
	// KindInteger is a whole number such as a record id or a year.
	KindInteger
	// KindText is a label.
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindInteger:
		return "integer"
	case KindText:
		return "text"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a single typed cell. The zero Value is Unknown.
type Value struct {
	kind Kind
	num  decimal.Decimal
	text string
}

// Unknown returns the null value.
func Unknown() Value {
	return Value{}
}

// NotApplicable returns a true zero for fields that do not apply to a row.
func NotApplicable() Value {
	return Number(decimal.Zero)
}

// Number returns a decimal value.
func Number(d decimal.Decimal) Value {
	return Value{kind: KindNumber, num: d}
}

// Float returns a decimal value from a float64.
func Float(f float64) Value {
	return Number(decimal.NewFromFloat(f))
}

// Integer returns a whole-number value.
func Integer(i int64) Value {
	return Value{kind: KindInteger, num: decimal.NewFromInt(i)}
}

// Text returns a text value.
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// Kind returns the value's kind.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether v is Unknown.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// IsNumeric reports whether v holds a number or an integer.
func (v Value) IsNumeric() bool {
	return v.kind == KindNumber || v.kind == KindInteger
}

// Decimal returns the numeric content of v.
func (v Value) Decimal() (decimal.Decimal, bool) {
	if !v.IsNumeric() {
		return decimal.Zero, false
	}
	return v.num, true
}

// Text returns the raw text of a text value, or the formatted value otherwise.
func (v Value) Text() string {
	if v.kind == KindText {
		return v.text
	}
	return v.String()
}

// String formats v for output: numbers with two decimals, integers without a
// fraction, Unknown as the empty string.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return v.num.StringFixed(2)
	case KindInteger:
		return v.num.String()
	case KindText:
		return v.text
	default:
		return ""
	}
}

// Equal reports whether two values have the same kind and content.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNumber, KindInteger:
		return v.num.Equal(other.num)
	case KindText:
		return v.text == other.text
	default:
		return true
	}
}
