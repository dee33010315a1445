// Package money implements cent-precision arithmetic and the canonical textual
// representation of amounts ("1,234,567.89").
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits kept for every amount.
const Places = 2

var hundred = decimal.NewFromInt(100)

// Round quantizes v to whole cents.
func Round(v decimal.Decimal) decimal.Decimal {
	return v.Round(Places)
}

// Add rounds both operands to cents before summing them, so a running total
// never accumulates sub-cent error.
func Add(a, b decimal.Decimal) decimal.Decimal {
	return Round(a).Add(Round(b))
}

// Subtract is Add with the second operand negated.
func Subtract(a, b decimal.Decimal) decimal.Decimal {
	return Round(a).Sub(Round(b))
}

// Sum folds Add over values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = Add(total, v)
	}
	return total
}

// FromMinorUnits converts an integer amount in minor units (kopiyky, cents)
// into major units.
func FromMinorUnits(minor int64) decimal.Decimal {
	return Round(decimal.NewFromInt(minor).Div(hundred))
}

// Format renders v with two decimals and comma thousands grouping.
func Format(v decimal.Decimal) string {
	s := Round(v).StringFixed(Places)

	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, fracPart := s, ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart, fracPart = s[:dot], s[dot:]
	}

	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteString(fracPart)
	return b.String()
}

// Parse reads a value produced by Format. Grouping separators and surrounding
// whitespace are ignored; empty or malformed input yields zero.
func Parse(s string) decimal.Decimal {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return v
}
