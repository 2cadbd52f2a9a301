// Package money converts between decimal amounts and integer cents.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Cents is an amount in the smallest currency unit.
type Cents = int64

// ParseAmount converts a decimal string such as "29.99" into cents. Amounts with
// more than two fractional digits are rejected rather than silently rounded.
func ParseAmount(value string) (Cents, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return FromDecimal(d)
}

// FromDecimal converts a decimal currency amount into cents.
func FromDecimal(d decimal.Decimal) (Cents, error) {
	if d.IsNegative() {
		return 0, fmt.Errorf("amount %s must not be negative", d.String())
	}
	scaled := d.Mul(hundred)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has sub-cent precision", d.String())
	}
	return scaled.IntPart(), nil
}

// ToDecimal converts cents into a two-place decimal amount.
func ToDecimal(c Cents) decimal.Decimal {
	return decimal.New(c, -2)
}

// Format renders cents as a fixed two-place string, e.g. 2999 -> "29.99".
func Format(c Cents) string {
	return ToDecimal(c).StringFixed(2)
}

// ApplyRate multiplies an amount by rate and rounds half away from zero to a
// whole cent.
func ApplyRate(c Cents, rate decimal.Decimal) Cents {
	return decimal.NewFromInt(c).Mul(rate).Round(0).IntPart()
}

// Percent returns pct percent of c, rounded to a whole cent.
func Percent(c Cents, pct decimal.Decimal) Cents {
	return ApplyRate(c, pct.Div(hundred))
}
