// Package money provides a fixed-precision monetary value type.
//
// Amounts are stored as an integer number of minor units (cents) at a fixed
// scale of two decimal places. All arithmetic stays in minor units, so
// addition and subtraction are exact; division rounds to the nearest minor
// unit with ties rounding half-up. Distributing rounding residuals across a
// set of shares is the allocator's responsibility, not Money's.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places carried by a Money value.
const Scale = 2

// Money is an amount in minor units (e.g. 1234 == 12.34).
type Money int64

// Zero is the zero amount.
const Zero Money = 0

// FromDecimal converts a decimal value to Money. It fails if the value
// carries more precision than the Money scale; no silent rounding here.
func FromDecimal(d decimal.Decimal) (Money, error) {
	shifted := d.Shift(Scale)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", d, Scale)
	}
	return Money(shifted.IntPart()), nil
}

// FromDecimalHalfUp converts a decimal value to Money, rounding to the
// nearest minor unit with ties away from zero (half-up for the non-negative
// amounts the engine works with).
func FromDecimalHalfUp(d decimal.Decimal) Money {
	return Money(d.Shift(Scale).Round(0).IntPart())
}

// Parse converts a decimal string such as "12.34" to Money.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return FromDecimal(d)
}

// Decimal renders the amount as a decimal value.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -Scale)
}

// String renders the amount with the full Money scale, e.g. "12.30".
func (m Money) String() string {
	return m.Decimal().StringFixed(Scale)
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool { return m > 0 }

// Neg returns the negated amount.
func (m Money) Neg() Money { return -m }

// Abs returns the absolute amount.
func (m Money) Abs() Money {
	if m < 0 {
		return -m
	}
	return m
}

// DivHalfUp divides the amount by n and rounds the result to the nearest
// minor unit, ties rounding half-up. Both operands must be non-negative;
// the engine never divides negative amounts.
func (m Money) DivHalfUp(n int64) Money {
	if n <= 0 {
		panic("money: division by non-positive count")
	}
	q := int64(m) / n
	r := int64(m) % n
	if 2*r >= n {
		q++
	}
	return Money(q)
}
