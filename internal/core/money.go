// Package core holds the expense domain model and the pure computations the
// dashboard is built from: category lookup, filtering, period aggregation and
// currency formatting.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// centsExp is the exponent of Money.Cents relative to the currency unit.
const centsExp = -2

var maxCents = decimal.New(1<<63-1, centsExp)

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. The result is always positive cents.
// Returns an error for invalid formats, negative values, or zero amounts.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,34") -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil (rounds up)
//	ParseDecimalToCents("12.344") -> 1234, nil (rounds down)
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return 0, ErrInvalidAmount
	}
	// Digits and a single separator only: no signs, exponents or spaces.
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return 0, ErrInvalidAmount
		}
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	m, err := MoneyFromDecimal(d)
	if err != nil {
		return 0, err
	}
	if m.Cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return m.Cents, nil
}

// MoneyFromDecimal rounds d to cents, half away from zero.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	rounded := d.Round(-centsExp)
	if rounded.Abs().GreaterThan(maxCents) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: rounded.Shift(-centsExp).IntPart()}, nil
}

// Decimal returns the exact amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, centsExp)
}

// Float returns the amount in currency units for charting.
// Use cents for calculations to avoid floating-point precision issues.
func (m Money) Float() float64 {
	return m.Decimal().InexactFloat64()
}
