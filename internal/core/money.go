// Package core provides the domain model shared by every layer:
// users, categories, transactions, money handling, and calendar
// period resolution for the reporting endpoints.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a decimal currency string and normalizes it to a
// positive magnitude rounded to two decimal places. The sign carried by
// client input is discarded: a transaction's income/expense nature comes
// from its category's type, never from the amount's sign.
//
// Examples:
//
//	ParseAmount("42.50")  -> 42.50, nil
//	ParseAmount("-42.50") -> 42.50, nil
//	ParseAmount("12,34")  -> 12.34, nil
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	// Accept decimal comma input as well
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = NormalizeAmount(d)
	if d.IsZero() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// NormalizeAmount converts an amount to the canonical stored form:
// absolute value, two decimal places (half away from zero).
func NormalizeAmount(d decimal.Decimal) decimal.Decimal {
	return d.Abs().Round(2)
}

// Percentage returns part/total*100 rounded half away from zero to the
// nearest integer, or 0 when total is not positive.
func Percentage(part, total decimal.Decimal) int {
	if !total.IsPositive() {
		return 0
	}
	return int(part.Div(total).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
}
