// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from user input.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of decimal places an amount may carry.
const AmountScale = 2

// MaxAmount bounds amounts from above (exclusive). Stores keep twelve
// integer digits.
var MaxAmount = decimal.New(1, 12)

// CheckAmount reports ErrInvalidAmount unless d is positive, below
// MaxAmount and has at most AmountScale decimal places.
func CheckAmount(d decimal.Decimal) error {
	if !d.IsPositive() || d.GreaterThanOrEqual(MaxAmount) || !d.Equal(d.Truncate(AmountScale)) {
		return ErrInvalidAmount
	}
	return nil
}

// ToCents converts a checked amount to integer hundredths.
func ToCents(d decimal.Decimal) int64 {
	return d.Shift(AmountScale).IntPart()
}

// FromCents converts integer hundredths back to an amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -AmountScale)
}

// ParseAmount parses a positive decimal amount.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted.
// Signed, zero, malformed, out of range and sub-cent values are rejected
// with ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("-5")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil || CheckAmount(d) != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// parseBound parses an optional filter bound. Empty or unparseable input
// yields ok=false.
func parseBound(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	s = strings.Replace(s, ",", ".", 1)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
