// Package core provides the recurring-rule domain model, money parsing
// and the pure schedule calculators.
//
// This file contains functions for parsing monetary amounts from user
// input and converting between cents and display representations.
package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseAmount converts a decimal string to a Money value in cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// performs half-up rounding on the third decimal place. The parser is
// tolerant: empty strings, non-numeric input, extra separators, signs
// and negative values all yield Money{0} instead of an error. Callers
// that require a positive amount reject zero via Money.Validate.
//
// Examples:
//
//	ParseAmount("5.50")   -> Money{550}
//	ParseAmount("0.01")   -> Money{1}
//	ParseAmount("12.346") -> Money{1235} (rounds up)
//	ParseAmount("")       -> Money{0}
//	ParseAmount("abc")    -> Money{0}
func ParseAmount(s string) Money {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		// Amounts are unsigned magnitudes; direction lives in Kind
		return Money{}
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Money{}
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return Money{}
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return Money{}
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return Money{}
	}
	// Prevent overflow when multiplying by 100
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return Money{}
	}
	// Take first two fractional digits; half-up rounding on the third
	var fracCents int64
	if len(fracPart) > 0 {
		d1 := int64(fracPart[0] - '0')
		fracCents = d1 * 10
		if len(fracPart) > 1 {
			d2 := int64(fracPart[1] - '0')
			fracCents += d2
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	return Money{Cents: iv*100 + fracCents}
}

// AmountFromFloat converts a floating value to cents, rounding to the
// nearest cent. Negative and non-finite values yield Money{0}, matching
// ParseAmount's tolerance.
func AmountFromFloat(v float64) Money {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return Money{}
	}
	return Money{Cents: int64(math.Round(v * 100))}
}

// Euros returns the euro value as a float64 for display purposes.
// Use cents for calculations to avoid floating-point precision issues.
func (m Money) Euros() float64 {
	return float64(m.Cents) / 100.0
}

// Format renders the amount as a Euro currency string (e.g. "€12,34").
func (m Money) Format() string {
	cents := m.Cents
	neg := cents < 0
	if neg {
		cents = -cents
	}
	s := strconv.FormatInt(cents/100, 10) + "," + fmt.Sprintf("%02d", cents%100)
	if neg {
		return "-€" + s
	}
	return "€" + s
}
