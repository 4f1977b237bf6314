// Package core holds the ledger's domain types, typed errors and the pure
// balance projections.
//
// Money is kept in integer minor units of a single currency. This file parses
// user-entered amounts and renders amounts for display.
package core

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	gomoney "github.com/Rhymond/go-money"
)

// DefaultCurrency is used when no currency is configured.
const DefaultCurrency = "IDR"

// ParseAmount converts a decimal string into minor units of currency.
//
// Dot and comma are both accepted as the decimal separator. Extra fractional
// digits beyond the currency's precision are rounded half-up. Zero, negative and
// malformed inputs return ErrInvalidAmount.
//
//	ParseAmount("12.34", "EUR") -> 1234
//	ParseAmount("12,345", "EUR") -> 1235
//	ParseAmount("100000", "JPY") -> 100000
func ParseAmount(s, currency string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Money{}, ErrInvalidAmount
	}
	intPart, fracPart := parts[0], ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return Money{}, ErrInvalidAmount
		}
	}

	digits := Fraction(currency)
	scale := int64(1)
	for i := 0; i < digits; i++ {
		scale *= 10
	}

	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}

	var frac int64
	for i := 0; i < digits; i++ {
		frac *= 10
		if i < len(fracPart) {
			frac += int64(fracPart[i] - '0')
		}
	}
	if len(fracPart) > digits && fracPart[digits] >= '5' {
		frac++
	}

	if iv > (math.MaxInt64-frac)/scale {
		return Money{}, ErrInvalidAmount
	}
	cents := iv*scale + frac
	if cents <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents}, nil
}

// Fraction returns the number of minor-unit digits of currency.
func Fraction(currency string) int {
	if c := gomoney.GetCurrency(normalizeCurrency(currency)); c != nil {
		return c.Fraction
	}
	return 2
}

// Format renders m in currency using the currency's symbol and separators.
func (m Money) Format(currency string) string {
	return gomoney.New(m.Cents, normalizeCurrency(currency)).Display()
}

func normalizeCurrency(currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return DefaultCurrency
	}
	return currency
}

// IsCurrency reports whether code is a known ISO 4217 currency.
func IsCurrency(code string) bool {
	return gomoney.GetCurrency(normalizeCurrency(code)) != nil
}
