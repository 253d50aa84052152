// Package money converts between integer base units and decimal strings.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNotPositive = errors.New("amount must be positive")
	ErrTooPrecise  = errors.New("amount has too many decimal places")
	ErrOutOfRange  = errors.New("amount is too large")

	maxUnits = decimal.New(math.MaxInt64, 0)
)

// Format renders base units with exactly decimals fractional digits.
func Format(units int64, decimals int32) string {
	return decimal.New(units, -decimals).StringFixed(decimals)
}

// Parse reads a positive decimal amount into base units.
func Parse(s string, decimals int32) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.Sign() <= 0 {
		return 0, ErrNotPositive
	}
	units := d.Shift(decimals)
	if !units.Equal(units.Truncate(0)) {
		return 0, ErrTooPrecise
	}
	if units.GreaterThan(maxUnits) {
		return 0, ErrOutOfRange
	}
	return units.IntPart(), nil
}
