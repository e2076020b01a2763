// Package types provides quantity and unit primitives shared by the ledger and recipes.
package types

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Quantity is an exact decimal amount of an ingredient (grams or pieces) or a number of recipe runs.
// Uses decimal.Decimal so that folding a ledger never drifts.
type Quantity = decimal.Decimal

// RatioPrecision is the number of fractional digits kept when dividing quantities.
const RatioPrecision int32 = 8

// MaxIntegerDigits bounds the integer part of a quantity.
const MaxIntegerDigits = 15

// maxCoefficientDigits bounds the written length of a quantity, trailing zeros included.
const maxCoefficientDigits = 38

var (
	ErrQuantityPrecision = errors.New("quantity has more than 8 fractional digits")
	ErrQuantityRange     = errors.New("quantity is out of range")
)

// Hundred is used for percentage conversions.
var Hundred = decimal.NewFromInt(100)

// Zero returns zero Quantity.
func Zero() Quantity {
	return decimal.Zero
}

// NewQuantity creates a Quantity from a float.
// WARNING: Use ParseQuantity for user input.
func NewQuantity(f float64) Quantity {
	return decimal.NewFromFloat(f)
}

// NewQuantityFromInt creates a Quantity from an integer amount.
func NewQuantityFromInt(v int64) Quantity {
	return decimal.NewFromInt(v)
}

// ParseQuantity parses a decimal string such as "12.5".
// Values rejected by CheckQuantity are parse errors.
func ParseQuantity(s string) (Quantity, error) {
	q, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse quantity: %w", err)
	}
	if err := CheckQuantity(q); err != nil {
		return decimal.Zero, fmt.Errorf("parse quantity: %w", err)
	}
	return q, nil
}

// CheckQuantity rejects values with more than RatioPrecision fractional digits
// or more than MaxIntegerDigits integer digits. It inspects only the exponent and
// coefficient length, so oversized input never gets rescaled.
func CheckQuantity(q Quantity) error {
	digits := int64(q.NumDigits())
	exp := int64(q.Exponent())
	if digits > maxCoefficientDigits || digits+exp > MaxIntegerDigits {
		return ErrQuantityRange
	}
	if exp < -int64(RatioPrecision) {
		// Trailing zeros may still bring the value within precision.
		if -int64(RatioPrecision)-exp >= digits || !q.Truncate(RatioPrecision).Equal(q) {
			return ErrQuantityPrecision
		}
	}
	return nil
}

// MustQuantity parses a decimal string and panics on error.
// Use only for constants and tests.
func MustQuantity(s string) Quantity {
	return decimal.RequireFromString(s)
}

// WasteFactor converts a waste percentage into the multiplier 1 + rate/100.
func WasteFactor(rate Quantity) Quantity {
	return decimal.NewFromInt(1).Add(rate.Div(Hundred))
}

// DivFloor divides a by b keeping RatioPrecision digits, truncated toward zero,
// so that the result multiplied back by b never exceeds a for positive inputs.
func DivFloor(a, b Quantity) Quantity {
	q, _ := a.QuoRem(b, RatioPrecision)
	return q
}
