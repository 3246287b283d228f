// Package types provides common value types used across bond.
package types

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Scale is the fixed-point factor applied to upstream energy values.
// Energy(87540) is 875.40 in the upstream unit (usually kWh).
const Scale = 100

// ErrNotFinite is returned when an upstream value is NaN or infinite.
var ErrNotFinite = errors.New("types: energy value is not finite")

// ErrOutOfRange is returned when a value does not fit in an Energy.
var ErrOutOfRange = errors.New("types: energy value out of range")

// Energy is an accumulated energy amount in hundredths of the upstream unit.
// All arithmetic is integer-only; floats only exist at the source boundary.
type Energy int64

// Canonicalize converts an upstream float into Energy by rendering it with
// two decimal digits and dropping the separator. Digits past the second
// decimal are truncated toward zero:
//
//	875.409090909 -> 87540
//	12.0          -> 1200
//	-3.999        -> -399
//
// The float is taken at its shortest decimal representation first, so 0.29
// yields 29 and not 28.
func Canonicalize(f float64) (Energy, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v", ErrNotFinite, f)
	}

	scaled := decimal.NewFromFloat(f).Truncate(2).Shift(2)
	if scaled.GreaterThan(decimal.NewFromInt(math.MaxInt64)) ||
		scaled.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return 0, fmt.Errorf("%w: %v", ErrOutOfRange, f)
	}

	return Energy(scaled.IntPart()), nil
}

// MustCanonicalize is like Canonicalize but panics on error. Use for
// constants and tests.
func MustCanonicalize(f float64) Energy {
	e, err := Canonicalize(f)
	if err != nil {
		panic(err)
	}
	return e
}

// ParseEnergy parses a decimal string such as "875.409" with the same
// truncation rule as Canonicalize.
func ParseEnergy(s string) (Energy, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("types: parse energy %q: %w", s, err)
	}
	return Energy(d.Truncate(2).Shift(2).IntPart()), nil
}

// Decimal returns the value in the upstream unit as an exact decimal.
func (e Energy) Decimal() decimal.Decimal {
	return decimal.New(int64(e), -2)
}

// Add returns the sum of two amounts.
func (e Energy) Add(other Energy) Energy { return e + other }

// Sub returns the difference of two amounts.
func (e Energy) Sub(other Energy) Energy { return e - other }

// IsZero returns true if the amount is zero.
func (e Energy) IsZero() bool { return e == 0 }

// IsNegative returns true if the amount is below zero.
func (e Energy) IsNegative() bool { return e < 0 }

// String renders the amount with two decimals, e.g. "875.40".
func (e Energy) String() string {
	return e.Decimal().StringFixed(2)
}

// Sum adds up a list of amounts.
func Sum(values ...Energy) Energy {
	var total Energy
	for _, v := range values {
		total += v
	}
	return total
}
