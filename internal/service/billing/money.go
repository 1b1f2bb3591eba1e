package billing

import (
	"github.com/shopspring/decimal"
)

const minorUnitExponent = 2

// ToMinorUnits converts a major-unit amount to the provider's minor units
func ToMinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Shift(minorUnitExponent).Round(0).IntPart()
}

// FromMinorUnits converts provider minor units back to a major-unit amount
func FromMinorUnits(minor int64) float64 {
	f, _ := decimal.New(minor, -minorUnitExponent).Float64()
	return f
}

// RefundMinorUnits returns floor(amount * rate) in minor units
func RefundMinorUnits(amount, rate float64) int64 {
	return decimal.NewFromFloat(amount).
		Shift(minorUnitExponent).
		Mul(decimal.NewFromFloat(rate)).
		Floor().
		IntPart()
}

// BelowMinimum reports whether amount cannot be paid through the provider
func BelowMinimum(amount, minimum float64) bool {
	return decimal.NewFromFloat(amount).LessThan(decimal.NewFromFloat(minimum))
}
