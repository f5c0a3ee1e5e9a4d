package utils

import "github.com/shopspring/decimal"

// Rounding rule for the serialization boundary: round-half-even, 2 decimal
// places for amounts, 4 for rates. The core itself keeps full precision.
const (
	AmountPlaces = 2
	RatePlaces   = 4
)

// AmountToFloat rounds a monetary amount for JSON output.
func AmountToFloat(d decimal.Decimal) float64 {
	f, _ := d.RoundBank(AmountPlaces).Float64()
	return f
}

// RateToFloat rounds a rate for JSON output.
func RateToFloat(d decimal.Decimal) float64 {
	f, _ := d.RoundBank(RatePlaces).Float64()
	return f
}
