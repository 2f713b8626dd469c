// Package money holds the fixed-point arithmetic rules shared by every
// monetary formula in the ledger.
package money

import "github.com/shopspring/decimal"

const (
	// Scale is the number of fractional digits kept for intermediate results
	Scale int32 = 36
	// StorageScale is the number of fractional digits stored for balances
	StorageScale int32 = 2
	// PayoutScale is the number of fractional digits of a fixed-term payout
	PayoutScale int32 = 3
)

var hundred = decimal.NewFromInt(100)

// Div divides a by b at the intermediate scale, rounding half-up
func Div(a, b decimal.Decimal) decimal.Decimal {
	return a.DivRound(b, Scale)
}

// Percent converts percentage points into a ratio (5.25 -> 0.0525)
func Percent(points decimal.Decimal) decimal.Decimal {
	return Div(points, hundred)
}

// Round rounds to the storage scale, half-up
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(StorageScale)
}

// Format renders an amount at the storage scale
func Format(d decimal.Decimal) string {
	return d.StringFixed(StorageScale)
}

// FitsStorageScale reports whether d has no significant digits beyond the
// storage scale
func FitsStorageScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(StorageScale))
}
