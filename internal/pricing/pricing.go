// Package pricing holds the discount arithmetic shared by cart totals and
// product display.
package pricing

import "github.com/shopspring/decimal"

// EffectivePrice returns the price after applying an offer percentage.
// A nil offer means no discount. The offer is expected to be a fraction in
// [0, 1); out-of-range values are passed through the same formula unchanged
// rather than clamped, so a caller feeding bad data gets a bad price back,
// never a panic. No rounding happens here; rounding to two decimals is a
// display concern.
func EffectivePrice(base decimal.Decimal, offer *decimal.Decimal) decimal.Decimal {
	if offer == nil {
		return base
	}
	remaining := decimal.NewFromInt(1).Sub(*offer)
	return remaining.Mul(base)
}
