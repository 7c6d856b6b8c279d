// Package pricing computes monetary totals for a cart snapshot. Everything
// here is pure: identical inputs always produce identical snapshots, which the
// UI relies on for idempotent re-renders and the tests rely on for scenarios.
package pricing

import (
	"math"

	"github.com/hollandm/idunn/internal/domain"
)

// PointValueCents is the fixed loyalty exchange rate: 100 points = 2 currency
// units, so 1 point = 2 minor units. Because the value is a whole number of
// cents, redemption discounts never carry fractional cents.
const PointValueCents = 2

// RedemptionCap returns the maximum points redeemable against a subtotal:
// min(available, subtotal / point value). This guarantees the discount can
// never exceed the subtotal.
func RedemptionCap(subtotalCents int64, availablePoints int64) int64 {
	if subtotalCents <= 0 || availablePoints <= 0 {
		return 0
	}
	cap := subtotalCents / PointValueCents
	if availablePoints < cap {
		return availablePoints
	}
	return cap
}

// ComputeTotals derives a pricing snapshot from cart lines, a reward balance,
// and the shipping/tax inputs chosen during checkout.
//
// Tax is always computed on the pre-redemption subtotal. One base for both
// displayed and charged amounts within a checkout session; there is no
// post-discount tax path.
func ComputeTotals(lines []domain.CartLine, balance *domain.RewardBalance, redeemRequested bool, shippingCents int64, taxRate float64) domain.PricingSnapshot {
	var subtotal int64
	for _, l := range lines {
		subtotal += l.LineTotalCents()
	}

	var redeemed, discount int64
	if redeemRequested && balance != nil {
		redeemed = RedemptionCap(subtotal, balance.Points)
		discount = redeemed * PointValueCents
	}

	tax := int64(math.Round(float64(subtotal) * taxRate))

	total := subtotal + shippingCents + tax - discount
	if total < 0 {
		total = 0
	}

	return domain.PricingSnapshot{
		SubtotalCents:           subtotal,
		ShippingCents:           shippingCents,
		TaxCents:                tax,
		PointsRedeemed:          redeemed,
		RedemptionDiscountCents: discount,
		TotalCents:              total,
	}
}
