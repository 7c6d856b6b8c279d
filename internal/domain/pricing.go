package domain

// RewardBalance is a shopper's loyalty balance, fetched per identity.
// A nil balance means none exists or the fetch failed; both are treated as
// zero and never block checkout.
type RewardBalance struct {
	// Points is the redeemable point count.
	Points int64

	// ValueCents is the backend-reported currency value of the balance.
	// Informational; redemption math uses the fixed exchange rate.
	ValueCents int64
}

// PricingSnapshot is the derived money breakdown for one cart state. It is
// never stored; it is recomputed from the cart and reward balance whenever
// either changes.
//
// Invariants:
//
//	TotalCents == max(0, SubtotalCents + ShippingCents + TaxCents - RedemptionDiscountCents)
//	RedemptionDiscountCents <= SubtotalCents
//	PointsRedeemed <= min(available points, SubtotalCents / point value)
type PricingSnapshot struct {
	SubtotalCents           int64 `json:"subtotal_cents"`
	ShippingCents           int64 `json:"shipping_cents"`
	TaxCents                int64 `json:"tax_cents"`
	PointsRedeemed          int64 `json:"points_redeemed"`
	RedemptionDiscountCents int64 `json:"redemption_discount_cents"`
	TotalCents              int64 `json:"total_cents"`
}
