// Package fees implements the per-venue fee schedule and the translation
// between target fill quantity (shares we want to hold after fees) and order
// quantity (shares we submit).
//
// Opinion charges a taker fee on each trade:
//
//	fee_rate(p) = a*p*(1-p) + c
//	fee         = max(p * order_qty * fee_rate(p), MinFee)
//
// and withholds the fee from the received quantity at fee/p shares.
// Polymarket charges no order-side fee in this model, so its sizing is the
// identity.
package fees

import (
	"github.com/crossvenue/crossarb/pkg/types"
)

// Model computes fee-adjusted order sizing for both venues.
type Model struct {
	a      float64
	c      float64
	minFee float64
}

// Config holds the fee curve coefficients. The curve was fit from observed
// fills, so everything is configurable rather than hard-coded.
type Config struct {
	CurveA float64
	CurveC float64
	MinFee float64
}

// New creates a fee model.
func New(cfg Config) *Model {
	return &Model{a: cfg.CurveA, c: cfg.CurveC, minFee: cfg.MinFee}
}

// Rate returns Opinion's fee rate at the given price.
func (m *Model) Rate(price float64) float64 {
	return m.a*price*(1-price) + m.c
}

// Fee returns Opinion's fee in quote units for an order of orderQty shares at
// the given price, with the minimum-fee floor applied.
func (m *Model) Fee(price, orderQty float64) float64 {
	nominal := price * orderQty * m.Rate(price)
	if nominal < m.minFee {
		return m.minFee
	}
	return nominal
}

// OrderQtyForTarget returns the quantity to submit on the given venue so that
// the post-fee received quantity equals targetQty.
func (m *Model) OrderQtyForTarget(venue types.Venue, price, targetQty float64) float64 {
	if venue != types.VenueOpinion {
		return targetQty
	}
	if price <= 0 || targetQty <= 0 {
		return targetQty
	}

	rate := m.Rate(price)
	provisional := targetQty / (1 - rate)
	nominalFee := price * provisional * rate

	if nominalFee > m.minFee {
		return provisional
	}
	// Minimum fee dominates: the venue withholds MinFee/price shares flat.
	return targetQty + m.minFee/price
}

// ReceivedForOrder returns the post-fee quantity actually credited when an
// order of orderQty shares fills at the given price. The inverse of
// OrderQtyForTarget; used after fills to size the hedge leg.
func (m *Model) ReceivedForOrder(venue types.Venue, price, orderQty float64) float64 {
	if venue != types.VenueOpinion {
		return orderQty
	}
	if price <= 0 || orderQty <= 0 {
		return orderQty
	}

	received := orderQty - m.Fee(price, orderQty)/price
	if received < 0 {
		return 0
	}
	return received
}

// EffectiveCost returns the all-in per-share cost of acquiring targetQty
// shares on the given venue at the quoted price. For Polymarket this is the
// price itself.
func (m *Model) EffectiveCost(venue types.Venue, price, targetQty float64) float64 {
	if venue != types.VenueOpinion {
		return price
	}
	if price <= 0 || targetQty <= 0 {
		return price
	}

	rate := m.Rate(price)
	if rate >= 1 {
		return 1
	}

	orderQty := targetQty / (1 - rate)
	nominalFee := price * orderQty * rate

	if nominalFee > m.minFee {
		return price / (1 - rate)
	}
	// Minimum-fee branch: total spend is price*(target + MinFee/price), so the
	// per-received-share cost is price + MinFee/target.
	return price + m.minFee/targetQty
}
