package types

import "math"

// PriceDecimals is the maximum number of decimal places a price may carry.
const PriceDecimals = 3

// Token identifies one outcome of one market on one venue.
type Token struct {
	Venue        Venue
	MarketID     string
	TokenID      string
	Outcome      Outcome
	TickSize     float64
	MinOrderSize float64
}

// RoundPrice rounds a price to the global decimal bound.
func RoundPrice(p float64) float64 {
	shift := math.Pow10(PriceDecimals)
	return math.Round(p*shift) / shift
}

// OnTickGrid reports whether a price lies on the token's tick grid.
func (t Token) OnTickGrid(price float64) bool {
	if t.TickSize <= 0 {
		return true
	}
	ticks := price / t.TickSize
	return math.Abs(ticks-math.Round(ticks)) < 1e-9
}

// ClampToGrid snaps a price down onto the token's tick grid and into (0, 1).
func (t Token) ClampToGrid(price float64) float64 {
	if t.TickSize > 0 {
		price = math.Floor(price/t.TickSize+1e-9) * t.TickSize
	}
	price = RoundPrice(price)
	if price < t.TickSize {
		price = t.TickSize
	}
	if price > 1-t.TickSize {
		price = 1 - t.TickSize
	}
	return RoundPrice(price)
}
