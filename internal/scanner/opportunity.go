package scanner

import (
	"time"

	"github.com/google/uuid"

	"github.com/crossvenue/crossarb/pkg/types"
)

// Combination names which outcome is bought on which venue. Buying YES on
// one venue and NO on the other covers both resolutions.
type Combination string

const (
	// BuyYesOpinionNoPolymarket buys YES on Opinion and NO on Polymarket.
	BuyYesOpinionNoPolymarket Combination = "YES_OPINION_NO_POLYMARKET"
	// BuyNoOpinionYesPolymarket buys NO on Opinion and YES on Polymarket.
	BuyNoOpinionYesPolymarket Combination = "NO_OPINION_YES_POLYMARKET"
)

// Combinations lists both crossing directions for a pair.
func Combinations() []Combination {
	return []Combination{BuyYesOpinionNoPolymarket, BuyNoOpinionYesPolymarket}
}

// Class buckets an opportunity by how it should be traded.
type Class string

const (
	// ClassImmediate crosses both books right now.
	ClassImmediate Class = "IMMEDIATE"
	// ClassLiquidity rests a maker order and hedges fills.
	ClassLiquidity Class = "LIQUIDITY"
	// ClassSuspicious is an edge too good to be real: usually a mismatched
	// pair or a broken book. Logged, never traded.
	ClassSuspicious Class = "SUSPICIOUS"
	// ClassDiscard is below every threshold.
	ClassDiscard Class = "DISCARD"
)

// Leg is one side of an opportunity.
type Leg struct {
	Token types.Token `json:"token"`
	Price float64     `json:"price"` // best ask at scan time
	Depth float64     `json:"depth"` // size available at that price
}

// Opportunity is one priced crossing of a pair, valid for the frame it was
// scanned from.
type Opportunity struct {
	ID            string      `json:"id"`
	PairID        string      `json:"pair_id"`
	Question      string      `json:"question"`
	Combination   Combination `json:"combination"`
	OpinionLeg    Leg         `json:"opinion_leg"`
	PolymarketLeg Leg         `json:"polymarket_leg"`

	RawEdge       float64 `json:"raw_edge"`       // 1 - (p1 + p2)
	EffectiveEdge float64 `json:"effective_edge"` // after fees
	AnnualizedPct float64 `json:"annualized_pct"`
	SizeCap       float64 `json:"size_cap"` // shares, bounded by depth and risk caps
	DaysToResolve float64 `json:"days_to_resolve"`

	Class      Class     `json:"class"`
	DetectedAt time.Time `json:"detected_at"`
}

func newOpportunityID() string {
	return uuid.New().String()
}

// CostSum is the combined per-share outlay of both legs before fees.
func (o *Opportunity) CostSum() float64 {
	return o.OpinionLeg.Price + o.PolymarketLeg.Price
}

// Leg returns the leg trading on the given venue.
func (o *Opportunity) Leg(v types.Venue) Leg {
	if v == types.VenueOpinion {
		return o.OpinionLeg
	}
	return o.PolymarketLeg
}
