// Package strategy executes opportunities: the immediate strategy crosses
// both books at once, the liquidity maker rests orders and hedges fills, and
// the reconciler chases hedge deficits. A position's state is only mutated by
// the goroutine that owns its ticket.
package strategy

import (
	"fmt"
	"time"

	"github.com/crossvenue/crossarb/internal/scanner"
	"github.com/crossvenue/crossarb/internal/tradelog"
	"github.com/crossvenue/crossarb/pkg/types"
)

// TradeLogger records executed legs. *tradelog.Log satisfies it.
type TradeLogger interface {
	LogLeg(e tradelog.Entry) error
}

// LegFill is the realized outcome of one order leg.
type LegFill struct {
	Venue        types.Venue `json:"venue"`
	Token        types.Token `json:"token"`
	OrderID      string      `json:"order_id"`
	OrderQty     float64     `json:"order_qty"`
	LimitPrice   float64     `json:"limit_price"`
	FilledQty    float64     `json:"filled_qty"`
	ReceivedQty  float64     `json:"received_qty"` // post-fee shares credited
	AvgFillPrice float64     `json:"avg_fill_price"`
	Fee          float64     `json:"fee"`
}

// Position is a first leg plus its hedge. Hedged quantity never exceeds the
// first leg's received quantity.
type Position struct {
	OpportunityID string              `json:"opportunity_id"`
	PairID        string              `json:"pair_id"`
	Question      string              `json:"question"`
	Combination   scanner.Combination `json:"combination"`
	First         LegFill             `json:"first"`
	Hedge         LegFill             `json:"hedge"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// Deficit is the unhedged remainder of the first leg.
func (p *Position) Deficit() float64 {
	d := p.First.ReceivedQty - p.Hedge.ReceivedQty
	if d < 0 {
		return 0
	}
	return d
}

// Balanced reports whether the hedge covers the first leg within tolerance.
func (p *Position) Balanced(tolerance float64) bool {
	return p.Deficit() <= tolerance
}

// DeficitEvent asks the reconciler to complete a short hedge.
type DeficitEvent struct {
	Position    *Position
	Opportunity scanner.Opportunity
	Remaining   float64
	At          time.Time
}

// LiquidityState is the lifecycle of a resting liquidity ticket.
type LiquidityState string

const (
	LiquidityIdle            LiquidityState = "IDLE"
	LiquidityResting         LiquidityState = "RESTING"
	LiquidityPartiallyFilled LiquidityState = "PARTIALLY_FILLED"
	LiquidityFilled          LiquidityState = "FILLED"
	LiquidityRepricing       LiquidityState = "REPRICING"
	LiquidityHedging         LiquidityState = "HEDGING"
	LiquidityCanceling       LiquidityState = "CANCELING"
	LiquidityDone            LiquidityState = "DONE"
)

// legalLiquidityTransitions is the full transition relation. CANCELING is
// reachable from every live state for shutdown and de-listing.
var legalLiquidityTransitions = map[LiquidityState][]LiquidityState{
	LiquidityIdle:            {LiquidityResting},
	LiquidityResting:         {LiquidityPartiallyFilled, LiquidityFilled, LiquidityRepricing, LiquidityCanceling},
	LiquidityPartiallyFilled: {LiquidityResting, LiquidityFilled, LiquidityHedging, LiquidityRepricing, LiquidityCanceling},
	LiquidityFilled:          {LiquidityHedging, LiquidityDone, LiquidityCanceling},
	LiquidityRepricing:       {LiquidityResting, LiquidityIdle, LiquidityCanceling},
	LiquidityHedging:         {LiquidityDone, LiquidityCanceling},
	LiquidityCanceling:       {LiquidityIdle, LiquidityHedging, LiquidityDone},
	LiquidityDone:            nil,
}

// CanTransition reports whether from -> to is a legal liquidity transition.
func CanTransition(from, to LiquidityState) bool {
	for _, s := range legalLiquidityTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// transition validates and applies a state change. An illegal transition is
// a programming error; it is reported, never applied.
func transition(from, to LiquidityState) (LiquidityState, error) {
	if !CanTransition(from, to) {
		return from, fmt.Errorf("illegal liquidity transition %s -> %s", from, to)
	}
	return to, nil
}
