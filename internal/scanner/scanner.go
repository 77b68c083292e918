// Package scanner walks pair snapshots against a scan frame and prices both
// crossing combinations of each pair. Output opportunities are frame-local:
// they carry the prices and depths they were judged at and are not revalidated
// here.
package scanner

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/crossvenue/crossarb/internal/fees"
	"github.com/crossvenue/crossarb/pkg/types"
)

// Config holds the classification thresholds and per-trade risk caps.
// Edge thresholds are percentages.
type Config struct {
	ImmediateMinEdgePct       float64
	ImmediateMaxEdgePct       float64
	LiquidityMinAnnualizedPct float64
	MaxPerTradeShares         float64
	MaxNotional               float64
	Logger                    *zap.Logger
}

// Scanner prices and classifies opportunities.
type Scanner struct {
	fees   *fees.Model
	cfg    Config
	logger *zap.Logger
}

// New builds a scanner over the fee model.
func New(feeModel *fees.Model, cfg Config) *Scanner {
	return &Scanner{fees: feeModel, cfg: cfg, logger: cfg.Logger}
}

// Scan evaluates every pair against the frame. Each pair yields at most two
// opportunities, one per combination; pairs with missing books, empty depth,
// or no positive raw edge yield nothing.
func (s *Scanner) Scan(pairs []types.MarketPair, frame *types.ScanFrame) []Opportunity {
	var out []Opportunity
	for i := range pairs {
		for _, comb := range Combinations() {
			opp, ok := s.evaluate(&pairs[i], comb, frame)
			if !ok {
				continue
			}
			opportunitiesTotal.WithLabelValues(string(opp.Class)).Inc()
			switch opp.Class {
			case ClassDiscard:
				continue
			case ClassSuspicious:
				s.logger.Warn("suspicious-edge-skipped",
					zap.String("reason", "edge > immediate_max_edge_pct"),
					zap.String("pair_id", opp.PairID),
					zap.String("combination", string(opp.Combination)),
					zap.Float64("effective_edge", opp.EffectiveEdge),
					zap.Float64("opinion_price", opp.OpinionLeg.Price),
					zap.Float64("polymarket_price", opp.PolymarketLeg.Price))
			}
			out = append(out, opp)
		}
	}
	return out
}

func (s *Scanner) evaluate(pair *types.MarketPair, comb Combination, frame *types.ScanFrame) (Opportunity, bool) {
	opOutcome := types.OutcomeYes
	if comb == BuyNoOpinionYesPolymarket {
		opOutcome = types.OutcomeNo
	}
	opToken := pair.Opinion.TokenFor(opOutcome)
	pmToken := pair.Polymarket.TokenFor(opOutcome.Complement())

	opBook := frame.Book(opToken.TokenID)
	pmBook := frame.Book(pmToken.TokenID)
	if opBook == nil || pmBook == nil {
		return Opportunity{}, false
	}
	opAsk := opBook.BestAsk()
	pmAsk := pmBook.BestAsk()
	if opAsk == nil || pmAsk == nil || opAsk.Size <= 0 || pmAsk.Size <= 0 {
		return Opportunity{}, false
	}

	costSum := opAsk.Price + pmAsk.Price
	rawEdge := 1 - costSum
	if rawEdge <= 0 {
		return Opportunity{}, false
	}

	sizeCap := math.Min(opAsk.Size, pmAsk.Size)
	sizeCap = math.Min(sizeCap, s.cfg.MaxPerTradeShares)
	if s.cfg.MaxNotional > 0 {
		sizeCap = math.Min(sizeCap, s.cfg.MaxNotional/costSum)
	}
	if sizeCap <= 0 {
		return Opportunity{}, false
	}

	opCost := s.fees.EffectiveCost(types.VenueOpinion, opAsk.Price, sizeCap)
	pmCost := s.fees.EffectiveCost(types.VenuePolymarket, pmAsk.Price, sizeCap)
	effectiveEdge := 1 - (opCost + pmCost)

	days := pair.DaysToResolution(frame.At)
	annualizedPct := effectiveEdge / costSum * (365 / days) * 100

	opp := Opportunity{
		ID:          newOpportunityID(),
		PairID:      pair.ID,
		Question:    pair.Question,
		Combination: comb,
		OpinionLeg: Leg{
			Token: opToken,
			Price: opAsk.Price,
			Depth: opAsk.Size,
		},
		PolymarketLeg: Leg{
			Token: pmToken,
			Price: pmAsk.Price,
			Depth: pmAsk.Size,
		},
		RawEdge:       rawEdge,
		EffectiveEdge: effectiveEdge,
		AnnualizedPct: annualizedPct,
		SizeCap:       sizeCap,
		DaysToResolve: days,
		DetectedAt:    frame.At,
	}
	opp.Class = s.classify(effectiveEdge*100, annualizedPct)
	return opp, true
}

func (s *Scanner) classify(effectiveEdgePct, annualizedPct float64) Class {
	switch {
	case effectiveEdgePct > s.cfg.ImmediateMaxEdgePct:
		return ClassSuspicious
	case effectiveEdgePct > s.cfg.ImmediateMinEdgePct:
		return ClassImmediate
	case annualizedPct >= s.cfg.LiquidityMinAnnualizedPct:
		return ClassLiquidity
	default:
		return ClassDiscard
	}
}

// RankImmediate orders immediate candidates best-first by annualized return.
// The sort is stable so equal candidates keep detection order.
func RankImmediate(opps []Opportunity) []Opportunity {
	out := filterClass(opps, ClassImmediate)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AnnualizedPct > out[j].AnnualizedPct
	})
	return out
}

// RankLiquidity orders liquidity candidates best-first by raw edge: a
// resting order's profit comes from the edge itself, not its annualization.
func RankLiquidity(opps []Opportunity) []Opportunity {
	out := filterClass(opps, ClassLiquidity)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RawEdge > out[j].RawEdge
	})
	return out
}

func filterClass(opps []Opportunity, class Class) []Opportunity {
	out := make([]Opportunity, 0, len(opps))
	for _, o := range opps {
		if o.Class == class {
			out = append(out, o)
		}
	}
	return out
}
