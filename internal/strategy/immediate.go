package strategy

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/crossvenue/crossarb/internal/fees"
	"github.com/crossvenue/crossarb/internal/scanner"
	"github.com/crossvenue/crossarb/internal/venue"
	"github.com/crossvenue/crossarb/pkg/types"
)

// ImmediateConfig holds the immediate strategy's execution knobs.
type ImmediateConfig struct {
	MinHedgeSize     float64
	SlippageCapTicks int
	PollInterval     time.Duration
	PollTimeout      time.Duration
}

// Immediate crosses both legs of an opportunity with IOC orders.
type Immediate struct {
	exec     *legExecutor
	cfg      ImmediateConfig
	deficits chan<- DeficitEvent
	logger   *zap.Logger
}

// NewImmediate builds the immediate strategy. Deficit events flow to the
// reconciler through the provided channel.
func NewImmediate(clients map[types.Venue]venue.Client, feeModel *fees.Model, tradeLog TradeLogger, deficits chan<- DeficitEvent, cfg ImmediateConfig, logger *zap.Logger) *Immediate {
	return &Immediate{
		exec:     newLegExecutor(clients, feeModel, tradeLog, cfg.PollInterval, cfg.PollTimeout, logger),
		cfg:      cfg,
		deficits: deficits,
		logger:   logger,
	}
}

// Execute runs one immediate opportunity to completion: first leg on the
// shallower venue, hedge for exactly the first leg's received quantity on the
// other. The returned position reflects every fill that actually happened,
// including aborts.
func (s *Immediate) Execute(ctx context.Context, opp scanner.Opportunity) (*Position, error) {
	firstLeg, hedgeLeg := orderLegs(opp)
	now := time.Now()
	pos := &Position{
		OpportunityID: opp.ID,
		PairID:        opp.PairID,
		Question:      opp.Question,
		Combination:   opp.Combination,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	s.logger.Info("immediate-execution-start",
		zap.String("opportunity_id", opp.ID),
		zap.String("pair_id", opp.PairID),
		zap.String("combination", string(opp.Combination)),
		zap.String("first_venue", string(firstLeg.Token.Venue)),
		zap.Float64("target_qty", opp.SizeCap),
		zap.Float64("effective_edge", opp.EffectiveEdge))

	first, err := s.exec.placeBuy(ctx, opp.ID, firstLeg.Token, firstLeg.Price, opp.SizeCap, types.TIFIOC)
	pos.First = first
	pos.UpdatedAt = time.Now()
	if err != nil {
		// Nothing filled, nothing to hedge.
		immediateAborts.WithLabelValues("first_leg_error").Inc()
		return pos, fmt.Errorf("first leg: %w", err)
	}

	if first.ReceivedQty < s.cfg.MinHedgeSize {
		if first.ReceivedQty > 0 {
			s.logger.Warn("immediate-fill-below-min-hedge",
				zap.String("opportunity_id", opp.ID),
				zap.Float64("received", first.ReceivedQty))
		}
		immediateAborts.WithLabelValues("below_min_hedge").Inc()
		return pos, nil
	}

	// Hedge at the scanned price, tolerating a bounded number of ticks of
	// slippage against us.
	hedgePrice := hedgeLeg.Price + float64(s.cfg.SlippageCapTicks)*hedgeLeg.Token.TickSize
	hedge, err := s.exec.placeBuy(ctx, opp.ID, hedgeLeg.Token, hedgePrice, first.ReceivedQty, types.TIFIOC)
	pos.Hedge = hedge
	pos.UpdatedAt = time.Now()
	if err != nil {
		s.logger.Error("immediate-hedge-failed",
			zap.String("opportunity_id", opp.ID),
			zap.Error(err))
	}

	if deficit := pos.Deficit(); deficit >= s.cfg.MinHedgeSize {
		s.sendDeficit(ctx, pos, opp, deficit)
	} else {
		immediateCompleted.Inc()
		s.logger.Info("immediate-execution-complete",
			zap.String("opportunity_id", opp.ID),
			zap.Float64("first_received", pos.First.ReceivedQty),
			zap.Float64("hedge_received", pos.Hedge.ReceivedQty))
	}
	return pos, err
}

func (s *Immediate) sendDeficit(ctx context.Context, pos *Position, opp scanner.Opportunity, deficit float64) {
	deficitsRecorded.Inc()
	s.logger.Warn("hedge-deficit-recorded",
		zap.String("opportunity_id", opp.ID),
		zap.Float64("deficit", deficit))
	select {
	case s.deficits <- DeficitEvent{Position: pos, Opportunity: opp, Remaining: deficit, At: time.Now()}:
	case <-ctx.Done():
		s.logger.Error("deficit-dropped-on-shutdown",
			zap.String("opportunity_id", opp.ID),
			zap.Float64("deficit", deficit))
	}
}

// orderLegs picks the shallower-depth leg to execute first; crossing the
// thin side first reduces the chance the deep side moves before the hedge.
func orderLegs(opp scanner.Opportunity) (first, hedge scanner.Leg) {
	if opp.OpinionLeg.Depth <= opp.PolymarketLeg.Depth {
		return opp.OpinionLeg, opp.PolymarketLeg
	}
	return opp.PolymarketLeg, opp.OpinionLeg
}
