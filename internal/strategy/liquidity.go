package strategy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crossvenue/crossarb/internal/fees"
	"github.com/crossvenue/crossarb/internal/scanner"
	"github.com/crossvenue/crossarb/internal/venue"
	"github.com/crossvenue/crossarb/pkg/types"
)

// LiquidityConfig holds the maker strategy's knobs.
type LiquidityConfig struct {
	TargetSize       float64
	MaxOpenOrders    int
	RepriceInterval  time.Duration
	ExitAnnualized   float64 // cancel when the edge annualizes below this
	MinHedgeSize     float64
	SlippageCapTicks int
	PollInterval     time.Duration
	PollTimeout      time.Duration
}

// LiquidityTicket is one resting order and its accumulated hedges. All
// mutation happens under the maker's lock.
type LiquidityTicket struct {
	ID          string
	PairID      string
	Combination scanner.Combination
	State       LiquidityState
	Opportunity scanner.Opportunity // latest scan of this crossing

	RestToken  types.Token
	HedgeToken types.Token
	OrderID    string
	RestPrice  float64
	OrderQty   float64
	TargetQty  float64 // post-fee shares wanted

	FilledQty   float64 // cumulative order-unit fills reported by the venue
	ReceivedQty float64 // cumulative post-fee shares credited
	HedgedQty   float64 // cumulative post-fee shares hedged

	Position   *Position
	lastSubmit time.Time
}

// UnhedgedQty is the first-leg exposure not yet covered.
func (t *LiquidityTicket) UnhedgedQty() float64 {
	d := t.ReceivedQty - t.HedgedQty
	if d < 0 {
		return 0
	}
	return d
}

// Maker runs the liquidity strategy: rest one tick better than best on the
// wider-spread venue, hedge fills IOC on the other.
type Maker struct {
	exec     *legExecutor
	clients  map[types.Venue]venue.Client
	fees     *fees.Model
	cfg      LiquidityConfig
	deficits chan<- DeficitEvent
	logger   *zap.Logger

	mu      sync.Mutex
	tickets map[string]*LiquidityTicket // key: pairID + combination
}

// NewMaker builds the liquidity strategy.
func NewMaker(clients map[types.Venue]venue.Client, feeModel *fees.Model, tradeLog TradeLogger, deficits chan<- DeficitEvent, cfg LiquidityConfig, logger *zap.Logger) *Maker {
	return &Maker{
		exec:     newLegExecutor(clients, feeModel, tradeLog, cfg.PollInterval, cfg.PollTimeout, logger),
		clients:  clients,
		fees:     feeModel,
		cfg:      cfg,
		deficits: deficits,
		logger:   logger,
		tickets:  make(map[string]*LiquidityTicket),
	}
}

func ticketKey(pairID string, comb scanner.Combination) string {
	return pairID + "/" + string(comb)
}

// Tickets returns a snapshot of the live tickets for reporting. The HTTP
// layer reads these from its own goroutines, so the copies must not share
// anything mutable with the live tickets.
func (m *Maker) Tickets() []LiquidityTicket {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LiquidityTicket, 0, len(m.tickets))
	for _, t := range m.tickets {
		cp := *t
		if t.Position != nil {
			pos := *t.Position
			cp.Position = &pos
		}
		out = append(out, cp)
	}
	return out
}

// Evaluate advances every ticket against the new frame and opens tickets for
// fresh liquidity opportunities. Called once per scan frame from the
// supervisor goroutine; the maker is not safe for concurrent Evaluate calls.
func (m *Maker) Evaluate(ctx context.Context, opps []scanner.Opportunity, frame *types.ScanFrame) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := make(map[string]scanner.Opportunity, len(opps))
	for _, o := range opps {
		if o.Class == scanner.ClassLiquidity {
			current[ticketKey(o.PairID, o.Combination)] = o
		}
	}

	for key, t := range m.tickets {
		opp, stillOpen := current[key]
		if stillOpen {
			t.Opportunity = opp
		}
		if err := m.step(ctx, t, stillOpen, frame); err != nil {
			m.logger.Error("liquidity-ticket-error",
				zap.String("ticket_id", t.ID),
				zap.String("state", string(t.State)),
				zap.Error(err))
		}
		if t.State == LiquidityDone || t.State == LiquidityIdle {
			delete(m.tickets, key)
		}
	}

	for key, opp := range current {
		if _, exists := m.tickets[key]; exists {
			continue
		}
		if len(m.tickets) >= m.cfg.MaxOpenOrders {
			break
		}
		t := &LiquidityTicket{
			ID:          uuid.New().String(),
			PairID:      opp.PairID,
			Combination: opp.Combination,
			State:       LiquidityIdle,
			Opportunity: opp,
		}
		if err := m.rest(ctx, t, frame); err != nil {
			m.logger.Warn("liquidity-rest-failed",
				zap.String("pair_id", opp.PairID),
				zap.String("combination", string(opp.Combination)),
				zap.Error(err))
			continue
		}
		m.tickets[key] = t
	}
	liquidityTickets.Set(float64(len(m.tickets)))
}

// step advances one ticket by one frame.
func (m *Maker) step(ctx context.Context, t *LiquidityTicket, stillOpen bool, frame *types.ScanFrame) error {
	// Absorb any fills reported since the last frame.
	if err := m.absorbFills(ctx, t); err != nil {
		return err
	}
	if t.State == LiquidityDone || t.State == LiquidityIdle {
		return nil
	}

	// Fully filled: hedge the remainder and finish.
	if t.FilledQty >= t.OrderQty-1e-9 && t.OrderID != "" {
		return m.finish(ctx, t)
	}

	// Edge gone: cancel and unwind.
	if !stillOpen || t.Opportunity.AnnualizedPct < m.cfg.ExitAnnualized {
		m.logger.Info("liquidity-edge-collapsed",
			zap.String("ticket_id", t.ID),
			zap.Float64("annualized_pct", t.Opportunity.AnnualizedPct))
		return m.cancelAndUnwind(ctx, t)
	}

	// Book moved: reprice, rate-limited per ticket. Fires both when the bid
	// is topped and when the bid under ours falls away, where resting cheaper
	// captures the same edge.
	book := frame.Book(t.RestToken.TokenID)
	if book != nil && time.Since(t.lastSubmit) >= m.cfg.RepriceInterval {
		if want, ok := m.desiredRestPrice(t, book); ok &&
			(want > t.RestPrice+1e-9 || want < t.RestPrice-1e-9) {
			return m.reprice(ctx, t, want)
		}
	}
	return nil
}

// desiredRestPrice recomputes where the order should rest, looking through
// the ticket's own order: the frame snapshot includes it, so the reference
// bid is the best level priced away from ours. A level at exactly our price
// is a tie for best; moving would only give up queue priority.
func (m *Maker) desiredRestPrice(t *LiquidityTicket, book *types.BookSnapshot) (float64, bool) {
	tick := t.RestToken.TickSize
	var ref *types.BookLevel
	for i := range book.Bids {
		if lvl := &book.Bids[i]; lvl.Price > t.RestPrice+1e-9 || lvl.Price < t.RestPrice-1e-9 {
			ref = lvl
			break
		}
	}
	ask := book.BestAsk()
	var price float64
	switch {
	case ref != nil:
		price = ref.Price + tick
	case ask != nil:
		price = ask.Price - tick
	default:
		return 0, false
	}
	if ask != nil && price >= ask.Price {
		price = ask.Price - tick
	}
	price = t.RestToken.ClampToGrid(price)
	if price < tick {
		return 0, false
	}
	return price, true
}

// absorbFills polls the resting order and hedges any new fills. The hedge is
// sized to exactly the newly received shares, so hedged never exceeds filled.
func (m *Maker) absorbFills(ctx context.Context, t *LiquidityTicket) error {
	if t.OrderID == "" {
		return nil
	}
	client := m.clients[t.RestToken.Venue]
	st, err := client.PollOrder(ctx, t.OrderID)
	if err != nil {
		if types.IsRetryable(err) {
			return nil // try again next frame
		}
		return fmt.Errorf("poll resting order: %w", err)
	}

	if st.FilledQty > t.FilledQty {
		t.FilledQty = st.FilledQty
		price := st.AvgFillPrice
		if price <= 0 {
			price = t.RestPrice
		}
		total := m.fees.ReceivedForOrder(t.RestToken.Venue, price, t.FilledQty)
		if total > t.ReceivedQty {
			t.ReceivedQty = total
		}
		if t.State == LiquidityResting {
			t.State, _ = transition(t.State, LiquidityPartiallyFilled)
		}
		liquidityFills.Inc()
	}

	if st.State == types.OrderCanceled || st.State == types.OrderRejected {
		// Canceled venue-side (expiry, self-trade guard): drop back to a
		// clean slate after hedging what ever filled.
		t.OrderID = ""
		t.State, _ = transition(t.State, LiquidityCanceling)
		if t.UnhedgedQty() >= m.cfg.MinHedgeSize {
			t.State, _ = transition(t.State, LiquidityHedging)
			if err := m.hedge(ctx, t, t.UnhedgedQty()); err != nil {
				return err
			}
			t.State, _ = transition(t.State, LiquidityDone)
			return nil
		}
		t.State, _ = transition(t.State, LiquidityIdle)
		return nil
	}

	// Hedge incrementally as fills accumulate.
	if t.UnhedgedQty() >= m.cfg.MinHedgeSize {
		if err := m.hedge(ctx, t, t.UnhedgedQty()); err != nil {
			return err
		}
		if t.State == LiquidityPartiallyFilled && t.FilledQty < t.OrderQty-1e-9 {
			// Remainder keeps resting.
			t.State, _ = transition(t.State, LiquidityResting)
		}
	}
	return nil
}

// rest computes the resting price and submits the GTC order.
func (m *Maker) rest(ctx context.Context, t *LiquidityTicket, frame *types.ScanFrame) error {
	opp := t.Opportunity
	restLeg, hedgeLeg := m.chooseRestLeg(opp, frame)
	t.RestToken = restLeg.Token
	t.HedgeToken = hedgeLeg.Token

	price, ok := m.restPrice(restLeg, frame)
	if !ok {
		return fmt.Errorf("no viable resting price for %s", restLeg.Token.TokenID)
	}

	t.TargetQty = opp.SizeCap
	if m.cfg.TargetSize < t.TargetQty {
		t.TargetQty = m.cfg.TargetSize
	}
	if t.TargetQty < m.cfg.MinHedgeSize {
		return fmt.Errorf("target %.2f below min hedge size", t.TargetQty)
	}

	next, err := transition(t.State, LiquidityResting)
	if err != nil {
		return err
	}

	fill, err := m.submitResting(ctx, t, price)
	if err != nil {
		return err
	}
	t.State = next
	t.OrderID = fill.OrderID
	t.RestPrice = price
	t.OrderQty = fill.OrderQty
	t.lastSubmit = time.Now()
	m.logger.Info("liquidity-order-resting",
		zap.String("ticket_id", t.ID),
		zap.String("venue", string(t.RestToken.Venue)),
		zap.Float64("price", price),
		zap.Float64("order_qty", fill.OrderQty))
	return nil
}

// submitResting places the GTC order without waiting for a terminal state.
func (m *Maker) submitResting(ctx context.Context, t *LiquidityTicket, price float64) (LegFill, error) {
	client := m.clients[t.RestToken.Venue]
	orderQty := m.fees.OrderQtyForTarget(t.RestToken.Venue, price, t.TargetQty)
	ticket := &types.OrderTicket{
		ID:            uuid.New().String(),
		OpportunityID: t.Opportunity.ID,
		Venue:         t.RestToken.Venue,
		Token:         t.RestToken,
		Side:          types.SideBuy,
		TargetFillQty: t.TargetQty,
		OrderQty:      orderQty,
		LimitPrice:    price,
		TIF:           types.TIFGTC,
		State:         types.OrderPendingSubmit,
	}
	ack, err := client.PlaceOrder(ctx, ticket)
	if err != nil {
		return LegFill{}, fmt.Errorf("submit resting order: %w", err)
	}
	return LegFill{
		Venue:      t.RestToken.Venue,
		Token:      t.RestToken,
		OrderID:    ack.OrderID,
		OrderQty:   orderQty,
		LimitPrice: price,
	}, nil
}

// reprice cancels the resting order, waits for the cancel to settle, hedges
// any last-moment fills, and re-submits at the new price. The cancel is
// acknowledged before the re-submit, so there is never double exposure.
func (m *Maker) reprice(ctx context.Context, t *LiquidityTicket, price float64) error {
	next, err := transition(t.State, LiquidityRepricing)
	if err != nil {
		return err
	}
	t.State = next
	liquidityReprices.Inc()

	if err := m.settleCancel(ctx, t); err != nil {
		return err
	}

	remaining := t.TargetQty - t.ReceivedQty
	if remaining < m.cfg.MinHedgeSize {
		t.State, _ = transition(t.State, LiquidityIdle)
		return nil
	}
	t.TargetQty = remaining
	t.FilledQty = 0
	t.ReceivedQty = 0
	t.HedgedQty = 0

	nextState, err := transition(t.State, LiquidityResting)
	if err != nil {
		return err
	}
	fill, err := m.submitResting(ctx, t, price)
	if err != nil {
		t.State = LiquidityIdle
		return err
	}
	t.State = nextState
	t.OrderID = fill.OrderID
	t.RestPrice = price
	t.OrderQty = fill.OrderQty
	t.lastSubmit = time.Now()
	return nil
}

// cancelAndUnwind exits a ticket: cancel, hedge residual exposure, finish.
func (m *Maker) cancelAndUnwind(ctx context.Context, t *LiquidityTicket) error {
	next, err := transition(t.State, LiquidityCanceling)
	if err != nil {
		return err
	}
	t.State = next

	if err := m.settleCancel(ctx, t); err != nil {
		return err
	}
	if t.UnhedgedQty() >= m.cfg.MinHedgeSize {
		t.State, _ = transition(t.State, LiquidityHedging)
		if err := m.hedge(ctx, t, t.UnhedgedQty()); err != nil {
			return err
		}
		t.State, _ = transition(t.State, LiquidityDone)
		return nil
	}
	t.State, _ = transition(t.State, LiquidityIdle)
	return nil
}

// settleCancel cancels the resting order and absorbs its final fill count.
func (m *Maker) settleCancel(ctx context.Context, t *LiquidityTicket) error {
	if t.OrderID == "" {
		return nil
	}
	client := m.clients[t.RestToken.Venue]
	if err := client.CancelOrder(ctx, t.OrderID); err != nil {
		return fmt.Errorf("cancel resting order: %w", err)
	}
	st, err := venue.PollUntilTerminal(ctx, client, t.OrderID, m.cfg.PollInterval, m.cfg.PollTimeout, m.logger)
	if err != nil {
		m.logger.Warn("cancel-settle-incomplete",
			zap.String("order_id", t.OrderID),
			zap.Error(err))
	}
	if st.FilledQty > t.FilledQty {
		t.FilledQty = st.FilledQty
		price := st.AvgFillPrice
		if price <= 0 {
			price = t.RestPrice
		}
		total := m.fees.ReceivedForOrder(t.RestToken.Venue, price, t.FilledQty)
		if total > t.ReceivedQty {
			t.ReceivedQty = total
		}
	}
	t.OrderID = ""
	return nil
}

// finish hedges the remainder of a fully filled order and closes the ticket.
func (m *Maker) finish(ctx context.Context, t *LiquidityTicket) error {
	if t.State != LiquidityFilled {
		next, err := transition(t.State, LiquidityFilled)
		if err != nil {
			return err
		}
		t.State = next
	}
	if t.UnhedgedQty() >= m.cfg.MinHedgeSize {
		t.State, _ = transition(t.State, LiquidityHedging)
		if err := m.hedge(ctx, t, t.UnhedgedQty()); err != nil {
			return err
		}
	}
	t.State, _ = transition(t.State, LiquidityDone)
	t.OrderID = ""
	liquidityCompleted.Inc()
	return nil
}

// hedge places an IOC buy of qty post-fee shares on the hedge venue at the
// scanned price plus bounded slippage. Shortfalls go to the reconciler.
func (m *Maker) hedge(ctx context.Context, t *LiquidityTicket, qty float64) error {
	hedgeLeg := t.Opportunity.Leg(t.HedgeToken.Venue)
	price := hedgeLeg.Price + float64(m.cfg.SlippageCapTicks)*t.HedgeToken.TickSize

	fill, err := m.exec.placeBuy(ctx, t.Opportunity.ID, t.HedgeToken, price, qty, types.TIFIOC)
	if err != nil {
		return fmt.Errorf("hedge: %w", err)
	}
	t.HedgedQty += fill.ReceivedQty

	if t.Position == nil {
		now := time.Now()
		t.Position = &Position{
			OpportunityID: t.Opportunity.ID,
			PairID:        t.PairID,
			Question:      t.Opportunity.Question,
			Combination:   t.Combination,
			CreatedAt:     now,
		}
	}
	t.Position.First = LegFill{
		Venue:        t.RestToken.Venue,
		Token:        t.RestToken,
		OrderQty:     t.OrderQty,
		LimitPrice:   t.RestPrice,
		FilledQty:    t.FilledQty,
		ReceivedQty:  t.ReceivedQty,
		AvgFillPrice: t.RestPrice,
	}
	t.Position.Hedge.Venue = t.HedgeToken.Venue
	t.Position.Hedge.Token = t.HedgeToken
	t.Position.Hedge.ReceivedQty = t.HedgedQty
	t.Position.Hedge.AvgFillPrice = fill.AvgFillPrice
	t.Position.UpdatedAt = time.Now()

	if shortfall := qty - fill.ReceivedQty; shortfall >= m.cfg.MinHedgeSize {
		deficitsRecorded.Inc()
		select {
		case m.deficits <- DeficitEvent{
			Position:    t.Position,
			Opportunity: t.Opportunity,
			Remaining:   shortfall,
			At:          time.Now(),
		}:
			// The reconciler owns the shortfall now; count it hedged here so
			// the ticket does not re-hedge the same shares.
			t.HedgedQty += shortfall
		case <-ctx.Done():
			m.logger.Error("deficit-dropped-on-shutdown",
				zap.String("ticket_id", t.ID),
				zap.Float64("deficit", shortfall))
		}
	}
	return nil
}

// chooseRestLeg rests on the venue with the wider spread: more room to
// improve the bid while keeping the edge.
func (m *Maker) chooseRestLeg(opp scanner.Opportunity, frame *types.ScanFrame) (rest, hedge scanner.Leg) {
	opSpread := spread(frame.Book(opp.OpinionLeg.Token.TokenID))
	pmSpread := spread(frame.Book(opp.PolymarketLeg.Token.TokenID))
	if pmSpread > opSpread {
		return opp.PolymarketLeg, opp.OpinionLeg
	}
	return opp.OpinionLeg, opp.PolymarketLeg
}

// restPrice is one tick over the best bid, never at or above the ask.
func (m *Maker) restPrice(leg scanner.Leg, frame *types.ScanFrame) (float64, bool) {
	tick := leg.Token.TickSize
	price := leg.Price - tick // no bid: undercut the ask
	if book := frame.Book(leg.Token.TokenID); book != nil {
		if bid := book.BestBid(); bid != nil {
			price = bid.Price + tick
		}
		if ask := book.BestAsk(); ask != nil && price >= ask.Price {
			price = ask.Price - tick
		}
	}
	price = leg.Token.ClampToGrid(price)
	if price < tick {
		return 0, false
	}
	return price, true
}

func spread(book *types.BookSnapshot) float64 {
	if book == nil {
		return 0
	}
	bid, ask := book.BestBid(), book.BestAsk()
	if bid == nil || ask == nil {
		return 0
	}
	return ask.Price - bid.Price
}

// CancelAll exits every ticket; used on shutdown and pair de-listing.
func (m *Maker) CancelAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, t := range m.tickets {
		if err := m.cancelAndUnwind(ctx, t); err != nil {
			m.logger.Error("liquidity-shutdown-unwind-failed",
				zap.String("ticket_id", t.ID),
				zap.Error(err))
		}
		if t.UnhedgedQty() > 0 {
			m.logger.Warn("unhedged-exposure-at-shutdown",
				zap.String("ticket_id", t.ID),
				zap.Float64("unhedged", t.UnhedgedQty()))
		}
		delete(m.tickets, key)
	}
	liquidityTickets.Set(0)
}
