package strategy

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crossvenue/crossarb/internal/fees"
	"github.com/crossvenue/crossarb/internal/venue"
	"github.com/crossvenue/crossarb/pkg/types"
)

// ReconcilerConfig bounds how hard the reconciler chases a missing hedge.
type ReconcilerConfig struct {
	MaxAttempts  int
	StopLossEdge float64 // give up once the price concession eats the edge minus this
	MinHedgeSize float64
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// Residual is exposure the reconciler could not close. It stays on the books
// until an operator deals with it.
type Residual struct {
	Position  *Position
	Remaining float64
	Reason    string
	At        time.Time
}

// Reconciler closes hedge shortfalls with progressively more aggressive IOC
// orders, walking one tick up per attempt from the current best ask.
type Reconciler struct {
	exec    *legExecutor
	clients map[types.Venue]venue.Client
	cfg     ReconcilerConfig
	logger  *zap.Logger

	mu        sync.Mutex
	residuals []Residual
}

// NewReconciler builds the reconciler.
func NewReconciler(clients map[types.Venue]venue.Client, feeModel *fees.Model, tradeLog TradeLogger, cfg ReconcilerConfig, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		exec:    newLegExecutor(clients, feeModel, tradeLog, cfg.PollInterval, cfg.PollTimeout, logger),
		clients: clients,
		cfg:     cfg,
		logger:  logger,
	}
}

// Residuals returns a copy of the give-ups for reporting.
func (r *Reconciler) Residuals() []Residual {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Residual, len(r.residuals))
	copy(out, r.residuals)
	return out
}

// Run consumes deficit events until the channel closes or the context ends.
// The supervisor closes the channel after the strategies stop, so every
// in-flight deficit gets a reconciliation pass before shutdown.
func (r *Reconciler) Run(ctx context.Context, events <-chan DeficitEvent) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.reconcile(ctx, ev)
		case <-ctx.Done():
			// Drain what is already queued, then stop.
			for {
				select {
				case ev, ok := <-events:
					if !ok {
						return
					}
					r.reconcile(context.WithoutCancel(ctx), ev)
				default:
					return
				}
			}
		}
	}
}

func (r *Reconciler) reconcile(ctx context.Context, ev DeficitEvent) {
	token := ev.Position.Hedge.Token
	client := r.clients[token.Venue]
	scanned := ev.Opportunity.Leg(token.Venue).Price
	ceiling := scanned + ev.Opportunity.RawEdge - r.cfg.StopLossEdge

	remaining := ev.Remaining
	for k := 0; k < r.cfg.MaxAttempts && remaining >= r.cfg.MinHedgeSize; k++ {
		book, err := client.GetBook(ctx, token.TokenID)
		if err != nil {
			r.logger.Warn("reconcile-book-fetch-failed",
				zap.String("token_id", token.TokenID),
				zap.Error(err))
			continue
		}
		ask := book.BestAsk()
		if ask == nil {
			r.giveUp(ev, remaining, "no_liquidity")
			return
		}

		limit := token.ClampToGrid(ask.Price + float64(k)*token.TickSize)
		if limit > ceiling {
			r.giveUp(ev, remaining, "stop_loss")
			return
		}

		reconcileAttempts.Inc()
		fill, err := r.exec.placeBuy(ctx, ev.Position.OpportunityID, token, limit, remaining, types.TIFIOC)
		if err != nil {
			r.logger.Warn("reconcile-hedge-failed",
				zap.String("opportunity_id", ev.Position.OpportunityID),
				zap.Int("attempt", k+1),
				zap.Error(err))
			continue
		}
		if fill.ReceivedQty > 0 {
			remaining -= fill.ReceivedQty
			r.bookHedge(ev.Position, fill)
			r.logger.Info("reconcile-hedge-filled",
				zap.String("opportunity_id", ev.Position.OpportunityID),
				zap.Int("attempt", k+1),
				zap.Float64("received", fill.ReceivedQty),
				zap.Float64("remaining", remaining))
		}
	}

	if remaining >= r.cfg.MinHedgeSize {
		r.giveUp(ev, remaining, "attempts_exhausted")
		return
	}
	r.logger.Info("deficit-reconciled",
		zap.String("opportunity_id", ev.Position.OpportunityID),
		zap.Float64("residual", remaining))
}

// bookHedge folds a reconciliation fill into the position's hedge leg.
func (r *Reconciler) bookHedge(pos *Position, fill LegFill) {
	h := &pos.Hedge
	prior := h.ReceivedQty
	h.Venue = fill.Venue
	h.Token = fill.Token
	h.OrderID = fill.OrderID
	h.FilledQty += fill.FilledQty
	h.ReceivedQty += fill.ReceivedQty
	h.Fee += fill.Fee
	if h.ReceivedQty > 0 {
		h.AvgFillPrice = (h.AvgFillPrice*prior + fill.AvgFillPrice*fill.ReceivedQty) / h.ReceivedQty
	}
	pos.UpdatedAt = time.Now()
}

func (r *Reconciler) giveUp(ev DeficitEvent, remaining float64, reason string) {
	r.mu.Lock()
	r.residuals = append(r.residuals, Residual{
		Position:  ev.Position,
		Remaining: remaining,
		Reason:    reason,
		At:        time.Now(),
	})
	r.mu.Unlock()
	unhedgedResidual.Add(remaining)
	r.logger.Error("unhedged-residual",
		zap.String("opportunity_id", ev.Position.OpportunityID),
		zap.String("pair_id", ev.Position.PairID),
		zap.Float64("remaining", remaining),
		zap.String("reason", reason))
}
