package strategy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crossvenue/crossarb/internal/fees"
	"github.com/crossvenue/crossarb/internal/tradelog"
	"github.com/crossvenue/crossarb/internal/venue"
	"github.com/crossvenue/crossarb/pkg/types"
)

// legExecutor is the shared order-placement core. Every strategy leg goes
// through it: size via the fee model, place, poll to terminal, book the
// realized fill, log it.
type legExecutor struct {
	clients      map[types.Venue]venue.Client
	fees         *fees.Model
	tradeLog     TradeLogger
	pollInterval time.Duration
	pollTimeout  time.Duration
	logger       *zap.Logger
}

func newLegExecutor(clients map[types.Venue]venue.Client, feeModel *fees.Model, tradeLog TradeLogger, pollInterval, pollTimeout time.Duration, logger *zap.Logger) *legExecutor {
	return &legExecutor{
		clients:      clients,
		fees:         feeModel,
		tradeLog:     tradeLog,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		logger:       logger,
	}
}

// placeBuy submits a buy for targetQty post-fee shares and waits for a
// terminal state. A partial or zero fill is not an error. If the poll times
// out the order is canceled and the last observed fill is booked.
func (e *legExecutor) placeBuy(ctx context.Context, opportunityID string, token types.Token, limitPrice, targetQty float64, tif types.TIF) (LegFill, error) {
	client := e.clients[token.Venue]
	limitPrice = token.ClampToGrid(limitPrice)
	orderQty := e.fees.OrderQtyForTarget(token.Venue, limitPrice, targetQty)

	ticket := &types.OrderTicket{
		ID:            uuid.New().String(),
		OpportunityID: opportunityID,
		Venue:         token.Venue,
		Token:         token,
		Side:          types.SideBuy,
		TargetFillQty: targetQty,
		OrderQty:      orderQty,
		LimitPrice:    limitPrice,
		TIF:           tif,
		State:         types.OrderPendingSubmit,
	}

	fill := LegFill{
		Venue:      token.Venue,
		Token:      token,
		OrderQty:   orderQty,
		LimitPrice: limitPrice,
	}

	ack, err := client.PlaceOrder(ctx, ticket)
	if err != nil {
		return fill, err
	}
	fill.OrderID = ack.OrderID

	st, pollErr := venue.PollUntilTerminal(ctx, client, ack.OrderID, e.pollInterval, e.pollTimeout, e.logger)
	if pollErr != nil && !st.State.IsTerminal() {
		// The venue went quiet mid-order: cancel, then book whatever the
		// last poll saw. IOC remainders are already dead venue-side.
		e.logger.Warn("order-poll-unterminated",
			zap.String("order_id", ack.OrderID),
			zap.String("venue", string(token.Venue)),
			zap.Error(pollErr))
		cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := client.CancelOrder(cancelCtx, ack.OrderID); err != nil {
			e.logger.Error("order-cancel-failed",
				zap.String("order_id", ack.OrderID),
				zap.Error(err))
		}
	}

	e.book(&fill, st, opportunityID)
	return fill, nil
}

// book folds an observed terminal status into the fill and writes the trade
// log entry.
func (e *legExecutor) book(fill *LegFill, st types.OrderStatus, opportunityID string) {
	fill.FilledQty = st.FilledQty
	fill.AvgFillPrice = st.AvgFillPrice
	if fill.AvgFillPrice <= 0 {
		fill.AvgFillPrice = fill.LimitPrice
	}
	if fill.FilledQty <= 0 {
		return
	}
	fill.ReceivedQty = e.fees.ReceivedForOrder(fill.Venue, fill.AvgFillPrice, fill.FilledQty)
	if fill.Venue == types.VenueOpinion {
		fill.Fee = e.fees.Fee(fill.AvgFillPrice, fill.FilledQty)
	}

	if err := e.tradeLog.LogLeg(tradelog.Entry{
		Time:          time.Now(),
		OpportunityID: opportunityID,
		Venue:         fill.Venue,
		TokenID:       fill.Token.TokenID,
		Side:          types.SideBuy,
		OrderQty:      fill.OrderQty,
		LimitPrice:    fill.LimitPrice,
		FilledQty:     fill.FilledQty,
		AvgFillPrice:  fill.AvgFillPrice,
		Fee:           fill.Fee,
	}); err != nil {
		e.logger.Error("trade-log-write-failed", zap.Error(err))
	}
	legsFilled.WithLabelValues(string(fill.Venue)).Inc()
}
