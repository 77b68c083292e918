package venue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/crossvenue/crossarb/pkg/types"
)

// PollUntilTerminal polls an order until it reaches a terminal state or the
// timeout elapses. On timeout the last observed status is returned along with
// the error, so the caller can act on whatever partial fill accumulated.
//
// IOC orders normally terminate within one or two polls; the timeout guards
// against a venue that accepts an order and then goes quiet.
func PollUntilTerminal(ctx context.Context, c Client, orderID string, interval, timeout time.Duration, logger *zap.Logger) (types.OrderStatus, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last types.OrderStatus
	var haveStatus bool
	for {
		st, err := c.PollOrder(ctx, orderID)
		if err != nil {
			if !types.IsRetryable(err) {
				return last, err
			}
			logger.Warn("order-poll-error",
				zap.String("venue", string(c.Venue())),
				zap.String("order_id", orderID),
				zap.Error(err))
		} else {
			last = st
			haveStatus = true
			if st.State.IsTerminal() {
				return st, nil
			}
		}

		if time.Now().After(deadline) {
			if !haveStatus {
				return last, types.NewVenueError(c.Venue(), types.ErrTransport, "poll_order",
					fmt.Sprintf("no status for order %s within %s", orderID, timeout), nil)
			}
			return last, fmt.Errorf("order %s on %s not terminal after %s (state %s, filled %.2f)",
				orderID, c.Venue(), timeout, last.State, last.FilledQty)
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}
