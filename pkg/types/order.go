package types

import "time"

// OrderState is the lifecycle state of an order as reported by the venue.
type OrderState string

const (
	OrderPendingSubmit   OrderState = "PENDING_SUBMIT"
	OrderOpen            OrderState = "OPEN"
	OrderPartiallyFilled OrderState = "PARTIALLY_FILLED"
	OrderFilled          OrderState = "FILLED"
	OrderCanceled        OrderState = "CANCELED"
	OrderRejected        OrderState = "REJECTED"
)

// IsTerminal reports whether the state admits no further transitions.
func (s OrderState) IsTerminal() bool {
	switch s {
	case OrderFilled, OrderCanceled, OrderRejected:
		return true
	}
	return false
}

// OrderTicket is a placed or intended order. TargetFillQty is what we want to
// end up holding; OrderQty is what we submit. The two differ on venues that
// withhold a per-unit fee from the received quantity.
type OrderTicket struct {
	ID            string
	OpportunityID string
	Venue         Venue
	Token         Token
	Side          Side
	TargetFillQty float64
	OrderQty      float64
	LimitPrice    float64
	TIF           TIF
	State         OrderState
	OrderID       string
	FilledQty     float64
	AvgFillPrice  float64
	FeePaid       float64
	SubmittedAt   time.Time
	UpdatedAt     time.Time
}

// ApplyStatus folds a venue-reported status into the ticket.
func (t *OrderTicket) ApplyStatus(st OrderStatus, now time.Time) {
	t.State = st.State
	t.FilledQty = st.FilledQty
	if st.AvgFillPrice > 0 {
		t.AvgFillPrice = st.AvgFillPrice
	}
	t.UpdatedAt = now
}

// OrderAck is the venue's response to order placement.
type OrderAck struct {
	OrderID string
	State   OrderState
}

// OrderStatus is the venue's answer to an order poll.
type OrderStatus struct {
	OrderID      string
	State        OrderState
	FilledQty    float64
	AvgFillPrice float64
}

// Balance is a single asset balance on a venue.
type Balance struct {
	Available float64
	Reserved  float64
}

// Balances maps an asset (collateral symbol or outcome token ID) to its
// balance on a venue.
type Balances map[string]Balance
