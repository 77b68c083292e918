package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crossvenue/crossarb/internal/scanner"
	"github.com/crossvenue/crossarb/internal/venue"
	"github.com/crossvenue/crossarb/pkg/types"
)

func newTestMaker(op, pm *fakeVenue, deficits chan DeficitEvent) *Maker {
	clients := map[types.Venue]venue.Client{
		types.VenueOpinion:    op,
		types.VenuePolymarket: pm,
	}
	return NewMaker(clients, testFeeModel(), &logSink{}, deficits, LiquidityConfig{
		TargetSize:       250,
		MaxOpenOrders:    2,
		RepriceInterval:  5 * time.Second,
		ExitAnnualized:   19.5,
		MinHedgeSize:     1,
		SlippageCapTicks: 2,
		PollInterval:     time.Millisecond,
		PollTimeout:      100 * time.Millisecond,
	}, zap.NewNop())
}

// liquidityOpportunity has a wider spread on Opinion, so the maker rests
// there and hedges on Polymarket.
func liquidityOpportunity() scanner.Opportunity {
	opp := testOpportunity(scanner.ClassLiquidity)
	opp.OpinionLeg = scanner.Leg{Token: testOpYes, Price: 0.48, Depth: 400}
	opp.PolymarketLeg = scanner.Leg{Token: testPmNo, Price: 0.50, Depth: 400}
	opp.RawEdge = 0.02
	opp.SizeCap = 300
	return opp
}

func liquidityFrame() *types.ScanFrame {
	return frameOf(
		book(types.VenueOpinion, "op-yes",
			[]types.BookLevel{{Price: 0.46, Size: 120}},
			[]types.BookLevel{{Price: 0.48, Size: 400}}),
		book(types.VenuePolymarket, "pm-no",
			[]types.BookLevel{{Price: 0.49, Size: 300}},
			[]types.BookLevel{{Price: 0.50, Size: 400}}),
	)
}

func TestMakerRestsOneTickOverBestBid(t *testing.T) {
	op := newFakeVenue(types.VenueOpinion)
	op.fills = []float64{0, 0} // resting orders stay open until scripted
	pm := newFakeVenue(types.VenuePolymarket)
	m := newTestMaker(op, pm, make(chan DeficitEvent, 1))

	opps := []scanner.Opportunity{liquidityOpportunity()}
	m.Evaluate(context.Background(), opps, liquidityFrame())

	tickets := m.Tickets()
	require.Len(t, tickets, 1)
	assert.Equal(t, LiquidityResting, tickets[0].State)
	assert.Equal(t, 0.47, tickets[0].RestPrice)
	assert.Equal(t, 250.0, tickets[0].TargetQty, "capped at the configured target size")

	require.Len(t, op.tickets, 1)
	placed := op.tickets[0]
	assert.Equal(t, types.TIFGTC, placed.TIF)
	assert.Equal(t, 0.47, placed.LimitPrice)
	assert.InDelta(t, 254.44, placed.OrderQty, 0.01, "padded for the fee withheld on fill")
	assert.Empty(t, pm.tickets, "no hedge before a fill")
}

func TestMakerHedgesFillsIncrementally(t *testing.T) {
	op := newFakeVenue(types.VenueOpinion)
	op.fills = []float64{0, 0} // resting orders stay open until scripted
	pm := newFakeVenue(types.VenuePolymarket)
	m := newTestMaker(op, pm, make(chan DeficitEvent, 1))

	opps := []scanner.Opportunity{liquidityOpportunity()}
	frame := liquidityFrame()
	m.Evaluate(context.Background(), opps, frame)
	require.Len(t, op.tickets, 1)

	// 100 of ~254 fill on the resting order.
	restID := op.orderID(1)
	op.status[restID] = types.OrderStatus{
		OrderID: restID, State: types.OrderPartiallyFilled, FilledQty: 100, AvgFillPrice: 0.47,
	}
	m.Evaluate(context.Background(), opps, frame)

	require.Len(t, pm.tickets, 1)
	hedge := pm.tickets[0]
	assert.Equal(t, types.TIFIOC, hedge.TIF)
	assert.Equal(t, 0.52, hedge.LimitPrice, "scanned hedge price plus two ticks")
	// 100 shares at 0.47 pay a 0.82 curve fee: 98.26 shares credited.
	assert.InDelta(t, 98.26, hedge.TargetFillQty, 0.01)

	tickets := m.Tickets()
	require.Len(t, tickets, 1)
	assert.Equal(t, LiquidityResting, tickets[0].State, "remainder keeps resting")
	assert.InDelta(t, 98.26, tickets[0].HedgedQty, 0.01)
	assert.LessOrEqual(t, tickets[0].HedgedQty, tickets[0].ReceivedQty+1e-9)

	// Same status next frame: no delta, no double hedge.
	m.Evaluate(context.Background(), opps, frame)
	assert.Len(t, pm.tickets, 1)
}

func TestMakerRepricesWhenOutbid(t *testing.T) {
	op := newFakeVenue(types.VenueOpinion)
	op.fills = []float64{0, 0} // resting orders stay open until scripted
	pm := newFakeVenue(types.VenuePolymarket)
	m := newTestMaker(op, pm, make(chan DeficitEvent, 1))

	opps := []scanner.Opportunity{liquidityOpportunity()}
	m.Evaluate(context.Background(), opps, liquidityFrame())
	require.Len(t, op.tickets, 1)

	// Someone bids over us; backdate the submit so the rate limit allows it.
	for _, tk := range m.tickets {
		tk.lastSubmit = time.Now().Add(-time.Minute)
	}
	outbid := frameOf(
		book(types.VenueOpinion, "op-yes",
			[]types.BookLevel{{Price: 0.48, Size: 50}},
			[]types.BookLevel{{Price: 0.50, Size: 400}}),
		book(types.VenuePolymarket, "pm-no",
			[]types.BookLevel{{Price: 0.49, Size: 300}},
			[]types.BookLevel{{Price: 0.50, Size: 400}}),
	)
	m.Evaluate(context.Background(), opps, outbid)

	require.Len(t, op.canceled, 1, "old order canceled before the new one goes out")
	require.Len(t, op.tickets, 2)
	assert.Equal(t, 0.49, op.tickets[1].LimitPrice, "one tick over the new best bid")

	tickets := m.Tickets()
	require.Len(t, tickets, 1)
	assert.Equal(t, LiquidityResting, tickets[0].State)
	assert.Equal(t, 0.49, tickets[0].RestPrice)
	assert.Equal(t, op.orderID(2), tickets[0].OrderID)
}

func TestMakerRepriceRateLimited(t *testing.T) {
	op := newFakeVenue(types.VenueOpinion)
	op.fills = []float64{0, 0} // resting orders stay open until scripted
	pm := newFakeVenue(types.VenuePolymarket)
	m := newTestMaker(op, pm, make(chan DeficitEvent, 1))

	opps := []scanner.Opportunity{liquidityOpportunity()}
	m.Evaluate(context.Background(), opps, liquidityFrame())

	outbid := frameOf(
		book(types.VenueOpinion, "op-yes",
			[]types.BookLevel{{Price: 0.48, Size: 50}},
			[]types.BookLevel{{Price: 0.50, Size: 400}}),
		book(types.VenuePolymarket, "pm-no",
			[]types.BookLevel{{Price: 0.49, Size: 300}},
			[]types.BookLevel{{Price: 0.50, Size: 400}}),
	)
	m.Evaluate(context.Background(), opps, outbid)

	assert.Empty(t, op.canceled, "reprice suppressed inside the rate-limit window")
	assert.Len(t, op.tickets, 1)
}

func TestMakerRepricesDownWhenBidFallsAway(t *testing.T) {
	op := newFakeVenue(types.VenueOpinion)
	op.fills = []float64{0, 0} // resting orders stay open until scripted
	pm := newFakeVenue(types.VenuePolymarket)
	m := newTestMaker(op, pm, make(chan DeficitEvent, 1))

	opps := []scanner.Opportunity{liquidityOpportunity()}
	m.Evaluate(context.Background(), opps, liquidityFrame())
	require.Len(t, op.tickets, 1)
	assert.Equal(t, 0.47, op.tickets[0].LimitPrice)

	// The 0.46 bid is gone; our own order at 0.47 now tops the book with
	// nothing but 0.40 under it. Backdate the submit past the rate limit.
	for _, tk := range m.tickets {
		tk.lastSubmit = time.Now().Add(-time.Minute)
	}
	fallen := frameOf(
		book(types.VenueOpinion, "op-yes",
			[]types.BookLevel{{Price: 0.47, Size: 254}, {Price: 0.40, Size: 80}},
			[]types.BookLevel{{Price: 0.48, Size: 400}}),
		book(types.VenuePolymarket, "pm-no",
			[]types.BookLevel{{Price: 0.49, Size: 300}},
			[]types.BookLevel{{Price: 0.50, Size: 400}}),
	)
	m.Evaluate(context.Background(), opps, fallen)

	require.Len(t, op.canceled, 1, "old order canceled before the new one goes out")
	require.Len(t, op.tickets, 2)
	assert.InDelta(t, 0.41, op.tickets[1].LimitPrice, 1e-9, "one tick over the surviving bid")

	tickets := m.Tickets()
	require.Len(t, tickets, 1)
	assert.Equal(t, LiquidityResting, tickets[0].State)
	assert.InDelta(t, 0.41, tickets[0].RestPrice, 1e-9)
}

func TestMakerHoldsPriceWhenTiedAtBest(t *testing.T) {
	op := newFakeVenue(types.VenueOpinion)
	op.fills = []float64{0, 0} // resting orders stay open until scripted
	pm := newFakeVenue(types.VenuePolymarket)
	m := newTestMaker(op, pm, make(chan DeficitEvent, 1))

	opps := []scanner.Opportunity{liquidityOpportunity()}
	m.Evaluate(context.Background(), opps, liquidityFrame())
	require.Len(t, op.tickets, 1)

	for _, tk := range m.tickets {
		tk.lastSubmit = time.Now().Add(-time.Minute)
	}
	// Someone joins our level; moving would only give up queue priority.
	tied := frameOf(
		book(types.VenueOpinion, "op-yes",
			[]types.BookLevel{{Price: 0.47, Size: 500}},
			[]types.BookLevel{{Price: 0.48, Size: 400}}),
		book(types.VenuePolymarket, "pm-no",
			[]types.BookLevel{{Price: 0.49, Size: 300}},
			[]types.BookLevel{{Price: 0.50, Size: 400}}),
	)
	m.Evaluate(context.Background(), opps, tied)

	assert.Empty(t, op.canceled)
	assert.Len(t, op.tickets, 1)
}

func TestMakerTicketsConcurrentWithEvaluate(t *testing.T) {
	op := newFakeVenue(types.VenueOpinion)
	op.fills = make([]float64, 64) // resting orders stay open until scripted
	pm := newFakeVenue(types.VenuePolymarket)
	m := newTestMaker(op, pm, make(chan DeficitEvent, 64))

	opps := []scanner.Opportunity{liquidityOpportunity()}
	frame := liquidityFrame()

	// The HTTP layer snapshots tickets from its own goroutines while the
	// supervisor drives Evaluate; churn the map against a reader loop.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			m.Tickets()
		}
	}()
	for i := 0; i < 30; i++ {
		m.Evaluate(context.Background(), opps, frame) // opens the ticket
		m.Evaluate(context.Background(), nil, frame)  // edge gone: closes it
	}
	<-done
	assert.Empty(t, m.Tickets())
}

func TestMakerCancelsWhenEdgeCollapses(t *testing.T) {
	op := newFakeVenue(types.VenueOpinion)
	op.fills = []float64{0, 0} // resting orders stay open until scripted
	pm := newFakeVenue(types.VenuePolymarket)
	m := newTestMaker(op, pm, make(chan DeficitEvent, 1))

	m.Evaluate(context.Background(), []scanner.Opportunity{liquidityOpportunity()}, liquidityFrame())
	require.Len(t, op.tickets, 1)

	// The opportunity vanishes from the next frame.
	m.Evaluate(context.Background(), nil, liquidityFrame())

	assert.Len(t, op.canceled, 1)
	assert.Empty(t, m.Tickets())
	assert.Empty(t, pm.tickets, "nothing filled, nothing to hedge")
}

func TestCancelAllHedgesResidualFills(t *testing.T) {
	op := newFakeVenue(types.VenueOpinion)
	op.fills = []float64{0, 0} // resting orders stay open until scripted
	pm := newFakeVenue(types.VenuePolymarket)
	m := newTestMaker(op, pm, make(chan DeficitEvent, 1))

	m.Evaluate(context.Background(), []scanner.Opportunity{liquidityOpportunity()}, liquidityFrame())
	require.Len(t, op.tickets, 1)

	// A fill lands just before shutdown.
	restID := op.orderID(1)
	op.status[restID] = types.OrderStatus{
		OrderID: restID, State: types.OrderPartiallyFilled, FilledQty: 50, AvgFillPrice: 0.47,
	}
	m.CancelAll(context.Background())

	assert.Len(t, op.canceled, 1)
	require.Len(t, pm.tickets, 1, "the last fill is hedged before exit")
	assert.Equal(t, types.TIFIOC, pm.tickets[0].TIF)
	// 50 shares at 0.47 pay the 0.50 minimum fee: 48.94 credited.
	assert.InDelta(t, 48.94, pm.tickets[0].TargetFillQty, 0.01)
	assert.Empty(t, m.Tickets())
}

func TestMakerRespectsMaxOpenOrders(t *testing.T) {
	op := newFakeVenue(types.VenueOpinion)
	op.fills = []float64{0, 0} // resting orders stay open until scripted
	pm := newFakeVenue(types.VenuePolymarket)
	m := newTestMaker(op, pm, make(chan DeficitEvent, 1))

	var opps []scanner.Opportunity
	frame := liquidityFrame()
	for i := 0; i < 4; i++ {
		o := liquidityOpportunity()
		o.PairID = o.PairID + string(rune('a'+i))
		opps = append(opps, o)
	}
	m.Evaluate(context.Background(), opps, frame)

	assert.Len(t, m.Tickets(), 2)
}
