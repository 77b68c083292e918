package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/crossvenue/crossarb/internal/fees"
	"github.com/crossvenue/crossarb/internal/scanner"
	"github.com/crossvenue/crossarb/internal/tradelog"
	"github.com/crossvenue/crossarb/internal/venue"
	"github.com/crossvenue/crossarb/pkg/types"
)

// fakeVenue scripts fills per placement: fills[i] is the fill quantity of the
// i-th order (-1 or missing means full fill). Later tests mutate status
// directly to simulate resting orders filling over time.
type fakeVenue struct {
	venue    types.Venue
	fills    []float64
	avg      []float64
	tickets  []*types.OrderTicket
	status   map[string]types.OrderStatus
	canceled []string
	books    map[string]*types.BookSnapshot
	placeErr error
	n        int
}

func newFakeVenue(v types.Venue) *fakeVenue {
	return &fakeVenue{venue: v, status: make(map[string]types.OrderStatus)}
}

func (f *fakeVenue) orderID(n int) string {
	return fmt.Sprintf("%s-ord-%d", f.venue, n)
}

func (f *fakeVenue) Venue() types.Venue { return f.venue }

func (f *fakeVenue) PlaceOrder(ctx context.Context, ticket *types.OrderTicket) (types.OrderAck, error) {
	if f.placeErr != nil {
		return types.OrderAck{}, f.placeErr
	}
	i := f.n
	f.n++
	id := f.orderID(f.n)

	cp := *ticket
	f.tickets = append(f.tickets, &cp)

	fill := -1.0
	if i < len(f.fills) {
		fill = f.fills[i]
	}
	qty := ticket.OrderQty
	if fill >= 0 {
		qty = fill
	}
	var avgPrice float64
	if i < len(f.avg) {
		avgPrice = f.avg[i]
	}

	state := types.OrderFilled
	if qty < ticket.OrderQty-1e-9 {
		if ticket.TIF == types.TIFIOC {
			state = types.OrderCanceled // remainder killed
		} else if qty > 0 {
			state = types.OrderPartiallyFilled
		} else {
			state = types.OrderOpen
		}
	}
	f.status[id] = types.OrderStatus{OrderID: id, State: state, FilledQty: qty, AvgFillPrice: avgPrice}
	return types.OrderAck{OrderID: id, State: types.OrderOpen}, nil
}

func (f *fakeVenue) PollOrder(ctx context.Context, orderID string) (types.OrderStatus, error) {
	return f.status[orderID], nil
}

func (f *fakeVenue) CancelOrder(ctx context.Context, orderID string) error {
	f.canceled = append(f.canceled, orderID)
	st := f.status[orderID]
	if !st.State.IsTerminal() {
		st.State = types.OrderCanceled
		f.status[orderID] = st
	}
	return nil
}

func (f *fakeVenue) GetBook(ctx context.Context, tokenID string) (*types.BookSnapshot, error) {
	b, ok := f.books[tokenID]
	if !ok {
		return nil, types.NewVenueError(f.venue, types.ErrNotFound, "get_book", "no book for "+tokenID, nil)
	}
	return b, nil
}

func (f *fakeVenue) GetBooksBatch(ctx context.Context, tokenIDs []string) (map[string]*types.BookSnapshot, error) {
	out := make(map[string]*types.BookSnapshot)
	for _, id := range tokenIDs {
		if b, ok := f.books[id]; ok {
			out[id] = b
		}
	}
	return out, nil
}

func (f *fakeVenue) ListMarkets(ctx context.Context, cursor string) (venue.MarketsPage, error) {
	return venue.MarketsPage{}, nil
}

func (f *fakeVenue) GetBalances(ctx context.Context) (types.Balances, error) {
	return types.Balances{"USDC": {Available: 10000}}, nil
}

// logSink collects trade log entries in memory.
type logSink struct {
	entries []tradelog.Entry
}

func (s *logSink) LogLeg(e tradelog.Entry) error {
	s.entries = append(s.entries, e)
	return nil
}

func testFeeModel() *fees.Model {
	return fees.New(fees.Config{CurveA: 0.06, CurveC: 0.0025, MinFee: 0.50})
}

var (
	testOpYes = types.Token{Venue: types.VenueOpinion, MarketID: "11", TokenID: "op-yes", Outcome: types.OutcomeYes, TickSize: 0.01, MinOrderSize: 1}
	testPmNo  = types.Token{Venue: types.VenuePolymarket, MarketID: "m1", TokenID: "pm-no", Outcome: types.OutcomeNo, TickSize: 0.01, MinOrderSize: 1}
)

func testOpportunity(class scanner.Class) scanner.Opportunity {
	return scanner.Opportunity{
		ID:            "opp-1",
		PairID:        "op:11|pm:m1",
		Question:      "will btc close above 100k",
		Combination:   scanner.BuyYesOpinionNoPolymarket,
		OpinionLeg:    scanner.Leg{Token: testOpYes, Price: 0.40, Depth: 200},
		PolymarketLeg: scanner.Leg{Token: testPmNo, Price: 0.56, Depth: 100},
		RawEdge:       0.04,
		EffectiveEdge: 0.03,
		AnnualizedPct: 25,
		SizeCap:       100,
		DaysToResolve: 10,
		Class:         class,
		DetectedAt:    time.Now(),
	}
}

func book(v types.Venue, tokenID string, bids, asks []types.BookLevel) *types.BookSnapshot {
	return &types.BookSnapshot{Venue: v, TokenID: tokenID, Bids: bids, Asks: asks, FetchedAt: time.Now()}
}

func frameOf(books ...*types.BookSnapshot) *types.ScanFrame {
	f := &types.ScanFrame{At: time.Now(), Books: make(map[string]*types.BookSnapshot)}
	for _, b := range books {
		f.Books[b.TokenID] = b
	}
	return f
}
