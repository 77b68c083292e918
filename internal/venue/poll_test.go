package venue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crossvenue/crossarb/pkg/types"
)

// stubClient serves a scripted sequence of poll results.
type stubClient struct {
	venue    types.Venue
	statuses []types.OrderStatus
	errs     []error
	calls    int
}

func (s *stubClient) Venue() types.Venue { return s.venue }

func (s *stubClient) PollOrder(ctx context.Context, orderID string) (types.OrderStatus, error) {
	i := s.calls
	if i >= len(s.statuses) {
		i = len(s.statuses) - 1
	}
	s.calls++
	if s.errs != nil && s.errs[i] != nil {
		return types.OrderStatus{}, s.errs[i]
	}
	return s.statuses[i], nil
}

func (s *stubClient) ListMarkets(ctx context.Context, cursor string) (MarketsPage, error) {
	return MarketsPage{}, nil
}
func (s *stubClient) GetBook(ctx context.Context, tokenID string) (*types.BookSnapshot, error) {
	return nil, nil
}
func (s *stubClient) GetBooksBatch(ctx context.Context, tokenIDs []string) (map[string]*types.BookSnapshot, error) {
	return nil, nil
}
func (s *stubClient) PlaceOrder(ctx context.Context, ticket *types.OrderTicket) (types.OrderAck, error) {
	return types.OrderAck{}, nil
}
func (s *stubClient) CancelOrder(ctx context.Context, orderID string) error { return nil }
func (s *stubClient) GetBalances(ctx context.Context) (types.Balances, error) {
	return types.Balances{}, nil
}

func TestPollUntilTerminalReturnsOnFill(t *testing.T) {
	c := &stubClient{
		venue: types.VenueOpinion,
		statuses: []types.OrderStatus{
			{OrderID: "o1", State: types.OrderOpen, FilledQty: 0},
			{OrderID: "o1", State: types.OrderPartiallyFilled, FilledQty: 40},
			{OrderID: "o1", State: types.OrderFilled, FilledQty: 100, AvgFillPrice: 0.42},
		},
	}
	st, err := PollUntilTerminal(context.Background(), c, "o1", time.Millisecond, time.Second, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, types.OrderFilled, st.State)
	assert.Equal(t, 100.0, st.FilledQty)
	assert.Equal(t, 3, c.calls)
}

func TestPollUntilTerminalTimeoutKeepsLastStatus(t *testing.T) {
	c := &stubClient{
		venue: types.VenuePolymarket,
		statuses: []types.OrderStatus{
			{OrderID: "o2", State: types.OrderPartiallyFilled, FilledQty: 25},
		},
	}
	st, err := PollUntilTerminal(context.Background(), c, "o2", time.Millisecond, 20*time.Millisecond, zap.NewNop())
	require.Error(t, err)
	assert.Equal(t, types.OrderPartiallyFilled, st.State)
	assert.Equal(t, 25.0, st.FilledQty, "caller still sees the partial fill")
}

func TestPollUntilTerminalSurvivesTransientErrors(t *testing.T) {
	transient := types.NewVenueError(types.VenueOpinion, types.ErrTransport, "poll_order", "timeout", nil)
	c := &stubClient{
		venue: types.VenueOpinion,
		statuses: []types.OrderStatus{
			{}, {},
			{OrderID: "o3", State: types.OrderCanceled, FilledQty: 10},
		},
		errs: []error{transient, transient, nil},
	}
	st, err := PollUntilTerminal(context.Background(), c, "o3", time.Millisecond, time.Second, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, types.OrderCanceled, st.State)
}

func TestPollUntilTerminalStopsOnNotFound(t *testing.T) {
	nf := types.NewVenueError(types.VenueOpinion, types.ErrNotFound, "poll_order", "unknown order", nil)
	c := &stubClient{
		venue:    types.VenueOpinion,
		statuses: []types.OrderStatus{{}},
		errs:     []error{nf},
	}
	_, err := PollUntilTerminal(context.Background(), c, "gone", time.Millisecond, time.Second, zap.NewNop())
	require.Error(t, err)
	assert.Equal(t, types.ErrNotFound, types.KindOf(err))
	assert.Equal(t, 1, c.calls)
}
