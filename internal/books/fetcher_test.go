package books

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crossvenue/crossarb/internal/venue"
	"github.com/crossvenue/crossarb/pkg/types"
)

// batchClient records batch calls and serves canned snapshots.
type batchClient struct {
	venue      types.Venue
	batches    [][]string
	fetchedAt  time.Time
	failTokens map[string]bool
}

func (c *batchClient) Venue() types.Venue { return c.venue }
func (c *batchClient) GetBooksBatch(ctx context.Context, tokenIDs []string) (map[string]*types.BookSnapshot, error) {
	c.batches = append(c.batches, tokenIDs)
	out := make(map[string]*types.BookSnapshot, len(tokenIDs))
	var err error
	for _, id := range tokenIDs {
		if c.failTokens[id] {
			err = types.NewVenueError(c.venue, types.ErrTransport, "get_book", "timeout", nil)
			continue
		}
		at := c.fetchedAt
		if at.IsZero() {
			at = time.Now()
		}
		out[id] = &types.BookSnapshot{
			Venue:     c.venue,
			TokenID:   id,
			Bids:      []types.BookLevel{{Price: 0.40, Size: 100}},
			Asks:      []types.BookLevel{{Price: 0.45, Size: 100}},
			FetchedAt: at,
		}
	}
	return out, err
}
func (c *batchClient) ListMarkets(ctx context.Context, cursor string) (venue.MarketsPage, error) {
	return venue.MarketsPage{}, nil
}
func (c *batchClient) GetBook(ctx context.Context, tokenID string) (*types.BookSnapshot, error) {
	return nil, nil
}
func (c *batchClient) PlaceOrder(ctx context.Context, t *types.OrderTicket) (types.OrderAck, error) {
	return types.OrderAck{}, nil
}
func (c *batchClient) CancelOrder(ctx context.Context, orderID string) error { return nil }
func (c *batchClient) PollOrder(ctx context.Context, orderID string) (types.OrderStatus, error) {
	return types.OrderStatus{}, nil
}
func (c *batchClient) GetBalances(ctx context.Context) (types.Balances, error) { return nil, nil }

func pairFixture(n int) []types.MarketPair {
	pairs := make([]types.MarketPair, 0, n)
	for i := 0; i < n; i++ {
		id := string(rune('a' + i))
		pairs = append(pairs, types.MarketPair{
			ID: "pair-" + id,
			Opinion: types.MarketSummary{
				Venue:    types.VenueOpinion,
				MarketID: "op-" + id,
				YesToken: types.Token{Venue: types.VenueOpinion, TokenID: "op-" + id + "-yes"},
				NoToken:  types.Token{Venue: types.VenueOpinion, TokenID: "op-" + id + "-no"},
			},
			Polymarket: types.MarketSummary{
				Venue:    types.VenuePolymarket,
				MarketID: "pm-" + id,
				YesToken: types.Token{Venue: types.VenuePolymarket, TokenID: "pm-" + id + "-yes"},
				NoToken:  types.Token{Venue: types.VenuePolymarket, TokenID: "pm-" + id + "-no"},
			},
		})
	}
	return pairs
}

func newTestFetcher(op, pm *batchClient, batchSize int, maxAge time.Duration) *Fetcher {
	return New(op, pm, Config{
		BatchSize:     batchSize,
		OpinionRPS:    1000,
		PolymarketRPS: 1000,
		MaxBookAge:    maxAge,
		Logger:        zap.NewNop(),
	})
}

func TestFetchFrameCoversAllTokens(t *testing.T) {
	op := &batchClient{venue: types.VenueOpinion}
	pm := &batchClient{venue: types.VenuePolymarket}
	f := newTestFetcher(op, pm, 3, 2*time.Second)

	frame, err := f.FetchFrame(context.Background(), pairFixture(4))
	require.NoError(t, err)
	assert.Len(t, frame.Books, 16, "two tokens per market, two markets per pair")
	assert.NotNil(t, frame.Book("op-a-yes"))
	assert.NotNil(t, frame.Book("pm-d-no"))
	assert.False(t, frame.At.IsZero())

	// 8 tokens per venue in batches of 3.
	assert.Len(t, op.batches, 3)
	assert.Len(t, pm.batches, 3)
}

func TestFetchFrameLeavesHolesOnTokenFailure(t *testing.T) {
	op := &batchClient{venue: types.VenueOpinion, failTokens: map[string]bool{"op-a-yes": true}}
	pm := &batchClient{venue: types.VenuePolymarket}
	f := newTestFetcher(op, pm, 20, 2*time.Second)

	frame, err := f.FetchFrame(context.Background(), pairFixture(2))
	require.NoError(t, err, "a missing book does not fail the frame")
	assert.Len(t, frame.Books, 7)
	assert.Nil(t, frame.Book("op-a-yes"))
	assert.NotNil(t, frame.Book("op-a-no"))
}

func TestFetchFrameDropsStaleBooks(t *testing.T) {
	op := &batchClient{venue: types.VenueOpinion, fetchedAt: time.Now().Add(-10 * time.Second)}
	pm := &batchClient{venue: types.VenuePolymarket}
	f := newTestFetcher(op, pm, 20, 2*time.Second)

	frame, err := f.FetchFrame(context.Background(), pairFixture(1))
	require.NoError(t, err)
	assert.Len(t, frame.Books, 2, "only the fresh venue's books survive")
	assert.Nil(t, frame.Book("op-a-yes"))
	assert.NotNil(t, frame.Book("pm-a-yes"))
}

func TestFetchFrameDeduplicatesSharedTokens(t *testing.T) {
	pairs := pairFixture(1)
	pairs = append(pairs, pairs[0]) // same pair twice
	op := &batchClient{venue: types.VenueOpinion}
	pm := &batchClient{venue: types.VenuePolymarket}
	f := newTestFetcher(op, pm, 20, 2*time.Second)

	frame, err := f.FetchFrame(context.Background(), pairs)
	require.NoError(t, err)
	assert.Len(t, frame.Books, 4)
	require.Len(t, op.batches, 1)
	assert.Len(t, op.batches[0], 2)
}

func TestFetchFrameCapsOpinionChunksAtLimiterBurst(t *testing.T) {
	// Production defaults: 15 req/s on Opinion, batch size 20. A chunk wider
	// than the bucket burst would make WaitN fail outright and blind the
	// engine on one venue, so chunks must shrink to the burst instead.
	op := &batchClient{venue: types.VenueOpinion}
	pm := &batchClient{venue: types.VenuePolymarket}
	f := New(op, pm, Config{
		BatchSize:     20,
		OpinionRPS:    15,
		PolymarketRPS: 10,
		MaxBookAge:    time.Minute,
		Logger:        zap.NewNop(),
	})

	frame, err := f.FetchFrame(context.Background(), pairFixture(10))
	require.NoError(t, err)
	assert.Len(t, frame.Books, 40, "all books from both venues")
	for i := 0; i < 10; i++ {
		id := string(rune('a' + i))
		assert.NotNil(t, frame.Book("op-"+id+"-yes"), "op-%s-yes", id)
		assert.NotNil(t, frame.Book("op-"+id+"-no"), "op-%s-no", id)
	}
	require.NotEmpty(t, op.batches)
	for _, b := range op.batches {
		assert.LessOrEqual(t, len(b), 15, "opinion chunk within bucket burst")
	}
	// Polymarket batches stay at the configured size: one bulk request per
	// batch costs a single bucket token.
	require.Len(t, pm.batches, 1)
	assert.Len(t, pm.batches[0], 20)
}

func TestChunks(t *testing.T) {
	assert.Nil(t, chunks(nil, 3))
	got := chunks([]string{"a", "b", "c", "d", "e"}, 2)
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, got)
}
