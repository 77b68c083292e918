package polymarket

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crossvenue/crossarb/internal/venue"
	"github.com/crossvenue/crossarb/pkg/types"
)

func testPrivateKeyHex(t *testing.T) string {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return fmt.Sprintf("%x", crypto.FromECDSA(key))
}

func newTestClient(t *testing.T, handler http.Handler, withSigner bool) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := Config{
		CLOBURL:   srv.URL,
		GammaURL:  srv.URL,
		PageLimit: 2,
	}
	if withSigner {
		cfg.APIKey = "api-key"
		cfg.Secret = "dG9wLXNlY3JldA==" // url-safe base64 of "top-secret"
		cfg.Passphrase = "phrase"
		cfg.PrivateKey = testPrivateKeyHex(t)
	}
	c, err := New(cfg, venue.NewHealth(zap.NewNop()), zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestListMarketsParsesGammaShape(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/markets", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "false", r.URL.Query().Get("closed"))
		assert.Equal(t, "0", r.URL.Query().Get("offset"))
		fmt.Fprint(w, `[
			{"id":"m1","question":"Will the Fed cut rates in March?","slug":"fed-march","active":true,"closed":false,
			 "endDate":"2026-03-20T00:00:00Z","outcomes":"[\"Yes\", \"No\"]","clobTokenIds":"[\"111\", \"222\"]",
			 "orderPriceMinTickSize":0.01,"orderMinSize":5},
			{"id":"m2","question":"Which party wins?","active":true,"closed":false,
			 "endDate":"2026-11-03T00:00:00Z","outcomes":"[\"Dem\", \"Rep\"]","clobTokenIds":"[\"333\", \"444\"]"}
		]`)
	})
	c := newTestClient(t, mux, false)

	page, err := c.ListMarkets(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, page.Markets, 1, "non yes/no market is dropped")
	assert.Equal(t, "2", page.NextCursor, "full page advances the offset")

	m := page.Markets[0]
	assert.Equal(t, types.VenuePolymarket, m.Venue)
	assert.Equal(t, "111", m.YesToken.TokenID)
	assert.Equal(t, "222", m.NoToken.TokenID)
	assert.Equal(t, 0.01, m.YesToken.TickSize)
	assert.Equal(t, 5.0, m.YesToken.MinOrderSize)
	assert.Equal(t, 2026, m.ResolutionDate.Year())
}

func TestGetBooksBatchSingleRequest(t *testing.T) {
	var gotParams []map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/books", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotParams))
		fmt.Fprint(w, `[
			{"asset_id":"111","bids":[{"price":"0.40","size":"100"},{"price":"0.41","size":"50"}],"asks":[{"price":"0.44","size":"25"},{"price":"0.43","size":"10"}]},
			{"asset_id":"222","bids":[],"asks":[{"price":"0.56","size":"80"}]}
		]`)
	})
	c := newTestClient(t, mux, false)

	books, err := c.GetBooksBatch(context.Background(), []string{"111", "222"})
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, []map[string]string{{"token_id": "111"}, {"token_id": "222"}}, gotParams)

	b := books["111"]
	require.NotNil(t, b.BestBid())
	assert.Equal(t, 0.41, b.BestBid().Price, "bids normalized to best-first")
	assert.Equal(t, 0.43, b.BestAsk().Price)
	assert.Nil(t, books["222"].BestBid())
}

func TestPlaceOrderSignsAndMapsIOC(t *testing.T) {
	var got postOrderRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/order", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "api-key", r.Header.Get("POLY_API_KEY"))
		assert.NotEmpty(t, r.Header.Get("POLY_SIGNATURE"))
		assert.NotEmpty(t, r.Header.Get("POLY_TIMESTAMP"))
		assert.Equal(t, "phrase", r.Header.Get("POLY_PASSPHRASE"))
		assert.NotEmpty(t, r.Header.Get("POLY_ADDRESS"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"success":true,"orderId":"pm-ord-1","status":"live"}`)
	})
	c := newTestClient(t, mux, true)

	ticket := &types.OrderTicket{
		Venue: types.VenuePolymarket,
		Token: types.Token{
			Venue:    types.VenuePolymarket,
			MarketID: "m1",
			TokenID:  "123456",
			Outcome:  types.OutcomeNo,
			TickSize: 0.01,
		},
		Side:       types.SideBuy,
		LimitPrice: 0.56,
		OrderQty:   100,
		TIF:        types.TIFIOC,
	}
	ack, err := c.PlaceOrder(context.Background(), ticket)
	require.NoError(t, err)
	assert.Equal(t, "pm-ord-1", ack.OrderID)
	assert.Equal(t, types.OrderOpen, ack.State)

	assert.Equal(t, "FAK", got.OrderType, "IOC is submitted as fill-and-kill")
	assert.Equal(t, "api-key", got.Owner)
	assert.Equal(t, "123456", got.Order.TokenID)
	assert.Equal(t, "BUY", got.Order.Side)
	assert.Equal(t, "56000000", got.Order.MakerAmount, "0.56 * 100 in raw USDC units")
	assert.Equal(t, "100000000", got.Order.TakerAmount)
	assert.NotEmpty(t, got.Order.Signature)
}

func TestPlaceOrderWithoutCredentialsFails(t *testing.T) {
	c := newTestClient(t, http.NewServeMux(), false)
	ticket := &types.OrderTicket{
		Venue:      types.VenuePolymarket,
		Token:      types.Token{Venue: types.VenuePolymarket, TokenID: "1", TickSize: 0.01},
		Side:       types.SideBuy,
		LimitPrice: 0.50,
		OrderQty:   10,
		TIF:        types.TIFGTC,
	}
	_, err := c.PlaceOrder(context.Background(), ticket)
	require.Error(t, err)
	assert.Equal(t, types.ErrValidation, types.KindOf(err))
}

func TestPlaceOrderBalanceErrorNotRetried(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/order", func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"success":false,"errorMsg":"not enough balance / allowance"}`)
	})
	c := newTestClient(t, mux, true)

	ticket := &types.OrderTicket{
		Venue:      types.VenuePolymarket,
		Token:      types.Token{Venue: types.VenuePolymarket, MarketID: "m1", TokenID: "123456", TickSize: 0.01},
		Side:       types.SideBuy,
		LimitPrice: 0.56,
		OrderQty:   100,
		TIF:        types.TIFIOC,
	}
	_, err := c.PlaceOrder(context.Background(), ticket)
	require.Error(t, err)
	assert.Equal(t, types.ErrInsufficientBalance, types.KindOf(err))
	assert.Equal(t, 1, calls)
}

func TestPollOrderMapsFillProgress(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/data/order/pm-ord-1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"pm-ord-1","status":"MATCHED","original_size":"100","size_matched":"100","price":"0.56"}`)
	})
	c := newTestClient(t, mux, true)

	st, err := c.PollOrder(context.Background(), "pm-ord-1")
	require.NoError(t, err)
	assert.Equal(t, types.OrderFilled, st.State)
	assert.Equal(t, 100.0, st.FilledQty)
	assert.Equal(t, 0.56, st.AvgFillPrice)
}

func TestOrderStateFromWire(t *testing.T) {
	tests := []struct {
		name   string
		status string
		filled float64
		size   float64
		want   types.OrderState
	}{
		{"live empty", "live", 0, 100, types.OrderOpen},
		{"live partial", "live", 30, 100, types.OrderPartiallyFilled},
		{"matched full", "matched", 100, 100, types.OrderFilled},
		{"matched partial kill", "MATCHED", 40, 100, types.OrderCanceled},
		{"canceled", "CANCELED", 0, 100, types.OrderCanceled},
		{"unmatched", "unmatched", 0, 100, types.OrderRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, orderStateFromWire(tt.status, tt.filled, tt.size))
		})
	}
}

func TestGetBalancesConvertsRawUnits(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/balance-allowance", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "COLLATERAL", r.URL.Query().Get("asset_type"))
		fmt.Fprint(w, `{"balance":"1250750000"}`)
	})
	c := newTestClient(t, mux, true)

	balances, err := c.GetBalances(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1250.75, balances["USDC"].Available)
}
