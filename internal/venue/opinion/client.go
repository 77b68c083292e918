// Package opinion implements the venue adapter for the Opinion exchange.
// The REST API wraps every payload in an errno envelope and quotes prices
// and sizes as decimal strings.
package opinion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/crossvenue/crossarb/internal/venue"
	"github.com/crossvenue/crossarb/pkg/types"
)

const (
	defaultPageLimit = 100
	defaultTickSize  = 0.001

	bookTimeout   = 2 * time.Second
	orderTimeout  = 5 * time.Second
	statusTimeout = 2 * time.Second
)

// Config carries the connection settings for the Opinion adapter.
type Config struct {
	Host      string
	APIKey    string
	PageLimit int
}

// Client talks to the Opinion REST API and satisfies venue.Client.
type Client struct {
	rest      *resty.Client
	retrier   *venue.Retrier
	health    *venue.Health
	pageLimit int
	logger    *zap.Logger
}

// New builds an Opinion client. The API key rides on every request.
func New(cfg Config, health *venue.Health, logger *zap.Logger) *Client {
	rest := resty.New().
		SetBaseURL(cfg.Host).
		SetTimeout(10 * time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("apikey", cfg.APIKey)

	limit := cfg.PageLimit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	return &Client{
		rest:      rest,
		retrier:   venue.NewRetrier(logger),
		health:    health,
		pageLimit: limit,
		logger:    logger.With(zap.String("venue", string(types.VenueOpinion))),
	}
}

func (c *Client) Venue() types.Venue { return types.VenueOpinion }

// ListMarkets fetches one page of activated binary markets. The cursor is the
// page number; an empty cursor starts at page one.
func (c *Client) ListMarkets(ctx context.Context, cursor string) (venue.MarketsPage, error) {
	page := 1
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return venue.MarketsPage{}, c.schemaErr("list_markets", fmt.Sprintf("bad cursor %q", cursor), err)
		}
		page = n
	}

	var result marketListResult
	err := c.call(ctx, "list_markets", orderTimeout, &result, func(ctx context.Context) (*resty.Response, error) {
		return c.rest.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"status": strconv.Itoa(marketStatusActivated),
				"type":   strconv.Itoa(marketTypeBinary),
				"page":   strconv.Itoa(page),
				"limit":  strconv.Itoa(c.pageLimit),
			}).
			Get("/openapi/market")
	})
	if err != nil {
		return venue.MarketsPage{}, err
	}

	out := venue.MarketsPage{Markets: make([]types.MarketSummary, 0, len(result.List))}
	for _, m := range result.List {
		if m.MarketType != marketTypeBinary || m.YesTokenID == "" || m.NoTokenID == "" {
			continue
		}
		out.Markets = append(out.Markets, c.toSummary(m))
	}
	if len(result.List) == c.pageLimit {
		out.NextCursor = strconv.Itoa(page + 1)
	}
	return out, nil
}

func (c *Client) toSummary(m wireMarket) types.MarketSummary {
	marketID := strconv.FormatInt(m.MarketID, 10)
	tick := parseFloatOr(m.TickSize, defaultTickSize)
	minSize := parseFloatOr(m.MinOrderSize, 0)
	token := func(id string, outcome types.Outcome) types.Token {
		return types.Token{
			Venue:        types.VenueOpinion,
			MarketID:     marketID,
			TokenID:      id,
			Outcome:      outcome,
			TickSize:     tick,
			MinOrderSize: minSize,
		}
	}
	return types.MarketSummary{
		Venue:          types.VenueOpinion,
		MarketID:       marketID,
		Title:          m.MarketTitle,
		Slug:           m.MarketSlug,
		ResolutionDate: time.Unix(m.CutoffAt, 0).UTC(),
		Active:         m.Status == marketStatusActivated,
		YesToken:       token(m.YesTokenID, types.OutcomeYes),
		NoToken:        token(m.NoTokenID, types.OutcomeNo),
	}
}

// GetBook fetches the order book for one token and normalizes prices onto the
// three-decimal grid.
func (c *Client) GetBook(ctx context.Context, tokenID string) (*types.BookSnapshot, error) {
	var result orderbookResult
	err := c.call(ctx, "get_book", bookTimeout, &result, func(ctx context.Context) (*resty.Response, error) {
		return c.rest.R().
			SetContext(ctx).
			SetQueryParam("token_id", tokenID).
			Get("/openapi/token/orderbook")
	})
	if err != nil {
		return nil, err
	}

	snap := &types.BookSnapshot{
		Venue:     types.VenueOpinion,
		TokenID:   tokenID,
		FetchedAt: time.Now(),
	}
	var convErr error
	snap.Bids, convErr = toLevels(result.Bids)
	if convErr != nil {
		return nil, c.schemaErr("get_book", "bad bid level", convErr)
	}
	snap.Asks, convErr = toLevels(result.Asks)
	if convErr != nil {
		return nil, c.schemaErr("get_book", "bad ask level", convErr)
	}
	// The exchange does not guarantee level ordering.
	sort.Slice(snap.Bids, func(i, j int) bool { return snap.Bids[i].Price > snap.Bids[j].Price })
	sort.Slice(snap.Asks, func(i, j int) bool { return snap.Asks[i].Price < snap.Asks[j].Price })
	if err := snap.Validate(); err != nil {
		return nil, c.schemaErr("get_book", "inconsistent book", err)
	}
	return snap, nil
}

// GetBooksBatch has no bulk endpoint behind it; books are fetched one by one
// and partial results are returned alongside any errors.
func (c *Client) GetBooksBatch(ctx context.Context, tokenIDs []string) (map[string]*types.BookSnapshot, error) {
	books := make(map[string]*types.BookSnapshot, len(tokenIDs))
	var errs []error
	for _, id := range tokenIDs {
		snap, err := c.GetBook(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return books, ctx.Err()
			}
			errs = append(errs, fmt.Errorf("token %s: %w", id, err))
			continue
		}
		books[id] = snap
	}
	return books, errors.Join(errs...)
}

// PlaceOrder submits a limit order for the ticket's order quantity. The
// remote fee is withheld from the received tokens, so OrderQty is expected to
// already include the fee allowance.
func (c *Client) PlaceOrder(ctx context.Context, ticket *types.OrderTicket) (types.OrderAck, error) {
	if err := venue.ValidateTicket(ticket); err != nil {
		return types.OrderAck{}, err
	}
	marketID, err := strconv.ParseInt(ticket.Token.MarketID, 10, 64)
	if err != nil {
		return types.OrderAck{}, types.NewVenueError(types.VenueOpinion, types.ErrValidation, "place_order",
			fmt.Sprintf("bad market id %q", ticket.Token.MarketID), err)
	}

	req := placeOrderRequest{
		MarketID:              marketID,
		TokenID:               ticket.Token.TokenID,
		Side:                  wireSide(ticket.Side),
		OrderType:             wireOrderTypeLimit,
		Price:                 formatPrice(ticket.LimitPrice),
		MakerAmountInBaseToken: formatSize(ticket.OrderQty),
		TimeInForce:           string(ticket.TIF),
	}

	var result placeOrderResult
	err = c.call(ctx, "place_order", orderTimeout, &result, func(ctx context.Context) (*resty.Response, error) {
		return c.rest.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(req).
			Post("/openapi/order")
	})
	if err != nil {
		return types.OrderAck{}, err
	}
	return types.OrderAck{
		OrderID: result.OrderID,
		State:   orderStateFromWire(result.Status),
	}, nil
}

// CancelOrder cancels an open order. The exchange reports canceling an
// already-terminal order as not found, which is swallowed here.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	var result struct{}
	err := c.call(ctx, "cancel_order", orderTimeout, &result, func(ctx context.Context) (*resty.Response, error) {
		return c.rest.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(cancelOrderRequest{OrderID: orderID}).
			Post("/openapi/order/cancel")
	})
	if err != nil && types.KindOf(err) == types.ErrNotFound {
		return nil
	}
	return err
}

// PollOrder returns the current state and cumulative fill for an order.
func (c *Client) PollOrder(ctx context.Context, orderID string) (types.OrderStatus, error) {
	var result orderStatusResult
	err := c.call(ctx, "poll_order", statusTimeout, &result, func(ctx context.Context) (*resty.Response, error) {
		return c.rest.R().
			SetContext(ctx).
			SetQueryParam("order_id", orderID).
			Get("/openapi/order")
	})
	if err != nil {
		return types.OrderStatus{}, err
	}

	filled, err := strconv.ParseFloat(orEmpty(result.FilledSize, "0"), 64)
	if err != nil {
		return types.OrderStatus{}, c.schemaErr("poll_order", "bad filled size", err)
	}
	avg, err := strconv.ParseFloat(orEmpty(result.AvgPrice, "0"), 64)
	if err != nil {
		return types.OrderStatus{}, c.schemaErr("poll_order", "bad avg price", err)
	}
	return types.OrderStatus{
		OrderID:      result.OrderID,
		State:        orderStateFromWire(result.Status),
		FilledQty:    filled,
		AvgFillPrice: avg,
	}, nil
}

// GetBalances returns per-asset available and frozen balances.
func (c *Client) GetBalances(ctx context.Context) (types.Balances, error) {
	var result balancesResult
	err := c.call(ctx, "get_balances", statusTimeout, &result, func(ctx context.Context) (*resty.Response, error) {
		return c.rest.R().
			SetContext(ctx).
			Get("/openapi/balance")
	})
	if err != nil {
		return nil, err
	}

	out := make(types.Balances, len(result.Balances))
	for _, b := range result.Balances {
		out[b.QuoteToken] = types.Balance{
			Available: parseFloatOr(b.AvailableBalance, 0),
			Reserved:  parseFloatOr(b.FrozenBalance, 0),
		}
	}
	return out, nil
}

// call runs one envelope request with retry, error classification, metrics
// and health bookkeeping.
func (c *Client) call(ctx context.Context, op string, timeout time.Duration, result any, do func(ctx context.Context) (*resty.Response, error)) error {
	start := time.Now()
	err := c.retrier.Do(ctx, op, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		resp, err := do(callCtx)
		if err != nil {
			return types.NewVenueError(types.VenueOpinion, types.ErrTransport, op, "request failed", err)
		}
		if kind, ok := httpErrorKind(resp.StatusCode()); ok {
			return types.NewVenueError(types.VenueOpinion, kind, op,
				fmt.Sprintf("http %d", resp.StatusCode()), nil)
		}

		var env envelope
		if err := json.Unmarshal(resp.Body(), &env); err != nil {
			return types.NewVenueError(types.VenueOpinion, types.ErrSchema, op, "bad envelope", err)
		}
		if env.Errno != 0 {
			return types.NewVenueError(types.VenueOpinion, errnoKind(env.Errno), op,
				fmt.Sprintf("errno %d: %s", env.Errno, env.Errmsg), nil)
		}
		if err := json.Unmarshal(env.Result, result); err != nil {
			return types.NewVenueError(types.VenueOpinion, types.ErrSchema, op, "bad result payload", err)
		}
		return nil
	})

	venue.ObserveRequest(string(types.VenueOpinion), op, time.Since(start).Seconds(), err)
	if err != nil {
		venue.ObserveError(string(types.VenueOpinion), string(types.KindOf(err)))
		c.health.RecordFailure(types.VenueOpinion, err)
		return err
	}
	c.health.RecordSuccess(types.VenueOpinion)
	return nil
}

func (c *Client) schemaErr(op, msg string, err error) error {
	return types.NewVenueError(types.VenueOpinion, types.ErrSchema, op, msg, err)
}

func httpErrorKind(status int) (types.ErrorKind, bool) {
	switch {
	case status == http.StatusTooManyRequests:
		return types.ErrRateLimited, true
	case status == http.StatusNotFound:
		return types.ErrNotFound, true
	case status >= 500:
		return types.ErrTransport, true
	case status >= 400:
		return types.ErrValidation, true
	default:
		return "", false
	}
}

func errnoKind(errno int) types.ErrorKind {
	switch errno {
	case codeRateLimited:
		return types.ErrRateLimited
	case codeNotFound:
		return types.ErrNotFound
	case codeInsufficientBalance:
		return types.ErrInsufficientBalance
	default:
		return types.ErrValidation
	}
}

func wireSide(s types.Side) int {
	if s == types.SideSell {
		return wireSideSell
	}
	return wireSideBuy
}

func toLevels(levels []wireLevel) ([]types.BookLevel, error) {
	out := make([]types.BookLevel, 0, len(levels))
	for _, l := range levels {
		price, err := strconv.ParseFloat(l.Price, 64)
		if err != nil {
			return nil, fmt.Errorf("price %q: %w", l.Price, err)
		}
		size, err := strconv.ParseFloat(l.Size, 64)
		if err != nil {
			return nil, fmt.Errorf("size %q: %w", l.Size, err)
		}
		if size <= 0 {
			continue
		}
		out = append(out, types.BookLevel{Price: types.RoundPrice(price), Size: size})
	}
	return out, nil
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', types.PriceDecimals, 64)
}

func formatSize(q float64) string {
	return strconv.FormatFloat(q, 'f', 2, 64)
}

func parseFloatOr(s string, fallback float64) float64 {
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}

func orEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
