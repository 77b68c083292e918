// Package polymarket implements the venue adapter for Polymarket. Market
// discovery goes through the Gamma API, books and orders through the CLOB.
// Orders are EIP-712 signed and submitted with HMAC L2 auth headers.
package polymarket

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
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

// Config carries the connection and signing settings for the adapter.
// Signing credentials may be left empty for read-only use; trading calls
// then fail with a validation error instead of reaching the venue.
type Config struct {
	CLOBURL       string
	GammaURL      string
	APIKey        string
	Secret        string
	Passphrase    string
	PrivateKey    string
	ProxyAddress  string
	SignatureType int
	PageLimit     int
}

// Client satisfies venue.Client against the Gamma and CLOB APIs.
type Client struct {
	gamma     *resty.Client
	clob      *resty.Client
	signer    *signer
	retrier   *venue.Retrier
	health    *venue.Health
	pageLimit int
	logger    *zap.Logger
}

// New builds a Polymarket client. The signer is only constructed when a
// private key is configured.
func New(cfg Config, health *venue.Health, logger *zap.Logger) (*Client, error) {
	var sg *signer
	if cfg.PrivateKey != "" {
		var err error
		sg, err = newSigner(cfg.APIKey, cfg.Secret, cfg.Passphrase, cfg.PrivateKey, cfg.ProxyAddress, cfg.SignatureType)
		if err != nil {
			return nil, fmt.Errorf("polymarket signer: %w", err)
		}
	}

	limit := cfg.PageLimit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	return &Client{
		gamma: resty.New().
			SetBaseURL(cfg.GammaURL).
			SetTimeout(10 * time.Second).
			SetHeader("Accept", "application/json"),
		clob: resty.New().
			SetBaseURL(cfg.CLOBURL).
			SetTimeout(10 * time.Second).
			SetHeader("Accept", "application/json"),
		signer:    sg,
		retrier:   venue.NewRetrier(logger),
		health:    health,
		pageLimit: limit,
		logger:    logger.With(zap.String("venue", string(types.VenuePolymarket))),
	}, nil
}

func (c *Client) Venue() types.Venue { return types.VenuePolymarket }

// ListMarkets fetches one page of open binary markets from Gamma. The cursor
// is the listing offset; Gamma returns a bare JSON array.
func (c *Client) ListMarkets(ctx context.Context, cursor string) (venue.MarketsPage, error) {
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return venue.MarketsPage{}, c.err(types.ErrSchema, "list_markets", fmt.Sprintf("bad cursor %q", cursor), err)
		}
		offset = n
	}

	var markets []gammaMarket
	err := c.do(ctx, "list_markets", orderTimeout, func(ctx context.Context) error {
		resp, err := c.gamma.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"closed": "false",
				"active": "true",
				"limit":  strconv.Itoa(c.pageLimit),
				"offset": strconv.Itoa(offset),
			}).
			Get("/markets")
		if err != nil {
			return c.err(types.ErrTransport, "list_markets", "request failed", err)
		}
		if kind, ok := httpErrorKind(resp.StatusCode()); ok {
			return c.err(kind, "list_markets", fmt.Sprintf("http %d", resp.StatusCode()), nil)
		}
		markets = markets[:0]
		if err := json.Unmarshal(resp.Body(), &markets); err != nil {
			return c.err(types.ErrSchema, "list_markets", "bad market list", err)
		}
		return nil
	})
	if err != nil {
		return venue.MarketsPage{}, err
	}

	out := venue.MarketsPage{Markets: make([]types.MarketSummary, 0, len(markets))}
	for _, m := range markets {
		summary, ok := c.toSummary(m)
		if !ok {
			continue
		}
		out.Markets = append(out.Markets, summary)
	}
	if len(markets) == c.pageLimit {
		out.NextCursor = strconv.Itoa(offset + c.pageLimit)
	}
	return out, nil
}

func (c *Client) toSummary(m gammaMarket) (types.MarketSummary, bool) {
	if m.Closed || !m.Active {
		return types.MarketSummary{}, false
	}
	yesID, noID, ok := m.tokenIDs()
	if !ok {
		return types.MarketSummary{}, false
	}
	tick := m.MinTickSize
	if tick <= 0 {
		tick = defaultTickSize
	}
	token := func(id string, outcome types.Outcome) types.Token {
		return types.Token{
			Venue:        types.VenuePolymarket,
			MarketID:     m.ID,
			TokenID:      id,
			Outcome:      outcome,
			TickSize:     tick,
			MinOrderSize: m.OrderMinSize,
		}
	}
	return types.MarketSummary{
		Venue:          types.VenuePolymarket,
		MarketID:       m.ID,
		Title:          m.Question,
		Slug:           m.Slug,
		ResolutionDate: m.EndDate.UTC(),
		Active:         true,
		YesToken:       token(yesID, types.OutcomeYes),
		NoToken:        token(noID, types.OutcomeNo),
	}, true
}

// GetBook fetches one CLOB book.
func (c *Client) GetBook(ctx context.Context, tokenID string) (*types.BookSnapshot, error) {
	var book clobBook
	err := c.do(ctx, "get_book", bookTimeout, func(ctx context.Context) error {
		resp, err := c.clob.R().
			SetContext(ctx).
			SetQueryParam("token_id", tokenID).
			Get("/book")
		if err != nil {
			return c.err(types.ErrTransport, "get_book", "request failed", err)
		}
		if kind, ok := httpErrorKind(resp.StatusCode()); ok {
			return c.err(kind, "get_book", fmt.Sprintf("http %d", resp.StatusCode()), nil)
		}
		if err := json.Unmarshal(resp.Body(), &book); err != nil {
			return c.err(types.ErrSchema, "get_book", "bad book payload", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.toSnapshot(tokenID, book)
}

// GetBooksBatch fetches books through the CLOB bulk endpoint in one request.
func (c *Client) GetBooksBatch(ctx context.Context, tokenIDs []string) (map[string]*types.BookSnapshot, error) {
	if len(tokenIDs) == 0 {
		return map[string]*types.BookSnapshot{}, nil
	}
	params := make([]map[string]string, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		params = append(params, map[string]string{"token_id": id})
	}

	var books []clobBook
	err := c.do(ctx, "get_books", bookTimeout, func(ctx context.Context) error {
		resp, err := c.clob.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(params).
			Post("/books")
		if err != nil {
			return c.err(types.ErrTransport, "get_books", "request failed", err)
		}
		if kind, ok := httpErrorKind(resp.StatusCode()); ok {
			return c.err(kind, "get_books", fmt.Sprintf("http %d", resp.StatusCode()), nil)
		}
		books = books[:0]
		if err := json.Unmarshal(resp.Body(), &books); err != nil {
			return c.err(types.ErrSchema, "get_books", "bad books payload", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]*types.BookSnapshot, len(books))
	for _, b := range books {
		snap, err := c.toSnapshot(b.AssetID, b)
		if err != nil {
			c.logger.Warn("book-dropped", zap.String("token_id", b.AssetID), zap.Error(err))
			continue
		}
		out[b.AssetID] = snap
	}
	return out, nil
}

func (c *Client) toSnapshot(tokenID string, book clobBook) (*types.BookSnapshot, error) {
	snap := &types.BookSnapshot{
		Venue:     types.VenuePolymarket,
		TokenID:   tokenID,
		FetchedAt: time.Now(),
	}
	var err error
	if snap.Bids, err = toLevels(book.Bids); err != nil {
		return nil, c.err(types.ErrSchema, "get_book", "bad bid level", err)
	}
	if snap.Asks, err = toLevels(book.Asks); err != nil {
		return nil, c.err(types.ErrSchema, "get_book", "bad ask level", err)
	}
	// The CLOB serves bids ascending and asks descending; normalize to
	// best-first on both sides.
	sort.Slice(snap.Bids, func(i, j int) bool { return snap.Bids[i].Price > snap.Bids[j].Price })
	sort.Slice(snap.Asks, func(i, j int) bool { return snap.Asks[i].Price < snap.Asks[j].Price })
	if err := snap.Validate(); err != nil {
		return nil, c.err(types.ErrSchema, "get_book", "inconsistent book", err)
	}
	return snap, nil
}

// PlaceOrder signs and submits the ticket. IOC maps to the CLOB's FAK order
// type, so any unfilled remainder is killed venue-side.
func (c *Client) PlaceOrder(ctx context.Context, ticket *types.OrderTicket) (types.OrderAck, error) {
	if err := venue.ValidateTicket(ticket); err != nil {
		return types.OrderAck{}, err
	}
	if c.signer == nil {
		return types.OrderAck{}, c.err(types.ErrValidation, "place_order", "trading credentials not configured", nil)
	}

	order, err := c.signer.buildOrder(ticket)
	if err != nil {
		return types.OrderAck{}, c.err(types.ErrValidation, "place_order", "sign order", err)
	}
	orderType := "GTC"
	if ticket.TIF == types.TIFIOC {
		orderType = "FAK"
	}
	req := postOrderRequest{Order: order, Owner: c.signer.apiKey, OrderType: orderType}
	body, err := json.Marshal(req)
	if err != nil {
		return types.OrderAck{}, c.err(types.ErrSchema, "place_order", "marshal order", err)
	}

	var result postOrderResponse
	err = c.do(ctx, "place_order", orderTimeout, func(ctx context.Context) error {
		headers, err := c.signer.l2Headers(http.MethodPost, "/order", string(body))
		if err != nil {
			return c.err(types.ErrValidation, "place_order", "auth headers", err)
		}
		resp, err := c.clob.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetHeaders(headers).
			SetBody(body).
			Post("/order")
		if err != nil {
			return c.err(types.ErrTransport, "place_order", "request failed", err)
		}
		if kind, ok := httpErrorKind(resp.StatusCode()); ok {
			return c.err(kind, "place_order", fmt.Sprintf("http %d: %s", resp.StatusCode(), resp.Body()), nil)
		}
		if err := json.Unmarshal(resp.Body(), &result); err != nil {
			return c.err(types.ErrSchema, "place_order", "bad order response", err)
		}
		if !result.Success {
			return c.err(classifyOrderError(result.ErrorMsg), "place_order", result.ErrorMsg, nil)
		}
		return nil
	})
	if err != nil {
		return types.OrderAck{}, err
	}
	return types.OrderAck{
		OrderID: result.OrderID,
		State:   orderStateFromWire(result.Status, 0, 0),
	}, nil
}

// CancelOrder cancels an open order; a not-found response is treated as
// already terminal.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if c.signer == nil {
		return c.err(types.ErrValidation, "cancel_order", "trading credentials not configured", nil)
	}
	body, err := json.Marshal(cancelRequest{OrderID: orderID})
	if err != nil {
		return c.err(types.ErrSchema, "cancel_order", "marshal cancel", err)
	}

	err = c.do(ctx, "cancel_order", orderTimeout, func(ctx context.Context) error {
		headers, err := c.signer.l2Headers(http.MethodDelete, "/order", string(body))
		if err != nil {
			return c.err(types.ErrValidation, "cancel_order", "auth headers", err)
		}
		resp, err := c.clob.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetHeaders(headers).
			SetBody(body).
			Delete("/order")
		if err != nil {
			return c.err(types.ErrTransport, "cancel_order", "request failed", err)
		}
		if kind, ok := httpErrorKind(resp.StatusCode()); ok {
			return c.err(kind, "cancel_order", fmt.Sprintf("http %d", resp.StatusCode()), nil)
		}
		return nil
	})
	if err != nil && types.KindOf(err) == types.ErrNotFound {
		return nil
	}
	return err
}

// PollOrder returns the order's current state and cumulative fill.
func (c *Client) PollOrder(ctx context.Context, orderID string) (types.OrderStatus, error) {
	if c.signer == nil {
		return types.OrderStatus{}, c.err(types.ErrValidation, "poll_order", "trading credentials not configured", nil)
	}
	path := "/data/order/" + orderID

	var result orderStatusResponse
	err := c.do(ctx, "poll_order", statusTimeout, func(ctx context.Context) error {
		headers, err := c.signer.l2Headers(http.MethodGet, path, "")
		if err != nil {
			return c.err(types.ErrValidation, "poll_order", "auth headers", err)
		}
		resp, err := c.clob.R().
			SetContext(ctx).
			SetHeaders(headers).
			Get(path)
		if err != nil {
			return c.err(types.ErrTransport, "poll_order", "request failed", err)
		}
		if kind, ok := httpErrorKind(resp.StatusCode()); ok {
			return c.err(kind, "poll_order", fmt.Sprintf("http %d", resp.StatusCode()), nil)
		}
		if err := json.Unmarshal(resp.Body(), &result); err != nil {
			return c.err(types.ErrSchema, "poll_order", "bad order status", err)
		}
		return nil
	})
	if err != nil {
		return types.OrderStatus{}, err
	}
	return types.OrderStatus{
		OrderID:      result.OrderID,
		State:        orderStateFromWire(result.Status, result.SizeMatched, result.OriginalSize),
		FilledQty:    result.SizeMatched,
		AvgFillPrice: result.Price,
	}, nil
}

// GetBalances reads the collateral balance. Amounts come back in raw USDC
// units with six decimals.
func (c *Client) GetBalances(ctx context.Context) (types.Balances, error) {
	if c.signer == nil {
		return nil, c.err(types.ErrValidation, "get_balances", "trading credentials not configured", nil)
	}
	path := "/balance-allowance"

	var result balanceAllowanceResponse
	err := c.do(ctx, "get_balances", statusTimeout, func(ctx context.Context) error {
		headers, err := c.signer.l2Headers(http.MethodGet, path, "")
		if err != nil {
			return c.err(types.ErrValidation, "get_balances", "auth headers", err)
		}
		resp, err := c.clob.R().
			SetContext(ctx).
			SetHeaders(headers).
			SetQueryParam("asset_type", "COLLATERAL").
			Get(path)
		if err != nil {
			return c.err(types.ErrTransport, "get_balances", "request failed", err)
		}
		if kind, ok := httpErrorKind(resp.StatusCode()); ok {
			return c.err(kind, "get_balances", fmt.Sprintf("http %d", resp.StatusCode()), nil)
		}
		if err := json.Unmarshal(resp.Body(), &result); err != nil {
			return c.err(types.ErrSchema, "get_balances", "bad balance payload", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	raw, err := strconv.ParseFloat(result.Balance, 64)
	if err != nil {
		return nil, c.err(types.ErrSchema, "get_balances", fmt.Sprintf("bad balance %q", result.Balance), err)
	}
	return types.Balances{
		"USDC": {Available: raw / usdcDecimals},
	}, nil
}

// do wraps one venue call with retry, metrics and health bookkeeping.
func (c *Client) do(ctx context.Context, op string, timeout time.Duration, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := c.retrier.Do(ctx, op, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return fn(callCtx)
	})

	venue.ObserveRequest(string(types.VenuePolymarket), op, time.Since(start).Seconds(), err)
	if err != nil {
		venue.ObserveError(string(types.VenuePolymarket), string(types.KindOf(err)))
		c.health.RecordFailure(types.VenuePolymarket, err)
		return err
	}
	c.health.RecordSuccess(types.VenuePolymarket)
	return nil
}

func (c *Client) err(kind types.ErrorKind, op, msg string, cause error) error {
	return types.NewVenueError(types.VenuePolymarket, kind, op, msg, cause)
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

// classifyOrderError maps the CLOB's errorMsg strings onto error kinds.
func classifyOrderError(msg string) types.ErrorKind {
	switch {
	case containsFold(msg, "balance"), containsFold(msg, "allowance"):
		return types.ErrInsufficientBalance
	case containsFold(msg, "rate"):
		return types.ErrRateLimited
	default:
		return types.ErrValidation
	}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}

func toLevels(levels []clobLevel) ([]types.BookLevel, error) {
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
