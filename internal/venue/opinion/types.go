package opinion

import (
	"github.com/goccy/go-json"

	"github.com/crossvenue/crossarb/pkg/types"
)

// Every endpoint wraps its payload in the same envelope; errno zero means
// success and result carries the payload.
type envelope struct {
	Errno  int             `json:"errno"`
	Errmsg string          `json:"errmsg"`
	Result json.RawMessage `json:"result"`
}

// Error codes the exchange documents. Anything unlisted is treated as a
// validation failure so it is never retried blindly.
const (
	codeRateLimited         = 10429
	codeNotFound            = 10404
	codeInsufficientBalance = 20001
)

type marketListResult struct {
	List  []wireMarket `json:"list"`
	Total int          `json:"total"`
}

type wireMarket struct {
	MarketID     int64  `json:"marketId"`
	MarketTitle  string `json:"marketTitle"`
	MarketSlug   string `json:"marketSlug"`
	Status       int    `json:"status"`
	MarketType   int    `json:"marketType"`
	CutoffAt     int64  `json:"cutoffAt"` // unix seconds, trading cutoff / resolution time
	YesTokenID   string `json:"yesTokenId"`
	NoTokenID    string `json:"noTokenId"`
	QuoteToken   string `json:"quoteToken"`
	TickSize     string `json:"tickSize"`
	MinOrderSize string `json:"minOrderSize"`
}

const (
	marketStatusActivated = 2
	marketTypeBinary      = 0
)

type wireLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type orderbookResult struct {
	TokenID string      `json:"tokenId"`
	Bids    []wireLevel `json:"bids"`
	Asks    []wireLevel `json:"asks"`
}

const (
	wireSideBuy  = 0
	wireSideSell = 1

	wireOrderTypeLimit = 1
)

type placeOrderRequest struct {
	MarketID              int64  `json:"marketId"`
	TokenID               string `json:"tokenId"`
	Side                  int    `json:"side"`
	OrderType             int    `json:"orderType"`
	Price                 string `json:"price"`
	MakerAmountInBaseToken string `json:"makerAmountInBaseToken"`
	TimeInForce           string `json:"timeInForce"` // "IOC" or "GTC"
}

type placeOrderResult struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

type cancelOrderRequest struct {
	OrderID string `json:"orderId"`
}

type orderStatusResult struct {
	OrderID    string `json:"orderId"`
	Status     string `json:"status"`
	FilledSize string `json:"filledSize"`
	AvgPrice   string `json:"avgPrice"`
	Fee        string `json:"fee"`
}

type balancesResult struct {
	Balances []wireBalance `json:"balances"`
}

type wireBalance struct {
	QuoteToken       string `json:"quoteToken"`
	AvailableBalance string `json:"availableBalance"`
	FrozenBalance    string `json:"frozenBalance"`
}

// orderStateFromWire maps the exchange's order status strings onto the
// internal lifecycle.
func orderStateFromWire(s string) types.OrderState {
	switch s {
	case "pending":
		return types.OrderPendingSubmit
	case "open":
		return types.OrderOpen
	case "partial_filled":
		return types.OrderPartiallyFilled
	case "filled":
		return types.OrderFilled
	case "cancelled":
		return types.OrderCanceled
	case "rejected":
		return types.OrderRejected
	default:
		return types.OrderOpen
	}
}
