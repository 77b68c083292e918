package polymarket

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/crossvenue/crossarb/pkg/types"
)

// gammaMarket is one market from the Gamma listing API. Outcomes and token
// ids arrive as JSON strings inside the JSON document.
type gammaMarket struct {
	ID           string    `json:"id"`
	Question     string    `json:"question"`
	Slug         string    `json:"slug"`
	Active       bool      `json:"active"`
	Closed       bool      `json:"closed"`
	EndDate      time.Time `json:"endDate"`
	Outcomes     string    `json:"outcomes"`     // e.g. "[\"Yes\", \"No\"]"
	ClobTokens   string    `json:"clobTokenIds"` // e.g. "[\"123\", \"456\"]"
	MinTickSize  float64   `json:"orderPriceMinTickSize"`
	OrderMinSize float64   `json:"orderMinSize"`
}

// tokenIDs unpacks the embedded outcome and token-id arrays into a
// yes/no pair. Markets with any other outcome set are not binary.
func (m gammaMarket) tokenIDs() (yes, no string, ok bool) {
	var outcomes, ids []string
	if err := json.Unmarshal([]byte(m.Outcomes), &outcomes); err != nil {
		return "", "", false
	}
	if err := json.Unmarshal([]byte(m.ClobTokens), &ids); err != nil {
		return "", "", false
	}
	if len(outcomes) != 2 || len(ids) != 2 {
		return "", "", false
	}
	for i, o := range outcomes {
		switch o {
		case "Yes":
			yes = ids[i]
		case "No":
			no = ids[i]
		}
	}
	return yes, no, yes != "" && no != ""
}

// clobBook is the CLOB order book payload. Levels are price/size strings.
type clobBook struct {
	AssetID string      `json:"asset_id"`
	Bids    []clobLevel `json:"bids"`
	Asks    []clobLevel `json:"asks"`
}

type clobLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// signedOrderJSON is the wire form of an EIP-712 signed order. Salt and
// signatureType are integers; everything else is a string.
type signedOrderJSON struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Side          string `json:"side"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// postOrderRequest wraps a signed order for submission. Owner is the API
// key, not the maker address.
type postOrderRequest struct {
	Order     signedOrderJSON `json:"order"`
	Owner     string          `json:"owner"`
	OrderType string          `json:"orderType"` // GTC or FAK
}

type postOrderResponse struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg"`
	OrderID  string `json:"orderId"`
	Status   string `json:"status"` // live, matched, delayed, unmatched
}

type cancelRequest struct {
	OrderID string `json:"orderID"`
}

// orderStatusResponse is the GET /data/order payload.
type orderStatusResponse struct {
	OrderID      string  `json:"id"`
	Status       string  `json:"status"` // LIVE, MATCHED, CANCELED
	OriginalSize float64 `json:"original_size,string"`
	SizeMatched  float64 `json:"size_matched,string"`
	Price        float64 `json:"price,string"`
}

type balanceAllowanceResponse struct {
	Balance string `json:"balance"`
}

// orderStateFromWire folds the CLOB's status string and fill progress into
// the internal lifecycle. MATCHED with a partial fill means the remainder was
// killed, which is a cancel from the caller's point of view.
func orderStateFromWire(status string, filled, size float64) types.OrderState {
	switch status {
	case "live", "LIVE", "delayed":
		if filled > 0 {
			return types.OrderPartiallyFilled
		}
		return types.OrderOpen
	case "matched", "MATCHED":
		if size > 0 && filled < size {
			return types.OrderCanceled
		}
		return types.OrderFilled
	case "canceled", "CANCELED", "cancelled":
		return types.OrderCanceled
	case "unmatched", "REJECTED", "rejected":
		return types.OrderRejected
	default:
		return types.OrderOpen
	}
}
