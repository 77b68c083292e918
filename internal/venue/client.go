// Package venue defines the uniform surface over both exchange adapters plus
// the shared retry, health, and order-polling machinery. Everything
// venue-specific (endpoints, auth, signing, wire shapes) lives in the
// opinion and polymarket subpackages.
package venue

import (
	"context"
	"fmt"

	"github.com/crossvenue/crossarb/pkg/types"
)

// MarketsPage is one page of a venue's market listing.
type MarketsPage struct {
	Markets    []types.MarketSummary
	NextCursor string // empty when exhausted
}

// Client is the uniform operation set over one venue. Implementations
// normalize prices to the three-decimal grid, classify failures as
// *types.VenueError, and retry transient transport errors internally.
type Client interface {
	// Venue identifies which exchange this client wraps.
	Venue() types.Venue

	// ListMarkets returns one page of active binary markets.
	ListMarkets(ctx context.Context, cursor string) (MarketsPage, error)

	// GetBook returns a book snapshot for a token. A venue reporting no book
	// for the token yields a not-found error.
	GetBook(ctx context.Context, tokenID string) (*types.BookSnapshot, error)

	// GetBooksBatch fetches snapshots for a set of tokens. Partial results
	// are allowed: the returned map holds every book that was obtained even
	// when err is non-nil.
	GetBooksBatch(ctx context.Context, tokenIDs []string) (map[string]*types.BookSnapshot, error)

	// PlaceOrder submits the ticket's order quantity at its limit price.
	PlaceOrder(ctx context.Context, ticket *types.OrderTicket) (types.OrderAck, error)

	// CancelOrder cancels an open order. Canceling an already-terminal order
	// is not an error.
	CancelOrder(ctx context.Context, orderID string) error

	// PollOrder returns the current state and cumulative fill of an order.
	PollOrder(ctx context.Context, orderID string) (types.OrderStatus, error)

	// GetBalances returns available and reserved balances per asset.
	GetBalances(ctx context.Context) (types.Balances, error)
}

// ListAllMarkets drains a venue's market listing through its cursor.
func ListAllMarkets(ctx context.Context, c Client) ([]types.MarketSummary, error) {
	var all []types.MarketSummary
	cursor := ""
	for {
		page, err := c.ListMarkets(ctx, cursor)
		if err != nil {
			return all, fmt.Errorf("list markets %s: %w", c.Venue(), err)
		}
		all = append(all, page.Markets...)
		if page.NextCursor == "" {
			return all, nil
		}
		cursor = page.NextCursor
	}
}

// ValidateTicket checks a ticket against the token's grid and minimum before
// submission. Violations are validation errors: logged and skipped, never
// retried.
func ValidateTicket(ticket *types.OrderTicket) error {
	if !ticket.Token.OnTickGrid(ticket.LimitPrice) {
		return types.NewVenueError(ticket.Venue, types.ErrValidation, "place_order",
			fmt.Sprintf("price %.4f off tick grid %.4f", ticket.LimitPrice, ticket.Token.TickSize), nil)
	}
	if ticket.LimitPrice <= 0 || ticket.LimitPrice >= 1 {
		return types.NewVenueError(ticket.Venue, types.ErrValidation, "place_order",
			fmt.Sprintf("price %.4f outside (0, 1)", ticket.LimitPrice), nil)
	}
	if ticket.Token.MinOrderSize > 0 && ticket.OrderQty < ticket.Token.MinOrderSize {
		return types.NewVenueError(ticket.Venue, types.ErrValidation, "place_order",
			fmt.Sprintf("size %.2f below minimum %.2f", ticket.OrderQty, ticket.Token.MinOrderSize), nil)
	}
	return nil
}
