package types

import (
	"fmt"
	"time"
)

// BookLevel is one price level of an order book.
type BookLevel struct {
	Price float64
	Size  float64
}

// BookSnapshot is a point-in-time view of one token's book. Bids are sorted
// descending by price, asks ascending. Snapshots are immutable after
// publication; consumers must not mutate levels.
type BookSnapshot struct {
	Venue     Venue
	TokenID   string
	Bids      []BookLevel
	Asks      []BookLevel
	FetchedAt time.Time
}

// BestBid returns the highest bid, or nil if the bid side is empty.
func (b *BookSnapshot) BestBid() *BookLevel {
	if len(b.Bids) == 0 {
		return nil
	}
	return &b.Bids[0]
}

// BestAsk returns the lowest ask, or nil if the ask side is empty.
func (b *BookSnapshot) BestAsk() *BookLevel {
	if len(b.Asks) == 0 {
		return nil
	}
	return &b.Asks[0]
}

// Validate checks the book invariants: sides sorted, best bid below best ask.
func (b *BookSnapshot) Validate() error {
	for i := 1; i < len(b.Bids); i++ {
		if b.Bids[i].Price > b.Bids[i-1].Price {
			return fmt.Errorf("bids not descending at level %d", i)
		}
	}
	for i := 1; i < len(b.Asks); i++ {
		if b.Asks[i].Price < b.Asks[i-1].Price {
			return fmt.Errorf("asks not ascending at level %d", i)
		}
	}
	bid, ask := b.BestBid(), b.BestAsk()
	if bid != nil && ask != nil && bid.Price >= ask.Price {
		return fmt.Errorf("crossed book: best bid %.3f >= best ask %.3f", bid.Price, ask.Price)
	}
	return nil
}

// Age returns how old the snapshot is relative to now.
func (b *BookSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(b.FetchedAt)
}

// ScanFrame is one consistent view of all watched books, stamped with the
// frame's wall-clock time. Opportunities built from a frame use only that
// frame's snapshots.
type ScanFrame struct {
	At    time.Time
	Books map[string]*BookSnapshot // key: token ID
}

// Book returns the snapshot for a token, or nil if the token was not fetched
// or its snapshot was dropped as stale.
func (f *ScanFrame) Book(tokenID string) *BookSnapshot {
	if f == nil {
		return nil
	}
	return f.Books[tokenID]
}
