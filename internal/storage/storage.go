package storage

import (
	"context"

	"github.com/crossvenue/crossarb/internal/scanner"
)

// Storage persists detected opportunities for later analysis.
type Storage interface {
	// StoreOpportunity stores one detected opportunity.
	StoreOpportunity(ctx context.Context, opp *scanner.Opportunity) error

	// Close closes the storage connection.
	Close() error
}
