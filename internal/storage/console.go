package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/crossvenue/crossarb/internal/scanner"
)

// ConsoleStorage implements Storage by pretty-printing to console.
type ConsoleStorage struct {
	logger *zap.Logger
}

// NewConsoleStorage creates a new console storage.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{
		logger: logger,
	}
}

// StoreOpportunity pretty-prints an opportunity to console.
func (c *ConsoleStorage) StoreOpportunity(ctx context.Context, opp *scanner.Opportunity) error {
	fmt.Println("\n" + "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("🎯 CROSS-VENUE OPPORTUNITY [%s]\n", opp.Class)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("ID:          %s\n", opp.ID[:8])
	fmt.Printf("Pair:        %s\n", opp.PairID)
	fmt.Printf("Question:    %s\n", opp.Question)
	fmt.Printf("Combination: %s\n", opp.Combination)
	fmt.Printf("Time:        %s\n", opp.DetectedAt.Format("2006-01-02 15:04:05"))
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("📊 LEGS\n")
	fmt.Printf("  Opinion:    %.3f @ %.2f depth\n", opp.OpinionLeg.Price, opp.OpinionLeg.Depth)
	fmt.Printf("  Polymarket: %.3f @ %.2f depth\n", opp.PolymarketLeg.Price, opp.PolymarketLeg.Depth)
	fmt.Printf("  Cost sum:   %.3f\n", opp.CostSum())
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("💰 EDGE\n")
	fmt.Printf("  Raw:        %.4f\n", opp.RawEdge)
	fmt.Printf("  After fees: %.4f\n", opp.EffectiveEdge)
	fmt.Printf("  Annualized: %.2f%% over %.1f days\n", opp.AnnualizedPct, opp.DaysToResolve)
	fmt.Printf("  Size cap:   %.2f shares\n", opp.SizeCap)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}
