package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/crossvenue/crossarb/internal/app"
	"github.com/crossvenue/crossarb/internal/books"
	"github.com/crossvenue/crossarb/internal/fees"
	"github.com/crossvenue/crossarb/internal/matcher"
	"github.com/crossvenue/crossarb/internal/scanner"
	"github.com/crossvenue/crossarb/internal/venue"
	"github.com/crossvenue/crossarb/pkg/config"
	"github.com/crossvenue/crossarb/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan cycle and print detected opportunities",
	Long: `Binds market pairs, fetches one frame of order books, and prints every
opportunity the scanner detects. No orders are placed.`,
	RunE: runScan,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().DurationP("timeout", "t", 60*time.Second, "Overall timeout for the scan")
}

func runScan(cmd *cobra.Command, args []string) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	health := venue.NewHealth(logger)
	clients, err := app.BuildClients(cfg, health, logger)
	if err != nil {
		return err
	}
	op := clients[types.VenueOpinion]
	pm := clients[types.VenuePolymarket]

	m := matcher.New(op, pm, matcher.Config{
		RefreshInterval:    cfg.MatcherRefreshInterval,
		TitleSimilarityMin: cfg.TitleSimilarityMin,
		MaxResolutionDelta: cfg.MaxResolutionDelta,
		Logger:             logger,
	})
	if err := m.Refresh(ctx); err != nil {
		return fmt.Errorf("bind pairs: %w", err)
	}
	pairs := m.Snapshot()
	if len(pairs) == 0 {
		fmt.Println("No matching market pairs found.")
		return nil
	}

	fetcher := books.New(op, pm, books.Config{
		BatchSize:     cfg.OrderbookBatchSize,
		OpinionRPS:    cfg.OpinionMaxRPS,
		PolymarketRPS: cfg.PolymarketMaxRPS,
		MaxBookAge:    cfg.MaxBookAge,
		Logger:        logger,
	})
	frame, err := fetcher.FetchFrame(ctx, pairs)
	if err != nil {
		return fmt.Errorf("fetch frame: %w", err)
	}

	feeModel := fees.New(fees.Config{
		CurveA: cfg.FeeCurveA,
		CurveC: cfg.FeeCurveC,
		MinFee: cfg.OpinionMinFee,
	})
	opps := scanner.New(feeModel, scanner.Config{
		ImmediateMinEdgePct:       cfg.ImmediateMinEdgePct,
		ImmediateMaxEdgePct:       cfg.ImmediateMaxEdgePct,
		LiquidityMinAnnualizedPct: cfg.LiquidityMinAnnualizedPct,
		MaxPerTradeShares:         cfg.MaxPerTradeShares,
		MaxNotional:               cfg.MaxNotional,
		Logger:                    logger,
	}).Scan(pairs, frame)

	fmt.Printf("\nScanned %d pairs, found %d opportunities:\n\n", len(pairs), len(opps))
	if len(opps) == 0 {
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Class", "Question", "Comb", "Op", "Pm", "Raw%", "Eff%", "Ann%", "Cap")
	for _, o := range opps {
		table.Append(
			string(o.Class),
			truncate(o.Question, 40),
			string(o.Combination),
			fmt.Sprintf("%.3f", o.OpinionLeg.Price),
			fmt.Sprintf("%.3f", o.PolymarketLeg.Price),
			fmt.Sprintf("%.2f", o.RawEdge*100),
			fmt.Sprintf("%.2f", o.EffectiveEdge*100),
			fmt.Sprintf("%.1f", o.AnnualizedPct),
			fmt.Sprintf("%.0f", o.SizeCap),
		)
	}
	table.Render()
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
