package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/crossvenue/crossarb/internal/app"
	"github.com/crossvenue/crossarb/internal/matcher"
	"github.com/crossvenue/crossarb/internal/venue"
	"github.com/crossvenue/crossarb/pkg/config"
	"github.com/crossvenue/crossarb/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var pairsCmd = &cobra.Command{
	Use:   "pairs",
	Short: "List market pairs bound across both venues",
	Long:  `Lists markets from both venues and prints the pairs the matcher binds.`,
	RunE:  runPairs,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(pairsCmd)
}

func runPairs(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
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

	m := matcher.New(clients[types.VenueOpinion], clients[types.VenuePolymarket], matcher.Config{
		RefreshInterval:    cfg.MatcherRefreshInterval,
		TitleSimilarityMin: cfg.TitleSimilarityMin,
		MaxResolutionDelta: cfg.MaxResolutionDelta,
		Logger:             logger,
	})
	if err := m.Refresh(ctx); err != nil {
		return fmt.Errorf("bind pairs: %w", err)
	}

	pairs := m.Snapshot()
	fmt.Printf("\nBound %d market pairs:\n\n", len(pairs))
	if len(pairs) == 0 {
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Question", "Opinion", "Polymarket", "Sim", "Resolves")
	for _, p := range pairs {
		table.Append(
			truncate(p.Question, 50),
			p.Opinion.MarketID,
			truncate(p.Polymarket.MarketID, 16),
			fmt.Sprintf("%.2f", p.Similarity),
			p.Opinion.ResolutionDate.Format("2006-01-02"),
		)
	}
	table.Render()
	return nil
}
