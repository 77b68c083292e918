package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/crossvenue/crossarb/internal/app"
	"github.com/crossvenue/crossarb/internal/venue"
	"github.com/crossvenue/crossarb/pkg/config"
	"github.com/crossvenue/crossarb/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show balances on both venues",
	RunE:  runBalance,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(balanceCmd)
}

func runBalance(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
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

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Venue", "Asset", "Available", "Reserved")
	for _, v := range []types.Venue{types.VenueOpinion, types.VenuePolymarket} {
		balances, err := clients[v].GetBalances(ctx)
		if err != nil {
			fmt.Printf("%s: balance fetch failed: %v\n", v, err)
			continue
		}
		for asset, b := range balances {
			table.Append(
				string(v),
				asset,
				fmt.Sprintf("%.2f", b.Available),
				fmt.Sprintf("%.2f", b.Reserved),
			)
		}
	}
	table.Render()
	return nil
}
