// Package cmd holds the CLI entrypoints.
package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/crossvenue/crossarb/internal/supervisor"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "crossarb",
	Short: "Cross-venue prediction market arbitrage engine",
	Long: `crossarb binds equivalent prediction markets on Opinion and Polymarket,
scans their order books for complementary outcomes whose combined cost is
below one dollar, and executes both legs: aggressively when the edge pays
for crossing the spread, passively with resting orders when it does not.

Unhedged fills are walked up the book by a reconciler until the position is
flat or the edge is consumed.`,
	SilenceUsage: true,
}

// Execute runs the root command. Exit code 2 marks a venue outage so
// process managers can tell connectivity failures from config errors.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, supervisor.ErrVenuesUnavailable) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
