package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/crossvenue/crossarb/internal/app"
	"github.com/crossvenue/crossarb/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the arbitrage engine",
	Long: `Starts the engine: binds market pairs across both venues, scans their
books on an interval, executes immediate opportunities with IOC orders,
rests maker orders on liquidity opportunities, and reconciles any
unhedged fills.

EXECUTION_MODE=dry-run (the default) scans and reports without placing
orders; set EXECUTION_MODE=live to trade.`,
	RunE: runEngine,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("dry-run", false, "Scan and report without placing orders (overrides EXECUTION_MODE)")
}

func runEngine(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		cfg.ExecutionMode = "dry-run"
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return application.Run(ctx)
}
