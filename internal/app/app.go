// Package app assembles the engine from configuration and runs it.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/crossvenue/crossarb/internal/books"
	"github.com/crossvenue/crossarb/internal/fees"
	"github.com/crossvenue/crossarb/internal/matcher"
	"github.com/crossvenue/crossarb/internal/scanner"
	"github.com/crossvenue/crossarb/internal/storage"
	"github.com/crossvenue/crossarb/internal/strategy"
	"github.com/crossvenue/crossarb/internal/supervisor"
	"github.com/crossvenue/crossarb/internal/tradelog"
	"github.com/crossvenue/crossarb/internal/venue"
	"github.com/crossvenue/crossarb/internal/venue/opinion"
	"github.com/crossvenue/crossarb/internal/venue/polymarket"
	"github.com/crossvenue/crossarb/pkg/cache"
	"github.com/crossvenue/crossarb/pkg/config"
	"github.com/crossvenue/crossarb/pkg/healthprobe"
	"github.com/crossvenue/crossarb/pkg/httpserver"
	"github.com/crossvenue/crossarb/pkg/types"
	"github.com/crossvenue/crossarb/pkg/wsbridge"
)

// App owns the assembled engine and its ancillary servers.
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	sup      *supervisor.Supervisor
	httpSrv  *httpserver.Server
	hub      *wsbridge.Hub
	store    storage.Storage
	tradeLog *tradelog.Log
}

// New wires every component from configuration. Nothing starts until Run.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	health := venue.NewHealth(logger)

	clients, err := BuildClients(cfg, health, logger)
	if err != nil {
		return nil, err
	}
	op := clients[types.VenueOpinion]
	pm := clients[types.VenuePolymarket]

	feeModel := fees.New(fees.Config{
		CurveA: cfg.FeeCurveA,
		CurveC: cfg.FeeCurveC,
		MinFee: cfg.OpinionMinFee,
	})

	tradeLog, err := tradelog.Open(cfg.TradeLogPath, cfg.TradeLogMaxBytes, cfg.TradeLogKeep)
	if err != nil {
		return nil, fmt.Errorf("open trade log: %w", err)
	}

	store, err := buildStorage(cfg, logger)
	if err != nil {
		tradeLog.Close()
		return nil, err
	}

	engineCache, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
		Logger:      logger,
	})
	if err != nil {
		tradeLog.Close()
		store.Close()
		return nil, fmt.Errorf("build cache: %w", err)
	}

	deficits := make(chan strategy.DeficitEvent, 64)

	immediate := strategy.NewImmediate(clients, feeModel, tradeLog, deficits, strategy.ImmediateConfig{
		MinHedgeSize:     cfg.MinHedgeSize,
		SlippageCapTicks: cfg.SlippageCapTicks,
		PollInterval:     cfg.OrderPollInterval,
		PollTimeout:      cfg.OrderPollTimeout,
	}, logger)

	maker := strategy.NewMaker(clients, feeModel, tradeLog, deficits, strategy.LiquidityConfig{
		TargetSize:       cfg.LiquidityTargetSize,
		MaxOpenOrders:    cfg.MaxLiquidityOrders,
		RepriceInterval:  cfg.RepriceInterval,
		ExitAnnualized:   cfg.LiquidityExitEdgePct,
		MinHedgeSize:     cfg.MinHedgeSize,
		SlippageCapTicks: cfg.SlippageCapTicks,
		PollInterval:     cfg.OrderPollInterval,
		PollTimeout:      cfg.OrderPollTimeout,
	}, logger)

	reconciler := strategy.NewReconciler(clients, feeModel, tradeLog, strategy.ReconcilerConfig{
		MaxAttempts:  cfg.MaxHedgeAttempts,
		StopLossEdge: cfg.StopLossEdge,
		MinHedgeSize: cfg.MinHedgeSize,
		PollInterval: cfg.OrderPollInterval,
		PollTimeout:  cfg.OrderPollTimeout,
	}, logger)

	probe := healthprobe.New()

	var hub *wsbridge.Hub
	var stream http.Handler
	if cfg.WSBridgeEnabled {
		hub = wsbridge.NewHub(logger)
		stream = hub
	}

	sup := supervisor.New(supervisor.Config{
		ScanInterval:           cfg.ScanInterval,
		MaxConcurrentImmediate: cfg.MaxConcurrentImmediate,
		DryRun:                 cfg.ExecutionMode == "dry-run",
		VenueOutageLimit:       cfg.VenueOutageLimit,
		Logger:                 logger,
	}, supervisor.Components{
		Clients: clients,
		Matcher: matcher.New(op, pm, matcher.Config{
			RefreshInterval:    cfg.MatcherRefreshInterval,
			TitleSimilarityMin: cfg.TitleSimilarityMin,
			MaxResolutionDelta: cfg.MaxResolutionDelta,
			Logger:             logger,
		}),
		Fetcher: books.New(op, pm, books.Config{
			BatchSize:     cfg.OrderbookBatchSize,
			OpinionRPS:    cfg.OpinionMaxRPS,
			PolymarketRPS: cfg.PolymarketMaxRPS,
			MaxBookAge:    cfg.MaxBookAge,
			Logger:        logger,
		}),
		Scanner: scanner.New(feeModel, scanner.Config{
			ImmediateMinEdgePct:       cfg.ImmediateMinEdgePct,
			ImmediateMaxEdgePct:       cfg.ImmediateMaxEdgePct,
			LiquidityMinAnnualizedPct: cfg.LiquidityMinAnnualizedPct,
			MaxPerTradeShares:         cfg.MaxPerTradeShares,
			MaxNotional:               cfg.MaxNotional,
			Logger:                    logger,
		}),
		Immediate:  immediate,
		Maker:      maker,
		Reconciler: reconciler,
		Deficits:   deficits,
		Store:      store,
		Health:     health,
		Probe:      probe,
		Hub:        hub,
		Cache:      engineCache,
	})

	httpSrv := httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: probe,
		Engine:        sup,
		Stream:        stream,
	})

	return &App{
		cfg:      cfg,
		logger:   logger,
		sup:      sup,
		httpSrv:  httpSrv,
		hub:      hub,
		store:    store,
		tradeLog: tradeLog,
	}, nil
}

// BuildClients constructs both venue clients over a shared health tracker.
func BuildClients(cfg *config.Config, health *venue.Health, logger *zap.Logger) (map[types.Venue]venue.Client, error) {
	op := opinion.New(opinion.Config{
		Host:   cfg.OpinionHost,
		APIKey: cfg.OpinionAPIKey,
	}, health, logger)

	pm, err := polymarket.New(polymarket.Config{
		CLOBURL:       cfg.PolymarketCLOBURL,
		GammaURL:      cfg.PolymarketGammaURL,
		APIKey:        cfg.PolymarketAPIKey,
		Secret:        cfg.PolymarketSecret,
		Passphrase:    cfg.PolymarketPassphrase,
		PrivateKey:    cfg.PolymarketPrivateKey,
		ProxyAddress:  cfg.PolymarketProxyAddress,
		SignatureType: cfg.PolymarketSigType,
	}, health, logger)
	if err != nil {
		return nil, fmt.Errorf("build polymarket client: %w", err)
	}

	return map[types.Venue]venue.Client{
		types.VenueOpinion:    op,
		types.VenuePolymarket: pm,
	}, nil
}

func buildStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageMode == "postgres" {
		store, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("build postgres storage: %w", err)
		}
		return store, nil
	}
	return storage.NewConsoleStorage(logger), nil
}

// Run starts the HTTP server and the scan loop, and blocks until the context
// ends or the engine fails. Cleanup runs before return.
func (a *App) Run(ctx context.Context) error {
	if a.hub != nil {
		go a.hub.Run(ctx)
	}

	httpErr := make(chan error, 1)
	go func() { httpErr <- a.httpSrv.Start() }()

	runErr := make(chan error, 1)
	go func() { runErr <- a.sup.Run(ctx) }()

	var err error
	select {
	case err = <-runErr:
	case err = <-httpErr:
		err = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if shutdownErr := a.httpSrv.Shutdown(shutdownCtx); shutdownErr != nil {
		a.logger.Error("http-shutdown-failed", zap.Error(shutdownErr))
	}

	if closeErr := a.store.Close(); closeErr != nil {
		a.logger.Error("storage-close-failed", zap.Error(closeErr))
	}
	if closeErr := a.tradeLog.Close(); closeErr != nil {
		a.logger.Error("trade-log-close-failed", zap.Error(closeErr))
	}

	return err
}
