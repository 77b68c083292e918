package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all engine configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Opinion API (venue A)
	OpinionHost   string
	OpinionAPIKey string

	// Polymarket API (venue B)
	PolymarketCLOBURL      string
	PolymarketGammaURL     string
	PolymarketAPIKey       string
	PolymarketSecret       string
	PolymarketPassphrase   string
	PolymarketPrivateKey   string
	PolymarketProxyAddress string
	PolymarketSigType      int

	// Matcher
	MatcherRefreshInterval time.Duration
	TitleSimilarityMin     float64
	MaxResolutionDelta     time.Duration

	// Book fetching
	ScanInterval       time.Duration
	OrderbookBatchSize int
	OpinionMaxRPS      float64
	PolymarketMaxRPS   float64
	MaxBookAge         time.Duration

	// Fees (venue A fee curve: rate = a*p*(1-p) + c, floored at MinFee)
	FeeCurveA     float64
	FeeCurveC     float64
	OpinionMinFee float64

	// Opportunity sizing
	MaxPerTradeShares float64
	MaxNotional       float64

	// Immediate strategy
	ImmediateMinEdgePct    float64
	ImmediateMaxEdgePct    float64
	MaxConcurrentImmediate int
	MinHedgeSize           float64
	MaxHedgeAttempts       int
	SlippageCapTicks       int
	StopLossEdge           float64

	// Liquidity strategy
	LiquidityMinAnnualizedPct float64
	LiquidityExitEdgePct      float64
	LiquidityTargetSize       float64
	MaxLiquidityOrders        int
	RepriceInterval           time.Duration

	// Order lifecycle
	OrderPollInterval time.Duration
	OrderPollTimeout  time.Duration

	// Execution
	ExecutionMode    string        // "dry-run" or "live"
	VenueOutageLimit time.Duration // shut down after both venues are dark this long

	// Trade log
	TradeLogPath     string
	TradeLogMaxBytes int64
	TradeLogKeep     int

	// Storage
	StorageMode  string // "postgres" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string

	// Dashboard bridge
	WSBridgeEnabled bool
}

// LoadFromEnv loads configuration from environment variables with defaults.
// A .env file in the working directory is applied first if present.
func LoadFromEnv() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		OpinionHost:   getEnvOrDefault("OPINION_HOST", "https://proxy.opinion.trade:8443"),
		OpinionAPIKey: os.Getenv("OPINION_API_KEY"),

		PolymarketCLOBURL:      getEnvOrDefault("POLYMARKET_CLOB_URL", "https://clob.polymarket.com"),
		PolymarketGammaURL:     getEnvOrDefault("POLYMARKET_GAMMA_URL", "https://gamma-api.polymarket.com"),
		PolymarketAPIKey:       os.Getenv("POLYMARKET_API_KEY"),
		PolymarketSecret:       os.Getenv("POLYMARKET_SECRET"),
		PolymarketPassphrase:   os.Getenv("POLYMARKET_PASSPHRASE"),
		PolymarketPrivateKey:   os.Getenv("POLYMARKET_PRIVATE_KEY"),
		PolymarketProxyAddress: os.Getenv("POLYMARKET_PROXY_ADDRESS"),
		PolymarketSigType:      getIntOrDefault("POLYMARKET_SIGNATURE_TYPE", 0),

		MatcherRefreshInterval: getDurationOrDefault("MATCHER_REFRESH_S", 300*time.Second),
		TitleSimilarityMin:     getFloat64OrDefault("TITLE_SIMILARITY_THRESHOLD", 0.85),
		MaxResolutionDelta:     getDurationOrDefault("MAX_RESOLUTION_DATE_DELTA_HOURS", 48*time.Hour),

		ScanInterval:       getDurationOrDefault("SCAN_INTERVAL_MS", 500*time.Millisecond),
		OrderbookBatchSize: getIntOrDefault("ORDERBOOK_BATCH_SIZE", 20),
		OpinionMaxRPS:      getFloat64OrDefault("OPINION_MAX_RPS", 15),
		PolymarketMaxRPS:   getFloat64OrDefault("POLYMARKET_MAX_RPS", 20),
		MaxBookAge:         getDurationOrDefault("MAX_BOOK_AGE_MS", 2*time.Second),

		FeeCurveA:     getFloat64OrDefault("FEE_CURVE_A", 0.06),
		FeeCurveC:     getFloat64OrDefault("FEE_CURVE_C", 0.0025),
		OpinionMinFee: getFloat64OrDefault("OPINION_MIN_FEE", 0.50),

		MaxPerTradeShares: getFloat64OrDefault("MAX_PER_TRADE_SHARES", 1000),
		MaxNotional:       getFloat64OrDefault("MAX_NOTIONAL", 500),

		ImmediateMinEdgePct:    getFloat64OrDefault("IMMEDIATE_MIN_EDGE_PCT", 2.0),
		ImmediateMaxEdgePct:    getFloat64OrDefault("IMMEDIATE_MAX_EDGE_PCT", 50.0),
		MaxConcurrentImmediate: getIntOrDefault("MAX_CONCURRENT_IMMEDIATE", 2),
		MinHedgeSize:           getFloat64OrDefault("MIN_HEDGE_SIZE", 1),
		MaxHedgeAttempts:       getIntOrDefault("MAX_HEDGE_ATTEMPTS", 5),
		SlippageCapTicks:       getIntOrDefault("SLIPPAGE_CAP_TICKS", 2),
		StopLossEdge:           getFloat64OrDefault("STOP_LOSS_EDGE", 0.005),

		LiquidityMinAnnualizedPct: getFloat64OrDefault("LIQUIDITY_MIN_ANNUALIZED_PCT", 20.0),
		LiquidityTargetSize:       getFloat64OrDefault("LIQUIDITY_TARGET_SIZE", 250),
		MaxLiquidityOrders:        getIntOrDefault("LIQUIDITY_MAX_ACTIVE", 20),
		RepriceInterval:           getDurationOrDefault("LIQUIDITY_REPRICE_INTERVAL_S", 5*time.Second),

		OrderPollInterval: getDurationOrDefault("ORDER_POLL_INTERVAL_MS", 100*time.Millisecond),
		OrderPollTimeout:  getDurationOrDefault("ORDER_POLL_TIMEOUT_S", 30*time.Second),

		ExecutionMode:    getEnvOrDefault("EXECUTION_MODE", "dry-run"),
		VenueOutageLimit: getDurationOrDefault("VENUE_OUTAGE_LIMIT", 30*time.Minute),

		TradeLogPath:     getEnvOrDefault("TRADELOG_PATH", "tradelog.jsonl"),
		TradeLogMaxBytes: int64(getIntOrDefault("TRADELOG_MAX_BYTES", 64<<20)),
		TradeLogKeep:     getIntOrDefault("TRADELOG_KEEP", 5),

		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "crossarb"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "crossarb"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "crossarb"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),

		WSBridgeEnabled: getBoolOrDefault("WS_BRIDGE_ENABLED", false),
	}

	// The exit threshold defaults to half a point under the entry threshold.
	cfg.LiquidityExitEdgePct = getFloat64OrDefault("LIQUIDITY_EXIT_EDGE_PCT", cfg.LiquidityMinAnnualizedPct-0.5)

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are coherent.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.OpinionHost == "" {
		return fmt.Errorf("OPINION_HOST cannot be empty")
	}

	if c.PolymarketCLOBURL == "" || c.PolymarketGammaURL == "" {
		return fmt.Errorf("polymarket URLs cannot be empty")
	}

	if c.ImmediateMinEdgePct <= 0 {
		return fmt.Errorf("IMMEDIATE_MIN_EDGE_PCT must be positive, got %f", c.ImmediateMinEdgePct)
	}

	if c.ImmediateMaxEdgePct <= c.ImmediateMinEdgePct {
		return fmt.Errorf("IMMEDIATE_MAX_EDGE_PCT must exceed IMMEDIATE_MIN_EDGE_PCT, got %f <= %f",
			c.ImmediateMaxEdgePct, c.ImmediateMinEdgePct)
	}

	if c.TitleSimilarityMin <= 0 || c.TitleSimilarityMin > 1 {
		return fmt.Errorf("TITLE_SIMILARITY_THRESHOLD must be in (0, 1], got %f", c.TitleSimilarityMin)
	}

	if c.OpinionMaxRPS <= 0 || c.PolymarketMaxRPS <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}

	if c.OrderbookBatchSize < 1 {
		return fmt.Errorf("ORDERBOOK_BATCH_SIZE must be at least 1, got %d", c.OrderbookBatchSize)
	}

	if c.ExecutionMode != "dry-run" && c.ExecutionMode != "live" {
		return fmt.Errorf("EXECUTION_MODE must be 'dry-run' or 'live', got %q", c.ExecutionMode)
	}

	if c.StorageMode != "console" && c.StorageMode != "postgres" {
		return fmt.Errorf("STORAGE_MODE must be 'console' or 'postgres', got %q", c.StorageMode)
	}

	if c.ExecutionMode == "live" {
		if c.OpinionAPIKey == "" {
			return fmt.Errorf("OPINION_API_KEY required in live mode")
		}
		if c.PolymarketAPIKey == "" || c.PolymarketSecret == "" || c.PolymarketPrivateKey == "" {
			return fmt.Errorf("polymarket credentials required in live mode")
		}
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

// getDurationOrDefault reads a duration env var. Keys suffixed _MS, _S, or
// _HOURS accept a bare number in that unit; otherwise time.ParseDuration
// syntax applies.
func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if n, err := strconv.ParseFloat(value, 64); err == nil {
		switch {
		case hasSuffix(key, "_MS"):
			return time.Duration(n * float64(time.Millisecond))
		case hasSuffix(key, "_S"):
			return time.Duration(n * float64(time.Second))
		case hasSuffix(key, "_HOURS"):
			return time.Duration(n * float64(time.Hour))
		}
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}
