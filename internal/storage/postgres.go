package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/crossvenue/crossarb/internal/scanner"
)

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage creates a new PostgreSQL storage.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// StoreOpportunity stores a detected opportunity in PostgreSQL. One row per
// scan hit; repeated detections of the same crossing get distinct IDs.
func (p *PostgresStorage) StoreOpportunity(ctx context.Context, opp *scanner.Opportunity) error {
	query := `
		INSERT INTO opportunities (
			id, pair_id, question, combination,
			opinion_token, opinion_price, opinion_depth,
			polymarket_token, polymarket_price, polymarket_depth,
			raw_edge, effective_edge, annualized_pct, size_cap,
			days_to_resolve, class, detected_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		)
	`

	_, err := p.db.ExecContext(ctx, query,
		opp.ID,
		opp.PairID,
		opp.Question,
		string(opp.Combination),
		opp.OpinionLeg.Token.TokenID,
		opp.OpinionLeg.Price,
		opp.OpinionLeg.Depth,
		opp.PolymarketLeg.Token.TokenID,
		opp.PolymarketLeg.Price,
		opp.PolymarketLeg.Depth,
		opp.RawEdge,
		opp.EffectiveEdge,
		opp.AnnualizedPct,
		opp.SizeCap,
		opp.DaysToResolve,
		string(opp.Class),
		opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("insert opportunity: %w", err)
	}

	p.logger.Debug("opportunity-stored",
		zap.String("opportunity-id", opp.ID),
		zap.String("pair-id", opp.PairID),
		zap.String("class", string(opp.Class)))

	return nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
