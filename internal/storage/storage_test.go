package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crossvenue/crossarb/internal/scanner"
	"github.com/crossvenue/crossarb/pkg/types"
)

func storedOpportunity() *scanner.Opportunity {
	return &scanner.Opportunity{
		ID:          "8f14e45f-ceea-467f-a0e6-b2c30d3a7b21",
		PairID:      "op:11|pm:m1",
		Question:    "will btc close above 100k",
		Combination: scanner.BuyYesOpinionNoPolymarket,
		OpinionLeg: scanner.Leg{
			Token: types.Token{Venue: types.VenueOpinion, TokenID: "op-yes"},
			Price: 0.40, Depth: 200,
		},
		PolymarketLeg: scanner.Leg{
			Token: types.Token{Venue: types.VenuePolymarket, TokenID: "pm-no"},
			Price: 0.55, Depth: 300,
		},
		RawEdge:       0.05,
		EffectiveEdge: 0.043,
		AnnualizedPct: 165.2,
		SizeCap:       200,
		DaysToResolve: 10,
		Class:         scanner.ClassImmediate,
		DetectedAt:    time.Now(),
	}
}

func TestConsoleStorageStoreOpportunity(t *testing.T) {
	storage := NewConsoleStorage(zap.NewNop())
	opp := storedOpportunity()

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := storage.StoreOpportunity(context.Background(), opp)

	w.Close()
	os.Stdout = oldStdout
	var buf bytes.Buffer
	io.Copy(&buf, r)
	output := buf.String()

	require.NoError(t, err)
	assert.Contains(t, output, "CROSS-VENUE OPPORTUNITY")
	assert.Contains(t, output, opp.PairID)
	assert.Contains(t, output, opp.Question)
	assert.Contains(t, output, string(opp.Combination))
	require.NoError(t, storage.Close())
}

func TestPostgresStorageStoreOpportunity(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	storage := &PostgresStorage{db: db, logger: zap.NewNop()}
	opp := storedOpportunity()

	mock.ExpectExec("INSERT INTO opportunities").
		WithArgs(
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
			sqlmock.AnyArg(), // detected_at
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, storage.StoreOpportunity(context.Background(), opp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorageStoreOpportunityError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	storage := &PostgresStorage{db: db, logger: zap.NewNop()}

	mock.ExpectExec("INSERT INTO opportunities").
		WillReturnError(sqlmock.ErrCancelled)

	err = storage.StoreOpportunity(context.Background(), storedOpportunity())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert opportunity")
}

func TestPostgresStorageClose(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectClose()
	storage := &PostgresStorage{db: db, logger: zap.NewNop()}
	require.NoError(t, storage.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
