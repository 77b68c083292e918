package venue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crossvenue/crossarb/pkg/types"
)

func fastRetrier() *Retrier {
	return &Retrier{
		base:        time.Millisecond,
		max:         4 * time.Millisecond,
		maxAttempts: 5,
		logger:      zap.NewNop(),
	}
}

func TestRetrierSucceedsAfterTransientFailures(t *testing.T) {
	r := fastRetrier()
	calls := 0
	err := r.Do(context.Background(), "get_book", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return types.NewVenueError(types.VenueOpinion, types.ErrTransport, "get_book", "connection reset", nil)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrierStopsOnNonRetryable(t *testing.T) {
	r := fastRetrier()
	calls := 0
	err := r.Do(context.Background(), "place_order", func(ctx context.Context) error {
		calls++
		return types.NewVenueError(types.VenuePolymarket, types.ErrValidation, "place_order", "price off grid", nil)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, types.ErrValidation, types.KindOf(err))
}

func TestRetrierExhaustsAttempts(t *testing.T) {
	r := fastRetrier()
	calls := 0
	err := r.Do(context.Background(), "get_book", func(ctx context.Context) error {
		calls++
		return types.NewVenueError(types.VenueOpinion, types.ErrRateLimited, "get_book", "429", nil)
	})
	require.Error(t, err)
	assert.Equal(t, 5, calls)
	assert.Contains(t, err.Error(), "exhausted 5 attempts")
	assert.True(t, types.IsRetryable(errors.Unwrap(err)))
}

func TestRetrierHonorsContextCancellation(t *testing.T) {
	r := fastRetrier()
	r.base = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := r.Do(ctx, "get_book", func(ctx context.Context) error {
		calls++
		return types.NewVenueError(types.VenueOpinion, types.ErrTransport, "get_book", "timeout", nil)
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
