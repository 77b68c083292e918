package venue

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/crossvenue/crossarb/pkg/types"
)

const (
	retryBaseDelay   = 500 * time.Millisecond
	retryMaxDelay    = 8 * time.Second
	retryMaxAttempts = 5
	retryJitterFrac  = 0.2
)

// Retrier runs venue calls with exponential backoff. Only transport and
// rate-limit failures are retried; schema, validation, not-found and balance
// errors surface immediately.
type Retrier struct {
	base        time.Duration
	max         time.Duration
	maxAttempts int
	logger      *zap.Logger
}

// NewRetrier builds a retrier with the default backoff schedule.
func NewRetrier(logger *zap.Logger) *Retrier {
	return &Retrier{
		base:        retryBaseDelay,
		max:         retryMaxDelay,
		maxAttempts: retryMaxAttempts,
		logger:      logger,
	}
}

// Do runs fn up to maxAttempts times. The op label is used for logging and
// the final wrapped error.
func (r *Retrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	delay := r.base
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !types.IsRetryable(err) {
			return err
		}
		if attempt == r.maxAttempts {
			break
		}
		r.logger.Warn("retrying-venue-call",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jitter(delay)):
		}
		delay *= 2
		if delay > r.max {
			delay = r.max
		}
	}
	return fmt.Errorf("%s: exhausted %d attempts: %w", op, r.maxAttempts, lastErr)
}

func jitter(d time.Duration) time.Duration {
	f := 1 + retryJitterFrac*(2*rand.Float64()-1)
	return time.Duration(float64(d) * f)
}
