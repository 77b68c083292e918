package venue

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crossvenue/crossarb/pkg/types"
)

const (
	// Consecutive failures before a venue is marked degraded, and consecutive
	// successes before it recovers. The asymmetry keeps a flapping venue out
	// of the hot path.
	degradeThreshold = 3
	recoverThreshold = 2
)

// Health tracks per-venue availability. While a venue is degraded the
// scanner keeps running on whatever it can fetch and strategies stop opening
// new exposure on that venue; existing exposure is still managed.
type Health struct {
	mu     sync.Mutex
	venues map[types.Venue]*venueState
	logger *zap.Logger
}

type venueState struct {
	degraded  bool
	failures  int
	successes int
	lastOK    time.Time
}

// NewHealth seeds both venues as healthy as of now.
func NewHealth(logger *zap.Logger) *Health {
	now := time.Now()
	return &Health{
		venues: map[types.Venue]*venueState{
			types.VenueOpinion:    {lastOK: now},
			types.VenuePolymarket: {lastOK: now},
		},
		logger: logger,
	}
}

// RecordSuccess notes a completed call against the venue.
func (h *Health) RecordSuccess(v types.Venue) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.state(v)
	s.lastOK = time.Now()
	s.failures = 0
	if !s.degraded {
		return
	}
	s.successes++
	if s.successes >= recoverThreshold {
		s.degraded = false
		s.successes = 0
		SetDegraded(string(v), false)
		h.logger.Info("venue-recovered", zap.String("venue", string(v)))
	}
}

// RecordFailure notes a failed call against the venue. Validation and schema
// errors do not count toward degradation; they say nothing about reachability.
func (h *Health) RecordFailure(v types.Venue, err error) {
	if !types.IsRetryable(err) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.state(v)
	s.successes = 0
	s.failures++
	if !s.degraded && s.failures >= degradeThreshold {
		s.degraded = true
		SetDegraded(string(v), true)
		h.logger.Warn("venue-degraded",
			zap.String("venue", string(v)),
			zap.Int("consecutive_failures", s.failures),
			zap.Error(err))
	}
}

// Degraded reports whether the venue is currently marked unhealthy.
func (h *Health) Degraded(v types.Venue) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state(v).degraded
}

// LastOK returns the time of the venue's most recent successful call.
func (h *Health) LastOK(v types.Venue) time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state(v).lastOK
}

// BothDownSince returns the more recent of the two venues' last successful
// calls. If that instant is older than the caller's grace window, neither
// venue has responded within it.
func (h *Health) BothDownSince() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	a := h.state(types.VenueOpinion).lastOK
	b := h.state(types.VenuePolymarket).lastOK
	if a.After(b) {
		return a
	}
	return b
}

func (h *Health) state(v types.Venue) *venueState {
	s, ok := h.venues[v]
	if !ok {
		s = &venueState{lastOK: time.Now()}
		h.venues[v] = s
	}
	return s
}
