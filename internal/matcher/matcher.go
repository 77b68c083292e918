// Package matcher maintains the registry of cross-venue market pairs. Pairs
// are bound by normalized-title similarity plus a resolution-date window and
// stay bound until one side disappears, so a pair's identity is stable across
// refreshes even as scores drift.
package matcher

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crossvenue/crossarb/internal/venue"
	"github.com/crossvenue/crossarb/pkg/types"
)

// Config holds the pairing thresholds and refresh cadence.
type Config struct {
	RefreshInterval    time.Duration
	TitleSimilarityMin float64
	MaxResolutionDelta time.Duration
	Logger             *zap.Logger
}

// Matcher binds Opinion markets to Polymarket markets one-to-one.
type Matcher struct {
	opinion    venue.Client
	polymarket venue.Client
	cfg        Config
	logger     *zap.Logger

	mu          sync.RWMutex
	pairs       map[string]types.MarketPair // key: pair ID
	lastRefresh time.Time
	now         func() time.Time
}

// New builds a matcher over the two venue clients.
func New(opinion, polymarket venue.Client, cfg Config) *Matcher {
	return &Matcher{
		opinion:    opinion,
		polymarket: polymarket,
		cfg:        cfg,
		logger:     cfg.Logger,
		pairs:      make(map[string]types.MarketPair),
		now:        time.Now,
	}
}

// PairID is deterministic so a re-bound pair keeps its identity across
// restarts.
func PairID(opinionMarketID, polymarketMarketID string) string {
	return fmt.Sprintf("op:%s|pm:%s", opinionMarketID, polymarketMarketID)
}

// Refresh re-fetches both market lists and rebuilds the registry. Calls
// inside the refresh interval are no-ops; the initial call always runs. A
// failed listing on either venue leaves the previous registry untouched.
func (m *Matcher) Refresh(ctx context.Context) error {
	m.mu.RLock()
	last := m.lastRefresh
	m.mu.RUnlock()
	if !last.IsZero() && m.now().Sub(last) < m.cfg.RefreshInterval {
		return nil
	}

	start := m.now()
	opMarkets, err := venue.ListAllMarkets(ctx, m.opinion)
	if err != nil {
		refreshErrors.Inc()
		return fmt.Errorf("refresh pairs: %w", err)
	}
	pmMarkets, err := venue.ListAllMarkets(ctx, m.polymarket)
	if err != nil {
		refreshErrors.Inc()
		return fmt.Errorf("refresh pairs: %w", err)
	}

	m.rebuild(opMarkets, pmMarkets, start)
	refreshDuration.Observe(m.now().Sub(start).Seconds())
	return nil
}

func (m *Matcher) rebuild(opMarkets, pmMarkets []types.MarketSummary, at time.Time) {
	opByID := make(map[string]types.MarketSummary, len(opMarkets))
	for _, mk := range opMarkets {
		if mk.Active {
			opByID[mk.MarketID] = mk
		}
	}
	pmByID := make(map[string]types.MarketSummary, len(pmMarkets))
	for _, mk := range pmMarkets {
		if mk.Active {
			pmByID[mk.MarketID] = mk
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := make(map[string]types.MarketPair, len(m.pairs))
	usedOp := make(map[string]bool)
	usedPM := make(map[string]bool)

	// Existing pairs are sticky: keep them while both markets are still
	// listed and active, refreshing the stored summaries.
	for id, pair := range m.pairs {
		op, okOp := opByID[pair.Opinion.MarketID]
		pm, okPM := pmByID[pair.Polymarket.MarketID]
		if !okOp || !okPM {
			m.logger.Info("pair-unbound",
				zap.String("pair_id", id),
				zap.Bool("opinion_listed", okOp),
				zap.Bool("polymarket_listed", okPM))
			continue
		}
		pair.Opinion = op
		pair.Polymarket = pm
		next[id] = pair
		usedOp[op.MarketID] = true
		usedPM[pm.MarketID] = true
	}

	// Bind new pairs from the unmatched remainder, highest similarity first
	// so a contested Polymarket market goes to its best counterpart.
	type candidate struct {
		op  types.MarketSummary
		pm  types.MarketSummary
		sim float64
	}
	var candidates []candidate
	for _, op := range opByID {
		if usedOp[op.MarketID] {
			continue
		}
		for _, pm := range pmByID {
			if usedPM[pm.MarketID] {
				continue
			}
			delta := op.ResolutionDate.Sub(pm.ResolutionDate)
			if delta < 0 {
				delta = -delta
			}
			if delta > m.cfg.MaxResolutionDelta {
				continue
			}
			sim := TitleSimilarity(op.Title, pm.Title)
			if sim < m.cfg.TitleSimilarityMin {
				continue
			}
			candidates = append(candidates, candidate{op: op, pm: pm, sim: sim})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].sim != candidates[j].sim {
			return candidates[i].sim > candidates[j].sim
		}
		// Equal scores: prefer the pair resolving sooner.
		return candidates[i].op.ResolutionDate.Before(candidates[j].op.ResolutionDate)
	})
	for _, c := range candidates {
		if usedOp[c.op.MarketID] || usedPM[c.pm.MarketID] {
			continue
		}
		id := PairID(c.op.MarketID, c.pm.MarketID)
		next[id] = types.MarketPair{
			ID:         id,
			Question:   c.op.Title,
			Opinion:    c.op,
			Polymarket: c.pm,
			Similarity: c.sim,
			BoundAt:    at,
		}
		usedOp[c.op.MarketID] = true
		usedPM[c.pm.MarketID] = true
		m.logger.Info("pair-bound",
			zap.String("pair_id", id),
			zap.String("question", c.op.Title),
			zap.Float64("similarity", c.sim))
	}

	m.pairs = next
	m.lastRefresh = at
	pairsBound.Set(float64(len(next)))
}

// Snapshot returns the current pairs. The slice and its contents are copies;
// callers can hold them across a refresh.
func (m *Matcher) Snapshot() []types.MarketPair {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.MarketPair, 0, len(m.pairs))
	for _, p := range m.pairs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Pair looks up one pair by ID.
func (m *Matcher) Pair(id string) (types.MarketPair, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pairs[id]
	return p, ok
}
