// Package supervisor runs the scan loop and owns the lifecycle of every
// engine component: pair refresh, frame fetch, scan, strategy dispatch, and
// the shutdown drain. One supervisor per process.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crossvenue/crossarb/internal/books"
	"github.com/crossvenue/crossarb/internal/matcher"
	"github.com/crossvenue/crossarb/internal/scanner"
	"github.com/crossvenue/crossarb/internal/storage"
	"github.com/crossvenue/crossarb/internal/strategy"
	"github.com/crossvenue/crossarb/internal/venue"
	"github.com/crossvenue/crossarb/pkg/cache"
	"github.com/crossvenue/crossarb/pkg/healthprobe"
	"github.com/crossvenue/crossarb/pkg/types"
	"github.com/crossvenue/crossarb/pkg/wsbridge"
)

// ErrVenuesUnavailable means neither venue has answered a call for longer
// than the configured outage limit. The process should exit distinctly.
var ErrVenuesUnavailable = errors.New("both venues unavailable")

const balanceCacheTTL = 10 * time.Second

// Config holds the supervisor's own knobs; component knobs live with the
// components.
type Config struct {
	ScanInterval           time.Duration
	MaxConcurrentImmediate int
	DryRun                 bool
	VenueOutageLimit       time.Duration
	Logger                 *zap.Logger
}

// Components are the engine parts the supervisor orchestrates. Hub and Cache
// are optional; everything else is required.
type Components struct {
	Clients    map[types.Venue]venue.Client
	Matcher    *matcher.Matcher
	Fetcher    *books.Fetcher
	Scanner    *scanner.Scanner
	Immediate  *strategy.Immediate
	Maker      *strategy.Maker
	Reconciler *strategy.Reconciler
	Deficits   chan strategy.DeficitEvent
	Store      storage.Storage
	Health     *venue.Health
	Probe      *healthprobe.HealthChecker
	Hub        *wsbridge.Hub
	Cache      cache.Cache
}

// Supervisor drives the scan loop.
type Supervisor struct {
	cfg    Config
	c      Components
	logger *zap.Logger
	now    func() time.Time

	sem    chan struct{}
	wg     sync.WaitGroup
	rcDone chan struct{}

	mu        sync.RWMutex
	lastOpps  []scanner.Opportunity
	positions []*strategy.Position
	inFlight  map[string]struct{}
}

// New builds a supervisor.
func New(cfg Config, c Components) *Supervisor {
	slots := cfg.MaxConcurrentImmediate
	if slots < 1 {
		slots = 1
	}
	return &Supervisor{
		cfg:      cfg,
		c:        c,
		logger:   cfg.Logger,
		now:      time.Now,
		sem:      make(chan struct{}, slots),
		rcDone:   make(chan struct{}),
		inFlight: make(map[string]struct{}),
	}
}

// Run blocks until the context ends or both venues stay dark past the outage
// limit. On a normal shutdown every resting order is canceled, in-flight
// executions finish, and queued deficits get their reconciliation pass.
func (s *Supervisor) Run(ctx context.Context) error {
	go func() {
		// Decoupled from ctx: the reconciler stops when the deficit channel
		// closes, after the strategies have quiesced.
		s.c.Reconciler.Run(context.WithoutCancel(ctx), s.c.Deficits)
		close(s.rcDone)
	}()

	s.logger.Info("supervisor-started",
		zap.Duration("scan_interval", s.cfg.ScanInterval),
		zap.Bool("dry_run", s.cfg.DryRun))
	s.c.Probe.SetReady(true)

	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown(ctx)
			return nil
		case <-ticker.C:
			if err := s.step(ctx); err != nil {
				s.shutdown(ctx)
				return err
			}
		}
	}
}

func (s *Supervisor) shutdown(ctx context.Context) {
	s.logger.Info("supervisor-shutting-down")
	s.c.Probe.SetReady(false)

	s.wg.Wait() // in-flight immediate executions

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if !s.cfg.DryRun {
		s.c.Maker.CancelAll(drainCtx)
	}

	close(s.c.Deficits)
	<-s.rcDone

	for _, r := range s.c.Reconciler.Residuals() {
		s.logger.Warn("residual-at-shutdown",
			zap.String("opportunity_id", r.Position.OpportunityID),
			zap.Float64("remaining", r.Remaining),
			zap.String("reason", r.Reason))
	}
	s.logger.Info("supervisor-stopped")
}

// step runs one scan cycle.
func (s *Supervisor) step(ctx context.Context) error {
	if down := s.c.Health.BothDownSince(); s.now().Sub(down) > s.cfg.VenueOutageLimit {
		return fmt.Errorf("%w since %s", ErrVenuesUnavailable, down.Format(time.RFC3339))
	}
	s.c.Probe.SetVenueStatus(string(types.VenueOpinion), s.c.Health.Degraded(types.VenueOpinion))
	s.c.Probe.SetVenueStatus(string(types.VenuePolymarket), s.c.Health.Degraded(types.VenuePolymarket))

	start := s.now()
	if err := s.c.Matcher.Refresh(ctx); err != nil {
		s.logger.Warn("pair-refresh-failed", zap.Error(err))
	}
	pairs := s.c.Matcher.Snapshot()
	if len(pairs) == 0 {
		return nil
	}

	frame, err := s.c.Fetcher.FetchFrame(ctx, pairs)
	if err != nil {
		s.logger.Warn("frame-fetch-failed", zap.Error(err))
		return nil
	}

	opps := s.c.Scanner.Scan(pairs, frame)
	s.publish(ctx, opps)

	if s.cfg.DryRun {
		for _, opp := range scanner.RankImmediate(opps) {
			s.logger.Info("dry-run-would-execute",
				zap.String("opportunity_id", opp.ID),
				zap.String("pair_id", opp.PairID),
				zap.String("combination", string(opp.Combination)),
				zap.Float64("effective_edge", opp.EffectiveEdge),
				zap.Float64("size_cap", opp.SizeCap))
		}
		scanDuration.Observe(s.now().Sub(start).Seconds())
		return nil
	}

	s.c.Maker.Evaluate(ctx, opps, frame)
	s.dispatchImmediate(ctx, scanner.RankImmediate(opps))
	scanDuration.Observe(s.now().Sub(start).Seconds())
	return nil
}

// publish makes the scan results visible: storage, stream, cache, and the
// in-memory snapshot the HTTP layer reads.
func (s *Supervisor) publish(ctx context.Context, opps []scanner.Opportunity) {
	s.mu.Lock()
	s.lastOpps = opps
	s.mu.Unlock()

	for i := range opps {
		if err := s.c.Store.StoreOpportunity(ctx, &opps[i]); err != nil {
			s.logger.Error("opportunity-store-failed",
				zap.String("opportunity_id", opps[i].ID),
				zap.Error(err))
		}
	}
	if s.c.Hub != nil && len(opps) > 0 {
		s.c.Hub.Broadcast("opportunities", opps)
	}
	if s.c.Cache != nil {
		s.c.Cache.Set("opportunities:latest", opps, 2*s.cfg.ScanInterval)
	}
}

// dispatchImmediate hands ranked immediate opportunities to execution slots.
// One execution per (pair, combination) at a time; a venue that reports
// insufficient balance is skipped for the rest of the scan.
func (s *Supervisor) dispatchImmediate(ctx context.Context, opps []scanner.Opportunity) {
	paused := make(map[types.Venue]bool)

	for _, opp := range opps {
		if paused[types.VenueOpinion] || paused[types.VenuePolymarket] {
			return // every opportunity touches both venues
		}

		key := opp.PairID + "/" + string(opp.Combination)
		s.mu.Lock()
		_, busy := s.inFlight[key]
		s.mu.Unlock()
		if busy {
			continue
		}

		select {
		case s.sem <- struct{}{}:
		default:
			return // all slots busy
		}

		if v, ok := s.underfunded(ctx, opp); ok {
			<-s.sem
			paused[v] = true
			balanceSkips.WithLabelValues(string(v)).Inc()
			s.logger.Warn("venue-balance-insufficient",
				zap.String("venue", string(v)),
				zap.String("opportunity_id", opp.ID))
			continue
		}

		s.mu.Lock()
		s.inFlight[key] = struct{}{}
		s.mu.Unlock()
		s.wg.Add(1)
		go s.runImmediate(ctx, key, opp)
	}
}

func (s *Supervisor) runImmediate(ctx context.Context, key string, opp scanner.Opportunity) {
	defer func() {
		<-s.sem
		s.mu.Lock()
		delete(s.inFlight, key)
		s.mu.Unlock()
		s.wg.Done()
	}()

	pos, err := s.c.Immediate.Execute(ctx, opp)
	if err != nil {
		s.logger.Error("immediate-execution-failed",
			zap.String("opportunity_id", opp.ID),
			zap.Error(err))
	}
	if pos == nil || pos.First.FilledQty <= 0 {
		return
	}

	// Publish a snapshot: the live struct stays with any deficit event, where
	// the reconciler keeps writing hedge fills into it.
	snap := *pos
	s.mu.Lock()
	s.positions = append(s.positions, &snap)
	s.mu.Unlock()
	positionsOpened.Inc()

	if s.c.Hub != nil {
		s.c.Hub.Broadcast("position", &snap)
	}
	if s.c.Cache != nil {
		// Balances moved; next dispatch re-reads them.
		s.c.Cache.Delete(balanceKey(types.VenueOpinion))
		s.c.Cache.Delete(balanceKey(types.VenuePolymarket))
	}
}

// underfunded reports which venue, if either, cannot cover its leg of the
// opportunity at full size.
func (s *Supervisor) underfunded(ctx context.Context, opp scanner.Opportunity) (types.Venue, bool) {
	for _, leg := range []scanner.Leg{opp.OpinionLeg, opp.PolymarketLeg} {
		needed := leg.Price * opp.SizeCap
		available, known := s.availableBalance(ctx, leg.Token.Venue)
		if known && available < needed {
			return leg.Token.Venue, true
		}
	}
	return "", false
}

func balanceKey(v types.Venue) string {
	return "balance:" + string(v)
}

// availableBalance returns the venue's spendable collateral, cached briefly.
// An unknown balance (fetch error) does not block dispatch; the venue's own
// rejection is the backstop.
func (s *Supervisor) availableBalance(ctx context.Context, v types.Venue) (float64, bool) {
	if s.c.Cache != nil {
		if cached, ok := s.c.Cache.Get(balanceKey(v)); ok {
			if b, ok := cached.(float64); ok {
				return b, true
			}
		}
	}

	bals, err := s.c.Clients[v].GetBalances(ctx)
	if err != nil {
		s.logger.Warn("balance-fetch-failed", zap.String("venue", string(v)), zap.Error(err))
		return 0, false
	}
	// Venues report collateral under different symbols (USDC, USDT).
	var available float64
	for _, b := range bals {
		available += b.Available
	}
	if s.c.Cache != nil {
		s.c.Cache.Set(balanceKey(v), available, balanceCacheTTL)
	}
	return available, true
}

// Opportunities returns the latest scan's output.
func (s *Supervisor) Opportunities() []scanner.Opportunity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]scanner.Opportunity, len(s.lastOpps))
	copy(out, s.lastOpps)
	return out
}

// Positions returns every position opened this run.
func (s *Supervisor) Positions() []*strategy.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*strategy.Position, len(s.positions))
	copy(out, s.positions)
	return out
}

// Residuals returns exposure the reconciler gave up on.
func (s *Supervisor) Residuals() []strategy.Residual {
	return s.c.Reconciler.Residuals()
}

// Pairs returns the currently bound pairs.
func (s *Supervisor) Pairs() []types.MarketPair {
	return s.c.Matcher.Snapshot()
}

// Tickets returns the maker's live liquidity tickets.
func (s *Supervisor) Tickets() []strategy.LiquidityTicket {
	return s.c.Maker.Tickets()
}
