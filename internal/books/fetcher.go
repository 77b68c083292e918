// Package books assembles per-scan order book frames. Each frame is fetched
// fresh from both venues under per-venue rate limits, so every opportunity in
// one scan is judged against books from the same instant.
package books

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/crossvenue/crossarb/internal/venue"
	"github.com/crossvenue/crossarb/pkg/types"
)

// Config holds the fetch limits.
type Config struct {
	BatchSize     int
	OpinionRPS    float64
	PolymarketRPS float64
	MaxBookAge    time.Duration
	Logger        *zap.Logger
}

// Fetcher turns a pair list into scan frames.
type Fetcher struct {
	opinion     venue.Client
	polymarket  venue.Client
	opLimiter   *rate.Limiter
	pmLimiter   *rate.Limiter
	batchSize   int
	opBatchSize int
	maxBookAge  time.Duration
	logger      *zap.Logger
}

// New builds a fetcher with one token bucket per venue. Opinion spends one
// bucket token per book, so its chunk size is capped at the bucket burst:
// WaitN fails outright whenever n exceeds the burst.
func New(opinion, polymarket venue.Client, cfg Config) *Fetcher {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 20
	}
	opBurst := int(cfg.OpinionRPS)
	if opBurst < 1 {
		opBurst = 1
	}
	pmBurst := int(cfg.PolymarketRPS)
	if pmBurst < 1 {
		pmBurst = 1
	}
	opBatch := batch
	if opBatch > opBurst {
		opBatch = opBurst
	}
	return &Fetcher{
		opinion:     opinion,
		polymarket:  polymarket,
		opLimiter:   rate.NewLimiter(rate.Limit(cfg.OpinionRPS), opBurst),
		pmLimiter:   rate.NewLimiter(rate.Limit(cfg.PolymarketRPS), pmBurst),
		batchSize:   batch,
		opBatchSize: opBatch,
		maxBookAge:  cfg.MaxBookAge,
		logger:      cfg.Logger,
	}
}

// FetchFrame fetches every token book the pairs reference and assembles them
// into one frame. Fetch failures on individual tokens leave holes in the
// frame rather than failing it; the scanner skips pairs with missing books.
func (f *Fetcher) FetchFrame(ctx context.Context, pairs []types.MarketPair) (*types.ScanFrame, error) {
	opTokens, pmTokens := collectTokenIDs(pairs)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		books   = make(map[string]*types.BookSnapshot, len(opTokens)+len(pmTokens))
		opErr   error
		pmErr   error
	)
	merge := func(got map[string]*types.BookSnapshot) {
		mu.Lock()
		defer mu.Unlock()
		for id, snap := range got {
			books[id] = snap
		}
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		got, err := f.fetchOpinion(ctx, opTokens)
		merge(got)
		opErr = err
	}()
	go func() {
		defer wg.Done()
		got, err := f.fetchPolymarket(ctx, pmTokens)
		merge(got)
		pmErr = err
	}()
	wg.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if opErr != nil {
		f.logger.Warn("opinion-books-partial", zap.Error(opErr))
	}
	if pmErr != nil {
		f.logger.Warn("polymarket-books-partial", zap.Error(pmErr))
	}

	frame := &types.ScanFrame{
		At:    time.Now(),
		Books: make(map[string]*types.BookSnapshot, len(books)),
	}
	dropped := 0
	for id, snap := range books {
		if f.maxBookAge > 0 && snap.Age(frame.At) > f.maxBookAge {
			dropped++
			continue
		}
		frame.Books[id] = snap
	}
	if dropped > 0 {
		staleDropped.Add(float64(dropped))
		f.logger.Warn("stale-books-dropped",
			zap.Int("dropped", dropped),
			zap.Duration("max_age", f.maxBookAge))
	}
	frameSize.Set(float64(len(frame.Books)))
	framesTotal.Inc()
	return frame, nil
}

// fetchOpinion has no bulk endpoint behind it, so a batch of n tokens costs n
// requests from the bucket.
func (f *Fetcher) fetchOpinion(ctx context.Context, tokenIDs []string) (map[string]*types.BookSnapshot, error) {
	books := make(map[string]*types.BookSnapshot, len(tokenIDs))
	var firstErr error
	for _, chunk := range chunks(tokenIDs, f.opBatchSize) {
		if err := f.opLimiter.WaitN(ctx, len(chunk)); err != nil {
			return books, err
		}
		got, err := f.opinion.GetBooksBatch(ctx, chunk)
		for id, snap := range got {
			books[id] = snap
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return books, firstErr
}

// fetchPolymarket's bulk endpoint serves a whole batch with one request.
func (f *Fetcher) fetchPolymarket(ctx context.Context, tokenIDs []string) (map[string]*types.BookSnapshot, error) {
	books := make(map[string]*types.BookSnapshot, len(tokenIDs))
	var firstErr error
	for _, chunk := range chunks(tokenIDs, f.batchSize) {
		if err := f.pmLimiter.Wait(ctx); err != nil {
			return books, err
		}
		got, err := f.polymarket.GetBooksBatch(ctx, chunk)
		for id, snap := range got {
			books[id] = snap
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return books, firstErr
}

func collectTokenIDs(pairs []types.MarketPair) (opinion, polymarket []string) {
	seen := make(map[string]bool, len(pairs)*4)
	for _, p := range pairs {
		for _, tok := range p.Tokens() {
			if seen[tok.TokenID] {
				continue
			}
			seen[tok.TokenID] = true
			switch tok.Venue {
			case types.VenueOpinion:
				opinion = append(opinion, tok.TokenID)
			case types.VenuePolymarket:
				polymarket = append(polymarket, tok.TokenID)
			}
		}
	}
	return opinion, polymarket
}

func chunks(ids []string, size int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	out := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
