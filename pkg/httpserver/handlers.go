package httpserver

import (
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/crossvenue/crossarb/internal/scanner"
	"github.com/crossvenue/crossarb/internal/strategy"
	"github.com/crossvenue/crossarb/pkg/types"
)

// Engine is the read side of the running engine the API serves from.
type Engine interface {
	Opportunities() []scanner.Opportunity
	Positions() []*strategy.Position
	Pairs() []types.MarketPair
	Tickets() []strategy.LiquidityTicket
	Residuals() []strategy.Residual
}

// EngineHandler serves engine state as JSON.
type EngineHandler struct {
	engine Engine
	logger *zap.Logger
}

// NewEngineHandler creates the API handler set.
func NewEngineHandler(engine Engine, logger *zap.Logger) *EngineHandler {
	return &EngineHandler{engine: engine, logger: logger}
}

// PairView is the API shape of one bound market pair.
type PairView struct {
	ID                   string    `json:"id"`
	Question             string    `json:"question"`
	OpinionMarketID      string    `json:"opinion_market_id"`
	PolymarketMarketID   string    `json:"polymarket_market_id"`
	OpinionResolution    time.Time `json:"opinion_resolution"`
	PolymarketResolution time.Time `json:"polymarket_resolution"`
	Similarity           float64   `json:"similarity"`
	BoundAt              time.Time `json:"bound_at"`
}

// ResidualView is the API shape of one unhedged residual.
type ResidualView struct {
	OpportunityID string    `json:"opportunity_id"`
	PairID        string    `json:"pair_id"`
	Remaining     float64   `json:"remaining"`
	Reason        string    `json:"reason"`
	At            time.Time `json:"at"`
}

// HandleOpportunities handles GET /api/opportunities.
func (h *EngineHandler) HandleOpportunities(w http.ResponseWriter, r *http.Request) {
	opps := h.engine.Opportunities()
	if opps == nil {
		opps = []scanner.Opportunity{}
	}
	h.writeJSON(w, opps)
}

// HandlePositions handles GET /api/positions.
func (h *EngineHandler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	positions := h.engine.Positions()
	if positions == nil {
		positions = []*strategy.Position{}
	}
	h.writeJSON(w, positions)
}

// HandleTickets handles GET /api/tickets.
func (h *EngineHandler) HandleTickets(w http.ResponseWriter, r *http.Request) {
	tickets := h.engine.Tickets()
	if tickets == nil {
		tickets = []strategy.LiquidityTicket{}
	}
	h.writeJSON(w, tickets)
}

// HandlePairs handles GET /api/pairs.
func (h *EngineHandler) HandlePairs(w http.ResponseWriter, r *http.Request) {
	pairs := h.engine.Pairs()
	views := make([]PairView, 0, len(pairs))
	for _, p := range pairs {
		views = append(views, PairView{
			ID:                   p.ID,
			Question:             p.Question,
			OpinionMarketID:      p.Opinion.MarketID,
			PolymarketMarketID:   p.Polymarket.MarketID,
			OpinionResolution:    p.Opinion.ResolutionDate,
			PolymarketResolution: p.Polymarket.ResolutionDate,
			Similarity:           p.Similarity,
			BoundAt:              p.BoundAt,
		})
	}
	h.writeJSON(w, views)
}

// HandleResiduals handles GET /api/residuals.
func (h *EngineHandler) HandleResiduals(w http.ResponseWriter, r *http.Request) {
	residuals := h.engine.Residuals()
	views := make([]ResidualView, 0, len(residuals))
	for _, res := range residuals {
		v := ResidualView{
			Remaining: res.Remaining,
			Reason:    res.Reason,
			At:        res.At,
		}
		if res.Position != nil {
			v.OpportunityID = res.Position.OpportunityID
			v.PairID = res.Position.PairID
		}
		views = append(views, v)
	}
	h.writeJSON(w, views)
}

func (h *EngineHandler) writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}
