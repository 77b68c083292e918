// Package healthprobe provides the liveness and readiness handlers. Liveness
// only proves the process is up; readiness additionally reflects whether the
// engine has bound pairs and can reach its venues.
package healthprobe

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

// HealthChecker provides health and readiness checks.
type HealthChecker struct {
	startTime time.Time
	ready     atomic.Bool

	mu     sync.RWMutex
	venues map[string]string // venue -> "ok" | "degraded"
}

// New creates a new HealthChecker.
func New() *HealthChecker {
	return &HealthChecker{
		startTime: time.Now(),
		venues:    make(map[string]string),
	}
}

// SetReady marks the engine as ready to serve traffic.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// SetVenueStatus records a venue's current health for the readiness report.
func (h *HealthChecker) SetVenueStatus(venue string, degraded bool) {
	status := "ok"
	if degraded {
		status = "degraded"
	}
	h.mu.Lock()
	h.venues[venue] = status
	h.mu.Unlock()
}

func (h *HealthChecker) venueStatuses() map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]string, len(h.venues))
	for k, v := range h.venues {
		out[k] = v
	}
	return out
}

// HealthResponse is the body of both probe endpoints.
type HealthResponse struct {
	Status  string            `json:"status"`
	Uptime  string            `json:"uptime"`
	Venues  map[string]string `json:"venues,omitempty"`
	Message string            `json:"message,omitempty"`
}

// Health returns an HTTP handler for liveness checks. Always 200 while the
// process runs.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status: "healthy",
			Uptime: time.Since(h.startTime).String(),
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// Ready returns an HTTP handler for readiness checks. 200 once the engine is
// initialized, 503 before that. Venue degradation is reported but does not
// flip readiness: a single healthy venue still serves reads.
func (h *HealthChecker) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.ready.Load() {
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status:  "not_ready",
				Message: "engine is starting",
			})
			return
		}

		writeJSON(w, http.StatusOK, HealthResponse{
			Status: "ready",
			Uptime: time.Since(h.startTime).String(),
			Venues: h.venueStatuses(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
