package venue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crossarb",
		Subsystem: "venue",
		Name:      "requests_total",
		Help:      "Venue API requests by venue, operation and outcome.",
	}, []string{"venue", "op", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "crossarb",
		Subsystem: "venue",
		Name:      "request_duration_seconds",
		Help:      "Venue API request latency.",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"venue", "op"})

	degradedGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "crossarb",
		Subsystem: "venue",
		Name:      "degraded",
		Help:      "1 while the venue is marked degraded, 0 otherwise.",
	}, []string{"venue"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crossarb",
		Subsystem: "venue",
		Name:      "errors_total",
		Help:      "Venue API errors by kind.",
	}, []string{"venue", "kind"})
)

// ObserveRequest records one venue call for the request metrics.
func ObserveRequest(venue, op string, seconds float64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	requestsTotal.WithLabelValues(venue, op, outcome).Inc()
	requestDuration.WithLabelValues(venue, op).Observe(seconds)
}

// ObserveError records a classified venue error.
func ObserveError(venue, kind string) {
	errorsTotal.WithLabelValues(venue, kind).Inc()
}

// SetDegraded flips the degraded gauge for a venue.
func SetDegraded(venue string, degraded bool) {
	v := 0.0
	if degraded {
		v = 1
	}
	degradedGauge.WithLabelValues(venue).Set(v)
}
