package matcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pairsBound = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "crossarb",
		Subsystem: "matcher",
		Name:      "pairs_bound",
		Help:      "Number of cross-venue market pairs currently bound.",
	})

	refreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "crossarb",
		Subsystem: "matcher",
		Name:      "refresh_duration_seconds",
		Help:      "Time spent rebuilding the pair registry.",
		Buckets:   prometheus.DefBuckets,
	})

	refreshErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crossarb",
		Subsystem: "matcher",
		Name:      "refresh_errors_total",
		Help:      "Pair registry refreshes aborted by a venue listing failure.",
	})
)
