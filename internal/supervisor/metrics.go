package supervisor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "crossarb",
		Subsystem: "supervisor",
		Name:      "scan_duration_seconds",
		Help:      "Wall time of one refresh-fetch-scan-dispatch cycle.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	positionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crossarb",
		Subsystem: "supervisor",
		Name:      "positions_opened_total",
		Help:      "Positions opened by dispatched immediate executions.",
	})

	balanceSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crossarb",
		Subsystem: "supervisor",
		Name:      "balance_skips_total",
		Help:      "Dispatches skipped because a venue could not cover its leg.",
	}, []string{"venue"})
)
