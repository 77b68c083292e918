package strategy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	legsFilled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crossarb",
		Subsystem: "strategy",
		Name:      "legs_filled_total",
		Help:      "Order legs booked with a non-zero fill, by venue.",
	}, []string{"venue"})

	immediateCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crossarb",
		Subsystem: "strategy",
		Name:      "immediate_completed_total",
		Help:      "Immediate executions that fully hedged.",
	})

	immediateAborts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crossarb",
		Subsystem: "strategy",
		Name:      "immediate_aborts_total",
		Help:      "Immediate executions abandoned before the hedge, by reason.",
	}, []string{"reason"})

	liquidityTickets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "crossarb",
		Subsystem: "strategy",
		Name:      "liquidity_tickets",
		Help:      "Live liquidity tickets with a resting or unwinding order.",
	})

	liquidityFills = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crossarb",
		Subsystem: "strategy",
		Name:      "liquidity_fills_total",
		Help:      "Frames in which a resting order reported new fills.",
	})

	liquidityReprices = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crossarb",
		Subsystem: "strategy",
		Name:      "liquidity_reprices_total",
		Help:      "Resting orders canceled and re-submitted after being outbid.",
	})

	liquidityCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crossarb",
		Subsystem: "strategy",
		Name:      "liquidity_completed_total",
		Help:      "Liquidity tickets that filled and hedged to completion.",
	})

	deficitsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crossarb",
		Subsystem: "strategy",
		Name:      "deficits_total",
		Help:      "Hedge shortfalls handed to the reconciler.",
	})

	reconcileAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crossarb",
		Subsystem: "strategy",
		Name:      "reconcile_attempts_total",
		Help:      "Reconciliation hedge orders placed.",
	})

	unhedgedResidual = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "crossarb",
		Subsystem: "strategy",
		Name:      "unhedged_residual_shares",
		Help:      "Exposure the reconciler gave up on, awaiting operator action.",
	})
)
