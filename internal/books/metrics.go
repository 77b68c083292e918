package books

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crossarb",
		Subsystem: "books",
		Name:      "frames_total",
		Help:      "Scan frames assembled.",
	})

	frameSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "crossarb",
		Subsystem: "books",
		Name:      "frame_size",
		Help:      "Books in the most recent scan frame.",
	})

	staleDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crossarb",
		Subsystem: "books",
		Name:      "stale_books_dropped_total",
		Help:      "Books excluded from frames for exceeding the age limit.",
	})
)
