package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crossarb",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Cache lookups that found an entry.",
	})

	missesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crossarb",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Cache lookups that found nothing.",
	})

	setsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crossarb",
		Subsystem: "cache",
		Name:      "sets_total",
		Help:      "Entries written to the cache.",
	})

	deletesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crossarb",
		Subsystem: "cache",
		Name:      "deletes_total",
		Help:      "Entries explicitly deleted from the cache.",
	})
)
