package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var opportunitiesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "crossarb",
	Subsystem: "scanner",
	Name:      "opportunities_total",
	Help:      "Opportunities evaluated, by classification.",
}, []string{"class"})
