package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	procCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "procurement",
		Subsystem: "cache",
		Name:      "requests_total",
		Help:      "Total number of procurement view-cache lookups broken down by cache and hit/miss.",
	}, []string{"cache", "result"})

	procCacheInvalidate = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "procurement",
		Subsystem: "cache",
		Name:      "invalidate_total",
		Help:      "Total number of procurement view-cache invalidations broken down by reason.",
	}, []string{"reason"})

	procWriteConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "procurement",
		Subsystem: "write",
		Name:      "conflicts_total",
		Help:      "Total number of procurement write conflicts broken down by kind.",
	}, []string{"kind"})

	procChangeOrderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "procurement",
		Subsystem: "change_orders",
		Name:      "transitions_total",
		Help:      "Total number of change-order state transitions broken down by target state.",
	}, []string{"to"})
)

func recordCacheRequest(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	procCacheRequests.WithLabelValues(cache, result).Inc()
}

func recordCacheInvalidate(reason string) {
	if reason == "" {
		reason = "manual"
	}
	procCacheInvalidate.WithLabelValues(reason).Inc()
}

func recordWriteConflict(kind string) {
	if kind == "" {
		kind = "other"
	}
	procWriteConflicts.WithLabelValues(kind).Inc()
}

func recordTransition(to string) {
	procChangeOrderTransitions.WithLabelValues(to).Inc()
}
