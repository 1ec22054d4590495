package catalogue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brickbook_operations_total",
		Help: "Catalogue operations by operation and outcome kind",
	}, []string{"op", "outcome"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "brickbook_operation_duration_seconds",
		Help:    "Duration of catalogue operations",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	}, []string{"op"})

	likeRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brickbook_like_retries_total",
		Help: "Like attempts retried after a transient store failure",
	})

	revisionsCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brickbook_revisions_committed_total",
		Help: "Revision log entries written by successful mutations",
	})

	logCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brickbook_log_cache_hits_total",
		Help: "Revision log entries served from memory",
	})
)
