package kos

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Graph consistency metrics
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kos_operations_total",
		Help: "KOS service operations by outcome",
	}, []string{"operation", "outcome"})

	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kos_operation_duration_seconds",
		Help:    "KOS service operation latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	CompensationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kos_compensations_total",
		Help: "Compensating concept deletes after failed relationship creation",
	}, []string{"outcome"})

	SearchSyncFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kos_search_sync_failures_total",
		Help: "Search index updates that failed after a successful write",
	}, []string{"operation"})
)
