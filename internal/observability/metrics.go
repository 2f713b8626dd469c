// Package observability holds the Prometheus collectors of the ledger.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LedgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fjord_ledger",
			Name:      "operations_total",
			Help:      "Ledger operations by kind and outcome",
		},
		[]string{"operation", "result"},
	)

	BatchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fjord_batch",
			Name:      "runs_total",
			Help:      "Batch job runs by outcome (ok, partial, skipped, failed)",
		},
		[]string{"job", "outcome"},
	)

	BatchEntities = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fjord_batch",
			Name:      "entities_total",
			Help:      "Entities handled by batch jobs by result (processed, skipped, failed)",
		},
		[]string{"job", "result"},
	)

	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fjord_batch",
			Name:      "run_duration_seconds",
			Help:      "Wall time of one batch job run",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	EventsPublishFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fjord_ledger",
			Name:      "event_publish_failed_total",
			Help:      "Committed transaction records that could not be published",
		},
	)
)

// ObserveOperation counts a ledger operation outcome
func ObserveOperation(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	LedgerOperations.WithLabelValues(operation, result).Inc()
}
