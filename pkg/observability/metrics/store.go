package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Store operation outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeNotFound    = "not_found"
	OutcomeClientError = "client_error"
	OutcomeThrottled   = "throttled"
	OutcomeInvalid     = "invalid"
	OutcomeError       = "error"
)

var (
	// storeOperationsTotal counts calls made against the item table.
	// Labels: operation, outcome
	storeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "item_store_operations_total",
			Help: "Total number of item store operations",
		},
		[]string{"operation", "outcome"},
	)

	// storeOperationDuration tracks item table call latency in seconds.
	// Labels: operation
	storeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "item_store_operation_duration_seconds",
			Help:    "Item store operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)
)

// RecordStoreOperation records the outcome and latency of one store call.
func RecordStoreOperation(operation, outcome string, duration time.Duration) {
	storeOperationsTotal.WithLabelValues(operation, outcome).Inc()
	storeOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
