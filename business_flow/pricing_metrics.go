package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recalculations partitioned by the operation that triggered them
	pricingRecalculationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_recalculations_total",
			Help: "Total number of price recalculations",
		},
		[]string{"operation"},
	)

	// Recalculations whose raw price fell outside the band
	pricingClampsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_clamps_total",
			Help: "Total number of recalculations clamped to the price band",
		},
		[]string{"bound"},
	)

	pricingOperationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_operation_failures_total",
			Help: "Total number of failed pricing operations partitioned by error kind",
		},
		[]string{"operation", "kind"},
	)

	pricingHistoryPrunedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricing_history_pruned_total",
			Help: "Total number of price history entries removed by the retention policy",
		},
	)
)

func recordFailure(operation string, err error) {
	kind := "internal"
	switch {
	case IsNotFound(err):
		kind = "not_found"
	case IsValidation(err):
		kind = "validation"
	case IsConflict(err):
		kind = "conflict"
	case IsPersistence(err):
		kind = "persistence"
	}
	pricingOperationFailuresTotal.WithLabelValues(operation, kind).Inc()
}
