// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stockflow"

var (
	// StockOperations 按操作(check/reserve/rollback)和结果统计库存调用
	StockOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "inventory",
		Name:      "operations_total",
		Help:      "Inventory operations partitioned by operation and result.",
	}, []string{"operation", "result"})

	LockWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "lock",
		Name:      "wait_seconds",
		Help:      "Time spent waiting for a distributed lock.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"backend", "result"})

	StoreWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "inventory",
		Name:      "store_write_failures_total",
		Help:      "Asynchronous stock writes to the durable store that failed.",
	})

	ReconcileDiscrepancies = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "inventory",
		Name:      "reconcile_discrepancies_total",
		Help:      "Cache entries overwritten by reconciliation, by field.",
	}, []string{"field"})

	OrderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "order",
		Name:      "transitions_total",
		Help:      "Order status transitions by target status.",
	}, []string{"status"})

	PaymentOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payment",
		Name:      "outcomes_total",
		Help:      "Payment outcomes by final status.",
	}, []string{"status"})

	MessagesConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mq",
		Name:      "messages_consumed_total",
		Help:      "Consumed messages by topic and result.",
	}, []string{"topic", "result"})
)

// Result 把 error 映射成指标标签
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
