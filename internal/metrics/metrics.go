// Package metrics holds the prometheus collectors of the booking engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transactionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_transactions_created_total",
			Help: "Booking attempts by outcome",
		},
		[]string{"status"},
	)

	transactionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_transaction_transitions_total",
			Help: "Committed transaction status transitions by target status",
		},
		[]string{"to"},
	)

	sweeperItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_sweeper_items_total",
			Help: "Items processed by the expiration sweeper",
		},
		[]string{"kind", "result"},
	)

	txRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_tx_retries_total",
			Help: "Units of work retried after a serialization failure or deadlock",
		},
	)

	sweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticketing_sweep_duration_seconds",
			Help:    "Duration of one sweeper pass",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"kind"},
	)
)

func TransactionCreated(status string) {
	transactionsCreated.WithLabelValues(status).Inc()
}

func TransactionTransitioned(to string) {
	transactionTransitions.WithLabelValues(to).Inc()
}

// SweeperItem records one swept item. result is "ok", "skipped" or "failed".
func SweeperItem(kind, result string) {
	sweeperItems.WithLabelValues(kind, result).Inc()
}

func SweepObserved(kind string, seconds float64) {
	sweepDuration.WithLabelValues(kind).Observe(seconds)
}

func TxRetried() {
	txRetries.Inc()
}
