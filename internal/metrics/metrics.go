// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	orderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Order status transitions by source, target and result",
		},
		[]string{"from", "to", "result"},
	)

	paymentReconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_reconciliations_total",
			Help: "Gateway callbacks by reconciliation outcome",
		},
		[]string{"outcome"},
	)

	stockAdjustments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_adjustments_total",
			Help: "Stock unit adjustments by direction and result",
		},
		[]string{"direction", "result"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "Duration of HTTP requests in ms",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600},
		},
		[]string{"method", "path"},
	)
)

func Transition(from, to, result string) {
	orderTransitions.WithLabelValues(from, to, result).Inc()
}

// Reconciled outcomes: success, failed, invalid_signature, amount_mismatch, duplicate, refund_required.
func Reconciled(outcome string) {
	paymentReconciliations.WithLabelValues(outcome).Inc()
}

func StockAdjusted(delta int, ok bool) {
	dir := "in"
	if delta < 0 {
		dir = "out"
	}
	res := "ok"
	if !ok {
		res = "rejected"
	}
	stockAdjustments.WithLabelValues(dir, res).Inc()
}
