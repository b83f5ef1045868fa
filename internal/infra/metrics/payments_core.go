package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		providerCallsTotal,
		providerCallDuration,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment state changes by method and status (pending/processing/completed/failed).",
		},
		[]string{"method", "status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of completed payments, labeled by currency.",
		},
		[]string{"currency"},
	)

	// op: initiate|verify, result: ok|fail|timeout
	providerCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_calls_total",
			Help: "Outbound provider API calls by method, operation and result.",
		},
		[]string{"method", "op", "result"},
	)

	providerCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_call_duration_seconds",
			Help:    "Latency of outbound provider API calls.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "op"},
	)
)

func IncPayment(method, status string) {
	paymentsTotal.WithLabelValues(norm(method), norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amount decimal.Decimal) {
	f, _ := amount.Float64()
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(f)
}

func ObserveProviderCall(method, op, result string, d time.Duration) {
	providerCallsTotal.WithLabelValues(norm(method), op, result).Inc()
	providerCallDuration.WithLabelValues(norm(method), op).Observe(d.Seconds())
}
