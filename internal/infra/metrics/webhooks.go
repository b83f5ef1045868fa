package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhooksTotal,
		webhookDuration,
		webhookSignatureFailures,
	)
}

var (
	// result: processed|ignored|noop|bad_request|unauthorized|not_found|error
	webhooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_total",
			Help: "Provider webhook deliveries by provider and bounded result.",
		},
		[]string{"provider", "result"},
	)

	webhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_duration_seconds",
			Help:    "Duration of webhook handling in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"provider"},
	)

	webhookSignatureFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_signature_failures_total",
			Help: "Rejected webhook signatures by provider.",
		},
		[]string{"provider"},
	)
)

func IncWebhook(provider, result string, seconds float64) {
	webhooksTotal.WithLabelValues(norm(provider), result).Inc()
	webhookDuration.WithLabelValues(norm(provider)).Observe(seconds)
}

func IncSignatureFailure(provider string) {
	webhookSignatureFailures.WithLabelValues(norm(provider)).Inc()
}
