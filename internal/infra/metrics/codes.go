package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		codeValidationsTotal,
		codesGeneratedTotal,
		codesByStatus,
		codesExpiredTotal,
		notificationsPublishedTotal,
	)
}

var (
	// result: success|invalid_or_expired|wrong_store|already_used|rate_limited
	codeValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codes_validations_total",
			Help: "Verification code validation attempts by result.",
		},
		[]string{"result"},
	)

	codesGeneratedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codes_generated_total",
			Help: "Verification codes generated by type.",
		},
		[]string{"type"},
	)

	codesByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "codes_status",
			Help: "Current number of verification codes by type and status.",
		},
		[]string{"type", "status"},
	)

	codesExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "codes_expired_total",
			Help: "Codes flipped to expired by the cleanup job.",
		},
	)

	// result: ok|error
	notificationsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Outbox notifications published downstream by result.",
		},
		[]string{"result"},
	)
)

func IncCodeValidation(result string) { codeValidationsTotal.WithLabelValues(result).Inc() }

func AddCodesGenerated(codeType string, n int) {
	codesGeneratedTotal.WithLabelValues(norm(codeType)).Add(float64(n))
}

func SetCodeStatus(codeType, status string, n int) {
	codesByStatus.WithLabelValues(norm(codeType), norm(status)).Set(float64(n))
}

func AddCodesExpired(n int) { codesExpiredTotal.Add(float64(n)) }

func IncNotificationPublished(err error) {
	if err != nil {
		notificationsPublishedTotal.WithLabelValues("error").Inc()
		return
	}
	notificationsPublishedTotal.WithLabelValues("ok").Inc()
}
