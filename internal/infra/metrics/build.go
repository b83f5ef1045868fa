package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(buildInfo, environmentInfo) }

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "payments_build_info",
			Help: "Constant 1, labeled with the running version and commit.",
		},
		[]string{"version", "commit"},
	)

	environmentInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "payments_environment",
			Help: "Constant 1, labeled with the provider environment (sandbox|production).",
		},
		[]string{"environment"},
	)
)

func SetBuildInfo(version, commit, environment string) {
	buildInfo.WithLabelValues(version, commit).Set(1)
	environmentInfo.WithLabelValues(norm(environment)).Set(1)
}
