package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(backgroundJobsTotal) }

var backgroundJobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "background_jobs_total",
		Help: "Background job runs, labeled by job and status.",
	},
	[]string{"job", "status"}, // status: ok|error
)

func IncJob(job string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	backgroundJobsTotal.WithLabelValues(norm(job), status).Inc()
}
