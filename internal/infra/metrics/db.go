package metrics

import (
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(dbPoolConns, dbPoolAcquires) }

var (
	dbPoolConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_connections",
			Help: "Connections in the Postgres pool by state.",
		},
		[]string{"state"}, // total|idle|in_use|max
	)

	dbPoolAcquires = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_pool_empty_acquires",
			Help: "Cumulative acquires that had to wait for a connection.",
		},
	)
)

// ObservePool copies a pool snapshot into the gauges. Called by the pool stats job.
func ObservePool(s *pgxpool.Stat) {
	dbPoolConns.WithLabelValues("total").Set(float64(s.TotalConns()))
	dbPoolConns.WithLabelValues("idle").Set(float64(s.IdleConns()))
	dbPoolConns.WithLabelValues("in_use").Set(float64(s.AcquiredConns()))
	dbPoolConns.WithLabelValues("max").Set(float64(s.MaxConns()))
	dbPoolAcquires.Set(float64(s.EmptyAcquireCount()))
}
