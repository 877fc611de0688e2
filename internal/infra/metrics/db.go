package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	dbOpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_op_latency_ms",
			Help:    "Latency distribution of repository operations in milliseconds.",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"repo", "op", "success"},
	)

	dbErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_errors_total",
			Help: "Repository operations that returned an infrastructure error.",
		},
		[]string{"repo", "op"},
	)
)

func init() {
	register(dbOpLatency, dbErrors)
}

func ObserveDBOp(repo, op string, latencyMs float64, success bool) {
	s := "true"
	if !success {
		s = "false"
		dbErrors.WithLabelValues(repo, op).Inc()
	}
	dbOpLatency.WithLabelValues(repo, op, s).Observe(latencyMs)
}
