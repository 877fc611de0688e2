package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment session events (opened/resolved/replayed/open_failed/resolve_failed).",
		},
		[]string{"event"},
	)

	sessionsReaped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_sessions_reaped_total",
			Help: "Stale unconsumed payment sessions purged by the reaper.",
		},
	)
)

func init() {
	register(paymentsTotal, sessionsReaped)
}

func IncPayment(event string)      { paymentsTotal.WithLabelValues(event).Inc() }
func AddSessionsReaped(n int64)    { sessionsReaped.Add(float64(n)) }
