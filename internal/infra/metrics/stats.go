package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	usersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "users_total",
			Help: "Registered identity records.",
		},
	)

	subscriptionsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "subscriptions_by_status",
			Help: "Subscription rows grouped by status.",
		},
		[]string{"status"},
	)
)

func init() {
	register(usersTotal, subscriptionsByStatus)
}

func SetUsersTotal(n int) { usersTotal.Set(float64(n)) }
func SetSubscriptionsByStatus(status string, n int) {
	subscriptionsByStatus.WithLabelValues(status).Set(float64(n))
}
