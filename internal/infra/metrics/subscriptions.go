package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	subscriptionsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_created_total",
			Help: "Subscriptions created, by tier.",
		},
		[]string{"tier"},
	)

	tierOverrides = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_tier_overrides_total",
			Help: "Tier overrides applied, by new tier.",
		},
		[]string{"tier"},
	)

	statusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_status_transitions_total",
			Help: "Status transitions, by from/to pair.",
		},
		[]string{"from", "to"},
	)

	quotaDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_denials_total",
			Help: "Usage increments rejected, by reason (quota_exceeded/subscription_invalid).",
		},
		[]string{"reason"},
	)
)

func init() {
	register(subscriptionsCreated, tierOverrides, statusTransitions, quotaDenials)
}

func IncSubscriptionCreated(tier string)   { subscriptionsCreated.WithLabelValues(tier).Inc() }
func IncTierOverride(tier string)          { tierOverrides.WithLabelValues(tier).Inc() }
func IncStatusTransition(from, to string)  { statusTransitions.WithLabelValues(from, to).Inc() }
func IncQuotaDenied(reason string)         { quotaDenials.WithLabelValues(reason).Inc() }
