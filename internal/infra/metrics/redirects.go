package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	redirectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redirects_total",
			Help: "Redirect lookups by outcome (ok/not_found).",
		},
		[]string{"outcome"},
	)

	linkMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_mutations_total",
			Help: "Dynamic URL mutations by operation (create/update_target/delete).",
		},
		[]string{"op"},
	)

	redirectRateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "redirect_rate_limited_total",
			Help: "Redirect requests rejected by the per-client rate limit.",
		},
	)
)

func init() {
	register(redirectsTotal, linkMutationsTotal, redirectRateLimited)
}

func IncRedirect(outcome string)  { redirectsTotal.WithLabelValues(outcome).Inc() }
func IncLinkMutation(op string)   { linkMutationsTotal.WithLabelValues(op).Inc() }
func IncRedirectRateLimited()     { redirectRateLimited.Inc() }
