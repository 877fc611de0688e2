package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once       sync.Once
	collectors []prometheus.Collector
)

// register enqueues collectors at init time; nothing touches the Prometheus
// registry until MustRegister runs, so importing this package stays free of
// side effects on the default registry.
func register(cs ...prometheus.Collector) {
	collectors = append(collectors, cs...)
}

// MustRegister installs every enqueued collector, exactly once for the
// lifetime of the process. With no arguments it uses the default registry;
// tests can pass their own to keep series isolated.
func MustRegister(regs ...prometheus.Registerer) {
	once.Do(func() {
		reg := prometheus.Registerer(prometheus.DefaultRegisterer)
		if len(regs) > 0 && regs[0] != nil {
			reg = regs[0]
		}
		reg.MustRegister(collectors...)
	})
}
