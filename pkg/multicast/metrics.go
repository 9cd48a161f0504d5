package multicast

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type groupMetrics struct {
	activeFlows      prometheus.Gauge
	subscribers      prometheus.Gauge
	emitted          prometheus.Counter
	suppressed       prometheus.Counter
	producerFailures prometheus.Counter
}

// A nil registerer yields working but unregistered metrics.
func newGroupMetrics(reg prometheus.Registerer, name string) *groupMetrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"group": name}
	return &groupMetrics{
		activeFlows: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "govunlock_multicast_active_flows",
			Help:        "number of keys with a running producer",
			ConstLabels: labels,
		}),
		subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "govunlock_multicast_subscribers",
			Help:        "number of attached subscriptions",
			ConstLabels: labels,
		}),
		emitted: factory.NewCounter(prometheus.CounterOpts{
			Name:        "govunlock_multicast_emitted_total",
			Help:        "values delivered to subscribers",
			ConstLabels: labels,
		}),
		suppressed: factory.NewCounter(prometheus.CounterOpts{
			Name:        "govunlock_multicast_suppressed_total",
			Help:        "values dropped because they equal the previous value",
			ConstLabels: labels,
		}),
		producerFailures: factory.NewCounter(prometheus.CounterOpts{
			Name:        "govunlock_multicast_producer_failures_total",
			Help:        "producers that ended with an error",
			ConstLabels: labels,
		}),
	}
}
