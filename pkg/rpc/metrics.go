package rpc

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type clientMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	metricsMu    sync.Mutex
	metricsByReg = map[prometheus.Registerer]*clientMetrics{}
)

// metricsFor registers the collectors once per registerer so several clients can share one.
func metricsFor(reg prometheus.Registerer) *clientMetrics {
	if reg == nil {
		return newClientMetrics(nil)
	}
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if m, ok := metricsByReg[reg]; ok {
		return m
	}
	m := newClientMetrics(reg)
	metricsByReg[reg] = m
	return m
}

func newClientMetrics(reg prometheus.Registerer) *clientMetrics {
	factory := promauto.With(reg)
	return &clientMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "govunlock_rpc_requests_total",
			Help: "chain-state gateway requests by path and status",
		}, []string{"path", "status"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "govunlock_rpc_request_duration_seconds",
			Help:    "chain-state gateway request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
	}
}

func (m *clientMetrics) observe(path, status string, start time.Time) {
	m.requests.WithLabelValues(path, status).Inc()
	m.latency.WithLabelValues(path).Observe(time.Since(start).Seconds())
}
