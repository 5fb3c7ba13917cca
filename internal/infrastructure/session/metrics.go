package session

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes session store gauges and counters
type Metrics struct {
	active prometheus.Gauge
	evicts prometheus.Counter
}

// NewMetrics registers the session collectors on reg. A nil reg leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mcp_sessions_active",
			Help: "Number of live MCP sessions.",
		}),
		evicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mcp_sessions_evicted_total",
			Help: "Sessions evicted to make room for new ones.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.active, m.evicts)
	}
	return m
}

func (m *Metrics) setActive(n int) {
	if m != nil {
		m.active.Set(float64(n))
	}
}

func (m *Metrics) evicted() {
	if m != nil {
		m.evicts.Inc()
	}
}
