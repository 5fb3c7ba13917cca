package multiplexer

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts tool calls per peer and outcome
type Metrics struct {
	calls *prometheus.CounterVec
}

// NewMetrics registers the multiplexer collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mcp_tool_calls_total",
			Help: "Tool calls routed to peers, by namespace and outcome.",
		}, []string{"namespace", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.calls)
	}
	return m
}

func (m *Metrics) observe(namespace string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.calls.WithLabelValues(namespace, outcome).Inc()
}
