package sink

import (
	"github.com/fluxorio/playground/pkg/observability/metrics"
)

// Metrics counts transitions into Prometheus collectors.
type Metrics struct {
	m *metrics.Metrics
}

func NewMetrics(m *metrics.Metrics) *Metrics { return &Metrics{m: m} }

func (s *Metrics) OnUpdate(u Update) {
	s.m.ObserveTransition(string(u.Task), u.State)
}
