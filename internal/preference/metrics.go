package preference

import "github.com/prometheus/client_golang/prometheus"

// MetricUpdateConflicts counts compare-and-swap losses on preference writes.
const MetricUpdateConflicts = "preference_update_conflicts_total"

// Metrics contains Prometheus metrics for preference writes.
type Metrics struct {
	conflicts prometheus.Counter
}

// NewMetrics creates unregistered preference metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricUpdateConflicts,
			Help: "Total number of preference writes that lost a revision race",
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	return reg.Register(m.conflicts)
}

// IncConflicts increments the conflict counter.
func (m *Metrics) IncConflicts() {
	m.conflicts.Inc()
}
