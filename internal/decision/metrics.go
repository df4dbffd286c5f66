package decision

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricDecisionsCreated    = "decisions_created_total"
	MetricDecisionCandidates  = "decision_candidates"
	MetricDecisionFeedback    = "decision_feedback_total"
	MetricDecisionEvents      = "decision_events_total"
	MetricDerivedWriteFailure = "derived_write_failures_total"
)

// Derived write kinds.
const (
	DerivedWritePreference = "preference"
	DerivedWriteEvent      = "event"
)

// Metrics contains Prometheus metrics for the decision engine.
// All operations are thread-safe.
type Metrics struct {
	decisionsCreated    prometheus.Counter
	decisionCandidates  prometheus.Histogram
	feedback            *prometheus.CounterVec
	events              *prometheus.CounterVec
	derivedWriteFailure *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		decisionsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricDecisionsCreated,
				Help: "Total number of persisted decisions",
			},
		),
		decisionCandidates: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricDecisionCandidates,
				Help:    "Number of candidates returned per decision",
				Buckets: []float64{1, 3, 5, 10, 20, 50},
			},
		),
		feedback: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricDecisionFeedback,
				Help: "Total number of feedback submissions by status",
			},
			[]string{"status"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricDecisionEvents,
				Help: "Total number of decision events appended by action",
			},
			[]string{"action"},
		),
		derivedWriteFailure: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricDerivedWriteFailure,
				Help: "Total number of swallowed failures of writes derived from feedback",
			},
			[]string{"kind"},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.decisionsCreated,
		m.decisionCandidates,
		m.feedback,
		m.events,
		m.derivedWriteFailure,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveDecision records a persisted decision with n candidates.
func (m *Metrics) ObserveDecision(n int) {
	if m == nil {
		return
	}
	m.decisionsCreated.Inc()
	m.decisionCandidates.Observe(float64(n))
}

// IncFeedback increments the feedback counter.
func (m *Metrics) IncFeedback(status FeedbackStatus) {
	if m == nil {
		return
	}
	m.feedback.WithLabelValues(string(status)).Inc()
}

// IncEvents increments the event counter.
func (m *Metrics) IncEvents(action Action) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(string(action)).Inc()
}

// IncDerivedWriteFailure increments the swallowed-failure counter.
// kind: DerivedWritePreference or DerivedWriteEvent
func (m *Metrics) IncDerivedWriteFailure(kind string) {
	if m == nil {
		return
	}
	m.derivedWriteFailure.WithLabelValues(kind).Inc()
}
