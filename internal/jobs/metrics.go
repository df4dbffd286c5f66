// Package jobs runs periodic background work and records its outcome.
package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricJobRunsTotal     = "mealpilot_job_runs_total"
	MetricJobDuration      = "mealpilot_job_duration_seconds"
	MetricJobItemsAffected = "mealpilot_job_items_affected_total"
)

// Job types used as the job_type label.
const (
	JobTypeRateLimitCleanup = "rate_limit_cleanup"
)

// Run outcomes.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics holds the job collectors. A nil *Metrics records nothing.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	affected *prometheus.CounterVec
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricJobRunsTotal,
				Help: "Total number of background job runs by type and status",
			},
			[]string{"job_type", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricJobDuration,
				Help:    "Histogram of background job run duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"job_type"},
		),
		affected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricJobItemsAffected,
				Help: "Total number of entries touched by background jobs",
			},
			[]string{"job_type"},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveRun records one run of jobType.
func (m *Metrics) ObserveRun(jobType, status string, seconds float64, affected int) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(jobType, status).Inc()
	m.duration.WithLabelValues(jobType).Observe(seconds)
	if affected > 0 {
		m.affected.WithLabelValues(jobType).Add(float64(affected))
	}
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.runs,
		m.duration,
		m.affected,
	}
}
