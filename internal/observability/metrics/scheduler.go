package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	SchedulerJobReasonDeadlineExceeded = "deadline_exceeded"
	SchedulerJobReasonCanceled         = "canceled"
	SchedulerJobReasonError            = "error"
)

// SchedulerMetrics tracks maintenance job runs.
type SchedulerMetrics struct {
	runs     *prometheus.CounterVec
	errors   *prometheus.CounterVec
	timeouts *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewSchedulerMetrics() (*SchedulerMetrics, error) {
	return NewSchedulerMetricsWith(prometheus.DefaultRegisterer)
}

func NewSchedulerMetricsWith(reg prometheus.Registerer) (*SchedulerMetrics, error) {
	m := &SchedulerMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "macrolog_scheduler_job_runs_total",
			Help: "Maintenance job executions.",
		}, []string{"job"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "macrolog_scheduler_job_errors_total",
			Help: "Maintenance job failures by reason.",
		}, []string{"job", "reason"}),
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "macrolog_scheduler_job_timeouts_total",
			Help: "Maintenance jobs that hit their soft timeout.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "macrolog_scheduler_job_duration_seconds",
			Help:    "Maintenance job latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}

	if err := registerCounter(reg, &m.runs); err != nil {
		return nil, err
	}
	if err := registerCounter(reg, &m.errors); err != nil {
		return nil, err
	}
	if err := registerCounter(reg, &m.timeouts); err != nil {
		return nil, err
	}
	if err := reg.Register(m.duration); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		if existing, ok := already.ExistingCollector.(*prometheus.HistogramVec); ok {
			m.duration = existing
		}
	}
	return m, nil
}

func registerCounter(reg prometheus.Registerer, vec **prometheus.CounterVec) error {
	if err := reg.Register(*vec); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return err
		}
		if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
			*vec = existing
		}
	}
	return nil
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.timeouts.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil {
		return
	}
	m.errors.WithLabelValues(job, jobErrorReason(err)).Inc()
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(job).Observe(d.Seconds())
}

func jobErrorReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return SchedulerJobReasonDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return SchedulerJobReasonCanceled
	default:
		return SchedulerJobReasonError
	}
}
