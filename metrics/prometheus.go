package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus exports admission events as Prometheus metrics.
type Prometheus struct {
	Decisions       *prometheus.CounterVec
	ReleaseFailures *prometheus.CounterVec
	WorkDuration    *prometheus.HistogramVec
	WorkErrors      *prometheus.CounterVec
}

// NewPrometheus creates the collectors and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queuethrottle_decisions_total",
				Help: "Admission decisions by outcome and deferral reason",
			},
			[]string{"queue", "job_type", "outcome", "reason"},
		),
		ReleaseFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queuethrottle_release_failures_total",
				Help: "Slots that could not be returned to the counter store",
			},
			[]string{"gate"},
		),
		WorkDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "queuethrottle_work_duration_seconds",
				Help:    "Duration of admitted work in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"queue", "job_type"},
		),
		WorkErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queuethrottle_work_errors_total",
				Help: "Admitted work that returned an error",
			},
			[]string{"queue", "job_type"},
		),
	}

	reg.MustRegister(p.Decisions, p.ReleaseFailures, p.WorkDuration, p.WorkErrors)
	return p
}

func (p *Prometheus) RecordDecision(queue, jobType, outcome, reason string) {
	p.Decisions.WithLabelValues(queue, jobType, outcome, reason).Inc()
}

func (p *Prometheus) RecordReleaseFailure(queue, jobType, gate string) {
	p.ReleaseFailures.WithLabelValues(gate).Inc()
}

func (p *Prometheus) ObserveWork(queue, jobType string, elapsed time.Duration, err error) {
	p.WorkDuration.WithLabelValues(queue, jobType).Observe(elapsed.Seconds())
	if err != nil {
		p.WorkErrors.WithLabelValues(queue, jobType).Inc()
	}
}
