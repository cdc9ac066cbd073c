// Package metrics records admission decisions. Metrics keeps in-process
// counters for the admin API, Prometheus exports them for scraping, and
// Multi fans events out to several recorders.
package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yourusername/queuethrottle/pkg/queuethrottle"
)

var (
	_ queuethrottle.Recorder = (*Metrics)(nil)
	_ queuethrottle.Recorder = (*Prometheus)(nil)
	_ queuethrottle.Recorder = Multi{}
)

// Metrics tracks admission statistics in memory.
type Metrics struct {
	totalDecisions  atomic.Int64
	executedJobs    atomic.Int64
	deferredJobs    atomic.Int64
	failedJobs      atomic.Int64
	releaseFailures atomic.Int64
	workErrors      atomic.Int64

	mu        sync.RWMutex
	queues    map[string]*Stats
	jobTypes  map[string]*Stats
	startTime time.Time
	now       func() time.Time
}

// Stats tracks decisions for one queue or one job type.
type Stats struct {
	Name               string    `json:"name"`
	TotalDecisions     int64     `json:"total_decisions"`
	Executed           int64     `json:"executed"`
	Deferred           int64     `json:"deferred"`
	Failed             int64     `json:"failed"`
	DeferredByQueue    int64     `json:"deferred_by_queue_capacity"`
	DeferredByThrottle int64     `json:"deferred_by_job_throttle"`
	DeferredByStore    int64     `json:"deferred_by_store_unavailable"`
	FirstDecisionAt    time.Time `json:"first_decision_at"`
	LastDecisionAt     time.Time `json:"last_decision_at"`
}

// NewMetrics creates a new metrics tracker
func NewMetrics() *Metrics {
	return &Metrics{
		queues:    make(map[string]*Stats),
		jobTypes:  make(map[string]*Stats),
		startTime: time.Now(),
		now:       time.Now,
	}
}

// RecordDecision records the outcome of one admission attempt.
func (m *Metrics) RecordDecision(queue, jobType, outcome, reason string) {
	m.totalDecisions.Add(1)
	switch outcome {
	case queuethrottle.OutcomeExecuted:
		m.executedJobs.Add(1)
	case queuethrottle.OutcomeDeferred:
		m.deferredJobs.Add(1)
	case queuethrottle.OutcomeFailed:
		m.failedJobs.Add(1)
	}

	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	statsFor(m.queues, queue, now).record(outcome, reason, now)
	statsFor(m.jobTypes, jobType, now).record(outcome, reason, now)
}

// RecordReleaseFailure counts a slot that could not be returned.
func (m *Metrics) RecordReleaseFailure(queue, jobType, gate string) {
	m.releaseFailures.Add(1)
}

// ObserveWork counts work errors. Durations are left to Prometheus.
func (m *Metrics) ObserveWork(queue, jobType string, elapsed time.Duration, err error) {
	if err != nil {
		m.workErrors.Add(1)
	}
}

// MUST be called with m.mu locked.
func statsFor(group map[string]*Stats, name string, now time.Time) *Stats {
	stats, exists := group[name]
	if !exists {
		stats = &Stats{Name: name, FirstDecisionAt: now}
		group[name] = stats
	}
	return stats
}

func (s *Stats) record(outcome, reason string, now time.Time) {
	s.TotalDecisions++
	switch outcome {
	case queuethrottle.OutcomeExecuted:
		s.Executed++
	case queuethrottle.OutcomeDeferred:
		s.Deferred++
		switch queuethrottle.DeferReason(reason) {
		case queuethrottle.ReasonQueueCapacity:
			s.DeferredByQueue++
		case queuethrottle.ReasonJobThrottle:
			s.DeferredByThrottle++
		case queuethrottle.ReasonStoreUnavailable:
			s.DeferredByStore++
		}
	case queuethrottle.OutcomeFailed:
		s.Failed++
	}
	s.LastDecisionAt = now
}

// GetSnapshot returns a snapshot of current metrics
func (m *Metrics) GetSnapshot() *Snapshot {
	m.mu.RLock()
	queues := copyStats(m.queues)
	jobTypes := copyStats(m.jobTypes)
	m.mu.RUnlock()

	sortByTotalDecisions(queues)
	sortByTotalDecisions(jobTypes)
	if len(jobTypes) > 10 {
		jobTypes = jobTypes[:10]
	}

	return &Snapshot{
		TotalDecisions:  m.totalDecisions.Load(),
		ExecutedJobs:    m.executedJobs.Load(),
		DeferredJobs:    m.deferredJobs.Load(),
		FailedJobs:      m.failedJobs.Load(),
		ReleaseFailures: m.releaseFailures.Load(),
		WorkErrors:      m.workErrors.Load(),
		Queues:          queues,
		TopJobTypes:     jobTypes,
		UptimeSeconds:   int64(m.now().Sub(m.startTime).Seconds()),
		StartTime:       m.startTime,
	}
}

func copyStats(group map[string]*Stats) []*Stats {
	out := make([]*Stats, 0, len(group))
	for _, stats := range group {
		cp := *stats
		out = append(out, &cp)
	}
	return out
}

// Snapshot represents a point-in-time view of metrics
type Snapshot struct {
	TotalDecisions  int64     `json:"total_decisions"`
	ExecutedJobs    int64     `json:"executed_jobs"`
	DeferredJobs    int64     `json:"deferred_jobs"`
	FailedJobs      int64     `json:"failed_jobs"`
	ReleaseFailures int64     `json:"release_failures"`
	WorkErrors      int64     `json:"work_errors"`
	Queues          []*Stats  `json:"queues"`
	TopJobTypes     []*Stats  `json:"top_job_types"`
	UptimeSeconds   int64     `json:"uptime_seconds"`
	StartTime       time.Time `json:"start_time"`
}

// Busiest first, ties by name so output is stable.
func sortByTotalDecisions(stats []*Stats) {
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].TotalDecisions != stats[j].TotalDecisions {
			return stats[i].TotalDecisions > stats[j].TotalDecisions
		}
		return stats[i].Name < stats[j].Name
	})
}
