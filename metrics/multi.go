package metrics

import (
	"time"

	"github.com/yourusername/queuethrottle/pkg/queuethrottle"
)

// Multi forwards every event to each recorder in order.
type Multi []queuethrottle.Recorder

func (m Multi) RecordDecision(queue, jobType, outcome, reason string) {
	for _, r := range m {
		r.RecordDecision(queue, jobType, outcome, reason)
	}
}

func (m Multi) RecordReleaseFailure(queue, jobType, gate string) {
	for _, r := range m {
		r.RecordReleaseFailure(queue, jobType, gate)
	}
}

func (m Multi) ObserveWork(queue, jobType string, elapsed time.Duration, err error) {
	for _, r := range m {
		r.ObserveWork(queue, jobType, elapsed, err)
	}
}
