package queuethrottle

import "time"

// Outcome labels passed to Recorder.RecordDecision.
const (
	OutcomeExecuted = "executed"
	OutcomeDeferred = "deferred"
	OutcomeFailed   = "failed"
)

// Recorder receives admission events. Implementations must be safe for
// concurrent use; see the metrics package.
type Recorder interface {
	// RecordDecision is called once per admission attempt.
	RecordDecision(queue, jobType, outcome, reason string)

	// RecordReleaseFailure is called when a slot could not be returned.
	// gate is the counter kind, e.g. "queue-lock".
	RecordReleaseFailure(queue, jobType, gate string)

	// ObserveWork is called after admitted work returns.
	ObserveWork(queue, jobType string, elapsed time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordDecision(string, string, string, string)    {}
func (nopRecorder) RecordReleaseFailure(string, string, string)      {}
func (nopRecorder) ObserveWork(string, string, time.Duration, error) {}
