package queuethrottle

import (
	"context"
	"time"
)

// Job describes one execution attempt as seen by the admission layer.
type Job struct {
	ID    string
	Queue string
	// Class is the job type. Throttles are registered per class.
	Class string
	Args  []any
}

// Work is the unit of work guarded by admission.
type Work func(ctx context.Context) error

// Status is the outcome of an admission attempt.
type Status int

const (
	// StatusExecuted means work ran. Its error, if any, is returned alongside.
	StatusExecuted Status = iota
	// StatusDeferred means work never ran and the job was rescheduled.
	StatusDeferred
	// StatusFailed means work never ran because admission itself failed.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusExecuted:
		return "executed"
	case StatusDeferred:
		return "deferred"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DeferReason names the gate that denied admission.
type DeferReason string

const (
	ReasonQueueCapacity DeferReason = "queue capacity"
	ReasonJobThrottle   DeferReason = "job throttle"
	// ReasonStoreUnavailable means a gate could not read or update its
	// counter, so the job was denied without knowing whether it would fit.
	ReasonStoreUnavailable DeferReason = "store unavailable"
)

// Result reports what happened to a job.
type Result struct {
	Status Status
	// Reason is set when Status is StatusDeferred.
	Reason DeferReason
	// RetryAt is when a deferred job becomes due again.
	RetryAt time.Time
}

// Executed reports whether work ran.
func (r Result) Executed() bool { return r.Status == StatusExecuted }

// Deferred reports whether the job was handed back for retry.
func (r Result) Deferred() bool { return r.Status == StatusDeferred }
