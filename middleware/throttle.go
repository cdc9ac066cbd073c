package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yourusername/queuethrottle/pkg/queuethrottle"
)

// DeferredError tells the worker that the job did not run and has already
// been rescheduled. It must not be treated as a job failure or retried again.
type DeferredError struct {
	JobID   string
	Reason  queuethrottle.DeferReason
	RetryAt time.Time
	// Err is the store failure behind a ReasonStoreUnavailable deferral.
	Err error
}

func (e *DeferredError) Error() string {
	msg := fmt.Sprintf("job %s deferred by %s until %s", e.JobID, e.Reason, e.RetryAt.Format(time.RFC3339))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DeferredError) Unwrap() error { return e.Err }

// IsDeferred reports whether err signals a deferred job.
func IsDeferred(err error) bool {
	var de *DeferredError
	return errors.As(err, &de)
}

// Throttle returns middleware that runs the rest of the chain through the
// orchestrator. Deferred jobs surface as *DeferredError; errors from the
// handler pass through unchanged.
func Throttle(orch *queuethrottle.Orchestrator) Middleware {
	return func(ctx context.Context, j *queuethrottle.Job, next Handler) error {
		res, err := orch.AdmitAndRun(ctx, j, queuethrottle.Work(next))
		if res.Deferred() {
			return &DeferredError{JobID: j.ID, Reason: res.Reason, RetryAt: res.RetryAt, Err: err}
		}
		return err
	}
}
