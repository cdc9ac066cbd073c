package queuethrottle

import "errors"

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidLimit is returned when a queue or throttle limit is not positive
	ErrInvalidLimit = errors.New("limit must be a positive integer")

	// ErrInvalidPeriod is returned when a rate period is not a positive whole number of seconds
	ErrInvalidPeriod = errors.New("rate period must be a positive whole number of seconds")

	// ErrConflictingThrottle is returned when a throttle declares both concurrency and rate
	ErrConflictingThrottle = errors.New("cannot specify both concurrency and rate limits")

	// ErrMissingKeyResolver is returned when a throttle has no key resolver
	ErrMissingKeyResolver = errors.New("throttle key resolver is required")

	// ErrEmptyJobType is returned when registering a throttle without a job type
	ErrEmptyJobType = errors.New("job type cannot be empty")

	// ErrStoreFailed is returned when the counter store fails during admission
	ErrStoreFailed = errors.New("counter store operation failed")

	// ErrScheduleFailed is returned when a deferred job could not be handed back for retry
	ErrScheduleFailed = errors.New("failed to reschedule deferred job")

	// ErrInvalidJob is returned when a job or its work is missing
	ErrInvalidJob = errors.New("job and work are required")

	// ErrWorkPanicked is reported to the Recorder when work panics
	ErrWorkPanicked = errors.New("work panicked")

	// ErrNoScheduler is returned when an orchestrator is built without a scheduler
	ErrNoScheduler = errors.New("a scheduler is required to defer jobs")
)
