package core

import "time"

// Kind identifies which gate owns a counter. Each kind has its own key space.
type Kind string

const (
	KindQueueLock      Kind = "queue-lock"
	KindJobConcurrency Kind = "job-concurrency"
	KindJobRate        Kind = "job-rate"
)

// DefaultScope is used whenever a throttle key cannot be resolved.
const DefaultScope = "default"

// DefaultRatePeriod is the window length used when a rate throttle omits one.
const DefaultRatePeriod = 60 * time.Second

// Window describes one fixed counting window.
type Window struct {
	Bucket  int64     // floor(unix seconds / period seconds)
	Start   time.Time // first instant of the window
	ResetAt time.Time // first instant of the next window
}
