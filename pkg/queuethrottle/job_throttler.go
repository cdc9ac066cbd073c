package queuethrottle

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/yourusername/queuethrottle/core"
)

// JobThrottler admits executions of one job type according to its ThrottleSpec.
// Counters are partitioned by the scope its key resolver derives from job args.
type JobThrottler struct {
	jobType string
	spec    ThrottleSpec
	deps    Deps
	keys    core.KeyBuilder
	logger  zerolog.Logger

	mu sync.RWMutex
}

// NewJobThrottler validates spec and creates a throttler for jobType.
// An empty spec yields a throttler that admits everything.
func NewJobThrottler(jobType string, spec ThrottleSpec, deps Deps) (*JobThrottler, error) {
	if jobType == "" {
		return nil, ErrEmptyJobType
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: throttle for %s: %w", ErrInvalidConfig, jobType, err)
	}

	deps = deps.withDefaults()
	return &JobThrottler{
		jobType: jobType,
		spec:    spec,
		deps:    deps,
		keys:    deps.keys(),
		logger:  deps.Logger.With().Str("component", "job_throttler").Str("job_type", jobType).Logger(),
	}, nil
}

func (t *JobThrottler) JobType() string { return t.jobType }

func (t *JobThrottler) Spec() ThrottleSpec { return t.spec }

// Scope returns the counter partition args fall into.
func (t *JobThrottler) Scope(args []any) string {
	switch {
	case t.spec.Concurrency != nil:
		return t.spec.Concurrency.Key.Resolve(args)
	case t.spec.Rate != nil:
		return t.spec.Rate.Key.Resolve(args)
	default:
		return core.DefaultScope
	}
}

// counter returns the key and limit that apply to args right now.
// ok is false when the job type is unrestricted.
func (t *JobThrottler) counter(args []any) (key string, limit int, ok bool) {
	switch {
	case t.spec.Concurrency != nil:
		scope := t.spec.Concurrency.Key.Resolve(args)
		return t.keys.Concurrency(t.jobType, scope), t.spec.Concurrency.Limit, true
	case t.spec.Rate != nil:
		scope := t.spec.Rate.Key.Resolve(args)
		w := core.FixedWindow(t.deps.Now(), t.spec.Rate.WindowPeriod())
		return t.keys.Rate(t.jobType, scope, w.Bucket), t.spec.Rate.Limit, true
	default:
		return "", 0, false
	}
}

func (t *JobThrottler) below(ctx context.Context, key string, limit int) (bool, error) {
	current, err := t.deps.Store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: read %s: %w", ErrStoreFailed, key, err)
	}
	return current < int64(limit), nil
}

// CanProcess reports whether a job with args would be admitted now.
func (t *JobThrottler) CanProcess(ctx context.Context, args []any) (bool, error) {
	key, limit, ok := t.counter(args)
	if !ok {
		return true, nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.below(ctx, key, limit)
}

// AcquireSlot re-checks admission under the write lock and takes a slot.
// Concurrency counters keep the throttle TTL; rate counters expire with
// their window. A denied call changes nothing.
func (t *JobThrottler) AcquireSlot(ctx context.Context, args []any) (bool, error) {
	key, limit, ok := t.counter(args)
	if !ok {
		return true, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	allowed, err := t.below(ctx, key, limit)
	if err != nil || !allowed {
		return false, err
	}

	ttl := t.deps.Config.ThrottleTTL()
	if t.spec.Rate != nil {
		ttl = t.spec.Rate.WindowPeriod()
	}
	if _, err := t.deps.Store.IncrWithTTL(ctx, key, ttl); err != nil {
		return false, fmt.Errorf("%w: increment %s: %w", ErrStoreFailed, key, err)
	}
	return true, nil
}

// ReleaseSlot returns a concurrency slot for args. Rate windows are never
// released, so for rate throttles this is a successful no-op. Store failures
// are logged and reported as false.
func (t *JobThrottler) ReleaseSlot(ctx context.Context, args []any) bool {
	c := t.spec.Concurrency
	if c == nil {
		return true
	}

	key := t.keys.Concurrency(t.jobType, c.Key.Resolve(args))
	ttl := t.deps.Config.ThrottleTTL()

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.deps.Store.DecrFloorWithTTL(ctx, key, ttl); err != nil {
		t.logger.Error().Err(err).Str("key", key).Msg("failed to release throttle slot")
		return false
	}
	return true
}

// Usage returns the current counter value for args and its limit.
// Unrestricted job types report 0, 0.
func (t *JobThrottler) Usage(ctx context.Context, args []any) (current, limit int, err error) {
	key, limit, ok := t.counter(args)
	if !ok {
		return 0, 0, nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	n, err := t.deps.Store.Get(ctx, key)
	if err != nil {
		return 0, limit, fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}
	return int(max(n, 0)), limit, nil
}
