package queuethrottle

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yourusername/queuethrottle/core"
)

// QueueLimiter bounds how many jobs of one queue may be in flight at once.
//
// The counter lives in the shared store so every process sees the same
// count. The mutex only serializes check-then-increment inside this process;
// racing processes can overshoot the limit by one at the boundary.
type QueueLimiter struct {
	name   string
	limit  int
	prefix string
	deps   Deps
	keys   core.KeyBuilder
	logger zerolog.Logger

	seq atomic.Uint64
	mu  sync.RWMutex
}

// NewQueueLimiter creates a gate for queue with the given capacity.
// workerID identifies this process in issued tokens; empty means a random id.
func NewQueueLimiter(queue string, limit int, workerID string, deps Deps) (*QueueLimiter, error) {
	if queue == "" {
		return nil, fmt.Errorf("%w: queue name cannot be empty", ErrInvalidConfig)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: queue limit for %q: %w, got %d", ErrInvalidConfig, queue, ErrInvalidLimit, limit)
	}
	if workerID == "" {
		workerID = uuid.NewString()
	}

	deps = deps.withDefaults()
	return &QueueLimiter{
		name:   queue,
		limit:  limit,
		prefix: workerID,
		deps:   deps,
		keys:   deps.keys(),
		logger: deps.Logger.With().Str("component", "queue_limiter").Str("queue", queue).Logger(),
	}, nil
}

func (q *QueueLimiter) Name() string { return q.name }

func (q *QueueLimiter) Limit() int { return q.limit }

func (q *QueueLimiter) counterKey() string { return q.keys.Queue(q.name) }

func (q *QueueLimiter) newToken() string {
	nano := q.deps.Now().UnixNano()
	return q.prefix + ":" + strconv.FormatInt(nano, 10) + ":" + strconv.FormatUint(q.seq.Add(1), 10)
}

// TryAcquire takes one slot if the queue is below capacity and returns an
// opaque token for Release. A full queue returns ok=false and changes nothing.
func (q *QueueLimiter) TryAcquire(ctx context.Context) (token string, ok bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := q.counterKey()
	current, err := q.deps.Store.Get(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("%w: read %s: %w", ErrStoreFailed, key, err)
	}
	if current >= int64(q.limit) {
		return "", false, nil
	}

	if _, err := q.deps.Store.IncrWithTTL(ctx, key, q.deps.Config.ThrottleTTL()); err != nil {
		return "", false, fmt.Errorf("%w: increment %s: %w", ErrStoreFailed, key, err)
	}

	token = q.newToken()
	lease := q.keys.QueueLease(q.name, token)
	if _, err := q.deps.Store.SetNX(ctx, lease, token, q.deps.Config.LockTTL()); err != nil {
		// The slot is held either way; the lease is only bookkeeping.
		q.logger.Warn().Err(err).Str("lease", lease).Msg("failed to write lease key")
	}
	return token, true, nil
}

// Release returns one slot. An empty token is a successful no-op.
// Any non-empty token releases exactly one unit; tokens are not validated
// against a particular acquisition. Store failures are logged and reported
// as false.
func (q *QueueLimiter) Release(ctx context.Context, token string) bool {
	if token == "" {
		return true
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	key := q.counterKey()
	ttl := q.deps.Config.ThrottleTTL()

	if _, err := q.deps.Store.DecrFloorWithTTL(ctx, key, ttl); err != nil {
		q.logger.Error().Err(err).Str("key", key).Msg("failed to release queue slot")
		return false
	}

	if err := q.deps.Store.Delete(ctx, q.keys.QueueLease(q.name, token)); err != nil {
		q.logger.Warn().Err(err).Msg("failed to delete lease key")
	}
	return true
}

// CurrentCount returns the number of held slots, never below zero.
func (q *QueueLimiter) CurrentCount(ctx context.Context) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	n, err := q.deps.Store.Get(ctx, q.counterKey())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}
	if n < 0 {
		return 0, nil
	}
	return int(n), nil
}

// AvailableSlots returns max(0, limit - CurrentCount).
func (q *QueueLimiter) AvailableSlots(ctx context.Context) (int, error) {
	current, err := q.CurrentCount(ctx)
	if err != nil {
		return 0, err
	}
	return max(0, q.limit-current), nil
}

// Reset zeroes the counter and removes every lease key of the queue.
// Meant for administration and tests; in-flight holders are forgotten.
func (q *QueueLimiter) Reset(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	leases, err := q.deps.Store.Keys(ctx, q.keys.QueueLeasePattern(q.name))
	if err != nil {
		return fmt.Errorf("%w: list leases: %w", ErrStoreFailed, err)
	}
	if err := q.deps.Store.Delete(ctx, append(leases, q.counterKey())...); err != nil {
		return fmt.Errorf("%w: reset %s: %w", ErrStoreFailed, q.name, err)
	}

	q.logger.Info().Int("leases", len(leases)).Msg("queue gate reset")
	return nil
}
