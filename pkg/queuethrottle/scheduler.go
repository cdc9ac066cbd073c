package queuethrottle

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultScheduleKey is the sorted set Sidekiq polls for scheduled jobs.
const DefaultScheduleKey = "schedule"

// Scheduler hands a deferred job back to the host framework so it runs again
// at the given time.
type Scheduler interface {
	Schedule(ctx context.Context, job *Job, at time.Time) error
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(ctx context.Context, job *Job, at time.Time) error

func (f SchedulerFunc) Schedule(ctx context.Context, job *Job, at time.Time) error {
	return f(ctx, job, at)
}

// scheduledPayload is the job hash Sidekiq expects in the schedule set.
type scheduledPayload struct {
	JID   string  `json:"jid"`
	Queue string  `json:"queue"`
	Class string  `json:"class"`
	Args  []any   `json:"args"`
	At    float64 `json:"at"`
}

// RedisScheduler writes deferred jobs into a Sidekiq-compatible schedule set.
type RedisScheduler struct {
	client redis.Cmdable
	key    string
}

// NewRedisScheduler creates a scheduler writing to DefaultScheduleKey.
func NewRedisScheduler(client redis.Cmdable) *RedisScheduler {
	return &RedisScheduler{client: client, key: DefaultScheduleKey}
}

// WithKey returns a copy writing to a different sorted set, e.g. a namespaced one.
func (s *RedisScheduler) WithKey(key string) *RedisScheduler {
	return &RedisScheduler{client: s.client, key: key}
}

// Schedule adds the job to the schedule set scored by at.
// Jobs without an ID are given one.
func (s *RedisScheduler) Schedule(ctx context.Context, job *Job, at time.Time) error {
	if job == nil {
		return fmt.Errorf("%w: nil job", ErrScheduleFailed)
	}

	jid := job.ID
	if jid == "" {
		jid = uuid.NewString()
	}
	args := job.Args
	if args == nil {
		args = []any{}
	}

	score := float64(at.UnixNano()) / float64(time.Second)
	payload, err := json.Marshal(scheduledPayload{
		JID:   jid,
		Queue: job.Queue,
		Class: job.Class,
		Args:  args,
		At:    score,
	})
	if err != nil {
		return fmt.Errorf("%w: encode job %s: %w", ErrScheduleFailed, jid, err)
	}

	if err := s.client.ZAdd(ctx, s.key, redis.Z{Score: score, Member: payload}).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrScheduleFailed, err)
	}
	return nil
}

// ScheduledJob is a job recorded by MemoryScheduler.
type ScheduledJob struct {
	Job Job
	At  time.Time
}

// MemoryScheduler keeps deferred jobs in process. Useful for tests and for
// hosts that run their own retry loop.
type MemoryScheduler struct {
	mu      sync.Mutex
	entries []ScheduledJob
}

func NewMemoryScheduler() *MemoryScheduler {
	return &MemoryScheduler{}
}

func (s *MemoryScheduler) Schedule(ctx context.Context, job *Job, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("%w: nil job", ErrScheduleFailed)
	}

	entry := ScheduledJob{Job: *job, At: at}
	entry.Job.Args = append([]any(nil), job.Args...)

	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()
	return nil
}

// Entries returns a copy of every scheduled job ordered by due time.
func (s *MemoryScheduler) Entries() []ScheduledJob {
	s.mu.Lock()
	out := append([]ScheduledJob(nil), s.entries...)
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// Due removes and returns the jobs whose time has come.
func (s *MemoryScheduler) Due(now time.Time) []ScheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due, rest []ScheduledJob
	for _, e := range s.entries {
		if e.At.After(now) {
			rest = append(rest, e)
		} else {
			due = append(due, e)
		}
	}
	s.entries = rest

	sort.SliceStable(due, func(i, j int) bool { return due[i].At.Before(due[j].At) })
	return due
}

// Len returns the number of pending entries.
func (s *MemoryScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
