package queuethrottle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/yourusername/queuethrottle/core"
	"github.com/yourusername/queuethrottle/store"
)

// Orchestrator wraps job executions with the queue capacity gate and the
// job throttle, releases whatever it acquired, and reschedules jobs it
// turns away.
//
// Gates and throttlers are created on first use and reused. A throttler is
// rebuilt when its job type is registered again, and dropped when its
// throttle is removed. Counters live in the store, so a rebuild keeps them.
type Orchestrator struct {
	config    *Config
	registry  *Registry
	store     store.Store
	scheduler Scheduler
	logger    zerolog.Logger
	recorder  Recorder
	now       func() time.Time
	workerID  string

	mu         sync.Mutex
	queues     map[string]*QueueLimiter
	throttlers map[string]cachedThrottler
}

type cachedThrottler struct {
	*JobThrottler
	rev uint64
}

// New creates an Orchestrator. A Scheduler is required; everything else
// has a default: NewConfig(), an empty Registry, an in-memory store and a
// disabled logger.
//
// Throttles declared in the config are added to the registry.
//
// Example:
//
//	orch, err := queuethrottle.New(
//	    queuethrottle.WithConfigFile("queue_throttle.yml"),
//	    queuethrottle.WithStore(store.NewRedisStore(store.RedisConfig{Addr: "localhost:6379"})),
//	    queuethrottle.WithScheduler(queuethrottle.NewRedisScheduler(client)),
//	)
func New(opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		config:     NewConfig(),
		logger:     zerolog.Nop(),
		recorder:   nopRecorder{},
		now:        time.Now,
		queues:     make(map[string]*QueueLimiter),
		throttlers: make(map[string]cachedThrottler),
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if o.scheduler == nil {
		return nil, ErrNoScheduler
	}
	if err := o.config.Validate(); err != nil {
		return nil, err
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}
	if err := o.registry.RegisterConfig(o.config); err != nil {
		return nil, err
	}
	if o.store == nil {
		o.store = store.NewMemoryStore()
	}

	return o, nil
}

func (o *Orchestrator) deps() Deps {
	return Deps{Store: o.store, Config: o.config, Logger: o.logger, Now: o.now}
}

// Config returns the configuration the Orchestrator was built with.
func (o *Orchestrator) Config() *Config { return o.config }

// Registry returns the throttle registry.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// Store returns the counter store.
func (o *Orchestrator) Store() store.Store { return o.store }

// QueueNames returns every queue with a configured capacity.
func (o *Orchestrator) QueueNames() []string { return o.config.QueueNames() }

// QueueLimiter returns the gate for a queue, or false if the queue has no
// configured capacity.
func (o *Orchestrator) QueueLimiter(queue string) (*QueueLimiter, bool) {
	limit, ok := o.config.QueueLimit(queue)
	if !ok {
		return nil, false
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if q, ok := o.queues[queue]; ok {
		return q, true
	}
	q, err := NewQueueLimiter(queue, limit, o.workerID, o.deps())
	if err != nil {
		o.logger.Error().Err(err).Str("queue", queue).Msg("invalid queue gate")
		return nil, false
	}
	o.queues[queue] = q
	return q, true
}

// JobThrottler returns the throttler for a job type, or false if the job
// type has no registered throttle.
func (o *Orchestrator) JobThrottler(jobType string) (*JobThrottler, bool) {
	reg, ok := o.registry.lookup(jobType)

	o.mu.Lock()
	defer o.mu.Unlock()

	if !ok {
		delete(o.throttlers, jobType)
		return nil, false
	}
	if c, ok := o.throttlers[jobType]; ok && c.rev == reg.rev {
		return c.JobThrottler, true
	}
	t, err := NewJobThrottler(jobType, reg.spec, o.deps())
	if err != nil {
		o.logger.Error().Err(err).Str("job_type", jobType).Msg("invalid job throttle")
		return nil, false
	}
	o.throttlers[jobType] = cachedThrottler{JobThrottler: t, rev: reg.rev}
	return t, true
}

// AdmitAndRun runs work if both gates admit job, and otherwise reschedules it.
//
// The queue capacity gate is consulted before the job throttle, so when both
// would deny, the reported reason is ReasonQueueCapacity. Anything acquired
// is released on every exit path of work, including a panic, which is then
// re-raised. The error returned by work is passed through unchanged.
//
// A store failure while acquiring is treated as a denial: the job is
// deferred with ReasonStoreUnavailable and the returned error wraps
// ErrStoreFailed. Otherwise a deferred job comes back with a nil error.
func (o *Orchestrator) AdmitAndRun(ctx context.Context, job *Job, work Work) (Result, error) {
	if job == nil || work == nil {
		return Result{Status: StatusFailed}, ErrInvalidJob
	}

	log := o.logger.With().
		Str("queue", job.Queue).
		Str("job_type", job.Class).
		Str("jid", job.ID).
		Logger()

	var token string
	gate, gated := o.QueueLimiter(job.Queue)
	if gated {
		tok, ok, err := gate.TryAcquire(ctx)
		if err != nil {
			log.Error().Err(err).Msg("queue gate unavailable")
			return o.deferJob(ctx, job, ReasonStoreUnavailable, err, log)
		}
		if !ok {
			return o.deferJob(ctx, job, ReasonQueueCapacity, nil, log)
		}
		token = tok
	}

	throttler, throttled := o.JobThrottler(job.Class)
	if throttled {
		ok, err := throttler.AcquireSlot(ctx, job.Args)
		if err != nil {
			log.Error().Err(err).Msg("job throttle unavailable")
		}
		if !ok {
			if gated {
				o.releaseQueue(context.WithoutCancel(ctx), gate, job, token)
			}
			if err != nil {
				return o.deferJob(ctx, job, ReasonStoreUnavailable, err, log)
			}
			return o.deferJob(ctx, job, ReasonJobThrottle, nil, log)
		}
	}

	o.recorder.RecordDecision(job.Queue, job.Class, OutcomeExecuted, "")

	start := o.now()
	returned := false
	defer func() {
		if !returned {
			o.recorder.ObserveWork(job.Queue, job.Class, o.now().Sub(start), ErrWorkPanicked)
		}
		rctx := context.WithoutCancel(ctx)
		if throttled && !throttler.ReleaseSlot(rctx, job.Args) {
			o.recorder.RecordReleaseFailure(job.Queue, job.Class, string(core.KindJobConcurrency))
		}
		if gated {
			o.releaseQueue(rctx, gate, job, token)
		}
	}()

	err := work(ctx)
	returned = true
	o.recorder.ObserveWork(job.Queue, job.Class, o.now().Sub(start), err)

	return Result{Status: StatusExecuted}, err
}

func (o *Orchestrator) releaseQueue(ctx context.Context, gate *QueueLimiter, job *Job, token string) {
	if !gate.Release(ctx, token) {
		o.recorder.RecordReleaseFailure(job.Queue, job.Class, string(core.KindQueueLock))
	}
}

// deferJob reschedules job. cause is the store error behind a
// ReasonStoreUnavailable denial and is returned once the job is safely
// rescheduled.
func (o *Orchestrator) deferJob(ctx context.Context, job *Job, reason DeferReason, cause error, log zerolog.Logger) (Result, error) {
	retryAt := o.now().Add(o.config.RetryDelay())

	if err := o.scheduler.Schedule(ctx, job, retryAt); err != nil {
		log.Error().Err(err).Str("reason", string(reason)).Msg("failed to reschedule deferred job")
		o.recorder.RecordDecision(job.Queue, job.Class, OutcomeFailed, string(reason))
		if !errors.Is(err, ErrScheduleFailed) {
			err = fmt.Errorf("%w: %w", ErrScheduleFailed, err)
		}
		return Result{Status: StatusFailed, Reason: reason}, errors.Join(err, cause)
	}

	log.Info().
		Str("reason", string(reason)).
		Time("retry_at", retryAt).
		Msg("job deferred")
	o.recorder.RecordDecision(job.Queue, job.Class, OutcomeDeferred, string(reason))

	return Result{Status: StatusDeferred, Reason: reason, RetryAt: retryAt}, cause
}
