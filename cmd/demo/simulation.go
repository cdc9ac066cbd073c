package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/yourusername/queuethrottle/cmd/demo/handlers"
	"github.com/yourusername/queuethrottle/middleware"
	"github.com/yourusername/queuethrottle/pkg/queuethrottle"
)

// simulation is a tiny in-process job system: a shared queue, a fixed set
// of workers and a poller that moves deferred jobs back onto the queue once
// they are due.
type simulation struct {
	scheduler *queuethrottle.MemoryScheduler
	chain     middleware.Middleware
	handlers  map[string]handlers.Func
	logger    zerolog.Logger
	poll      time.Duration

	queue chan *queuethrottle.Job

	succeeded atomic.Int64
	failed    atomic.Int64
	deferrals atomic.Int64
}

func newSimulation(orch *queuethrottle.Orchestrator, scheduler *queuethrottle.MemoryScheduler, hs map[string]handlers.Func, logger zerolog.Logger) *simulation {
	return &simulation{
		scheduler: scheduler,
		chain: middleware.Chain(
			middleware.Logging(logger),
			middleware.Recover(logger),
			middleware.Throttle(orch),
		),
		handlers: hs,
		logger:   logger,
		poll:     100 * time.Millisecond,
	}
}

// run processes jobs until every one of them has executed, successfully or
// not, or ctx is done.
func (s *simulation) run(ctx context.Context, jobs []*queuethrottle.Job, workers int) error {
	total := int64(len(jobs))
	s.queue = make(chan *queuethrottle.Job, len(jobs))
	for _, j := range jobs {
		s.queue <- j
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := pool.New().WithContext(ctx)
	for i := 0; i < workers; i++ {
		p.Go(s.work)
	}
	p.Go(s.requeue)
	p.Go(func(ctx context.Context) error {
		ticker := time.NewTicker(s.poll)
		defer ticker.Stop()
		for {
			if s.succeeded.Load()+s.failed.Load() >= total {
				cancel()
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	if err := p.Wait(); err != nil {
		return err
	}
	if done := s.succeeded.Load() + s.failed.Load(); done < total {
		return fmt.Errorf("stopped with %d of %d jobs executed: %w", done, total, context.Cause(ctx))
	}
	return nil
}

func (s *simulation) work(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case job := <-s.queue:
			s.process(ctx, job)
		}
	}
}

func (s *simulation) process(ctx context.Context, job *queuethrottle.Job) {
	h, ok := s.handlers[job.Class]
	if !ok {
		s.logger.Error().Str("job_type", job.Class).Msg("no handler registered")
		s.failed.Add(1)
		return
	}

	err := s.chain(ctx, job, func(ctx context.Context) error {
		return h(ctx, job.Args)
	})
	switch {
	case middleware.IsDeferred(err):
		s.deferrals.Add(1)
	case err != nil:
		s.failed.Add(1)
	default:
		s.succeeded.Add(1)
	}
}

func (s *simulation) requeue(ctx context.Context) error {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			for _, entry := range s.scheduler.Due(now) {
				job := entry.Job
				select {
				case s.queue <- &job:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}
