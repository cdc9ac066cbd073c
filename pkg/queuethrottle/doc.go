// Package queuethrottle provides admission control for background job workers.
//
// Before a job runs it must pass two independent gates:
//
//   - a queue capacity gate (QueueLimiter) that allows at most N jobs of a
//     named queue to be in flight at once, and
//   - a job throttle (JobThrottler) declared per job type, either a
//     concurrency cap or a fixed-window rate cap, partitioned by a scope
//     derived from the job's arguments (per user, per API key, ...).
//
// Counters live in a shared store (see package store) so that every worker
// process sees the same counts.
//
// # Quick Start
//
//	config := queuethrottle.NewConfig()
//	config.SetQueueLimit("mailers", 5)
//
//	registry := queuethrottle.NewRegistry()
//	registry.MustRegister("SyncAccountJob",
//	    queuethrottle.Concurrency(2, queuethrottle.KeyFromArg(0)))
//	registry.MustRegister("CallPartnerAPIJob",
//	    queuethrottle.Rate(100, time.Minute, queuethrottle.KeyFromField("api_key")))
//
//	orch, err := queuethrottle.New(
//	    queuethrottle.WithConfig(config),
//	    queuethrottle.WithRegistry(registry),
//	    queuethrottle.WithScheduler(queuethrottle.NewRedisScheduler(client)),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := orch.AdmitAndRun(ctx, job, func(ctx context.Context) error {
//	    return perform(ctx, job)
//	})
//	if res.Deferred() {
//	    // not executed; already rescheduled for res.RetryAt. With
//	    // ReasonStoreUnavailable, err wraps ErrStoreFailed.
//	}
//
// # Ordering and release
//
// The queue gate is checked first. If the job throttle then denies, the
// queue slot is returned immediately. Once admitted, both slots are released
// when work returns or panics.
//
// # Rate windows
//
// Rate throttles count in fixed windows aligned to the Unix epoch. Up to
// twice the limit can start across a window boundary.
//
// # Configuration
//
// Example YAML configuration:
//
//	limits:
//	  mailers: 5
//	  reports: 1
//	key_prefix: queue_throttled
//	throttle_ttl: 3600
//	lock_ttl: 300
//	retry_delay: 5
//	throttles:
//	  SyncAccountJob:
//	    concurrency:
//	      limit: 2
//	      key: "arg:0"
package queuethrottle
