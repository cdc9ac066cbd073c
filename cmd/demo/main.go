// Command demo runs a self-contained worker simulation: jobs flow through
// the middleware chain, the admission gates defer what does not fit, and
// deferred jobs come back once their retry delay has passed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/yourusername/queuethrottle/api"
	"github.com/yourusername/queuethrottle/cmd/demo/handlers"
	"github.com/yourusername/queuethrottle/metrics"
	"github.com/yourusername/queuethrottle/pkg/queuethrottle"
)

func main() {
	workers := flag.Int("workers", 6, "number of worker goroutines")
	jobCount := flag.Int("jobs", 40, "number of jobs to enqueue")
	delay := flag.Duration("delay", 200*time.Millisecond, "base duration of a simulated job")
	timeout := flag.Duration("timeout", 2*time.Minute, "give up after this long")
	adminAddr := flag.String("admin", "", "serve the admin API on this address while running, e.g. :8081")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger().
		Level(zerolog.InfoLevel)

	scheduler := queuethrottle.NewMemoryScheduler()
	stats := metrics.NewMetrics()

	orch, err := queuethrottle.New(
		queuethrottle.WithConfig(demoConfig()),
		queuethrottle.WithRegistry(demoRegistry()),
		queuethrottle.WithScheduler(scheduler),
		queuethrottle.WithLogger(logger),
		queuethrottle.WithRecorder(stats),
		queuethrottle.WithWorkerID("demo"),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("build orchestrator")
	}

	if *adminAddr != "" {
		stop := serveAdmin(*adminAddr, orch, stats, logger)
		defer stop()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	sim := newSimulation(orch, scheduler, handlers.New(*delay), logger)
	start := time.Now()
	runErr := sim.run(ctx, demoJobs(*jobCount), *workers)

	snap := stats.GetSnapshot()
	logger.Info().
		Dur("elapsed", time.Since(start).Round(time.Millisecond)).
		Int64("succeeded", sim.succeeded.Load()).
		Int64("failed", sim.failed.Load()).
		Int64("deferrals", sim.deferrals.Load()).
		Int64("decisions", snap.TotalDecisions).
		Msg("simulation finished")
	for _, q := range snap.Queues {
		logger.Info().
			Str("queue", q.Name).
			Int64("executed", q.Executed).
			Int64("deferred_by_queue_capacity", q.DeferredByQueue).
			Int64("deferred_by_job_throttle", q.DeferredByThrottle).
			Msg("queue summary")
	}

	if runErr != nil {
		logger.Error().Err(runErr).Msg("simulation incomplete")
		os.Exit(1)
	}
}

func demoConfig() *queuethrottle.Config {
	config := queuethrottle.NewConfig()
	config.KeyPrefix = "demo"
	config.RetryDelaySeconds = 1
	config.Limits = map[string]int{
		"mailers": 2,
		"reports": 1,
	}
	return config
}

func demoRegistry() *queuethrottle.Registry {
	r := queuethrottle.NewRegistry()
	r.MustRegister("SyncAccountJob", queuethrottle.Concurrency(1, queuethrottle.KeyFromArg(0)))
	r.MustRegister("CallPartnerAPIJob", queuethrottle.Rate(5, 2*time.Second, queuethrottle.KeyFromField("api_key")))
	return r
}

// demoJobs cycles through the job classes so that every gate gets exercised.
func demoJobs(n int) []*queuethrottle.Job {
	jobs := make([]*queuethrottle.Job, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("job-%03d", i)
		var j *queuethrottle.Job
		switch i % 4 {
		case 0:
			j = &queuethrottle.Job{Queue: "mailers", Class: "WelcomeMailer", Args: []any{fmt.Sprintf("user-%d", i)}}
		case 1:
			j = &queuethrottle.Job{Queue: "default", Class: "SyncAccountJob", Args: []any{fmt.Sprintf("acct-%d", i%3)}}
		case 2:
			j = &queuethrottle.Job{Queue: "default", Class: "CallPartnerAPIJob", Args: []any{map[string]any{"api_key": "partner-a"}}}
		default:
			report := fmt.Sprintf("report-%d", i)
			if i%20 == 3 {
				report = "corrupt"
			}
			j = &queuethrottle.Job{Queue: "reports", Class: "BuildReport", Args: []any{report}}
		}
		j.ID = id
		jobs = append(jobs, j)
	}
	return jobs
}

func serveAdmin(addr string, orch *queuethrottle.Orchestrator, stats *metrics.Metrics, logger zerolog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/", api.NewHandler(orch))
	mux.Handle("/stats", api.NewStatsHandler(stats))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info().Str("addr", addr).Msg("admin API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("admin server error")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
