// Command server runs the admin API for a queue throttling deployment:
// queue gate inspection and reset, JSON stats and Prometheus metrics.
// Gate state comes from the shared store; stats cover decisions made
// through this process.
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/yourusername/queuethrottle/api"
	"github.com/yourusername/queuethrottle/metrics"
	"github.com/yourusername/queuethrottle/pkg/queuethrottle"
	"github.com/yourusername/queuethrottle/store"
)

func main() {
	configPath := flag.String("config", "", "path to the server config file")
	flag.Parse()

	cfg, err := LoadServerConfig(*configPath)
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("load config")
	}

	logger := SetupLogger(cfg.Server.LogLevel)

	stats := metrics.NewMetrics()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.Multi{stats, metrics.NewPrometheus(reg)}

	orch, cleanup, err := buildOrchestrator(cfg, logger, recorder)
	if err != nil {
		logger.Fatal().Err(err).Msg("build orchestrator")
	}
	defer cleanup()

	mux := http.NewServeMux()
	mux.Handle("/", api.NewHandler(orch))
	mux.Handle("/stats", api.NewStatsHandler(stats))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           accessLog(logger)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Strs("queues", orch.QueueNames()).
			Strs("throttled_jobs", orch.Registry().JobTypes()).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("bye")
}

// buildOrchestrator wires the counter store and scheduler named in cfg.
func buildOrchestrator(cfg *ServerConfig, logger zerolog.Logger, recorder queuethrottle.Recorder) (*queuethrottle.Orchestrator, func(), error) {
	opts := []queuethrottle.Option{
		queuethrottle.WithLogger(logger),
		queuethrottle.WithRecorder(recorder),
		queuethrottle.WithWorkerID(cfg.Throttle.WorkerID),
	}

	if _, err := os.Stat(cfg.Throttle.ConfigFile); err == nil {
		opts = append(opts, queuethrottle.WithConfigFile(cfg.Throttle.ConfigFile))
	} else {
		logger.Warn().Str("file", cfg.Throttle.ConfigFile).Msg("throttle config not found, no queue limits configured")
	}

	var counters store.Store
	if cfg.Redis.Addr != "" {
		rs := store.NewRedisStore(store.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")

		counters = rs
		scheduler := queuethrottle.NewRedisScheduler(rs.Client()).WithKey(cfg.Redis.ScheduleKey)
		opts = append(opts, queuethrottle.WithScheduler(scheduler))
	} else {
		logger.Warn().Msg("using in-memory store, limits apply to this process only")
		counters = store.NewMemoryStore()
		opts = append(opts, queuethrottle.WithScheduler(queuethrottle.NewMemoryScheduler()))
	}
	opts = append(opts, queuethrottle.WithStore(counters))

	orch, err := queuethrottle.New(opts...)
	if err != nil {
		_ = counters.Close()
		return nil, nil, err
	}
	return orch, func() { _ = counters.Close() }, nil
}
