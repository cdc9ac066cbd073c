package main

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/queuethrottle/cmd/demo/handlers"
	"github.com/yourusername/queuethrottle/pkg/queuethrottle"
)

func newTestSimulation(t *testing.T) *simulation {
	t.Helper()

	config := queuethrottle.NewConfig()
	config.RetryDelaySeconds = 0
	require.NoError(t, config.SetQueueLimit("mailers", 1))

	registry := queuethrottle.NewRegistry()
	registry.MustRegister("SyncAccountJob", queuethrottle.Concurrency(1, queuethrottle.KeyFromArg(0)))

	scheduler := queuethrottle.NewMemoryScheduler()
	orch, err := queuethrottle.New(
		queuethrottle.WithConfig(config),
		queuethrottle.WithRegistry(registry),
		queuethrottle.WithScheduler(scheduler),
	)
	require.NoError(t, err)

	sim := newSimulation(orch, scheduler, handlers.New(5*time.Millisecond), zerolog.Nop())
	sim.poll = 5 * time.Millisecond
	return sim
}

func TestSimulation_RunsEveryJob(t *testing.T) {
	sim := newTestSimulation(t)

	jobs := []*queuethrottle.Job{
		{ID: "1", Queue: "mailers", Class: "WelcomeMailer", Args: []any{"u1"}},
		{ID: "2", Queue: "mailers", Class: "WelcomeMailer", Args: []any{"u2"}},
		{ID: "3", Queue: "mailers", Class: "WelcomeMailer", Args: []any{"u3"}},
		{ID: "4", Queue: "default", Class: "SyncAccountJob", Args: []any{"acct-1"}},
		{ID: "5", Queue: "default", Class: "SyncAccountJob", Args: []any{"acct-1"}},
		{ID: "6", Queue: "reports", Class: "BuildReport", Args: []any{"corrupt"}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, sim.run(ctx, jobs, 4))
	assert.Equal(t, int64(5), sim.succeeded.Load())
	assert.Equal(t, int64(1), sim.failed.Load())
}

func TestSimulation_UnknownClassFails(t *testing.T) {
	sim := newTestSimulation(t)

	jobs := []*queuethrottle.Job{{ID: "1", Queue: "default", Class: "Missing"}}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, sim.run(ctx, jobs, 1))
	assert.Equal(t, int64(1), sim.failed.Load())
	assert.Zero(t, sim.succeeded.Load())
}

func TestSimulation_ReportsUnfinishedJobs(t *testing.T) {
	sim := newTestSimulation(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := sim.run(ctx, []*queuethrottle.Job{{ID: "1", Queue: "default", Class: "WelcomeMailer"}}, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "0 of 1")
}

func TestDemoJobs(t *testing.T) {
	jobs := demoJobs(8)
	require.Len(t, jobs, 8)

	classes := map[string]int{}
	for _, j := range jobs {
		assert.NotEmpty(t, j.ID)
		classes[j.Class]++
	}
	assert.Equal(t, map[string]int{
		"WelcomeMailer":     2,
		"SyncAccountJob":    2,
		"CallPartnerAPIJob": 2,
		"BuildReport":       2,
	}, classes)
}

func TestDemoRegistry(t *testing.T) {
	r := demoRegistry()
	assert.Equal(t, []string{"CallPartnerAPIJob", "SyncAccountJob"}, r.JobTypes())
	require.NoError(t, demoConfig().Validate())
}
