package queuethrottle

import (
	"github.com/yourusername/queuethrottle/pkg/queuethrottle"
)

// Re-export main types for convenience
type (
	Orchestrator = queuethrottle.Orchestrator
	Option       = queuethrottle.Option
	Config       = queuethrottle.Config
	Job          = queuethrottle.Job
	Work         = queuethrottle.Work
	Result       = queuethrottle.Result
	ThrottleSpec = queuethrottle.ThrottleSpec
	KeyResolver  = queuethrottle.KeyResolver
	Scheduler    = queuethrottle.Scheduler
)

var (
	// New creates an orchestrator from options.
	New = queuethrottle.New

	NewConfig      = queuethrottle.NewConfig
	WithConfig     = queuethrottle.WithConfig
	WithConfigFile = queuethrottle.WithConfigFile
	WithStore      = queuethrottle.WithStore
	WithScheduler  = queuethrottle.WithScheduler
	Concurrency    = queuethrottle.Concurrency
	Rate           = queuethrottle.Rate
	KeyFromArg     = queuethrottle.KeyFromArg
	KeyFromField   = queuethrottle.KeyFromField
)
