package queuethrottle

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/yourusername/queuethrottle/store"
)

// Option is a functional option for configuring an Orchestrator.
type Option func(*Orchestrator) error

// WithConfig sets the configuration. It is validated here and must not be
// modified afterwards.
func WithConfig(config *Config) Option {
	return func(o *Orchestrator) error {
		if config == nil {
			return fmt.Errorf("%w: config cannot be nil", ErrInvalidConfig)
		}
		if err := config.Validate(); err != nil {
			return err
		}
		o.config = config
		return nil
	}
}

// WithConfigFile loads configuration from a YAML file.
func WithConfigFile(path string) Option {
	return func(o *Orchestrator) error {
		config, err := LoadConfigFromFile(path)
		if err != nil {
			return err
		}
		o.config = config
		return nil
	}
}

// WithStore sets the counter store shared by every gate.
// If not provided, an in-memory store is used, which only limits within
// a single process.
func WithStore(s store.Store) Option {
	return func(o *Orchestrator) error {
		if s == nil {
			return fmt.Errorf("%w: store cannot be nil", ErrInvalidConfig)
		}
		o.store = s
		return nil
	}
}

// WithRegistry sets the registry job throttles are looked up in.
func WithRegistry(r *Registry) Option {
	return func(o *Orchestrator) error {
		if r == nil {
			return fmt.Errorf("%w: registry cannot be nil", ErrInvalidConfig)
		}
		o.registry = r
		return nil
	}
}

// WithScheduler sets where deferred jobs are handed back for retry.
func WithScheduler(s Scheduler) Option {
	return func(o *Orchestrator) error {
		if s == nil {
			return ErrNoScheduler
		}
		o.scheduler = s
		return nil
	}
}

// WithLogger sets the logger. Default: disabled.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) error {
		o.logger = logger
		return nil
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) error {
		if r == nil {
			return fmt.Errorf("%w: recorder cannot be nil", ErrInvalidConfig)
		}
		o.recorder = r
		return nil
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) error {
		if now == nil {
			return fmt.Errorf("%w: clock cannot be nil", ErrInvalidConfig)
		}
		o.now = now
		return nil
	}
}

// WithWorkerID sets the identifier embedded in queue gate tokens.
// Default: a random UUID per gate.
func WithWorkerID(id string) Option {
	return func(o *Orchestrator) error {
		o.workerID = id
		return nil
	}
}
