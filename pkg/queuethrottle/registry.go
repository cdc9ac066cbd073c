package queuethrottle

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps job types to their throttle declarations.
// It is safe for concurrent use, and declarations may change at runtime.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]registration
	rev   uint64
}

// registration is one declaration. rev increases with every Register call,
// so holders of a derived throttler can tell that it is stale.
type registration struct {
	spec ThrottleSpec
	rev  uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]registration)}
}

// Register validates spec and attaches it to jobType, replacing any earlier
// declaration. Registering an empty spec removes the throttle.
func (r *Registry) Register(jobType string, spec ThrottleSpec) error {
	if jobType == "" {
		return ErrEmptyJobType
	}
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("%w: throttle for %s: %w", ErrInvalidConfig, jobType, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if spec.IsZero() {
		delete(r.specs, jobType)
		return nil
	}
	r.rev++
	r.specs[jobType] = registration{spec: spec, rev: r.rev}
	return nil
}

// MustRegister is like Register but panics on an invalid declaration.
// Intended for package-level job declarations.
func (r *Registry) MustRegister(jobType string, spec ThrottleSpec) {
	if err := r.Register(jobType, spec); err != nil {
		panic(err)
	}
}

// RegisterConfig registers every throttle declared in cfg.
func (r *Registry) RegisterConfig(cfg *Config) error {
	for jobType, tc := range cfg.Throttles {
		spec, err := tc.Spec()
		if err != nil {
			return fmt.Errorf("%w: throttle for %s: %w", ErrInvalidConfig, jobType, err)
		}
		if err := r.Register(jobType, spec); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the throttle declared for jobType.
func (r *Registry) Lookup(jobType string) (ThrottleSpec, bool) {
	reg, ok := r.lookup(jobType)
	return reg.spec, ok
}

func (r *Registry) lookup(jobType string) (registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.specs[jobType]
	return reg, ok
}

// JobTypes returns the throttled job types in sorted order.
func (r *Registry) JobTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
