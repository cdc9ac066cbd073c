package queuethrottle

import (
	"fmt"
	"time"

	"github.com/yourusername/queuethrottle/core"
)

// ThrottleSpec declares how executions of one job type are throttled.
// At most one of Concurrency and Rate may be set; a spec with neither set
// means the job type is unrestricted.
type ThrottleSpec struct {
	Concurrency *ConcurrencyLimit
	Rate        *RateLimit
}

// ConcurrencyLimit caps how many jobs of a scope may run at the same time.
type ConcurrencyLimit struct {
	Limit int
	Key   KeyResolver
}

// RateLimit caps how many jobs of a scope may start within a fixed window.
type RateLimit struct {
	Limit int
	// Period is the window length. Zero means one minute.
	Period time.Duration
	Key    KeyResolver
}

// Concurrency returns a spec allowing at most limit in-flight jobs per scope.
func Concurrency(limit int, key KeyResolver) ThrottleSpec {
	return ThrottleSpec{Concurrency: &ConcurrencyLimit{Limit: limit, Key: key}}
}

// Rate returns a spec allowing at most limit job starts per scope and window.
func Rate(limit int, period time.Duration, key KeyResolver) ThrottleSpec {
	return ThrottleSpec{Rate: &RateLimit{Limit: limit, Period: period, Key: key}}
}

// IsZero reports whether the spec declares no throttle.
func (s ThrottleSpec) IsZero() bool {
	return s.Concurrency == nil && s.Rate == nil
}

// Validate checks the spec. Invalid declarations are rejected, never coerced.
func (s ThrottleSpec) Validate() error {
	if s.Concurrency != nil && s.Rate != nil {
		return ErrConflictingThrottle
	}

	if c := s.Concurrency; c != nil {
		if c.Limit <= 0 {
			return fmt.Errorf("concurrency: %w, got %d", ErrInvalidLimit, c.Limit)
		}
		if c.Key.IsZero() {
			return fmt.Errorf("concurrency: %w", ErrMissingKeyResolver)
		}
	}

	if r := s.Rate; r != nil {
		if r.Limit <= 0 {
			return fmt.Errorf("rate: %w, got %d", ErrInvalidLimit, r.Limit)
		}
		if r.Period < 0 || r.Period%time.Second != 0 {
			return fmt.Errorf("rate: %w, got %s", ErrInvalidPeriod, r.Period)
		}
		if r.Key.IsZero() {
			return fmt.Errorf("rate: %w", ErrMissingKeyResolver)
		}
	}
	return nil
}

// WindowPeriod returns the effective window length.
func (r RateLimit) WindowPeriod() time.Duration {
	if r.Period <= 0 {
		return core.DefaultRatePeriod
	}
	return r.Period
}

// ThrottleConfig is the declarative form of a ThrottleSpec.
//
//	throttles:
//	  SyncAccountJob:
//	    concurrency:
//	      limit: 2
//	      key: field:account_id
//	  CallPartnerAPIJob:
//	    rate:
//	      limit: 100
//	      period: 60
//	      key: arg:0
type ThrottleConfig struct {
	Concurrency *ConcurrencyConfig `yaml:"concurrency,omitempty" mapstructure:"concurrency"`
	Rate        *RateConfig        `yaml:"rate,omitempty" mapstructure:"rate"`
}

type ConcurrencyConfig struct {
	Limit int    `yaml:"limit" mapstructure:"limit"`
	Key   string `yaml:"key" mapstructure:"key"`
}

type RateConfig struct {
	Limit         int    `yaml:"limit" mapstructure:"limit"`
	PeriodSeconds int    `yaml:"period,omitempty" mapstructure:"period"`
	Key           string `yaml:"key" mapstructure:"key"`
}

// Spec converts the declaration into a validated ThrottleSpec.
func (tc ThrottleConfig) Spec() (ThrottleSpec, error) {
	var spec ThrottleSpec

	if c := tc.Concurrency; c != nil {
		key, err := ParseKeyResolver(c.Key)
		if err != nil {
			return ThrottleSpec{}, err
		}
		spec.Concurrency = &ConcurrencyLimit{Limit: c.Limit, Key: key}
	}

	if r := tc.Rate; r != nil {
		key, err := ParseKeyResolver(r.Key)
		if err != nil {
			return ThrottleSpec{}, err
		}
		if r.PeriodSeconds < 0 {
			return ThrottleSpec{}, fmt.Errorf("rate: %w, got %ds", ErrInvalidPeriod, r.PeriodSeconds)
		}
		spec.Rate = &RateLimit{
			Limit:  r.Limit,
			Period: time.Duration(r.PeriodSeconds) * time.Second,
			Key:    key,
		}
	}

	if err := spec.Validate(); err != nil {
		return ThrottleSpec{}, err
	}
	return spec, nil
}
