package queuethrottle

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultKeyPrefix   = "queue_throttled"
	DefaultThrottleTTL = 3600 // seconds
	DefaultLockTTL     = 300  // seconds
	DefaultRetryDelay  = 5    // seconds
)

// Config holds queue capacity limits and the settings shared by all gates.
// Build it once at startup and hand it to New; it is read-only afterwards.
type Config struct {
	// Limits maps a queue name to the number of its jobs that may be in flight.
	Limits map[string]int `yaml:"limits" mapstructure:"limits"`

	// KeyPrefix namespaces every counter key in the store.
	KeyPrefix string `yaml:"key_prefix,omitempty" mapstructure:"key_prefix"`

	// ThrottleTTLSeconds is the expiry refreshed on queue and concurrency counters.
	ThrottleTTLSeconds int `yaml:"throttle_ttl,omitempty" mapstructure:"throttle_ttl"`

	// LockTTLSeconds is the expiry of per-acquisition lease keys.
	LockTTLSeconds int `yaml:"lock_ttl,omitempty" mapstructure:"lock_ttl"`

	// RetryDelaySeconds is how long a deferred job waits before it is retried.
	RetryDelaySeconds int `yaml:"retry_delay,omitempty" mapstructure:"retry_delay"`

	// Throttles declares per-job-type throttles. Job types may also be
	// registered in code on a Registry.
	Throttles map[string]ThrottleConfig `yaml:"throttles,omitempty" mapstructure:"throttles"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Limits:             make(map[string]int),
		KeyPrefix:          DefaultKeyPrefix,
		ThrottleTTLSeconds: DefaultThrottleTTL,
		LockTTLSeconds:     DefaultLockTTL,
		RetryDelaySeconds:  DefaultRetryDelay,
	}
}

// ParseConfig parses YAML configuration and applies defaults.
//
//	limits:
//	  mailers: 5
//	  reports: 1
//	retry_delay: 10
//	throttles:
//	  SyncAccountJob:
//	    concurrency: {limit: 2, key: "field:account_id"}
func ParseConfig(data []byte) (*Config, error) {
	config := NewConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse YAML: %v", ErrInvalidConfig, err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfigFromFile loads configuration from a YAML file.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", ErrInvalidConfig, err)
	}
	return ParseConfig(data)
}

func (c *Config) applyDefaults() {
	if c.Limits == nil {
		c.Limits = make(map[string]int)
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = DefaultKeyPrefix
	}
	if c.ThrottleTTLSeconds == 0 {
		c.ThrottleTTLSeconds = DefaultThrottleTTL
	}
	if c.LockTTLSeconds == 0 {
		c.LockTTLSeconds = DefaultLockTTL
	}
	if c.RetryDelaySeconds == 0 {
		c.RetryDelaySeconds = DefaultRetryDelay
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	for queue, limit := range c.Limits {
		if limit <= 0 {
			return fmt.Errorf("%w: queue limit for %q: %w, got %d", ErrInvalidConfig, queue, ErrInvalidLimit, limit)
		}
	}
	if c.KeyPrefix == "" {
		return fmt.Errorf("%w: key prefix cannot be empty", ErrInvalidConfig)
	}
	if c.ThrottleTTLSeconds <= 0 {
		return fmt.Errorf("%w: throttle_ttl must be positive, got %d", ErrInvalidConfig, c.ThrottleTTLSeconds)
	}
	if c.LockTTLSeconds <= 0 {
		return fmt.Errorf("%w: lock_ttl must be positive, got %d", ErrInvalidConfig, c.LockTTLSeconds)
	}
	if c.RetryDelaySeconds < 0 {
		return fmt.Errorf("%w: retry_delay cannot be negative, got %d", ErrInvalidConfig, c.RetryDelaySeconds)
	}
	for jobType, tc := range c.Throttles {
		if jobType == "" {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrEmptyJobType)
		}
		if _, err := tc.Spec(); err != nil {
			return fmt.Errorf("%w: throttle for %s: %w", ErrInvalidConfig, jobType, err)
		}
	}
	return nil
}

// QueueLimit returns the capacity configured for a queue.
func (c *Config) QueueLimit(queue string) (int, bool) {
	limit, ok := c.Limits[queue]
	return limit, ok
}

// SetQueueLimit sets the capacity for a queue.
func (c *Config) SetQueueLimit(queue string, limit int) error {
	if limit <= 0 {
		return fmt.Errorf("%w: queue limit for %q: %w, got %d", ErrInvalidConfig, queue, ErrInvalidLimit, limit)
	}
	if c.Limits == nil {
		c.Limits = make(map[string]int)
	}
	c.Limits[queue] = limit
	return nil
}

// QueueNames returns the configured queue names in sorted order.
func (c *Config) QueueNames() []string {
	names := make([]string, 0, len(c.Limits))
	for name := range c.Limits {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Config) ThrottleTTL() time.Duration {
	return time.Duration(c.ThrottleTTLSeconds) * time.Second
}

func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}
