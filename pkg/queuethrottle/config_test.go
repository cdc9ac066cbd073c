package queuethrottle

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	config := NewConfig()
	require.NotNil(t, config)

	assert.Equal(t, "queue_throttled", config.KeyPrefix)
	assert.Equal(t, time.Hour, config.ThrottleTTL())
	assert.Equal(t, 5*time.Minute, config.LockTTL())
	assert.Equal(t, 5*time.Second, config.RetryDelay())
	assert.NotNil(t, config.Limits)
	assert.NoError(t, config.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{
			name:   "defaults",
			mutate: func(c *Config) {},
		},
		{
			name:   "positive limits",
			mutate: func(c *Config) { c.Limits = map[string]int{"a": 1, "b": 10} },
		},
		{
			name:    "zero limit",
			mutate:  func(c *Config) { c.Limits = map[string]int{"a": 0} },
			wantErr: ErrInvalidLimit,
		},
		{
			name:    "negative limit",
			mutate:  func(c *Config) { c.Limits = map[string]int{"a": -3} },
			wantErr: ErrInvalidLimit,
		},
		{
			name:    "empty prefix",
			mutate:  func(c *Config) { c.KeyPrefix = "" },
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "zero throttle ttl",
			mutate:  func(c *Config) { c.ThrottleTTLSeconds = 0 },
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "zero lock ttl",
			mutate:  func(c *Config) { c.LockTTLSeconds = 0 },
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "negative retry delay",
			mutate:  func(c *Config) { c.RetryDelaySeconds = -1 },
			wantErr: ErrInvalidConfig,
		},
		{
			name:   "zero retry delay",
			mutate: func(c *Config) { c.RetryDelaySeconds = 0 },
		},
		{
			name: "conflicting throttle",
			mutate: func(c *Config) {
				c.Throttles = map[string]ThrottleConfig{"Job": {
					Concurrency: &ConcurrencyConfig{Limit: 1, Key: "arg:0"},
					Rate:        &RateConfig{Limit: 1, Key: "arg:0"},
				}}
			},
			wantErr: ErrConflictingThrottle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewConfig()
			tt.mutate(config)

			err := config.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestParseConfig(t *testing.T) {
	yaml := `
limits:
  mailers: 5
  reports: 1
key_prefix: "myapp:"
retry_delay: 10
throttles:
  SyncAccountJob:
    concurrency:
      limit: 2
      key: "field:account_id"
  CallPartnerAPIJob:
    rate:
      limit: 100
      period: 30
      key: "arg:0"
`
	config, err := ParseConfig([]byte(yaml))
	require.NoError(t, err)

	limit, ok := config.QueueLimit("mailers")
	assert.True(t, ok)
	assert.Equal(t, 5, limit)

	_, ok = config.QueueLimit("unknown")
	assert.False(t, ok)

	assert.Equal(t, []string{"mailers", "reports"}, config.QueueNames())
	assert.Equal(t, "myapp:", config.KeyPrefix)
	assert.Equal(t, 10*time.Second, config.RetryDelay())
	// Omitted values fall back to defaults.
	assert.Equal(t, time.Hour, config.ThrottleTTL())
	assert.Equal(t, 5*time.Minute, config.LockTTL())

	require.Len(t, config.Throttles, 2)
	spec, err := config.Throttles["CallPartnerAPIJob"].Spec()
	require.NoError(t, err)
	require.NotNil(t, spec.Rate)
	assert.Equal(t, 30*time.Second, spec.Rate.WindowPeriod())
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{"malformed", "limits: [", ErrInvalidConfig},
		{"zero limit", "limits:\n  mailers: 0\n", ErrInvalidLimit},
		{"bad resolver", "throttles:\n  Job:\n    concurrency:\n      limit: 1\n      key: \"bogus:x\"\n", ErrInvalidConfig},
		{"missing resolver", "throttles:\n  Job:\n    concurrency:\n      limit: 1\n", ErrMissingKeyResolver},
		{"negative period", "throttles:\n  Job:\n    rate:\n      limit: 1\n      period: -5\n      key: arg:0\n", ErrInvalidPeriod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue_throttle.yml")
	require.NoError(t, os.WriteFile(path, []byte("limits:\n  default: 3\n"), 0o644))

	config, err := LoadConfigFromFile(path)
	require.NoError(t, err)

	limit, ok := config.QueueLimit("default")
	assert.True(t, ok)
	assert.Equal(t, 3, limit)

	_, err = LoadConfigFromFile(filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfig_SetQueueLimit(t *testing.T) {
	config := &Config{}

	require.NoError(t, config.SetQueueLimit("mailers", 4))
	limit, ok := config.QueueLimit("mailers")
	assert.True(t, ok)
	assert.Equal(t, 4, limit)

	err := config.SetQueueLimit("mailers", 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	limit, _ = config.QueueLimit("mailers")
	assert.Equal(t, 4, limit, "rejected limit must not overwrite")
}
