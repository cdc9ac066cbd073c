package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "QUEUETHROTTLE"

// ServerConfig holds process settings. Queue limits and throttles live in a
// separate file read by queuethrottle.LoadConfigFromFile, because viper
// lowercases map keys and queue and job names are case-sensitive.
type ServerConfig struct {
	Server   HTTPConfig     `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Throttle ThrottleSource `mapstructure:"throttle"`
}

type HTTPConfig struct {
	Addr                string `mapstructure:"addr"`
	LogLevel            string `mapstructure:"log_level"`
	ShutdownTimeoutSecs int    `mapstructure:"shutdown_timeout"`
}

type RedisConfig struct {
	// Addr empty selects the in-memory store.
	Addr        string `mapstructure:"addr"`
	Password    string `mapstructure:"password"`
	DB          int    `mapstructure:"db"`
	ScheduleKey string `mapstructure:"schedule_key"`
}

type ThrottleSource struct {
	ConfigFile string `mapstructure:"config_file"`
	WorkerID   string `mapstructure:"worker_id"`
}

func (c HTTPConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSecs) * time.Second
}

// LoadServerConfig reads queue_throttle_server.yaml from the working
// directory or ./config, or the file at path if given. Every key can be
// overridden from the environment, e.g. QUEUETHROTTLE_REDIS_ADDR.
func LoadServerConfig(path string) (*ServerConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(".", "config"))
		v.SetConfigName("queue_throttle_server")
		v.SetConfigType("yaml")
	}

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", 10)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.schedule_key", "schedule")
	v.SetDefault("throttle.config_file", "queue_throttle.yml")
	v.SetDefault("throttle.worker_id", "")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read server config: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode server config: %w", err)
	}
	return &cfg, nil
}
