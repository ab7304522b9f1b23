// Package config loads learnsync settings from an optional YAML file and
// LEARNSYNC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/roach88/learnsync/internal/model"
	"github.com/roach88/learnsync/internal/remote"
)

// EnvPrefix prefixes every environment override, e.g. LEARNSYNC_STORE_PATH.
const EnvPrefix = "LEARNSYNC"

// ErrInvalid wraps every validation failure returned by Load.
var ErrInvalid = errors.New("invalid configuration")

// DefaultFile is read from the working directory when no file is named.
const DefaultFile = "learnsync.yaml"

// Config is the complete learnsync configuration.
type Config struct {
	Store  StoreConfig       `mapstructure:"store"`
	Sync   SyncConfig        `mapstructure:"sync"`
	Remote remote.HTTPConfig `mapstructure:"remote"`
	Quota  QuotaConfig       `mapstructure:"quota"`
	Log    LogConfig         `mapstructure:"log"`
}

// StoreConfig locates the local database.
type StoreConfig struct {
	Path string `mapstructure:"path"`

	// ByteBudget caps stored bytes; 0 disables the check.
	ByteBudget int64 `mapstructure:"byte_budget"`
}

// SyncConfig holds the defaults of every sync cycle.
type SyncConfig struct {
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	Policy        model.Policy  `mapstructure:"policy"`
	HistoryLimit  int           `mapstructure:"history_limit"`

	// Interval is the period of the background scheduler.
	Interval time.Duration `mapstructure:"interval"`
}

// Quota estimator names.
const (
	EstimatorStore = "store"
	EstimatorDisk  = "disk"
	EstimatorNone  = "none"
)

// QuotaConfig selects how storage usage is estimated.
type QuotaConfig struct {
	Estimator string `mapstructure:"estimator"`
}

// LogConfig configures slog output and file rotation.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.path", "learnsync.db")
	v.SetDefault("store.byte_budget", int64(5*1024*1024*1024))

	v.SetDefault("sync.retry_attempts", 3)
	v.SetDefault("sync.retry_delay", "1s")
	v.SetDefault("sync.policy", string(model.PolicyManual))
	v.SetDefault("sync.history_limit", 50)
	v.SetDefault("sync.interval", "30s")

	v.SetDefault("remote.base_url", "")
	v.SetDefault("remote.timeout", "30s")
	v.SetDefault("remote.breaker.max_requests", 1)
	v.SetDefault("remote.breaker.interval", "30s")
	v.SetDefault("remote.breaker.timeout", "60s")
	v.SetDefault("remote.breaker.failure_ratio", 0.5)
	v.SetDefault("remote.breaker.min_requests", 5)

	v.SetDefault("quota.estimator", EstimatorStore)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
}

// Default returns the configuration with no file and no environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: decode defaults: %v", err))
	}
	return &cfg
}

// Load reads path (or DefaultFile when path is empty and the file exists),
// applies environment overrides and validates the result.
// A named file that does not exist is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file := path
	if file == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			file = DefaultFile
		}
	}
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return &cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Store.Path == "" {
		add("store.path is required")
	}
	if c.Store.ByteBudget < 0 {
		add("store.byte_budget must be >= 0, got %d", c.Store.ByteBudget)
	}

	if c.Sync.RetryAttempts < 1 {
		add("sync.retry_attempts must be >= 1, got %d", c.Sync.RetryAttempts)
	}
	if c.Sync.RetryDelay < 0 {
		add("sync.retry_delay must be >= 0, got %s", c.Sync.RetryDelay)
	}
	if c.Sync.Policy != "" && !c.Sync.Policy.Valid() {
		add("sync.policy must be one of local, remote, merge, manual, got %q", c.Sync.Policy)
	}
	if c.Sync.HistoryLimit < 1 {
		add("sync.history_limit must be >= 1, got %d", c.Sync.HistoryLimit)
	}
	if c.Sync.Interval <= 0 {
		add("sync.interval must be > 0, got %s", c.Sync.Interval)
	}

	if c.Remote.Timeout < 0 {
		add("remote.timeout must be >= 0, got %s", c.Remote.Timeout)
	}
	if r := c.Remote.Breaker.FailureRatio; r < 0 || r > 1 {
		add("remote.breaker.failure_ratio must be within [0, 1], got %g", r)
	}

	switch c.Quota.Estimator {
	case EstimatorStore, EstimatorDisk, EstimatorNone:
	default:
		add("quota.estimator must be one of store, disk, none, got %q", c.Quota.Estimator)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		add("log.format must be text or json, got %q", c.Log.Format)
	}

	return errors.Join(errs...)
}
