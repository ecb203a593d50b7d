// Package config provides unified configuration for the Strata binaries.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stratadb/strata/internal/storage"
)

// Config holds the serving configuration. Precedence is flags over
// environment over file over defaults; the loaders below apply file then
// env, and the binaries overlay flags last.
type Config struct {
	// Listen is the query API address.
	Listen string `json:"listen" yaml:"listen"`

	// MetricsListen is the Prometheus exposition address.
	MetricsListen string `json:"metrics_listen" yaml:"metrics_listen"`

	// TableSpecs are the `name=root[:cols]` registrations.
	TableSpecs []string `json:"tables" yaml:"tables"`

	// CacheBytes bounds the byte cache's resident size.
	CacheBytes int64 `json:"cache_bytes" yaml:"cache_bytes"`

	// CacheCompression snappy-compresses resident cache entries.
	CacheCompression bool `json:"cache_compression" yaml:"cache_compression"`

	// ResultCacheEntries enables the whole-result cache when positive.
	ResultCacheEntries int `json:"result_cache_entries" yaml:"result_cache_entries"`

	// HTTP timeouts.
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// S3 applies when any table root uses the s3 scheme.
	S3 storage.S3Config `json:"s3" yaml:"s3"`

	// Log configuration.
	Log LogConfig `json:"log" yaml:"log"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level"`

	// File, when set, writes rotated log files there instead of stderr.
	File string `json:"file" yaml:"file"`

	// MaxSizeMB caps one log file before rotation.
	MaxSizeMB int `json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups caps the number of rotated files kept.
	MaxBackups int `json:"max_backups" yaml:"max_backups"`
}

// DefaultConfig returns the serving defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:        ":8080",
		MetricsListen: ":9898",
		CacheBytes:    256 << 20,
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  60 * time.Second,
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
		},
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.CacheBytes <= 0 {
		return fmt.Errorf("cache_bytes must be positive, got %d", c.CacheBytes)
	}
	if len(c.TableSpecs) == 0 {
		return fmt.Errorf("at least one table spec is required")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}

// LoadFromFile overlays a YAML file onto the config.
func LoadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv overlays STRATA_-prefixed environment variables.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("STRATA_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("STRATA_METRICS_LISTEN"); v != "" {
		cfg.MetricsListen = v
	}
	if v := os.Getenv("STRATA_CACHE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.CacheBytes = n
		}
	}
	if v := os.Getenv("STRATA_CACHE_COMPRESSION"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.CacheCompression = b
		}
	}
	if v := os.Getenv("STRATA_RESULT_CACHE_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ResultCacheEntries = n
		}
	}
	if v := os.Getenv("STRATA_S3_BUCKET"); v != "" {
		cfg.S3.Bucket = v
	}
	if v := os.Getenv("STRATA_S3_REGION"); v != "" {
		cfg.S3.Region = v
	}
	if v := os.Getenv("STRATA_S3_ENDPOINT"); v != "" {
		cfg.S3.Endpoint = v
	}
	if v := os.Getenv("STRATA_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("STRATA_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
}
