package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Listen != ":8080" || cfg.MetricsListen != ":9898" {
		t.Fatalf("addresses %s %s", cfg.Listen, cfg.MetricsListen)
	}
	if cfg.CacheBytes != 256<<20 {
		t.Fatalf("cache bytes %d", cfg.CacheBytes)
	}
	if cfg.ResultCacheEntries != 0 {
		t.Fatal("result cache must default to off")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strata.yaml")
	content := `
listen: ":9090"
cache_bytes: 1048576
cache_compression: true
tables:
  - users=/data/users:name,year
read_timeout: 10s
s3:
  bucket: my-bucket
  region: eu-north-1
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	if err := LoadFromFile(cfg, path); err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":9090" || cfg.CacheBytes != 1<<20 || !cfg.CacheCompression {
		t.Fatalf("cfg %+v", cfg)
	}
	if len(cfg.TableSpecs) != 1 || cfg.TableSpecs[0] != "users=/data/users:name,year" {
		t.Fatalf("tables %v", cfg.TableSpecs)
	}
	if cfg.ReadTimeout != 10*time.Second {
		t.Fatalf("read timeout %v", cfg.ReadTimeout)
	}
	if cfg.S3.Bucket != "my-bucket" || cfg.S3.Region != "eu-north-1" {
		t.Fatalf("s3 %+v", cfg.S3)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log %+v", cfg.Log)
	}
	// Untouched values keep their defaults.
	if cfg.MetricsListen != ":9898" {
		t.Fatalf("metrics listen %s", cfg.MetricsListen)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STRATA_LISTEN", ":7070")
	t.Setenv("STRATA_CACHE_BYTES", "2048")
	t.Setenv("STRATA_RESULT_CACHE_ENTRIES", "16")
	t.Setenv("STRATA_S3_BUCKET", "env-bucket")
	t.Setenv("STRATA_LOG_LEVEL", "warn")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)
	if cfg.Listen != ":7070" || cfg.CacheBytes != 2048 {
		t.Fatalf("cfg %+v", cfg)
	}
	if cfg.ResultCacheEntries != 16 || cfg.S3.Bucket != "env-bucket" || cfg.Log.Level != "warn" {
		t.Fatalf("cfg %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.TableSpecs = []string{"users=/data/users"}
		return cfg
	}
	if err := valid().Validate(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no tables", func(c *Config) { c.TableSpecs = nil }},
		{"zero cache", func(c *Config) { c.CacheBytes = 0 }},
		{"empty listen", func(c *Config) { c.Listen = "" }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
