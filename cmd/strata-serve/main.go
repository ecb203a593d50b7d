// Package main implements the strata-serve binary.
// It registers partitioned datasets, warms a byte cache over their object
// store, and serves SQL queries over HTTP.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/stratadb/strata/internal/app"
	"github.com/stratadb/strata/internal/config"
	"github.com/stratadb/strata/internal/observability"
)

// stringList collects repeated flag values.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	var (
		configFile    string
		listen        string
		metricsListen string
		cacheBytes    int64
		resultCache   int
		tableSpecs    stringList
	)
	flag.StringVar(&configFile, "config", "", "YAML configuration file")
	flag.StringVar(&listen, "listen", "", "Query API address")
	flag.StringVar(&metricsListen, "metrics-listen", "", "Prometheus exposition address")
	flag.Int64Var(&cacheBytes, "cache-bytes", 0, "Byte cache capacity")
	flag.IntVar(&resultCache, "result-cache", 0, "Result cache entries (0 = disabled)")
	flag.Var(&tableSpecs, "table-spec", "Table registration name=root[:cols] (repeatable)")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to load .env: %v", err)
	}

	cfg := config.DefaultConfig()
	if configFile != "" {
		if err := config.LoadFromFile(cfg, configFile); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	config.LoadFromEnv(cfg)

	// Flags win over environment and file.
	if listen != "" {
		cfg.Listen = listen
	}
	if metricsListen != "" {
		cfg.MetricsListen = metricsListen
	}
	if cacheBytes > 0 {
		cfg.CacheBytes = cacheBytes
	}
	if resultCache > 0 {
		cfg.ResultCacheEntries = resultCache
	}
	if len(tableSpecs) > 0 {
		cfg.TableSpecs = tableSpecs
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	srv, err := app.NewServe(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}
