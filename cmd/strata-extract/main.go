// Package main implements the strata-extract binary.
// It streams a relational table into Hive-partitioned parquet files under a
// local directory or an S3 prefix.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/stratadb/strata/internal/app"
	"github.com/stratadb/strata/internal/config"
	"github.com/stratadb/strata/internal/observability"
	"github.com/stratadb/strata/internal/storage"
)

// Config holds the extraction run configuration.
type Config struct {
	Table        string
	Output       string
	PartitionBy  stringList
	TimestampCol string
	FlushRows    int
	Print        bool
}

// stringList collects repeated flag values.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	cfg := parseFlags()

	// Source credentials come from the environment, never from flags.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to load .env: %v", err)
	}
	dsn := os.Getenv("STRATA_SOURCE_DSN")
	if dsn == "" {
		log.Fatalf("STRATA_SOURCE_DSN is not set")
	}

	logger, err := observability.NewLogger(config.LogConfig{
		Level: os.Getenv("STRATA_LOG_LEVEL"),
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	s3cfg := storage.S3Config{
		Bucket:   os.Getenv("STRATA_S3_BUCKET"),
		Region:   os.Getenv("STRATA_S3_REGION"),
		Endpoint: os.Getenv("STRATA_S3_ENDPOINT"),
	}

	summary, err := app.RunExtract(context.Background(), app.ExtractConfig{
		DSN:             dsn,
		Table:           cfg.Table,
		Output:          cfg.Output,
		PartitionBy:     cfg.PartitionBy,
		TimestampColumn: cfg.TimestampCol,
		FlushRows:       cfg.FlushRows,
		S3:              s3cfg,
	}, logger)
	if err != nil {
		logger.Error("extraction failed", zap.Error(err))
		os.Exit(1)
	}

	if cfg.Print {
		fmt.Printf("extracted %d rows into %d files\n", summary.Rows, summary.Files)
	}
}

func parseFlags() Config {
	cfg := Config{}

	flag.StringVar(&cfg.Table, "table", "", "Source table to extract")
	flag.StringVar(&cfg.Output, "output", "", "Dataset root: directory or s3://bucket/prefix")
	flag.Var(&cfg.PartitionBy, "partition-by", "Partition column (repeatable)")
	flag.StringVar(&cfg.TimestampCol, "timestamp-col", "", "Timestamp column ordering rows and feeding year/month/day/hour keys")
	flag.IntVar(&cfg.FlushRows, "flush-rows", 0, "Rows buffered per partition before a file is flushed (0 = default)")
	flag.BoolVar(&cfg.Print, "print", false, "Print the run summary on success")

	flag.Parse()

	if cfg.Table == "" {
		log.Fatalf("-table is required")
	}
	if cfg.Output == "" {
		log.Fatalf("-output is required")
	}
	if len(cfg.PartitionBy) == 0 {
		log.Fatalf("at least one -partition-by column is required")
	}

	return cfg
}
