package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/stratadb/strata/internal/extract"
	"github.com/stratadb/strata/internal/storage"
	"github.com/stratadb/strata/pkg/types"
)

// ExtractConfig describes one extraction run.
type ExtractConfig struct {
	// DSN is the relational source, scheme-prefixed (sqlite3://, mysql://).
	DSN string

	// Table is the source table to stream.
	Table string

	// Output is the dataset root: a directory or s3://bucket/prefix.
	Output string

	// PartitionBy lists the partition-key columns, reserved time keys
	// included.
	PartitionBy []string

	// TimestampColumn orders the rows and feeds the reserved time keys.
	TimestampColumn string

	// FlushRows overrides the per-partition flush threshold when positive.
	FlushRows int

	// S3 applies when Output uses the s3 scheme.
	S3 storage.S3Config
}

// RunExtract streams the source table into Hive-partitioned parquet files
// under the output root.
func RunExtract(ctx context.Context, cfg ExtractConfig, log *zap.Logger) (extract.Summary, error) {
	if log == nil {
		log = zap.NewNop()
	}

	scheme, root := storage.ParseRoot(cfg.Output)
	var store storage.ObjectStore
	if scheme == storage.SchemeS3 {
		bucket, key := storage.SplitBucket(root)
		s3cfg := cfg.S3
		if s3cfg.Bucket == "" {
			s3cfg.Bucket = bucket
		}
		root = key
		s3Store, err := storage.NewS3Store(ctx, s3cfg)
		if err != nil {
			return extract.Summary{}, err
		}
		store = s3Store
	} else {
		store = storage.NewLocalStore()
	}

	src, err := extract.OpenSQL(ctx, cfg.DSN, cfg.Table, cfg.TimestampColumn)
	if err != nil {
		return extract.Summary{}, err
	}
	defer src.Close()

	writer, err := extract.NewPartitionWriter(extract.WriterConfig{
		Store: store,
		Root:  root,
		Spec: types.PartitionSpec{
			Columns:         cfg.PartitionBy,
			TimestampColumn: cfg.TimestampColumn,
		},
		Schema:    src.Schema(),
		FlushRows: cfg.FlushRows,
		Logger:    log,
	})
	if err != nil {
		return extract.Summary{}, err
	}

	log.Info("starting extraction",
		zap.String("table", cfg.Table),
		zap.String("output", cfg.Output),
		zap.Strings("partition_by", cfg.PartitionBy))
	return extract.Run(ctx, src, writer, log)
}
