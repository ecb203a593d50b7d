// Package app wires configuration into running Strata processes.
package app

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	apihttp "github.com/stratadb/strata/internal/api/http"
	"github.com/stratadb/strata/internal/cache"
	"github.com/stratadb/strata/internal/config"
	"github.com/stratadb/strata/internal/observability"
	"github.com/stratadb/strata/internal/query"
	"github.com/stratadb/strata/internal/registry"
	"github.com/stratadb/strata/internal/server"
	"github.com/stratadb/strata/internal/storage"
)

// ServeApp is the assembled serving process: one shared cached store, the
// registrations that survived startup, and the two listeners.
type ServeApp struct {
	Cache     *cache.CachedStore
	Registry  *registry.Registry
	Engine    *query.Engine
	ScanStats *observability.ScanStats

	log    *zap.Logger
	runner *server.Runner
}

// NewServe builds the serving process from configuration. The storage
// backend is chosen once, from the table roots' shared scheme, and every
// read flows through the size-bounded cache.
func NewServe(ctx context.Context, cfg *config.Config, log *zap.Logger) (*ServeApp, error) {
	specs := make([]registry.TableSpec, 0, len(cfg.TableSpecs))
	for _, raw := range cfg.TableSpecs {
		spec, err := registry.ParseTableSpec(raw)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}

	backend, specs, err := buildBackend(ctx, cfg, specs)
	if err != nil {
		return nil, err
	}

	var cacheOpts []cache.Option
	if cfg.CacheCompression {
		cacheOpts = append(cacheOpts, cache.WithCompression())
	}
	cached := cache.NewCachedStore(backend, cfg.CacheBytes, cacheOpts...)

	reg := registry.NewRegistry(cached, log)
	reg.RegisterAll(ctx, specs)
	if len(reg.Tables()) == 0 {
		log.Warn("no table registrations survived startup")
	}

	scanStats := observability.NewScanStats()
	engineOpts := []query.EngineOption{query.WithScanStats(scanStats)}
	if cfg.ResultCacheEntries > 0 {
		engineOpts = append(engineOpts, query.WithResultCache(cfg.ResultCacheEntries))
	}
	engine := query.NewEngine(cached, reg, log, engineOpts...)

	metricsHandler, err := apihttp.NewMetricsRouter(cache.NewStatsCollector(cached.Stats()))
	if err != nil {
		return nil, err
	}

	runner := server.NewRunner(log, cfg.WriteTimeout)
	runner.Add(&http.Server{
		Addr:         cfg.Listen,
		Handler:      apihttp.NewRouter(engine, reg, log),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	runner.Add(&http.Server{
		Addr:    cfg.MetricsListen,
		Handler: metricsHandler,
	})

	return &ServeApp{
		Cache:     cached,
		Registry:  reg,
		Engine:    engine,
		ScanStats: scanStats,
		log:       log,
		runner:    runner,
	}, nil
}

// Run blocks until shutdown.
func (a *ServeApp) Run(ctx context.Context) error {
	defer func() {
		for _, st := range a.ScanStats.Snapshot() {
			a.log.Info("table scan summary",
				zap.String("table", st.Table),
				zap.Int64("queries", st.Queries),
				zap.Int64("leaves_scanned", st.LeavesScanned),
				zap.Int64("leaves_pruned", st.LeavesPruned))
		}
	}()
	return a.runner.Run(ctx)
}

// buildBackend picks the object store from the roots' scheme. All roots
// must share one scheme, and for S3 one bucket; the returned specs have
// store-relative roots (bucket stripped for S3).
func buildBackend(ctx context.Context, cfg *config.Config, specs []registry.TableSpec) (storage.ObjectStore, []registry.TableSpec, error) {
	var scheme storage.Scheme
	for i, spec := range specs {
		s, _ := storage.ParseRoot(spec.Root)
		if i == 0 {
			scheme = s
			continue
		}
		if s != scheme {
			return nil, nil, fmt.Errorf("table roots mix storage schemes: %s is %s, expected %s",
				spec.Root, s, scheme)
		}
	}

	if scheme != storage.SchemeS3 {
		return storage.NewLocalStore(), specs, nil
	}

	s3cfg := cfg.S3
	out := make([]registry.TableSpec, len(specs))
	for i, spec := range specs {
		_, path := storage.ParseRoot(spec.Root)
		bucket, key := storage.SplitBucket(path)
		if s3cfg.Bucket == "" {
			s3cfg.Bucket = bucket
		} else if bucket != s3cfg.Bucket {
			return nil, nil, fmt.Errorf("table roots span buckets %s and %s; one bucket per process",
				s3cfg.Bucket, bucket)
		}
		spec.Root = key
		out[i] = spec
	}

	store, err := storage.NewS3Store(ctx, s3cfg)
	if err != nil {
		return nil, nil, err
	}
	return store, out, nil
}
