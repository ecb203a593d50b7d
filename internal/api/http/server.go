package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/stratadb/strata/internal/query"
	"github.com/stratadb/strata/internal/registry"
)

// NewRouter builds the API handler with the full middleware chain.
func NewRouter(engine *query.Engine, reg *registry.Registry, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/v1/query", NewQueryHandler(engine, log))
	mux.Handle("/v1/tables", NewTablesHandler(reg))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return Chain(mux,
		RequestIDMiddleware,
		RecoveryMiddleware(log),
		LoggingMiddleware(log),
		GzipMiddleware,
	)
}

// NewMetricsRouter builds the /metrics handler backed by its own registry,
// served on the separate metrics listener.
func NewMetricsRouter(collectors ...prometheus.Collector) (http.Handler, error) {
	promReg := prometheus.NewRegistry()
	for _, c := range collectors {
		if err := promReg.Register(c); err != nil {
			return nil, err
		}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	return mux, nil
}
