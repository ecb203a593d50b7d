// Package server manages the serving process lifecycle: running the API
// and metrics listeners and draining them on SIGTERM/SIGINT.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Runner runs a set of HTTP servers until a shutdown signal or the first
// listener failure, then shuts the rest down gracefully.
type Runner struct {
	log          *zap.Logger
	drainTimeout time.Duration
	servers      []*http.Server
}

func NewRunner(log *zap.Logger, drainTimeout time.Duration) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	if drainTimeout <= 0 {
		drainTimeout = 15 * time.Second
	}
	return &Runner{log: log, drainTimeout: drainTimeout}
}

// Add registers a server to run. Call before Run.
func (r *Runner) Add(srv *http.Server) {
	r.servers = append(r.servers, srv)
}

// Run blocks until ctx is cancelled, a signal arrives, or a listener
// fails. In-flight requests get the drain timeout to finish.
func (r *Runner) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT, os.Interrupt)
	defer stop()

	errCh := make(chan error, len(r.servers))
	for _, srv := range r.servers {
		srv := srv
		go func() {
			r.log.Info("listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		r.log.Info("shutting down")
	case runErr = <-errCh:
		r.log.Error("listener failed", zap.Error(runErr))
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), r.drainTimeout)
	defer cancel()
	for _, srv := range r.servers {
		if err := srv.Shutdown(drainCtx); err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}
