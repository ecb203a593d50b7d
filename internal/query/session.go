package query

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session is the per-request execution context. It borrows the shared
// engine (and through it the shared cached store and registrations) but
// holds no state of its own beyond an identifier; nothing carries over
// between requests.
type Session struct {
	ID     string
	engine *Engine
	log    *zap.Logger
}

func NewSession(engine *Engine, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.NewString()
	return &Session{ID: id, engine: engine, log: log.With(zap.String("session", id))}
}

// Query executes one statement. Cancelling ctx abandons the request;
// entries already admitted to the byte cache stay resident.
func (s *Session) Query(ctx context.Context, sql string) (*Result, error) {
	start := time.Now()
	res, err := s.engine.Execute(ctx, sql)
	if err != nil {
		s.log.Warn("query failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return nil, err
	}
	s.log.Info("query complete",
		zap.Int("rows", len(res.Rows)),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}
