package http

import (
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	apperr "github.com/stratadb/strata/internal/errors"
	"github.com/stratadb/strata/internal/query"
	"github.com/stratadb/strata/internal/registry"
)

// queryRequest is the optional JSON form of the request body; a raw SQL
// body is accepted too.
type queryRequest struct {
	SQL string `json:"sql"`
}

// QueryHandler runs one SQL statement per request. Each request gets a
// fresh session over the shared engine.
type QueryHandler struct {
	engine *query.Engine
	log    *zap.Logger
}

func NewQueryHandler(engine *query.Engine, log *zap.Logger) *QueryHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &QueryHandler{engine: engine, log: log}
}

func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only", requestID(r))
		return
	}

	sql, err := readSQL(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), requestID(r))
		return
	}
	if strings.TrimSpace(sql) == "" {
		writeError(w, http.StatusBadRequest, "empty query", requestID(r))
		return
	}

	sess := query.NewSession(h.engine, h.log)
	res, err := sess.Query(r.Context(), sql)
	if err != nil {
		if apperr.ClientVisible(err) {
			writeError(w, http.StatusBadRequest, err.Error(), requestID(r))
			return
		}
		// Detail stays in the server log; the client sees an opaque 500.
		h.log.Error("query execution failed",
			zap.String("request_id", requestID(r)),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error", requestID(r))
		return
	}

	format := query.NegotiateFormat(r.Header.Get("Accept"))
	w.Header().Set("Content-Type", format.ContentType())
	if err := query.Encode(w, res, format); err != nil {
		h.log.Warn("response write failed",
			zap.String("request_id", requestID(r)),
			zap.Error(err))
	}
}

func readSQL(r *http.Request) (string, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var req queryRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return "", err
		}
		return req.SQL, nil
	}
	return string(body), nil
}

// tableInfo is one entry of the /v1/tables response.
type tableInfo struct {
	Name             string   `json:"name"`
	Root             string   `json:"root"`
	PartitionColumns []string `json:"partition_columns"`
	Leaves           int      `json:"leaves"`
}

// TablesHandler reports the registrations that survived startup.
type TablesHandler struct {
	reg *registry.Registry
}

func NewTablesHandler(reg *registry.Registry) *TablesHandler {
	return &TablesHandler{reg: reg}
}

func (h *TablesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only", requestID(r))
		return
	}
	tables := h.reg.Tables()
	out := make([]tableInfo, 0, len(tables))
	for _, t := range tables {
		out = append(out, tableInfo{
			Name:             t.Name,
			Root:             t.Root,
			PartitionColumns: t.Columns,
			Leaves:           len(t.Leaves),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"tables": out})
}
