package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httpapi "github.com/stratadb/strata/internal/api/http"
	"github.com/stratadb/strata/internal/app"
	"github.com/stratadb/strata/internal/cache"
	"github.com/stratadb/strata/internal/query"
	"github.com/stratadb/strata/internal/registry"
	"github.com/stratadb/strata/internal/storage"
)

// seedSource creates a sqlite database with an orders table spanning two
// years and returns its DSN.
func seedSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE orders (
		id INTEGER NOT NULL,
		customer TEXT NOT NULL,
		amount DOUBLE NOT NULL,
		city TEXT,
		created DATETIME NOT NULL
	)`)
	require.NoError(t, err)

	rows := []string{
		`(1, 'alice', 12.50, 'Oslo',   '2023-03-01 10:00:00')`,
		`(2, 'bob',   80.00, 'Bergen', '2023-07-15 09:30:00')`,
		`(3, 'cara',  41.25, NULL,     '2024-01-02 23:10:00')`,
		`(4, 'dave',   5.00, 'Oslo',   '2024-06-30 07:45:00')`,
		`(5, 'erin',  19.99, 'Bergen', '2024-06-30 08:00:00')`,
	}
	for _, r := range rows {
		_, err := db.Exec(`INSERT INTO orders VALUES ` + r)
		require.NoError(t, err)
	}
	return "sqlite3://" + path
}

func postQuery(t *testing.T, url, sqlText string) *http.Response {
	t.Helper()
	body, err := json.Marshal(map[string]string{"sql": sqlText})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url+"/v1/query", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// TestExtractServeQuery drives the full pipeline: extract a relational table
// into Hive-partitioned parquet files, register the dataset behind the byte
// cache, and query it over HTTP.
func TestExtractServeQuery(t *testing.T) {
	logger := zap.NewNop()
	dsn := seedSource(t)
	outDir := t.TempDir()

	summary, err := app.RunExtract(context.Background(), app.ExtractConfig{
		DSN:             dsn,
		Table:           "orders",
		Output:          outDir,
		PartitionBy:     []string{"year"},
		TimestampColumn: "created",
	}, logger)
	require.NoError(t, err)
	require.Equal(t, int64(5), summary.Rows)
	require.Equal(t, int64(2), summary.Files)

	backend := storage.NewLocalStore()
	cached := cache.NewCachedStore(backend, 1<<20)
	reg := registry.NewRegistry(cached, logger)
	require.NoError(t, reg.Register(context.Background(), registry.TableSpec{
		Name: "orders",
		Root: outDir,
	}))

	engine := query.NewEngine(cached, reg, logger)
	srv := httptest.NewServer(httpapi.NewRouter(engine, reg, logger))
	defer srv.Close()

	resp := postQuery(t, srv.URL, "SELECT customer, amount FROM orders WHERE year = 2024 ORDER BY customer")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Columns []string         `json:"columns"`
		Rows    []map[string]any `json:"rows"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Equal(t, []string{"customer", "amount"}, result.Columns)
	require.Len(t, result.Rows, 3)
	require.Equal(t, "cara", result.Rows[0]["customer"])
	require.Equal(t, 41.25, result.Rows[0]["amount"])

	// Pruning on the derived year key keeps the 2023 file out of the scan.
	first := cached.Stats().Snapshot()
	require.Equal(t, uint64(1), first.Reads)
	require.Equal(t, uint64(1), first.Misses)
	require.Equal(t, uint64(0), first.Hits)

	// The same query again is served from the cache.
	resp2 := postQuery(t, srv.URL, "SELECT customer, amount FROM orders WHERE year = 2024 ORDER BY customer")
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	io.Copy(io.Discard, resp2.Body)

	second := cached.Stats().Snapshot()
	require.Equal(t, uint64(2), second.Reads)
	require.Equal(t, first.Misses, second.Misses)
	require.Equal(t, uint64(1), second.Hits)
	require.Equal(t, second.Reads, second.Hits+second.Misses)

	// A scan across both partitions touches the remaining file once.
	resp3 := postQuery(t, srv.URL, "SELECT count(*), sum(amount) FROM orders")
	defer resp3.Body.Close()
	require.Equal(t, http.StatusOK, resp3.StatusCode)

	var agg struct {
		Rows []map[string]any `json:"rows"`
	}
	require.NoError(t, json.NewDecoder(resp3.Body).Decode(&agg))
	require.Len(t, agg.Rows, 1)
	require.EqualValues(t, 5, agg.Rows[0]["count(*)"])
	require.InDelta(t, 158.74, agg.Rows[0]["sum(amount)"], 1e-9)

	third := cached.Stats().Snapshot()
	require.Equal(t, uint64(4), third.Reads)
	require.Equal(t, first.Misses+1, third.Misses)
}

// TestExtractGroupByDerivedKeys checks that the derived time keys survive the
// round trip as typed columns usable in GROUP BY.
func TestExtractGroupByDerivedKeys(t *testing.T) {
	logger := zap.NewNop()
	dsn := seedSource(t)
	outDir := t.TempDir()

	_, err := app.RunExtract(context.Background(), app.ExtractConfig{
		DSN:             dsn,
		Table:           "orders",
		Output:          outDir,
		PartitionBy:     []string{"year", "month"},
		TimestampColumn: "created",
	}, logger)
	require.NoError(t, err)

	backend := storage.NewLocalStore()
	cached := cache.NewCachedStore(backend, 1<<20)
	reg := registry.NewRegistry(cached, logger)
	require.NoError(t, reg.Register(context.Background(), registry.TableSpec{
		Name: "orders",
		Root: outDir,
	}))

	engine := query.NewEngine(cached, reg, logger)
	res, err := engine.Execute(context.Background(), "SELECT year, count(*) FROM orders GROUP BY year ORDER BY year")
	require.NoError(t, err)
	require.Equal(t, [][]any{
		{int64(2023), int64(2)},
		{int64(2024), int64(3)},
	}, res.Rows)

	// month=06 holds two rows for 2024.
	res, err = engine.Execute(context.Background(), "SELECT count(*) FROM orders WHERE year = 2024 AND month = 6")
	require.NoError(t, err)
	require.Equal(t, [][]any{{int64(2)}}, res.Rows)
}
