package query

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/stratadb/strata/internal/columnar"
	apperr "github.com/stratadb/strata/internal/errors"
	"github.com/stratadb/strata/internal/observability"
	"github.com/stratadb/strata/internal/registry"
	"github.com/stratadb/strata/internal/storage"
	"github.com/stratadb/strata/pkg/types"
)

// Result is an executed query: named columns and rows of values aligned
// with them.
type Result struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Engine executes SELECT statements. All table bytes flow through the
// supplied store, so serving reads are cached and accounted there.
type Engine struct {
	store       storage.ObjectStore
	reg         *registry.Registry
	log         *zap.Logger
	resultCache *ResultCache
	scanStats   *observability.ScanStats
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithResultCache enables the whole-result LRU cache, keyed by SQL text.
// Off by default: with it on, repeated queries never touch the byte cache,
// which hides the per-read accounting.
func WithResultCache(entries int) EngineOption {
	return func(e *Engine) {
		if entries > 0 {
			e.resultCache = NewResultCache(entries)
		}
	}
}

// WithScanStats records per-table pruning effectiveness for each query.
func WithScanStats(s *observability.ScanStats) EngineOption {
	return func(e *Engine) { e.scanStats = s }
}

func NewEngine(store storage.ObjectStore, reg *registry.Registry, log *zap.Logger, opts ...EngineOption) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{store: store, reg: reg, log: log}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute parses and runs one SELECT statement.
func (e *Engine) Execute(ctx context.Context, sql string) (*Result, error) {
	if e.resultCache != nil {
		if res, ok := e.resultCache.Get(sql); ok {
			return res, nil
		}
	}

	stmt, err := Parse(sql)
	if err != nil {
		return nil, err
	}
	table, err := e.reg.Table(stmt.Table)
	if err != nil {
		return nil, err
	}

	preds := partitionPredicates(stmt.Where)
	leaves := table.PruneLeaves(preds)
	if e.scanStats != nil {
		e.scanStats.Record(table.Name, len(leaves), len(table.Leaves)-len(leaves))
	}
	e.log.Debug("planned scan",
		zap.String("table", table.Name),
		zap.Int("pruned_leaves", len(table.Leaves)-len(leaves)),
		zap.Int("scanned_leaves", len(leaves)))

	rows, scanCols, err := e.scan(ctx, table, leaves)
	if err != nil {
		return nil, err
	}

	if stmt.Where != nil {
		filtered := rows[:0]
		for _, row := range rows {
			keep, err := evalExpr(stmt.Where, row)
			if err != nil {
				return nil, err
			}
			if b, ok := keep.(bool); ok && b {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	var res *Result
	var inputs []types.Row // originating row per result row, for ORDER BY
	if isAggregate(stmt) {
		res, err = aggregate(stmt, rows)
		if err != nil {
			return nil, err
		}
	} else {
		res, err = project(stmt, rows, scanCols)
		if err != nil {
			return nil, err
		}
		inputs = rows
	}

	if len(stmt.OrderBy) > 0 {
		if err := orderRows(stmt.OrderBy, res, inputs); err != nil {
			return nil, err
		}
	}
	applyLimit(stmt, res)

	if e.resultCache != nil {
		e.resultCache.Put(sql, res)
	}
	return res, nil
}

// scan decodes every parquet file under the surviving leaves, injecting
// partition values for columns the files do not carry (the derived time
// keys exist only in the directory path).
func (e *Engine) scan(ctx context.Context, table *registry.Table, leaves []registry.Leaf) ([]types.Row, []string, error) {
	var rows []types.Row
	var scanCols []string
	seen := make(map[string]bool)

	for _, leaf := range leaves {
		for _, loc := range leaf.Files {
			data, err := e.store.Get(ctx, loc, nil)
			if err != nil {
				return nil, nil, apperr.Wrap(apperr.CategoryStorage, apperr.CodeReadFailed,
					"fetch "+loc.String(), err)
			}
			schema, fileRows, err := columnar.Decode(data)
			if err != nil {
				return nil, nil, err
			}

			for _, name := range schema.Names() {
				if !seen[name] {
					seen[name] = true
					scanCols = append(scanCols, name)
				}
			}
			var injected []string
			for _, col := range table.Columns {
				if schema.Column(col) == nil {
					injected = append(injected, col)
					if !seen[col] {
						seen[col] = true
						scanCols = append(scanCols, col)
					}
				}
			}

			for _, row := range fileRows {
				for _, col := range injected {
					row[col] = typedPartitionValue(leaf.Values[col])
				}
				rows = append(rows, row)
			}
		}
	}

	if scanCols == nil {
		scanCols = append(scanCols, table.Columns...)
	}
	return rows, scanCols, nil
}

// typedPartitionValue turns a path value back into the most specific type
// it parses as. Path values are strings, so `year=2023` becomes int64 2023.
func typedPartitionValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

func isAggregate(stmt *SelectStmt) bool {
	if len(stmt.GroupBy) > 0 {
		return true
	}
	for _, item := range stmt.Items {
		if item.Star {
			continue
		}
		if containsAgg(item.Expr) {
			return true
		}
	}
	return false
}

func containsAgg(e Expr) bool {
	switch x := e.(type) {
	case AggExpr:
		return true
	case BinaryExpr:
		return containsAgg(x.L) || containsAgg(x.R)
	case UnaryExpr:
		return containsAgg(x.X)
	}
	return false
}

func project(stmt *SelectStmt, rows []types.Row, scanCols []string) (*Result, error) {
	var cols []string
	for _, item := range stmt.Items {
		if item.Star {
			cols = append(cols, scanCols...)
			continue
		}
		cols = append(cols, itemName(item))
	}

	res := &Result{Columns: cols, Rows: make([][]any, 0, len(rows))}
	for _, row := range rows {
		out := make([]any, 0, len(cols))
		for _, item := range stmt.Items {
			if item.Star {
				for _, c := range scanCols {
					out = append(out, row[c])
				}
				continue
			}
			v, err := evalExpr(item.Expr, row)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		res.Rows = append(res.Rows, out)
	}
	return res, nil
}

func itemName(item SelectItem) string {
	if item.Alias != "" {
		return item.Alias
	}
	return exprName(item.Expr)
}

func exprName(e Expr) string {
	switch x := e.(type) {
	case ColumnRef:
		return x.Name
	case AggExpr:
		if x.Star {
			return strings.ToLower(x.Func) + "(*)"
		}
		return strings.ToLower(x.Func) + "(" + exprName(x.Arg) + ")"
	case Literal:
		return fmt.Sprint(x.Val)
	}
	return "expr"
}

func orderRows(items []OrderItem, res *Result, inputs []types.Row) error {
	colIndex := make(map[string]int, len(res.Columns))
	for i, c := range res.Columns {
		colIndex[c] = i
	}

	// Evaluate each sort key once per row. Keys resolve against the output
	// columns first, then the originating input row for columns projected
	// away.
	keys := make([][]any, len(res.Rows))
	for i := range res.Rows {
		env := make(types.Row, len(res.Columns))
		if inputs != nil && i < len(inputs) {
			for k, v := range inputs[i] {
				env[k] = v
			}
		}
		for j, c := range res.Columns {
			env[c] = res.Rows[i][j]
		}
		keys[i] = make([]any, len(items))
		for j, item := range items {
			v, err := evalExpr(item.Expr, env)
			if err != nil {
				return err
			}
			keys[i][j] = v
		}
	}

	idx := make([]int, len(res.Rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		for j, item := range items {
			va, vb := keys[idx[a]][j], keys[idx[b]][j]
			c := compareNullable(va, vb)
			if c == 0 {
				continue
			}
			if item.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})

	sorted := make([][]any, len(res.Rows))
	for i, j := range idx {
		sorted[i] = res.Rows[j]
	}
	res.Rows = sorted
	return nil
}

// compareNullable orders NULL before everything, mirroring ascending
// NULLS FIRST.
func compareNullable(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if c, ok := compareValues(a, b); ok {
		return c
	}
	return 0
}

func applyLimit(stmt *SelectStmt, res *Result) {
	if stmt.Offset > 0 {
		if stmt.Offset >= len(res.Rows) {
			res.Rows = res.Rows[:0]
		} else {
			res.Rows = res.Rows[stmt.Offset:]
		}
	}
	if stmt.Limit >= 0 && stmt.Limit < len(res.Rows) {
		res.Rows = res.Rows[:stmt.Limit]
	}
}
