package query

import (
	apperr "github.com/stratadb/strata/internal/errors"
	"github.com/stratadb/strata/pkg/types"
)

type accumulator struct {
	count   int64
	sumI    int64
	sumF    float64
	isFloat bool
	min     any
	max     any
}

func (a *accumulator) add(v any) {
	if v == nil {
		return
	}
	a.count++
	switch n := v.(type) {
	case int32:
		a.sumI += int64(n)
	case int64:
		a.sumI += n
	case int:
		a.sumI += int64(n)
	case float64:
		a.sumF += n
		a.isFloat = true
	}
	if a.min == nil {
		a.min, a.max = v, v
		return
	}
	if c, ok := compareValues(v, a.min); ok && c < 0 {
		a.min = v
	}
	if c, ok := compareValues(v, a.max); ok && c > 0 {
		a.max = v
	}
}

func (a *accumulator) sum() any {
	if a.count == 0 {
		return nil
	}
	if a.isFloat {
		return a.sumF + float64(a.sumI)
	}
	return a.sumI
}

func (a *accumulator) avg() any {
	if a.count == 0 {
		return nil
	}
	return (a.sumF + float64(a.sumI)) / float64(a.count)
}

type group struct {
	keyVals []any
	rows    int64 // COUNT(*)
	accs    []*accumulator
}

// aggregate evaluates an aggregating SELECT: every item must be either a
// GROUP BY column or an aggregate call. Without GROUP BY the whole input
// is one group, and an empty input still yields one row (COUNT(*) = 0).
func aggregate(stmt *SelectStmt, rows []types.Row) (*Result, error) {
	type aggSlot struct {
		agg   AggExpr
		accIx int
	}

	groupIx := make(map[string]int, len(stmt.GroupBy))
	for i, col := range stmt.GroupBy {
		groupIx[col] = i
	}

	var cols []string
	var slots []any // either int (group key index) or aggSlot
	var aggs []AggExpr
	for _, item := range stmt.Items {
		if item.Star {
			return nil, apperr.New(apperr.CategoryQuery, apperr.CodeUnsupportedSyntax,
				"SELECT * cannot be combined with aggregates")
		}
		cols = append(cols, itemName(item))
		switch x := item.Expr.(type) {
		case ColumnRef:
			ix, ok := groupIx[x.Name]
			if !ok {
				return nil, apperr.Newf(apperr.CategoryQuery, apperr.CodeUnsupportedSyntax,
					"column %q must appear in GROUP BY or inside an aggregate", x.Name)
			}
			slots = append(slots, ix)
		case AggExpr:
			slots = append(slots, aggSlot{agg: x, accIx: len(aggs)})
			aggs = append(aggs, x)
		default:
			return nil, apperr.New(apperr.CategoryQuery, apperr.CodeUnsupportedSyntax,
				"aggregate queries support only plain columns and aggregate calls")
		}
	}

	groups := make(map[string]*group)
	var order []string
	for _, row := range rows {
		key, keyVals, err := groupKey(stmt.GroupBy, row)
		if err != nil {
			return nil, err
		}
		g, ok := groups[key]
		if !ok {
			g = &group{keyVals: keyVals, accs: make([]*accumulator, len(aggs))}
			for i := range g.accs {
				g.accs[i] = &accumulator{}
			}
			groups[key] = g
			order = append(order, key)
		}
		g.rows++
		for i, agg := range aggs {
			if agg.Star {
				continue
			}
			v, err := evalExpr(agg.Arg, row)
			if err != nil {
				return nil, err
			}
			g.accs[i].add(v)
		}
	}

	// A global aggregate over no rows still produces one row.
	if len(stmt.GroupBy) == 0 && len(groups) == 0 {
		g := &group{accs: make([]*accumulator, len(aggs))}
		for i := range g.accs {
			g.accs[i] = &accumulator{}
		}
		groups[""] = g
		order = append(order, "")
	}

	res := &Result{Columns: cols}
	for _, key := range order {
		g := groups[key]
		out := make([]any, len(slots))
		for i, slot := range slots {
			switch s := slot.(type) {
			case int:
				out[i] = g.keyVals[s]
			case aggSlot:
				v, err := finalize(s.agg, g, g.accs[s.accIx])
				if err != nil {
					return nil, err
				}
				out[i] = v
			}
		}
		res.Rows = append(res.Rows, out)
	}
	return res, nil
}

func groupKey(groupBy []string, row types.Row) (string, []any, error) {
	if len(groupBy) == 0 {
		return "", nil, nil
	}
	keyVals := make([]any, len(groupBy))
	key := ""
	for i, col := range groupBy {
		v, err := evalExpr(ColumnRef{Name: col}, row)
		if err != nil {
			return "", nil, err
		}
		keyVals[i] = v
		if v == nil {
			key += "\x00NULL\x00"
		} else {
			key += "\x00" + renderValue(v) + "\x00"
		}
	}
	return key, keyVals, nil
}

func finalize(agg AggExpr, g *group, acc *accumulator) (any, error) {
	switch agg.Func {
	case "COUNT":
		if agg.Star {
			return g.rows, nil
		}
		return acc.count, nil
	case "SUM":
		return acc.sum(), nil
	case "AVG":
		return acc.avg(), nil
	case "MIN":
		return acc.min, nil
	case "MAX":
		return acc.max, nil
	}
	return nil, apperr.Newf(apperr.CategoryQuery, apperr.CodeUnsupportedSyntax,
		"unsupported aggregate %q", agg.Func)
}
