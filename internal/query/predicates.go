package query

import (
	"strconv"
	"time"

	"github.com/stratadb/strata/internal/registry"
)

// partitionPredicates extracts prune-friendly predicates from a WHERE
// clause: top-level AND conjuncts of the forms col OP literal,
// col IN (literals), and col BETWEEN literal AND literal. Anything else
// (OR branches, NOT, arithmetic, non-literal operands) contributes
// nothing, which means the scan cannot be narrowed by it.
func partitionPredicates(where Expr) []registry.Predicate {
	if where == nil {
		return nil
	}
	var preds []registry.Predicate
	for _, conj := range conjuncts(where) {
		if p, ok := predicateOf(conj); ok {
			preds = append(preds, p)
		}
	}
	return preds
}

func conjuncts(e Expr) []Expr {
	if b, ok := e.(BinaryExpr); ok && b.Op == "AND" {
		return append(conjuncts(b.L), conjuncts(b.R)...)
	}
	return []Expr{e}
}

func predicateOf(e Expr) (registry.Predicate, bool) {
	switch x := e.(type) {
	case BinaryExpr:
		col, colOK := x.L.(ColumnRef)
		lit, litOK := x.R.(Literal)
		if colOK && litOK {
			if op, ok := pruneOp(x.Op); ok {
				if v, ok := literalString(lit.Val); ok {
					return registry.Predicate{Column: col.Name, Op: op, Values: []string{v}}, true
				}
			}
			return registry.Predicate{}, false
		}
		// Literal on the left: flip the comparison.
		col, colOK = x.R.(ColumnRef)
		lit, litOK = x.L.(Literal)
		if colOK && litOK {
			if op, ok := pruneOp(flipOp(x.Op)); ok {
				if v, ok := literalString(lit.Val); ok {
					return registry.Predicate{Column: col.Name, Op: op, Values: []string{v}}, true
				}
			}
		}
		return registry.Predicate{}, false

	case InExpr:
		if x.Not {
			return registry.Predicate{}, false
		}
		col, ok := x.X.(ColumnRef)
		if !ok {
			return registry.Predicate{}, false
		}
		values := make([]string, 0, len(x.List))
		for _, item := range x.List {
			lit, ok := item.(Literal)
			if !ok {
				return registry.Predicate{}, false
			}
			v, ok := literalString(lit.Val)
			if !ok {
				return registry.Predicate{}, false
			}
			values = append(values, v)
		}
		return registry.Predicate{Column: col.Name, Op: registry.OpIn, Values: values}, true

	case BetweenExpr:
		if x.Not {
			return registry.Predicate{}, false
		}
		col, ok := x.X.(ColumnRef)
		if !ok {
			return registry.Predicate{}, false
		}
		loLit, loOK := x.Lo.(Literal)
		hiLit, hiOK := x.Hi.(Literal)
		if !loOK || !hiOK {
			return registry.Predicate{}, false
		}
		lo, ok1 := literalString(loLit.Val)
		hi, ok2 := literalString(hiLit.Val)
		if !ok1 || !ok2 {
			return registry.Predicate{}, false
		}
		return registry.Predicate{Column: col.Name, Op: registry.OpBetween, Values: []string{lo, hi}}, true
	}
	return registry.Predicate{}, false
}

func pruneOp(op string) (registry.PredOp, bool) {
	switch op {
	case "=":
		return registry.OpEq, true
	case "!=":
		return registry.OpNe, true
	case "<":
		return registry.OpLt, true
	case "<=":
		return registry.OpLe, true
	case ">":
		return registry.OpGt, true
	case ">=":
		return registry.OpGe, true
	}
	return 0, false
}

func flipOp(op string) string {
	switch op {
	case "<":
		return ">"
	case "<=":
		return ">="
	case ">":
		return "<"
	case ">=":
		return "<="
	}
	return op
}

func literalString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	case time.Time:
		return x.UTC().Format(time.RFC3339), true
	}
	return "", false
}
