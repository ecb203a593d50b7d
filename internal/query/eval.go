package query

import (
	"regexp"
	"strings"
	"time"

	apperr "github.com/stratadb/strata/internal/errors"
	"github.com/stratadb/strata/pkg/types"
)

// evalExpr evaluates an expression against one row. SQL three-valued logic
// is collapsed: any comparison touching NULL yields NULL (nil), and a
// WHERE clause keeps a row only when the result is exactly true.
func evalExpr(e Expr, row types.Row) (any, error) {
	switch x := e.(type) {
	case Literal:
		return x.Val, nil

	case ColumnRef:
		v, ok := row[x.Name]
		if !ok {
			return nil, apperr.Newf(apperr.CategoryQuery, apperr.CodeParse,
				"unknown column %q", x.Name)
		}
		return v, nil

	case UnaryExpr:
		v, err := evalExpr(x.X, row)
		if err != nil {
			return nil, err
		}
		switch x.Op {
		case "NOT":
			if v == nil {
				return nil, nil
			}
			b, ok := v.(bool)
			if !ok {
				return nil, apperr.Newf(apperr.CategoryQuery, apperr.CodeParse,
					"NOT applied to non-boolean %T", v)
			}
			return !b, nil
		case "-":
			switch n := v.(type) {
			case int64:
				return -n, nil
			case int32:
				return -n, nil
			case float64:
				return -n, nil
			case nil:
				return nil, nil
			}
			return nil, apperr.Newf(apperr.CategoryQuery, apperr.CodeParse,
				"negation of non-numeric %T", v)
		}

	case BinaryExpr:
		return evalBinary(x, row)

	case InExpr:
		v, err := evalExpr(x.X, row)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, nil
		}
		found := false
		for _, item := range x.List {
			want, err := evalExpr(item, row)
			if err != nil {
				return nil, err
			}
			if c, ok := compareValues(v, want); ok && c == 0 {
				found = true
				break
			}
		}
		return found != x.Not, nil

	case BetweenExpr:
		v, err := evalExpr(x.X, row)
		if err != nil {
			return nil, err
		}
		lo, err := evalExpr(x.Lo, row)
		if err != nil {
			return nil, err
		}
		hi, err := evalExpr(x.Hi, row)
		if err != nil {
			return nil, err
		}
		if v == nil || lo == nil || hi == nil {
			return nil, nil
		}
		cl, okL := compareValues(v, lo)
		ch, okH := compareValues(v, hi)
		if !okL || !okH {
			return nil, nil
		}
		in := cl >= 0 && ch <= 0
		return in != x.Not, nil

	case IsNullExpr:
		v, err := evalExpr(x.X, row)
		if err != nil {
			return nil, err
		}
		return (v == nil) != x.Not, nil

	case LikeExpr:
		v, err := evalExpr(x.X, row)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, nil
		}
		s, ok := v.(string)
		if !ok {
			return nil, apperr.Newf(apperr.CategoryQuery, apperr.CodeParse,
				"LIKE applied to non-string %T", v)
		}
		matched, err := likeMatch(s, x.Pattern)
		if err != nil {
			return nil, err
		}
		return matched != x.Not, nil

	case AggExpr:
		return nil, apperr.New(apperr.CategoryQuery, apperr.CodeUnsupportedSyntax,
			"aggregate function outside an aggregating query")
	}
	return nil, apperr.Newf(apperr.CategoryQuery, apperr.CodeUnsupportedSyntax,
		"unsupported expression %T", e)
}

func evalBinary(x BinaryExpr, row types.Row) (any, error) {
	switch x.Op {
	case "AND", "OR":
		lv, err := evalExpr(x.L, row)
		if err != nil {
			return nil, err
		}
		rv, err := evalExpr(x.R, row)
		if err != nil {
			return nil, err
		}
		lb, lok := lv.(bool)
		rb, rok := rv.(bool)
		if x.Op == "AND" {
			// NULL AND false is false; NULL AND true is NULL.
			if lok && !lb || rok && !rb {
				return false, nil
			}
			if !lok || !rok {
				return nil, nil
			}
			return true, nil
		}
		if lok && lb || rok && rb {
			return true, nil
		}
		if !lok || !rok {
			return nil, nil
		}
		return false, nil
	}

	lv, err := evalExpr(x.L, row)
	if err != nil {
		return nil, err
	}
	rv, err := evalExpr(x.R, row)
	if err != nil {
		return nil, err
	}
	if lv == nil || rv == nil {
		return nil, nil
	}

	switch x.Op {
	case "=", "!=", "<", "<=", ">", ">=":
		c, ok := compareValues(lv, rv)
		if !ok {
			return nil, apperr.Newf(apperr.CategoryQuery, apperr.CodeParse,
				"cannot compare %T with %T", lv, rv)
		}
		switch x.Op {
		case "=":
			return c == 0, nil
		case "!=":
			return c != 0, nil
		case "<":
			return c < 0, nil
		case "<=":
			return c <= 0, nil
		case ">":
			return c > 0, nil
		case ">=":
			return c >= 0, nil
		}

	case "+", "-", "*", "/":
		return arith(x.Op, lv, rv)
	}
	return nil, apperr.Newf(apperr.CategoryQuery, apperr.CodeUnsupportedSyntax,
		"unsupported operator %q", x.Op)
}

// compareValues orders two values, coercing across integer widths and
// between integers and floats. ok=false means the types are incomparable.
func compareValues(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func arith(op string, a, b any) (any, error) {
	ai, aIsInt := toInt64(a)
	bi, bIsInt := toInt64(b)
	if aIsInt && bIsInt && op != "/" {
		switch op {
		case "+":
			return ai + bi, nil
		case "-":
			return ai - bi, nil
		case "*":
			return ai * bi, nil
		}
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return nil, apperr.Newf(apperr.CategoryQuery, apperr.CodeParse,
			"arithmetic on non-numeric %T and %T", a, b)
	}
	switch op {
	case "+":
		return af + bf, nil
	case "-":
		return af - bf, nil
	case "*":
		return af * bf, nil
	case "/":
		if bf == 0 {
			return nil, nil
		}
		return af / bf, nil
	}
	return nil, apperr.Newf(apperr.CategoryQuery, apperr.CodeUnsupportedSyntax,
		"unsupported operator %q", op)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

// likeMatch compiles a SQL LIKE pattern (% and _ wildcards) into an
// anchored regexp.
func likeMatch(s, pattern string) (bool, error) {
	var sb strings.Builder
	sb.WriteString("(?s)^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	re, err := regexp.Compile(sb.String())
	if err != nil {
		return false, apperr.Newf(apperr.CategoryQuery, apperr.CodeParse,
			"bad LIKE pattern %q", pattern)
	}
	return re.MatchString(s), nil
}
