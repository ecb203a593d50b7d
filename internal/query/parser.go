package query

import (
	"strconv"
	"strings"

	apperr "github.com/stratadb/strata/internal/errors"
)

type parser struct {
	toks []token
	pos  int
}

// Parse parses a single SELECT statement.
func Parse(sql string) (*SelectStmt, error) {
	toks, err := lex(sql)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	stmt, err := p.selectStmt()
	if err != nil {
		return nil, err
	}
	if p.peek().text == ";" {
		p.advance()
	}
	if p.peek().kind != tokEOF {
		return nil, p.errorf("unexpected %q after statement", p.peek().text)
	}
	return stmt, nil
}

func (p *parser) peek() token    { return p.toks[p.pos] }
func (p *parser) advance() token { t := p.toks[p.pos]; p.pos++; return t }

func (p *parser) errorf(format string, args ...any) error {
	return apperr.Newf(apperr.CategoryQuery, apperr.CodeParse, format, args...)
}

func (p *parser) expectKeyword(kw string) error {
	t := p.peek()
	if t.kind != tokKeyword || t.text != kw {
		return p.errorf("expected %s, got %q", kw, t.text)
	}
	p.advance()
	return nil
}

func (p *parser) acceptKeyword(kw string) bool {
	if t := p.peek(); t.kind == tokKeyword && t.text == kw {
		p.advance()
		return true
	}
	return false
}

func (p *parser) acceptSymbol(sym string) bool {
	if t := p.peek(); t.kind == tokSymbol && t.text == sym {
		p.advance()
		return true
	}
	return false
}

func (p *parser) selectStmt() (*SelectStmt, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	stmt := &SelectStmt{Limit: -1}

	for {
		item, err := p.selectItem()
		if err != nil {
			return nil, err
		}
		stmt.Items = append(stmt.Items, item)
		if !p.acceptSymbol(",") {
			break
		}
	}

	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	t := p.peek()
	if t.kind != tokIdent {
		return nil, p.errorf("expected table name, got %q", t.text)
	}
	stmt.Table = p.advance().text

	if p.acceptKeyword("WHERE") {
		expr, err := p.orExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = expr
	}

	if p.acceptKeyword("GROUP") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			t := p.peek()
			if t.kind != tokIdent {
				return nil, p.errorf("GROUP BY expects a column name, got %q", t.text)
			}
			stmt.GroupBy = append(stmt.GroupBy, p.advance().text)
			if !p.acceptSymbol(",") {
				break
			}
		}
	}

	if p.acceptKeyword("ORDER") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			expr, err := p.addExpr()
			if err != nil {
				return nil, err
			}
			item := OrderItem{Expr: expr}
			if p.acceptKeyword("DESC") {
				item.Desc = true
			} else {
				p.acceptKeyword("ASC")
			}
			stmt.OrderBy = append(stmt.OrderBy, item)
			if !p.acceptSymbol(",") {
				break
			}
		}
	}

	if p.acceptKeyword("LIMIT") {
		n, err := p.intLiteral("LIMIT")
		if err != nil {
			return nil, err
		}
		stmt.Limit = n
	}
	if p.acceptKeyword("OFFSET") {
		n, err := p.intLiteral("OFFSET")
		if err != nil {
			return nil, err
		}
		stmt.Offset = n
	}
	return stmt, nil
}

func (p *parser) intLiteral(clause string) (int, error) {
	t := p.peek()
	if t.kind != tokNumber {
		return 0, p.errorf("%s expects a number, got %q", clause, t.text)
	}
	p.advance()
	n, err := strconv.Atoi(t.text)
	if err != nil || n < 0 {
		return 0, p.errorf("%s expects a non-negative integer, got %q", clause, t.text)
	}
	return n, nil
}

func (p *parser) selectItem() (SelectItem, error) {
	if p.acceptSymbol("*") {
		return SelectItem{Star: true}, nil
	}
	expr, err := p.orExpr()
	if err != nil {
		return SelectItem{}, err
	}
	item := SelectItem{Expr: expr}
	if p.acceptKeyword("AS") {
		t := p.peek()
		if t.kind != tokIdent {
			return SelectItem{}, p.errorf("expected alias after AS, got %q", t.text)
		}
		item.Alias = p.advance().text
	} else if t := p.peek(); t.kind == tokIdent {
		item.Alias = p.advance().text
	}
	return item, nil
}

func (p *parser) orExpr() (Expr, error) {
	left, err := p.andExpr()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("OR") {
		right, err := p.andExpr()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: "OR", L: left, R: right}
	}
	return left, nil
}

func (p *parser) andExpr() (Expr, error) {
	left, err := p.notExpr()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("AND") {
		right, err := p.notExpr()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: "AND", L: left, R: right}
	}
	return left, nil
}

func (p *parser) notExpr() (Expr, error) {
	if p.acceptKeyword("NOT") {
		x, err := p.notExpr()
		if err != nil {
			return nil, err
		}
		return UnaryExpr{Op: "NOT", X: x}, nil
	}
	return p.predicate()
}

func (p *parser) predicate() (Expr, error) {
	left, err := p.addExpr()
	if err != nil {
		return nil, err
	}

	not := p.acceptKeyword("NOT")

	switch {
	case p.acceptKeyword("IN"):
		if !p.acceptSymbol("(") {
			return nil, p.errorf("IN expects a parenthesized list")
		}
		var list []Expr
		for {
			v, err := p.addExpr()
			if err != nil {
				return nil, err
			}
			list = append(list, v)
			if !p.acceptSymbol(",") {
				break
			}
		}
		if !p.acceptSymbol(")") {
			return nil, p.errorf("IN list missing closing parenthesis")
		}
		return InExpr{X: left, List: list, Not: not}, nil

	case p.acceptKeyword("BETWEEN"):
		lo, err := p.addExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("AND"); err != nil {
			return nil, err
		}
		hi, err := p.addExpr()
		if err != nil {
			return nil, err
		}
		return BetweenExpr{X: left, Lo: lo, Hi: hi, Not: not}, nil

	case p.acceptKeyword("LIKE"):
		t := p.peek()
		if t.kind != tokString {
			return nil, p.errorf("LIKE expects a string pattern, got %q", t.text)
		}
		p.advance()
		return LikeExpr{X: left, Pattern: t.text, Not: not}, nil

	case p.acceptKeyword("IS"):
		if not {
			return nil, p.errorf("NOT before IS is not supported; use IS NOT NULL")
		}
		isNot := p.acceptKeyword("NOT")
		if err := p.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		return IsNullExpr{X: left, Not: isNot}, nil
	}

	if not {
		return nil, p.errorf("expected IN, BETWEEN, or LIKE after NOT")
	}

	if t := p.peek(); t.kind == tokSymbol {
		switch t.text {
		case "=", "!=", "<>", "<", "<=", ">", ">=":
			p.advance()
			right, err := p.addExpr()
			if err != nil {
				return nil, err
			}
			op := t.text
			if op == "<>" {
				op = "!="
			}
			return BinaryExpr{Op: op, L: left, R: right}, nil
		}
	}
	return left, nil
}

func (p *parser) addExpr() (Expr, error) {
	left, err := p.mulExpr()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokSymbol || (t.text != "+" && t.text != "-") {
			return left, nil
		}
		p.advance()
		right, err := p.mulExpr()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: t.text, L: left, R: right}
	}
}

func (p *parser) mulExpr() (Expr, error) {
	left, err := p.unaryExpr()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokSymbol || (t.text != "*" && t.text != "/") {
			return left, nil
		}
		p.advance()
		right, err := p.unaryExpr()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: t.text, L: left, R: right}
	}
}

func (p *parser) unaryExpr() (Expr, error) {
	if p.acceptSymbol("-") {
		x, err := p.unaryExpr()
		if err != nil {
			return nil, err
		}
		return UnaryExpr{Op: "-", X: x}, nil
	}
	return p.primary()
}

func (p *parser) primary() (Expr, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.advance()
		if strings.Contains(t.text, ".") {
			f, err := strconv.ParseFloat(t.text, 64)
			if err != nil {
				return nil, p.errorf("bad number %q", t.text)
			}
			return Literal{Val: f}, nil
		}
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, p.errorf("bad number %q", t.text)
		}
		return Literal{Val: n}, nil

	case tokString:
		p.advance()
		return Literal{Val: t.text}, nil

	case tokKeyword:
		switch t.text {
		case "TRUE":
			p.advance()
			return Literal{Val: true}, nil
		case "FALSE":
			p.advance()
			return Literal{Val: false}, nil
		case "NULL":
			p.advance()
			return Literal{Val: nil}, nil
		case "COUNT", "SUM", "AVG", "MIN", "MAX":
			p.advance()
			return p.aggCall(t.text)
		}
		return nil, p.errorf("unexpected keyword %q", t.text)

	case tokIdent:
		p.advance()
		return ColumnRef{Name: t.text}, nil

	case tokSymbol:
		if t.text == "(" {
			p.advance()
			expr, err := p.orExpr()
			if err != nil {
				return nil, err
			}
			if !p.acceptSymbol(")") {
				return nil, p.errorf("missing closing parenthesis")
			}
			return expr, nil
		}
	}
	return nil, p.errorf("unexpected token %q", t.text)
}

func (p *parser) aggCall(fn string) (Expr, error) {
	if !p.acceptSymbol("(") {
		return nil, p.errorf("%s expects parentheses", fn)
	}
	if fn == "COUNT" && p.acceptSymbol("*") {
		if !p.acceptSymbol(")") {
			return nil, p.errorf("COUNT(*) missing closing parenthesis")
		}
		return AggExpr{Func: fn, Star: true}, nil
	}
	arg, err := p.addExpr()
	if err != nil {
		return nil, err
	}
	if !p.acceptSymbol(")") {
		return nil, p.errorf("%s missing closing parenthesis", fn)
	}
	return AggExpr{Func: fn, Arg: arg}, nil
}
