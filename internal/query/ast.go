package query

// Expr is a node in a parsed expression tree.
type Expr interface{ exprNode() }

// ColumnRef names a column of the scanned table.
type ColumnRef struct{ Name string }

// Literal holds a constant: int64, float64, string, bool, or nil for NULL.
type Literal struct{ Val any }

// BinaryExpr applies an infix operator: comparisons, AND/OR, arithmetic.
type BinaryExpr struct {
	Op   string // "=", "!=", "<", "<=", ">", ">=", "AND", "OR", "+", "-", "*", "/"
	L, R Expr
}

// UnaryExpr applies NOT or numeric negation.
type UnaryExpr struct {
	Op string // "NOT", "-"
	X  Expr
}

// InExpr is `x [NOT] IN (v1, v2, ...)`.
type InExpr struct {
	X    Expr
	List []Expr
	Not  bool
}

// BetweenExpr is `x [NOT] BETWEEN lo AND hi`.
type BetweenExpr struct {
	X, Lo, Hi Expr
	Not       bool
}

// IsNullExpr is `x IS [NOT] NULL`.
type IsNullExpr struct {
	X   Expr
	Not bool
}

// LikeExpr is `x [NOT] LIKE 'pattern'` with % and _ wildcards.
type LikeExpr struct {
	X       Expr
	Pattern string
	Not     bool
}

// AggExpr is an aggregate call: COUNT(*), COUNT(col), SUM, AVG, MIN, MAX.
type AggExpr struct {
	Func string // uppercased
	Arg  Expr   // nil for COUNT(*)
	Star bool
}

func (ColumnRef) exprNode()   {}
func (Literal) exprNode()     {}
func (BinaryExpr) exprNode()  {}
func (UnaryExpr) exprNode()   {}
func (InExpr) exprNode()      {}
func (BetweenExpr) exprNode() {}
func (IsNullExpr) exprNode()  {}
func (LikeExpr) exprNode()    {}
func (AggExpr) exprNode()     {}

// SelectItem is one projection: `*`, or an expression with an optional alias.
type SelectItem struct {
	Star  bool
	Expr  Expr
	Alias string
}

// OrderItem is one ORDER BY term.
type OrderItem struct {
	Expr Expr
	Desc bool
}

// SelectStmt is a parsed SELECT statement.
type SelectStmt struct {
	Items   []SelectItem
	Table   string
	Where   Expr
	GroupBy []string
	OrderBy []OrderItem
	Limit   int // -1 when absent
	Offset  int
}
