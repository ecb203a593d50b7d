package registry

import (
	"sort"
	"strconv"

	"github.com/stratadb/strata/internal/storage"
)

// PredOp is a predicate operator the pruner understands. Anything a query
// expresses beyond these means the partition cannot be pruned.
type PredOp int

const (
	OpEq PredOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpIn
	OpBetween
)

// Predicate is one restriction over a partition column, extracted from a
// query's WHERE clause. Values carry the literal operands: one for the
// comparison ops, any number for IN, exactly two (low, high) for BETWEEN.
type Predicate struct {
	Column string
	Op     PredOp
	Values []string
}

// Prune computes the leaves whose partition values cannot be excluded by
// the predicates and returns the parquet locators under them. Predicates
// over non-partition columns are ignored here; the scan still applies
// them row by row. No partition predicates means a full scan.
func (t *Table) Prune(preds []Predicate) []storage.Locator {
	var out []storage.Locator
	for _, leaf := range t.Leaves {
		if leafSurvives(leaf, preds) {
			out = append(out, leaf.Files...)
		}
	}
	return out
}

// PruneLeaves is Prune at leaf granularity: the surviving leaves with
// their partition values, for callers that inject those values into
// scanned rows.
func (t *Table) PruneLeaves(preds []Predicate) []Leaf {
	var out []Leaf
	for _, leaf := range t.Leaves {
		if leafSurvives(leaf, preds) {
			out = append(out, leaf)
		}
	}
	return out
}

// PartitionColumn reports whether name is one of the table's partition
// columns.
func (t *Table) PartitionColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// PartitionValues returns the distinct values seen for one partition
// column, sorted.
func (t *Table) PartitionValues(column string) []string {
	seen := make(map[string]bool)
	for _, leaf := range t.Leaves {
		if v, ok := leaf.Values[column]; ok {
			seen[v] = true
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func leafSurvives(leaf Leaf, preds []Predicate) bool {
	for _, p := range preds {
		val, ok := leaf.Values[p.Column]
		if !ok {
			// Not a partition column of this leaf; cannot exclude.
			continue
		}
		if excluded(val, p) {
			return false
		}
	}
	return true
}

func excluded(val string, p Predicate) bool {
	switch p.Op {
	case OpEq:
		return len(p.Values) == 1 && compareValues(val, p.Values[0]) != 0
	case OpNe:
		return len(p.Values) == 1 && compareValues(val, p.Values[0]) == 0
	case OpLt:
		return len(p.Values) == 1 && compareValues(val, p.Values[0]) >= 0
	case OpLe:
		return len(p.Values) == 1 && compareValues(val, p.Values[0]) > 0
	case OpGt:
		return len(p.Values) == 1 && compareValues(val, p.Values[0]) <= 0
	case OpGe:
		return len(p.Values) == 1 && compareValues(val, p.Values[0]) < 0
	case OpIn:
		for _, want := range p.Values {
			if compareValues(val, want) == 0 {
				return false
			}
		}
		return len(p.Values) > 0
	case OpBetween:
		if len(p.Values) != 2 {
			return false
		}
		return compareValues(val, p.Values[0]) < 0 || compareValues(val, p.Values[1]) > 0
	}
	// Unknown operator: never exclude.
	return false
}

// compareValues orders two partition values numerically when both parse as
// numbers, lexicographically otherwise. Partition values live in paths as
// strings, so `year=2023` compares as the number 2023 against a numeric
// literal and as text against anything else.
func compareValues(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
