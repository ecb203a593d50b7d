// Package types provides the shared data model for Strata datasets.
package types

import "fmt"

// ColumnType is the analytic column type a relational column maps to.
// Numeric width and nullability are preserved by the mapping; there is no
// silent truncation.
type ColumnType int

const (
	TypeInt32 ColumnType = iota
	TypeInt64
	TypeFloat64
	TypeString
	TypeBool
	// TypeTimestamp carries microsecond precision.
	TypeTimestamp
)

// String returns the lowercase name of the column type.
func (t ColumnType) String() string {
	switch t {
	case TypeInt32:
		return "int32"
	case TypeInt64:
		return "int64"
	case TypeFloat64:
		return "float64"
	case TypeString:
		return "string"
	case TypeBool:
		return "bool"
	case TypeTimestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}

// ColumnDef defines a single column in a dataset schema.
type ColumnDef struct {
	Name     string     `json:"name"`
	Type     ColumnType `json:"type"`
	Nullable bool       `json:"nullable"`
}

// Schema defines the ordered column structure of a dataset.
type Schema struct {
	Columns []ColumnDef `json:"columns"`
}

// Column returns the definition for name, or nil if absent.
func (s Schema) Column(name string) *ColumnDef {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return &s.Columns[i]
		}
	}
	return nil
}

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}
