package types

import (
	"fmt"
	"net/url"
	"strings"
)

// Reserved partition keys derived from a declared timestamp column rather
// than read from a source column of the same name.
const (
	KeyYear  = "year"
	KeyMonth = "month"
	KeyDay   = "day"
	KeyHour  = "hour"
)

// PartitionSpec declares how an extraction run lays out its output tree.
// It is immutable once a run starts.
type PartitionSpec struct {
	// Columns is the ordered list of partition-key columns. Each produces
	// one `col=value` path segment per row.
	Columns []string `json:"columns" yaml:"columns"`

	// TimestampColumn, when set, sequences rows before partitioning and
	// feeds the reserved time keys (year, month, day, hour).
	TimestampColumn string `json:"timestamp_column,omitempty" yaml:"timestamp_column,omitempty"`
}

// IsReservedKey reports whether name is a time-derived partition key.
func IsReservedKey(name string) bool {
	switch name {
	case KeyYear, KeyMonth, KeyDay, KeyHour:
		return true
	}
	return false
}

// Validate checks the spec for duplicate columns and for reserved keys
// declared without a timestamp column to derive them from.
func (s PartitionSpec) Validate() error {
	seen := make(map[string]bool, len(s.Columns))
	for _, col := range s.Columns {
		if col == "" {
			return fmt.Errorf("empty partition column name")
		}
		if seen[col] {
			return fmt.Errorf("duplicate partition column %q", col)
		}
		seen[col] = true

		if IsReservedKey(col) && s.TimestampColumn == "" {
			return fmt.Errorf("reserved partition key %q requires a timestamp column", col)
		}
	}
	return nil
}

// EncodeSegment renders one Hive-style path segment, escaping the value so
// it is path-safe.
func EncodeSegment(column, value string) string {
	return column + "=" + url.PathEscape(value)
}

// DecodeSegment splits a `col=value` path segment back into its parts.
// Returns ok=false for segments that do not carry a partition value.
func DecodeSegment(segment string) (column, value string, ok bool) {
	column, escaped, ok := strings.Cut(segment, "=")
	if !ok || column == "" {
		return "", "", false
	}
	value, err := url.PathUnescape(escaped)
	if err != nil {
		return "", "", false
	}
	return column, value, true
}
