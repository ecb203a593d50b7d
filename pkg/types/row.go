package types

// Row is one record keyed by column name. Values are the Go representations
// of the analytic column types: int32, int64, float64, string, bool,
// time.Time, or nil for SQL NULL.
type Row = map[string]any
