// Package columnar encodes and decodes row batches as Parquet files.
package columnar

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"

	apperr "github.com/stratadb/strata/internal/errors"
	"github.com/stratadb/strata/pkg/types"
)

// BuildSchema converts a table schema into a parquet schema. Column order
// in the resulting file follows parquet-go's field ordering, not the
// order of s.Columns; use the decoded schema when reading back.
func BuildSchema(name string, s types.Schema) (*parquet.Schema, error) {
	group := make(parquet.Group, len(s.Columns))
	for _, col := range s.Columns {
		node, err := fieldNode(col)
		if err != nil {
			return nil, err
		}
		group[col.Name] = node
	}
	return parquet.NewSchema(name, group), nil
}

func fieldNode(col types.ColumnDef) (parquet.Node, error) {
	var node parquet.Node
	switch col.Type {
	case types.TypeInt32:
		node = parquet.Int(32)
	case types.TypeInt64:
		node = parquet.Int(64)
	case types.TypeFloat64:
		node = parquet.Leaf(parquet.DoubleType)
	case types.TypeString:
		node = parquet.String()
	case types.TypeBool:
		node = parquet.Leaf(parquet.BooleanType)
	case types.TypeTimestamp:
		node = parquet.Timestamp(parquet.Microsecond)
	default:
		return nil, apperr.Newf(apperr.CategoryStorage, apperr.CodeWriteFailed,
			"unsupported column type %v for column %q", col.Type, col.Name)
	}
	if col.Nullable {
		node = parquet.Optional(node)
	}
	return node, nil
}

// Encode writes rows as a complete Parquet file and returns its bytes.
// Every non-nullable column must be present and non-nil in every row.
func Encode(s types.Schema, rows []types.Row) ([]byte, error) {
	pqSchema, err := BuildSchema("row", s)
	if err != nil {
		return nil, err
	}

	// Column index by name in parquet field order.
	fields := pqSchema.Fields()
	cols := make([]types.ColumnDef, len(fields))
	for i, f := range fields {
		col := s.Column(f.Name())
		if col == nil {
			return nil, apperr.Newf(apperr.CategoryStorage, apperr.CodeWriteFailed,
				"schema field %q has no column definition", f.Name())
		}
		cols[i] = *col
	}

	rowBuf := parquet.NewBuffer(pqSchema)
	for n, r := range rows {
		row := make(parquet.Row, len(cols))
		for i, col := range cols {
			val, err := columnValue(r, col, n)
			if err != nil {
				return nil, err
			}
			if val.IsNull() {
				row[i] = val.Level(0, 0, i)
			} else if col.Nullable {
				row[i] = val.Level(0, 1, i)
			} else {
				row[i] = val.Level(0, 0, i)
			}
		}
		if _, err := rowBuf.WriteRows([]parquet.Row{row}); err != nil {
			return nil, apperr.Wrap(apperr.CategoryStorage, apperr.CodeWriteFailed,
				fmt.Sprintf("write row %d", n), err)
		}
	}

	var buf bytes.Buffer
	w := parquet.NewWriter(&buf, pqSchema, parquet.Compression(&parquet.Snappy))
	if _, err := w.WriteRowGroup(rowBuf); err != nil {
		_ = w.Close()
		return nil, apperr.Wrap(apperr.CategoryStorage, apperr.CodeWriteFailed, "write row group", err)
	}
	if err := w.Close(); err != nil {
		return nil, apperr.Wrap(apperr.CategoryStorage, apperr.CodeWriteFailed, "close writer", err)
	}
	return buf.Bytes(), nil
}

func columnValue(r types.Row, col types.ColumnDef, n int) (parquet.Value, error) {
	val, ok := r[col.Name]
	if !ok || val == nil {
		if !col.Nullable {
			return parquet.Value{}, apperr.Newf(apperr.CategoryStorage, apperr.CodeWriteFailed,
				"row %d: missing required column %q", n, col.Name)
		}
		return parquet.NullValue(), nil
	}

	switch col.Type {
	case types.TypeInt32:
		switch v := val.(type) {
		case int32:
			return parquet.Int32Value(v), nil
		case int64:
			return parquet.Int32Value(int32(v)), nil
		case int:
			return parquet.Int32Value(int32(v)), nil
		}
	case types.TypeInt64:
		switch v := val.(type) {
		case int64:
			return parquet.Int64Value(v), nil
		case int32:
			return parquet.Int64Value(int64(v)), nil
		case int:
			return parquet.Int64Value(int64(v)), nil
		}
	case types.TypeFloat64:
		switch v := val.(type) {
		case float64:
			return parquet.DoubleValue(v), nil
		case float32:
			return parquet.DoubleValue(float64(v)), nil
		}
	case types.TypeString:
		if v, ok := val.(string); ok {
			return parquet.ByteArrayValue([]byte(v)), nil
		}
	case types.TypeBool:
		if v, ok := val.(bool); ok {
			return parquet.BooleanValue(v), nil
		}
	case types.TypeTimestamp:
		if v, ok := val.(time.Time); ok {
			return parquet.Int64Value(v.UnixMicro()), nil
		}
	}
	return parquet.Value{}, apperr.Newf(apperr.CategoryStorage, apperr.CodeWriteFailed,
		"row %d: column %q expects %v, got %T", n, col.Name, col.Type, val)
}

// Decode reads a complete Parquet file, deriving the schema from the
// file footer. Column order in the returned schema follows the file.
func Decode(data []byte) (types.Schema, []types.Row, error) {
	if len(data) == 0 {
		return types.Schema{}, nil, apperr.New(apperr.CategoryStorage, apperr.CodeReadFailed, "empty parquet file")
	}
	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return types.Schema{}, nil, apperr.Wrap(apperr.CategoryStorage, apperr.CodeReadFailed, "open parquet file", err)
	}

	schema, err := schemaOf(file.Schema())
	if err != nil {
		return types.Schema{}, nil, err
	}

	numRows := file.NumRows()
	if numRows == 0 {
		return schema, nil, nil
	}

	reader := parquet.NewReader(file)
	defer func() { _ = reader.Close() }()

	out := make([]types.Row, 0, numRows)
	rows := make([]parquet.Row, 128)
	for {
		n, err := reader.ReadRows(rows)
		for i := 0; i < n; i++ {
			out = append(out, rowOf(rows[i], schema))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return types.Schema{}, nil, apperr.Wrap(apperr.CategoryStorage, apperr.CodeReadFailed, "read rows", err)
		}
	}
	return schema, out, nil
}

// SchemaOf derives the table schema from a Parquet file's footer without
// reading any rows.
func SchemaOf(data []byte) (types.Schema, error) {
	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return types.Schema{}, apperr.Wrap(apperr.CategoryStorage, apperr.CodeReadFailed, "open parquet file", err)
	}
	return schemaOf(file.Schema())
}

func schemaOf(s *parquet.Schema) (types.Schema, error) {
	fields := s.Fields()
	cols := make([]types.ColumnDef, 0, len(fields))
	for _, f := range fields {
		ct, err := columnTypeOf(f.Name(), f)
		if err != nil {
			return types.Schema{}, err
		}
		cols = append(cols, types.ColumnDef{Name: f.Name(), Type: ct, Nullable: f.Optional()})
	}
	return types.Schema{Columns: cols}, nil
}

func columnTypeOf(name string, node parquet.Node) (types.ColumnType, error) {
	t := node.Type()
	if lt := t.LogicalType(); lt != nil {
		switch {
		case lt.Timestamp != nil:
			return types.TypeTimestamp, nil
		case lt.UTF8 != nil:
			return types.TypeString, nil
		case lt.Integer != nil:
			if lt.Integer.BitWidth <= 32 {
				return types.TypeInt32, nil
			}
			return types.TypeInt64, nil
		}
	}
	switch t.Kind() {
	case parquet.Boolean:
		return types.TypeBool, nil
	case parquet.Int32:
		return types.TypeInt32, nil
	case parquet.Int64:
		return types.TypeInt64, nil
	case parquet.Double:
		return types.TypeFloat64, nil
	case parquet.ByteArray:
		return types.TypeString, nil
	}
	return 0, apperr.Newf(apperr.CategoryStorage, apperr.CodeReadFailed,
		"unsupported parquet type %s for column %q", t, name)
}

func rowOf(row parquet.Row, schema types.Schema) types.Row {
	out := make(types.Row, len(schema.Columns))
	for i, col := range schema.Columns {
		if i >= len(row) {
			break
		}
		v := row[i]
		if v.IsNull() {
			out[col.Name] = nil
			continue
		}
		switch col.Type {
		case types.TypeInt32:
			out[col.Name] = v.Int32()
		case types.TypeInt64:
			out[col.Name] = v.Int64()
		case types.TypeFloat64:
			out[col.Name] = v.Double()
		case types.TypeString:
			out[col.Name] = string(v.ByteArray())
		case types.TypeBool:
			out[col.Name] = v.Boolean()
		case types.TypeTimestamp:
			out[col.Name] = time.UnixMicro(v.Int64()).UTC()
		}
	}
	return out
}
