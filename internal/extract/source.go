// Package extract streams rows out of a relational source and writes them
// as Hive-partitioned Parquet files.
package extract

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	apperr "github.com/stratadb/strata/internal/errors"
	"github.com/stratadb/strata/pkg/types"
)

// Source yields rows one at a time. Next returns io.EOF after the last row.
type Source interface {
	Schema() types.Schema
	Next() (types.Row, error)
	Close() error
}

// SQLSource streams a table through database/sql without materializing it.
type SQLSource struct {
	db     *sql.DB
	rows   *sql.Rows
	schema types.Schema
}

// ParseDSN splits a source DSN of the form scheme://rest into a database/sql
// driver name and the driver-specific DSN.
func ParseDSN(dsn string) (driver, driverDSN string, err error) {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return "", "", apperr.Newf(apperr.CategoryExtract, apperr.CodeSourceRead,
			"source DSN %q has no scheme", dsn)
	}
	switch scheme {
	case "sqlite3", "sqlite":
		return "sqlite3", rest, nil
	case "mysql":
		return "mysql", rest, nil
	}
	return "", "", apperr.Newf(apperr.CategoryExtract, apperr.CodeSourceRead,
		"unsupported source scheme %q", scheme)
}

// OpenSQL opens a streaming cursor over table. When orderBy is non-empty the
// rows are consumed in ascending order of that column, so files within a
// partition end up time-ordered.
func OpenSQL(ctx context.Context, dsn, table, orderBy string) (*SQLSource, error) {
	driver, driverDSN, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, driverDSN)
	if err != nil {
		return nil, apperr.Wrap(apperr.CategoryExtract, apperr.CodeSourceRead, "open source", err)
	}

	query := fmt.Sprintf("SELECT * FROM %s", table)
	if orderBy != "" {
		query += fmt.Sprintf(" ORDER BY %s", orderBy)
	}
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		_ = db.Close()
		return nil, apperr.Wrap(apperr.CategoryExtract, apperr.CodeSourceRead,
			fmt.Sprintf("query table %s", table), err)
	}

	schema, err := schemaFromRows(rows)
	if err != nil {
		_ = rows.Close()
		_ = db.Close()
		return nil, err
	}
	return &SQLSource{db: db, rows: rows, schema: schema}, nil
}

func (s *SQLSource) Schema() types.Schema { return s.schema }

func (s *SQLSource) Next() (types.Row, error) {
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return nil, apperr.Wrap(apperr.CategoryExtract, apperr.CodeSourceRead, "scan rows", err)
		}
		return nil, io.EOF
	}

	dest := make([]any, len(s.schema.Columns))
	for i, col := range s.schema.Columns {
		switch col.Type {
		case types.TypeInt32, types.TypeInt64:
			dest[i] = new(sql.NullInt64)
		case types.TypeFloat64:
			dest[i] = new(sql.NullFloat64)
		case types.TypeBool:
			dest[i] = new(sql.NullBool)
		case types.TypeTimestamp:
			dest[i] = new(sql.NullTime)
		default:
			dest[i] = new(sql.NullString)
		}
	}
	if err := s.rows.Scan(dest...); err != nil {
		return nil, apperr.Wrap(apperr.CategoryExtract, apperr.CodeSourceRead, "scan row", err)
	}

	row := make(types.Row, len(dest))
	for i, col := range s.schema.Columns {
		row[col.Name] = scannedValue(dest[i], col.Type)
	}
	return row, nil
}

func (s *SQLSource) Close() error {
	if err := s.rows.Close(); err != nil {
		_ = s.db.Close()
		return err
	}
	return s.db.Close()
}

func scannedValue(dest any, ct types.ColumnType) any {
	switch v := dest.(type) {
	case *sql.NullInt64:
		if !v.Valid {
			return nil
		}
		if ct == types.TypeInt32 {
			return int32(v.Int64)
		}
		return v.Int64
	case *sql.NullFloat64:
		if !v.Valid {
			return nil
		}
		return v.Float64
	case *sql.NullBool:
		if !v.Valid {
			return nil
		}
		return v.Bool
	case *sql.NullTime:
		if !v.Valid {
			return nil
		}
		return v.Time.UTC()
	case *sql.NullString:
		if !v.Valid {
			return nil
		}
		return v.String
	}
	return nil
}

func schemaFromRows(rows *sql.Rows) (types.Schema, error) {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return types.Schema{}, apperr.Wrap(apperr.CategoryExtract, apperr.CodeSourceRead, "column types", err)
	}

	cols := make([]types.ColumnDef, 0, len(colTypes))
	for _, ct := range colTypes {
		mapped, err := MapColumnType(ct.DatabaseTypeName())
		if err != nil {
			return types.Schema{}, apperr.Newf(apperr.CategoryExtract, apperr.CodeTypeMapping,
				"column %q: %v", ct.Name(), err)
		}
		nullable, ok := ct.Nullable()
		if !ok {
			// Driver cannot tell; assume nullable so nothing is lost.
			nullable = true
		}
		cols = append(cols, types.ColumnDef{Name: ct.Name(), Type: mapped, Nullable: nullable})
	}
	return types.Schema{Columns: cols}, nil
}

// MapColumnType maps a driver's DatabaseTypeName to a column type. Width is
// preserved where the driver distinguishes it. Types with no columnar
// representation are rejected, which aborts the run.
func MapColumnType(dbType string) (types.ColumnType, error) {
	name := strings.ToUpper(dbType)
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	switch name {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INT2", "INT4":
		return types.TypeInt32, nil
	case "INTEGER", "BIGINT", "INT8", "UNSIGNED BIG INT":
		return types.TypeInt64, nil
	case "FLOAT", "DOUBLE", "REAL", "DECIMAL", "NUMERIC":
		return types.TypeFloat64, nil
	case "CHAR", "VARCHAR", "NCHAR", "NVARCHAR", "TEXT", "TINYTEXT",
		"MEDIUMTEXT", "LONGTEXT", "CLOB", "ENUM", "": // sqlite3 leaves untyped columns blank
		return types.TypeString, nil
	case "BOOL", "BOOLEAN", "BIT":
		return types.TypeBool, nil
	case "DATE", "DATETIME", "TIMESTAMP":
		return types.TypeTimestamp, nil
	}
	return 0, fmt.Errorf("unsupported source type %q", dbType)
}
