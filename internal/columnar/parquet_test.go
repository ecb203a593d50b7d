package columnar

import (
	"testing"
	"time"

	apperr "github.com/stratadb/strata/internal/errors"
	"github.com/stratadb/strata/pkg/types"
)

func eventSchema() types.Schema {
	return types.Schema{Columns: []types.ColumnDef{
		{Name: "id", Type: types.TypeInt64},
		{Name: "name", Type: types.TypeString},
		{Name: "score", Type: types.TypeFloat64, Nullable: true},
		{Name: "active", Type: types.TypeBool},
		{Name: "created_at", Type: types.TypeTimestamp},
	}}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	schema := eventSchema()
	ts := time.Date(2023, 6, 15, 10, 30, 0, 0, time.UTC)
	rows := []types.Row{
		{"id": int64(1), "name": "alice", "score": 91.5, "active": true, "created_at": ts},
		{"id": int64(2), "name": "bob", "score": nil, "active": false, "created_at": ts.Add(time.Hour)},
	}

	data, err := Encode(schema, rows)
	if err != nil {
		t.Fatal(err)
	}

	decoded, got, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(rows) {
		t.Fatalf("got %d rows, want %d", len(got), len(rows))
	}
	if len(decoded.Columns) != len(schema.Columns) {
		t.Fatalf("decoded %d columns, want %d", len(decoded.Columns), len(schema.Columns))
	}

	byID := make(map[int64]types.Row, len(got))
	for _, r := range got {
		byID[r["id"].(int64)] = r
	}
	r1 := byID[1]
	if r1["name"] != "alice" || r1["score"] != 91.5 || r1["active"] != true {
		t.Fatalf("row 1 mismatch: %v", r1)
	}
	if !r1["created_at"].(time.Time).Equal(ts) {
		t.Fatalf("timestamp mismatch: %v", r1["created_at"])
	}
	r2 := byID[2]
	if r2["score"] != nil {
		t.Fatalf("nullable column not nil: %v", r2["score"])
	}
}

func TestEncode_MissingRequiredColumn(t *testing.T) {
	schema := types.Schema{Columns: []types.ColumnDef{
		{Name: "id", Type: types.TypeInt64},
	}}
	_, err := Encode(schema, []types.Row{{"other": int64(1)}})
	if !apperr.Is(err, apperr.CategoryStorage, apperr.CodeWriteFailed) {
		t.Fatalf("got %v", err)
	}
}

func TestEncode_TypeMismatch(t *testing.T) {
	schema := types.Schema{Columns: []types.ColumnDef{
		{Name: "id", Type: types.TypeInt64},
	}}
	_, err := Encode(schema, []types.Row{{"id": "not-a-number"}})
	if !apperr.Is(err, apperr.CategoryStorage, apperr.CodeWriteFailed) {
		t.Fatalf("got %v", err)
	}
}

func TestEncodeDecode_Empty(t *testing.T) {
	data, err := Encode(eventSchema(), nil)
	if err != nil {
		t.Fatal(err)
	}
	schema, rows, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Fatalf("got %d rows", len(rows))
	}
	if len(schema.Columns) != 5 {
		t.Fatalf("got %d columns", len(schema.Columns))
	}
}

func TestDecode_Garbage(t *testing.T) {
	if _, _, err := Decode([]byte("not a parquet file")); err == nil {
		t.Fatal("expected error")
	}
	if _, _, err := Decode(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestSchemaOf(t *testing.T) {
	data, err := Encode(eventSchema(), []types.Row{
		{"id": int64(1), "name": "x", "active": true, "created_at": time.Now().UTC()},
	})
	if err != nil {
		t.Fatal(err)
	}
	schema, err := SchemaOf(data)
	if err != nil {
		t.Fatal(err)
	}
	col := schema.Column("created_at")
	if col == nil || col.Type != types.TypeTimestamp {
		t.Fatalf("created_at column: %+v", col)
	}
	if c := schema.Column("score"); c == nil || !c.Nullable {
		t.Fatalf("score column: %+v", c)
	}
}
