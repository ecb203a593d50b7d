package types

import "testing"

func testSchema() Schema {
	return Schema{Columns: []ColumnDef{
		{Name: "id", Type: TypeInt64},
		{Name: "name", Type: TypeString},
		{Name: "score", Type: TypeFloat64, Nullable: true},
	}}
}

func TestSchemaColumn(t *testing.T) {
	s := testSchema()

	col := s.Column("score")
	if col == nil {
		t.Fatal("Column(score) = nil, want definition")
	}
	if col.Type != TypeFloat64 || !col.Nullable {
		t.Errorf("Column(score) = %+v, want nullable float64", col)
	}

	if got := s.Column("missing"); got != nil {
		t.Errorf("Column(missing) = %+v, want nil", got)
	}

	// The returned pointer addresses the schema's own entry.
	if col != &s.Columns[2] {
		t.Error("Column(score) does not alias the schema entry")
	}
}

func TestSchemaNames(t *testing.T) {
	got := testSchema().Names()
	want := []string{"id", "name", "score"}
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
