package extract

import (
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stratadb/strata/internal/columnar"
	apperr "github.com/stratadb/strata/internal/errors"
	"github.com/stratadb/strata/internal/storage"
	"github.com/stratadb/strata/pkg/types"
)

func userSchema() types.Schema {
	return types.Schema{Columns: []types.ColumnDef{
		{Name: "name", Type: types.TypeString},
		{Name: "age", Type: types.TypeInt64},
		{Name: "signup", Type: types.TypeTimestamp},
	}}
}

type sliceSource struct {
	schema types.Schema
	rows   []types.Row
	pos    int
}

func (s *sliceSource) Schema() types.Schema { return s.schema }
func (s *sliceSource) Close() error         { return nil }
func (s *sliceSource) Next() (types.Row, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	r := s.rows[s.pos]
	s.pos++
	return r, nil
}

func listPaths(t *testing.T, store storage.ObjectStore, root string) []string {
	t.Helper()
	infos, err := store.List(context.Background(), storage.Locator{Scheme: storage.SchemeFile, Path: root})
	if err != nil {
		t.Fatal(err)
	}
	paths := make([]string, len(infos))
	for i, info := range infos {
		paths[i] = strings.TrimPrefix(info.Locator.Path, root+"/")
	}
	sort.Strings(paths)
	return paths
}

func TestPartitionWriter_HivePaths(t *testing.T) {
	root := t.TempDir()
	store := storage.NewLocalStore()
	ctx := context.Background()

	w, err := NewPartitionWriter(WriterConfig{
		Store:  store,
		Root:   root,
		Spec:   types.PartitionSpec{Columns: []string{"name", "year"}, TimestampColumn: "signup"},
		Schema: userSchema(),
	})
	if err != nil {
		t.Fatal(err)
	}

	rows := []types.Row{
		{"name": "Alice", "age": int64(30), "signup": time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"name": "Bob", "age": int64(41), "signup": time.Date(2024, 7, 9, 0, 0, 0, 0, time.UTC)},
	}
	for _, r := range rows {
		if err := w.Write(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(ctx); err != nil {
		t.Fatal(err)
	}

	paths := listPaths(t, store, root)
	if len(paths) != 2 {
		t.Fatalf("got %d files: %v", len(paths), paths)
	}
	wantDirs := []string{"name=Alice/year=2023", "name=Bob/year=2024"}
	for i, p := range paths {
		dir, file := path.Split(p)
		if strings.TrimSuffix(dir, "/") != wantDirs[i] {
			t.Fatalf("file %q not under %q", p, wantDirs[i])
		}
		if !strings.HasPrefix(file, "part-") || !strings.HasSuffix(file, ".parquet") {
			t.Fatalf("bad part file name %q", file)
		}
	}

	// Round trip: rows read back match what went in.
	data, err := store.Get(ctx, storage.Locator{Scheme: storage.SchemeFile, Path: path.Join(root, paths[0])}, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, got, err := columnar.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0]["name"] != "Alice" || got[0]["age"] != int64(30) {
		t.Fatalf("decoded rows: %v", got)
	}
}

func TestPartitionWriter_FlushThresholdSplitsFiles(t *testing.T) {
	root := t.TempDir()
	store := storage.NewLocalStore()
	ctx := context.Background()

	w, err := NewPartitionWriter(WriterConfig{
		Store:     store,
		Root:      root,
		Spec:      types.PartitionSpec{Columns: []string{"name"}},
		Schema:    userSchema(),
		FlushRows: 2,
	})
	if err != nil {
		t.Fatal(err)
	}

	ts := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		row := types.Row{"name": "Alice", "age": int64(i), "signup": ts}
		if err := w.Write(ctx, row); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(ctx); err != nil {
		t.Fatal(err)
	}

	// 5 rows at threshold 2: two full files plus the remainder.
	paths := listPaths(t, store, root)
	if len(paths) != 3 {
		t.Fatalf("got %d files: %v", len(paths), paths)
	}
	if w.RowsWritten() != 5 || w.FilesWritten() != 3 {
		t.Fatalf("rows %d files %d", w.RowsWritten(), w.FilesWritten())
	}
}

func TestPartitionWriter_ValueEscaping(t *testing.T) {
	root := t.TempDir()
	store := storage.NewLocalStore()
	ctx := context.Background()

	w, err := NewPartitionWriter(WriterConfig{
		Store:  store,
		Root:   root,
		Spec:   types.PartitionSpec{Columns: []string{"name"}},
		Schema: userSchema(),
	})
	if err != nil {
		t.Fatal(err)
	}

	row := types.Row{"name": "a/b c", "age": int64(1), "signup": time.Now().UTC()}
	if err := w.Write(ctx, row); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(ctx); err != nil {
		t.Fatal(err)
	}

	paths := listPaths(t, store, root)
	if len(paths) != 1 || !strings.HasPrefix(paths[0], "name=a%2Fb%20c/") {
		t.Fatalf("paths %v", paths)
	}

	// The escaped segment decodes back to the original value.
	col, val, ok := types.DecodeSegment(strings.SplitN(paths[0], "/", 2)[0])
	if !ok || col != "name" || val != "a/b c" {
		t.Fatalf("decoded %q %q %v", col, val, ok)
	}
}

func TestPartitionWriter_Validation(t *testing.T) {
	store := storage.NewLocalStore()
	tests := []struct {
		name string
		spec types.PartitionSpec
	}{
		{"unknown column", types.PartitionSpec{Columns: []string{"missing"}}},
		{"reserved key without timestamp", types.PartitionSpec{Columns: []string{"year"}}},
		{"unknown timestamp column", types.PartitionSpec{Columns: []string{"name"}, TimestampColumn: "nope"}},
		{"duplicate column", types.PartitionSpec{Columns: []string{"name", "name"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPartitionWriter(WriterConfig{
				Store: store, Root: t.TempDir(), Spec: tt.spec, Schema: userSchema(),
			})
			if err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestPartitionWriter_NullPartitionValueAborts(t *testing.T) {
	store := storage.NewLocalStore()
	w, err := NewPartitionWriter(WriterConfig{
		Store: store, Root: t.TempDir(),
		Spec:   types.PartitionSpec{Columns: []string{"name"}},
		Schema: userSchema(),
	})
	if err != nil {
		t.Fatal(err)
	}
	err = w.Write(context.Background(), types.Row{"name": nil, "age": int64(1), "signup": time.Now()})
	if !apperr.Is(err, apperr.CategoryExtract, apperr.CodeWriteFailed) {
		t.Fatalf("got %v", err)
	}
}

func TestRun_EndToEnd(t *testing.T) {
	root := t.TempDir()
	store := storage.NewLocalStore()

	src := &sliceSource{schema: userSchema(), rows: []types.Row{
		{"name": "Alice", "age": int64(30), "signup": time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC)},
		{"name": "Alice", "age": int64(31), "signup": time.Date(2023, 3, 2, 12, 0, 0, 0, time.UTC)},
		{"name": "Bob", "age": int64(41), "signup": time.Date(2024, 7, 9, 12, 0, 0, 0, time.UTC)},
	}}
	w, err := NewPartitionWriter(WriterConfig{
		Store:  store,
		Root:   root,
		Spec:   types.PartitionSpec{Columns: []string{"year", "month"}, TimestampColumn: "signup"},
		Schema: src.schema,
	})
	if err != nil {
		t.Fatal(err)
	}

	sum, err := Run(context.Background(), src, w, nil)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Rows != 3 || sum.Files != 2 {
		t.Fatalf("summary %+v", sum)
	}

	paths := listPaths(t, store, root)
	var dirs []string
	for _, p := range paths {
		dirs = append(dirs, path.Dir(p))
	}
	want := []string{"year=2023/month=03", "year=2024/month=07"}
	for i, d := range dirs {
		if d != want[i] {
			t.Fatalf("dirs %v, want %v", dirs, want)
		}
	}
}
