package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeTestFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLocalStore_GetWholeObject(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "a.parquet", []byte("hello parquet"))

	store := NewLocalStore()
	got, err := store.Get(context.Background(), Locator{Scheme: SchemeFile, Path: path}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello parquet" {
		t.Fatalf("got %q", got)
	}
}

func TestLocalStore_GetRange(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "a.bin", []byte("0123456789"))
	store := NewLocalStore()
	loc := Locator{Scheme: SchemeFile, Path: path}

	tests := []struct {
		name    string
		rng     ByteRange
		want    string
		wantErr error
	}{
		{"middle", ByteRange{Offset: 2, Length: 3}, "234", nil},
		{"from start", ByteRange{Offset: 0, Length: 4}, "0123", nil},
		{"clamped at EOF", ByteRange{Offset: 8, Length: 100}, "89", nil},
		{"offset beyond EOF", ByteRange{Offset: 10, Length: 1}, "", ErrInvalidRange},
		{"zero length", ByteRange{Offset: 0, Length: 0}, "", ErrInvalidRange},
		{"negative offset", ByteRange{Offset: -1, Length: 1}, "", ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := tt.rng
			got, err := store.Get(context.Background(), loc, &rng)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got err %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLocalStore_GetNotFound(t *testing.T) {
	store := NewLocalStore()
	loc := Locator{Scheme: SchemeFile, Path: filepath.Join(t.TempDir(), "missing")}

	if _, err := store.Get(context.Background(), loc, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if _, err := store.Head(context.Background(), loc); !errors.Is(err, ErrNotFound) {
		t.Fatalf("head: got %v, want ErrNotFound", err)
	}
}

func TestLocalStore_ListRecursive(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "year=2023/part-1.parquet", []byte("a"))
	writeTestFile(t, dir, "year=2024/part-2.parquet", []byte("bb"))
	writeTestFile(t, dir, "year=2024/part-3.parquet", []byte("ccc"))

	store := NewLocalStore()
	objects, err := store.List(context.Background(), Locator{Scheme: SchemeFile, Path: dir})
	if err != nil {
		t.Fatal(err)
	}
	if len(objects) != 3 {
		t.Fatalf("got %d objects, want 3", len(objects))
	}

	var total int64
	for _, obj := range objects {
		total += obj.Size
		if obj.Modified.IsZero() {
			t.Errorf("zero mod time for %s", obj.Locator)
		}
	}
	if total != 6 {
		t.Fatalf("total size %d, want 6", total)
	}
}

func TestLocalStore_ListAbsentPrefix(t *testing.T) {
	store := NewLocalStore()
	objects, err := store.List(context.Background(), Locator{Scheme: SchemeFile, Path: filepath.Join(t.TempDir(), "nope")})
	if err != nil {
		t.Fatal(err)
	}
	if len(objects) != 0 {
		t.Fatalf("expected empty listing, got %d", len(objects))
	}
}

func TestLocalStore_PutThenGet(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore()
	loc := Locator{Scheme: SchemeFile, Path: filepath.Join(dir, "name=Alice", "part-x.parquet")}

	if err := store.Put(context.Background(), loc, []byte("payload")); err != nil {
		t.Fatal(err)
	}

	size, err := store.Head(context.Background(), loc)
	if err != nil {
		t.Fatal(err)
	}
	if size != 7 {
		t.Fatalf("size %d, want 7", size)
	}
}

func TestParseRoot(t *testing.T) {
	tests := []struct {
		root   string
		scheme Scheme
		path   string
	}{
		{"/data/events", SchemeFile, "/data/events"},
		{"file:///data/events", SchemeFile, "/data/events"},
		{"s3://bucket/datasets/events", SchemeS3, "bucket/datasets/events"},
		{"s3://bucket", SchemeS3, "bucket"},
	}
	for _, tt := range tests {
		scheme, path := ParseRoot(tt.root)
		if scheme != tt.scheme || path != tt.path {
			t.Errorf("ParseRoot(%q) = (%s, %q), want (%s, %q)", tt.root, scheme, path, tt.scheme, tt.path)
		}
	}
}

func TestSplitBucket(t *testing.T) {
	bucket, key := SplitBucket("bucket/datasets/events")
	if bucket != "bucket" || key != "datasets/events" {
		t.Fatalf("got (%q, %q)", bucket, key)
	}
	bucket, key = SplitBucket("bucket")
	if bucket != "bucket" || key != "" {
		t.Fatalf("got (%q, %q)", bucket, key)
	}
}
