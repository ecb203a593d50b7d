// Package registry discovers the partition layout of registered tables and
// prunes partitions against query predicates. It only ever reads the
// partition tree; extraction owns all writes.
package registry

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	apperr "github.com/stratadb/strata/internal/errors"
	"github.com/stratadb/strata/internal/storage"
	"github.com/stratadb/strata/pkg/types"
)

// TableSpec is one `-table-spec` argument: name=root[:col1,col2,...].
// When the column list is omitted, the discovered layout is adopted as
// declared.
type TableSpec struct {
	Name    string
	Root    string
	Columns []string
}

// ParseTableSpec parses `name=root[:col1,col2,...]`. The root may itself
// contain `://`, so the column list is split off the last colon after it.
func ParseTableSpec(s string) (TableSpec, error) {
	name, rest, ok := strings.Cut(s, "=")
	if !ok || name == "" || rest == "" {
		return TableSpec{}, apperr.Newf(apperr.CategoryRegistry, apperr.CodeUnknownTable,
			"table spec %q is not name=root[:cols]", s)
	}

	root := rest
	var cols []string
	// A colon after the scheme separator introduces the column list.
	searchFrom := 0
	if i := strings.Index(rest, "://"); i >= 0 {
		searchFrom = i + 3
	}
	if i := strings.LastIndex(rest[searchFrom:], ":"); i >= 0 {
		root = rest[:searchFrom+i]
		for _, c := range strings.Split(rest[searchFrom+i+1:], ",") {
			c = strings.TrimSpace(c)
			if c == "" {
				return TableSpec{}, apperr.Newf(apperr.CategoryRegistry, apperr.CodeUnknownTable,
					"table spec %q has an empty partition column", s)
			}
			cols = append(cols, c)
		}
	}
	if root == "" {
		return TableSpec{}, apperr.Newf(apperr.CategoryRegistry, apperr.CodeUnknownTable,
			"table spec %q has an empty root", s)
	}
	return TableSpec{Name: name, Root: root, Columns: cols}, nil
}

// Leaf is one discovered partition directory: its column values and the
// parquet files directly under it.
type Leaf struct {
	Values map[string]string
	Files  []storage.Locator
}

// Table is a validated registration.
type Table struct {
	Name    string
	Root    string
	Columns []string
	Leaves  []Leaf
}

// Registry holds the tables that survived registration.
type Registry struct {
	store  storage.ObjectStore
	log    *zap.Logger
	tables map[string]*Table
}

func NewRegistry(store storage.ObjectStore, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{store: store, log: log, tables: make(map[string]*Table)}
}

// Register lists the spec's root, extracts the partition layout from the
// discovered leaf directories, and validates it against the declared
// column set (order-independent). The table is registered only when
// discovery and validation both succeed.
func (r *Registry) Register(ctx context.Context, spec TableSpec) error {
	_, rootPath := storage.ParseRoot(spec.Root)
	infos, err := r.store.List(ctx, storage.Locator{Scheme: r.store.Scheme(), Path: rootPath})
	if err != nil {
		return apperr.Wrap(apperr.CategoryRegistry, apperr.CodeEmptyRoot,
			"list root "+spec.Root, err)
	}

	leaves := make(map[string]*Leaf)
	for _, info := range infos {
		if !strings.HasSuffix(info.Locator.Path, ".parquet") {
			continue
		}
		rel := strings.TrimPrefix(info.Locator.Path, rootPath)
		rel = strings.TrimPrefix(rel, "/")
		dir, _, _ := cutLast(rel, "/")

		leaf, ok := leaves[dir]
		if !ok {
			values, err := decodeLeafDir(dir)
			if err != nil {
				return apperr.Newf(apperr.CategoryRegistry, apperr.CodeColumnMismatch,
					"table %s: %v", spec.Name, err)
			}
			leaf = &Leaf{Values: values}
			leaves[dir] = leaf
		}
		leaf.Files = append(leaf.Files, info.Locator)
	}
	if len(leaves) == 0 {
		return apperr.Newf(apperr.CategoryRegistry, apperr.CodeEmptyRoot,
			"table %s: no parquet files under %s", spec.Name, spec.Root)
	}

	discovered, err := columnSetOf(leaves)
	if err != nil {
		return apperr.Newf(apperr.CategoryRegistry, apperr.CodeColumnMismatch,
			"table %s: %v", spec.Name, err)
	}

	declared := spec.Columns
	if len(declared) == 0 {
		declared = discovered
	} else if !sameSet(declared, discovered) {
		return apperr.Newf(apperr.CategoryRegistry, apperr.CodeColumnMismatch,
			"table %s: declared columns %v do not match discovered %v",
			spec.Name, declared, discovered)
	}

	t := &Table{Name: spec.Name, Root: rootPath, Columns: declared}
	dirs := make([]string, 0, len(leaves))
	for dir := range leaves {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	for _, dir := range dirs {
		t.Leaves = append(t.Leaves, *leaves[dir])
	}
	r.tables[spec.Name] = t

	r.log.Info("registered table",
		zap.String("table", spec.Name),
		zap.String("root", spec.Root),
		zap.Strings("partition_columns", declared),
		zap.Int("leaves", len(t.Leaves)))
	return nil
}

// RegisterAll registers every spec, logging and skipping the ones that fail
// validation. The process keeps serving with whatever survived.
func (r *Registry) RegisterAll(ctx context.Context, specs []TableSpec) {
	for _, spec := range specs {
		if err := r.Register(ctx, spec); err != nil {
			r.log.Warn("excluding table",
				zap.String("table", spec.Name),
				zap.Error(err))
		}
	}
}

// Table returns a registered table by name.
func (r *Registry) Table(name string) (*Table, error) {
	t, ok := r.tables[name]
	if !ok {
		return nil, apperr.Newf(apperr.CategoryRegistry, apperr.CodeUnknownTable,
			"unknown table %q", name)
	}
	return t, nil
}

// Tables returns the registered tables, sorted by name.
func (r *Registry) Tables() []*Table {
	out := make([]*Table, 0, len(r.tables))
	for _, t := range r.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func cutLast(s, sep string) (before, after string, found bool) {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return "", s, false
}

func decodeLeafDir(dir string) (map[string]string, error) {
	values := make(map[string]string)
	if dir == "" {
		return values, nil
	}
	for _, seg := range strings.Split(dir, "/") {
		col, val, ok := types.DecodeSegment(seg)
		if !ok {
			return nil, apperr.Newf(apperr.CategoryRegistry, apperr.CodeColumnMismatch,
				"path segment %q is not col=value", seg)
		}
		if _, dup := values[col]; dup {
			return nil, apperr.Newf(apperr.CategoryRegistry, apperr.CodeColumnMismatch,
				"duplicate partition column %q in leaf path", col)
		}
		values[col] = val
	}
	return values, nil
}

func columnSetOf(leaves map[string]*Leaf) ([]string, error) {
	var ref []string
	for _, leaf := range leaves {
		cols := make([]string, 0, len(leaf.Values))
		for c := range leaf.Values {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		if ref == nil {
			ref = cols
			continue
		}
		if !sameSet(ref, cols) {
			return nil, apperr.Newf(apperr.CategoryRegistry, apperr.CodeColumnMismatch,
				"inconsistent partition columns across leaves: %v vs %v", ref, cols)
		}
	}
	return ref, nil
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		if !set[s] {
			return false
		}
	}
	return true
}
