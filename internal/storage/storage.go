// Package storage provides uniform object addressing and byte-range reads
// over a local filesystem or S3 backend. The backend is selected once at
// startup and never changes during the process lifetime.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common errors for storage operations. Backend errors are propagated to
// callers untouched; any retry policy belongs to the backend client.
var (
	ErrNotFound     = errors.New("object not found")
	ErrInvalidRange = errors.New("invalid byte range")
)

// Scheme identifies the storage backend an object lives on.
type Scheme string

const (
	SchemeFile Scheme = "file"
	SchemeS3   Scheme = "s3"
)

// Locator addresses one object on the selected backend. Equality is
// structural: two locators are the same object iff scheme and path match.
type Locator struct {
	Scheme Scheme
	Path   string
}

// String renders the locator as a URI-style string.
func (l Locator) String() string {
	return string(l.Scheme) + "://" + l.Path
}

// ByteRange selects a contiguous slice of an object's bytes. A nil
// *ByteRange in Get means the whole object.
type ByteRange struct {
	Offset int64
	Length int64
}

// String renders the range in offset+length form.
func (r ByteRange) String() string {
	return fmt.Sprintf("%d+%d", r.Offset, r.Length)
}

// ObjectInfo describes one listed object.
type ObjectInfo struct {
	Locator  Locator
	Size     int64
	Modified time.Time
}

// ObjectStore is the byte-store half of the storage layer: range reads,
// listing, and size probes. Implementations are LocalStore and S3Store.
type ObjectStore interface {
	// Get returns the object's bytes, or the selected range when rng is
	// non-nil. A range extending past the end of the object is clamped,
	// matching HTTP range semantics. Returns ErrNotFound for absent
	// objects.
	Get(ctx context.Context, loc Locator, rng *ByteRange) ([]byte, error)

	// List returns every object under the prefix, recursively. Ordering
	// is unspecified.
	List(ctx context.Context, prefix Locator) ([]ObjectInfo, error)

	// Head returns the object's size without fetching its bytes.
	// Returns ErrNotFound for absent objects.
	Head(ctx context.Context, loc Locator) (int64, error)

	// Put writes a whole object. Used only by extraction runs; serving
	// never mutates the tree.
	Put(ctx context.Context, loc Locator, data []byte) error

	// Scheme reports which backend this store addresses.
	Scheme() Scheme
}

// ParseRoot splits a dataset root into its scheme and path. Roots of the
// form `s3://bucket/prefix` address the S3 backend; everything else is a
// local filesystem path.
func ParseRoot(root string) (Scheme, string) {
	if after, ok := strings.CutPrefix(root, "s3://"); ok {
		return SchemeS3, after
	}
	return SchemeFile, strings.TrimPrefix(root, "file://")
}
