package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore implements ObjectStore over the local filesystem. Locator
// paths are regular filesystem paths.
type LocalStore struct{}

// NewLocalStore creates a filesystem-backed object store.
func NewLocalStore() *LocalStore {
	return &LocalStore{}
}

// Scheme reports the file backend.
func (s *LocalStore) Scheme() Scheme {
	return SchemeFile
}

// Get reads the object, or the selected range of it.
func (s *LocalStore) Get(ctx context.Context, loc Locator, rng *ByteRange) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(loc.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
		}
		return nil, err
	}
	defer f.Close()

	if rng == nil {
		return io.ReadAll(f)
	}

	if rng.Offset < 0 || rng.Length <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRange, rng)
	}

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if rng.Offset >= info.Size() {
		return nil, fmt.Errorf("%w: offset %d beyond size %d", ErrInvalidRange, rng.Offset, info.Size())
	}

	// Clamp at EOF to match HTTP range semantics.
	length := rng.Length
	if rng.Offset+length > info.Size() {
		length = info.Size() - rng.Offset
	}

	buf := make([]byte, length)
	if _, err := f.ReadAt(buf, rng.Offset); err != nil {
		return nil, err
	}
	return buf, nil
}

// List walks the prefix directory recursively and returns every file.
// An absent prefix yields an empty listing, not an error.
func (s *LocalStore) List(ctx context.Context, prefix Locator) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var objects []ObjectInfo
	err := filepath.Walk(prefix.Path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		objects = append(objects, ObjectInfo{
			Locator:  Locator{Scheme: SchemeFile, Path: path},
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return objects, nil
}

// Put writes the object, creating parent directories as needed.
func (s *LocalStore) Put(ctx context.Context, loc Locator, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(loc.Path), 0755); err != nil {
		return err
	}
	return os.WriteFile(loc.Path, data, 0644)
}

// Head returns the file's size.
func (s *LocalStore) Head(ctx context.Context, loc Locator) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	info, err := os.Stat(loc.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, loc)
		}
		return 0, err
	}
	return info.Size(), nil
}
