package cache

import (
	"context"

	"github.com/stratadb/strata/internal/storage"
)

// CachedStore is the read-through composition of LRU store, statistics,
// and backend byte store. It implements storage.ObjectStore so callers
// cannot tell it apart from the backend, except through the counters.
//
// Concurrent misses on the same key each fetch from the backend
// independently; there is no single-flight coalescing.
type CachedStore struct {
	backend storage.ObjectStore
	lru     *LRU
	stats   *Stats
}

// NewCachedStore wraps backend with a cache bounded to capacity bytes.
func NewCachedStore(backend storage.ObjectStore, capacity int64, opts ...Option) *CachedStore {
	stats := NewStats()
	return &CachedStore{
		backend: backend,
		lru:     NewLRU(capacity, stats, opts...),
		stats:   stats,
	}
}

// Stats exposes the counter set for metrics exposition.
func (s *CachedStore) Stats() *Stats {
	return s.stats
}

// Scheme reports the backend's scheme.
func (s *CachedStore) Scheme() storage.Scheme {
	return s.backend.Scheme()
}

// Get consults the cache first and falls back to the backend on a miss,
// admitting the fetched bytes. Every call counts exactly one read and
// exactly one hit or miss, so hits + misses == reads over completed
// calls; a failed backend fetch still counts as a miss. Backend errors
// pass through untouched.
func (s *CachedStore) Get(ctx context.Context, loc storage.Locator, rng *storage.ByteRange) ([]byte, error) {
	s.stats.recordRead()

	key := NewKey(loc, rng)
	if data, ok := s.lru.Get(key); ok {
		s.stats.recordHit()
		return data, nil
	}
	s.stats.recordMiss()

	data, err := s.backend.Get(ctx, loc, rng)
	if err != nil {
		return nil, err
	}

	s.lru.Put(key, data)
	return data, nil
}

// List always delegates to the backend: partition discovery must observe
// newly written files.
func (s *CachedStore) List(ctx context.Context, prefix storage.Locator) ([]storage.ObjectInfo, error) {
	return s.backend.List(ctx, prefix)
}

// Head always delegates, for the same freshness reason as List.
func (s *CachedStore) Head(ctx context.Context, loc storage.Locator) (int64, error) {
	return s.backend.Head(ctx, loc)
}

// Put delegates to the backend. Serving never writes, but the composed
// store still satisfies the full ObjectStore interface.
func (s *CachedStore) Put(ctx context.Context, loc storage.Locator, data []byte) error {
	return s.backend.Put(ctx, loc, data)
}
