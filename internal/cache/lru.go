package cache

import (
	"container/list"
	"sync"

	"github.com/golang/snappy"

	"github.com/stratadb/strata/internal/storage"
)

// Key identifies one cached byte buffer: an object locator plus the byte
// range read from it. Whole-object reads and range reads of the same
// object are distinct entries; the cache never returns bytes for a
// different range under a reused key.
type Key struct {
	Locator storage.Locator
	Whole   bool
	Range   storage.ByteRange
}

// NewKey builds the cache key for a read. rng may be nil for whole-object
// reads.
func NewKey(loc storage.Locator, rng *storage.ByteRange) Key {
	if rng == nil {
		return Key{Locator: loc, Whole: true}
	}
	return Key{Locator: loc, Range: *rng}
}

type entry struct {
	key        Key
	data       []byte
	size       int64
	compressed bool
}

// Option configures the LRU store.
type Option func(*LRU)

// WithCompression stores resident entries snappy-compressed when that
// saves space. Accounting uses the stored (compressed) size; Get always
// returns the original bytes.
func WithCompression() Option {
	return func(c *LRU) { c.compress = true }
}

// LRU is the bounded in-memory cache store: a mutex-guarded map plus a
// recency list, front = most recently used. All mutation (insert, evict,
// touch-on-hit) happens under one mutex so recency ordering and resident
// byte accounting stay consistent under concurrent sessions.
type LRU struct {
	mu       sync.Mutex
	capacity int64
	curBytes int64
	items    map[Key]*list.Element
	order    *list.List
	stats    *Stats
	compress bool
}

// NewLRU creates an LRU store bounded to capacity bytes.
func NewLRU(capacity int64, stats *Stats, opts ...Option) *LRU {
	c := &LRU{
		capacity: capacity,
		items:    make(map[Key]*list.Element),
		order:    list.New(),
		stats:    stats,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached bytes for key, promoting the entry to most
// recently used. The second return is false on a miss.
func (c *LRU) Get(key Key) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}

	e := elem.Value.(*entry)
	data := e.data
	if e.compressed {
		decoded, err := snappy.Decode(nil, e.data)
		if err != nil {
			// Corrupt resident entry; drop it and report a miss.
			c.removeLocked(elem)
			return nil, false
		}
		data = decoded
	}

	c.order.MoveToFront(elem)
	return data, true
}

// Put admits data under key, evicting least-recently-used entries until
// the new entry fits. An entry larger than the whole capacity is still
// admitted after everything else is evicted; the overflow is visible in
// bytes_resident rather than silently refused.
func (c *LRU) Put(key Key, data []byte) {
	stored := data
	compressed := false
	if c.compress {
		if enc := snappy.Encode(nil, data); len(enc) < len(data) {
			stored = enc
			compressed = true
		}
	}
	size := int64(len(stored))

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		// Same key always maps to identical bytes; just refresh recency.
		c.order.MoveToFront(elem)
		return
	}

	for c.curBytes+size > c.capacity && c.order.Len() > 0 {
		c.evictOldestLocked()
	}

	e := &entry{key: key, data: stored, size: size, compressed: compressed}
	c.items[key] = c.order.PushFront(e)
	c.curBytes += size
	c.stats.addResident(size)
}

// evictOldestLocked removes the least-recently-used entry.
// Caller must hold c.mu.
func (c *LRU) evictOldestLocked() {
	back := c.order.Back()
	if back == nil {
		return
	}
	c.removeLocked(back)
	c.stats.recordEviction()
}

// removeLocked removes one element and adjusts accounting.
// Caller must hold c.mu.
func (c *LRU) removeLocked(elem *list.Element) {
	e := elem.Value.(*entry)
	c.order.Remove(elem)
	delete(c.items, e.key)
	c.curBytes -= e.size
	c.stats.removeResident(e.size)
}

// Len returns the number of resident entries.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// BytesResident returns the stored size of all resident entries.
func (c *LRU) BytesResident() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.curBytes
}

// Clear drops every resident entry. Eviction counters are not advanced;
// a clear is not an eviction.
func (c *LRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, elem := range c.items {
		e := elem.Value.(*entry)
		c.curBytes -= e.size
		c.stats.removeResident(e.size)
		delete(c.items, key)
	}
	c.order.Init()
}
