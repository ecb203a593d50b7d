package query

import (
	"container/list"
	"strings"
	"sync"
)

// ResultCache is a small LRU over whole query results, keyed by the SQL
// text. It sits above the byte cache: a hit here skips parsing, pruning,
// and every byte-level read. Entry count bounded, not size bounded, since
// results are already materialized.
type ResultCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List // front = most recent
}

type resultEntry struct {
	key string
	res *Result
}

func NewResultCache(capacity int) *ResultCache {
	return &ResultCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (c *ResultCache) Get(sql string) (*Result, bool) {
	key := normalizeSQL(sql)
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*resultEntry).res, true
}

func (c *ResultCache) Put(sql string, res *Result) {
	key := normalizeSQL(sql)
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		el.Value.(*resultEntry).res = res
		c.order.MoveToFront(el)
		return
	}
	for c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*resultEntry).key)
	}
	c.items[key] = c.order.PushFront(&resultEntry{key: key, res: res})
}

func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func normalizeSQL(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}
