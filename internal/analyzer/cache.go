package analyzer

import (
	"container/list"
	"sync"
)

// lruCache is a fixed-capacity LRU cache of analysis results keyed by the
// xxh3 hash of the analyzed bytes.
type lruCache struct {
	capacity int
	mu       sync.Mutex
	items    map[uint64]*list.Element
	lruList  *list.List
}

type lruEntry struct {
	key   uint64
	value *Result
}

func newLRUCache(capacity int) *lruCache {
	return &lruCache{
		capacity: capacity,
		items:    make(map[uint64]*list.Element),
		lruList:  list.New(),
	}
}

// Get retrieves a value from the cache and marks it as recently used.
func (c *lruCache) Get(key uint64) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.lruList.MoveToFront(elem)
		return elem.Value.(*lruEntry).value, true
	}
	return nil, false
}

// Put adds or updates a value, evicting the least recently used entry when
// the cache is full.
func (c *lruCache) Put(key uint64, value *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.lruList.MoveToFront(elem)
		elem.Value.(*lruEntry).value = value
		return
	}

	elem := c.lruList.PushFront(&lruEntry{key: key, value: value})
	c.items[key] = elem

	if c.lruList.Len() > c.capacity {
		oldest := c.lruList.Back()
		c.lruList.Remove(oldest)
		delete(c.items, oldest.Value.(*lruEntry).key)
	}
}

// Len returns the current number of entries.
func (c *lruCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lruList.Len()
}
