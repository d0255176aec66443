package cache

import (
	"container/list"
	"sync"
	"time"
)

// MemoryCache is a process-local Medium bounded by total value bytes.
// The least recently read or written key is dropped first. It backs the
// memory backend and tests.
type MemoryCache struct {
	mu sync.Mutex

	limit  int64
	used   int64
	byKey  map[string]*list.Element // values are *memItem
	recent *list.List               // front is most recently used
	closed bool

	stats CacheStats
}

type memItem struct {
	key   string
	value []byte
}

// NewMemoryCache returns an empty cache holding at most limit value bytes.
func NewMemoryCache(limit int64) *MemoryCache {
	return &MemoryCache{
		limit:  limit,
		byKey:  make(map[string]*list.Element),
		recent: list.New(),
		stats:  CacheStats{Capacity: limit},
	}
}

// Get returns a copy of the value stored under key.
func (c *MemoryCache) Get(key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, false, ErrClosed
	}

	el, ok := c.byKey[key]
	if !ok {
		c.stats.Misses++
		return nil, false, nil
	}
	c.recent.MoveToFront(el)
	c.stats.Hits++
	c.stats.LastAccess = time.Now()
	return clone(el.Value.(*memItem).value), true, nil
}

// Put stores a copy of value under key.
func (c *MemoryCache) Put(key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	n := int64(len(value))
	if n > c.limit {
		return ErrItemTooLarge
	}

	if el, ok := c.byKey[key]; ok {
		c.drop(el)
	}
	for c.used+n > c.limit {
		c.evict()
	}
	c.byKey[key] = c.recent.PushFront(&memItem{key: key, value: clone(value)})
	c.used += n
	return nil
}

// Delete removes key. Missing keys are not an error.
func (c *MemoryCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if el, ok := c.byKey[key]; ok {
		c.drop(el)
	}
	return nil
}

// Clear removes every entry.
func (c *MemoryCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reset()
	return nil
}

// Close drops all entries. Later calls return ErrClosed.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.reset()
	return nil
}

// Size returns the bytes held by stored values.
func (c *MemoryCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.used
}

// Contains reports whether key is stored, without touching its recency.
func (c *MemoryCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.byKey[key]
	return ok
}

// Stats returns usage counters.
func (c *MemoryCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stats.snapshot(c.used, len(c.byKey))
}

func (c *MemoryCache) evict() {
	if el := c.recent.Back(); el != nil {
		c.drop(el)
		c.stats.Evictions++
		c.stats.LastEvict = time.Now()
	}
}

func (c *MemoryCache) drop(el *list.Element) {
	item := c.recent.Remove(el).(*memItem)
	delete(c.byKey, item.key)
	c.used -= int64(len(item.value))
}

func (c *MemoryCache) reset() {
	c.byKey = make(map[string]*list.Element)
	c.recent.Init()
	c.used = 0
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
