package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// LRUCache evicts the least recently used entry once either the entry
// count or the byte budget is exceeded. Entries also expire after ttl.
type LRUCache[T any] struct {
	mu       sync.Mutex
	maxSize  int
	maxBytes int
	bytes    int
	sizeOf   func(T) int
	ttl      time.Duration
	now      func() time.Time
	items    map[string]*list.Element
	lru      *list.List
}

var (
	_ Cache[[]byte] = (*LRUCache[[]byte])(nil)
	_ Cleaner       = (*LRUCache[[]byte])(nil)
)

type cacheItem[T any] struct {
	key       string
	data      T
	size      int
	expiresAt time.Time
}

// NewLRUCache creates a new LRU cache with TTL
func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	return &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// NewByteLRUCache bounds the cache by the total length of stored slices as
// well as by entry count.
func NewByteLRUCache(maxSize, maxBytes int, ttl time.Duration) *LRUCache[[]byte] {
	c := NewLRUCache[[]byte](maxSize, ttl)
	c.maxBytes = maxBytes
	c.sizeOf = func(b []byte) int { return len(b) }
	return c
}

func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, exists := c.items[key]
	if !exists {
		return zero, false
	}

	item := elem.Value.(*cacheItem[T])
	if c.now().After(item.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}

	c.lru.MoveToFront(elem)
	return item.data, true
}

func (c *LRUCache[T]) Set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := &cacheItem[T]{
		key:       key,
		data:      data,
		expiresAt: c.now().Add(c.ttl),
	}
	if c.sizeOf != nil {
		item.size = c.sizeOf(data)
	}
	// an entry larger than the whole budget is never cached
	if c.maxBytes > 0 && item.size > c.maxBytes {
		if elem, exists := c.items[key]; exists {
			c.removeElement(elem)
		}
		return
	}

	if elem, exists := c.items[key]; exists {
		c.bytes -= elem.Value.(*cacheItem[T]).size
		elem.Value = item
		c.bytes += item.size
		c.lru.MoveToFront(elem)
	} else {
		c.items[key] = c.lru.PushFront(item)
		c.bytes += item.size
	}

	for c.lru.Len() > c.maxSize || (c.maxBytes > 0 && c.bytes > c.maxBytes) {
		c.removeElement(c.lru.Back())
	}
}

func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
}

func (c *LRUCache[T]) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, elem := range c.items {
		if strings.HasPrefix(key, prefix) {
			c.removeElement(elem)
			n++
		}
	}
	return n
}

func (c *LRUCache[T]) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	c.bytes -= item.size
	c.lru.Remove(elem)
}

// CleanExpired removes all expired entries and returns count of removed items
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var toRemove []*list.Element
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		if now.After(elem.Value.(*cacheItem[T]).expiresAt) {
			toRemove = append(toRemove, elem)
		}
	}
	for _, elem := range toRemove {
		c.removeElement(elem)
	}
	return len(toRemove)
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Bytes returns the accounted size of all entries.
func (c *LRUCache[T]) Bytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}
