package tone

import (
	"container/list"
	"sync"
)

// cache keeps the most recently rendered clips, bounded by entry count and
// total bytes.
type cache struct {
	capacity int
	maxBytes int
	size     int
	items    map[params]*list.Element
	eviction *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	key   params
	value []byte
}

func newCache(capacity, maxBytes int) *cache {
	return &cache{
		capacity: capacity,
		maxBytes: maxBytes,
		items:    make(map[params]*list.Element),
		eviction: list.New(),
	}
}

func (c *cache) get(key params) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}

	c.eviction.MoveToFront(elem)
	return elem.Value.(*cacheEntry).value, true
}

func (c *cache) put(key params, value []byte) {
	if c.capacity <= 0 || len(value) > c.maxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.eviction.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		c.size += len(value) - len(entry.value)
		entry.value = value
	} else {
		c.items[key] = c.eviction.PushFront(&cacheEntry{key: key, value: value})
		c.size += len(value)
	}

	for c.eviction.Len() > c.capacity || c.size > c.maxBytes {
		oldest := c.eviction.Back()
		c.eviction.Remove(oldest)

		entry := oldest.Value.(*cacheEntry)
		delete(c.items, entry.key)
		c.size -= len(entry.value)
	}
}

func (c *cache) bytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.size
}

func (c *cache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.eviction.Len()
}
