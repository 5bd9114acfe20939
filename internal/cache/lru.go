package cache

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/elkan/internal/resource"
)

// node is an element of the recency list. The list is circular with a
// sentinel, most recently used first.
type node struct {
	key        Key
	data       []byte
	prev, next *node
}

// LRUBlockCache is a byte-bounded LRU cache. Blocks are also indexed per
// blob so that rewriting a segment drops its blocks without a full scan.
// Cached bytes are charged to an optional resource.Controller.
type LRUBlockCache struct {
	mu       sync.Mutex
	capacity int64
	size     int64
	items    map[Key]*node
	blobs    map[string]map[uint64]*node
	head     node
	rc       *resource.Controller

	hits   atomic.Int64
	misses atomic.Int64
}

var _ BlockCache = (*LRUBlockCache)(nil)

// NewLRUBlockCache returns a cache holding at most capacity bytes.
func NewLRUBlockCache(capacity int64, rc *resource.Controller) *LRUBlockCache {
	c := &LRUBlockCache{
		capacity: capacity,
		items:    make(map[Key]*node),
		blobs:    make(map[string]map[uint64]*node),
		rc:       rc,
	}
	c.head.prev, c.head.next = &c.head, &c.head
	return c
}

func (c *LRUBlockCache) Get(_ context.Context, key Key) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.items[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.moveToFront(n)
	return n.data, true
}

// Set caches b under key. Blocks larger than the capacity, or growth the
// controller refuses, are silently not cached; readers fall back to the
// underlying store.
func (c *LRUBlockCache) Set(_ context.Context, key Key, b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := int64(len(b))

	if n, ok := c.items[key]; ok {
		c.moveToFront(n)
		old := int64(len(n.data))
		if size > old {
			if err := c.rc.AcquireMemory(size - old); err != nil {
				return
			}
		} else {
			c.rc.ReleaseMemory(old - size)
		}
		c.size += size - old
		n.data = b
		c.shrinkTo(c.capacity)
		return
	}

	if size > c.capacity {
		return
	}

	// Evict first so the released bytes are available to the controller.
	c.shrinkTo(c.capacity - size)
	if err := c.rc.AcquireMemory(size); err != nil {
		return
	}

	n := &node{key: key, data: b}
	c.pushFront(n)
	c.items[key] = n
	blocks := c.blobs[key.Blob]
	if blocks == nil {
		blocks = make(map[uint64]*node)
		c.blobs[key.Blob] = blocks
	}
	blocks[key.Block] = n
	c.size += size
}

func (c *LRUBlockCache) InvalidateBlob(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, n := range c.blobs[name] {
		c.remove(n)
	}
}

// Close drops all entries and returns their memory to the controller.
func (c *LRUBlockCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.shrinkTo(0)
	return nil
}

func (c *LRUBlockCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Size returns the cached bytes.
func (c *LRUBlockCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Len returns the number of cached blocks.
func (c *LRUBlockCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// shrinkTo evicts least recently used blocks until size <= limit.
func (c *LRUBlockCache) shrinkTo(limit int64) {
	for c.size > limit && c.head.prev != &c.head {
		c.remove(c.head.prev)
	}
}

func (c *LRUBlockCache) remove(n *node) {
	n.prev.next, n.next.prev = n.next, n.prev
	n.prev, n.next = nil, nil

	delete(c.items, n.key)
	if blocks := c.blobs[n.key.Blob]; blocks != nil {
		delete(blocks, n.key.Block)
		if len(blocks) == 0 {
			delete(c.blobs, n.key.Blob)
		}
	}

	size := int64(len(n.data))
	c.size -= size
	c.rc.ReleaseMemory(size)
}

func (c *LRUBlockCache) pushFront(n *node) {
	n.prev, n.next = &c.head, c.head.next
	c.head.next.prev = n
	c.head.next = n
}

func (c *LRUBlockCache) moveToFront(n *node) {
	if c.head.next == n {
		return
	}
	n.prev.next, n.next.prev = n.next, n.prev
	c.pushFront(n)
}
