package adapters

import (
	"context"
	"sync"
	"time"

	ports "github.com/ZanzyTHEbar/docuchat/dchat/chat/ports"
)

// RenderCache is an LRU cache with per-entry TTL, used to memoize rendered
// transcript HTML keyed by content hash. Entries move to the front on
// access; the back falls off when capacity is exceeded.
type RenderCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*renderEntry
	head     *renderEntry
	tail     *renderEntry
}

type renderEntry struct {
	key     string
	value   []byte
	expires time.Time
	prev    *renderEntry
	next    *renderEntry
}

// NewRenderCache creates a cache holding at most capacity entries.
func NewRenderCache(capacity int) *RenderCache {
	if capacity < 1 {
		capacity = 1
	}
	return &RenderCache{
		capacity: capacity,
		entries:  make(map[string]*renderEntry),
	}
}

// Get returns the cached value for key if present and unexpired. Takes the
// write lock: a hit mutates the recency list and an expired entry is
// removed in place.
func (c *RenderCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expires) {
		c.unlink(e)
		delete(c.entries, key)
		return nil, false
	}
	c.touch(e)
	return e.value, true
}

// Set stores value under key for ttlSeconds, evicting the least recently
// used entry when the cache is full.
func (c *RenderCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := time.Now().Add(time.Duration(ttlSeconds) * time.Second)
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expires = expires
		c.touch(e)
		return nil
	}

	e := &renderEntry{key: key, value: value, expires: expires}
	c.pushFront(e)
	c.entries[key] = e

	if len(c.entries) > c.capacity && c.tail != nil {
		evicted := c.tail
		c.unlink(evicted)
		delete(c.entries, evicted.key)
	}
	return nil
}

// Delete removes key if present.
func (c *RenderCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.unlink(e)
		delete(c.entries, key)
	}
	return nil
}

func (c *RenderCache) touch(e *renderEntry) {
	if e == c.head {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}

func (c *RenderCache) pushFront(e *renderEntry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *RenderCache) unlink(e *renderEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

// Ensure RenderCache implements the Cache interface.
var _ ports.Cache = (*RenderCache)(nil)
