// Package cache provides the sharded LRU cache behind the scene's
// compiled shader program store. Programs are keyed by the hash of
// their fully expanded source, so identical shader text shares one GPU
// program no matter how many modules render it.
package cache

import (
	"container/list"
	"hash/maphash"
	"sync"
	"sync/atomic"
)

const (
	// shardCount spreads keys over independent locks. Must be a power
	// of two for fast modulo via bitwise AND.
	shardCount = 16
	shardMask  = shardCount - 1

	// DefaultCapacity is the per-shard entry limit when New is given a
	// non-positive capacity.
	DefaultCapacity = 256
)

// Cache is a thread-safe sharded LRU. Evicted values are handed to the
// OnEvict callback, which for GPU programs releases the underlying
// pipeline.
type Cache[K comparable, V any] struct {
	shards   [shardCount]*shard[K, V]
	seed     maphash.Seed
	capacity int // per shard
	onEvict  func(V)

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type shard[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]*list.Element
	lru     *list.List // front = most recent, values are *entry[K, V]
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

// New creates a cache holding up to capacity entries per shard.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Cache[K, V]{
		seed:     maphash.MakeSeed(),
		capacity: capacity,
	}
	for i := range c.shards {
		c.shards[i] = &shard[K, V]{
			entries: make(map[K]*list.Element),
			lru:     list.New(),
		}
	}
	return c
}

// OnEvict registers a callback invoked for every value that leaves the
// cache through eviction, Delete or Clear. Set it before concurrent use.
func (c *Cache[K, V]) OnEvict(fn func(V)) { c.onEvict = fn }

func (c *Cache[K, V]) shardFor(key K) *shard[K, V] {
	return c.shards[maphash.Comparable(c.seed, key)&shardMask]
}

// Get retrieves a cached value, marking it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	s := c.shardFor(key)

	s.mu.Lock()
	elem, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	s.lru.MoveToFront(elem)
	value := elem.Value.(*entry[K, V]).value
	s.mu.Unlock()

	c.hits.Add(1)
	return value, true
}

// Set stores a value, evicting the least recently used entries when the
// shard is full. The value is stored as-is, not copied.
func (c *Cache[K, V]) Set(key K, value V) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.entries[key]; ok {
		elem.Value.(*entry[K, V]).value = value
		s.lru.MoveToFront(elem)
		return
	}
	c.evictLocked(s)
	s.entries[key] = s.lru.PushFront(&entry[K, V]{key: key, value: value})
}

// GetOrCreate returns the cached value for key, calling create to build
// it on a miss. The create function runs with the shard lock held so the
// same key is never built twice concurrently; a create error leaves the
// cache untouched.
func (c *Cache[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.entries[key]; ok {
		s.lru.MoveToFront(elem)
		c.hits.Add(1)
		return elem.Value.(*entry[K, V]).value, nil
	}
	c.misses.Add(1)

	value, err := create()
	if err != nil {
		var zero V
		return zero, err
	}
	c.evictLocked(s)
	s.entries[key] = s.lru.PushFront(&entry[K, V]{key: key, value: value})
	return value, nil
}

// evictLocked removes oldest entries until the shard has room for one
// more. Caller holds the shard lock.
func (c *Cache[K, V]) evictLocked(s *shard[K, V]) {
	for s.lru.Len() >= c.capacity {
		oldest := s.lru.Back()
		if oldest == nil {
			return
		}
		e := oldest.Value.(*entry[K, V])
		s.lru.Remove(oldest)
		delete(s.entries, e.key)
		c.evictions.Add(1)
		if c.onEvict != nil {
			c.onEvict(e.value)
		}
	}
}

// Delete removes an entry, reporting whether it existed.
func (c *Cache[K, V]) Delete(key K) bool {
	s := c.shardFor(key)
	s.mu.Lock()
	elem, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return false
	}
	e := elem.Value.(*entry[K, V])
	s.lru.Remove(elem)
	delete(s.entries, key)
	s.mu.Unlock()

	if c.onEvict != nil {
		c.onEvict(e.value)
	}
	return true
}

// Clear removes every entry, running the evict callback for each.
func (c *Cache[K, V]) Clear() {
	for _, s := range c.shards {
		s.mu.Lock()
		var values []V
		if c.onEvict != nil {
			values = make([]V, 0, len(s.entries))
			for e := s.lru.Front(); e != nil; e = e.Next() {
				values = append(values, e.Value.(*entry[K, V]).value)
			}
		}
		s.entries = make(map[K]*list.Element)
		s.lru.Init()
		s.mu.Unlock()

		for _, v := range values {
			c.onEvict(v)
		}
	}
}

// Len returns the total number of entries across all shards.
func (c *Cache[K, V]) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.RLock()
		total += len(s.entries)
		s.mu.RUnlock()
	}
	return total
}

// Capacity returns the per-shard capacity.
func (c *Cache[K, V]) Capacity() int { return c.capacity }

// Stats is a point-in-time snapshot of cache effectiveness counters.
type Stats struct {
	Len       int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
	HitRate   float64
}

// Stats returns current cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return Stats{
		Len:       c.Len(),
		Capacity:  c.capacity,
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions.Load(),
		HitRate:   hitRate,
	}
}
