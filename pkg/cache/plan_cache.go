// Package cache provides a plan cache for GraphForge: parsing and planning
// a Cypher query is pure work from the query text alone (parameters are
// resolved at execution time against the cached plan, never baked into it),
// so an LRU keyed on the query string lets a repeated query skip straight to
// execution.
package cache

import (
	"container/list"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/graphforge/graphforge/pkg/ast"
	"github.com/graphforge/graphforge/pkg/plan"
)

// CachedPlan bundles a parsed query with its operator tree, the unit
// PlanCache stores per query text. The engine stores the planner's
// unoptimized tree here and runs the optimizer on each execution.
type CachedPlan struct {
	Query *ast.Query
	Root  plan.Op
}

// PlanCache is a thread-safe LRU cache for compiled query plans.
//
// It uses a hash map for O(1) lookup and a doubly-linked list for LRU
// ordering, with an optional TTL for stale-plan expiration (useful once
// statistics-driven replanning is added, so a plan doesn't outlive the
// cardinality estimates it was optimized against).
type PlanCache struct {
	mu sync.RWMutex

	maxSize int
	ttl     time.Duration
	enabled bool

	list  *list.List
	items map[uint64]*list.Element

	hits   uint64
	misses uint64
}

type cacheEntry struct {
	key       uint64
	value     *CachedPlan
	expiresAt time.Time
}

// NewPlanCache creates a plan cache holding up to maxSize entries (a
// non-positive value falls back to 1000), each valid for ttl (0 = no
// expiration).
func NewPlanCache(maxSize int, ttl time.Duration) *PlanCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &PlanCache{
		maxSize: maxSize,
		ttl:     ttl,
		enabled: true,
		list:    list.New(),
		items:   make(map[uint64]*list.Element, maxSize),
	}
}

// Key hashes query text into a cache key. Two queries with identical text
// always share a key; parameters never enter the hash since they don't
// affect the plan.
func (c *PlanCache) Key(query string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(query))
	return h.Sum64()
}

// Get retrieves a cached plan if present and not expired, moving it to the
// front of the LRU list on hit.
func (c *PlanCache) Get(key uint64) (*CachedPlan, bool) {
	if !c.enabled {
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}

	c.mu.RLock()
	elem, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)
	if c.ttl > 0 && time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		c.removeElement(elem)
		c.mu.Unlock()
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}

	c.mu.Lock()
	c.list.MoveToFront(elem)
	c.mu.Unlock()

	atomic.AddUint64(&c.hits, 1)
	return entry.value, true
}

// Put adds or replaces a cached plan, evicting the least recently used
// entry first if the cache is at capacity.
func (c *PlanCache) Put(key uint64, value *CachedPlan) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.value = value
		if c.ttl > 0 {
			entry.expiresAt = time.Now().Add(c.ttl)
		}
		c.list.MoveToFront(elem)
		return
	}

	for c.list.Len() >= c.maxSize {
		c.evictOldest()
	}

	entry := &cacheEntry{key: key, value: value}
	if c.ttl > 0 {
		entry.expiresAt = time.Now().Add(c.ttl)
	}
	elem := c.list.PushFront(entry)
	c.items[key] = elem
}

// Remove evicts a single entry, if present.
func (c *PlanCache) Remove(key uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// Clear evicts every cached plan, e.g. after a schema change invalidates
// label/type assumptions baked into pushed-down predicates.
func (c *PlanCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list.Init()
	c.items = make(map[uint64]*list.Element, c.maxSize)
}

// Len reports the current number of cached plans.
func (c *PlanCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.list.Len()
}

// Stats reports cache hit/miss counters since construction.
func (c *PlanCache) Stats() CacheStats {
	hits := atomic.LoadUint64(&c.hits)
	misses := atomic.LoadUint64(&c.misses)

	c.mu.RLock()
	size := c.list.Len()
	c.mu.RUnlock()

	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return CacheStats{Size: size, MaxSize: c.maxSize, Hits: hits, Misses: misses, HitRate: hitRate}
}

// CacheStats reports a PlanCache's performance counters.
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    uint64
	Misses  uint64
	HitRate float64
}

// SetEnabled toggles caching at runtime; disabling also drops every
// currently cached plan.
func (c *PlanCache) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
	if !enabled {
		c.list.Init()
		c.items = make(map[uint64]*list.Element, c.maxSize)
	}
}

// evictOldest removes the least recently used entry. Caller must hold mu.
func (c *PlanCache) evictOldest() {
	if elem := c.list.Back(); elem != nil {
		c.removeElement(elem)
	}
}

// removeElement removes an element from both the list and map. Caller must
// hold mu.
func (c *PlanCache) removeElement(elem *list.Element) {
	c.list.Remove(elem)
	entry := elem.Value.(*cacheEntry)
	delete(c.items, entry.key)
}
