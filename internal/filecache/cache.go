// Package filecache implements an LRU+TTL cache of agent-returned file
// contents, ported from filesystem/cache.py.
package filecache

import (
	"container/list"
	"sync"
	"time"
)

// Entry is a cached file's content and bookkeeping.
type Entry struct {
	Content     string
	Size        int
	Mtime       time.Time
	CachedAt    time.Time
	AccessCount int
}

// Stats reports cache hit/miss/eviction/invalidation counters, as returned
// by Cache.Stats.
type Stats struct {
	Hits          int64
	Misses        int64
	Evictions     int64
	Invalidations int64
	Entries       int
	SizeBytes     int
	HitRate       float64
	MaxSize       int
	MaxEntries    int
}

// Cache is an LRU cache bounded by both entry count and total byte size.
// An entry larger than MaxSize on its own is rejected outright rather than
// stored alone — see SPEC_FULL.md's resolution of the spec's open question
// on oversize-entry handling.
type Cache struct {
	mu          sync.Mutex
	maxSize     int
	maxEntries  int
	entries     map[string]*list.Element
	order       *list.List // front = most recently used
	currentSize int

	hits, misses, evictions, invalidations int64
}

type node struct {
	path  string
	entry *Entry
}

// DefaultMaxSize is the default cache byte budget (10 MiB, per spec §3).
const DefaultMaxSize = 10 * 1024 * 1024

// DefaultMaxEntries is the default cache entry-count budget (per spec §3).
const DefaultMaxEntries = 1000

// New builds a Cache with the given byte and entry-count budgets. A zero
// value for either falls back to the spec defaults.
func New(maxSize, maxEntries int) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		maxSize:    maxSize,
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
}

// Get returns cached content for path. If currentMtime is provided and the
// cached entry's mtime is older, the entry is invalidated and a miss is
// reported.
func (c *Cache) Get(path string, currentMtime *time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[path]
	if !ok {
		c.misses++
		return "", false
	}
	n := el.Value.(*node)

	if currentMtime != nil && n.entry.Mtime.Before(*currentMtime) {
		c.removeLocked(el)
		c.invalidations++
		c.misses++
		return "", false
	}

	c.order.MoveToFront(el)
	n.entry.AccessCount++
	c.hits++
	return n.entry.Content, true
}

// Put caches content for path, evicting LRU entries as needed. An entry
// whose size alone exceeds MaxSize is rejected and not stored.
func (c *Cache) Put(path, content string, mtime time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := len(content)
	if size > c.maxSize {
		return
	}

	if el, ok := c.entries[path]; ok {
		c.removeLocked(el)
	}

	c.evictIfNeeded(size)

	entry := &Entry{Content: content, Size: size, Mtime: mtime, CachedAt: time.Now()}
	el := c.order.PushFront(&node{path: path, entry: entry})
	c.entries[path] = el
	c.currentSize += size
}

// Invalidate removes the cached entry for path, if present.
func (c *Cache) Invalidate(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[path]
	if !ok {
		return false
	}
	c.removeLocked(el)
	c.invalidations++
	return true
}

// Clear removes all cached entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.currentSize = 0
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return Stats{
		Hits:          c.hits,
		Misses:        c.misses,
		Evictions:     c.evictions,
		Invalidations: c.invalidations,
		Entries:       len(c.entries),
		SizeBytes:     c.currentSize,
		HitRate:       hitRate,
		MaxSize:       c.maxSize,
		MaxEntries:    c.maxEntries,
	}
}

func (c *Cache) evictIfNeeded(newSize int) {
	for len(c.entries) >= c.maxEntries {
		if !c.evictLRU() {
			break
		}
	}
	for c.currentSize+newSize > c.maxSize && c.order.Len() > 0 {
		if !c.evictLRU() {
			break
		}
	}
}

func (c *Cache) evictLRU() bool {
	back := c.order.Back()
	if back == nil {
		return false
	}
	c.removeLocked(back)
	c.evictions++
	return true
}

func (c *Cache) removeLocked(el *list.Element) {
	n := el.Value.(*node)
	delete(c.entries, n.path)
	c.order.Remove(el)
	c.currentSize -= n.entry.Size
}
