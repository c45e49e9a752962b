package ui

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/x/ansi"
)

// TruncateCache memoizes ANSI-aware truncation of rendered lines. Safe for
// concurrent use.
type TruncateCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]string
	maxSize int

	hits   atomic.Int64
	misses atomic.Int64
	clears atomic.Int64
}

type cacheKey struct {
	hash   uint64
	length int // collision guard
	width  int
	tail   uint64
	left   bool
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits, Misses, Clears int64
	Size                 int
}

// NewTruncateCache creates a cache holding at most maxSize entries. A full
// cache is cleared rather than evicted entry by entry.
func NewTruncateCache(maxSize int) *TruncateCache {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &TruncateCache{
		entries: make(map[cacheKey]string, maxSize),
		maxSize: maxSize,
	}
}

// Truncate cuts content to width cells, appending tail when cut.
func (c *TruncateCache) Truncate(content string, width int, tail string) string {
	if c == nil || width <= 0 {
		return content
	}
	return c.lookup(content, width, tail, false, ansi.Truncate)
}

// TruncateLeft drops the first offset cells of content.
func (c *TruncateCache) TruncateLeft(content string, offset int, tail string) string {
	if c == nil || offset <= 0 {
		return content
	}
	return c.lookup(content, offset, tail, true, ansi.TruncateLeft)
}

func (c *TruncateCache) lookup(content string, n int, tail string, left bool, fn func(string, int, string) string) string {
	key := cacheKey{
		hash:   xxhash.Sum64String(content),
		length: len(content),
		width:  n,
		tail:   xxhash.Sum64String(tail),
		left:   left,
	}

	c.mu.RLock()
	if result, ok := c.entries[key]; ok {
		c.mu.RUnlock()
		c.hits.Add(1)
		return result
	}
	c.mu.RUnlock()

	c.misses.Add(1)
	result := fn(content, n, tail)

	c.mu.Lock()
	if len(c.entries) >= c.maxSize {
		c.entries = make(map[cacheKey]string, c.maxSize)
		c.clears.Add(1)
	}
	c.entries[key] = result
	c.mu.Unlock()
	return result
}

// Clear drops every entry. Call it when the terminal is resized.
func (c *TruncateCache) Clear() {
	if c == nil {
		return
	}
	c.clears.Add(1)
	c.mu.Lock()
	c.entries = make(map[cacheKey]string, c.maxSize)
	c.mu.Unlock()
}

// Stats returns the hit/miss counters and current size.
func (c *TruncateCache) Stats() CacheStats {
	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Clears: c.clears.Load(),
		Size:   size,
	}
}
