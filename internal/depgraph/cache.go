package depgraph

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// BlastRadiusCache provides LRU caching for blast_radius results, adapted
// from the teacher's cache.BlastRadiusCache. Cache keys fold in the graph
// generation, so a rebuild automatically invalidates every entry computed
// against an older graph without an explicit sweep.
type BlastRadiusCache struct {
	mu      sync.RWMutex
	entries map[string]*brCacheEntry
	lru     *list.List
	flight  singleflight.Group
	options BRCacheOptions

	hits      int64
	misses    int64
	evictions int64
	computes  int64
}

type brCacheEntry struct {
	key             string
	result          *BlastRadius
	generation      uint64
	computedAtMilli int64
	lruElement      *list.Element
}

// BRCacheOptions configures BlastRadiusCache.
type BRCacheOptions struct {
	// MaxEntries is the maximum number of cached results. Default: 1000.
	MaxEntries int

	// MaxAge is the TTL for cached entries. Default: 5 minutes.
	MaxAge time.Duration
}

// DefaultBRCacheOptions returns sensible defaults.
func DefaultBRCacheOptions() BRCacheOptions {
	return BRCacheOptions{
		MaxEntries: 1000,
		MaxAge:     5 * time.Minute,
	}
}

// BRCacheOption is a functional option for BlastRadiusCache.
type BRCacheOption func(*BRCacheOptions)

// WithBRMaxEntries sets the maximum number of cached entries.
func WithBRMaxEntries(n int) BRCacheOption {
	return func(o *BRCacheOptions) {
		if n > 0 {
			o.MaxEntries = n
		}
	}
}

// WithBRMaxAge sets the TTL for cached entries.
func WithBRMaxAge(d time.Duration) BRCacheOption {
	return func(o *BRCacheOptions) {
		if d > 0 {
			o.MaxAge = d
		}
	}
}

// NewBlastRadiusCache creates a new BlastRadiusCache.
func NewBlastRadiusCache(opts ...BRCacheOption) *BlastRadiusCache {
	options := DefaultBRCacheOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &BlastRadiusCache{
		entries: make(map[string]*brCacheEntry),
		lru:     list.New(),
		options: options,
	}
}

// computeFunc mirrors the teacher's AnalyzeFunc signature.
type computeFunc func(ctx context.Context, key string) (*BlastRadius, error)

// Get retrieves a cached result for key at generation gen.
func (c *BlastRadiusCache) Get(key string, gen uint64) (*BlastRadius, bool) {
	cacheKey := c.computeKey(key, gen)

	c.mu.RLock()
	entry, ok := c.entries[cacheKey]
	if !ok {
		c.mu.RUnlock()
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	if c.isExpired(entry) {
		c.mu.RUnlock()
		c.remove(cacheKey)
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	c.mu.RUnlock()

	atomic.AddInt64(&c.hits, 1)
	return entry.result, true
}

// GetOrCompute retrieves a cached result or computes it, deduplicating
// concurrent computations for the same key via singleflight.
func (c *BlastRadiusCache) GetOrCompute(ctx context.Context, key string, gen uint64, compute computeFunc) (*BlastRadius, error) {
	if result, ok := c.Get(key, gen); ok {
		return result, nil
	}

	cacheKey := c.computeKey(key, gen)
	result, err, _ := c.flight.Do(cacheKey, func() (interface{}, error) {
		if result, ok := c.Get(key, gen); ok {
			return result, nil
		}
		result, err := compute(ctx, key)
		if err != nil {
			return nil, err
		}
		c.put(cacheKey, gen, result)
		atomic.AddInt64(&c.computes, 1)
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*BlastRadius), nil
}

func (c *BlastRadiusCache) put(cacheKey string, gen uint64, result *BlastRadius) {
	entry := &brCacheEntry{
		key:             cacheKey,
		result:          result,
		generation:      gen,
		computedAtMilli: time.Now().UnixMilli(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[cacheKey]; exists {
		return
	}
	c.evictIfNeededLocked()
	entry.lruElement = c.lru.PushFront(cacheKey)
	c.entries[cacheKey] = entry
}

func (c *BlastRadiusCache) computeKey(key string, gen uint64) string {
	data := fmt.Sprintf("%s:%d", key, gen)
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:16])
}

func (c *BlastRadiusCache) isExpired(entry *brCacheEntry) bool {
	if c.options.MaxAge == 0 {
		return false
	}
	return time.Since(time.UnixMilli(entry.computedAtMilli)) > c.options.MaxAge
}

func (c *BlastRadiusCache) remove(cacheKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[cacheKey]
	if !ok {
		return
	}
	if entry.lruElement != nil {
		c.lru.Remove(entry.lruElement)
	}
	delete(c.entries, cacheKey)
}

func (c *BlastRadiusCache) evictIfNeededLocked() {
	for len(c.entries) >= c.options.MaxEntries {
		elem := c.lru.Back()
		if elem == nil {
			break
		}
		key := elem.Value.(string)
		entry := c.entries[key]
		if entry == nil {
			break
		}
		c.lru.Remove(entry.lruElement)
		delete(c.entries, key)
		atomic.AddInt64(&c.evictions, 1)
	}
}

// InvalidateByGenerationBelow drops every entry computed against a graph
// older than gen, called right after a rebuild bumps the generation.
func (c *BlastRadiusCache) InvalidateByGenerationBelow(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if entry.generation < gen {
			if entry.lruElement != nil {
				c.lru.Remove(entry.lruElement)
			}
			delete(c.entries, key)
		}
	}
}

// Clear removes all entries from the cache.
func (c *BlastRadiusCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*brCacheEntry)
	c.lru.Init()
}

// BRCacheStats summarizes cache behavior, useful for /debug/summary.
type BRCacheStats struct {
	EntryCount int
	Hits       int64
	Misses     int64
	Evictions  int64
	Computes   int64
}

// Stats returns current cache statistics.
func (c *BlastRadiusCache) Stats() BRCacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return BRCacheStats{
		EntryCount: len(c.entries),
		Hits:       atomic.LoadInt64(&c.hits),
		Misses:     atomic.LoadInt64(&c.misses),
		Evictions:  atomic.LoadInt64(&c.evictions),
		Computes:   atomic.LoadInt64(&c.computes),
	}
}
