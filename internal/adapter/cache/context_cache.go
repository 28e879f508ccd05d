package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"
)

// ContextCache memoizes retrieved context lists per (query, filters) pair.
// Entries carry the index generation they were computed against; bumping the
// generation on every index build or load guarantees a reload can never
// serve stale contexts.
type ContextCache struct {
	mu       sync.RWMutex
	entries  map[string]*cacheEntry
	order    []string
	maxSize  int
	ttl      time.Duration
	indexGen uint64
}

type cacheEntry struct {
	context   []string
	timestamp time.Time
	indexGen  uint64
}

func NewContextCache(maxSize int, ttl time.Duration) *ContextCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ContextCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func cacheKey(query string, filters map[string]any) string {
	data := []byte(query)
	if len(filters) > 0 {
		// Marshaling a map sorts its keys, so equal filters always
		// produce the same key.
		if encoded, err := json.Marshal(filters); err == nil {
			data = append(data, 0)
			data = append(data, encoded...)
		}
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

func (c *ContextCache) Get(query string, filters map[string]any) ([]string, bool) {
	c.mu.RLock()
	key := cacheKey(query, filters)
	entry, exists := c.entries[key]
	currentGen := c.indexGen
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if time.Since(entry.timestamp) > c.ttl || entry.indexGen != currentGen {
		c.mu.Lock()
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.moveToEnd(key)
	c.mu.Unlock()

	return entry.context, true
}

func (c *ContextCache) Put(query string, filters map[string]any, context []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(query, filters)

	if _, exists := c.entries[key]; !exists {
		if len(c.entries) >= c.maxSize {
			c.evictOldest()
		}
		c.order = append(c.order, key)
	} else {
		c.moveToEnd(key)
	}

	c.entries[key] = &cacheEntry{
		context:   context,
		timestamp: time.Now(),
		indexGen:  c.indexGen,
	}
}

// Invalidate drops all entries and advances the index generation.
func (c *ContextCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
	c.indexGen++
}

func (c *ContextCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *ContextCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *ContextCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *ContextCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
