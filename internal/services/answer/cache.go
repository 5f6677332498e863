// -----------------------------------------------------------------------
// Query Cache - TTL-bounded LRU over composed answers
// -----------------------------------------------------------------------

package answer

import (
	"container/list"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/respondeo/internal/models"
)

// Cache is an LRU with per-entry TTL keyed on the normalized query
// parameters. Entries expire ttl after insertion regardless of reads.
type Cache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	entries map[string]*list.Element
	order   *list.List // Front is most recently used
	hits    int64
	misses  int64

	now func() time.Time
}

type cacheEntry struct {
	key       string
	value     *models.QueryResponse
	expiresAt time.Time
}

// NewCache creates a query cache. Non-positive sizes fall back to the
// defaults.
func NewCache(maxSize int, ttl time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		maxSize: maxSize,
		ttl:     ttl,
		entries: make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

// Key derives the cache key from the normalized question and the
// retrieval parameters
func Key(question, retriever string, topK int) string {
	payload, _ := json.Marshal(map[string]interface{}{
		"question":  strings.ToLower(strings.TrimSpace(question)),
		"retriever": retriever,
		"top_k":     topK,
	})
	sum := md5.Sum(payload)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached response, or nil on miss or expiry
func (c *Cache) Get(key string) *models.QueryResponse {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil
	}

	entry := element.Value.(*cacheEntry)
	if c.now().After(entry.expiresAt) {
		c.order.Remove(element)
		delete(c.entries, key)
		c.misses++
		return nil
	}

	c.order.MoveToFront(element)
	c.hits++
	return entry.value
}

// Set stores the response, evicting the least recently used entry at
// capacity
func (c *Cache) Set(key string, value *models.QueryResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.entries[key]; ok {
		entry := element.Value.(*cacheEntry)
		entry.value = value
		entry.expiresAt = c.now().Add(c.ttl)
		c.order.MoveToFront(element)
		return
	}

	for len(c.entries) >= c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}

	element := c.order.PushFront(&cacheEntry{
		key:       key,
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	})
	c.entries[key] = element
}

// Stats reports size and hit/miss counters
func (c *Cache) Stats() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total) * 100
	}

	return map[string]interface{}{
		"size":             len(c.entries),
		"maxsize":          c.maxSize,
		"hits":             c.hits,
		"misses":           c.misses,
		"hit_rate_percent": hitRate,
	}
}
