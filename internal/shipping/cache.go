package shipping

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rilegato/rilegato-backend/pkg/types"
)

// DefaultCacheTTL bounds how long a carrier quote may be served from memory.
const DefaultCacheTTL = 30 * time.Second

// CacheEntry is an immutable cached quote. Entries are never mutated in
// place; a fresh write replaces the whole value.
type CacheEntry struct {
	Key       string
	Quote     types.Quote
	CreatedAt time.Time
}

// QuoteCache is a process-wide, time-bounded quote store. Expiry is checked
// lazily on read; stale entries are superseded by the next write, never
// evicted in the background. Capacity is unbounded: key cardinality is the
// set of recent distinct destination+weight-bucket combinations.
type QuoteCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]CacheEntry
}

// CacheOption configures optional cache behavior.
type CacheOption func(*QuoteCache)

// WithClock overrides the cache clock.
func WithClock(now func() time.Time) CacheOption {
	return func(c *QuoteCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewQuoteCache builds an empty cache with the provided TTL.
func NewQuoteCache(ttl time.Duration, opts ...CacheOption) *QuoteCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	cache := &QuoteCache{
		ttl:     ttl,
		now:     time.Now,
		entries: map[string]CacheEntry{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cache)
		}
	}
	return cache
}

// Get returns the entry stored at key, or nil when the key is absent or the
// entry has aged past the TTL. Callers treat both cases as a miss.
func (c *QuoteCache) Get(key string) *CacheEntry {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil
	}
	if c.now().Sub(entry.CreatedAt) >= c.ttl {
		return nil
	}
	return &entry
}

// Set stores a quote at key. Last writer wins.
func (c *QuoteCache) Set(key string, quote types.Quote) {
	entry := CacheEntry{Key: key, Quote: quote, CreatedAt: c.now()}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

// WeightBucket collapses near-identical total weights into one slot so that
// carts differing by a few grams share a cache key.
func WeightBucket(totalGrams, bucketGrams int) int {
	if bucketGrams <= 0 {
		bucketGrams = 25
	}
	return int(math.Round(float64(totalGrams) / float64(bucketGrams)))
}

// CacheKey derives the cache slot for a subject (user or session id),
// destination and weight bucket.
func CacheKey(subject string, dest types.Destination, bucket int) string {
	normalized := dest.Normalized()
	return strings.Join([]string{
		subject,
		normalized.PostalCode,
		normalized.City,
		fmt.Sprintf("%d", bucket),
	}, "|")
}
