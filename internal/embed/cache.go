package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// DefaultCacheCapacity bounds the cache when no explicit capacity is given.
const DefaultCacheCapacity = 1024

// Cache wraps a Provider with a bounded embedding cache. Entries are keyed by
// model and text, so switching models never serves stale vectors. Hits bypass
// the provider entirely; a provider returning no vector is an
// upstream-unavailable signal and is never cached.
//
// Cache is safe for concurrent use by multiple goroutines. The lock is never
// held across the provider call.
type Cache struct {
	provider Provider
	logger   *slog.Logger

	mu       sync.Mutex
	entries  map[string][]float32
	evictor  Evictor
	capacity int
	hits     uint64
	misses   uint64
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCapacity sets the maximum number of cached vectors.
func WithCapacity(n int) CacheOption {
	return func(c *Cache) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithEvictor sets the eviction policy. Default is NewLRU().
func WithEvictor(e Evictor) CacheOption {
	return func(c *Cache) {
		if e != nil {
			c.evictor = e
		}
	}
}

// NewCache creates a bounded cache in front of provider.
func NewCache(provider Provider, logger *slog.Logger, opts ...CacheOption) (*Cache, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Cache{
		provider: provider,
		logger:   logger,
		entries:  make(map[string][]float32),
		evictor:  NewLRU(),
		capacity: DefaultCacheCapacity,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Embed returns the embedding for text, serving repeated texts from the
// cache. An upstream that produces no vector yields (nil, nil); callers treat
// that as "no embedding produced" and the next call retries the provider.
func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(c.provider.Model(), text)

	c.mu.Lock()
	if vec, ok := c.entries[key]; ok {
		if c.evictor.Stale(key) {
			delete(c.entries, key)
			c.evictor.Removed(key)
		} else {
			c.evictor.Touched(key)
			c.hits++
			c.mu.Unlock()
			return slices.Clone(vec), nil
		}
	}
	c.misses++
	c.mu.Unlock()

	vec, err := c.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		c.logger.Warn("embedding provider returned no vector", "model", c.provider.Model())
		return nil, nil
	}

	c.mu.Lock()
	if _, ok := c.entries[key]; !ok {
		for len(c.entries) >= c.capacity {
			victim, ok := c.evictor.Victim()
			if !ok {
				break
			}
			delete(c.entries, victim)
			c.evictor.Removed(victim)
		}
		if len(c.entries) < c.capacity {
			c.entries[key] = slices.Clone(vec)
			c.evictor.Touched(key)
		}
	} else {
		c.evictor.Touched(key)
	}
	c.mu.Unlock()

	return vec, nil
}

// Model returns the wrapped provider's model name.
func (c *Cache) Model() string {
	return c.provider.Model()
}

// Stats reports cache hits and misses since creation.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len returns the number of cached vectors.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cacheKey derives the cache key for a model/text pair. The NUL separator
// keeps distinct pairs from colliding.
func cacheKey(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
