// Package cache holds recent host metrics so repeated queries within the
// TTL don't reach the VM.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rileyhilliard/vmwatch/internal/metrics"
)

// DefaultTTL is how long a snapshot is served before it is refetched.
const DefaultTTL = 5 * time.Minute

// FetchFunc produces a fresh result for a label.
type FetchFunc func(ctx context.Context) metrics.HostResult

type entry struct {
	result     metrics.HostResult
	insertedAt time.Time
}

// TelemetryCache maps host labels to their last connected result. Entries
// older than the TTL are treated as absent. The lock is never held while
// fetching.
type TelemetryCache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time

	coalesce bool
	group    singleflight.Group
}

// Option configures a TelemetryCache.
type Option func(*TelemetryCache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *TelemetryCache) { c.now = now }
}

// WithCoalescing makes concurrent misses for the same label share one
// fetch.
func WithCoalescing() Option {
	return func(c *TelemetryCache) { c.coalesce = true }
}

// New creates a cache. A non-positive ttl takes DefaultTTL.
func New(ttl time.Duration, opts ...Option) *TelemetryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &TelemetryCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the freshness window.
func (c *TelemetryCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the cached result for label if it is still fresh.
func (c *TelemetryCache) Get(label string) (metrics.HostResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[label]
	if !ok {
		return metrics.HostResult{}, false
	}
	if c.now().Sub(e.insertedAt) >= c.ttl {
		delete(c.entries, label)
		return metrics.HostResult{}, false
	}
	return e.result, true
}

// GetOrFetch serves label from the cache or calls fetch. Only connected
// results are stored.
func (c *TelemetryCache) GetOrFetch(ctx context.Context, label string, fetch FetchFunc) metrics.HostResult {
	if r, ok := c.Get(label); ok {
		return r
	}

	if !c.coalesce {
		return c.fetchAndStore(ctx, label, fetch)
	}

	v, _, _ := c.group.Do(label, func() (interface{}, error) {
		if r, ok := c.Get(label); ok {
			return r, nil
		}
		return c.fetchAndStore(ctx, label, fetch), nil
	})
	return v.(metrics.HostResult)
}

func (c *TelemetryCache) fetchAndStore(ctx context.Context, label string, fetch FetchFunc) metrics.HostResult {
	r := fetch(ctx)
	if r.Status == metrics.HostConnected {
		c.mu.Lock()
		c.entries[label] = entry{result: r, insertedAt: c.now()}
		c.mu.Unlock()
	}
	return r
}

// Invalidate drops label.
func (c *TelemetryCache) Invalidate(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, label)
}

// InvalidateAll empties the cache.
func (c *TelemetryCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Stats describes the cache contents.
type Stats struct {
	Size       int      `json:"cache_size"`
	Keys       []string `json:"cached_vms"`
	TTLMinutes float64  `json:"cache_duration_minutes"`
}

// Stats reports the fresh entries, sorted by label.
func (c *TelemetryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	keys := make([]string, 0, len(c.entries))
	for label, e := range c.entries {
		if now.Sub(e.insertedAt) >= c.ttl {
			delete(c.entries, label)
			continue
		}
		keys = append(keys, label)
	}
	sort.Strings(keys)

	return Stats{
		Size:       len(keys),
		Keys:       keys,
		TTLMinutes: c.ttl.Minutes(),
	}
}
