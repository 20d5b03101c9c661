package access

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/voltgrid/voltgrid/pkg/metrics"
)

const (
	// DefaultCacheTTL bounds how long a resolved set may be served without
	// recomputation when no invalidation arrives.
	DefaultCacheTTL = 5 * time.Minute

	// DefaultCacheMaxEntries caps the number of cached users.
	DefaultCacheMaxEntries = 10000

	// evictFraction is the share of least-recently-accessed entries dropped
	// when the cache exceeds its capacity.
	evictFraction = 0.2
)

type cacheEntry struct {
	set        PermissionSet
	expiresAt  time.Time
	lastAccess time.Time
}

// Cache is a read-through, in-process cache in front of the Resolver, keyed by
// user id. Reads never suspend. Invalidation is deletion by key; a resolution
// that races an invalidate may write one stale set back, which is bounded
// staleness of a single in-flight request and is accepted by design of the
// callers (they invalidate after every permission-affecting mutation).
//
// The cache is owned by the service root and swept from the maintenance
// scheduler; it installs no global state and no signal handlers.
type Cache struct {
	resolver   *Resolver
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

// CacheOption customises a Cache.
type CacheOption func(*Cache)

// WithCacheTTL overrides the entry TTL.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCacheMaxEntries overrides the entry cap.
func WithCacheMaxEntries(max int) CacheOption {
	return func(c *Cache) {
		if max > 0 {
			c.maxEntries = max
		}
	}
}

// WithCacheClock overrides the clock, primarily for tests.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCache constructs a Cache fronting the supplied resolver.
func NewCache(resolver *Resolver, opts ...CacheOption) (*Cache, error) {
	if resolver == nil {
		return nil, errors.New("access: cache requires a resolver")
	}
	cache := &Cache{
		resolver:   resolver,
		ttl:        DefaultCacheTTL,
		maxEntries: DefaultCacheMaxEntries,
		now:        time.Now,
		entries:    make(map[string]*cacheEntry),
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache, nil
}

// Get returns the user's effective permission set, resolving on miss or
// expiry. The returned set must be treated as read-only.
func (c *Cache) Get(ctx context.Context, userID string) (PermissionSet, error) {
	now := c.now()

	c.mu.Lock()
	if entry, ok := c.entries[userID]; ok && entry.expiresAt.After(now) {
		entry.lastAccess = now
		set := entry.set
		c.mu.Unlock()
		metrics.PermissionCacheEvents.WithLabelValues("hit").Inc()
		return set, nil
	}
	c.mu.Unlock()

	metrics.PermissionCacheEvents.WithLabelValues("miss").Inc()

	set, err := c.resolver.Resolve(ctx, userID, time.Time{})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[userID] = &cacheEntry{
		set:        set,
		expiresAt:  now.Add(c.ttl),
		lastAccess: now,
	}
	if len(c.entries) > c.maxEntries {
		c.evictLocked()
	}
	c.mu.Unlock()

	return set, nil
}

// HasPermission is a convenience read through the cache.
func (c *Cache) HasPermission(ctx context.Context, userID, code string) (bool, error) {
	set, err := c.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return set.Has(code), nil
}

// Invalidate drops the cached set for one user.
func (c *Cache) Invalidate(userID string) {
	c.mu.Lock()
	if _, ok := c.entries[userID]; ok {
		delete(c.entries, userID)
		metrics.PermissionCacheEvents.WithLabelValues("invalidate").Inc()
	}
	c.mu.Unlock()
}

// InvalidateMany drops cached sets for several users.
func (c *Cache) InvalidateMany(userIDs []string) {
	if len(userIDs) == 0 {
		return
	}
	c.mu.Lock()
	for _, userID := range userIDs {
		if _, ok := c.entries[userID]; ok {
			delete(c.entries, userID)
			metrics.PermissionCacheEvents.WithLabelValues("invalidate").Inc()
		}
	}
	c.mu.Unlock()
}

// Clear removes every cached entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
}

// Sweep removes TTL-expired entries regardless of read traffic, bounding idle
// memory growth. It returns the number of entries removed.
func (c *Cache) Sweep() int {
	now := c.now()
	removed := 0

	c.mu.Lock()
	for userID, entry := range c.entries {
		if !entry.expiresAt.After(now) {
			delete(c.entries, userID)
			removed++
		}
	}
	c.mu.Unlock()

	return removed
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictLocked drops roughly the least-recently-accessed 20% of entries.
// Approximate LRU keeps the common path a plain map access.
func (c *Cache) evictLocked() {
	target := int(float64(c.maxEntries) * evictFraction)
	if target < 1 {
		target = 1
	}

	type candidate struct {
		userID     string
		lastAccess time.Time
	}
	candidates := make([]candidate, 0, len(c.entries))
	for userID, entry := range c.entries {
		candidates = append(candidates, candidate{userID: userID, lastAccess: entry.lastAccess})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].lastAccess.Before(candidates[j].lastAccess)
	})

	for i := 0; i < target && i < len(candidates); i++ {
		delete(c.entries, candidates[i].userID)
		metrics.PermissionCacheEvents.WithLabelValues("evict").Inc()
	}
}
