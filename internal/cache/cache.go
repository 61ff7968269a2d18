// Package cache memoizes derived lookups (all labels, all people, a
// project's work items) with per-key TTLs. Writers invalidate keys after
// they commit; hooks observe every invalidation.
package cache

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Well-known keys.
const (
	KeyLabels       = "labels"
	KeyPeople       = "people"
	PrefixWorkItems = "work_items:"
	PrefixActivity  = "activity:"
	PrefixAll       = ""
)

// WorkItemsKey is the key of a project's task/subtask listing.
func WorkItemsKey(projectID string) string { return PrefixWorkItems + projectID }

// ActivityKey is the key of a project's recent activity.
func ActivityKey(projectID string) string { return PrefixActivity + projectID }

// Hook is called with each invalidated key.
type Hook func(key string)

type entry struct {
	value   any
	expires time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	// gens is bumped per key on invalidation; a load that started under an
	// older generation does not store its result.
	gens    map[string]uint64
	loading map[string]int
	hooks   []Hook
	group   singleflight.Group
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New returns an empty Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		gens:    make(map[string]uint64),
		loading: make(map[string]int),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnInvalidate registers a hook.
func (c *Cache) OnInvalidate(h Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, h)
}

// get returns a live entry.
func (c *Cache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// begin marks a load of key in flight and returns the generation it runs
// under.
func (c *Cache) begin(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading[key]++
	return c.gens[key]
}

// finish ends a load and stores value unless key was invalidated meanwhile.
func (c *Cache) finish(key string, gen uint64, value any, ttl time.Duration, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loading[key]--; c.loading[key] <= 0 {
		delete(c.loading, key)
	}
	if ok && c.gens[key] == gen {
		c.entries[key] = entry{value: value, expires: c.now().Add(ttl)}
	}
}

// Invalidate drops the given keys.
func (c *Cache) Invalidate(keys ...string) {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.entries, k)
		c.gens[k]++
	}
	hooks := c.hooks
	c.mu.Unlock()

	for _, k := range keys {
		c.group.Forget(k)
		for _, h := range hooks {
			h(k)
		}
	}
}

// InvalidatePrefix drops every key starting with prefix, including keys
// still loading. An empty prefix clears the cache.
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	var keys []string
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	for k := range c.loading {
		if _, stored := c.entries[k]; !stored && strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	c.mu.Unlock()
	c.Invalidate(keys...)
}

// Len is the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Load returns the cached value for key or calls load and stores its result
// for ttl. Concurrent misses on the same key share one load. Errors are not
// cached, and neither is a result whose key was invalidated while it loaded.
func Load[V any](c *Cache, key string, ttl time.Duration, load func() (V, error)) (V, error) {
	if v, ok := c.get(key); ok {
		return v.(V), nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.get(key); ok {
			return v, nil
		}
		gen := c.begin(key)
		v, err := load()
		c.finish(key, gen, v, ttl, err == nil)
		if err != nil {
			return nil, err
		}
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}
