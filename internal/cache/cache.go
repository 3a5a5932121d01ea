// Package cache holds per-user copies of backend read responses.
//
// Entries live in one expiring LRU per profile and carry tags. Mutations
// invalidate by tag so the next read goes back to the backend.
package cache

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/whitecross/gateway/internal/metrics"
)

// Profile selects how long an entry may be served.
type Profile string

const (
	ProfileRealtime Profile = "realtime"
	ProfileShort    Profile = "short"
	ProfileDefault  Profile = "default"
	ProfileLong     Profile = "long"
)

var profileTTL = map[Profile]time.Duration{
	ProfileRealtime: 0,
	ProfileShort:    30 * time.Second,
	ProfileDefault:  5 * time.Minute,
	ProfileLong:     time.Hour,
}

// TTL returns the lifetime of p. Unknown profiles get the default lifetime.
func TTL(p Profile) time.Duration {
	if ttl, ok := profileTTL[p]; ok {
		return ttl
	}
	return profileTTL[ProfileDefault]
}

type entry struct {
	value []byte
	tags  []string
}

// Cache is safe for concurrent use. A nil *Cache caches nothing.
type Cache struct {
	lrus map[Profile]*expirable.LRU[string, entry]

	mu   sync.Mutex
	tags map[string]map[string]struct{}
}

// New creates a cache holding at most maxEntries per profile.
func New(maxEntries int) *Cache {
	c := &Cache{
		lrus: make(map[Profile]*expirable.LRU[string, entry]),
		tags: make(map[string]map[string]struct{}),
	}
	for p, ttl := range profileTTL {
		if ttl <= 0 {
			continue
		}
		c.lrus[p] = expirable.NewLRU[string, entry](maxEntries, c.onEvict, ttl)
	}
	return c
}

// onEvict runs under the LRU's lock; it must not call back into an LRU.
func (c *Cache) onEvict(key string, e entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tag := range e.tags {
		c.untagLocked(tag, key)
	}
}

func (c *Cache) untagLocked(tag, key string) {
	keys := c.tags[tag]
	delete(keys, key)
	if len(keys) == 0 {
		delete(c.tags, tag)
	}
}

func (c *Cache) Get(key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	for _, lru := range c.lrus {
		if e, ok := lru.Get(key); ok {
			metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
			return e.value, true
		}
	}
	metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
	return nil, false
}

// Set stores value under key for the profile's lifetime. Realtime entries are
// never stored.
func (c *Cache) Set(key string, value []byte, profile Profile, tags ...string) {
	if c == nil {
		return
	}
	lru, ok := c.lrus[profile]
	if !ok {
		if TTL(profile) <= 0 {
			return
		}
		lru = c.lrus[ProfileDefault]
	}

	for _, other := range c.lrus {
		if other != lru {
			other.Remove(key)
		}
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	lru.Add(key, entry{value: stored, tags: tags})

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tag := range tags {
		keys, ok := c.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			c.tags[tag] = keys
		}
		keys[key] = struct{}{}
	}
}

// InvalidateTag drops every entry carrying tag and reports how many were dropped.
func (c *Cache) InvalidateTag(tag string) int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	keys := c.tags[tag]
	delete(c.tags, tag)
	c.mu.Unlock()

	removed := 0
	for key := range keys {
		for _, lru := range c.lrus {
			if lru.Remove(key) {
				removed++
			}
		}
	}
	metrics.CacheInvalidationsTotal.WithLabelValues(tagKind(tag)).Inc()
	return removed
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, lru := range c.lrus {
		n += lru.Len()
	}
	return n
}

// Purge empties the cache.
func (c *Cache) Purge() {
	if c == nil {
		return
	}
	for _, lru := range c.lrus {
		lru.Purge()
	}
	c.mu.Lock()
	c.tags = make(map[string]map[string]struct{})
	c.mu.Unlock()
}

// Key scopes a read to the user who made it: "<subject>|<METHOD path?query>".
func Key(subject, method, path string, query url.Values) string {
	var b strings.Builder
	b.WriteString(subject)
	b.WriteByte('|')
	b.WriteString(strings.ToUpper(method))
	b.WriteByte(' ')
	b.WriteString(path)
	if len(query) > 0 {
		b.WriteByte('?')
		b.WriteString(query.Encode())
	}
	return b.String()
}

// CollectionTag marks every cached read of a resource type.
func CollectionTag(resource string) string {
	return resource
}

// ItemTag marks cached reads of a single record.
func ItemTag(resource, id string) string {
	return resource + ":" + id
}

func tagKind(tag string) string {
	if strings.Contains(tag, ":") {
		return "item"
	}
	return "collection"
}
