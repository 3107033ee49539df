package resolve

import (
	"sync"
	"time"
)

// DefaultCacheTTL is how long a resolved record is reused.
const DefaultCacheTTL = 5 * time.Minute

type cacheKey struct {
	tenant, mode, code string
}

type cacheEntry struct {
	record  Record
	expires time.Time
}

// Cache remembers resolved records per tenant, mode and code. Only positive
// answers are kept: an unresolved code is asked again next time so a record
// created meanwhile is picked up.
//
// A Cache is owned by one editing session and is safe for concurrent use.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[cacheKey]cacheEntry
	abbrev  map[string]string
}

// NewCache creates an empty cache. A ttl of zero or less means DefaultCacheTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[cacheKey]cacheEntry),
		abbrev:  make(map[string]string),
	}
}

// Lookup splits codes into cached records and codes that must be fetched.
func (c *Cache) Lookup(tenant, mode string, codes []string) (map[string]Record, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	hits := make(map[string]Record)
	var misses []string
	for _, code := range codes {
		k := cacheKey{tenant, mode, code}
		e, ok := c.entries[k]
		if ok && now.Before(e.expires) {
			hits[code] = e.record
			continue
		}
		if ok {
			delete(c.entries, k)
		}
		misses = append(misses, code)
	}
	return hits, misses
}

// Store caches every record in res.
func (c *Cache) Store(tenant, mode string, res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	for code, rec := range res.Records {
		c.entries[cacheKey{tenant, mode, code}] = cacheEntry{record: rec, expires: expires}
	}
	if res.TenantAbbreviation != "" {
		c.abbrev[tenant] = res.TenantAbbreviation
	}
}

// Abbreviation returns the last tenant abbreviation seen for tenant.
func (c *Cache) Abbreviation(tenant string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.abbrev[tenant]
}

// Invalidate drops everything.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey]cacheEntry)
	c.abbrev = make(map[string]string)
}

// Len returns the number of cached records, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
