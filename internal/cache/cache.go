// Package cache is a per-kind, in-process TTL cache of identity-resolved
// documents.
//
// Entries expire lazily: a read past the TTL evicts the entry and reports a
// miss. There is no background sweep and no invalidation hook; writes that
// bypass the creation path can leave a stale entry until it expires.
package cache

import (
	"sync"
	"time"

	"github.com/roach88/canon/internal/ir"
)

// DefaultTTL is the TTL used when a kind configures none.
const DefaultTTL = 60 * time.Second

// Options configures a Cache.
type Options struct {
	Enabled bool
	TTL     time.Duration
	// Now is the wall clock. Defaults to time.Now.
	Now func() time.Time
}

type entry struct {
	doc       ir.Document
	fetchedAt time.Time
}

// Cache holds document snapshots keyed by scope:id.
// Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	enabled bool
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry
}

// New creates a Cache. A zero TTL means DefaultTTL.
func New(opts Options) *Cache {
	c := &Cache{
		enabled: opts.Enabled,
		ttl:     opts.TTL,
		now:     opts.Now,
		entries: make(map[string]entry),
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Key builds the cache key for a document identity.
func Key(scope, id string) string {
	return scope + ":" + id
}

// Enabled reports whether the cache stores anything.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// TTL returns the entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns a copy of the cached document for (scope, id).
// Expired entries are evicted and reported as misses.
func (c *Cache) Get(scope, id string) (ir.Document, bool) {
	if !c.enabled {
		return nil, false
	}

	key := Key(scope, id)
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.fetchedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.doc.Clone(), true
}

// GetAll returns the documents for every id, in order, only when all of
// them hit. Any miss yields false.
func (c *Cache) GetAll(scope string, ids []string) ([]ir.Document, bool) {
	if !c.enabled || len(ids) == 0 {
		return nil, false
	}
	docs := make([]ir.Document, 0, len(ids))
	for _, id := range ids {
		doc, ok := c.Get(scope, id)
		if !ok {
			return nil, false
		}
		docs = append(docs, doc)
	}
	return docs, true
}

// Set stores a copy of doc under (scope, id), overwriting any entry.
func (c *Cache) Set(scope, id string, doc ir.Document) {
	if !c.enabled || id == "" {
		return
	}

	snapshot := doc.Clone()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[Key(scope, id)] = entry{doc: snapshot, fetchedAt: c.now()}
}

// SetAll stores every document under its own scope and id.
func (c *Cache) SetAll(docs []ir.Document) {
	for _, doc := range docs {
		c.Set(doc.Scope(), doc.ID(), doc)
	}
}

// Len returns the number of stored entries, including expired ones not
// yet evicted.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
