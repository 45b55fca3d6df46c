package cache

import (
	"sync"
	"time"
)

// Registry owns one Cache per entity kind.
type Registry struct {
	mu      sync.Mutex
	options map[string]Options
	now     func() time.Time
	caches  map[string]*Cache
}

// NewRegistry creates a registry. Kinds missing from options get a
// disabled cache.
func NewRegistry(options map[string]Options, now func() time.Time) *Registry {
	return &Registry{
		options: options,
		now:     now,
		caches:  make(map[string]*Cache),
	}
}

// For returns the cache of kind, creating it on first use.
func (r *Registry) For(kind string) *Cache {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.caches[kind]; ok {
		return c
	}
	opts := r.options[kind]
	if opts.Now == nil {
		opts.Now = r.now
	}
	c := New(opts)
	r.caches[kind] = c
	return c
}
