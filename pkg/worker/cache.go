package worker

import (
	lru "github.com/hashicorp/golang-lru"
)

const defaultCacheCapacity = 128

// ModuleCache is a worker-local LRU cache from a content hash to a compiled
// artifact, keyed by hex(SHA-256(module_bytes)) (spec §4.6). It is generic
// over the artifact type so callers outside this package can exercise it
// against lightweight stand-ins in tests without compiling real WASM.
type ModuleCache[T any] struct {
	inner *lru.Cache
}

// NewModuleCache creates a cache bounded to capacity entries.
func NewModuleCache[T any](capacity int) *ModuleCache[T] {
	if capacity <= 0 {
		capacity = defaultCacheCapacity
	}
	c, err := lru.New(capacity)
	if err != nil {
		// Only returns an error for capacity <= 0, which is excluded above.
		panic(err)
	}
	return &ModuleCache[T]{inner: c}
}

// Get returns the cached artifact for key, if present. A hit promotes the
// entry to most-recently-used.
func (c *ModuleCache[T]) Get(key string) (*T, bool) {
	v, ok := c.inner.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*T), true
}

// Put inserts or replaces the artifact for key, evicting the
// least-recently-used entry if the cache is at capacity.
func (c *ModuleCache[T]) Put(key string, value *T) {
	c.inner.Add(key, value)
}

// Len reports the number of entries currently cached.
func (c *ModuleCache[T]) Len() int {
	return c.inner.Len()
}
