// Package registry provides a concurrency-safe lookup table used to
// wire named extraction strategies, validators, and external backends
// into graphs built from configuration.
package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps names to values. Reads dominate after startup, so it
// uses an RWMutex.
type Registry[V any] struct {
	mu      sync.RWMutex
	entries map[string]V
}

// New creates an empty registry.
func New[V any]() *Registry[V] {
	return &Registry[V]{
		entries: make(map[string]V),
	}
}

// Register adds or replaces an entry.
func (r *Registry[V]) Register(name string, value V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = value
}

// Lookup returns the entry and whether it exists.
func (r *Registry[V]) Lookup(name string) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[name]
	return v, ok
}

// MustLookup returns the entry or panics. Intended for graph assembly
// at startup, where a missing name is a programming error.
func (r *Registry[V]) MustLookup(name string) V {
	v, ok := r.Lookup(name)
	if !ok {
		panic(fmt.Sprintf("registry: %q not registered", name))
	}
	return v
}

// Names returns the registered names, sorted.
func (r *Registry[V]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Remove deletes an entry. Removing a missing name is a no-op.
func (r *Registry[V]) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}
