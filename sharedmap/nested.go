package sharedmap

import (
	"context"
	"sync"
)

// nestedEntry is a cached handle on a live nested collaborative object,
// plus whether this engine created it (and so may need to drive its attach
// before referencing it in an outbound Set).
type nestedEntry struct {
	object    CollaborativeObject
	localOnly bool
}

// nestedObjectCache maps nested object id to its live handle. It is
// populated either when the Value Codec encodes a CollaborativeObject value
// (locally created) or when the registry adapter materializes a Reference
// on decode (possibly created by another client).
type nestedObjectCache struct {
	mu      sync.Mutex
	entries map[string]nestedEntry
}

func newNestedObjectCache() *nestedObjectCache {
	return &nestedObjectCache{entries: make(map[string]nestedEntry)}
}

func (c *nestedObjectCache) register(obj CollaborativeObject, localOnly bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[obj.ID()]; exists {
		return
	}
	c.entries[obj.ID()] = nestedEntry{object: obj, localOnly: localOnly}
}

func (c *nestedObjectCache) get(id string) (nestedEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	return e, ok
}

// registryAdapter materializes a nested collaborative object from a
// Reference's kind/id, caching the result by id in the parent Map's nested
// object cache. It is the sole bridge between the core engine and the
// external Registry collaborator.
type registryAdapter struct {
	registry Registry
	services Services
	cache    *nestedObjectCache
}

func newRegistryAdapter(reg Registry, services Services, cache *nestedObjectCache) *registryAdapter {
	return &registryAdapter{registry: reg, services: services, cache: cache}
}

// materialize returns the cached handle for id if present, or asks the
// Registry for a Factory matching kind and constructs + caches a new one.
// The constructed object was not created by this engine, so it is cached
// with localOnly = false: the attach-before-submit rule never applies to it.
func (a *registryAdapter) materialize(ctx context.Context, kind, id string) (CollaborativeObject, error) {
	if e, ok := a.cache.get(id); ok {
		return e.object, nil
	}
	if a.registry == nil {
		return nil, errUnknownKindf(kind)
	}
	factory, ok := a.registry.GetExtension(kind)
	if !ok {
		return nil, errUnknownKindf(kind)
	}
	obj, err := factory.Load(ctx, id, a.services, a.registry)
	if err != nil {
		return nil, err
	}
	a.cache.register(obj, false)
	return obj, nil
}
