// Package registry is a static, process-wide binding of nested collaborative
// object kind tags to the Factory able to construct them. It plays the role
// consumer.NewKeySpace's decoder plays for Gazette ShardSpecs: a fixed,
// registered-once dispatch table keyed by an explicit tag carried on the
// wire, rather than runtime type reflection.
package registry

import (
	"context"
	"fmt"
	"sync"

	"go.sequencedb.dev/sharedmap"
)

// LoadFunc constructs a CollaborativeObject for id, given the Services
// shared with its parent map.
type LoadFunc func(ctx context.Context, id string, services sharedmap.Services, reg sharedmap.Registry) (sharedmap.CollaborativeObject, error)

type funcFactory struct{ load LoadFunc }

func (f funcFactory) Load(ctx context.Context, id string, services sharedmap.Services, reg sharedmap.Registry) (sharedmap.CollaborativeObject, error) {
	return f.load(ctx, id, services, reg)
}

// Static is a sharedmap.Registry backed by a fixed map of kind -> Factory,
// built up by Register calls before any Map attaches against it.
type Static struct {
	mu        sync.RWMutex
	factories map[string]sharedmap.Factory
}

// New returns an empty Static registry.
func New() *Static {
	return &Static{factories: make(map[string]sharedmap.Factory)}
}

// Register binds kind to fn. Registering the same kind twice panics: this
// mirrors the decoder's strict identity assertions, since a silently
// replaced factory would be a far harder bug to track down than a boot-time
// panic.
func (s *Static) Register(kind string, fn LoadFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.factories[kind]; exists {
		panic(fmt.Sprintf("registry: kind %q already registered", kind))
	}
	s.factories[kind] = funcFactory{load: fn}
}

// GetExtension implements sharedmap.Registry.
func (s *Static) GetExtension(kind string) (sharedmap.Factory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.factories[kind]
	return f, ok
}
