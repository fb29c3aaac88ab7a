// Package memstore provides an in-memory reference implementation of
// sharedmap.ObjectStorage, in the spirit of the in-process shard state held
// by a consumer.Replica: good enough for tests, not
// intended as a production blob store.
package memstore

import (
	"context"
	"sync"
)

// Store is a mutex-guarded in-memory blob store.
type Store struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{blobs: make(map[string][]byte)}
}

// Read returns the stored blob for id, or (nil, nil) if none exists.
func (s *Store) Read(ctx context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[id]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(blob))
	copy(out, blob)
	return out, nil
}

// Write stores blob under id, overwriting any prior value.
func (s *Store) Write(ctx context.Context, id string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(blob))
	copy(cp, blob)
	s.blobs[id] = cp
	return nil
}
