// store.go: durable registry of component source text.
//
// The pool is the in-memory cache; a ComponentStore is the durable record
// that lets a restarted process rebuild an identical pool (the determinism
// contract spans restarts). Registration writes through; startup rehydrates.
// The memory implementation backs tests and store-less deployments.
package policyscript

import (
	"context"
	"sort"
	"sync"
)

// Component is an immutable (id, version, source) tuple. Identity is
// (ID, Version); registering a different source under an existing identity
// is an error, never an overwrite.
type Component struct {
	ID      string
	Version int
	Source  string
}

// Key returns the pool key for this component.
func (c Component) Key() ComponentKey { return ComponentKey{ID: c.ID, Version: c.Version} }

// ComponentStore persists registered components.
type ComponentStore interface {
	// Put stores c. Storing an identical component twice is a no-op;
	// storing different source under an existing identity returns an error
	// wrapping ErrSourceMismatch.
	Put(ctx context.Context, c Component) error
	// Get fetches one component; the bool reports presence.
	Get(ctx context.Context, id string, version int) (Component, bool, error)
	// List returns every stored component, ordered by (ID, Version).
	List(ctx context.Context) ([]Component, error)
	Close() error
}

type memoryStore struct {
	mu    sync.RWMutex
	items map[ComponentKey]Component
}

// NewMemoryStore returns an in-process ComponentStore.
func NewMemoryStore() ComponentStore {
	return &memoryStore{items: map[ComponentKey]Component{}}
}

func (s *memoryStore) Put(_ context.Context, c Component) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.items[c.Key()]; ok {
		if prev.Source != c.Source {
			return &CompileError{Key: c.Key(), Err: ErrSourceMismatch}
		}
		return nil
	}
	s.items[c.Key()] = c
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string, version int) (Component, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.items[ComponentKey{ID: id, Version: version}]
	return c, ok, nil
}

func (s *memoryStore) List(_ context.Context) ([]Component, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Component, 0, len(s.items))
	for _, c := range s.items {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}

func (s *memoryStore) Close() error { return nil }
