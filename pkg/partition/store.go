package partition

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a KeyStore for a single process.
type MemoryStore struct {
	mu   sync.Mutex
	keys map[string]Key
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]Key)}
}

// Add implements KeyStore.
func (s *MemoryStore) Add(_ context.Context, key Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key.FullPath]; ok {
		return false, nil
	}
	s.keys[key.FullPath] = key
	return true, nil
}

// Keys returns the registered keys ordered by path.
func (s *MemoryStore) Keys() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Key, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullPath < out[j].FullPath })
	return out
}
