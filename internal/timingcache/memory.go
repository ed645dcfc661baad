package timingcache

import (
	"context"
	"sync"

	"github.com/eliasvob/readsync/pkg/timing"
)

// Compile-time assertion that MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe in-memory Store. It is suitable for tests and
// for single-process deployments that can afford to re-run ASR after a
// restart.
type MemStore struct {
	mu      sync.RWMutex
	entries map[Key]*timing.Set
}

// NewMemStore returns an initialised MemStore.
func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[Key]*timing.Set)}
}

// Get implements Store.
func (s *MemStore) Get(_ context.Context, key Key) (*timing.Set, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.entries[key]
	return set, ok
}

// Put implements Store.
func (s *MemStore) Put(_ context.Context, key Key, set *timing.Set) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = set
	return nil
}

// Len returns the number of cached entries. Used by tests.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
