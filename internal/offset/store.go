// Package offset persists the user-adjustable playback offset: a signed
// number of seconds added to the playback position before timing lookup, to
// compensate for encoding lead-in silence or systematic ASR bias. Offsets
// are scoped to one (owner id, text hash) pair and default to 0.
package offset

import (
	"fmt"
	"sync"
)

// Store persists playback offsets. Get returns 0 for an absent key; Set
// overwrites any previous value.
type Store interface {
	Get(ownerID, textHash string) float64
	Set(ownerID, textHash string, seconds float64) error
}

// storageKey builds the key-value store key for one offset entry.
func storageKey(ownerID, textHash string) string {
	return fmt.Sprintf("reading-offset:%s:%s", ownerID, textHash)
}

// Compile-time assertion that MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe in-memory Store for tests and ephemeral
// sessions.
type MemStore struct {
	mu      sync.RWMutex
	offsets map[string]float64
}

// NewMemStore returns an initialised MemStore.
func NewMemStore() *MemStore {
	return &MemStore{offsets: make(map[string]float64)}
}

// Get implements Store.
func (s *MemStore) Get(ownerID, textHash string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offsets[storageKey(ownerID, textHash)]
}

// Set implements Store.
func (s *MemStore) Set(ownerID, textHash string, seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsets[storageKey(ownerID, textHash)] = seconds
	return nil
}
