// Package cas provides the two storage primitives of the core: a write-once
// content-addressable store and an append-only entity-attribute-value store.
// Both in-memory implementations follow a single-writer/multi-reader
// discipline per store instance.
package cas

import (
	"sync"

	"github.com/samrose/conductor/core/types"
)

// ContentStore maps content hashes to opaque serialized bytes. Writing the
// same address twice is a no-op, not an error, so concurrent writers never
// conflict.
type ContentStore interface {
	// Add stores content under its computed address and returns the address.
	Add(content []byte) (types.Address, error)
	// Fetch returns the content at address. Absence is reported via the
	// boolean, not an error.
	Fetch(address types.Address) ([]byte, bool, error)
	// Contains reports whether the address is held.
	Contains(address types.Address) (bool, error)
}

// MemoryContentStore is the in-memory ContentStore.
type MemoryContentStore struct {
	mu      sync.RWMutex
	content map[types.Address][]byte
}

// NewMemoryContentStore creates an empty in-memory content store.
func NewMemoryContentStore() *MemoryContentStore {
	return &MemoryContentStore{content: make(map[types.Address][]byte)}
}

// Add implements ContentStore.
func (s *MemoryContentStore) Add(content []byte) (types.Address, error) {
	address := types.AddressOf(content)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.content[address]; exists {
		// Write-once: identical content, identical address.
		return address, nil
	}
	stored := make([]byte, len(content))
	copy(stored, content)
	s.content[address] = stored
	return address, nil
}

// Fetch implements ContentStore.
func (s *MemoryContentStore) Fetch(address types.Address) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	content, ok := s.content[address]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(content))
	copy(out, content)
	return out, true, nil
}

// Contains implements ContentStore.
func (s *MemoryContentStore) Contains(address types.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.content[address]
	return ok, nil
}
