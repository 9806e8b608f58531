// Package chain implements the agent's local source chain: a hash-linked
// sequence of signed headers over a content-addressable store.
package chain

import (
	"github.com/samrose/conductor/core/cas"
	"github.com/samrose/conductor/core/types"
)

// Store reads and writes chain entries and headers through a CAS. The chain
// itself is implicit: each header addresses its predecessor, so any top
// header reaches the whole chain.
type Store struct {
	storage cas.ContentStore
}

// NewStore creates a chain store over the given CAS.
func NewStore(storage cas.ContentStore) *Store {
	return &Store{storage: storage}
}

// Storage exposes the underlying CAS.
func (s *Store) Storage() cas.ContentStore {
	return s.storage
}

// AddEntry stores an entry's canonical serialization.
func (s *Store) AddEntry(entry types.Entry) (types.Address, error) {
	address, err := s.storage.Add(entry.Content())
	if err != nil {
		return types.NilAddress, types.WrapError(types.ErrCodeStore, "adding chain entry", err)
	}
	return address, nil
}

// AddHeader stores a header's canonical serialization.
func (s *Store) AddHeader(header types.ChainHeader) (types.Address, error) {
	address, err := s.storage.Add(header.Content())
	if err != nil {
		return types.NilAddress, types.WrapError(types.ErrCodeStore, "adding chain header", err)
	}
	return address, nil
}

// Entry fetches an entry by address.
func (s *Store) Entry(address types.Address) (types.Entry, bool, error) {
	content, ok, err := s.storage.Fetch(address)
	if err != nil || !ok {
		return types.Entry{}, false, err
	}
	entry, err := types.EntryFromContent(content)
	if err != nil {
		return types.Entry{}, false, err
	}
	return entry, true, nil
}

// Header fetches a header by address.
func (s *Store) Header(address types.Address) (types.ChainHeader, bool, error) {
	content, ok, err := s.storage.Fetch(address)
	if err != nil || !ok {
		return types.ChainHeader{}, false, err
	}
	header, err := types.HeaderFromContent(content)
	if err != nil {
		return types.ChainHeader{}, false, err
	}
	return header, true, nil
}

// Walk returns every header from top back to genesis, newest first.
func (s *Store) Walk(top types.Address) ([]types.ChainHeader, error) {
	var headers []types.ChainHeader
	current := top
	for !current.IsNil() {
		header, ok, err := s.Header(current)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, types.NewError(types.ErrCodeStore, "chain is broken: missing header "+current.String())
		}
		headers = append(headers, header)
		current = header.LastHeader
	}
	return headers, nil
}

// WalkType returns headers of one entry type, newest first.
func (s *Store) WalkType(top types.Address, entryType types.EntryType) ([]types.ChainHeader, error) {
	headers, err := s.Walk(top)
	if err != nil {
		return nil, err
	}
	var filtered []types.ChainHeader
	for _, h := range headers {
		if h.EntryType == entryType {
			filtered = append(filtered, h)
		}
	}
	return filtered, nil
}

// HeadersForEntry returns every header on the chain referencing the entry,
// newest first.
func (s *Store) HeadersForEntry(top, entryAddress types.Address) ([]types.ChainHeader, error) {
	headers, err := s.Walk(top)
	if err != nil {
		return nil, err
	}
	var matched []types.ChainHeader
	for _, h := range headers {
		if h.EntryAddress == entryAddress {
			matched = append(matched, h)
		}
	}
	return matched, nil
}
