// Package dht implements the node's shard of the validated DHT: a
// content-addressable store for held entries plus an EAV metadata store for
// CRUD status, links and provenance headers.
package dht

import (
	"github.com/samrose/conductor/core/cas"
	"github.com/samrose/conductor/core/types"
)

// Store is the DHT shard. CRUD transitions are represented as new EAV rows
// with a later index; held content is never erased.
type Store struct {
	content cas.ContentStore
	meta    cas.EaviStore
}

// NewStore creates a DHT store over the given content and metadata stores.
func NewStore(content cas.ContentStore, meta cas.EaviStore) *Store {
	return &Store{content: content, meta: meta}
}

// ContentStorage exposes the underlying CAS.
func (s *Store) ContentStorage() cas.ContentStore {
	return s.content
}

// MetaStorage exposes the underlying EAV store.
func (s *Store) MetaStorage() cas.EaviStore {
	return s.meta
}

// Hold adds an entry to the shard and marks it Live.
func (s *Store) Hold(entry types.Entry) error {
	address, err := s.content.Add(entry.Content())
	if err != nil {
		return types.WrapError(types.ErrCodeStore, "holding entry", err)
	}
	return s.SetCrudStatus(address, types.StatusLive, types.NilAddress)
}

// HoldEntryWithHeader adds an entry to the shard together with its header
// provenance.
func (s *Store) HoldEntryWithHeader(ewh types.EntryWithHeader) error {
	if err := s.Hold(ewh.Entry); err != nil {
		return err
	}
	return s.AddHeaderForEntry(ewh.Entry, ewh.Header)
}

// Entry fetches a held entry. Absence is a result, not an error.
func (s *Store) Entry(address types.Address) (types.Entry, bool, error) {
	content, ok, err := s.content.Fetch(address)
	if err != nil || !ok {
		return types.Entry{}, false, err
	}
	entry, err := types.EntryFromContent(content)
	if err != nil {
		return types.Entry{}, false, err
	}
	return entry, true, nil
}

// Contains reports whether the shard holds content at the address.
func (s *Store) Contains(address types.Address) (bool, error) {
	return s.content.Contains(address)
}

// SetCrudStatus appends a status row for the entry.
func (s *Store) SetCrudStatus(address types.Address, status types.CrudStatus, source types.Address) error {
	_, err := s.meta.AddEavi(cas.Eavi{
		Entity:    address,
		Attribute: types.AttrCrudStatus,
		Value:     types.Address(status),
		Source:    source,
	})
	if err != nil {
		return types.WrapError(types.ErrCodeStore, "recording crud status", err)
	}
	return nil
}

// CrudStatus returns the current status of an entry: the latest status row.
func (s *Store) CrudStatus(address types.Address) (types.CrudStatus, bool, error) {
	rows, err := s.meta.FetchEavi(cas.EaviQuery{
		Entity:    cas.QueryEntity(address),
		Attribute: cas.QueryAttribute(types.AttrCrudStatus),
		Filter:    cas.IndexFilterLatestByAttribute,
	})
	if err != nil {
		return "", false, types.WrapError(types.ErrCodeStore, "querying crud status", err)
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return types.CrudStatus(rows[len(rows)-1].Value), true, nil
}

// AddLink records a live link row under the link's tag attribute. The link's
// base does not have to be held locally: link metadata may arrive before
// content.
func (s *Store) AddLink(link types.Link, source types.Address) error {
	_, err := s.meta.AddEavi(cas.Eavi{
		Entity:    link.Base,
		Attribute: types.LinkAttribute(link.Tag),
		Value:     link.Target,
		Source:    source,
	})
	if err != nil {
		return types.WrapError(types.ErrCodeStore, "adding link", err)
	}
	return nil
}

// RemoveLink records a removal row for the link. The removal is accepted even
// if the live row was never seen.
func (s *Store) RemoveLink(link types.Link, source types.Address) error {
	_, err := s.meta.AddEavi(cas.Eavi{
		Entity:    link.Base,
		Attribute: types.RemovedLinkAttribute(link.Tag),
		Value:     link.Target,
		Source:    source,
	})
	if err != nil {
		return types.WrapError(types.ErrCodeStore, "removing link", err)
	}
	return nil
}

// Links returns the targets of live links from base under tag, in insertion
// order, excluding removed targets.
func (s *Store) Links(base types.Address, tag string) ([]types.Address, error) {
	live, err := s.meta.FetchEavi(cas.EaviQuery{
		Entity:    cas.QueryEntity(base),
		Attribute: cas.QueryAttribute(types.LinkAttribute(tag)),
	})
	if err != nil {
		return nil, types.WrapError(types.ErrCodeStore, "querying links", err)
	}
	removed, err := s.meta.FetchEavi(cas.EaviQuery{
		Entity:    cas.QueryEntity(base),
		Attribute: cas.QueryAttribute(types.RemovedLinkAttribute(tag)),
	})
	if err != nil {
		return nil, types.WrapError(types.ErrCodeStore, "querying removed links", err)
	}

	gone := make(map[types.Address]bool, len(removed))
	for _, row := range removed {
		gone[row.Value] = true
	}

	var targets []types.Address
	seen := make(map[types.Address]bool)
	for _, row := range live {
		if gone[row.Value] || seen[row.Value] {
			continue
		}
		seen[row.Value] = true
		targets = append(targets, row.Value)
	}
	return targets, nil
}

// AddHeaderForEntry stores a header in the shard CAS and indexes it against
// its entry so provenance survives independently of any agent's chain.
func (s *Store) AddHeaderForEntry(entry types.Entry, header types.ChainHeader) error {
	headerAddress, err := s.content.Add(header.Content())
	if err != nil {
		return types.WrapError(types.ErrCodeStore, "storing header", err)
	}
	_, err = s.meta.AddEavi(cas.Eavi{
		Entity:    entry.Address(),
		Attribute: types.AttrEntryHeader,
		Value:     headerAddress,
		Source:    header.Source(),
	})
	if err != nil {
		return types.WrapError(types.ErrCodeStore, "indexing header", err)
	}
	return nil
}

// HeadersForEntry resolves every held header referencing the entry.
func (s *Store) HeadersForEntry(entryAddress types.Address) ([]types.ChainHeader, error) {
	rows, err := s.meta.FetchEavi(cas.EaviQuery{
		Entity:    cas.QueryEntity(entryAddress),
		Attribute: cas.QueryAttribute(types.AttrEntryHeader),
	})
	if err != nil {
		return nil, types.WrapError(types.ErrCodeStore, "querying entry headers", err)
	}

	var headers []types.ChainHeader
	for _, row := range rows {
		content, ok, err := s.content.Fetch(row.Value)
		if err != nil {
			return nil, types.WrapError(types.ErrCodeStore, "resolving header", err)
		}
		if !ok {
			// Index rows may reference headers this shard never held.
			continue
		}
		header, err := types.HeaderFromContent(content)
		if err != nil {
			return nil, err
		}
		headers = append(headers, header)
	}
	return headers, nil
}
