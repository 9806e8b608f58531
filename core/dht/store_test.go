package dht

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samrose/conductor/core/cas"
	"github.com/samrose/conductor/core/types"
)

func newTestStore() *Store {
	return NewStore(cas.NewMemoryContentStore(), cas.NewMemoryEaviStore())
}

func TestStore_HoldMarksLive(t *testing.T) {
	store := newTestStore()
	entry := types.NewAppEntry("post", []byte(`{"text":"held"}`))

	require.NoError(t, store.Hold(entry))

	got, found, err := store.Entry(entry.Address())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, entry.Address(), got.Address())

	status, hasStatus, err := store.CrudStatus(entry.Address())
	require.NoError(t, err)
	require.True(t, hasStatus)
	assert.Equal(t, types.StatusLive, status)
}

func TestStore_AbsentEntryIsNotAnError(t *testing.T) {
	store := newTestStore()

	_, found, err := store.Entry(types.AddressOf([]byte("absent")))
	require.NoError(t, err)
	assert.False(t, found)

	_, hasStatus, err := store.CrudStatus(types.AddressOf([]byte("absent")))
	require.NoError(t, err)
	assert.False(t, hasStatus)
}

func TestStore_CrudStatusLatestWins(t *testing.T) {
	store := newTestStore()
	entry := types.NewAppEntry("post", []byte(`{"text":"mortal"}`))
	require.NoError(t, store.Hold(entry))

	marker := types.AddressOf([]byte("deletion marker"))
	require.NoError(t, store.SetCrudStatus(entry.Address(), types.StatusDeleted, marker))

	status, hasStatus, err := store.CrudStatus(entry.Address())
	require.NoError(t, err)
	require.True(t, hasStatus)
	assert.Equal(t, types.StatusDeleted, status)
}

func TestStore_LinksAddThenRemove(t *testing.T) {
	store := newTestStore()
	base := types.AddressOf([]byte("base"))
	target := types.AddressOf([]byte("target"))
	link := types.Link{Base: base, Target: target, Tag: "friend"}

	require.NoError(t, store.AddLink(link, types.NilAddress))

	targets, err := store.Links(base, "friend")
	require.NoError(t, err)
	assert.Equal(t, []types.Address{target}, targets)

	require.NoError(t, store.RemoveLink(link, types.NilAddress))

	targets, err = store.Links(base, "friend")
	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestStore_LinksRemoveBeforeAdd(t *testing.T) {
	store := newTestStore()
	base := types.AddressOf([]byte("base"))
	target := types.AddressOf([]byte("target"))
	link := types.Link{Base: base, Target: target, Tag: "friend"}

	// Metadata can arrive in any order: the tombstone still wins.
	require.NoError(t, store.RemoveLink(link, types.NilAddress))
	require.NoError(t, store.AddLink(link, types.NilAddress))

	targets, err := store.Links(base, "friend")
	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestStore_LinksInsertionOrderAndTagIsolation(t *testing.T) {
	store := newTestStore()
	base := types.AddressOf([]byte("base"))
	first := types.AddressOf([]byte("first"))
	second := types.AddressOf([]byte("second"))

	require.NoError(t, store.AddLink(types.Link{Base: base, Target: first, Tag: "friend"}, types.NilAddress))
	require.NoError(t, store.AddLink(types.Link{Base: base, Target: second, Tag: "friend"}, types.NilAddress))
	require.NoError(t, store.AddLink(types.Link{Base: base, Target: first, Tag: "enemy"}, types.NilAddress))

	friends, err := store.Links(base, "friend")
	require.NoError(t, err)
	assert.Equal(t, []types.Address{first, second}, friends)

	enemies, err := store.Links(base, "enemy")
	require.NoError(t, err)
	assert.Equal(t, []types.Address{first}, enemies)
}

func TestStore_HeadersForEntry(t *testing.T) {
	store := newTestStore()
	entry := types.NewAppEntry("post", []byte(`{"text":"provenanced"}`))
	header := types.NewChainHeader(entry, types.NilAddress, 1)
	header.Provenances = []types.Provenance{{Source: types.AddressOf([]byte("agent")), Signature: "sig"}}

	require.NoError(t, store.HoldEntryWithHeader(types.EntryWithHeader{Entry: entry, Header: header}))

	headers, err := store.HeadersForEntry(entry.Address())
	require.NoError(t, err)
	require.Len(t, headers, 1)
	assert.Equal(t, header.Address(), headers[0].Address())
}

func TestStore_MetaWithoutContent(t *testing.T) {
	store := newTestStore()
	entry := types.NewAppEntry("post", []byte(`{"text":"elsewhere"}`))
	header := types.NewChainHeader(entry, types.NilAddress, 1)

	// Status and header metadata are accepted for entries the shard does not
	// hold.
	require.NoError(t, store.SetCrudStatus(entry.Address(), types.StatusLive, types.NilAddress))
	require.NoError(t, store.AddHeaderForEntry(entry, header))

	status, hasStatus, err := store.CrudStatus(entry.Address())
	require.NoError(t, err)
	require.True(t, hasStatus)
	assert.Equal(t, types.StatusLive, status)

	headers, err := store.HeadersForEntry(entry.Address())
	require.NoError(t, err)
	assert.Len(t, headers, 1)
}
