package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samrose/conductor/core/cas"
	"github.com/samrose/conductor/core/chain"
	"github.com/samrose/conductor/core/dht"
	"github.com/samrose/conductor/core/nucleus"
	"github.com/samrose/conductor/core/types"
)

func newTestState() *State {
	return NewState(
		chain.NewStore(cas.NewMemoryContentStore()),
		dht.NewStore(cas.NewMemoryContentStore(), cas.NewMemoryEaviStore()),
		types.AddressOf([]byte("test-agent")),
		nil,
	)
}

func committed(entry types.Entry, last types.Address, ts int64) types.EntryWithHeader {
	header := types.NewChainHeader(entry, last, ts)
	header.Provenances = []types.Provenance{{Source: types.AddressOf([]byte("test-agent")), Signature: "sig"}}
	return types.EntryWithHeader{Entry: entry, Header: header}
}

func TestState_ReduceCommitAdvancesChain(t *testing.T) {
	s := newTestState()
	entry := types.NewAppEntry("post", []byte(`{"text":"first"}`))
	ewh := committed(entry, types.NilAddress, 1)

	next := s.Reduce(CommitEntry(ewh))

	// The previous snapshot is untouched.
	assert.True(t, s.Agent().TopHeader().IsNil())
	assert.Equal(t, ewh.Header.Address(), next.Agent().TopHeader())

	got, found, err := next.Agent().Entry(entry.Address())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, entry.Address(), got.Address())
}

func TestState_DispatchIsIdempotent(t *testing.T) {
	s := newTestState()
	entry := types.NewAppEntry("post", []byte(`{"text":"once"}`))
	aw := CommitEntry(committed(entry, types.NilAddress, 1))

	once := s.Reduce(aw)
	require.True(t, once.HasAction(aw.ID))

	// Reducing the same wrapper again is a no-op on every slice.
	twice := once.Reduce(aw)
	assert.Equal(t, once.Agent().TopHeader(), twice.Agent().TopHeader())

	headers, err := twice.Agent().HeadersForEntry(entry.Address())
	require.NoError(t, err)
	assert.Len(t, headers, 1)
}

func TestState_DistinctWrappersReduceIndependently(t *testing.T) {
	s := newTestState()
	entry := types.NewAppEntry("post", []byte(`{"text":"twice"}`))

	first := CommitEntry(committed(entry, types.NilAddress, 1))
	s1 := s.Reduce(first)
	second := CommitEntry(committed(entry, s1.Agent().TopHeader(), 2))
	s2 := s1.Reduce(second)

	headers, err := s2.Agent().HeadersForEntry(entry.Address())
	require.NoError(t, err)
	assert.Len(t, headers, 2)
}

func TestState_ReduceHoldEntry(t *testing.T) {
	s := newTestState()
	entry := types.NewAppEntry("post", []byte(`{"text":"held"}`))
	ewh := committed(entry, types.NilAddress, 1)

	next := s.Reduce(HoldEntry(ewh))

	_, found, err := next.Dht().Store().Entry(entry.Address())
	require.NoError(t, err)
	assert.True(t, found)
}

func TestState_GetHeadersMergesLocalFirst(t *testing.T) {
	s := newTestState()
	entry := types.NewAppEntry("post", []byte(`{"text":"shared"}`))

	// Local commit.
	local := committed(entry, types.NilAddress, 1)
	s = s.Reduce(CommitEntry(local))

	// A second agent's header for the same entry arrives via the shard.
	remoteHeader := types.NewChainHeader(entry, types.NilAddress, 2)
	remoteHeader.Provenances = []types.Provenance{{Source: types.AddressOf([]byte("other-agent")), Signature: "sig2"}}
	s = s.Reduce(AddHeaderForEntry(types.EntryWithHeader{Entry: entry, Header: remoteHeader}))

	headers, err := s.GetHeaders(entry.Address())
	require.NoError(t, err)
	require.Len(t, headers, 2)
	assert.Equal(t, local.Header.Address(), headers[0].Address())
	assert.Equal(t, remoteHeader.Address(), headers[1].Address())
}

func TestState_GetHeadersDedupsByAddress(t *testing.T) {
	s := newTestState()
	entry := types.NewAppEntry("post", []byte(`{"text":"published"}`))
	ewh := committed(entry, types.NilAddress, 1)

	// The same header lives both on the chain and in the shard, as after a
	// local publish.
	s = s.Reduce(CommitEntry(ewh))
	s = s.Reduce(AddHeaderForEntry(ewh))

	headers, err := s.GetHeaders(entry.Address())
	require.NoError(t, err)
	assert.Len(t, headers, 1)
}

func TestState_NewStateFromTopReplaysChain(t *testing.T) {
	chainStore := chain.NewStore(cas.NewMemoryContentStore())
	dhtStore := dht.NewStore(cas.NewMemoryContentStore(), cas.NewMemoryEaviStore())
	agentID := types.AddressOf([]byte("test-agent"))

	dna := &nucleus.DNA{Name: "app", UUID: "replay-uuid", Zomes: map[string]nucleus.Zome{}}
	s := NewState(chainStore, dhtStore, agentID, nil)
	s = s.Reduce(CommitEntry(committed(dna.Entry(), types.NilAddress, 1)))
	post := types.NewAppEntry("post", []byte(`{"text":"survives restarts"}`))
	s = s.Reduce(CommitEntry(committed(post, s.Agent().TopHeader(), 2)))
	top := s.Agent().TopHeader()

	// A fresh snapshot over the same stores resumes where the chain left off.
	restored, err := NewStateFromTop(chainStore, dhtStore, agentID, top, nil)
	require.NoError(t, err)
	assert.Equal(t, top, restored.Agent().TopHeader())
	require.NotNil(t, restored.Nucleus().Dna())
	assert.Equal(t, dna.Address(), restored.Nucleus().Dna().Address())

	headers, err := restored.Agent().HeadersForEntry(post.Address())
	require.NoError(t, err)
	assert.Len(t, headers, 1)
}

func TestState_NewStateFromTopRejectsUnknownHeader(t *testing.T) {
	chainStore := chain.NewStore(cas.NewMemoryContentStore())
	dhtStore := dht.NewStore(cas.NewMemoryContentStore(), cas.NewMemoryEaviStore())

	_, err := NewStateFromTop(chainStore, dhtStore,
		types.AddressOf([]byte("test-agent")),
		types.AddressOf([]byte("never-committed")), nil)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeStore))
}

func TestState_UpdateCrudStatus(t *testing.T) {
	s := newTestState()
	entry := types.NewAppEntry("post", []byte(`{"text":"mortal"}`))
	s = s.Reduce(HoldEntry(committed(entry, types.NilAddress, 1)))

	marker := types.AddressOf([]byte("deletion"))
	s = s.Reduce(UpdateCrudStatus(entry.Address(), types.StatusDeleted, marker))

	status, hasStatus, err := s.Dht().Store().CrudStatus(entry.Address())
	require.NoError(t, err)
	require.True(t, hasStatus)
	assert.Equal(t, types.StatusDeleted, status)
}

func TestState_LinkActions(t *testing.T) {
	s := newTestState()
	base := types.AddressOf([]byte("base"))
	target := types.AddressOf([]byte("target"))
	link := types.Link{Base: base, Target: target, Tag: "friend"}
	source := types.AddressOf([]byte("link-entry"))

	s = s.Reduce(AddLink(link, source))
	targets, err := s.Dht().Store().Links(base, "friend")
	require.NoError(t, err)
	assert.Equal(t, []types.Address{target}, targets)

	s = s.Reduce(RemoveLink(link, types.AddressOf([]byte("removal-entry"))))
	targets, err = s.Dht().Store().Links(base, "friend")
	require.NoError(t, err)
	assert.Empty(t, targets)
}
