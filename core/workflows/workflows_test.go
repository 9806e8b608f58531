package workflows

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samrose/conductor/core/cas"
	"github.com/samrose/conductor/core/chain"
	"github.com/samrose/conductor/core/dht"
	"github.com/samrose/conductor/core/instance"
	"github.com/samrose/conductor/core/nucleus"
	"github.com/samrose/conductor/core/types"
	"github.com/samrose/conductor/internal/keys"
)

func testDNA() *nucleus.DNA {
	return &nucleus.DNA{
		Name: "test-app",
		UUID: "00000000-0000-0000-0000-000000000000",
		Zomes: map[string]nucleus.Zome{
			"main": {EntryTypes: map[string]nucleus.EntryTypeDef{
				"post":   {Sharing: "public"},
				"secret": {Sharing: "private"},
			}},
		},
	}
}

// newOfflineNode builds a fully initialized single node with no transport.
func newOfflineNode(t *testing.T, validator nucleus.Validator) *instance.Context {
	t.Helper()
	kp, err := keys.Generate()
	require.NoError(t, err)
	c := instance.NewContext(kp,
		chain.NewStore(cas.NewMemoryContentStore()),
		dht.NewStore(cas.NewMemoryContentStore(), cas.NewMemoryEaviStore()),
		validator, testDNA(), nil)
	t.Cleanup(c.Shutdown)
	require.NoError(t, Initialize(context.Background(), c, nil))
	return c
}

func TestInitialize_GenesisChainShape(t *testing.T) {
	c := newOfflineNode(t, nucleus.AcceptAll())

	headers, err := c.ChainStore.Walk(c.State().Agent().TopHeader())
	require.NoError(t, err)
	require.Len(t, headers, 2)
	// Newest first: agent identity on top of the DNA entry.
	assert.Equal(t, types.EntryTypeAgentID, headers[0].EntryType)
	assert.Equal(t, types.EntryTypeDna, headers[1].EntryType)
	assert.True(t, headers[1].LastHeader.IsNil())

	assert.Equal(t, c.DNA, c.State().Nucleus().Dna())
}

func TestAuthorEntry_RoundTripThroughGet(t *testing.T) {
	c := newOfflineNode(t, nucleus.AcceptAll())
	ctx := context.Background()

	entry := types.NewAppEntry("post", []byte(`{"text":"hello"}`))
	address, err := AuthorEntry(ctx, c, entry, types.ActionCreate)
	require.NoError(t, err)
	assert.Equal(t, entry.Address(), address)

	got, err := GetEntry(ctx, c, address, GetOptions{WithHeaders: true})
	require.NoError(t, err)
	require.True(t, got.Found)
	assert.Equal(t, address, got.Entry.Address())
	assert.Equal(t, types.StatusLive, got.Status)
	// One header: the commit, present on the chain and in the shard but
	// deduplicated.
	require.Len(t, got.Headers, 1)
	assert.Equal(t, c.AgentID(), got.Headers[0].Source())
}

func TestAuthorEntry_PrivateEntryStaysOffShard(t *testing.T) {
	c := newOfflineNode(t, nucleus.AcceptAll())
	ctx := context.Background()

	entry := types.NewAppEntry("secret", []byte(`{"text":"mine"}`))
	address, err := AuthorEntry(ctx, c, entry, types.ActionCreate)
	require.NoError(t, err)

	held, err := c.DhtStore.Contains(address)
	require.NoError(t, err)
	assert.False(t, held)

	// Still gettable through the chain.
	got, err := GetEntry(ctx, c, address, GetOptions{})
	require.NoError(t, err)
	assert.True(t, got.Found)
}

func TestAuthorEntry_RejectionLeavesStoresUnchanged(t *testing.T) {
	c := newOfflineNode(t, nucleus.RejectAll("posts are forbidden"))
	ctx := context.Background()

	topBefore := c.State().Agent().TopHeader()

	entry := types.NewAppEntry("post", []byte(`{"text":"rejected"}`))
	_, err := AuthorEntry(ctx, c, entry, types.ActionCreate)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeValidationFailed))

	// Nothing was committed or held.
	assert.Equal(t, topBefore, c.State().Agent().TopHeader())
	held, err := c.DhtStore.Contains(entry.Address())
	require.NoError(t, err)
	assert.False(t, held)

	got, err := GetEntry(ctx, c, entry.Address(), GetOptions{})
	require.NoError(t, err)
	assert.False(t, got.Found)
}

func TestGetEntry_AbsenceIsNotAnError(t *testing.T) {
	c := newOfflineNode(t, nucleus.AcceptAll())

	got, err := GetEntry(context.Background(), c, types.AddressOf([]byte("nowhere")), GetOptions{})
	require.NoError(t, err)
	assert.False(t, got.Found)
}

func TestRemoveEntry_FlipsStatus(t *testing.T) {
	c := newOfflineNode(t, nucleus.AcceptAll())
	ctx := context.Background()

	entry := types.NewAppEntry("post", []byte(`{"text":"doomed"}`))
	address, err := AuthorEntry(ctx, c, entry, types.ActionCreate)
	require.NoError(t, err)

	markerAddress, err := RemoveEntry(ctx, c, address)
	require.NoError(t, err)
	assert.False(t, markerAddress.IsNil())

	// The entry is still content-addressable but reads Deleted.
	got, err := GetEntry(ctx, c, address, GetOptions{})
	require.NoError(t, err)
	require.True(t, got.Found)
	assert.Equal(t, types.StatusDeleted, got.Status)

	// A live-only query no longer sees it.
	got, err = GetEntry(ctx, c, address, GetOptions{StatusFilter: []types.CrudStatus{types.StatusLive}})
	require.NoError(t, err)
	assert.False(t, got.Found)
}

func TestRemoveEntry_MissingAndDoubleRemove(t *testing.T) {
	c := newOfflineNode(t, nucleus.AcceptAll())
	ctx := context.Background()

	_, err := RemoveEntry(ctx, c, types.AddressOf([]byte("nowhere")))
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeNotFound))

	entry := types.NewAppEntry("post", []byte(`{"text":"twice"}`))
	address, err := AuthorEntry(ctx, c, entry, types.ActionCreate)
	require.NoError(t, err)

	_, err = RemoveEntry(ctx, c, address)
	require.NoError(t, err)
	_, err = RemoveEntry(ctx, c, address)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeValidationFailed))
}

func TestLinks_AddAndRemoveThroughAuthoring(t *testing.T) {
	c := newOfflineNode(t, nucleus.AcceptAll())
	ctx := context.Background()

	base, err := AuthorEntry(ctx, c, types.NewAppEntry("post", []byte(`{"text":"base"}`)), types.ActionCreate)
	require.NoError(t, err)
	target, err := AuthorEntry(ctx, c, types.NewAppEntry("post", []byte(`{"text":"target"}`)), types.ActionCreate)
	require.NoError(t, err)

	link := types.Link{Base: base, Target: target, Tag: "comments"}
	_, err = AuthorEntry(ctx, c, types.NewLinkAddEntry(link), types.ActionCreate)
	require.NoError(t, err)

	targets, err := GetLinks(c, base, "comments")
	require.NoError(t, err)
	assert.Equal(t, []types.Address{target}, targets)

	_, err = AuthorEntry(ctx, c, types.NewLinkRemoveEntry(link), types.ActionCreate)
	require.NoError(t, err)

	targets, err = GetLinks(c, base, "comments")
	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestBuildValidationPackage_CarriesSourceChain(t *testing.T) {
	c := newOfflineNode(t, nucleus.AcceptAll())
	ctx := context.Background()

	_, err := AuthorEntry(ctx, c, types.NewAppEntry("post", []byte(`{"n":1}`)), types.ActionCreate)
	require.NoError(t, err)

	entry := types.NewAppEntry("post", []byte(`{"n":2}`))
	header, err := c.NewSignedHeader(entry)
	require.NoError(t, err)

	pkg, err := BuildValidationPackage(c, header)
	require.NoError(t, err)
	assert.Equal(t, header.Address(), pkg.ChainHeader.Address())
	// Genesis pair plus the first post.
	assert.Len(t, pkg.SourceHeaders, 3)
}

func TestFetchValidationPackage_LocalAuthor(t *testing.T) {
	c := newOfflineNode(t, nucleus.AcceptAll())
	ctx := context.Background()

	entry := types.NewAppEntry("post", []byte(`{"text":"mine"}`))
	_, err := AuthorEntry(ctx, c, entry, types.ActionCreate)
	require.NoError(t, err)

	header, found, err := c.State().Agent().MostRecentHeaderForEntry(entry.Address())
	require.NoError(t, err)
	require.True(t, found)

	pkg, err := FetchValidationPackage(ctx, c, header)
	require.NoError(t, err)
	assert.Equal(t, header.Address(), pkg.ChainHeader.Address())
}

func TestFetchValidationPackage_UnreachableAuthor(t *testing.T) {
	c := newOfflineNode(t, nucleus.AcceptAll())
	ctx := context.Background()

	// A header signed by someone we cannot reach: no transport exists.
	other, err := keys.Generate()
	require.NoError(t, err)
	entry := types.NewAppEntry("post", []byte(`{"text":"remote"}`))
	header := types.NewChainHeader(entry, types.NilAddress, 1)
	sig, err := other.Sign(header.SigningBytes())
	require.NoError(t, err)
	header.Provenances = []types.Provenance{{Source: other.AgentAddress(), Signature: sig}}

	_, err = FetchValidationPackage(ctx, c, header)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodePackageUnavailable))
}

func TestHoldEntry_RejectsForgedProvenance(t *testing.T) {
	c := newOfflineNode(t, nucleus.AcceptAll())
	ctx := context.Background()

	// A header claiming to come from this node but signed by someone else.
	forger, err := keys.Generate()
	require.NoError(t, err)
	entry := types.NewAppEntry("post", []byte(`{"text":"forged"}`))
	header := types.NewChainHeader(entry, types.NilAddress, 1)
	sig, err := forger.Sign(header.SigningBytes())
	require.NoError(t, err)
	header.Provenances = []types.Provenance{{Source: c.AgentID(), Signature: sig}}

	err = HoldEntry(ctx, c, types.EntryWithHeader{Entry: entry, Header: header})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeSignatureInvalid))

	held, err := c.DhtStore.Contains(entry.Address())
	require.NoError(t, err)
	assert.False(t, held)
}
