package zomeapi

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samrose/conductor/core/cas"
	"github.com/samrose/conductor/core/chain"
	"github.com/samrose/conductor/core/dht"
	"github.com/samrose/conductor/core/instance"
	"github.com/samrose/conductor/core/nucleus"
	"github.com/samrose/conductor/core/ribosome"
	"github.com/samrose/conductor/core/types"
	"github.com/samrose/conductor/core/workflows"
	"github.com/samrose/conductor/internal/keys"
)

func testDNA() *nucleus.DNA {
	return &nucleus.DNA{
		Name: "test-app",
		UUID: "00000000-0000-0000-0000-000000000000",
		Zomes: map[string]nucleus.Zome{
			"main": {EntryTypes: map[string]nucleus.EntryTypeDef{
				"post": {Sharing: "public"},
			}},
		},
	}
}

type apiHarness struct {
	c       *instance.Context
	table   *ribosome.Table
	runtime *ribosome.Runtime
}

// newHarness drives the host-function table exactly as a sandboxed module
// would, but against an in-process buffer memory.
func newHarness(t *testing.T) *apiHarness {
	t.Helper()
	kp, err := keys.Generate()
	require.NoError(t, err)
	c := instance.NewContext(kp,
		chain.NewStore(cas.NewMemoryContentStore()),
		dht.NewStore(cas.NewMemoryContentStore(), cas.NewMemoryEaviStore()),
		nucleus.AcceptAll(), testDNA(), nil)
	t.Cleanup(c.Shutdown)
	require.NoError(t, workflows.Initialize(context.Background(), c, nil))

	return &apiHarness{
		c:     c,
		table: NewTable(c),
		runtime: ribosome.NewRuntime(ribosome.NewBufferMemory(1), 0, ribosome.CallData{
			DnaName:  "test-app",
			Zome:     "main",
			Function: "test",
		}, nil),
	}
}

// call invokes a host function with JSON args and decodes the APIResult.
func (h *apiHarness) call(t *testing.T, fn ribosome.FnIndex, args interface{}) ribosome.APIResult {
	t.Helper()
	encoded := h.runtime.Store(args)
	_, isAlloc := encoded.Allocation()
	require.True(t, isAlloc)

	out, err := h.table.Invoke(h.runtime, uint32(fn), encoded)
	require.NoError(t, err)

	payload, err := h.runtime.ReadArg(out)
	require.NoError(t, err)
	var result ribosome.APIResult
	require.NoError(t, json.Unmarshal(payload, &result))
	return result
}

func TestAPI_CommitThenGet(t *testing.T) {
	h := newHarness(t)

	entry := types.NewAppEntry("post", []byte(`{"text":"from the sandbox"}`))
	commit := h.call(t, ribosome.FnCommitEntry, CommitArgs{Entry: entry})
	require.True(t, commit.OK, commit.Error)

	var address types.Address
	require.NoError(t, json.Unmarshal(commit.Value, &address))
	assert.Equal(t, entry.Address(), address)

	get := h.call(t, ribosome.FnGetEntry, GetArgs{Address: address})
	require.True(t, get.OK, get.Error)

	var reply GetReply
	require.NoError(t, json.Unmarshal(get.Value, &reply))
	require.True(t, reply.Found)
	assert.Equal(t, types.StatusLive, reply.Status)
	assert.Equal(t, address, reply.Entry.Address())
}

func TestAPI_GetAbsentEntry(t *testing.T) {
	h := newHarness(t)

	get := h.call(t, ribosome.FnGetEntry, GetArgs{Address: types.AddressOf([]byte("nope"))})
	require.True(t, get.OK, get.Error)

	var reply GetReply
	require.NoError(t, json.Unmarshal(get.Value, &reply))
	assert.False(t, reply.Found)
}

func TestAPI_RemoveEntry(t *testing.T) {
	h := newHarness(t)

	entry := types.NewAppEntry("post", []byte(`{"text":"short lived"}`))
	commit := h.call(t, ribosome.FnCommitEntry, CommitArgs{Entry: entry})
	require.True(t, commit.OK, commit.Error)

	remove := h.call(t, ribosome.FnRemoveEntry, RemoveArgs{Address: entry.Address()})
	require.True(t, remove.OK, remove.Error)

	get := h.call(t, ribosome.FnGetEntry, GetArgs{Address: entry.Address()})
	var reply GetReply
	require.NoError(t, json.Unmarshal(get.Value, &reply))
	require.True(t, reply.Found)
	assert.Equal(t, types.StatusDeleted, reply.Status)

	// Removing again is reported inside the envelope, not as a trap.
	again := h.call(t, ribosome.FnRemoveEntry, RemoveArgs{Address: entry.Address()})
	assert.False(t, again.OK)
	assert.NotEmpty(t, again.Error)
}

func TestAPI_LinkLifecycle(t *testing.T) {
	h := newHarness(t)

	base := types.NewAppEntry("post", []byte(`{"text":"base"}`))
	target := types.NewAppEntry("post", []byte(`{"text":"target"}`))
	require.True(t, h.call(t, ribosome.FnCommitEntry, CommitArgs{Entry: base}).OK)
	require.True(t, h.call(t, ribosome.FnCommitEntry, CommitArgs{Entry: target}).OK)

	args := LinkArgs{Base: base.Address(), Target: target.Address(), Tag: "comments"}
	require.True(t, h.call(t, ribosome.FnLinkEntries, args).OK)

	links := h.call(t, ribosome.FnGetLinks, GetLinksArgs{Base: base.Address(), Tag: "comments"})
	require.True(t, links.OK, links.Error)
	var reply GetLinksReply
	require.NoError(t, json.Unmarshal(links.Value, &reply))
	assert.Equal(t, []types.Address{target.Address()}, reply.Addresses)

	require.True(t, h.call(t, ribosome.FnRemoveLink, args).OK)

	links = h.call(t, ribosome.FnGetLinks, GetLinksArgs{Base: base.Address(), Tag: "comments"})
	require.NoError(t, json.Unmarshal(links.Value, &reply))
	assert.Empty(t, reply.Addresses)
}

func TestAPI_SignAndVerify(t *testing.T) {
	h := newHarness(t)

	sign := h.call(t, ribosome.FnSign, SignArgs{Payload: "attest this"})
	require.True(t, sign.OK, sign.Error)
	var sig string
	require.NoError(t, json.Unmarshal(sign.Value, &sig))

	verify := h.call(t, ribosome.FnVerifySignature, VerifyArgs{
		Source:    h.c.AgentID(),
		Payload:   "attest this",
		Signature: sig,
	})
	require.True(t, verify.OK, verify.Error)
	var ok bool
	require.NoError(t, json.Unmarshal(verify.Value, &ok))
	assert.True(t, ok)

	verify = h.call(t, ribosome.FnVerifySignature, VerifyArgs{
		Source:    h.c.AgentID(),
		Payload:   "something else",
		Signature: sig,
	})
	require.NoError(t, json.Unmarshal(verify.Value, &ok))
	assert.False(t, ok)
}

func TestAPI_MalformedArgsAreEncodedFailures(t *testing.T) {
	h := newHarness(t)

	// A failure code in argument position must not reach the workflow layer.
	_, err := h.table.Invoke(h.runtime, uint32(ribosome.FnCommitEntry),
		ribosome.EncodeFailure(ribosome.FailureUnspecified))
	require.Error(t, err)

	// Undecodable JSON comes back as an encoded failure, not a trap.
	alloc, err := h.runtime.Allocator.Write([]byte("not json"))
	require.NoError(t, err)
	encoded, err := ribosome.EncodeAllocation(alloc)
	require.NoError(t, err)
	out, invokeErr := h.table.Invoke(h.runtime, uint32(ribosome.FnCommitEntry), encoded)
	require.NoError(t, invokeErr)
	code, isFailure := out.Failure()
	require.True(t, isFailure)
	assert.Equal(t, ribosome.FailureArgumentDeserialization, code)
}
