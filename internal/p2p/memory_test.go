package p2p

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samrose/conductor/core/protocol"
	"github.com/samrose/conductor/core/types"
)

func TestMemoryNetwork_SendAndRespond(t *testing.T) {
	hub := NewMemoryNetwork()
	alice := hub.Join("alice")
	bob := hub.Join("bob")

	bob.SetHandler(func(_ context.Context, msg protocol.Message) (*protocol.Message, error) {
		require.Equal(t, protocol.KindGetEntry, msg.Kind)
		return &protocol.Message{
			Kind:        protocol.KindGetEntryResult,
			GetEntryRes: &protocol.GetEntryResult{Found: false},
		}, nil
	})

	resp, err := alice.Send(context.Background(), "bob", protocol.Message{
		Kind:        protocol.KindGetEntry,
		GetEntryReq: &protocol.GetEntryRequest{Address: types.AddressOf([]byte("x"))},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, protocol.KindGetEntryResult, resp.Kind)
}

func TestMemoryNetwork_UnknownPeer(t *testing.T) {
	hub := NewMemoryNetwork()
	alice := hub.Join("alice")

	_, err := alice.Send(context.Background(), "nobody", protocol.Message{Kind: protocol.KindGetEntry})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodePeerUnreachable))
}

func TestMemoryNetwork_BroadcastSkipsSenderAndClosed(t *testing.T) {
	hub := NewMemoryNetwork()
	alice := hub.Join("alice")
	bob := hub.Join("bob")
	carol := hub.Join("carol")

	var aliceGot, bobGot, carolGot int
	alice.SetHandler(func(context.Context, protocol.Message) (*protocol.Message, error) {
		aliceGot++
		return nil, nil
	})
	bob.SetHandler(func(context.Context, protocol.Message) (*protocol.Message, error) {
		bobGot++
		return nil, nil
	})
	carol.SetHandler(func(context.Context, protocol.Message) (*protocol.Message, error) {
		carolGot++
		return nil, nil
	})
	require.NoError(t, carol.Close())

	require.NoError(t, alice.Broadcast(context.Background(), protocol.Message{Kind: protocol.KindTrackDna}))
	assert.Equal(t, 0, aliceGot)
	assert.Equal(t, 1, bobGot)
	assert.Equal(t, 0, carolGot)
}

func TestMemoryNetwork_DeliveryRoundTripsThroughJSON(t *testing.T) {
	hub := NewMemoryNetwork()
	alice := hub.Join("alice")
	bob := hub.Join("bob")

	entry := types.NewAppEntry("post", []byte(`{"text":"wire"}`))
	header := types.NewChainHeader(entry, types.NilAddress, 1)

	bob.SetHandler(func(_ context.Context, msg protocol.Message) (*protocol.Message, error) {
		require.NotNil(t, msg.Entry)
		// The address survives serialization, so content was not mangled.
		assert.Equal(t, entry.Address(), msg.Entry.Entry.Entry.Address())
		assert.Equal(t, header.Address(), msg.Entry.Entry.Header.Address())
		return nil, nil
	})

	_, err := alice.Send(context.Background(), "bob", protocol.Message{
		Kind:  protocol.KindStoreEntry,
		Entry: &protocol.EntryData{Entry: types.EntryWithHeader{Entry: entry, Header: header}},
	})
	require.NoError(t, err)
}
