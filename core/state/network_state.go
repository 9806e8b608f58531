package state

import (
	"context"
	"time"

	"github.com/samrose/conductor/core/protocol"
	"github.com/samrose/conductor/core/types"
	"github.com/samrose/conductor/core/utils"
)

const trackDnaTimeout = 5 * time.Second

// NetworkState is the network slice: the transport capability plus the
// (dna, agent) pair the node announced on it.
type NetworkState struct {
	transport  protocol.Transport
	dnaAddress types.Address
	agentID    types.Address
}

// NewNetworkState creates the uninitialized slice.
func NewNetworkState() *NetworkState {
	return &NetworkState{}
}

// Transport is nil until the network is initialized.
func (s *NetworkState) Transport() protocol.Transport {
	return s.transport
}

// DnaAddress is the DNA this node tracks.
func (s *NetworkState) DnaAddress() types.Address {
	return s.dnaAddress
}

// AgentID is the agent announced on the network.
func (s *NetworkState) AgentID() types.Address {
	return s.agentID
}

// Initialized reports whether the network slice carries a live transport.
func (s *NetworkState) Initialized() bool {
	return s.transport != nil
}

func reduceNetwork(s *NetworkState, aw ActionWrapper, logger *utils.Logger) *NetworkState {
	if aw.Action.Kind != ActionInitNetwork {
		return s
	}
	settings := aw.Action.Network

	ctx, cancel := context.WithTimeout(context.Background(), trackDnaTimeout)
	defer cancel()

	err := settings.Transport.Broadcast(ctx, protocol.Message{
		Kind:       protocol.KindTrackDna,
		DnaAddress: settings.DnaAddress,
		From:       settings.AgentID,
		Track: &protocol.TrackDnaData{
			DnaAddress: settings.DnaAddress,
			AgentID:    settings.AgentID,
		},
	})
	if err != nil {
		logger.Warn("track dna announcement failed", utils.Err(err))
	}

	return &NetworkState{
		transport:  settings.Transport,
		dnaAddress: settings.DnaAddress,
		agentID:    settings.AgentID,
	}
}
