package state

import (
	"github.com/samrose/conductor/core/chain"
	"github.com/samrose/conductor/core/types"
	"github.com/samrose/conductor/core/utils"
)

// AgentState is the chain slice: the agent's identity and the top of its
// local hash chain. The chain content lives in the shared chain CAS; the
// slice value itself is immutable and replaced on every commit.
type AgentState struct {
	chain   *chain.Store
	agentID types.Address
	top     types.Address
}

// NewAgentState creates the slice for a fresh or replayed chain.
func NewAgentState(chainStore *chain.Store, agentID, top types.Address) *AgentState {
	return &AgentState{chain: chainStore, agentID: agentID, top: top}
}

// Chain exposes the chain store.
func (s *AgentState) Chain() *chain.Store {
	return s.chain
}

// AgentID is the agent's address.
func (s *AgentState) AgentID() types.Address {
	return s.agentID
}

// TopHeader is the address of the newest chain header, nil for an empty
// chain.
func (s *AgentState) TopHeader() types.Address {
	return s.top
}

// HeadersForEntry returns the chain's headers for an entry, newest first.
func (s *AgentState) HeadersForEntry(entryAddress types.Address) ([]types.ChainHeader, error) {
	return s.chain.HeadersForEntry(s.top, entryAddress)
}

// MostRecentHeaderForEntry returns the newest chain header for an entry.
func (s *AgentState) MostRecentHeaderForEntry(entryAddress types.Address) (types.ChainHeader, bool, error) {
	headers, err := s.HeadersForEntry(entryAddress)
	if err != nil || len(headers) == 0 {
		return types.ChainHeader{}, false, err
	}
	return headers[0], true, nil
}

// Entry fetches an entry from the chain CAS.
func (s *AgentState) Entry(address types.Address) (types.Entry, bool, error) {
	return s.chain.Entry(address)
}

func reduceAgent(s *AgentState, aw ActionWrapper, logger *utils.Logger) *AgentState {
	if aw.Action.Kind != ActionCommitEntry {
		return s
	}
	ewh := aw.Action.EntryWithHeader

	if _, err := s.chain.AddEntry(ewh.Entry); err != nil {
		logger.Error("commit: storing entry failed", utils.Err(err))
		return s
	}
	headerAddress, err := s.chain.AddHeader(ewh.Header)
	if err != nil {
		logger.Error("commit: storing header failed", utils.Err(err))
		return s
	}
	return &AgentState{chain: s.chain, agentID: s.agentID, top: headerAddress}
}
