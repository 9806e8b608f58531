// Package state implements the immutable, reducer-driven state container.
// A State is a versioned aggregate of four independently owned slices; it is
// advanced only through the pure Reduce function and shared read-only between
// any number of readers.
package state

import (
	"github.com/samrose/conductor/core/chain"
	"github.com/samrose/conductor/core/dht"
	"github.com/samrose/conductor/core/nucleus"
	"github.com/samrose/conductor/core/types"
	"github.com/samrose/conductor/core/utils"
)

// State is one immutable snapshot. It is never mutated in place: Reduce
// returns a replacement snapshot and old ones are dropped once no reader
// holds them.
type State struct {
	nucleus *NucleusState
	agent   *AgentState
	dht     *DhtState
	network *NetworkState

	// history records applied action identities for at-most-once dispatch.
	history map[string]struct{}

	logger *utils.Logger
}

// NewState assembles the initial snapshot over the node's stores.
func NewState(chainStore *chain.Store, dhtStore *dht.Store, agentID types.Address, logger *utils.Logger) *State {
	if logger == nil {
		logger = utils.DefaultLogger("state")
	}
	return &State{
		nucleus: NewNucleusState(),
		agent:   NewAgentState(chainStore, agentID, types.NilAddress),
		dht:     NewDhtState(dhtStore),
		network: NewNetworkState(),
		history: make(map[string]struct{}),
		logger:  logger,
	}
}

// NewStateFromTop rebuilds a snapshot from a persisted chain. The chain is
// replayed from the given top header: the newest DNA entry restores the
// nucleus slice and the agent slice resumes at the top. An unknown top header
// is a store error.
func NewStateFromTop(chainStore *chain.Store, dhtStore *dht.Store, agentID, top types.Address, logger *utils.Logger) (*State, error) {
	s := NewState(chainStore, dhtStore, agentID, logger)
	if !top.Valid() {
		return s, nil
	}

	if _, found, err := chainStore.Header(top); err != nil {
		return nil, err
	} else if !found {
		return nil, types.NewError(types.ErrCodeStore, "top header not in chain store")
	}

	dnaHeaders, err := chainStore.WalkType(top, types.EntryTypeDna)
	if err != nil {
		return nil, err
	}
	if len(dnaHeaders) > 0 {
		entry, found, err := chainStore.Entry(dnaHeaders[0].EntryAddress)
		if err != nil {
			return nil, err
		}
		if found {
			dna, err := nucleus.DNAFromEntry(entry)
			if err != nil {
				return nil, err
			}
			s.nucleus = &NucleusState{dna: dna}
		}
	}

	s.agent = NewAgentState(chainStore, agentID, top)
	return s, nil
}

func (s *State) Nucleus() *NucleusState { return s.nucleus }
func (s *State) Agent() *AgentState     { return s.agent }
func (s *State) Dht() *DhtState         { return s.dht }
func (s *State) Network() *NetworkState { return s.network }

// HasAction reports whether the action identity was already applied.
func (s *State) HasAction(id string) bool {
	_, ok := s.history[id]
	return ok
}

// Reduce produces the successor snapshot: each slice is reduced
// independently against the same action, then the action's identity is
// recorded. Re-dispatching a recorded identity is a no-op so retried
// deliveries stay idempotent.
func (s *State) Reduce(aw ActionWrapper) *State {
	if s.HasAction(aw.ID) {
		return s
	}

	history := make(map[string]struct{}, len(s.history)+1)
	for id := range s.history {
		history[id] = struct{}{}
	}
	history[aw.ID] = struct{}{}

	return &State{
		nucleus: reduceNucleus(s.nucleus, aw, s.logger),
		agent:   reduceAgent(s.agent, aw, s.logger),
		dht:     reduceDht(s.dht, aw, s.logger),
		network: reduceNetwork(s.network, aw, s.logger),
		history: history,
		logger:  s.logger,
	}
}

// GetHeaders answers "all headers for entry X" by merging the two provenance
// sources: local chain headers first, then DHT-held headers not already
// present, deduplicated by header address.
func (s *State) GetHeaders(entryAddress types.Address) ([]types.ChainHeader, error) {
	local, err := s.agent.HeadersForEntry(entryAddress)
	if err != nil {
		return nil, err
	}

	seen := make(map[types.Address]bool, len(local))
	for _, h := range local {
		seen[h.Address()] = true
	}

	held, err := s.dht.headersForEntry(entryAddress)
	if err != nil {
		return nil, err
	}

	all := local
	for _, h := range held {
		if addr := h.Address(); !seen[addr] {
			seen[addr] = true
			all = append(all, h)
		}
	}
	return all, nil
}
