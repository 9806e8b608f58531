package state

import (
	"github.com/google/uuid"

	"github.com/samrose/conductor/core/nucleus"
	"github.com/samrose/conductor/core/protocol"
	"github.com/samrose/conductor/core/types"
)

// ActionKind discriminates the closed set of state transitions.
type ActionKind string

const (
	ActionCommitEntry       ActionKind = "commit_entry"
	ActionHoldEntry         ActionKind = "hold_entry"
	ActionAddLink           ActionKind = "add_link"
	ActionRemoveLink        ActionKind = "remove_link"
	ActionUpdateCrudStatus  ActionKind = "update_crud_status"
	ActionAddHeaderForEntry ActionKind = "add_header_for_entry"
	ActionInitNetwork       ActionKind = "init_network"
	ActionInitApplication   ActionKind = "init_application"
)

// StatusUpdate is the payload of ActionUpdateCrudStatus.
type StatusUpdate struct {
	Address types.Address
	Status  types.CrudStatus
	// Source is the address of the entry that caused the transition, e.g.
	// the deletion marker.
	Source types.Address
}

// NetworkInit is the payload of ActionInitNetwork.
type NetworkInit struct {
	Transport  protocol.Transport
	DnaAddress types.Address
	AgentID    types.Address
}

// Action describes an intended state transition. Exactly one payload field
// is set, matching Kind.
type Action struct {
	Kind ActionKind

	EntryWithHeader *types.EntryWithHeader
	Link            *types.Link
	LinkSource      types.Address
	Status          *StatusUpdate
	Network         *NetworkInit
	Dna             *nucleus.DNA
}

// ActionWrapper pairs an action with the identity used for history tracking
// and at-most-once bookkeeping.
type ActionWrapper struct {
	ID     string
	Action Action
}

// Wrap assigns a fresh identity to an action.
func Wrap(action Action) ActionWrapper {
	return ActionWrapper{ID: uuid.NewString(), Action: action}
}

// Convenience constructors for the common actions.

func CommitEntry(ewh types.EntryWithHeader) ActionWrapper {
	return Wrap(Action{Kind: ActionCommitEntry, EntryWithHeader: &ewh})
}

func HoldEntry(ewh types.EntryWithHeader) ActionWrapper {
	return Wrap(Action{Kind: ActionHoldEntry, EntryWithHeader: &ewh})
}

func AddLink(link types.Link, source types.Address) ActionWrapper {
	return Wrap(Action{Kind: ActionAddLink, Link: &link, LinkSource: source})
}

func RemoveLink(link types.Link, source types.Address) ActionWrapper {
	return Wrap(Action{Kind: ActionRemoveLink, Link: &link, LinkSource: source})
}

func UpdateCrudStatus(address types.Address, status types.CrudStatus, source types.Address) ActionWrapper {
	return Wrap(Action{Kind: ActionUpdateCrudStatus, Status: &StatusUpdate{
		Address: address, Status: status, Source: source,
	}})
}

func AddHeaderForEntry(ewh types.EntryWithHeader) ActionWrapper {
	return Wrap(Action{Kind: ActionAddHeaderForEntry, EntryWithHeader: &ewh})
}

func InitNetwork(transport protocol.Transport, dnaAddress, agentID types.Address) ActionWrapper {
	return Wrap(Action{Kind: ActionInitNetwork, Network: &NetworkInit{
		Transport: transport, DnaAddress: dnaAddress, AgentID: agentID,
	}})
}

func InitApplication(dna *nucleus.DNA) ActionWrapper {
	return Wrap(Action{Kind: ActionInitApplication, Dna: dna})
}
