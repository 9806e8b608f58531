// Package protocol defines the peer protocol messages exchanged between
// nodes and the transport capability the core consumes. The wire format is
// JSON; transports only move opaque frames.
package protocol

import (
	"context"
	"encoding/json"

	"github.com/samrose/conductor/core/types"
)

// MessageKind discriminates peer protocol messages.
type MessageKind string

const (
	// KindStoreEntry asks the receiver to validate and hold an entry.
	KindStoreEntry MessageKind = "store_entry"
	// KindStoreMeta carries metadata (links, CRUD markers) for an entry.
	KindStoreMeta MessageKind = "store_meta"
	// KindTrackDna announces that an agent serves a DNA.
	KindTrackDna MessageKind = "track_dna"
	// KindGetValidationPackage requests the evidence bundle for a header
	// from its author.
	KindGetValidationPackage MessageKind = "get_validation_package"
	// KindValidationPackageResult answers KindGetValidationPackage.
	KindValidationPackageResult MessageKind = "validation_package_result"
	// KindGetEntry requests an entry and its metadata from a holder.
	KindGetEntry MessageKind = "get_entry"
	// KindGetEntryResult answers KindGetEntry.
	KindGetEntryResult MessageKind = "get_entry_result"
)

// EntryData is the payload of KindStoreEntry.
type EntryData struct {
	Entry types.EntryWithHeader `json:"entry"`
}

// MetaData is the payload of KindStoreMeta. ContentList items are
// attribute-dependent: EntryWithHeader JSON for link attributes, bare status
// strings for CRUD attributes.
type MetaData struct {
	EntryAddress types.Address     `json:"entry_address"`
	Attribute    string            `json:"attribute"`
	ContentList  []json.RawMessage `json:"content_list"`
}

// TrackDnaData is the payload of KindTrackDna.
type TrackDnaData struct {
	DnaAddress types.Address `json:"dna_address"`
	AgentID    types.Address `json:"agent_id"`
}

// PackageRequest is the payload of KindGetValidationPackage.
type PackageRequest struct {
	Header types.ChainHeader `json:"header"`
}

// PackageResult is the payload of KindValidationPackageResult. A nil package
// means the author could not produce one.
type PackageResult struct {
	Package *types.ValidationPackage `json:"package,omitempty"`
}

// GetEntryRequest is the payload of KindGetEntry.
type GetEntryRequest struct {
	Address types.Address `json:"address"`
}

// GetEntryResult is the payload of KindGetEntryResult.
type GetEntryResult struct {
	Found   bool                `json:"found"`
	Entry   *types.Entry        `json:"entry,omitempty"`
	Status  types.CrudStatus    `json:"status,omitempty"`
	Headers []types.ChainHeader `json:"headers,omitempty"`
}

// Message is the envelope every peer exchange uses. Exactly one payload field
// is set, matching Kind.
type Message struct {
	Kind       MessageKind   `json:"kind"`
	DnaAddress types.Address `json:"dna_address,omitempty"`
	From       types.Address `json:"from,omitempty"`

	Entry       *EntryData       `json:"entry_data,omitempty"`
	Meta        *MetaData        `json:"meta_data,omitempty"`
	Track       *TrackDnaData    `json:"track_data,omitempty"`
	PackageReq  *PackageRequest  `json:"package_request,omitempty"`
	PackageRes  *PackageResult   `json:"package_result,omitempty"`
	GetEntryReq *GetEntryRequest `json:"get_entry_request,omitempty"`
	GetEntryRes *GetEntryResult  `json:"get_entry_result,omitempty"`
}

// Handler processes one inbound message and may return a response message
// for request/response kinds.
type Handler func(ctx context.Context, msg Message) (*Message, error)

// Transport is the network capability the core consumes. Implementations own
// dialing, discovery and wire framing; the core only addresses agents.
type Transport interface {
	// Send delivers a message to the agent and returns its response, if the
	// message kind has one.
	Send(ctx context.Context, to types.Address, msg Message) (*Message, error)
	// Broadcast delivers a message to every reachable agent tracking the DNA.
	Broadcast(ctx context.Context, msg Message) error
	// SetHandler installs the inbound message handler.
	SetHandler(handler Handler)
	// Close releases transport resources.
	Close() error
}
