package types

import (
	"encoding/json"
	"fmt"
)

// Provenance records who authored an entry and the signature proving it.
type Provenance struct {
	Source    Address `json:"source"`
	Signature string  `json:"signature"`
}

// ChainHeader links an entry into its author's local hash chain. Headers form
// a strictly ordered, tamper-evident singly linked list per agent: each header
// points at the previous one by address, and its signature must verify against
// the author's declared identity.
type ChainHeader struct {
	EntryType    EntryType    `json:"entry_type"`
	EntryAddress Address      `json:"entry_address"`
	Provenances  []Provenance `json:"provenances"`
	LastHeader   Address      `json:"last_header,omitempty"`
	Timestamp    int64        `json:"timestamp"`
}

// NewChainHeader assembles an unsigned header; the caller signs SigningBytes
// and attaches the provenance.
func NewChainHeader(entry Entry, lastHeader Address, timestamp int64) ChainHeader {
	return ChainHeader{
		EntryType:    entry.Type,
		EntryAddress: entry.Address(),
		LastHeader:   lastHeader,
		Timestamp:    timestamp,
	}
}

// SigningBytes is the byte string covered by a header signature. Provenances
// are excluded so the signature does not cover itself.
func (h ChainHeader) SigningBytes() []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:%d", h.EntryType, h.EntryAddress, h.LastHeader, h.Timestamp))
}

// Content returns the canonical serialization of the header.
func (h ChainHeader) Content() []byte {
	content, err := json.Marshal(h)
	if err != nil {
		panic(err)
	}
	return content
}

// Address returns the content address of the header.
func (h ChainHeader) Address() Address {
	return AddressOf(h.Content())
}

// Source returns the address of the first (primary) author.
func (h ChainHeader) Source() Address {
	if len(h.Provenances) == 0 {
		return NilAddress
	}
	return h.Provenances[0].Source
}

// HeaderFromContent deserializes a header from its canonical serialization.
func HeaderFromContent(content []byte) (ChainHeader, error) {
	var h ChainHeader
	if err := json.Unmarshal(content, &h); err != nil {
		return ChainHeader{}, WrapError(ErrCodeSerialization, "malformed header content", err)
	}
	return h, nil
}

// EntryWithHeader pairs an entry with its chain header so provenance travels
// with content across the node boundary.
type EntryWithHeader struct {
	Entry  Entry       `json:"entry"`
	Header ChainHeader `json:"header"`
}
