package types

import (
	"encoding/json"
	"strings"
)

// EntryType discriminates entry variants. System types carry a "%" prefix,
// application types are the type names declared by the app manifest.
type EntryType string

const (
	EntryTypeDna        EntryType = "%dna"
	EntryTypeAgentID    EntryType = "%agent_id"
	EntryTypeDeletion   EntryType = "%deletion"
	EntryTypeLinkAdd    EntryType = "%link_add"
	EntryTypeLinkRemove EntryType = "%link_remove"
)

// IsSystem reports whether the type is reserved by the runtime.
func (t EntryType) IsSystem() bool {
	return strings.HasPrefix(string(t), "%")
}

// Entry is an immutable content-addressed unit of application data.
// The Value payload is canonical JSON; the entry's address is the hash of
// the entry's own canonical serialization.
type Entry struct {
	Type  EntryType       `json:"type"`
	Value json.RawMessage `json:"value"`
}

// NewAppEntry creates an application entry. Non-JSON values are wrapped as a
// JSON string so that every entry has a canonical serialization.
func NewAppEntry(entryType string, value []byte) Entry {
	if !json.Valid(value) {
		quoted, _ := json.Marshal(string(value))
		value = quoted
	}
	return Entry{Type: EntryType(entryType), Value: json.RawMessage(value)}
}

// DeletionValue is the payload of a deletion marker entry.
type DeletionValue struct {
	DeletedEntryAddress Address `json:"deleted_entry_address"`
}

// NewDeletionEntry creates a deletion marker referencing the entry to delete.
func NewDeletionEntry(deleted Address) Entry {
	value, _ := json.Marshal(DeletionValue{DeletedEntryAddress: deleted})
	return Entry{Type: EntryTypeDeletion, Value: value}
}

// NewLinkAddEntry creates a link-add entry.
func NewLinkAddEntry(link Link) Entry {
	value, _ := json.Marshal(link)
	return Entry{Type: EntryTypeLinkAdd, Value: value}
}

// NewLinkRemoveEntry creates a link-remove entry.
func NewLinkRemoveEntry(link Link) Entry {
	value, _ := json.Marshal(link)
	return Entry{Type: EntryTypeLinkRemove, Value: value}
}

// Content returns the canonical serialization of the entry.
func (e Entry) Content() []byte {
	content, err := json.Marshal(e)
	if err != nil {
		// Value is validated at construction, marshal cannot fail.
		panic(err)
	}
	return content
}

// Address returns the content address of the entry.
func (e Entry) Address() Address {
	return AddressOf(e.Content())
}

// DeletedAddress extracts the target of a deletion marker.
func (e Entry) DeletedAddress() (Address, error) {
	if e.Type != EntryTypeDeletion {
		return NilAddress, NewError(ErrCodeSerialization, "entry is not a deletion marker")
	}
	var value DeletionValue
	if err := json.Unmarshal(e.Value, &value); err != nil {
		return NilAddress, WrapError(ErrCodeSerialization, "malformed deletion entry", err)
	}
	return value.DeletedEntryAddress, nil
}

// AsLink extracts the link payload of a link-add or link-remove entry.
func (e Entry) AsLink() (Link, error) {
	if e.Type != EntryTypeLinkAdd && e.Type != EntryTypeLinkRemove {
		return Link{}, NewError(ErrCodeSerialization, "entry is not a link entry")
	}
	var link Link
	if err := json.Unmarshal(e.Value, &link); err != nil {
		return Link{}, WrapError(ErrCodeSerialization, "malformed link entry", err)
	}
	return link, nil
}

// EntryFromContent deserializes an entry from its canonical serialization.
func EntryFromContent(content []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(content, &e); err != nil {
		return Entry{}, WrapError(ErrCodeSerialization, "malformed entry content", err)
	}
	return e, nil
}
