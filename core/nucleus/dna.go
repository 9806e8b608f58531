// Package nucleus holds the application side of the core: the DNA manifest
// describing an app's zomes and entry types, and the validator plumbing that
// decides whether entries may be committed or held.
package nucleus

import (
	"encoding/json"
	"os"

	"github.com/samrose/conductor/core/types"
)

// EntryTypeDef declares an application entry type.
type EntryTypeDef struct {
	Description string `json:"description,omitempty"`
	// Sharing is "public" for entries published to the DHT, "private" for
	// chain-only entries.
	Sharing string `json:"sharing"`
}

// Zome is one named unit of application logic: entry type declarations plus
// the bytecode module implementing their validation rules.
type Zome struct {
	Description string                  `json:"description,omitempty"`
	EntryTypes  map[string]EntryTypeDef `json:"entry_types"`
	Code        []byte                  `json:"code,omitempty"`
}

// DNA is the application manifest. It is itself content-addressed and is
// committed as the first entry of every agent chain running it.
type DNA struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	UUID        string          `json:"uuid"`
	Zomes       map[string]Zome `json:"zomes"`
}

// Entry wraps the manifest as a DNA entry.
func (d *DNA) Entry() types.Entry {
	value, err := json.Marshal(d)
	if err != nil {
		panic(err)
	}
	return types.Entry{Type: types.EntryTypeDna, Value: value}
}

// Address is the content address of the manifest entry.
func (d *DNA) Address() types.Address {
	return d.Entry().Address()
}

// ZomeForEntryType finds the zome declaring the given application entry type.
func (d *DNA) ZomeForEntryType(entryType types.EntryType) (string, *Zome, bool) {
	for name, zome := range d.Zomes {
		if _, ok := zome.EntryTypes[string(entryType)]; ok {
			z := zome
			return name, &z, true
		}
	}
	return "", nil, false
}

// IsPublic reports whether the entry type is published to the DHT. System
// types other than private markers are public.
func (d *DNA) IsPublic(entryType types.EntryType) bool {
	if entryType.IsSystem() {
		return true
	}
	_, zome, ok := d.ZomeForEntryType(entryType)
	if !ok {
		return false
	}
	return zome.EntryTypes[string(entryType)].Sharing != "private"
}

// DNAFromEntry restores a manifest from its DNA entry.
func DNAFromEntry(entry types.Entry) (*DNA, error) {
	if entry.Type != types.EntryTypeDna {
		return nil, types.NewError(types.ErrCodeSerialization, "entry is not a DNA manifest")
	}
	var dna DNA
	if err := json.Unmarshal(entry.Value, &dna); err != nil {
		return nil, types.WrapError(types.ErrCodeSerialization, "malformed DNA manifest", err)
	}
	return &dna, nil
}

// LoadDNA reads a manifest from a JSON file.
func LoadDNA(path string) (*DNA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var dna DNA
	if err := json.Unmarshal(data, &dna); err != nil {
		return nil, types.WrapError(types.ErrCodeSerialization, "parsing DNA file", err)
	}
	return &dna, nil
}
