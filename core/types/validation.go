package types

// Lifecycle distinguishes where in an entry's life a validation happens:
// validating one's own about-to-be-committed entry versus validating an
// entry received from the network for holding.
type Lifecycle string

const (
	LifecycleChain Lifecycle = "chain"
	LifecycleDht   Lifecycle = "dht"
	LifecycleMeta  Lifecycle = "meta"
)

// EntryAction is the intent behind the entry under validation.
type EntryAction string

const (
	ActionCreate EntryAction = "create"
	ActionModify EntryAction = "modify"
	ActionDelete EntryAction = "delete"
)

// ValidationPackage is the evidence bundle required to evaluate an entry's
// validation rule: the entry's chain header, optionally accompanied by the
// author's source-chain headers and entries.
type ValidationPackage struct {
	ChainHeader   ChainHeader   `json:"chain_header"`
	SourceHeaders []ChainHeader `json:"source_headers,omitempty"`
	SourceEntries []Entry       `json:"source_entries,omitempty"`
}

// ValidationData is everything handed to the validation predicate.
type ValidationData struct {
	Package   ValidationPackage `json:"package"`
	Lifecycle Lifecycle         `json:"lifecycle"`
	Action    EntryAction       `json:"action"`
}
