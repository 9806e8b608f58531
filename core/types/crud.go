package types

// CrudStatus is the lifecycle tag of a held entry. It lives in EAV metadata,
// never inside the entry itself: updates and deletions are modeled as new
// entries plus a derived status row.
type CrudStatus string

const (
	StatusLive     CrudStatus = "live"
	StatusModified CrudStatus = "modified"
	StatusDeleted  CrudStatus = "deleted"
)

// EAV attribute tags used by the DHT metadata store and the peer protocol.
const (
	AttrCrudStatus  = "crud-status"
	AttrCrudLink    = "crud-link"
	AttrEntryHeader = "entry-header"
	AttrLink        = "link"
	AttrLinkRemove  = "link_remove"
)
