package state

import (
	"github.com/samrose/conductor/core/dht"
	"github.com/samrose/conductor/core/types"
	"github.com/samrose/conductor/core/utils"
)

// DhtState is the shard slice. The shard content lives in the shared DHT
// store; the slice value is replaced whenever a shard action applies.
type DhtState struct {
	store *dht.Store
}

// NewDhtState creates the slice over a shard store.
func NewDhtState(store *dht.Store) *DhtState {
	return &DhtState{store: store}
}

// Store exposes the shard store for queries.
func (s *DhtState) Store() *dht.Store {
	return s.store
}

func reduceDht(s *DhtState, aw ActionWrapper, logger *utils.Logger) *DhtState {
	var err error
	switch aw.Action.Kind {
	case ActionHoldEntry:
		err = s.store.HoldEntryWithHeader(*aw.Action.EntryWithHeader)
	case ActionAddLink:
		err = s.store.AddLink(*aw.Action.Link, aw.Action.LinkSource)
	case ActionRemoveLink:
		err = s.store.RemoveLink(*aw.Action.Link, aw.Action.LinkSource)
	case ActionUpdateCrudStatus:
		update := aw.Action.Status
		err = s.store.SetCrudStatus(update.Address, update.Status, update.Source)
	case ActionAddHeaderForEntry:
		ewh := aw.Action.EntryWithHeader
		err = s.store.AddHeaderForEntry(ewh.Entry, ewh.Header)
	default:
		return s
	}

	if err != nil {
		logger.Error("dht reduction failed",
			utils.String("action", string(aw.Action.Kind)),
			utils.Err(err),
		)
		return s
	}
	return &DhtState{store: s.store}
}

// headersForEntry resolves DHT-held headers; used by the merged query.
func (s *DhtState) headersForEntry(entryAddress types.Address) ([]types.ChainHeader, error) {
	return s.store.HeadersForEntry(entryAddress)
}
