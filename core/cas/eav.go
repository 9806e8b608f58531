package cas

import (
	"sort"
	"sync"
	"time"

	"github.com/samrose/conductor/core/types"
)

// Eavi is one entity-attribute-value row plus its insertion index. Rows are
// append-only; later rows with the same entity and attribute supersede earlier
// ones only through index-ordered queries, never by overwriting.
type Eavi struct {
	Entity    types.Address `json:"entity"`
	Attribute string        `json:"attribute"`
	Value     types.Address `json:"value"`
	Index     int64         `json:"index"`
	Source    types.Address `json:"source,omitempty"`
}

// IndexFilter selects which rows of a matching set are returned.
type IndexFilter int

const (
	// IndexFilterAll returns every matching row in insertion order.
	IndexFilterAll IndexFilter = iota
	// IndexFilterLatestByAttribute returns only the most recent row per
	// (entity, attribute) pair.
	IndexFilterLatestByAttribute
)

// EaviQuery filters rows by any subset of entity, attribute and value.
// Nil fields match everything.
type EaviQuery struct {
	Entity    *types.Address
	Attribute *string
	Value     *types.Address
	Filter    IndexFilter
}

// EaviStore is the metadata store of the DHT shard.
type EaviStore interface {
	// AddEavi appends a row. A zero Index is assigned from the store clock.
	AddEavi(eavi Eavi) (Eavi, error)
	// FetchEavi returns matching rows ordered by index.
	FetchEavi(query EaviQuery) ([]Eavi, error)
}

// MemoryEaviStore is the in-memory EaviStore.
type MemoryEaviStore struct {
	mu   sync.RWMutex
	rows []Eavi
	tick int64
}

// NewMemoryEaviStore creates an empty in-memory EAV store.
func NewMemoryEaviStore() *MemoryEaviStore {
	return &MemoryEaviStore{}
}

// AddEavi implements EaviStore.
func (s *MemoryEaviStore) AddEavi(eavi Eavi) (Eavi, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if eavi.Index == 0 {
		eavi.Index = time.Now().UnixNano()
	}
	// Index must be strictly monotonic so latest-by-attribute is unambiguous
	// even for rows added within the clock resolution.
	if eavi.Index <= s.tick {
		eavi.Index = s.tick + 1
	}
	s.tick = eavi.Index

	s.rows = append(s.rows, eavi)
	return eavi, nil
}

// FetchEavi implements EaviStore.
func (s *MemoryEaviStore) FetchEavi(query EaviQuery) ([]Eavi, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Eavi
	for _, row := range s.rows {
		if query.Entity != nil && row.Entity != *query.Entity {
			continue
		}
		if query.Attribute != nil && row.Attribute != *query.Attribute {
			continue
		}
		if query.Value != nil && row.Value != *query.Value {
			continue
		}
		matched = append(matched, row)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].Index < matched[j].Index })

	if query.Filter == IndexFilterLatestByAttribute {
		latest := make(map[types.Address]map[string]Eavi)
		for _, row := range matched {
			byAttr, ok := latest[row.Entity]
			if !ok {
				byAttr = make(map[string]Eavi)
				latest[row.Entity] = byAttr
			}
			byAttr[row.Attribute] = row
		}
		matched = matched[:0]
		for _, byAttr := range latest {
			for _, row := range byAttr {
				matched = append(matched, row)
			}
		}
		sort.Slice(matched, func(i, j int) bool { return matched[i].Index < matched[j].Index })
	}

	return matched, nil
}

// Helpers for building query fields.

// QueryEntity returns a pointer suitable for EaviQuery.Entity.
func QueryEntity(a types.Address) *types.Address { return &a }

// QueryAttribute returns a pointer suitable for EaviQuery.Attribute.
func QueryAttribute(attr string) *string { return &attr }

// QueryValue returns a pointer suitable for EaviQuery.Value.
func QueryValue(a types.Address) *types.Address { return &a }
