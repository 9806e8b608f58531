package workflows

import (
	"context"

	"github.com/samrose/conductor/core/instance"
	"github.com/samrose/conductor/core/protocol"
	"github.com/samrose/conductor/core/types"
)

// GetOptions tunes a GetEntry query.
type GetOptions struct {
	// WithHeaders includes the merged header list: local chain headers first,
	// then shard-held headers, deduplicated by address.
	WithHeaders bool
	// StatusFilter keeps only entries whose CRUD status is listed. Empty
	// means any status.
	StatusFilter []types.CrudStatus
}

// GetResult is the answer to a GetEntry query. Found false with a nil error
// means the entry is simply absent.
type GetResult struct {
	Found   bool
	Entry   types.Entry
	Status  types.CrudStatus
	Headers []types.ChainHeader
}

// GetEntry looks an entry up in the local chain first, then in the held
// shard. Absence is a result, not an error.
func GetEntry(ctx context.Context, c *instance.Context, address types.Address, opts GetOptions) (GetResult, error) {
	st := c.State()

	entry, found, err := st.Agent().Entry(address)
	if err != nil {
		return GetResult{}, err
	}
	if !found {
		entry, found, err = c.DhtStore.Entry(address)
		if err != nil {
			return GetResult{}, err
		}
	}
	if !found {
		return GetResult{}, nil
	}

	status, hasStatus, err := c.DhtStore.CrudStatus(address)
	if err != nil {
		return GetResult{}, err
	}
	if !hasStatus {
		status = types.StatusLive
	}
	if !statusAllowed(status, opts.StatusFilter) {
		return GetResult{}, nil
	}

	result := GetResult{Found: true, Entry: entry, Status: status}
	if opts.WithHeaders {
		headers, err := st.GetHeaders(address)
		if err != nil {
			return GetResult{}, err
		}
		result.Headers = headers
	}
	return result, nil
}

// GetLinks returns the live link targets on (base, tag): every added link
// not covered by a matching remove, in insertion order.
func GetLinks(c *instance.Context, base types.Address, tag string) ([]types.Address, error) {
	return c.DhtStore.Links(base, tag)
}

// FetchEntryFrom queries a specific peer for an entry and its metadata. Used
// when the caller knows a holder and the entry is not in the local shard.
func FetchEntryFrom(ctx context.Context, c *instance.Context, peer types.Address, address types.Address) (GetResult, error) {
	transport := c.Transport()
	if transport == nil {
		return GetResult{}, types.NewError(types.ErrCodePeerUnreachable, "network not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, c.NetTimeout)
	defer cancel()

	resp, err := transport.Send(ctx, peer, protocol.Message{
		Kind:        protocol.KindGetEntry,
		DnaAddress:  c.DNA.Address(),
		From:        c.AgentID(),
		GetEntryReq: &protocol.GetEntryRequest{Address: address},
	})
	if err != nil {
		return GetResult{}, types.WrapError(types.ErrCodePeerUnreachable, "get entry request failed", err)
	}
	if resp == nil || resp.GetEntryRes == nil {
		return GetResult{}, types.NewError(types.ErrCodePeerUnreachable, "peer returned no result")
	}

	res := resp.GetEntryRes
	if !res.Found || res.Entry == nil {
		return GetResult{}, nil
	}
	return GetResult{
		Found:   true,
		Entry:   *res.Entry,
		Status:  res.Status,
		Headers: res.Headers,
	}, nil
}

// HandleGetEntry is the holder-side responder for a peer's entry query.
func HandleGetEntry(ctx context.Context, c *instance.Context, req protocol.GetEntryRequest) *protocol.Message {
	result := &protocol.GetEntryResult{}

	got, err := GetEntry(ctx, c, req.Address, GetOptions{WithHeaders: true})
	if err != nil {
		c.Logger.Warn("answering get entry failed", entryField(req.Address))
	} else if got.Found {
		entry := got.Entry
		result.Found = true
		result.Entry = &entry
		result.Status = got.Status
		result.Headers = got.Headers
	}

	return &protocol.Message{
		Kind:        protocol.KindGetEntryResult,
		DnaAddress:  c.DNA.Address(),
		From:        c.AgentID(),
		GetEntryRes: result,
	}
}

func statusAllowed(status types.CrudStatus, filter []types.CrudStatus) bool {
	if len(filter) == 0 {
		return true
	}
	for _, s := range filter {
		if s == status {
			return true
		}
	}
	return false
}
