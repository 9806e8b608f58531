package workflows

import (
	"context"
	"encoding/json"

	"github.com/samrose/conductor/core/instance"
	"github.com/samrose/conductor/core/protocol"
	"github.com/samrose/conductor/core/state"
	"github.com/samrose/conductor/core/types"
	"github.com/samrose/conductor/core/utils"
)

// AuthorEntry validates an entry against the application's rules, commits it
// to the local chain, and publishes it to the shard when its type is public.
// The node holds its own public entries immediately, so a freshly committed
// entry is gettable without waiting for the network.
func AuthorEntry(ctx context.Context, c *instance.Context, entry types.Entry, action types.EntryAction) (types.Address, error) {
	header, err := c.NewSignedHeader(entry)
	if err != nil {
		return types.NilAddress, err
	}

	pkg, err := BuildValidationPackage(c, header)
	if err != nil {
		return types.NilAddress, err
	}
	data := types.ValidationData{
		Package:   *pkg,
		Lifecycle: types.LifecycleChain,
		Action:    action,
	}
	if err := c.Validator.Validate(entry, data); err != nil {
		return types.NilAddress, err
	}

	ewh := types.EntryWithHeader{Entry: entry, Header: header}
	if err := c.Instance().DispatchAndWait(ctx, state.CommitEntry(ewh)); err != nil {
		return types.NilAddress, err
	}

	if c.DNA.IsPublic(entry.Type) {
		if err := publish(ctx, c, ewh); err != nil {
			return types.NilAddress, err
		}
	}
	return entry.Address(), nil
}

// publish applies an entry's shard effects locally and broadcasts them. The
// local dispatches mirror exactly what a remote holder derives from the
// corresponding store messages.
func publish(ctx context.Context, c *instance.Context, ewh types.EntryWithHeader) error {
	entryAddress := ewh.Entry.Address()

	if err := c.Instance().DispatchAndWait(ctx, state.HoldEntry(ewh)); err != nil {
		return err
	}

	var meta *protocol.MetaData
	switch ewh.Entry.Type {
	case types.EntryTypeLinkAdd:
		link, err := ewh.Entry.AsLink()
		if err != nil {
			return err
		}
		if err := c.Instance().DispatchAndWait(ctx, state.AddLink(link, entryAddress)); err != nil {
			return err
		}
		meta = linkMeta(link.Base, types.AttrLink, ewh)
	case types.EntryTypeLinkRemove:
		link, err := ewh.Entry.AsLink()
		if err != nil {
			return err
		}
		if err := c.Instance().DispatchAndWait(ctx, state.RemoveLink(link, entryAddress)); err != nil {
			return err
		}
		meta = linkMeta(link.Base, types.AttrLinkRemove, ewh)
	case types.EntryTypeDeletion:
		deleted, err := ewh.Entry.DeletedAddress()
		if err != nil {
			return err
		}
		aw := state.UpdateCrudStatus(deleted, types.StatusDeleted, entryAddress)
		if err := c.Instance().DispatchAndWait(ctx, aw); err != nil {
			return err
		}
		meta = &protocol.MetaData{
			EntryAddress: deleted,
			Attribute:    types.AttrCrudStatus,
			ContentList:  []json.RawMessage{mustJSON(types.StatusDeleted)},
		}
	}

	transport := c.Transport()
	if transport == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.NetTimeout)
	defer cancel()

	err := transport.Broadcast(ctx, protocol.Message{
		Kind:       protocol.KindStoreEntry,
		DnaAddress: c.DNA.Address(),
		From:       c.AgentID(),
		Entry:      &protocol.EntryData{Entry: ewh},
	})
	if err != nil {
		c.Logger.Warn("publishing entry failed",
			utils.String("entry", string(entryAddress)), utils.Err(err))
	}

	if meta != nil {
		err := transport.Broadcast(ctx, protocol.Message{
			Kind:       protocol.KindStoreMeta,
			DnaAddress: c.DNA.Address(),
			From:       c.AgentID(),
			Meta:       meta,
		})
		if err != nil {
			c.Logger.Warn("publishing metadata failed",
				utils.String("entry", string(entryAddress)), utils.Err(err))
		}
	}
	return nil
}

func linkMeta(base types.Address, attribute string, ewh types.EntryWithHeader) *protocol.MetaData {
	return &protocol.MetaData{
		EntryAddress: base,
		Attribute:    attribute,
		ContentList:  []json.RawMessage{mustJSON(ewh)},
	}
}

func mustJSON(v interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
