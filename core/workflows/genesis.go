package workflows

import (
	"context"
	"encoding/json"

	"github.com/samrose/conductor/core/instance"
	"github.com/samrose/conductor/core/protocol"
	"github.com/samrose/conductor/core/state"
	"github.com/samrose/conductor/core/types"
)

// Initialize brings a fresh instance to life: it registers the application,
// commits the two genesis entries (the DNA manifest, then the agent's
// identity) as the first links of the chain, and announces the node on the
// network when a transport is supplied. Transport may be nil for offline
// instances.
func Initialize(ctx context.Context, c *instance.Context, transport protocol.Transport) error {
	if err := c.Instance().DispatchAndWait(ctx, state.InitApplication(c.DNA)); err != nil {
		return err
	}

	if _, err := AuthorEntry(ctx, c, c.DNA.Entry(), types.ActionCreate); err != nil {
		return err
	}

	agentValue, err := json.Marshal(string(c.AgentID()))
	if err != nil {
		return types.WrapError(types.ErrCodeSerialization, "encoding agent identity", err)
	}
	agentEntry := types.Entry{Type: types.EntryTypeAgentID, Value: agentValue}
	if _, err := AuthorEntry(ctx, c, agentEntry, types.ActionCreate); err != nil {
		return err
	}

	if transport != nil {
		aw := state.InitNetwork(transport, c.DNA.Address(), c.AgentID())
		if err := c.Instance().DispatchAndWait(ctx, aw); err != nil {
			return err
		}
	}
	return nil
}
