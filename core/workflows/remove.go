package workflows

import (
	"context"

	"github.com/samrose/conductor/core/instance"
	"github.com/samrose/conductor/core/types"
)

// RemoveEntry marks an entry deleted: it authors a deletion marker pointing
// at the target, which commits to the chain and flips the target's CRUD
// status in the shard. The target entry itself stays content-addressable.
// Returns the deletion marker's address.
func RemoveEntry(ctx context.Context, c *instance.Context, target types.Address) (types.Address, error) {
	got, err := GetEntry(ctx, c, target, GetOptions{})
	if err != nil {
		return types.NilAddress, err
	}
	if !got.Found {
		return types.NilAddress, types.NotFound(target)
	}
	if got.Status == types.StatusDeleted {
		return types.NilAddress, types.ValidationFailed("entry is already deleted")
	}

	deletion := types.NewDeletionEntry(target)
	return AuthorEntry(ctx, c, deletion, types.ActionDelete)
}
