package workflows

import (
	"context"

	"github.com/samrose/conductor/core/instance"
	"github.com/samrose/conductor/core/state"
	"github.com/samrose/conductor/core/types"
	"github.com/samrose/conductor/core/utils"
	"github.com/samrose/conductor/internal/keys"
)

// HoldEntry is the receiving side of publishing: fetch the author's evidence
// bundle, check provenance, run the application's validation rule, and only
// then admit the entry into the local shard. A failure at any step drops the
// entry; there is no retry.
func HoldEntry(ctx context.Context, c *instance.Context, ewh types.EntryWithHeader) error {
	return holdWorkflow(ctx, c, ewh, types.LifecycleDht, func() state.ActionWrapper {
		return state.HoldEntry(ewh)
	})
}

// HoldLink admits an inbound link-add into the shard's metadata after
// validating its carrier entry.
func HoldLink(ctx context.Context, c *instance.Context, ewh types.EntryWithHeader) error {
	link, err := ewh.Entry.AsLink()
	if err != nil {
		return err
	}
	return holdWorkflow(ctx, c, ewh, types.LifecycleMeta, func() state.ActionWrapper {
		return state.AddLink(link, ewh.Entry.Address())
	})
}

// RemoveLink tombstones a link in the shard's metadata after validating the
// inbound link-remove entry.
func RemoveLink(ctx context.Context, c *instance.Context, ewh types.EntryWithHeader) error {
	link, err := ewh.Entry.AsLink()
	if err != nil {
		return err
	}
	return holdWorkflow(ctx, c, ewh, types.LifecycleMeta, func() state.ActionWrapper {
		return state.RemoveLink(link, ewh.Entry.Address())
	})
}

func holdWorkflow(ctx context.Context, c *instance.Context, ewh types.EntryWithHeader, lifecycle types.Lifecycle, action func() state.ActionWrapper) error {
	logger := c.Logger.Named("hold")
	entryAddress := ewh.Entry.Address()

	logger.Debug("hold workflow", stageField(StageRequestedPackage), entryField(entryAddress))
	pkg, err := FetchValidationPackage(ctx, c, ewh.Header)
	if err != nil {
		logger.Warn("hold workflow", stageField(StagePackageUnavailable), entryField(entryAddress), utils.Err(err))
		return err
	}
	logger.Debug("hold workflow", stageField(StagePackageReceived), entryField(entryAddress))

	if err := verifyProvenance(ewh.Header); err != nil {
		logger.Warn("hold workflow", stageField(StageInvalid), entryField(entryAddress), utils.Err(err))
		return err
	}

	data := types.ValidationData{
		Package:   *pkg,
		Lifecycle: lifecycle,
		Action:    entryAction(ewh.Entry.Type),
	}
	if err := c.Validator.Validate(ewh.Entry, data); err != nil {
		logger.Warn("hold workflow", stageField(StageInvalid), entryField(entryAddress), utils.Err(err))
		return err
	}
	logger.Debug("hold workflow", stageField(StageValidated), entryField(entryAddress))

	if err := c.Instance().DispatchAndWait(ctx, action()); err != nil {
		return err
	}
	logger.Debug("hold workflow", stageField(StageHeld), entryField(entryAddress))
	return nil
}

// verifyProvenance checks every signature the header carries against its
// claimed source. A header without provenance is rejected outright.
func verifyProvenance(header types.ChainHeader) error {
	if len(header.Provenances) == 0 {
		return types.NewError(types.ErrCodeSignatureInvalid, "header carries no provenance")
	}
	message := header.SigningBytes()
	for _, p := range header.Provenances {
		ok, err := keys.Verify(p.Source, message, p.Signature)
		if err != nil {
			return types.WrapError(types.ErrCodeSignatureInvalid, "verifying header signature", err)
		}
		if !ok {
			return types.NewError(types.ErrCodeSignatureInvalid, "header signature does not verify")
		}
	}
	return nil
}

func entryAction(entryType types.EntryType) types.EntryAction {
	switch entryType {
	case types.EntryTypeDeletion, types.EntryTypeLinkRemove:
		return types.ActionDelete
	default:
		return types.ActionCreate
	}
}

func stageField(s Stage) utils.Field {
	return utils.String("stage", string(s))
}

func entryField(a types.Address) utils.Field {
	return utils.String("entry", string(a))
}
