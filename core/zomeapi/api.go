// Package zomeapi binds the full host-function table for application calls:
// every stable index maps to a closure over the running instance's context,
// so sandboxed code commits, queries and signs through the same workflows
// the node itself uses. Validation runs use a restricted table instead; the
// full table exists only for regular zome function calls.
package zomeapi

import (
	"context"
	"encoding/json"

	"github.com/samrose/conductor/core/instance"
	"github.com/samrose/conductor/core/ribosome"
	"github.com/samrose/conductor/core/types"
	"github.com/samrose/conductor/core/utils"
	"github.com/samrose/conductor/core/workflows"
	"github.com/samrose/conductor/internal/keys"
)

// CommitArgs is the payload of hc_commit_entry.
type CommitArgs struct {
	Entry types.Entry `json:"entry"`
}

// GetArgs is the payload of hc_get_entry.
type GetArgs struct {
	Address      types.Address      `json:"address"`
	WithHeaders  bool               `json:"with_headers,omitempty"`
	StatusFilter []types.CrudStatus `json:"status_filter,omitempty"`
}

// GetReply answers hc_get_entry.
type GetReply struct {
	Found   bool                `json:"found"`
	Entry   *types.Entry        `json:"entry,omitempty"`
	Status  types.CrudStatus    `json:"status,omitempty"`
	Headers []types.ChainHeader `json:"headers,omitempty"`
}

// RemoveArgs is the payload of hc_remove_entry.
type RemoveArgs struct {
	Address types.Address `json:"address"`
}

// LinkArgs is the payload of hc_link_entries and hc_remove_link.
type LinkArgs struct {
	Base   types.Address `json:"base"`
	Target types.Address `json:"target"`
	Tag    string        `json:"tag"`
}

// GetLinksArgs is the payload of hc_get_links.
type GetLinksArgs struct {
	Base types.Address `json:"base"`
	Tag  string        `json:"tag"`
}

// GetLinksReply answers hc_get_links.
type GetLinksReply struct {
	Addresses []types.Address `json:"addresses"`
}

// SignArgs is the payload of hc_sign.
type SignArgs struct {
	Payload string `json:"payload"`
}

// VerifyArgs is the payload of hc_verify_signature.
type VerifyArgs struct {
	Source    types.Address `json:"source"`
	Payload   string        `json:"payload"`
	Signature string        `json:"signature"`
}

// loadArg deserializes a JSON argument. A failure code where an allocation
// belongs is a sandbox violation and stays fatal; undecodable payloads map to
// an encoded failure for the module to handle.
func loadArg(r *ribosome.Runtime, arg ribosome.EncodedValue, out interface{}) (ribosome.EncodedValue, bool, error) {
	err := r.LoadArg(arg, out)
	if err == nil {
		return ribosome.EncodedSuccess, true, nil
	}
	if types.IsCode(err, types.ErrCodeSandboxViolation) {
		return ribosome.EncodedSuccess, false, err
	}
	return ribosome.EncodeFailure(ribosome.FailureArgumentDeserialization), false, nil
}

// NewTable builds the complete host-function table over an instance context.
// Host functions run inside a zome call frame, never inside a reduction, so
// they may drive workflows to completion.
func NewTable(c *instance.Context) *ribosome.Table {
	callCtx := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.Background(), c.NetTimeout)
	}

	return ribosome.NewTable(map[ribosome.FnIndex]ribosome.HostFunc{
		ribosome.FnDebug: func(r *ribosome.Runtime, arg ribosome.EncodedValue) (ribosome.EncodedValue, error) {
			payload, err := r.ReadArg(arg)
			if err != nil {
				if types.IsCode(err, types.ErrCodeSandboxViolation) {
					return ribosome.EncodedSuccess, err
				}
				return ribosome.EncodeFailure(ribosome.FailureArgumentDeserialization), nil
			}
			c.Logger.Info("zome debug",
				utils.String("zome", r.Data.Zome),
				utils.String("msg", string(payload)))
			return ribosome.EncodedSuccess, nil
		},

		ribosome.FnCommitEntry: func(r *ribosome.Runtime, arg ribosome.EncodedValue) (ribosome.EncodedValue, error) {
			var args CommitArgs
			if enc, ok, fatal := loadArg(r, arg, &args); !ok {
				return enc, fatal
			}
			ctx, cancel := callCtx()
			defer cancel()
			address, err := workflows.AuthorEntry(ctx, c, args.Entry, types.ActionCreate)
			return r.StoreResult(address, err), nil
		},

		ribosome.FnGetEntry: func(r *ribosome.Runtime, arg ribosome.EncodedValue) (ribosome.EncodedValue, error) {
			var args GetArgs
			if enc, ok, fatal := loadArg(r, arg, &args); !ok {
				return enc, fatal
			}
			ctx, cancel := callCtx()
			defer cancel()
			got, err := workflows.GetEntry(ctx, c, args.Address, workflows.GetOptions{
				WithHeaders:  args.WithHeaders,
				StatusFilter: args.StatusFilter,
			})
			if err != nil {
				return r.StoreResult(nil, err), nil
			}
			reply := GetReply{Found: got.Found}
			if got.Found {
				entry := got.Entry
				reply.Entry = &entry
				reply.Status = got.Status
				reply.Headers = got.Headers
			}
			return r.StoreResult(reply, nil), nil
		},

		ribosome.FnRemoveEntry: func(r *ribosome.Runtime, arg ribosome.EncodedValue) (ribosome.EncodedValue, error) {
			var args RemoveArgs
			if enc, ok, fatal := loadArg(r, arg, &args); !ok {
				return enc, fatal
			}
			ctx, cancel := callCtx()
			defer cancel()
			address, err := workflows.RemoveEntry(ctx, c, args.Address)
			return r.StoreResult(address, err), nil
		},

		ribosome.FnLinkEntries: func(r *ribosome.Runtime, arg ribosome.EncodedValue) (ribosome.EncodedValue, error) {
			var args LinkArgs
			if enc, ok, fatal := loadArg(r, arg, &args); !ok {
				return enc, fatal
			}
			ctx, cancel := callCtx()
			defer cancel()
			entry := types.NewLinkAddEntry(types.Link{Base: args.Base, Target: args.Target, Tag: args.Tag})
			address, err := workflows.AuthorEntry(ctx, c, entry, types.ActionCreate)
			return r.StoreResult(address, err), nil
		},

		ribosome.FnGetLinks: func(r *ribosome.Runtime, arg ribosome.EncodedValue) (ribosome.EncodedValue, error) {
			var args GetLinksArgs
			if enc, ok, fatal := loadArg(r, arg, &args); !ok {
				return enc, fatal
			}
			addresses, err := workflows.GetLinks(c, args.Base, args.Tag)
			if err != nil {
				return r.StoreResult(nil, err), nil
			}
			return r.StoreResult(GetLinksReply{Addresses: addresses}, nil), nil
		},

		ribosome.FnRemoveLink: func(r *ribosome.Runtime, arg ribosome.EncodedValue) (ribosome.EncodedValue, error) {
			var args LinkArgs
			if enc, ok, fatal := loadArg(r, arg, &args); !ok {
				return enc, fatal
			}
			ctx, cancel := callCtx()
			defer cancel()
			entry := types.NewLinkRemoveEntry(types.Link{Base: args.Base, Target: args.Target, Tag: args.Tag})
			address, err := workflows.AuthorEntry(ctx, c, entry, types.ActionCreate)
			return r.StoreResult(address, err), nil
		},

		ribosome.FnSign: func(r *ribosome.Runtime, arg ribosome.EncodedValue) (ribosome.EncodedValue, error) {
			var args SignArgs
			if enc, ok, fatal := loadArg(r, arg, &args); !ok {
				return enc, fatal
			}
			sig, err := c.Keys.Sign([]byte(args.Payload))
			return r.StoreResult(sig, err), nil
		},

		ribosome.FnVerifySignature: func(r *ribosome.Runtime, arg ribosome.EncodedValue) (ribosome.EncodedValue, error) {
			var args VerifyArgs
			if enc, ok, fatal := loadArg(r, arg, &args); !ok {
				return enc, fatal
			}
			ok, err := keys.Verify(args.Source, []byte(args.Payload), args.Signature)
			return r.StoreResult(ok, err), nil
		},
	})
}

// Call runs an exported zome function against the full host API and returns
// its raw JSON result.
func Call(c *instance.Context, zomeName, fn string, payload json.RawMessage) (json.RawMessage, error) {
	zome, ok := c.DNA.Zomes[zomeName]
	if !ok {
		return nil, types.NotFound(types.Address(zomeName))
	}
	if len(zome.Code) == 0 {
		return nil, types.NewError(types.ErrCodeRibosomeFailure, "zome ships no code")
	}
	module, err := ribosome.Compile(zome.Code)
	if err != nil {
		return nil, err
	}
	result, err := module.Call(fn, payload, NewTable(c), ribosome.CallData{
		DnaName:  c.DNA.Name,
		Zome:     zomeName,
		Function: fn,
	}, c.Logger.Named("ribosome"))
	if err != nil {
		return nil, err
	}
	return json.RawMessage(result), nil
}
