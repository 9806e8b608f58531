package workflows

import (
	"context"

	"github.com/samrose/conductor/core/instance"
	"github.com/samrose/conductor/core/protocol"
	"github.com/samrose/conductor/core/types"
	"github.com/samrose/conductor/core/utils"
)

// BuildValidationPackage assembles the evidence bundle for a header authored
// on this node's chain: the header itself plus the author's source-chain
// headers, newest first.
func BuildValidationPackage(c *instance.Context, header types.ChainHeader) (*types.ValidationPackage, error) {
	sourceHeaders, err := c.ChainStore.Walk(c.State().Agent().TopHeader())
	if err != nil {
		return nil, types.WrapError(types.ErrCodeStore, "walking source chain", err)
	}
	return &types.ValidationPackage{
		ChainHeader:   header,
		SourceHeaders: sourceHeaders,
	}, nil
}

// FetchValidationPackage obtains the evidence bundle for a header, locally
// when this node authored it, otherwise from the author over the network.
// Every failure path maps to PACKAGE_UNAVAILABLE: an entry whose evidence
// cannot be produced is not validatable.
func FetchValidationPackage(ctx context.Context, c *instance.Context, header types.ChainHeader) (*types.ValidationPackage, error) {
	author := header.Source()
	if author == c.AgentID() {
		pkg, err := BuildValidationPackage(c, header)
		if err != nil {
			return nil, types.WrapError(types.ErrCodePackageUnavailable, "building local package", err)
		}
		return pkg, nil
	}

	transport := c.Transport()
	if transport == nil {
		return nil, types.NewError(types.ErrCodePackageUnavailable, "network not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, c.NetTimeout)
	defer cancel()

	resp, err := transport.Send(ctx, author, protocol.Message{
		Kind:       protocol.KindGetValidationPackage,
		DnaAddress: c.DNA.Address(),
		From:       c.AgentID(),
		PackageReq: &protocol.PackageRequest{Header: header},
	})
	if err != nil {
		return nil, types.WrapError(types.ErrCodePackageUnavailable, "author unreachable", err)
	}
	if resp == nil || resp.PackageRes == nil || resp.PackageRes.Package == nil {
		return nil, types.NewError(types.ErrCodePackageUnavailable, "author returned no package")
	}
	return resp.PackageRes.Package, nil
}

// HandleGetValidationPackage is the author-side responder: a peer asks for
// the evidence bundle of a header this node committed. Headers not on the
// local chain yield an empty result, not an error.
func HandleGetValidationPackage(c *instance.Context, req protocol.PackageRequest) *protocol.Message {
	result := &protocol.PackageResult{}

	headerAddress := req.Header.Address()
	if _, found, err := c.ChainStore.Header(headerAddress); err == nil && found {
		pkg, err := BuildValidationPackage(c, req.Header)
		if err != nil {
			c.Logger.Warn("building requested package failed",
				utils.String("header", string(headerAddress)), utils.Err(err))
		} else {
			result.Package = pkg
		}
	}

	return &protocol.Message{
		Kind:       protocol.KindValidationPackageResult,
		DnaAddress: c.DNA.Address(),
		From:       c.AgentID(),
		PackageRes: result,
	}
}
