// Package network bridges the peer protocol onto the workflow layer: inbound
// messages become hold workflows or synchronous query answers. Fire-and-forget
// kinds run on a bounded worker pool; their failures are logged and swallowed,
// never propagated to the sender.
package network

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/samrose/conductor/core/instance"
	"github.com/samrose/conductor/core/protocol"
	"github.com/samrose/conductor/core/types"
	"github.com/samrose/conductor/core/utils"
	"github.com/samrose/conductor/core/workflows"
)

// DefaultWorkers bounds concurrent inbound hold workflows per bridge.
const DefaultWorkers = 8

// Bridge dispatches inbound peer messages. Install it on a transport with
// Attach before initializing the network slice.
type Bridge struct {
	ctx    *instance.Context
	sem    *semaphore.Weighted
	logger *utils.Logger

	base   context.Context
	cancel context.CancelFunc
}

// NewBridge creates a bridge over the instance context. workers <= 0 selects
// DefaultWorkers.
func NewBridge(c *instance.Context, workers int64) *Bridge {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	base, cancel := context.WithCancel(context.Background())
	return &Bridge{
		ctx:    c,
		sem:    semaphore.NewWeighted(workers),
		logger: c.Logger.Named("bridge"),
		base:   base,
		cancel: cancel,
	}
}

// Attach installs the bridge as the transport's inbound handler.
func (b *Bridge) Attach(t protocol.Transport) {
	t.SetHandler(b.Handle)
}

// Close stops accepting new work. In-flight workflows finish on their own
// deadlines.
func (b *Bridge) Close() {
	b.cancel()
}

// Handle implements protocol.Handler. Query kinds answer synchronously;
// store kinds return immediately and do their work on the pool.
func (b *Bridge) Handle(ctx context.Context, msg protocol.Message) (*protocol.Message, error) {
	if !msg.DnaAddress.IsNil() && msg.DnaAddress != b.ctx.DNA.Address() {
		b.logger.Debug("dropping message for foreign application",
			utils.String("kind", string(msg.Kind)),
			utils.String("dna", string(msg.DnaAddress)))
		return nil, nil
	}

	switch msg.Kind {
	case protocol.KindStoreEntry:
		if msg.Entry == nil {
			return nil, types.NewError(types.ErrCodeSerialization, "store entry without payload")
		}
		ewh := msg.Entry.Entry
		b.spawn("hold entry", func(ctx context.Context) error {
			return workflows.HoldEntry(ctx, b.ctx, ewh)
		})
		return nil, nil

	case protocol.KindStoreMeta:
		if msg.Meta == nil {
			return nil, types.NewError(types.ErrCodeSerialization, "store meta without payload")
		}
		b.dispatchMeta(*msg.Meta)
		return nil, nil

	case protocol.KindTrackDna:
		if msg.Track != nil {
			b.logger.Info("peer tracking application",
				utils.String("agent", string(msg.Track.AgentID)))
		}
		return nil, nil

	case protocol.KindGetValidationPackage:
		if msg.PackageReq == nil {
			return nil, types.NewError(types.ErrCodeSerialization, "package request without payload")
		}
		return workflows.HandleGetValidationPackage(b.ctx, *msg.PackageReq), nil

	case protocol.KindGetEntry:
		if msg.GetEntryReq == nil {
			return nil, types.NewError(types.ErrCodeSerialization, "get entry without payload")
		}
		return workflows.HandleGetEntry(ctx, b.ctx, *msg.GetEntryReq), nil

	default:
		b.logger.Warn("unhandled message kind", utils.String("kind", string(msg.Kind)))
		return nil, nil
	}
}

// dispatchMeta fans a metadata message out per content item. Link attributes
// carry full entry-with-header payloads and run the hold workflows; CRUD
// attributes are accepted and logged without touching state, the sender's
// own store-entry path already carries the authoritative transition.
func (b *Bridge) dispatchMeta(meta protocol.MetaData) {
	switch meta.Attribute {
	case types.AttrLink:
		b.spawnLinkWorkflows("hold link", meta, workflows.HoldLink)

	case types.AttrLinkRemove:
		b.spawnLinkWorkflows("remove link", meta, workflows.RemoveLink)

	case types.AttrCrudStatus, types.AttrCrudLink:
		b.logger.Debug("ignoring crud metadata",
			utils.String("attribute", meta.Attribute),
			utils.String("entry", string(meta.EntryAddress)))

	default:
		b.logger.Warn("unknown metadata attribute",
			utils.String("attribute", meta.Attribute),
			utils.String("entry", string(meta.EntryAddress)))
	}
}

func (b *Bridge) spawnLinkWorkflows(name string, meta protocol.MetaData, workflow func(context.Context, *instance.Context, types.EntryWithHeader) error) {
	for i, raw := range meta.ContentList {
		var ewh types.EntryWithHeader
		if err := json.Unmarshal(raw, &ewh); err != nil {
			b.logger.Warn("malformed metadata item",
				utils.String("attribute", meta.Attribute),
				utils.Int("index", i), utils.Err(err))
			continue
		}
		b.spawn(name, func(ctx context.Context) error {
			return workflow(ctx, b.ctx, ewh)
		})
	}
}

// spawn runs fn on the bounded pool. Acquisition blocks the caller when the
// pool is saturated, which back-pressures the transport's read loop. Each
// unit of work gets a correlation ID so its log lines can be tied together.
func (b *Bridge) spawn(name string, fn func(context.Context) error) {
	if err := b.sem.Acquire(b.base, 1); err != nil {
		b.logger.Debug("bridge closed, dropping work", utils.String("workflow", name))
		return
	}
	workID := utils.GenerateID()
	b.logger.Debug(fmt.Sprintf("%s scheduled", name), utils.String("work_id", workID))
	go func() {
		defer b.sem.Release(1)
		ctx, cancel := context.WithTimeout(b.base, b.ctx.NetTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			b.logger.Warn(fmt.Sprintf("%s failed", name),
				utils.String("work_id", workID), utils.Err(err))
		}
	}()
}
