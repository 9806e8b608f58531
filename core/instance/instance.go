// Package instance ties one running application to its state container: a
// serialized reduction loop over the shared State snapshot, plus the Context
// registry handed to workflows and host functions.
package instance

import (
	"context"
	"sync"

	"github.com/samrose/conductor/core/state"
	"github.com/samrose/conductor/core/types"
	"github.com/samrose/conductor/core/utils"
)

const actionQueueDepth = 64

type request struct {
	aw   state.ActionWrapper
	done chan struct{}
}

// Instance owns the current State snapshot. Reads take the snapshot pointer
// freely; writes go through the single reduction loop, so one reduction
// completes before the next begins and history order is total.
type Instance struct {
	mu      sync.RWMutex
	state   *state.State
	actions chan request
	quit    chan struct{}
	once    sync.Once
	logger  *utils.Logger
}

// New creates an instance over an initial snapshot.
func New(initial *state.State, logger *utils.Logger) *Instance {
	if logger == nil {
		logger = utils.DefaultLogger("instance")
	}
	return &Instance{
		state:   initial,
		actions: make(chan request, actionQueueDepth),
		quit:    make(chan struct{}),
		logger:  logger,
	}
}

// Start launches the reduction loop.
func (i *Instance) Start() {
	go i.loop()
}

// Stop terminates the reduction loop. Pending actions are dropped.
func (i *Instance) Stop() {
	i.once.Do(func() { close(i.quit) })
}

func (i *Instance) loop() {
	for {
		select {
		case req := <-i.actions:
			next := i.State().Reduce(req.aw)
			i.mu.Lock()
			i.state = next
			i.mu.Unlock()
			if req.done != nil {
				close(req.done)
			}
		case <-i.quit:
			return
		}
	}
}

// State returns the current snapshot. The snapshot is immutable; callers may
// hold it across suspension points.
func (i *Instance) State() *state.State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

// Dispatch enqueues an action without waiting for its reduction.
func (i *Instance) Dispatch(aw state.ActionWrapper) {
	select {
	case i.actions <- request{aw: aw}:
	case <-i.quit:
	}
}

// DispatchAndWait enqueues an action and blocks until its reduction has been
// applied. This is the run-to-completion bridge for call frames that cannot
// suspend; it must never be invoked from inside a reduction of the same
// causal chain, or the loop would wait on itself.
func (i *Instance) DispatchAndWait(ctx context.Context, aw state.ActionWrapper) error {
	done := make(chan struct{})
	select {
	case i.actions <- request{aw: aw, done: done}:
	case <-i.quit:
		return types.NewError(types.ErrCodeStore, "instance stopped")
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-i.quit:
		// Stop raced with the reduction; only report failure if the
		// loop exited without applying the action.
		select {
		case <-done:
			return nil
		default:
		}
		return types.NewError(types.ErrCodeStore, "instance stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}
