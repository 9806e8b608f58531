package p2p

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/samrose/conductor/core/protocol"
	"github.com/samrose/conductor/core/types"
)

// MemoryNetwork is an in-process hub connecting MemoryTransport nodes. It
// exists for multi-node tests and offline development; delivery is
// synchronous and messages round-trip through JSON so anything that would
// not survive the wire does not survive the hub either.
type MemoryNetwork struct {
	mu    sync.RWMutex
	nodes map[types.Address]*MemoryTransport
}

// NewMemoryNetwork creates an empty hub.
func NewMemoryNetwork() *MemoryNetwork {
	return &MemoryNetwork{nodes: make(map[types.Address]*MemoryTransport)}
}

// Join attaches a new node under the given agent address.
func (n *MemoryNetwork) Join(agent types.Address) *MemoryTransport {
	t := &MemoryTransport{net: n, agent: agent}
	n.mu.Lock()
	n.nodes[agent] = t
	n.mu.Unlock()
	return t
}

func (n *MemoryNetwork) node(agent types.Address) (*MemoryTransport, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	t, ok := n.nodes[agent]
	return t, ok
}

func (n *MemoryNetwork) others(agent types.Address) []*MemoryTransport {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*MemoryTransport, 0, len(n.nodes))
	for a, t := range n.nodes {
		if a != agent {
			out = append(out, t)
		}
	}
	return out
}

// MemoryTransport implements protocol.Transport against a MemoryNetwork.
type MemoryTransport struct {
	net   *MemoryNetwork
	agent types.Address

	mu      sync.RWMutex
	handler protocol.Handler
	closed  bool
}

// SetHandler implements protocol.Transport.
func (t *MemoryTransport) SetHandler(handler protocol.Handler) {
	t.mu.Lock()
	t.handler = handler
	t.mu.Unlock()
}

// Send implements protocol.Transport.
func (t *MemoryTransport) Send(ctx context.Context, to types.Address, msg protocol.Message) (*protocol.Message, error) {
	if t.isClosed() {
		return nil, types.NewError(types.ErrCodePeerUnreachable, "transport closed")
	}
	target, ok := t.net.node(to)
	if !ok || target.isClosed() {
		return nil, types.NewError(types.ErrCodePeerUnreachable,
			fmt.Sprintf("unknown agent %s", to))
	}
	return target.deliver(ctx, msg)
}

// Broadcast implements protocol.Transport: synchronous delivery to every
// other live node. Per-node handler errors are swallowed, matching the best
// effort semantics of the wire transport.
func (t *MemoryTransport) Broadcast(ctx context.Context, msg protocol.Message) error {
	if t.isClosed() {
		return types.NewError(types.ErrCodePeerUnreachable, "transport closed")
	}
	for _, node := range t.net.others(t.agent) {
		if node.isClosed() {
			continue
		}
		_, _ = node.deliver(ctx, msg)
	}
	return nil
}

// Close implements protocol.Transport.
func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

func (t *MemoryTransport) isClosed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}

func (t *MemoryTransport) deliver(ctx context.Context, msg protocol.Message) (*protocol.Message, error) {
	t.mu.RLock()
	handler := t.handler
	t.mu.RUnlock()
	if handler == nil {
		return nil, types.NewError(types.ErrCodePeerUnreachable, "no handler installed")
	}

	wired, err := roundTrip(msg)
	if err != nil {
		return nil, err
	}
	resp, err := handler(ctx, wired)
	if err != nil || resp == nil {
		return nil, err
	}
	wiredResp, err := roundTrip(*resp)
	if err != nil {
		return nil, err
	}
	return &wiredResp, nil
}

func roundTrip(msg protocol.Message) (protocol.Message, error) {
	frame, err := json.Marshal(msg)
	if err != nil {
		return protocol.Message{}, types.WrapError(types.ErrCodeSerialization, "encoding message", err)
	}
	var out protocol.Message
	if err := json.Unmarshal(frame, &out); err != nil {
		return protocol.Message{}, types.WrapError(types.ErrCodeSerialization, "decoding message", err)
	}
	return out, nil
}
