// Package p2p carries the peer protocol over libp2p streams: one JSON frame
// per direction on a dedicated protocol ID. Peer discovery is explicit, the
// node learns agent addresses through bootstrap configuration and TrackDna
// announcements.
package p2p

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	libp2p "github.com/libp2p/go-libp2p"
	crypto "github.com/libp2p/go-libp2p/core/crypto"
	libp2p_host "github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	peer "github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/samrose/conductor/core/protocol"
	"github.com/samrose/conductor/core/types"
	"github.com/samrose/conductor/core/utils"
)

// ProtocolID is the libp2p protocol this transport speaks.
const ProtocolID = "/conductor/dht/1.0.0"

// Transport implements protocol.Transport over a libp2p host.
type Transport struct {
	host   libp2p_host.Host
	logger *utils.Logger

	mu      sync.RWMutex
	handler protocol.Handler
	peers   map[types.Address]peer.AddrInfo
}

// New starts a libp2p host listening on the given multiaddrs. The private
// key doubles as the node's agent identity.
func New(priv crypto.PrivKey, listenAddrs []string, logger *utils.Logger) (*Transport, error) {
	if logger == nil {
		logger = utils.DefaultLogger("p2p")
	}
	opts := []libp2p.Option{libp2p.Identity(priv)}
	if len(listenAddrs) > 0 {
		opts = append(opts, libp2p.ListenAddrStrings(listenAddrs...))
	}
	host, err := libp2p.New(opts...)
	if err != nil {
		return nil, types.WrapError(types.ErrCodePeerUnreachable, "starting libp2p host", err)
	}

	t := &Transport{
		host:   host,
		logger: logger,
		peers:  make(map[types.Address]peer.AddrInfo),
	}
	host.SetStreamHandler(ProtocolID, t.handleStream)
	logger.Info("libp2p host started", utils.String("peer_id", host.ID().String()))
	return t, nil
}

// Addrs returns the host's full dialable multiaddrs.
func (t *Transport) Addrs() []string {
	var out []string
	for _, addr := range t.host.Addrs() {
		out = append(out, fmt.Sprintf("%s/p2p/%s", addr.String(), t.host.ID().String()))
	}
	return out
}

// AddPeer registers a reachable agent at a multiaddr of the form
// /ip4/.../tcp/.../p2p/<peer-id>.
func (t *Transport) AddPeer(agent types.Address, peerAddr string) error {
	maddr, err := ma.NewMultiaddr(peerAddr)
	if err != nil {
		return types.WrapError(types.ErrCodePeerUnreachable, "parsing peer multiaddr", err)
	}
	info, err := peer.AddrInfoFromP2pAddr(maddr)
	if err != nil {
		return types.WrapError(types.ErrCodePeerUnreachable, "resolving peer info", err)
	}
	t.mu.Lock()
	t.peers[agent] = *info
	t.mu.Unlock()
	return nil
}

// Peers lists the registered agents.
func (t *Transport) Peers() []types.Address {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]types.Address, 0, len(t.peers))
	for agent := range t.peers {
		out = append(out, agent)
	}
	return out
}

// SetHandler implements protocol.Transport.
func (t *Transport) SetHandler(handler protocol.Handler) {
	t.mu.Lock()
	t.handler = handler
	t.mu.Unlock()
}

// Send implements protocol.Transport: one request frame out, at most one
// response frame back on the same stream.
func (t *Transport) Send(ctx context.Context, to types.Address, msg protocol.Message) (*protocol.Message, error) {
	t.mu.RLock()
	info, ok := t.peers[to]
	t.mu.RUnlock()
	if !ok {
		return nil, types.NewError(types.ErrCodePeerUnreachable,
			fmt.Sprintf("unknown agent %s", to))
	}

	if err := t.host.Connect(ctx, info); err != nil {
		return nil, types.WrapError(types.ErrCodePeerUnreachable, "connecting to peer", err)
	}
	stream, err := t.host.NewStream(ctx, info.ID, ProtocolID)
	if err != nil {
		return nil, types.WrapError(types.ErrCodePeerUnreachable, "opening stream", err)
	}
	defer stream.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetDeadline(deadline)
	}

	frame, err := json.Marshal(msg)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeSerialization, "encoding message", err)
	}
	if _, err := stream.Write(frame); err != nil {
		return nil, types.WrapError(types.ErrCodePeerUnreachable, "writing frame", err)
	}
	if err := stream.CloseWrite(); err != nil {
		return nil, types.WrapError(types.ErrCodePeerUnreachable, "finishing frame", err)
	}

	respFrame, err := io.ReadAll(stream)
	if err != nil {
		return nil, types.WrapError(types.ErrCodePeerUnreachable, "reading response", err)
	}
	if len(respFrame) == 0 {
		return nil, nil
	}
	var resp protocol.Message
	if err := json.Unmarshal(respFrame, &resp); err != nil {
		return nil, types.WrapError(types.ErrCodeSerialization, "decoding response", err)
	}
	return &resp, nil
}

// Broadcast implements protocol.Transport: best effort to every registered
// peer, per-peer failures logged and skipped.
func (t *Transport) Broadcast(ctx context.Context, msg protocol.Message) error {
	t.mu.RLock()
	agents := make([]types.Address, 0, len(t.peers))
	for agent := range t.peers {
		agents = append(agents, agent)
	}
	t.mu.RUnlock()

	for _, agent := range agents {
		if _, err := t.Send(ctx, agent, msg); err != nil {
			t.logger.Warn("broadcast delivery failed",
				utils.String("agent", string(agent)),
				utils.String("kind", string(msg.Kind)), utils.Err(err))
		}
	}
	return nil
}

// Close implements protocol.Transport.
func (t *Transport) Close() error {
	return t.host.Close()
}

func (t *Transport) handleStream(s network.Stream) {
	defer s.Close()

	frame, err := io.ReadAll(s)
	if err != nil {
		t.logger.Warn("reading inbound frame", utils.Err(err))
		return
	}
	var msg protocol.Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		t.logger.Warn("malformed inbound frame", utils.Err(err))
		return
	}

	t.mu.RLock()
	handler := t.handler
	t.mu.RUnlock()
	if handler == nil {
		t.logger.Warn("inbound message with no handler installed",
			utils.String("kind", string(msg.Kind)))
		return
	}

	// TrackDna doubles as discovery: remember where the announcing agent
	// lives so directed sends can reach it.
	if msg.Kind == protocol.KindTrackDna && msg.Track != nil {
		t.mu.Lock()
		t.peers[msg.Track.AgentID] = peer.AddrInfo{
			ID:    s.Conn().RemotePeer(),
			Addrs: []ma.Multiaddr{s.Conn().RemoteMultiaddr()},
		}
		t.mu.Unlock()
	}

	resp, err := handler(context.Background(), msg)
	if err != nil {
		t.logger.Warn("inbound handler failed",
			utils.String("kind", string(msg.Kind)), utils.Err(err))
		return
	}
	if resp == nil {
		return
	}
	respFrame, err := json.Marshal(resp)
	if err != nil {
		t.logger.Warn("encoding response frame", utils.Err(err))
		return
	}
	if _, err := s.Write(respFrame); err != nil {
		t.logger.Warn("writing response frame", utils.Err(err))
	}
}
