// Package memory is an in-process session network. Every peer that joins gets an
// endpoint with a FIFO inbox; frames sent to a peer land in its inbox in send
// order. It backs tests and single-process demo sessions.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dyluth/retinue/pkg/wire"
)

// DefaultInboxSize is the per-peer inbox buffer.
const DefaultInboxSize = 1024

var (
	// ErrUnknownPeer is returned when sending to a peer that never joined or left.
	ErrUnknownPeer = errors.New("peer is not connected")

	// ErrInboxFull is returned when the target peer is not draining its inbox.
	ErrInboxFull = errors.New("peer inbox is full")
)

// Network connects endpoints.
type Network struct {
	mu        sync.RWMutex
	endpoints map[wire.PeerID]*Endpoint
	inboxSize int
}

// NewNetwork returns an empty network.
func NewNetwork() *Network {
	return &Network{endpoints: make(map[wire.PeerID]*Endpoint), inboxSize: DefaultInboxSize}
}

// Join connects a peer and returns its endpoint.
func (n *Network) Join(id wire.PeerID) (*Endpoint, error) {
	if id.IsNone() {
		return nil, fmt.Errorf("peer id cannot be empty")
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.endpoints[id]; exists {
		return nil, fmt.Errorf("peer %s already joined", id)
	}
	ep := &Endpoint{id: id, net: n, inbox: make(chan []byte, n.inboxSize)}
	n.endpoints[id] = ep
	return ep, nil
}

// Peers lists the connected peers in id order.
func (n *Network) Peers(context.Context) ([]wire.PeerID, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]wire.PeerID, 0, len(n.endpoints))
	for id := range n.endpoints {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (n *Network) deliver(to wire.PeerID, frame []byte) error {
	n.mu.RLock()
	defer n.mu.RUnlock()

	ep, ok := n.endpoints[to]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, to)
	}
	data := append([]byte(nil), frame...)
	select {
	case ep.inbox <- data:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInboxFull, to)
	}
}

func (n *Network) leave(id wire.PeerID) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if ep, ok := n.endpoints[id]; ok {
		delete(n.endpoints, id)
		close(ep.inbox)
	}
}

// Endpoint is one peer's connection to the network.
type Endpoint struct {
	id    wire.PeerID
	net   *Network
	inbox chan []byte
	once  sync.Once
}

// ID returns the endpoint's peer id.
func (e *Endpoint) ID() wire.PeerID { return e.id }

// Send queues frame in the target peer's inbox.
func (e *Endpoint) Send(_ context.Context, to wire.PeerID, frame []byte) error {
	return e.net.deliver(to, frame)
}

// Peers lists every connected peer, this one included.
func (e *Endpoint) Peers(ctx context.Context) ([]wire.PeerID, error) {
	return e.net.Peers(ctx)
}

// Inbox returns the channel inbound frames arrive on. It is closed on Close.
func (e *Endpoint) Inbox() <-chan []byte { return e.inbox }

// Errors never fires: in-process delivery has no asynchronous failures.
func (e *Endpoint) Errors() <-chan error { return nil }

// Pending returns the number of frames waiting in the inbox.
func (e *Endpoint) Pending() int { return len(e.inbox) }

// Close leaves the network.
func (e *Endpoint) Close() error {
	e.once.Do(func() { e.net.leave(e.id) })
	return nil
}
