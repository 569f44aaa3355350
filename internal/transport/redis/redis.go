// Package redis carries session traffic over Redis Pub/Sub.
//
// Every peer subscribes to its own inbox channel, retinue:{session}:peer:{id}.
// Sending a frame to a peer is a PUBLISH on that channel, so frames from one
// sender arrive in order. The session roster is a SET and the authority is a
// plain string key set with SETNX by the first peer that hosts.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	backend "github.com/redis/go-redis/v9"

	"github.com/dyluth/retinue/pkg/wire"
)

const (
	inboxSize  = 256
	errorsSize = 10
)

// ErrNoSubscriber is returned when a frame was published to a peer channel
// nobody listens on.
var ErrNoSubscriber = errors.New("peer is not subscribed")

// Monitor gives read access to a session without joining it.
// It is safe for concurrent use.
type Monitor struct {
	rdb     *backend.Client
	session string
}

// NewMonitor creates a monitor for session.
func NewMonitor(opts *backend.Options, session string) (*Monitor, error) {
	if session == "" {
		return nil, fmt.Errorf("session name cannot be empty")
	}
	return &Monitor{rdb: backend.NewClient(opts), session: session}, nil
}

// Session returns the session name.
func (m *Monitor) Session() string { return m.session }

// Ping verifies Redis connectivity.
func (m *Monitor) Ping(ctx context.Context) error {
	return m.rdb.Ping(ctx).Err()
}

// Peers lists the session roster in id order.
func (m *Monitor) Peers(ctx context.Context) ([]wire.PeerID, error) {
	members, err := m.rdb.SMembers(ctx, wire.RosterKey(m.session)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}
	sort.Strings(members)

	peers := make([]wire.PeerID, len(members))
	for i, p := range members {
		peers[i] = wire.PeerID(p)
	}
	return peers, nil
}

// Authority returns the peer hosting the session, or NoPeer if nobody does.
func (m *Monitor) Authority(ctx context.Context) (wire.PeerID, error) {
	id, err := m.rdb.Get(ctx, wire.AuthorityKey(m.session)).Result()
	if errors.Is(err, backend.Nil) {
		return wire.NoPeer, nil
	}
	if err != nil {
		return wire.NoPeer, fmt.Errorf("failed to read authority: %w", err)
	}
	return wire.PeerID(id), nil
}

// Close closes the Redis connection.
func (m *Monitor) Close() error {
	return m.rdb.Close()
}

// Frame is one frame seen on a session channel.
type Frame struct {
	To   wire.PeerID
	Data []byte
}

// Subscription is an active watch over every peer channel of a session.
// Caller must call Close() when done.
type Subscription struct {
	frames <-chan Frame
	cancel func()
	once   sync.Once
}

// Frames returns the channel of observed frames. It is closed when the
// subscription stops.
func (s *Subscription) Frames() <-chan Frame { return s.frames }

// Close stops the subscription. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// Watch pattern-subscribes to every peer channel of the session.
func (m *Monitor) Watch(ctx context.Context) (*Subscription, error) {
	pubsub := m.rdb.PSubscribe(ctx, wire.SessionPattern(m.session))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to watch session %s: %w", m.session, err)
	}

	prefix := strings.TrimSuffix(wire.SessionPattern(m.session), "*")
	frames := make(chan Frame, inboxSize)
	subCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(frames)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				f := Frame{To: wire.PeerID(strings.TrimPrefix(msg.Channel, prefix)), Data: []byte(msg.Payload)}
				select {
				case frames <- f:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{frames: frames, cancel: cancel}, nil
}

// Client is one peer's connection to a session. It implements the peer
// runtime's transport. It is safe for concurrent use.
type Client struct {
	*Monitor
	peer wire.PeerID

	inbox  chan []byte
	errors chan error
	cancel func()
	done   chan struct{}
	once   sync.Once
}

// Join subscribes peer to its inbox channel and adds it to the roster. The
// subscription is confirmed before Join returns, so frames published after
// that are not lost.
func Join(ctx context.Context, opts *backend.Options, session string, peer wire.PeerID) (*Client, error) {
	if peer.IsNone() {
		return nil, fmt.Errorf("peer id cannot be empty")
	}
	mon, err := NewMonitor(opts, session)
	if err != nil {
		return nil, err
	}
	if err := mon.Ping(ctx); err != nil {
		mon.Close()
		return nil, fmt.Errorf("redis is not reachable: %w", err)
	}

	pubsub := mon.rdb.Subscribe(ctx, wire.PeerChannel(session, peer))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		mon.Close()
		return nil, fmt.Errorf("failed to subscribe %s: %w", peer, err)
	}

	if err := mon.rdb.SAdd(ctx, wire.RosterKey(session), string(peer)).Err(); err != nil {
		pubsub.Close()
		mon.Close()
		return nil, fmt.Errorf("failed to join roster: %w", err)
	}

	subCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		Monitor: mon,
		peer:    peer,
		inbox:   make(chan []byte, inboxSize),
		errors:  make(chan error, errorsSize),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go c.receive(subCtx, pubsub)
	return c, nil
}

func (c *Client) receive(ctx context.Context, pubsub *backend.PubSub) {
	defer close(c.done)
	defer close(c.inbox)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if msg.Payload == "" {
				// Send error on error channel, skip message
				select {
				case c.errors <- fmt.Errorf("empty frame on %s", msg.Channel):
				default:
				}
				continue
			}
			select {
			case c.inbox <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}
}

// ID returns the local peer id.
func (c *Client) ID() wire.PeerID { return c.peer }

// Send publishes frame on the target peer's inbox channel.
func (c *Client) Send(ctx context.Context, to wire.PeerID, frame []byte) error {
	n, err := c.rdb.Publish(ctx, wire.PeerChannel(c.session, to), frame).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", to, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNoSubscriber, to)
	}
	return nil
}

// Inbox returns the channel inbound frames arrive on.
func (c *Client) Inbox() <-chan []byte { return c.inbox }

// Errors returns non-fatal receive errors.
func (c *Client) Errors() <-chan error { return c.errors }

// ClaimAuthority makes this peer the session authority unless another peer
// already is. It returns the authority either way.
func (c *Client) ClaimAuthority(ctx context.Context) (wire.PeerID, error) {
	key := wire.AuthorityKey(c.session)
	if err := c.rdb.SetNX(ctx, key, string(c.peer), 0).Err(); err != nil {
		return wire.NoPeer, fmt.Errorf("failed to claim authority: %w", err)
	}
	return c.Authority(ctx)
}

// Close unsubscribes, leaves the roster and, if this peer hosted the session,
// clears the authority key. Safe to call multiple times.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		c.cancel()
		<-c.done

		ctx := context.Background()
		var errs []error
		if e := c.rdb.SRem(ctx, wire.RosterKey(c.session), string(c.peer)).Err(); e != nil {
			errs = append(errs, fmt.Errorf("failed to leave roster: %w", e))
		}
		if auth, e := c.Authority(ctx); e == nil && auth == c.peer {
			if e := c.rdb.Del(ctx, wire.AuthorityKey(c.session)).Err(); e != nil {
				errs = append(errs, fmt.Errorf("failed to release authority: %w", e))
			}
		}
		errs = append(errs, c.Monitor.Close())
		err = errors.Join(errs...)
	})
	return err
}
