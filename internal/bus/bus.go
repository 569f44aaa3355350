// Package bus routes catalog messages between the peers of a session.
//
// Exactly one handler is registered per message kind. Outgoing messages go either
// to one peer (the authority by default) or to every peer. A message addressed to
// the local peer never touches the network: its handler runs in-process. A
// broadcast reaches every other known peer once over the transport and the local
// peer once in-process.
//
// The bus is not safe for concurrent use. A peer drives it from a single
// goroutine, which is what keeps handler execution serialised.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dyluth/retinue/internal/eventlog"
	"github.com/dyluth/retinue/internal/session"
	"github.com/dyluth/retinue/pkg/wire"
)

// ErrNoHandler is returned when a frame's kind has no registered handler.
var ErrNoHandler = fmt.Errorf("%w: no handler registered", wire.ErrDesync)

// ErrDuplicateHandler is returned when a kind is registered twice.
var ErrDuplicateHandler = errors.New("handler already registered")

// Handler processes one inbound message. env.From is the sending peer.
// Implementations must not block.
type Handler interface {
	Process(ctx context.Context, env wire.Envelope, msg wire.Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, env wire.Envelope, msg wire.Message) error

// Process calls f.
func (f HandlerFunc) Process(ctx context.Context, env wire.Envelope, msg wire.Message) error {
	return f(ctx, env, msg)
}

// Transport delivers an encoded frame to one remote peer.
type Transport interface {
	Send(ctx context.Context, to wire.PeerID, frame []byte) error
}

// Roster lists the peers currently in the session, local peer included or not.
type Roster interface {
	Peers(ctx context.Context) ([]wire.PeerID, error)
}

// Observer is notified about traffic. internal/metrics implements it.
type Observer interface {
	Sent(kind wire.Kind, remote bool)
	Received(kind wire.Kind, remote bool)
	Failed(kind wire.Kind, err error)
}

type nopObserver struct{}

func (nopObserver) Sent(wire.Kind, bool)     {}
func (nopObserver) Received(wire.Kind, bool) {}
func (nopObserver) Failed(wire.Kind, error)  {}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger. Defaults to log.Default().
func WithLogger(l *log.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// WithObserver sets the traffic observer.
func WithObserver(o Observer) Option {
	return func(b *Bus) { b.observer = o }
}

// Bus is the event bus of one peer.
type Bus struct {
	sess      session.Context
	transport Transport
	roster    Roster
	handlers  map[wire.Kind]Handler
	logger    *log.Logger
	events    *eventlog.Logger
	observer  Observer
}

// New creates a bus for the local peer described by sess.
func New(sess session.Context, transport Transport, roster Roster, opts ...Option) *Bus {
	b := &Bus{
		sess:      sess,
		transport: transport,
		roster:    roster,
		handlers:  make(map[wire.Kind]Handler, len(wire.Kinds)),
		observer:  nopObserver{},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = log.Default()
	}
	b.events = eventlog.New(b.logger, "bus", sess.Session)
	return b
}

// Session returns the session context the bus routes for.
func (b *Bus) Session() session.Context {
	return b.sess
}

// Register binds h to kind. Each kind takes exactly one handler.
func (b *Bus) Register(kind wire.Kind, h Handler) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("nil handler for %s", kind)
	}
	if _, exists := b.handlers[kind]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, kind)
	}
	b.handlers[kind] = h
	return nil
}

// Complete returns an error naming every catalog kind without a handler.
func (b *Bus) Complete() error {
	var missing []string
	for _, kind := range wire.Kinds {
		if _, ok := b.handlers[kind]; !ok {
			missing = append(missing, string(kind))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("no handler for kinds: %v", missing)
	}
	return nil
}

// Send routes msg to the authority.
func (b *Bus) Send(ctx context.Context, msg wire.Message) error {
	return b.SendTo(ctx, b.sess.Authority, msg)
}

// SendTo routes msg to one peer. Messages for the local peer are dispatched
// in-process; everything else is encoded and handed to the transport.
func (b *Bus) SendTo(ctx context.Context, to wire.PeerID, msg wire.Message) error {
	if to.IsNone() {
		return fmt.Errorf("cannot send %s: no target peer", msg.Kind())
	}

	env := wire.Envelope{From: b.sess.Local, To: to}
	if b.sess.IsLocal(to) {
		b.observer.Sent(msg.Kind(), false)
		return b.deliverLocal(ctx, env, msg)
	}
	return b.transmit(ctx, env, msg)
}

// Broadcast delivers msg to every other peer in the roster once, then to the
// local peer once.
func (b *Bus) Broadcast(ctx context.Context, msg wire.Message) error {
	peers, err := b.roster.Peers(ctx)
	if err != nil {
		b.observer.Failed(msg.Kind(), err)
		return fmt.Errorf("failed to list peers for broadcast: %w", err)
	}

	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })

	// every copy, the local one included, carries the same id
	id := uuid.New().String()
	var sendErrs []error
	for _, p := range peers {
		if b.sess.IsLocal(p) || p.IsNone() {
			continue
		}
		env := wire.Envelope{ID: id, From: b.sess.Local, To: p, Broadcast: true}
		if err := b.transmit(ctx, env, msg); err != nil {
			// A peer that dropped out must not stop the others from hearing the outcome.
			sendErrs = append(sendErrs, err)
		}
	}

	b.observer.Sent(msg.Kind(), false)
	env := wire.Envelope{ID: id, From: b.sess.Local, To: b.sess.Local, Broadcast: true}
	if err := b.deliverLocal(ctx, env, msg); err != nil {
		return err
	}
	return errors.Join(sendErrs...)
}

// OnReceive decodes a frame from the transport and dispatches it.
func (b *Bus) OnReceive(ctx context.Context, frame []byte) error {
	env, msg, err := wire.Decode(frame)
	if err != nil {
		b.observer.Failed(env.Kind, err)
		b.events.Error("decode_failed", map[string]any{"from": string(env.From), "error": err})
		return err
	}
	b.observer.Received(env.Kind, true)
	return b.dispatch(ctx, env, msg)
}

func (b *Bus) transmit(ctx context.Context, env wire.Envelope, msg wire.Message) error {
	frame, err := wire.Encode(env, msg)
	if err != nil {
		b.observer.Failed(msg.Kind(), err)
		return err
	}
	if err := b.transport.Send(ctx, env.To, frame); err != nil {
		b.observer.Failed(msg.Kind(), err)
		b.events.Warn("send_failed", map[string]any{
			"kind":  string(msg.Kind()),
			"to":    string(env.To),
			"error": err,
		})
		return fmt.Errorf("failed to send %s to %s: %w", msg.Kind(), env.To, err)
	}
	b.observer.Sent(msg.Kind(), true)
	return nil
}

func (b *Bus) deliverLocal(ctx context.Context, env wire.Envelope, msg wire.Message) error {
	if env.ID == "" {
		env.ID = uuid.New().String()
	}
	env.Kind = msg.Kind()
	env.SentAtMs = time.Now().UnixMilli()
	b.observer.Received(env.Kind, false)
	return b.dispatch(ctx, env, msg)
}

func (b *Bus) dispatch(ctx context.Context, env wire.Envelope, msg wire.Message) error {
	h, ok := b.handlers[env.Kind]
	if !ok {
		err := fmt.Errorf("%w: %s", ErrNoHandler, env.Kind)
		b.observer.Failed(env.Kind, err)
		b.events.Error("protocol_desync", map[string]any{"kind": string(env.Kind), "from": string(env.From), "error": err})
		return err
	}

	if err := h.Process(ctx, env, msg); err != nil {
		b.observer.Failed(env.Kind, err)
		if wire.IsDesync(err) {
			b.events.Error("protocol_desync", map[string]any{
				"kind":   string(env.Kind),
				"from":   string(env.From),
				"entity": string(wire.EntityOf(msg)),
				"error":  err,
			})
		}
		return fmt.Errorf("%s from %s: %w", env.Kind, env.From, err)
	}
	return nil
}
