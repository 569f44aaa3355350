// Package peer runs one participant of a retinue session.
//
// A Peer owns the event bus, the companion registry and the world-event hub of
// the local process. All of them are mutated from a single goroutine: Run
// selects over inbound frames, the tick and clock timers and queued local
// actions, and handles each to completion before taking the next. Nothing in a
// peer blocks waiting for another peer; a question waiting for a player's answer
// is a pending prompt resumed by a later message.
package peer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"time"

	"github.com/dyluth/retinue/internal/bus"
	"github.com/dyluth/retinue/internal/companion"
	"github.com/dyluth/retinue/internal/eventlog"
	"github.com/dyluth/retinue/internal/session"
	"github.com/dyluth/retinue/pkg/wire"
)

// Transport is a peer's connection to the session medium.
type Transport interface {
	bus.Transport
	bus.Roster
	Inbox() <-chan []byte
	Errors() <-chan error
}

// Companion names one companion of the session.
type Companion struct {
	ID   wire.EntityID
	Name string
}

// Config describes the local peer.
type Config struct {
	Session    session.Context
	Companions []Companion
	// Rules without an AutoReleaseAt take the timing and affinity values of
	// companion.DefaultRules.
	Rules companion.Rules

	// Day is the session day Start sets up.
	Day int
	// StartTime is the time of day (HHMM) the clock starts at.
	StartTime int
	// TickInterval is the real time between world ticks.
	TickInterval time.Duration
	// TimeStep is the real time per ten minutes of game clock.
	TimeStep time.Duration
}

// Collaborators are the world-facing implementations the companions use.
type Collaborators struct {
	Content  companion.ContentLoader
	World    companion.World
	Affinity companion.Affinity
	Buffs    companion.Buffs
	AI       companion.AIFactory
	UI       companion.Presenter
	Random   companion.Random
}

// StateGauge receives the number of companions per state after every change.
type StateGauge interface {
	ObserveStates(counts map[wire.StateFlag]int)
}

// Option configures a Peer.
type Option func(*Peer)

// WithLogger sets the logger shared by the peer, its bus and its companions.
func WithLogger(l *log.Logger) Option {
	return func(p *Peer) { p.logger = l }
}

// WithObserver sets the bus traffic observer.
func WithObserver(o bus.Observer) Option {
	return func(p *Peer) { p.observer = o }
}

// WithStateGauge reports companion state counts.
func WithStateGauge(g StateGauge) Option {
	return func(p *Peer) { p.gauge = g }
}

type action struct {
	fn   func(ctx context.Context) error
	done chan error
}

type promptKey struct {
	entity   wire.EntityID
	question string
}

// Prompt is a question waiting for the local player's answer.
type Prompt struct {
	Entity   wire.EntityID
	Question string
	Options  []string
	From     wire.PeerID
}

// Peer is one participant of a session.
type Peer struct {
	cfg       Config
	sess      session.Context
	transport Transport
	collab    Collaborators

	bus      *bus.Bus
	hub      *companion.Hub
	registry *companion.Registry

	prompts map[promptKey]Prompt
	day     int
	actions chan action

	logger   *log.Logger
	events   *eventlog.Logger
	observer bus.Observer
	gauge    StateGauge
}

// New wires a peer. It does not touch the network until Start.
func New(cfg Config, transport Transport, collab Collaborators, opts ...Option) (*Peer, error) {
	if err := cfg.Session.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session: %w", err)
	}
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if len(cfg.Companions) == 0 {
		return nil, fmt.Errorf("at least one companion is required")
	}
	if cfg.Rules.AutoReleaseAt == 0 {
		rules := companion.DefaultRules()
		rules.BlackoutDays = cfg.Rules.BlackoutDays
		rules.Exclusive = cfg.Rules.Exclusive
		rules.Capacity = cfg.Rules.Capacity
		if cfg.Rules.MaxPerPeer > 0 {
			rules.MaxPerPeer = cfg.Rules.MaxPerPeer
		}
		cfg.Rules = rules
	}
	if cfg.StartTime == 0 {
		cfg.StartTime = 600
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 100 * time.Millisecond
	}
	if cfg.TimeStep <= 0 {
		cfg.TimeStep = 7 * time.Second
	}
	if cfg.Day <= 0 {
		cfg.Day = 1
	}

	p := &Peer{
		cfg:       cfg,
		sess:      cfg.Session,
		transport: transport,
		collab:    collab,
		prompts:   make(map[promptKey]Prompt),
		day:       cfg.Day,
		actions:   make(chan action),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = log.Default()
	}
	p.events = eventlog.New(p.logger, "peer", p.sess.Session)

	busOpts := []bus.Option{bus.WithLogger(p.logger)}
	if p.observer != nil {
		busOpts = append(busOpts, bus.WithObserver(p.observer))
	}
	p.bus = bus.New(p.sess, transport, transport, busOpts...)
	p.hub = companion.NewHub(cfg.StartTime)

	registry, err := companion.NewRegistry(&companion.Env{
		Session:  p.sess,
		Bus:      p.bus,
		Hub:      p.hub,
		Rules:    cfg.Rules,
		Content:  collab.Content,
		World:    collab.World,
		Affinity: collab.Affinity,
		Buffs:    collab.Buffs,
		AI:       collab.AI,
		UI:       collab.UI,
		Random:   collab.Random,
		Logger:   p.logger,
	})
	if err != nil {
		return nil, err
	}
	p.registry = registry

	for _, c := range cfg.Companions {
		if _, err := registry.Register(c.ID, c.Name); err != nil {
			return nil, err
		}
	}

	if err := p.registerHandlers(); err != nil {
		return nil, err
	}
	if err := p.bus.Complete(); err != nil {
		return nil, err
	}
	return p, nil
}

// Session returns the peer's session context.
func (p *Peer) Session() session.Context { return p.sess }

// Registry returns the peer's companion registry. Read it from the peer's
// goroutine only.
func (p *Peer) Registry() *companion.Registry { return p.registry }

// Hub returns the peer's world-event hub.
func (p *Peer) Hub() *companion.Hub { return p.hub }

// Day returns the current session day.
func (p *Peer) Day() int { return p.day }

// Start brings the peer into the session. The authority sets up the day; a
// replica asks the authority for the current state of every companion.
func (p *Peer) Start(ctx context.Context) error {
	p.logger.Printf("[Peer] %s starting in session '%s' (authority %s)", p.sess.Local, p.sess.Session, p.sess.Authority)
	if p.sess.IsAuthority() {
		err := p.registry.NewSession(ctx, p.day)
		p.observeStates()
		return err
	}
	return p.RequestState(ctx)
}

// Run processes inbound frames, timers and queued actions until ctx is
// cancelled or a fatal error occurs.
func (p *Peer) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.TickInterval)
	defer ticker.Stop()
	clock := time.NewTicker(p.cfg.TimeStep)
	defer clock.Stop()

	inbox := p.transport.Inbox()
	errs := p.transport.Errors()

	for {
		var err error
		select {
		case <-ctx.Done():
			p.logger.Printf("[Peer] %s shutting down...", p.sess.Local)
			p.registry.Dispose()
			return nil

		case frame, ok := <-inbox:
			if !ok {
				p.logger.Printf("[Peer] %s inbox closed", p.sess.Local)
				return nil
			}
			err = p.HandleFrame(ctx, frame)

		case terr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			p.logger.Printf("[Peer] Transport error: %v", terr)

		case <-ticker.C:
			err = p.Tick(ctx)

		case <-clock.C:
			err = p.AdvanceClock(ctx)

		case act := <-p.actions:
			err = act.fn(ctx)
			act.done <- err
		}

		if err != nil {
			if fatal(err) {
				p.events.Error("fatal", map[string]any{"peer": string(p.sess.Local), "error": err})
				return err
			}
			p.logger.Printf("[Peer] %v", err)
		}
	}
}

// Do runs fn on the peer's goroutine and waits for its result. Use it to call
// the local action methods while Run is active.
func (p *Peer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	act := action{fn: fn, done: make(chan error, 1)}
	select {
	case p.actions <- act:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-act.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleFrame decodes and dispatches one inbound frame.
func (p *Peer) HandleFrame(ctx context.Context, frame []byte) error {
	err := p.bus.OnReceive(ctx, frame)
	p.observeStates()
	return err
}

// Tick advances the world by one tick.
func (p *Peer) Tick(ctx context.Context) error {
	return p.hub.Tick(ctx)
}

// AdvanceClock moves the game clock forward ten minutes. Past 2:00 the next
// session day begins, which the authority sets up.
func (p *Peer) AdvanceClock(ctx context.Context) error {
	next := addMinutes(p.hub.Now(), 10)
	if next >= 2600 {
		p.day++
		p.logger.Printf("[Peer] Day %d begins", p.day)
		if err := p.hub.SetTime(ctx, p.cfg.StartTime); err != nil {
			return err
		}
		if p.sess.IsAuthority() {
			err := p.registry.NewSession(ctx, p.day)
			p.observeStates()
			return err
		}
		return nil
	}
	err := p.hub.SetTime(ctx, next)
	p.observeStates()
	return err
}

// Prompts returns the questions waiting for the local player, ordered by
// companion and question.
func (p *Peer) Prompts() []Prompt {
	out := make([]Prompt, 0, len(p.prompts))
	for _, pr := range p.prompts {
		out = append(out, pr)
	}
	slices.SortFunc(out, func(a, b Prompt) int {
		if c := cmp.Compare(a.Entity, b.Entity); c != 0 {
			return c
		}
		return cmp.Compare(a.Question, b.Question)
	})
	return out
}

func (p *Peer) observeStates() {
	if p.gauge == nil {
		return
	}
	counts := make(map[wire.StateFlag]int, len(wire.StateFlags))
	for _, f := range wire.StateFlags {
		counts[f] = 0
	}
	for _, m := range p.registry.All() {
		counts[m.Current()]++
	}
	p.gauge.ObserveStates(counts)
}

// fatal reports errors that mean this peer can no longer be trusted to be in
// sync with the session.
func fatal(err error) bool {
	return wire.IsDesync(err) ||
		errors.Is(err, companion.ErrNotSetup) ||
		errors.Is(err, companion.ErrAlreadySetup) ||
		errors.Is(err, companion.ErrUnknownState)
}

// addMinutes adds minutes to an HHMM time of day.
func addMinutes(hhmm, minutes int) int {
	total := (hhmm/100)*60 + hhmm%100 + minutes
	return (total/60)*100 + total%60
}
