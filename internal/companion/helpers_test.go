package companion

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dyluth/retinue/internal/session"
	"github.com/dyluth/retinue/pkg/wire"
)

type sent struct {
	to        wire.PeerID
	broadcast bool
	msg       wire.Message
}

// loopback is a Sender for a single peer. Broadcast StateChanged messages are
// applied to the local registry the way the peer runtime does it.
type loopback struct {
	sess     session.Context
	registry *Registry
	sent     []sent
}

func (l *loopback) Send(ctx context.Context, msg wire.Message) error {
	return l.SendTo(ctx, l.sess.Authority, msg)
}

func (l *loopback) SendTo(ctx context.Context, to wire.PeerID, msg wire.Message) error {
	l.sent = append(l.sent, sent{to: to, msg: msg})
	if qa, ok := msg.(*wire.QuestionAnswered); ok && to == l.sess.Local {
		m, err := l.registry.Lookup(qa.Entity)
		if err != nil {
			return err
		}
		return m.Answer(ctx, l.sess.Local, qa.Question, qa.Choice)
	}
	return nil
}

func (l *loopback) Broadcast(ctx context.Context, msg wire.Message) error {
	l.sent = append(l.sent, sent{broadcast: true, msg: msg})
	if sc, ok := msg.(*wire.StateChanged); ok {
		m, err := l.registry.Lookup(sc.Entity)
		if err != nil {
			return err
		}
		return m.Apply(ctx, sc.NewState, sc.Claimant)
	}
	return nil
}

func (l *loopback) reset() { l.sent = nil }

func (l *loopback) broadcasts() []*wire.StateChanged {
	var out []*wire.StateChanged
	for _, s := range l.sent {
		if sc, ok := s.msg.(*wire.StateChanged); ok && s.broadcast {
			out = append(out, sc)
		}
	}
	return out
}

func (l *loopback) to(peer wire.PeerID) []wire.Message {
	var out []wire.Message
	for _, s := range l.sent {
		if !s.broadcast && s.to == peer {
			out = append(out, s.msg)
		}
	}
	return out
}

type fakeContent map[string]string

func (c fakeContent) LoadString(key string, args ...any) (string, bool) {
	s, ok := c[key]
	if !ok {
		return key, false
	}
	for i, a := range args {
		s = strings.ReplaceAll(s, fmt.Sprintf("{%d}", i), fmt.Sprint(a))
	}
	return s, true
}

func (c fakeContent) LoadStrings(asset string) (map[string]string, error) {
	out := map[string]string{}
	for k, v := range c {
		if rest, ok := strings.CutPrefix(k, asset+":"); ok {
			out[rest] = v
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("asset %s not found", asset)
	}
	return out, nil
}

type fakeWorld struct {
	locations  map[wire.EntityID]string
	reconciled int
	returned   []wire.EntityID
}

func (w *fakeWorld) Location(e wire.EntityID) string { return w.locations[e] }
func (w *fakeWorld) Health(wire.EntityID) int         { return 100 }
func (w *fakeWorld) Reconcile(wire.EntityID)          { w.reconciled++ }
func (w *fakeWorld) ReturnHome(e wire.EntityID)       { w.returned = append(w.returned, e) }

type fakeAffinity struct {
	hearts  map[wire.PeerID]int
	changes map[wire.PeerID]int
	spouse  bool
	married wire.EntityID
}

func (a *fakeAffinity) Hearts(p wire.PeerID, _ wire.EntityID) int { return a.hearts[p] }
func (a *fakeAffinity) ChangeFriendship(p wire.PeerID, _ wire.EntityID, delta int) {
	a.changes[p] += delta
}
func (a *fakeAffinity) HasSpouse(wire.PeerID) bool { return a.spouse }
func (a *fakeAffinity) IsSpouse(_ wire.PeerID, e wire.EntityID) bool {
	return a.married != "" && a.married == e
}

type fakeAI struct {
	handles  bool
	moves    []string
	updates  int
	disposed bool
}

func (a *fakeAI) PerformAction() bool          { return a.handles }
func (a *fakeAI) ChangeLocation(target string) { a.moves = append(a.moves, target) }
func (a *fakeAI) Update(uint64)                { a.updates++ }
func (a *fakeAI) Activity() string             { return "follow" }
func (a *fakeAI) Dispose()                     { a.disposed = true }

type fakeUI struct {
	dialogues []string
	questions []string
	opened    []wire.Inventory
}

func (u *fakeUI) ShowDialogue(_ wire.EntityID, key string, _ []string) {
	u.dialogues = append(u.dialogues, key)
}
func (u *fakeUI) AskQuestion(_ wire.EntityID, q string, _ []string) {
	u.questions = append(u.questions, q)
}
func (u *fakeUI) OpenInventory(_ wire.EntityID, inv wire.Inventory) { u.opened = append(u.opened, inv) }
func (u *fakeUI) ShowStatus(wire.EntityID, wire.Status)             {}
func (u *fakeUI) Notify(wire.EntityID, string)                      {}

type fakeBuffs struct{ active map[wire.PeerID]int }

func (b *fakeBuffs) Apply(p wire.PeerID, _ wire.EntityID)   { b.active[p]++ }
func (b *fakeBuffs) Release(p wire.PeerID, _ wire.EntityID) { b.active[p]-- }

type fixedRandom float64

func (r fixedRandom) Float64() float64 { return float64(r) }

type fixture struct {
	bus      *loopback
	env      *Env
	registry *Registry
	world    *fakeWorld
	affinity *fakeAffinity
	ui       *fakeUI
	buffs    *fakeBuffs
	ais      map[wire.EntityID]*fakeAI
}

// newFixture builds an authority ("host") registry with abigail and maru.
func newFixture(t *testing.T, local wire.PeerID, mutate ...func(*Rules)) *fixture {
	t.Helper()

	sess := session.Context{Session: "test", Local: local, Authority: "host"}
	f := &fixture{
		bus:      &loopback{sess: sess},
		world:    &fakeWorld{locations: map[wire.EntityID]string{"abigail": "Town", "maru": "Mountain"}},
		affinity: &fakeAffinity{hearts: map[wire.PeerID]int{"host": 8, "alice": 8, "bob": 8, "carol": 2}, changes: map[wire.PeerID]int{}},
		ui:       &fakeUI{},
		buffs:    &fakeBuffs{active: map[wire.PeerID]int{}},
		ais:      map[wire.EntityID]*fakeAI{},
	}

	rules := DefaultRules()
	for _, fn := range mutate {
		fn(&rules)
	}

	f.env = &Env{
		Session: sess,
		Bus:     f.bus,
		Hub:     NewHub(900),
		Rules:   rules,
		Content: fakeContent{
			"Dialogue/Abigail:companionAccepted": "Let's go!",
			"Dialogue/Abigail:companion_Beach":   "I love the sea.",
			"Strings/Strings:askToFollow":        "Ask {0} to follow?",
		},
		World:    f.world,
		Affinity: f.affinity,
		Buffs:    f.buffs,
		AI: func(e wire.EntityID, _ wire.PeerID) AIController {
			ai := &fakeAI{}
			f.ais[e] = ai
			return ai
		},
		UI:     f.ui,
		Random: fixedRandom(0.99),
		Logger: log.New(io.Discard, "", 0),
	}

	r, err := NewRegistry(f.env)
	require.NoError(t, err)
	f.registry = r
	f.bus.registry = r

	_, err = r.Register("abigail", "Abigail")
	require.NoError(t, err)
	_, err = r.Register("maru", "Maru")
	require.NoError(t, err)
	return f
}

func (f *fixture) machine(t *testing.T, e wire.EntityID) *Machine {
	t.Helper()
	m, err := f.registry.Lookup(e)
	require.NoError(t, err)
	return m
}

// startDay runs the day setup and forgets the traffic it produced.
func (f *fixture) startDay(t *testing.T) {
	t.Helper()
	require.NoError(t, f.registry.NewSession(context.Background(), 1))
	f.bus.reset()
}
