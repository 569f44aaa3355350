package companion

import (
	"context"
	"fmt"

	"github.com/dyluth/retinue/pkg/wire"
)

// State is one variant of a companion's behaviour.
//
// Entry receives a fresh scope; anything the state subscribes to must be
// registered on it. The machine closes the scope right after Exit.
type State interface {
	Flag() wire.StateFlag
	Entry(ctx context.Context, scope *Scope, claimant wire.PeerID) error
	Exit(ctx context.Context)
	Capabilities() Capabilities
}

// DialogueCreator builds the dialogue shown when a player interacts with the
// companion.
type DialogueCreator interface {
	CreateRequestedDialogue(ctx context.Context, requester wire.PeerID) error
}

// DialogueDetector reacts to a player's answer to a question the state asked.
type DialogueDetector interface {
	OnAnswer(ctx context.Context, from wire.PeerID, question, choice string) error
}

// Integrator hands a companion's body back to the world.
type Integrator interface {
	Reintegrate(ctx context.Context) error
}

// Capabilities lists the optional behaviours of a state. A nil field means the
// state does not support it.
type Capabilities struct {
	DialogueCreator  DialogueCreator
	DialogueDetector DialogueDetector
	Integrator       Integrator
}

// Outcome is the result of a claim arbitration.
type Outcome struct {
	Accepted bool
	Reason   wire.RejectReason
}

// Machine tracks one companion's recruitment state on one peer.
type Machine struct {
	env    *Env
	entity wire.EntityID
	name   string

	current wire.StateFlag
	owner   wire.PeerID
	states  map[wire.StateFlag]State
	scope   *Scope

	bag            wire.Inventory
	status         *wire.Status
	recruitedToday bool

	// line -> dialogue asset that defines it
	dialogue map[string]string
}

// newMachine creates a machine for entity. Setup must run before it is used.
func newMachine(env *Env, entity wire.EntityID, name string) *Machine {
	return &Machine{
		env:    env,
		entity: entity,
		name:   name,
		bag:    wire.Inventory{Capacity: 36},
	}
}

// Setup builds the state table and resets the machine. It may run only once.
func (m *Machine) Setup() error {
	if m.states != nil {
		return fmt.Errorf("%s: %w", m.entity, ErrAlreadySetup)
	}

	m.states = map[wire.StateFlag]State{
		wire.StateReset:       &resetState{m: m},
		wire.StateAvailable:   &availableState{m: m},
		wire.StateRecruited:   &recruitedState{m: m},
		wire.StateUnavailable: &unavailableState{m: m},
	}
	m.current = wire.StateReset
	m.owner = wire.NoPeer
	m.scope = NewScope()
	m.loadDialogue()
	return nil
}

// Entity returns the companion's entity id.
func (m *Machine) Entity() wire.EntityID { return m.entity }

// Name returns the companion's display name, also used to find its dialogue.
func (m *Machine) Name() string { return m.name }

// Current returns the state the machine last applied.
func (m *Machine) Current() wire.StateFlag { return m.current }

// Owner returns the recruiting peer, or wire.NoPeer outside Recruited.
func (m *Machine) Owner() wire.PeerID { return m.owner }

// Bag returns the companion's bag.
func (m *Machine) Bag() wire.Inventory { return m.bag }

// SetBag replaces the companion's bag.
func (m *Machine) SetBag(inv wire.Inventory) { m.bag = inv }

// RecruitedToday reports whether the companion was recruited since the last
// session day started.
func (m *Machine) RecruitedToday() bool { return m.recruitedToday }

// Status returns the last periodic status received for the companion.
func (m *Machine) Status() (wire.Status, bool) {
	if m.status == nil {
		return wire.Status{}, false
	}
	return *m.status, true
}

// RecordStatus stores a periodic status report.
func (m *Machine) RecordStatus(s wire.Status) {
	m.status = &s
}

// Capabilities returns the capabilities of the current state.
func (m *Machine) Capabilities() Capabilities {
	if m.states == nil {
		return Capabilities{}
	}
	return m.states[m.current].Capabilities()
}

// RequestTransition decides a transition. Only the authority may call it. The
// outcome is broadcast as StateChanged; every peer, this one included, applies
// it when the broadcast arrives.
func (m *Machine) RequestTransition(ctx context.Context, flag wire.StateFlag, claimant wire.PeerID) error {
	if err := m.ready(); err != nil {
		return err
	}
	if !m.env.Session.IsAuthority() {
		return fmt.Errorf("%s: transition to %s: %w", m.entity, flag, ErrNotAuthority)
	}
	if _, ok := m.states[flag]; !ok {
		return fmt.Errorf("%s: %w: %q", m.entity, ErrUnknownState, flag)
	}
	if flag != wire.StateRecruited {
		claimant = wire.NoPeer
	}
	if flag == m.current && claimant == m.owner {
		return nil
	}

	return m.env.Bus.Broadcast(ctx, &wire.StateChanged{
		Entity:   m.entity,
		NewState: flag,
		Claimant: claimant,
	})
}

// Apply switches the machine to a state the authority has already decided.
// Applying the current state again is a no-op.
func (m *Machine) Apply(ctx context.Context, flag wire.StateFlag, claimant wire.PeerID) error {
	if err := m.ready(); err != nil {
		return err
	}
	next, ok := m.states[flag]
	if !ok {
		return fmt.Errorf("%s: %w: %q", m.entity, ErrUnknownState, flag)
	}
	if flag != wire.StateRecruited {
		claimant = wire.NoPeer
	}
	if flag == m.current {
		if claimant != m.owner {
			m.env.events.Warn("owner_mismatch", map[string]any{
				"entity":   string(m.entity),
				"state":    string(flag),
				"owner":    string(m.owner),
				"claimant": string(claimant),
			})
		}
		return nil
	}

	prev := m.current
	m.states[prev].Exit(ctx)
	m.scope.Close()

	m.current = flag
	m.owner = claimant
	m.scope = NewScope()

	if prev == wire.StateRecruited {
		m.env.registry.released(m.entity)
	}
	if flag == wire.StateRecruited {
		m.recruitedToday = true
		m.env.registry.occupied(m.entity)
	}

	m.env.Logger.Printf("[Companion] %s: %s -> %s (owner %s)", m.entity, prev, flag, claimant)
	m.env.events.Info("state_changed", map[string]any{
		"entity":   string(m.entity),
		"from":     string(prev),
		"to":       string(flag),
		"claimant": string(claimant),
	})

	if err := next.Entry(ctx, m.scope, claimant); err != nil {
		return fmt.Errorf("%s: entry into %s: %w", m.entity, flag, err)
	}

	if flag == wire.StateRecruited && m.env.Session.IsAuthority() {
		return m.env.registry.companionRecruited(ctx, m.entity)
	}
	return nil
}

// NewSessionSetup starts a session day for the companion: it forces Reset, then
// decides between Available and Unavailable. Authority only.
func (m *Machine) NewSessionSetup(ctx context.Context, day int) error {
	if err := m.ready(); err != nil {
		return err
	}
	if !m.env.Session.IsAuthority() {
		return fmt.Errorf("%s: new session setup: %w", m.entity, ErrNotAuthority)
	}

	if err := m.RequestTransition(ctx, wire.StateReset, wire.NoPeer); err != nil {
		return err
	}
	if integ := m.Capabilities().Integrator; integ != nil {
		if err := integ.Reintegrate(ctx); err != nil {
			return err
		}
	}

	if m.env.Rules.IsBlackout(day) {
		m.env.Logger.Printf("[Companion] %s: day %d is a blackout day", m.entity, day)
		return m.RequestTransition(ctx, wire.StateUnavailable, wire.NoPeer)
	}

	m.loadDialogue()
	m.recruitedToday = false
	return m.RequestTransition(ctx, wire.StateAvailable, wire.NoPeer)
}

// Claim arbitrates a claim from requester. Rejections are reported to the
// requester only and are not errors. Authority only.
func (m *Machine) Claim(ctx context.Context, requester wire.PeerID) (Outcome, error) {
	if err := m.ready(); err != nil {
		return Outcome{}, err
	}
	if !m.env.Session.IsAuthority() {
		return Outcome{}, fmt.Errorf("%s: claim: %w", m.entity, ErrNotAuthority)
	}
	if requester.IsNone() {
		return Outcome{}, fmt.Errorf("%s: claim without a requester", m.entity)
	}

	if m.current != wire.StateAvailable {
		if m.current == wire.StateRecruited && m.owner == requester {
			return m.reject(ctx, requester, wire.RejectAlreadyYours)
		}
		return m.reject(ctx, requester, wire.RejectTaken)
	}

	if held := m.env.registry.HeldBy(requester, m.entity); len(held) >= m.env.Rules.MaxPerPeer {
		return m.reject(ctx, requester, wire.RejectNotFree)
	}

	m.env.Affinity.ChangeFriendship(requester, m.entity, m.env.Rules.FriendshipBonus)
	if err := m.RequestTransition(ctx, wire.StateRecruited, requester); err != nil {
		return Outcome{Accepted: true}, err
	}
	m.env.events.Info("claim_accepted", map[string]any{"entity": string(m.entity), "peer": string(requester)})
	return Outcome{Accepted: true}, nil
}

func (m *Machine) reject(ctx context.Context, requester wire.PeerID, reason wire.RejectReason) (Outcome, error) {
	m.env.events.Info("claim_rejected", map[string]any{
		"entity": string(m.entity),
		"peer":   string(requester),
		"reason": string(reason),
		"state":  string(m.current),
		"owner":  string(m.owner),
	})
	out := Outcome{Reason: reason}
	err := m.env.Bus.SendTo(ctx, requester, &wire.ClaimRejected{Entity: m.entity, Reason: reason})
	return out, err
}

// Dismiss releases a recruited companion: Reset, hand the body back, then
// Unavailable. Authority only.
func (m *Machine) Dismiss(ctx context.Context, claimant wire.PeerID, keepOthersBlocked bool) error {
	if err := m.ready(); err != nil {
		return err
	}
	if !m.env.Session.IsAuthority() {
		return fmt.Errorf("%s: dismiss: %w", m.entity, ErrNotAuthority)
	}
	if m.current != wire.StateRecruited {
		m.env.Logger.Printf("[Companion] %s: dismiss ignored in state %s", m.entity, m.current)
		return nil
	}
	if !claimant.IsNone() && claimant != m.owner {
		return fmt.Errorf("%s: dismiss by %s: %w", m.entity, claimant, ErrNotOwner)
	}

	owner := m.owner
	if err := m.RequestTransition(ctx, wire.StateReset, wire.NoPeer); err != nil {
		return err
	}
	if integ := m.Capabilities().Integrator; integ != nil {
		if err := integ.Reintegrate(ctx); err != nil {
			return err
		}
	}
	if err := m.RequestTransition(ctx, wire.StateUnavailable, wire.NoPeer); err != nil {
		return err
	}

	m.env.events.Info("companion_dismissed", map[string]any{
		"entity":              string(m.entity),
		"owner":               string(owner),
		"keep_others_blocked": keepOthersBlocked,
	})
	return m.env.registry.CompanionDismissed(ctx, keepOthersBlocked)
}

// ResolveDialogueRequest builds the dialogue for a player's interaction, if the
// current state supports it.
func (m *Machine) ResolveDialogueRequest(ctx context.Context, requester wire.PeerID) error {
	if err := m.ready(); err != nil {
		return err
	}
	creator := m.Capabilities().DialogueCreator
	if creator == nil {
		return nil
	}
	return creator.CreateRequestedDialogue(ctx, requester)
}

// Answer forwards a player's answer to the current state, if it listens for one.
//
// A "yes" to askToFollow that reaches the authority after the companion left
// Available is arbitrated as a claim, so the late peer hears why it lost.
func (m *Machine) Answer(ctx context.Context, from wire.PeerID, question, choice string) error {
	if err := m.ready(); err != nil {
		return err
	}
	if question == QuestionAskToFollow && m.current != wire.StateAvailable && m.env.Session.IsAuthority() {
		m.env.registry.clearPending(from, m.entity)
		if choice != ChoiceYes {
			return nil
		}
		_, err := m.Claim(ctx, from)
		return err
	}
	detector := m.Capabilities().DialogueDetector
	if detector == nil {
		m.env.Logger.Printf("[Companion] %s: answer %s=%s ignored in state %s", m.entity, question, choice, m.current)
		return nil
	}
	return detector.OnAnswer(ctx, from, question, choice)
}

// PlayerWarped handles the owner's location change. Authority only.
func (m *Machine) PlayerWarped(ctx context.Context, from wire.PeerID, fromLoc, toLoc string) error {
	if err := m.ready(); err != nil {
		return err
	}
	if !m.env.Session.IsAuthority() {
		return fmt.Errorf("%s: warp: %w", m.entity, ErrNotAuthority)
	}
	rs, ok := m.states[m.current].(*recruitedState)
	if !ok || m.owner != from {
		// a warp that raced a dismissal
		m.env.Logger.Printf("[Companion] %s: warp from %s ignored in state %s", m.entity, from, m.current)
		return nil
	}
	return rs.playerHasWarped(ctx, fromLoc, toLoc)
}

// Dispose releases the current state and the state table.
func (m *Machine) Dispose() {
	if m.states == nil {
		return
	}
	m.states[m.current].Exit(context.Background())
	m.scope.Close()
	m.states = nil
}

func (m *Machine) ready() error {
	if m.states == nil {
		return fmt.Errorf("%s: %w", m.entity, ErrNotSetup)
	}
	return nil
}

// loadDialogue indexes the companion's dialogue lines. When the companion is
// married to the local player its spouse lines override the plain ones.
func (m *Machine) loadDialogue() {
	m.dialogue = map[string]string{}

	assets := []string{"Dialogue/" + m.name}
	if m.env.Affinity.IsSpouse(m.env.Session.Local, m.entity) {
		assets = append(assets, "Dialogue/"+m.name+"Spouse")
	}
	for i, asset := range assets {
		table, err := m.env.Content.LoadStrings(asset)
		if err != nil {
			if i == 0 {
				m.env.Logger.Printf("[Companion] %s: no dialogue table: %v", m.entity, err)
			}
			continue
		}
		for line := range table {
			m.dialogue[line] = asset
		}
	}
}

// lineKey returns the content key of a companion line, preferring the
// companion's own dialogue over the shared strings.
func (m *Machine) lineKey(line string) string {
	if asset, ok := m.dialogue[line]; ok {
		return asset + ":" + line
	}
	return "Strings/Strings:" + line
}

func (m *Machine) say(ctx context.Context, to wire.PeerID, line string) error {
	return m.env.Bus.SendTo(ctx, to, &wire.Dialogue{
		Entity: m.entity,
		Key:    m.lineKey(line),
		Args:   []string{m.name},
	})
}
