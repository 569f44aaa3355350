package companion

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/dyluth/retinue/pkg/wire"
)

// Registry maps entity ids to their machines and does the slot accounting for
// recruited companions.
//
// Slots are counted on every peer from applied transitions, so replicas agree
// with the authority. Blocking and pending claims are authority-only
// bookkeeping.
type Registry struct {
	env      *Env
	machines map[wire.EntityID]*Machine

	occupiedSlots map[wire.EntityID]bool
	blocked       map[wire.EntityID]bool
	pending       map[wire.PeerID]wire.EntityID
}

// NewRegistry creates the registry of one peer. env is completed with defaults
// and bound to the registry.
func NewRegistry(env *Env) (*Registry, error) {
	if err := env.validate(); err != nil {
		return nil, err
	}
	env.init()

	r := &Registry{
		env:           env,
		machines:      make(map[wire.EntityID]*Machine),
		occupiedSlots: make(map[wire.EntityID]bool),
		blocked:       make(map[wire.EntityID]bool),
		pending:       make(map[wire.PeerID]wire.EntityID),
	}
	env.registry = r
	return r, nil
}

// Register creates and sets up the machine for entity.
func (r *Registry) Register(entity wire.EntityID, name string) (*Machine, error) {
	if entity == "" {
		return nil, fmt.Errorf("entity id cannot be empty")
	}
	if _, exists := r.machines[entity]; exists {
		return nil, fmt.Errorf("companion %s is already registered", entity)
	}
	if name == "" {
		name = string(entity)
	}

	m := newMachine(r.env, entity, name)
	if err := m.Setup(); err != nil {
		return nil, err
	}
	r.machines[entity] = m
	return m, nil
}

// Lookup returns the machine for entity. An unknown entity is a desync.
func (r *Registry) Lookup(entity wire.EntityID) (*Machine, error) {
	m, ok := r.machines[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, entity)
	}
	return m, nil
}

// All returns every machine ordered by entity id.
func (r *Registry) All() []*Machine {
	out := make([]*Machine, 0, len(r.machines))
	for _, m := range r.machines {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].entity < out[j].entity })
	return out
}

// OwnedBy returns the machines recruited by peer.
func (r *Registry) OwnedBy(peer wire.PeerID) []*Machine {
	var out []*Machine
	for _, m := range r.All() {
		if m.current == wire.StateRecruited && m.owner == peer {
			out = append(out, m)
		}
	}
	return out
}

// HeldBy returns the entities other than except that peer holds, either
// recruited or with a claim question still open.
func (r *Registry) HeldBy(peer wire.PeerID, except wire.EntityID) []wire.EntityID {
	var out []wire.EntityID
	for _, m := range r.OwnedBy(peer) {
		if m.entity != except {
			out = append(out, m.entity)
		}
	}
	if e, ok := r.pending[peer]; ok && e != except && !slices.Contains(out, e) {
		out = append(out, e)
	}
	return out
}

// Capacity is the number of companions that may be recruited at once.
func (r *Registry) Capacity() int {
	if r.env.Rules.Capacity > 0 {
		return r.env.Rules.Capacity
	}
	return len(r.machines)
}

// FreeSlots returns how many more companions may be recruited.
func (r *Registry) FreeSlots() int {
	free := r.Capacity() - len(r.occupiedSlots)
	if free < 0 {
		return 0
	}
	return free
}

// Blocked returns the entities made unavailable by an exclusive recruitment.
func (r *Registry) Blocked() []wire.EntityID {
	out := make([]wire.EntityID, 0, len(r.blocked))
	for e := range r.blocked {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NewSession starts a session day on every machine. Authority only.
func (r *Registry) NewSession(ctx context.Context, day int) error {
	if !r.env.Session.IsAuthority() {
		return fmt.Errorf("new session: %w", ErrNotAuthority)
	}
	r.blocked = make(map[wire.EntityID]bool)
	r.pending = make(map[wire.PeerID]wire.EntityID)

	var errs []error
	for _, m := range r.All() {
		if err := m.NewSessionSetup(ctx, day); err != nil {
			errs = append(errs, err)
		}
	}
	r.env.events.Info("session_day_started", map[string]any{"day": day, "companions": len(r.machines)})
	return errors.Join(errs...)
}

// Snapshot returns the current state of every companion as StateChanged
// messages, for resyncing a late joiner.
func (r *Registry) Snapshot() []*wire.StateChanged {
	all := r.All()
	out := make([]*wire.StateChanged, 0, len(all))
	for _, m := range all {
		out = append(out, &wire.StateChanged{Entity: m.entity, NewState: m.current, Claimant: m.owner})
	}
	return out
}

// CompanionDismissed is called by Machine.Dismiss once the companion is
// unavailable. Unless keepOthersBlocked is set it re-opens the companions an
// exclusive recruitment blocked, once no companion is recruited any more.
func (r *Registry) CompanionDismissed(ctx context.Context, keepOthersBlocked bool) error {
	r.env.Logger.Printf("[Registry] Companion dismissed, %d/%d slots free", r.FreeSlots(), r.Capacity())
	if keepOthersBlocked || len(r.occupiedSlots) > 0 || len(r.blocked) == 0 {
		return nil
	}

	var errs []error
	for _, e := range r.Blocked() {
		delete(r.blocked, e)
		m := r.machines[e]
		if m == nil || m.current != wire.StateUnavailable {
			continue
		}
		if err := m.RequestTransition(ctx, wire.StateAvailable, wire.NoPeer); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dispose disposes every machine.
func (r *Registry) Dispose() {
	for _, m := range r.machines {
		m.Dispose()
	}
}

func (r *Registry) occupied(entity wire.EntityID) {
	r.occupiedSlots[entity] = true
	for p, e := range r.pending {
		if e == entity {
			delete(r.pending, p)
		}
	}
}

func (r *Registry) released(entity wire.EntityID) {
	delete(r.occupiedSlots, entity)
}

// companionRecruited runs on the authority after a recruitment was applied.
func (r *Registry) companionRecruited(ctx context.Context, entity wire.EntityID) error {
	if !r.env.Rules.Exclusive {
		return nil
	}
	var errs []error
	for _, m := range r.All() {
		if m.entity == entity || m.current != wire.StateAvailable {
			continue
		}
		r.blocked[m.entity] = true
		if err := m.RequestTransition(ctx, wire.StateUnavailable, wire.NoPeer); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) setPending(peer wire.PeerID, entity wire.EntityID) {
	r.pending[peer] = entity
}

func (r *Registry) clearPending(peer wire.PeerID, entity wire.EntityID) {
	if r.pending[peer] == entity {
		delete(r.pending, peer)
	}
}

func (r *Registry) clearPendingFor(entity wire.EntityID) {
	for p, e := range r.pending {
		if e == entity {
			delete(r.pending, p)
		}
	}
}
