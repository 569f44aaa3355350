package world

import (
	"slices"
	"sync"

	"github.com/dyluth/retinue/pkg/wire"
)

// Perks records which companions currently grant their perks to which owner.
type Perks struct {
	mu     sync.Mutex
	active map[wire.PeerID][]wire.EntityID
}

// NewPerks creates an empty perk table.
func NewPerks() *Perks {
	return &Perks{active: make(map[wire.PeerID][]wire.EntityID)}
}

// Apply grants entity's perks to owner.
func (p *Perks) Apply(owner wire.PeerID, entity wire.EntityID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !slices.Contains(p.active[owner], entity) {
		p.active[owner] = append(p.active[owner], entity)
	}
}

// Release withdraws entity's perks from owner.
func (p *Perks) Release(owner wire.PeerID, entity wire.EntityID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active[owner] = slices.DeleteFunc(p.active[owner], func(e wire.EntityID) bool { return e == entity })
	if len(p.active[owner]) == 0 {
		delete(p.active, owner)
	}
}

// Active returns the companions granting perks to owner.
func (p *Perks) Active(owner wire.PeerID) []wire.EntityID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.active[owner])
}
