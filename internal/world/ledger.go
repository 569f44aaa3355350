// Package world holds in-memory implementations of the companion collaborators
// for peers that run without a game attached: friendship, bodies, follower AI,
// perks and a terminal presenter.
package world

import (
	"sync"

	"github.com/dyluth/retinue/pkg/wire"
)

const (
	// PointsPerHeart is the friendship needed for one heart.
	PointsPerHeart = 250
	// MaxPoints caps friendship at ten hearts.
	MaxPoints = 10 * PointsPerHeart
)

type bond struct {
	peer   wire.PeerID
	entity wire.EntityID
}

// Ledger tracks friendship points between players and companions.
type Ledger struct {
	mu      sync.Mutex
	points  map[bond]int
	spouses map[wire.PeerID]wire.EntityID
	// base is the friendship of pairs that never changed.
	base int
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		points:  make(map[bond]int),
		spouses: make(map[wire.PeerID]wire.EntityID),
	}
}

// SetBaseHearts sets the hearts every pair starts with.
func (l *Ledger) SetBaseHearts(hearts int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.base = clampPoints(hearts * PointsPerHeart)
}

// SetHearts sets the friendship between peer and entity to a whole number of hearts.
func (l *Ledger) SetHearts(peer wire.PeerID, entity wire.EntityID, hearts int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.points[bond{peer, entity}] = clampPoints(hearts * PointsPerHeart)
}

// Hearts returns the full hearts peer has with entity.
func (l *Ledger) Hearts(peer wire.PeerID, entity wire.EntityID) int {
	return l.Points(peer, entity) / PointsPerHeart
}

// Points returns the raw friendship points.
func (l *Ledger) Points(peer wire.PeerID, entity wire.EntityID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pointsLocked(bond{peer, entity})
}

func (l *Ledger) pointsLocked(b bond) int {
	if p, ok := l.points[b]; ok {
		return p
	}
	return l.base
}

// ChangeFriendship adds delta points, clamped to [0, MaxPoints].
func (l *Ledger) ChangeFriendship(peer wire.PeerID, entity wire.EntityID, delta int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := bond{peer, entity}
	l.points[b] = clampPoints(l.pointsLocked(b) + delta)
}

// Marry records entity as peer's spouse.
func (l *Ledger) Marry(peer wire.PeerID, entity wire.EntityID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.spouses[peer] = entity
}

// HasSpouse reports whether peer is married.
func (l *Ledger) HasSpouse(peer wire.PeerID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.spouses[peer]
	return ok
}

// IsSpouse reports whether peer is married to entity.
func (l *Ledger) IsSpouse(peer wire.PeerID, entity wire.EntityID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	spouse, ok := l.spouses[peer]
	return ok && spouse == entity
}

func clampPoints(p int) int {
	return min(max(p, 0), MaxPoints)
}
