package world

import (
	"log"
	"sync"

	"github.com/dyluth/retinue/pkg/wire"
)

// FullHealth is a body's health after a night at home.
const FullHealth = 100

type body struct {
	home     string
	location string
	// target is where the follower last led the body; empty while at home.
	target string
	health int
}

// Bodies tracks where each companion is.
type Bodies struct {
	mu     sync.Mutex
	bodies map[wire.EntityID]*body
	logger *log.Logger
}

// NewBodies places every companion at its home.
func NewBodies(homes map[wire.EntityID]string, logger *log.Logger) *Bodies {
	if logger == nil {
		logger = log.Default()
	}
	b := &Bodies{bodies: make(map[wire.EntityID]*body, len(homes)), logger: logger}
	for id, home := range homes {
		b.bodies[id] = &body{home: home, location: home, health: FullHealth}
	}
	return b
}

func (b *Bodies) get(entity wire.EntityID) *body {
	bd, ok := b.bodies[entity]
	if !ok {
		bd = &body{health: FullHealth}
		b.bodies[entity] = bd
	}
	return bd
}

// Location returns where entity is.
func (b *Bodies) Location(entity wire.EntityID) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.get(entity).location
}

// Health returns entity's health.
func (b *Bodies) Health(entity wire.EntityID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.get(entity).health
}

// Move leads entity to location.
func (b *Bodies) Move(entity wire.EntityID, location string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bd := b.get(entity)
	bd.location = location
	bd.target = location
}

// Place puts entity somewhere without leading it there, the way a game
// schedule moves a body on its own.
func (b *Bodies) Place(entity wire.EntityID, location string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.get(entity).location = location
}

// Hurt lowers entity's health, never below zero.
func (b *Bodies) Hurt(entity wire.EntityID, amount int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bd := b.get(entity)
	bd.health = max(bd.health-amount, 0)
}

// Reconcile moves a led body back to where the follower put it.
func (b *Bodies) Reconcile(entity wire.EntityID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bd := b.get(entity)
	if bd.target != "" && bd.location != bd.target {
		b.logger.Printf("[World] %s drifted to %s, restoring %s", entity, bd.location, bd.target)
		bd.location = bd.target
	}
}

// ReturnHome sends entity home and restores its health.
func (b *Bodies) ReturnHome(entity wire.EntityID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bd := b.get(entity)
	bd.location = bd.home
	bd.target = ""
	bd.health = FullHealth
}
