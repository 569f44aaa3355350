package world

import (
	"fmt"

	"github.com/dyluth/retinue/internal/companion"
	"github.com/dyluth/retinue/pkg/wire"
)

// Follower walks a recruited companion after its owner. It never handles
// interactions itself, so talking to the companion opens the recruited menu.
type Follower struct {
	entity wire.EntityID
	owner  wire.PeerID
	bodies *Bodies

	ticks    uint64
	disposed bool
}

// NewFollowerFactory returns the AI factory for followers moving bodies.
func NewFollowerFactory(bodies *Bodies) companion.AIFactory {
	return func(entity wire.EntityID, owner wire.PeerID) companion.AIController {
		return &Follower{entity: entity, owner: owner, bodies: bodies}
	}
}

// PerformAction declines every interaction.
func (f *Follower) PerformAction() bool { return false }

// ChangeLocation follows the owner to target.
func (f *Follower) ChangeLocation(target string) {
	if f.disposed {
		return
	}
	f.bodies.Move(f.entity, target)
}

// Update records the latest tick.
func (f *Follower) Update(tick uint64) {
	if f.disposed {
		return
	}
	f.ticks = tick
}

// Activity describes what the follower is doing.
func (f *Follower) Activity() string {
	if f.disposed {
		return "idle"
	}
	return fmt.Sprintf("following %s", f.owner)
}

// Dispose stops the follower.
func (f *Follower) Dispose() { f.disposed = true }
