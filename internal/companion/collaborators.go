package companion

import (
	"context"

	"github.com/dyluth/retinue/pkg/wire"
)

// Sender is the part of the event bus the machines use.
type Sender interface {
	Send(ctx context.Context, msg wire.Message) error
	SendTo(ctx context.Context, to wire.PeerID, msg wire.Message) error
	Broadcast(ctx context.Context, msg wire.Message) error
}

// ContentLoader resolves text by content key, e.g. "Strings/Strings:askToFollow".
type ContentLoader interface {
	LoadString(key string, args ...any) (string, bool)
	LoadStrings(asset string) (map[string]string, error)
}

// AIController drives a recruited companion's behaviour. It only exists on the
// authority, for as long as the companion stays recruited.
type AIController interface {
	// PerformAction lets the controller handle an interaction. It returns false
	// when the controller declines and the recruited menu should open instead.
	PerformAction() bool
	ChangeLocation(target string)
	Update(tick uint64)
	Activity() string
	Dispose()
}

// AIFactory builds the controller for a freshly recruited companion.
type AIFactory func(entity wire.EntityID, owner wire.PeerID) AIController

// World is the companion's body in the game world.
type World interface {
	Location(entity wire.EntityID) string
	Health(entity wire.EntityID) int
	// Reconcile resets body fields the game loop may have overwritten.
	Reconcile(entity wire.EntityID)
	// ReturnHome hands the body back to its normal schedule.
	ReturnHome(entity wire.EntityID)
}

// Affinity tracks friendship between players and companions.
type Affinity interface {
	Hearts(peer wire.PeerID, entity wire.EntityID) int
	ChangeFriendship(peer wire.PeerID, entity wire.EntityID, delta int)
	HasSpouse(peer wire.PeerID) bool
	IsSpouse(peer wire.PeerID, entity wire.EntityID) bool
}

// Buffs grants a recruited companion's perks to its owner.
type Buffs interface {
	Apply(owner wire.PeerID, entity wire.EntityID)
	Release(owner wire.PeerID, entity wire.EntityID)
}

// Presenter is the local player's UI.
type Presenter interface {
	ShowDialogue(entity wire.EntityID, key string, args []string)
	AskQuestion(entity wire.EntityID, question string, options []string)
	OpenInventory(entity wire.EntityID, inv wire.Inventory)
	ShowStatus(entity wire.EntityID, status wire.Status)
	Notify(entity wire.EntityID, text string)
}

// Random is satisfied by *math/rand.Rand.
type Random interface {
	Float64() float64
}
