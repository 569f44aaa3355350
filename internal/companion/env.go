package companion

import (
	"fmt"
	"log"
	"math/rand"
	"slices"

	"github.com/dyluth/retinue/internal/eventlog"
	"github.com/dyluth/retinue/internal/session"
	"github.com/dyluth/retinue/pkg/wire"
)

// Rules are the tunables of recruitment.
type Rules struct {
	// AutoReleaseAt is the time of day (HHMM) after which recruiting is refused
	// and recruited companions are sent home.
	AutoReleaseAt int

	// BlackoutDays are session days on which every companion is unavailable.
	BlackoutDays []int

	// Exclusive makes every other available companion unavailable while one is
	// recruited.
	Exclusive bool

	// Capacity is how many companions may be recruited at once across the session.
	// Zero means one slot per registered companion.
	Capacity int

	// MaxPerPeer is how many companions one peer may hold, recruited or with an
	// open claim question.
	MaxPerPeer int

	ReconcileEvery  uint64
	FriendshipBonus int
	MinHearts       int
	SuggestChance   float64
	SuggestCooldown int
}

// DefaultRules returns the stock recruitment rules.
func DefaultRules() Rules {
	return Rules{
		AutoReleaseAt:   2200,
		MaxPerPeer:      1,
		ReconcileEvery:  20,
		FriendshipBonus: 40,
		MinHearts:       4,
		SuggestChance:   0.066,
		SuggestCooldown: 200,
	}
}

// IsBlackout reports whether day is a blackout day.
func (r Rules) IsBlackout(day int) bool {
	return slices.Contains(r.BlackoutDays, day)
}

// Env is everything the machines of one peer share.
type Env struct {
	Session  session.Context
	Bus      Sender
	Hub      *Hub
	Rules    Rules
	Content  ContentLoader
	World    World
	Affinity Affinity
	Buffs    Buffs
	AI       AIFactory
	UI       Presenter
	Random   Random
	Logger   *log.Logger

	registry *Registry
	events   *eventlog.Logger
}

func (e *Env) validate() error {
	if err := e.Session.Validate(); err != nil {
		return err
	}
	if e.Bus == nil {
		return fmt.Errorf("env: bus is required")
	}
	if e.Hub == nil {
		return fmt.Errorf("env: hub is required")
	}
	if e.Content == nil || e.World == nil || e.Affinity == nil || e.UI == nil {
		return fmt.Errorf("env: content, world, affinity and UI collaborators are required")
	}
	if e.AI == nil {
		return fmt.Errorf("env: AI factory is required")
	}
	return nil
}

func (e *Env) init() {
	if e.Logger == nil {
		e.Logger = log.Default()
	}
	if e.Random == nil {
		e.Random = rand.New(rand.NewSource(rand.Int63()))
	}
	if e.Rules.MaxPerPeer <= 0 {
		e.Rules.MaxPerPeer = 1
	}
	if e.Buffs == nil {
		e.Buffs = noBuffs{}
	}
	e.events = eventlog.New(e.Logger, "companion", e.Session.Session)
}

type noBuffs struct{}

func (noBuffs) Apply(wire.PeerID, wire.EntityID)   {}
func (noBuffs) Release(wire.PeerID, wire.EntityID) {}
