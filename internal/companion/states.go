package companion

import (
	"context"

	"github.com/dyluth/retinue/pkg/wire"
)

// Question ids and their choices.
const (
	QuestionAskToFollow   = "askToFollow"
	QuestionSuggest       = "companionSuggest"
	QuestionRecruitedWant = "recruitedWant"

	ChoiceYes     = "yes"
	ChoiceNo      = "no"
	ChoiceBag     = "bag"
	ChoiceDismiss = "dismiss"
	ChoiceNothing = "nothing"
)

// resetState is the day-boundary state. Its integrator sends the body home.
type resetState struct {
	m *Machine
}

func (s *resetState) Flag() wire.StateFlag { return wire.StateReset }

func (s *resetState) Entry(context.Context, *Scope, wire.PeerID) error { return nil }

func (s *resetState) Exit(context.Context) {}

func (s *resetState) Capabilities() Capabilities {
	return Capabilities{Integrator: s}
}

func (s *resetState) Reintegrate(context.Context) error {
	s.m.env.World.ReturnHome(s.m.entity)
	return nil
}

// unavailableState has no behaviour: the companion ignores recruitment until the
// next session day.
type unavailableState struct {
	m *Machine
}

func (s *unavailableState) Flag() wire.StateFlag { return wire.StateUnavailable }

func (s *unavailableState) Entry(context.Context, *Scope, wire.PeerID) error { return nil }

func (s *unavailableState) Exit(context.Context) {}

func (s *unavailableState) Capabilities() Capabilities { return Capabilities{} }
