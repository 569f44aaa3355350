package companion

import (
	"context"

	"github.com/dyluth/retinue/pkg/wire"
)

// availableState lets any peer claim the companion.
//
// On every peer it may nudge the local player with a suggestion to go on an
// adventure. On the authority it asks the askToFollow question and turns a
// "yes" into a claim.
type availableState struct {
	m *Machine

	suggesting    bool
	doNotAskUntil int
}

func (s *availableState) Flag() wire.StateFlag { return wire.StateAvailable }

func (s *availableState) Entry(_ context.Context, scope *Scope, _ wire.PeerID) error {
	scope.Defer(s.m.env.Hub.OnTimeChanged(s.timeChanged))
	return nil
}

func (s *availableState) Exit(context.Context) {
	s.suggesting = false
	s.doNotAskUntil = 0
	s.m.env.registry.clearPendingFor(s.m.entity)
}

func (s *availableState) Capabilities() Capabilities {
	return Capabilities{DialogueCreator: s, DialogueDetector: s}
}

func (s *availableState) timeChanged(ctx context.Context, now int) error {
	env := s.m.env
	local := env.Session.Local
	hearts := env.Affinity.Hearts(local, s.m.entity)

	if s.suggesting {
		if now >= env.Rules.AutoReleaseAt || hearts <= env.Rules.MinHearts {
			s.suggesting = false
		}
		return nil
	}
	if now < s.doNotAskUntil || now >= env.Rules.AutoReleaseAt || hearts <= env.Rules.MinHearts {
		return nil
	}

	chance := env.Rules.SuggestChance * float64(hearts)
	if env.Affinity.HasSpouse(local) {
		chance /= 2
	}
	if env.Random.Float64() >= chance {
		return nil
	}

	s.suggesting = true
	return env.Bus.SendTo(ctx, local, &wire.QuestionAsked{
		Entity:   s.m.entity,
		Question: QuestionSuggest,
		Options:  []string{ChoiceYes, ChoiceNo},
	})
}

// CreateRequestedDialogue asks the requester whether the companion should follow.
func (s *availableState) CreateRequestedDialogue(ctx context.Context, requester wire.PeerID) error {
	env := s.m.env
	if !env.Session.IsAuthority() {
		return ErrNotAuthority
	}
	env.registry.setPending(requester, s.m.entity)
	return env.Bus.SendTo(ctx, requester, &wire.QuestionAsked{
		Entity:   s.m.entity,
		Question: QuestionAskToFollow,
		Options:  []string{ChoiceYes, ChoiceNo},
	})
}

func (s *availableState) OnAnswer(ctx context.Context, from wire.PeerID, question, choice string) error {
	switch question {
	case QuestionSuggest:
		return s.suggestionAnswered(ctx, choice)
	case QuestionAskToFollow:
		return s.askToFollowAnswered(ctx, from, choice)
	default:
		return nil
	}
}

// suggestionAnswered runs on the peer whose player got the suggestion.
func (s *availableState) suggestionAnswered(ctx context.Context, choice string) error {
	env := s.m.env
	s.suggesting = false

	if choice != ChoiceYes {
		s.doNotAskUntil = env.Hub.Now() + env.Rules.SuggestCooldown
		env.UI.ShowDialogue(s.m.entity, s.m.lineKey("companionSuggest_No"), []string{s.m.name})
		return nil
	}

	env.UI.ShowDialogue(s.m.entity, s.m.lineKey("companionSuggest_Yes"), []string{s.m.name})
	return env.Bus.Send(ctx, &wire.QuestionAnswered{
		Entity:   s.m.entity,
		Question: QuestionAskToFollow,
		Choice:   ChoiceYes,
	})
}

// askToFollowAnswered runs on the authority.
func (s *availableState) askToFollowAnswered(ctx context.Context, from wire.PeerID, choice string) error {
	env := s.m.env
	if !env.Session.IsAuthority() {
		return ErrNotAuthority
	}
	env.registry.clearPending(from, s.m.entity)

	if choice != ChoiceYes {
		return nil
	}

	now := env.Hub.Now()
	if env.Affinity.Hearts(from, s.m.entity) <= env.Rules.MinHearts || now >= env.Rules.AutoReleaseAt {
		line := "companionRejected"
		if now >= env.Rules.AutoReleaseAt {
			line = "companionRejectedNight"
		}
		if err := s.m.say(ctx, from, line); err != nil {
			return err
		}
		return s.m.RequestTransition(ctx, wire.StateUnavailable, wire.NoPeer)
	}

	out, err := s.m.Claim(ctx, from)
	if err != nil {
		return err
	}
	if out.Accepted {
		return s.m.say(ctx, from, "companionAccepted")
	}
	return nil
}
