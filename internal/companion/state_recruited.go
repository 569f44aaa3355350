package companion

import (
	"context"
	"fmt"

	"github.com/dyluth/retinue/pkg/wire"
)

// recruitedState is active while one peer owns the companion.
type recruitedState struct {
	m *Machine

	owner            wire.PeerID
	ai               AIController
	locationDialogue string
}

func (s *recruitedState) Flag() wire.StateFlag { return wire.StateRecruited }

func (s *recruitedState) Entry(_ context.Context, scope *Scope, claimant wire.PeerID) error {
	env := s.m.env
	s.owner = claimant

	if env.Session.IsAuthority() {
		s.ai = env.AI(s.m.entity, claimant)
		scope.Defer(func() {
			s.ai.Dispose()
			s.ai = nil
		})
		scope.Defer(env.Hub.OnTick(s.ticked))
		scope.Defer(env.Hub.OnTimeChanged(s.timeChanged))
	}

	if env.Session.IsLocal(claimant) {
		env.Buffs.Apply(claimant, s.m.entity)
		scope.Defer(func() { env.Buffs.Release(claimant, s.m.entity) })
		scope.Defer(env.Hub.OnWarp(s.warped))
		env.UI.ShowDialogue(s.m.entity, s.m.lineKey("companionRecruited"), []string{s.m.name})
	}
	return nil
}

func (s *recruitedState) Exit(context.Context) {
	s.owner = wire.NoPeer
	s.locationDialogue = ""
}

func (s *recruitedState) Capabilities() Capabilities {
	return Capabilities{DialogueCreator: s, DialogueDetector: s}
}

// warped runs on the owner's peer and reports the move to the authority.
func (s *recruitedState) warped(ctx context.Context, from, to string) error {
	return s.m.env.Bus.Send(ctx, &wire.LocationWarped{Entity: s.m.entity, From: from, To: to})
}

// playerHasWarped runs on the authority once the owner's warp arrives.
func (s *recruitedState) playerHasWarped(ctx context.Context, _, to string) error {
	env := s.m.env
	if env.World.Location(s.m.entity) != to {
		env.Logger.Printf("[Companion] %s: following %s to %s", s.m.entity, s.owner, to)
		s.ai.ChangeLocation(to)
	}

	key := "Dialogue/" + s.m.name + ":companion_" + to
	if _, ok := env.Content.LoadString(key); !ok || key == s.locationDialogue {
		return nil
	}
	s.locationDialogue = key
	return env.Bus.SendTo(ctx, s.owner, &wire.Dialogue{Entity: s.m.entity, Key: key, Args: []string{s.m.name}})
}

func (s *recruitedState) ticked(ctx context.Context, tick uint64) error {
	env := s.m.env
	if s.ai == nil {
		return nil
	}
	s.ai.Update(tick)

	every := env.Rules.ReconcileEvery
	if every == 0 || tick%every != 0 {
		return nil
	}
	env.World.Reconcile(s.m.entity)

	status := wire.Status{
		Location: env.World.Location(s.m.entity),
		Activity: s.ai.Activity(),
		Health:   env.World.Health(s.m.entity),
		Tick:     tick,
	}
	return env.Bus.SendTo(ctx, s.owner, &wire.PeriodicStatus{Entity: s.m.entity, Payload: status.Payload()})
}

func (s *recruitedState) timeChanged(ctx context.Context, now int) error {
	env := s.m.env
	if now < env.Rules.AutoReleaseAt {
		return nil
	}

	owner := s.owner
	env.Logger.Printf("[Companion] %s: auto-release at %04d", s.m.entity, now)
	if err := s.m.say(ctx, owner, "companionDismissAuto"); err != nil {
		return err
	}
	return s.m.Dismiss(ctx, wire.NoPeer, false)
}

// CreateRequestedDialogue lets the AI handle the interaction, or opens the
// recruited menu for the owner.
func (s *recruitedState) CreateRequestedDialogue(ctx context.Context, requester wire.PeerID) error {
	env := s.m.env
	if !env.Session.IsAuthority() {
		return ErrNotAuthority
	}
	if requester != s.owner {
		return s.m.say(ctx, requester, "companionBusy")
	}
	if s.ai != nil && s.ai.PerformAction() {
		return nil
	}
	return env.Bus.SendTo(ctx, s.owner, &wire.QuestionAsked{
		Entity:   s.m.entity,
		Question: QuestionRecruitedWant,
		Options:  []string{ChoiceBag, ChoiceDismiss, ChoiceNothing},
	})
}

func (s *recruitedState) OnAnswer(ctx context.Context, from wire.PeerID, question, choice string) error {
	if question != QuestionRecruitedWant {
		return nil
	}
	if !s.m.env.Session.IsAuthority() {
		return ErrNotAuthority
	}
	if from != s.owner {
		return fmt.Errorf("%s: %s answered %s: %w", s.m.entity, from, question, ErrNotOwner)
	}

	switch choice {
	case ChoiceDismiss:
		owner := s.owner
		if err := s.m.say(ctx, owner, "companionDismiss"); err != nil {
			return err
		}
		return s.m.Dismiss(ctx, owner, true)
	case ChoiceBag:
		blob, err := wire.EncodeBlob(s.m.bag)
		if err != nil {
			return err
		}
		return s.m.env.Bus.SendTo(ctx, s.owner, &wire.InventoryHandoff{Entity: s.m.entity, Blob: blob})
	default:
		return nil
	}
}
