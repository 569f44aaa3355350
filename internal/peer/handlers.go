package peer

import (
	"context"
	"fmt"

	"github.com/dyluth/retinue/internal/bus"
	"github.com/dyluth/retinue/internal/companion"
	"github.com/dyluth/retinue/pkg/wire"
)

// ErrMisrouted is returned when a peer receives a message that only the
// authority handles, or a state change that did not come from the authority.
var ErrMisrouted = fmt.Errorf("%w: misrouted message", wire.ErrDesync)

func (p *Peer) registerHandlers() error {
	handlers := map[wire.Kind]bus.HandlerFunc{
		wire.KindClaimRequest:     p.authorityOnly(p.handleClaimRequest),
		wire.KindClaimRejected:    p.handleClaimRejected,
		wire.KindStateChanged:     p.handleStateChanged,
		wire.KindStateRequest:     p.authorityOnly(p.handleStateRequest),
		wire.KindDismissRequest:   p.authorityOnly(p.handleDismissRequest),
		wire.KindLocationWarped:   p.authorityOnly(p.handleLocationWarped),
		wire.KindDialogueRequest:  p.authorityOnly(p.handleDialogueRequest),
		wire.KindDialogue:         p.handleDialogue,
		wire.KindQuestionAsked:    p.handleQuestionAsked,
		wire.KindQuestionAnswered: p.handleQuestionAnswered,
		wire.KindInventoryHandoff: p.handleInventoryHandoff,
		wire.KindPeriodicStatus:   p.handlePeriodicStatus,
	}
	for _, kind := range wire.Kinds {
		if err := p.bus.Register(kind, handlers[kind]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Peer) authorityOnly(h bus.HandlerFunc) bus.HandlerFunc {
	return func(ctx context.Context, env wire.Envelope, msg wire.Message) error {
		if !p.sess.IsAuthority() {
			return fmt.Errorf("%w: %s reached replica %s", ErrMisrouted, env.Kind, p.sess.Local)
		}
		return h(ctx, env, msg)
	}
}

func (p *Peer) handleClaimRequest(ctx context.Context, env wire.Envelope, msg wire.Message) error {
	req := msg.(*wire.ClaimRequest)
	m, err := p.registry.Lookup(req.Entity)
	if err != nil {
		return err
	}
	_, err = m.Claim(ctx, env.From)
	return err
}

func (p *Peer) handleClaimRejected(_ context.Context, _ wire.Envelope, msg wire.Message) error {
	rej := msg.(*wire.ClaimRejected)
	if err := rej.Reason.Validate(); err != nil {
		return err
	}
	m, err := p.registry.Lookup(rej.Entity)
	if err != nil {
		return err
	}

	text, ok := p.collab.Content.LoadString("Strings/Strings:claim_"+string(rej.Reason), m.Name())
	if !ok {
		text = fmt.Sprintf("%s cannot be recruited (%s)", m.Name(), rej.Reason)
	}
	p.collab.UI.Notify(rej.Entity, text)
	return nil
}

func (p *Peer) handleStateChanged(ctx context.Context, env wire.Envelope, msg wire.Message) error {
	sc := msg.(*wire.StateChanged)
	if env.From != p.sess.Authority {
		return fmt.Errorf("%w: state change for %s from non-authority %s", ErrMisrouted, sc.Entity, env.From)
	}
	if err := sc.NewState.Validate(); err != nil {
		return err
	}
	m, err := p.registry.Lookup(sc.Entity)
	if err != nil {
		return err
	}

	prev := m.Current()
	if err := m.Apply(ctx, sc.NewState, sc.Claimant); err != nil {
		return err
	}
	if m.Current() != prev {
		p.dropPrompts(sc.Entity)
	}
	return nil
}

func (p *Peer) handleStateRequest(ctx context.Context, env wire.Envelope, _ wire.Message) error {
	snapshot := p.registry.Snapshot()
	p.events.Info("resync", map[string]any{"peer": string(env.From), "companions": len(snapshot)})
	for _, sc := range snapshot {
		if err := p.bus.SendTo(ctx, env.From, sc); err != nil {
			return err
		}
	}
	return nil
}

func (p *Peer) handleDismissRequest(ctx context.Context, env wire.Envelope, msg wire.Message) error {
	req := msg.(*wire.DismissRequest)
	m, err := p.registry.Lookup(req.Entity)
	if err != nil {
		return err
	}
	return m.Dismiss(ctx, env.From, true)
}

func (p *Peer) handleLocationWarped(ctx context.Context, env wire.Envelope, msg wire.Message) error {
	lw := msg.(*wire.LocationWarped)
	m, err := p.registry.Lookup(lw.Entity)
	if err != nil {
		return err
	}
	return m.PlayerWarped(ctx, env.From, lw.From, lw.To)
}

func (p *Peer) handleDialogueRequest(ctx context.Context, env wire.Envelope, msg wire.Message) error {
	req := msg.(*wire.DialogueRequest)
	m, err := p.registry.Lookup(req.Entity)
	if err != nil {
		return err
	}
	return m.ResolveDialogueRequest(ctx, env.From)
}

func (p *Peer) handleDialogue(_ context.Context, _ wire.Envelope, msg wire.Message) error {
	d := msg.(*wire.Dialogue)
	if _, err := p.registry.Lookup(d.Entity); err != nil {
		return err
	}
	p.collab.UI.ShowDialogue(d.Entity, d.Key, d.Args)
	return nil
}

func (p *Peer) handleQuestionAsked(_ context.Context, env wire.Envelope, msg wire.Message) error {
	q := msg.(*wire.QuestionAsked)
	if _, err := p.registry.Lookup(q.Entity); err != nil {
		return err
	}
	p.prompts[promptKey{entity: q.Entity, question: q.Question}] = Prompt{
		Entity:   q.Entity,
		Question: q.Question,
		Options:  q.Options,
		From:     env.From,
	}
	p.collab.UI.AskQuestion(q.Entity, q.Question, q.Options)
	return nil
}

func (p *Peer) handleQuestionAnswered(ctx context.Context, env wire.Envelope, msg wire.Message) error {
	a := msg.(*wire.QuestionAnswered)
	m, err := p.registry.Lookup(a.Entity)
	if err != nil {
		return err
	}
	return m.Answer(ctx, env.From, a.Question, a.Choice)
}

// handleInventoryHandoff opens a bag sent by the authority, or, on the
// authority, stores the bag its owner sent back.
func (p *Peer) handleInventoryHandoff(_ context.Context, env wire.Envelope, msg wire.Message) error {
	h := msg.(*wire.InventoryHandoff)
	m, err := p.registry.Lookup(h.Entity)
	if err != nil {
		return err
	}
	inv, err := wire.DecodeBlob(h.Blob)
	if err != nil {
		return fmt.Errorf("bag of %s: %w", h.Entity, err)
	}

	switch {
	case env.From == p.sess.Authority:
		p.collab.UI.OpenInventory(h.Entity, inv)
	case p.sess.IsAuthority() && m.Current() == wire.StateRecruited && env.From == m.Owner():
		m.SetBag(inv)
		p.logger.Printf("[Peer] Stored bag of %s from %s (%d items)", h.Entity, env.From, len(inv.Items))
	default:
		return fmt.Errorf("%s: bag from %s: %w", h.Entity, env.From, companion.ErrNotOwner)
	}
	return nil
}

func (p *Peer) handlePeriodicStatus(_ context.Context, _ wire.Envelope, msg wire.Message) error {
	ps := msg.(*wire.PeriodicStatus)
	m, err := p.registry.Lookup(ps.Entity)
	if err != nil {
		return err
	}
	status, err := wire.DecodeStatus(ps.Payload)
	if err != nil {
		return fmt.Errorf("status of %s: %w", ps.Entity, err)
	}
	m.RecordStatus(status)
	p.collab.UI.ShowStatus(ps.Entity, status)
	return nil
}

func (p *Peer) dropPrompts(entity wire.EntityID) {
	for k := range p.prompts {
		if k.entity == entity {
			delete(p.prompts, k)
		}
	}
}
