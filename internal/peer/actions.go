package peer

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dyluth/retinue/pkg/wire"
)

// ErrNoPrompt is returned when answering a question nobody asked.
var ErrNoPrompt = errors.New("no question pending")

// The methods below are the local player's actions. They must run on the
// peer's goroutine: before Run starts, or through Do.

// Interact starts a conversation with a companion.
func (p *Peer) Interact(ctx context.Context, entity wire.EntityID) error {
	if _, err := p.registry.Lookup(entity); err != nil {
		return err
	}
	return p.bus.Send(ctx, &wire.DialogueRequest{Entity: entity})
}

// Claim asks the authority to recruit a companion for the local player directly.
func (p *Peer) Claim(ctx context.Context, entity wire.EntityID) error {
	if _, err := p.registry.Lookup(entity); err != nil {
		return err
	}
	return p.bus.Send(ctx, &wire.ClaimRequest{Entity: entity})
}

// Answer answers a pending question. The answer goes back to whichever peer
// asked it.
func (p *Peer) Answer(ctx context.Context, entity wire.EntityID, question, choice string) error {
	key := promptKey{entity: entity, question: question}
	prompt, ok := p.prompts[key]
	if !ok {
		return fmt.Errorf("%w: %s %s", ErrNoPrompt, entity, question)
	}
	if len(prompt.Options) > 0 && !slices.Contains(prompt.Options, choice) {
		return fmt.Errorf("invalid choice %q for %s, expected one of %v", choice, question, prompt.Options)
	}
	delete(p.prompts, key)

	return p.bus.SendTo(ctx, prompt.From, &wire.QuestionAnswered{
		Entity:   entity,
		Question: question,
		Choice:   choice,
	})
}

// Dismiss asks the authority to release a companion the local player owns.
func (p *Peer) Dismiss(ctx context.Context, entity wire.EntityID) error {
	if _, err := p.registry.Lookup(entity); err != nil {
		return err
	}
	return p.bus.Send(ctx, &wire.DismissRequest{Entity: entity})
}

// Warp moves the local player between locations. Companions the player owns
// report the move to the authority.
func (p *Peer) Warp(ctx context.Context, from, to string) error {
	return p.hub.Warp(ctx, from, to)
}

// ReturnBag hands an edited companion bag back to the authority.
func (p *Peer) ReturnBag(ctx context.Context, entity wire.EntityID, inv wire.Inventory) error {
	m, err := p.registry.Lookup(entity)
	if err != nil {
		return err
	}
	if m.Current() != wire.StateRecruited || m.Owner() != p.sess.Local {
		return fmt.Errorf("%s is not recruited by %s", entity, p.sess.Local)
	}
	if p.sess.IsAuthority() {
		m.SetBag(inv)
		return nil
	}

	blob, err := wire.EncodeBlob(inv)
	if err != nil {
		return err
	}
	return p.bus.Send(ctx, &wire.InventoryHandoff{Entity: entity, Blob: blob})
}

// RequestState asks the authority for the state of every companion.
func (p *Peer) RequestState(ctx context.Context) error {
	if p.sess.IsAuthority() {
		return nil
	}
	return p.bus.Send(ctx, &wire.StateRequest{})
}
