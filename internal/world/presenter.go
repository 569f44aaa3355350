package world

import (
	"github.com/dyluth/retinue/internal/companion"
	"github.com/dyluth/retinue/internal/printer"
	"github.com/dyluth/retinue/pkg/wire"
)

// Presenter prints what the local player sees through internal/printer.
type Presenter struct {
	content companion.ContentLoader
	names   map[wire.EntityID]string
}

// NewPresenter creates a presenter. names maps companion ids to display names.
func NewPresenter(content companion.ContentLoader, names map[wire.EntityID]string) *Presenter {
	return &Presenter{content: content, names: names}
}

func (p *Presenter) name(entity wire.EntityID) string {
	if n, ok := p.names[entity]; ok {
		return n
	}
	return string(entity)
}

func (p *Presenter) text(key string, args []string) string {
	a := make([]any, len(args))
	for i, s := range args {
		a[i] = s
	}
	text, _ := p.content.LoadString(key, a...)
	return text
}

// shared resolves a shared string, falling back to fallback.
func (p *Presenter) shared(id, fallback string, entity wire.EntityID) string {
	text, ok := p.content.LoadString("Strings/Strings:"+id, p.name(entity))
	if !ok {
		return fallback
	}
	return text
}

// ShowDialogue prints the line behind key.
func (p *Presenter) ShowDialogue(entity wire.EntityID, key string, args []string) {
	printer.Say(p.name(entity), p.text(key, args))
}

// AskQuestion prints question with its numbered options.
func (p *Presenter) AskQuestion(entity wire.EntityID, question string, options []string) {
	labels := make([]string, len(options))
	for i, opt := range options {
		labels[i] = p.shared("choice_"+opt, opt, entity)
	}
	printer.Ask(p.name(entity), p.shared(question, question, entity), labels)
}

// OpenInventory lists the companion's bag.
func (p *Presenter) OpenInventory(entity wire.EntityID, inv wire.Inventory) {
	printer.Info("%s's bag (%d/%d)\n", p.name(entity), len(inv.Items), inv.Capacity)
	for _, item := range inv.Items {
		printer.Info("  %-20s x%d\n", item.Name, item.Stack)
	}
}

// ShowStatus prints a one-line status of a recruited companion.
func (p *Presenter) ShowStatus(entity wire.EntityID, status wire.Status) {
	printer.Note("%s · %s · %s · %d hp", p.name(entity), status.Location, status.Activity, status.Health)
}

// Notify prints a notice about entity.
func (p *Presenter) Notify(entity wire.EntityID, text string) {
	printer.Warning("%s\n", text)
}
