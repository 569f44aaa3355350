package world

import (
	"bytes"
	"io"
	"log"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/retinue/internal/companion"
	"github.com/dyluth/retinue/internal/content"
	"github.com/dyluth/retinue/internal/printer"
	"github.com/dyluth/retinue/pkg/wire"
)

var (
	_ companion.Affinity  = (*Ledger)(nil)
	_ companion.World     = (*Bodies)(nil)
	_ companion.Buffs     = (*Perks)(nil)
	_ companion.Presenter = (*Presenter)(nil)
)

func TestLedger(t *testing.T) {
	l := NewLedger()

	assert.Zero(t, l.Hearts("alice", "abigail"))

	l.SetHearts("alice", "abigail", 5)
	assert.Equal(t, 5, l.Hearts("alice", "abigail"))
	assert.Zero(t, l.Hearts("bob", "abigail"))

	l.ChangeFriendship("alice", "abigail", 40)
	assert.Equal(t, 5*PointsPerHeart+40, l.Points("alice", "abigail"))
	assert.Equal(t, 5, l.Hearts("alice", "abigail"))

	l.ChangeFriendship("alice", "abigail", 10_000)
	assert.Equal(t, MaxPoints, l.Points("alice", "abigail"))

	l.ChangeFriendship("bob", "maru", -100)
	assert.Zero(t, l.Points("bob", "maru"))

	l.SetBaseHearts(3)
	assert.Equal(t, 3, l.Hearts("carol", "maru"))
	l.ChangeFriendship("carol", "maru", PointsPerHeart)
	assert.Equal(t, 4, l.Hearts("carol", "maru"))
	assert.Zero(t, l.Points("bob", "maru"), "explicit values survive the base")

	assert.False(t, l.HasSpouse("alice"))
	l.Marry("alice", "abigail")
	assert.True(t, l.HasSpouse("alice"))
	assert.True(t, l.IsSpouse("alice", "abigail"))
	assert.False(t, l.IsSpouse("alice", "maru"))
	assert.False(t, l.IsSpouse("bob", "abigail"))
}

func TestBodies(t *testing.T) {
	b := NewBodies(map[wire.EntityID]string{"abigail": "SeedShop"}, log.New(io.Discard, "", 0))

	assert.Equal(t, "SeedShop", b.Location("abigail"))
	assert.Equal(t, FullHealth, b.Health("abigail"))
	assert.Empty(t, b.Location("krobus"), "unknown bodies have no home")

	b.Move("abigail", "Beach")
	b.Place("abigail", "Saloon")
	b.Reconcile("abigail")
	assert.Equal(t, "Beach", b.Location("abigail"), "reconcile restores the led location")

	b.Hurt("abigail", 30)
	assert.Equal(t, 70, b.Health("abigail"))
	b.Hurt("abigail", 500)
	assert.Zero(t, b.Health("abigail"))

	b.ReturnHome("abigail")
	assert.Equal(t, "SeedShop", b.Location("abigail"))
	assert.Equal(t, FullHealth, b.Health("abigail"))

	b.Place("abigail", "Town")
	b.Reconcile("abigail")
	assert.Equal(t, "Town", b.Location("abigail"), "bodies at home follow their schedule")
}

func TestFollower(t *testing.T) {
	b := NewBodies(map[wire.EntityID]string{"abigail": "SeedShop"}, log.New(io.Discard, "", 0))
	ai := NewFollowerFactory(b)("abigail", "alice")

	assert.False(t, ai.PerformAction())
	assert.Equal(t, "following alice", ai.Activity())

	ai.ChangeLocation("Mine")
	ai.Update(7)
	assert.Equal(t, "Mine", b.Location("abigail"))

	ai.Dispose()
	ai.ChangeLocation("Beach")
	assert.Equal(t, "Mine", b.Location("abigail"))
	assert.Equal(t, "idle", ai.Activity())
}

func TestPerks(t *testing.T) {
	p := NewPerks()

	p.Apply("alice", "abigail")
	p.Apply("alice", "abigail")
	p.Apply("alice", "maru")
	assert.Equal(t, []wire.EntityID{"abigail", "maru"}, p.Active("alice"))

	p.Release("alice", "abigail")
	assert.Equal(t, []wire.EntityID{"maru"}, p.Active("alice"))
	p.Release("alice", "maru")
	assert.Empty(t, p.Active("alice"))
}

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	out := &bytes.Buffer{}
	prevOut, prevNoColor := printer.Out, color.NoColor
	printer.Out, color.NoColor = out, true
	t.Cleanup(func() { printer.Out, color.NoColor = prevOut, prevNoColor })
	return out
}

func TestPresenter(t *testing.T) {
	out := capture(t)
	p := NewPresenter(content.Builtin, map[wire.EntityID]string{"abigail": "Abigail"})

	p.ShowDialogue("abigail", "Strings/Strings:companionRecruited", []string{"Abigail"})
	p.AskQuestion("abigail", companion.QuestionAskToFollow, []string{companion.ChoiceYes, companion.ChoiceNo})
	p.AskQuestion("maru", "mystery", []string{"maybe"})

	assert.Equal(t, "Abigail: Abigail is now following you.\n"+
		"Abigail: Ask Abigail to follow you?\n  1) Yes\n  2) No\n"+
		"maru: mystery\n  1) maybe\n", out.String())
}

func TestPresenterInventoryAndStatus(t *testing.T) {
	out := capture(t)
	p := NewPresenter(content.Builtin, map[wire.EntityID]string{"abigail": "Abigail"})

	p.OpenInventory("abigail", wire.Inventory{Capacity: 12, Items: []wire.Item{{ID: "amethyst", Name: "Amethyst", Stack: 3}}})
	require.Contains(t, out.String(), "Abigail's bag (1/12)\n")
	assert.Contains(t, out.String(), "Amethyst")
	assert.Contains(t, out.String(), "x3")

	out.Reset()
	p.ShowStatus("abigail", wire.Status{Location: "Mine", Activity: "following alice", Health: 80})
	assert.Equal(t, "Abigail · Mine · following alice · 80 hp\n", out.String())

	out.Reset()
	p.Notify("abigail", "Abigail is already with someone else.")
	assert.Equal(t, "⚠️  Abigail is already with someone else.\n", out.String())
}
