package companion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/retinue/pkg/wire"
)

func TestSetup(t *testing.T) {
	f := newFixture(t, "host")
	m := f.machine(t, "abigail")

	assert.Equal(t, wire.StateReset, m.Current())
	assert.True(t, m.Owner().IsNone())
	assert.ErrorIs(t, m.Setup(), ErrAlreadySetup)

	bare := newMachine(f.env, "ghost", "Ghost")
	assert.ErrorIs(t, bare.Apply(context.Background(), wire.StateAvailable, wire.NoPeer), ErrNotSetup)
	assert.ErrorIs(t, bare.RequestTransition(context.Background(), wire.StateAvailable, wire.NoPeer), ErrNotSetup)
	_, err := bare.Claim(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrNotSetup)
}

func TestApplyUnknownState(t *testing.T) {
	f := newFixture(t, "host")
	m := f.machine(t, "abigail")

	err := m.Apply(context.Background(), "in-transition", wire.NoPeer)
	assert.ErrorIs(t, err, ErrUnknownState)
	assert.Equal(t, wire.StateReset, m.Current())

	assert.ErrorIs(t, m.RequestTransition(context.Background(), "bogus", wire.NoPeer), ErrUnknownState)
}

func TestApplyIsIdempotent(t *testing.T) {
	f := newFixture(t, "alice")
	m := f.machine(t, "abigail")
	ctx := context.Background()

	require.NoError(t, m.Apply(ctx, wire.StateAvailable, wire.NoPeer))
	subs := f.env.Hub.Subscribers()

	require.NoError(t, m.Apply(ctx, wire.StateAvailable, wire.NoPeer))
	assert.Equal(t, subs, f.env.Hub.Subscribers(), "entry must not run twice")

	require.NoError(t, m.Apply(ctx, wire.StateRecruited, "alice"))
	require.NoError(t, m.Apply(ctx, wire.StateRecruited, "alice"))
	assert.Equal(t, 1, f.buffs.active["alice"])
	assert.Equal(t, wire.PeerID("alice"), m.Owner())
}

func TestReplicaCannotDecide(t *testing.T) {
	f := newFixture(t, "alice")
	m := f.machine(t, "abigail")
	ctx := context.Background()

	assert.ErrorIs(t, m.RequestTransition(ctx, wire.StateAvailable, wire.NoPeer), ErrNotAuthority)
	assert.ErrorIs(t, m.NewSessionSetup(ctx, 1), ErrNotAuthority)
	_, err := m.Claim(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotAuthority)
	assert.ErrorIs(t, m.Dismiss(ctx, "alice", false), ErrNotAuthority)
	assert.Empty(t, f.bus.sent)

	// replicas only apply decided outcomes
	require.NoError(t, m.Apply(ctx, wire.StateRecruited, "bob"))
	assert.Equal(t, wire.StateRecruited, m.Current())
	assert.Empty(t, f.ais, "AI only runs on the authority")
}

func TestNewSessionSetup(t *testing.T) {
	t.Run("regular day", func(t *testing.T) {
		f := newFixture(t, "host")
		require.NoError(t, f.registry.NewSession(context.Background(), 3))

		for _, m := range f.registry.All() {
			assert.Equal(t, wire.StateAvailable, m.Current(), m.Entity())
			assert.False(t, m.RecruitedToday())
		}
		assert.ElementsMatch(t, []wire.EntityID{"abigail", "maru"}, f.world.returned)
	})

	t.Run("blackout day", func(t *testing.T) {
		f := newFixture(t, "host", func(r *Rules) { r.BlackoutDays = []int{13, 24} })
		require.NoError(t, f.registry.NewSession(context.Background(), 13))

		for _, m := range f.registry.All() {
			assert.Equal(t, wire.StateUnavailable, m.Current())
		}
	})

	t.Run("recruited companion is sent home", func(t *testing.T) {
		f := newFixture(t, "host")
		f.startDay(t)
		ctx := context.Background()
		_, err := f.machine(t, "abigail").Claim(ctx, "alice")
		require.NoError(t, err)
		f.world.returned = nil

		require.NoError(t, f.registry.NewSession(ctx, 2))
		m := f.machine(t, "abigail")
		assert.Equal(t, wire.StateAvailable, m.Current())
		assert.True(t, m.Owner().IsNone())
		assert.True(t, f.ais["abigail"].disposed)
		assert.Contains(t, f.world.returned, wire.EntityID("abigail"))
		assert.Equal(t, f.registry.Capacity(), f.registry.FreeSlots())
	})

	t.Run("spouse lines override the plain ones", func(t *testing.T) {
		f := newFixture(t, "host")
		f.env.Content.(fakeContent)["Dialogue/AbigailSpouse:companionAccepted"] = "Anything for you, dear."
		m := f.machine(t, "abigail")

		f.startDay(t)
		assert.Equal(t, "Dialogue/Abigail:companionAccepted", m.lineKey("companionAccepted"))

		f.affinity.married = "abigail"
		f.startDay(t)
		assert.Equal(t, "Dialogue/AbigailSpouse:companionAccepted", m.lineKey("companionAccepted"))
		assert.Equal(t, "Dialogue/Abigail:companion_Beach", m.lineKey("companion_Beach"))
		assert.Equal(t, "Strings/Strings:companionBusy", m.lineKey("companionBusy"))
		assert.Equal(t, "Strings/Strings:companionAccepted", f.machine(t, "maru").lineKey("companionAccepted"))
	})
}

func TestClaimArbitration(t *testing.T) {
	ctx := context.Background()

	t.Run("accept", func(t *testing.T) {
		f := newFixture(t, "host")
		f.startDay(t)
		m := f.machine(t, "abigail")

		out, err := m.Claim(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, out.Accepted)
		assert.Equal(t, wire.StateRecruited, m.Current())
		assert.Equal(t, wire.PeerID("alice"), m.Owner())
		assert.Equal(t, 40, f.affinity.changes["alice"])
		require.Len(t, f.bus.broadcasts(), 1)
		assert.Equal(t, &wire.StateChanged{Entity: "abigail", NewState: wire.StateRecruited, Claimant: "alice"}, f.bus.broadcasts()[0])
		assert.NotNil(t, f.ais["abigail"])
	})

	t.Run("duplicate claim is already yours", func(t *testing.T) {
		f := newFixture(t, "host")
		f.startDay(t)
		m := f.machine(t, "abigail")

		_, err := m.Claim(ctx, "alice")
		require.NoError(t, err)
		f.bus.reset()

		out, err := m.Claim(ctx, "alice")
		require.NoError(t, err)
		assert.False(t, out.Accepted)
		assert.Equal(t, wire.RejectAlreadyYours, out.Reason)
		assert.Equal(t, 40, f.affinity.changes["alice"], "no second friendship bonus")
		assert.Empty(t, f.bus.broadcasts(), "no second acceptance broadcast")
		assert.Equal(t, []wire.Message{&wire.ClaimRejected{Entity: "abigail", Reason: wire.RejectAlreadyYours}}, f.bus.to("alice"))
	})

	t.Run("race goes to the first request", func(t *testing.T) {
		f := newFixture(t, "host")
		f.startDay(t)
		m := f.machine(t, "abigail")

		first, err := m.Claim(ctx, "alice")
		require.NoError(t, err)
		second, err := m.Claim(ctx, "bob")
		require.NoError(t, err)

		assert.True(t, first.Accepted)
		assert.False(t, second.Accepted)
		assert.Equal(t, wire.RejectTaken, second.Reason)
		assert.Equal(t, wire.PeerID("alice"), m.Owner())
		assert.Len(t, f.bus.broadcasts(), 1)
		assert.Equal(t, []wire.Message{&wire.ClaimRejected{Entity: "abigail", Reason: wire.RejectTaken}}, f.bus.to("bob"))
		assert.Zero(t, f.affinity.changes["bob"])
	})

	t.Run("not free while holding another companion", func(t *testing.T) {
		f := newFixture(t, "host")
		f.startDay(t)

		_, err := f.machine(t, "abigail").Claim(ctx, "alice")
		require.NoError(t, err)

		out, err := f.machine(t, "maru").Claim(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, wire.RejectNotFree, out.Reason)
		assert.Equal(t, wire.StateAvailable, f.machine(t, "maru").Current())
	})

	t.Run("not free with an open question elsewhere", func(t *testing.T) {
		f := newFixture(t, "host")
		f.startDay(t)

		require.NoError(t, f.machine(t, "maru").ResolveDialogueRequest(ctx, "alice"))
		out, err := f.machine(t, "abigail").Claim(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, wire.RejectNotFree, out.Reason)
	})

	t.Run("max per peer allows a second companion", func(t *testing.T) {
		f := newFixture(t, "host", func(r *Rules) { r.MaxPerPeer = 2 })
		f.startDay(t)

		_, err := f.machine(t, "abigail").Claim(ctx, "alice")
		require.NoError(t, err)
		out, err := f.machine(t, "maru").Claim(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, out.Accepted)
		assert.Len(t, f.registry.OwnedBy("alice"), 2)
	})

	t.Run("unavailable is taken", func(t *testing.T) {
		f := newFixture(t, "host", func(r *Rules) { r.BlackoutDays = []int{1} })
		f.startDay(t)

		out, err := f.machine(t, "abigail").Claim(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, wire.RejectTaken, out.Reason)
	})

	t.Run("no requester", func(t *testing.T) {
		f := newFixture(t, "host")
		f.startDay(t)
		_, err := f.machine(t, "abigail").Claim(ctx, wire.NoPeer)
		assert.Error(t, err)
	})
}

func TestDismiss(t *testing.T) {
	ctx := context.Background()

	t.Run("reset then unavailable and one slot freed", func(t *testing.T) {
		f := newFixture(t, "host")
		f.startDay(t)
		m := f.machine(t, "abigail")
		subsBefore := f.env.Hub.Subscribers()

		_, err := m.Claim(ctx, "alice")
		require.NoError(t, err)
		freeBefore := f.registry.FreeSlots()
		f.bus.reset()
		f.world.returned = nil

		require.NoError(t, m.Dismiss(ctx, "alice", false))

		got := f.bus.broadcasts()
		require.Len(t, got, 2)
		assert.Equal(t, wire.StateReset, got[0].NewState)
		assert.Equal(t, wire.StateUnavailable, got[1].NewState)
		assert.True(t, got[1].Claimant.IsNone())

		assert.Equal(t, wire.StateUnavailable, m.Current())
		assert.True(t, m.Owner().IsNone())
		assert.Equal(t, freeBefore+1, f.registry.FreeSlots())
		assert.Equal(t, []wire.EntityID{"abigail"}, f.world.returned)
		assert.True(t, f.ais["abigail"].disposed)
		// abigail's available-state subscription is gone, maru's remains
		assert.Equal(t, subsBefore-1, f.env.Hub.Subscribers())
	})

	t.Run("only the owner may dismiss", func(t *testing.T) {
		f := newFixture(t, "host")
		f.startDay(t)
		m := f.machine(t, "abigail")
		_, err := m.Claim(ctx, "alice")
		require.NoError(t, err)

		assert.ErrorIs(t, m.Dismiss(ctx, "bob", false), ErrNotOwner)
		assert.Equal(t, wire.StateRecruited, m.Current())
	})

	t.Run("dismissing an idle companion is ignored", func(t *testing.T) {
		f := newFixture(t, "host")
		f.startDay(t)
		require.NoError(t, f.machine(t, "abigail").Dismiss(ctx, "alice", false))
		assert.Empty(t, f.bus.sent)
	})
}

func TestExclusiveRecruitment(t *testing.T) {
	ctx := context.Background()
	exclusive := func(r *Rules) { r.Exclusive = true; r.Capacity = 1 }

	t.Run("recruiting blocks the others", func(t *testing.T) {
		f := newFixture(t, "host", exclusive)
		f.startDay(t)

		_, err := f.machine(t, "abigail").Claim(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, wire.StateUnavailable, f.machine(t, "maru").Current())
		assert.Equal(t, []wire.EntityID{"maru"}, f.registry.Blocked())
		assert.Zero(t, f.registry.FreeSlots())

		out, err := f.machine(t, "maru").Claim(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, wire.RejectTaken, out.Reason)
	})

	t.Run("dismiss re-opens blocked companions", func(t *testing.T) {
		f := newFixture(t, "host", exclusive)
		f.startDay(t)
		_, err := f.machine(t, "abigail").Claim(ctx, "alice")
		require.NoError(t, err)

		require.NoError(t, f.machine(t, "abigail").Dismiss(ctx, "alice", false))
		assert.Equal(t, wire.StateAvailable, f.machine(t, "maru").Current())
		assert.Empty(t, f.registry.Blocked())
		assert.Equal(t, 1, f.registry.FreeSlots())
	})

	t.Run("menu dismiss keeps the others blocked", func(t *testing.T) {
		f := newFixture(t, "host", exclusive)
		f.startDay(t)
		_, err := f.machine(t, "abigail").Claim(ctx, "alice")
		require.NoError(t, err)

		require.NoError(t, f.machine(t, "abigail").Answer(ctx, "alice", QuestionRecruitedWant, ChoiceDismiss))
		assert.Equal(t, wire.StateUnavailable, f.machine(t, "abigail").Current())
		assert.Equal(t, wire.StateUnavailable, f.machine(t, "maru").Current())
		assert.Equal(t, []wire.EntityID{"maru"}, f.registry.Blocked())
	})

	t.Run("auto release re-opens blocked companions", func(t *testing.T) {
		f := newFixture(t, "host", exclusive)
		f.startDay(t)
		_, err := f.machine(t, "abigail").Claim(ctx, "alice")
		require.NoError(t, err)

		require.NoError(t, f.env.Hub.SetTime(ctx, 2200))
		assert.Equal(t, wire.StateUnavailable, f.machine(t, "abigail").Current())
		assert.Equal(t, wire.StateAvailable, f.machine(t, "maru").Current())
		assert.Empty(t, f.registry.Blocked())
	})

	t.Run("keep others blocked still frees exactly one slot", func(t *testing.T) {
		f := newFixture(t, "host", exclusive)
		f.startDay(t)
		_, err := f.machine(t, "abigail").Claim(ctx, "alice")
		require.NoError(t, err)
		require.Zero(t, f.registry.FreeSlots())

		require.NoError(t, f.machine(t, "abigail").Dismiss(ctx, "alice", true))
		assert.Equal(t, 1, f.registry.FreeSlots())
		assert.Equal(t, wire.StateUnavailable, f.machine(t, "maru").Current())
		assert.Equal(t, []wire.EntityID{"maru"}, f.registry.Blocked())
	})
}
