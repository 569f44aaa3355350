package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redistransport "github.com/dyluth/retinue/internal/transport/redis"
	"github.com/dyluth/retinue/pkg/wire"
)

func frame(t *testing.T, env wire.Envelope, msg wire.Message) []byte {
	t.Helper()
	data, err := wire.Encode(env, msg)
	require.NoError(t, err)
	return data
}

func TestDescribe(t *testing.T) {
	blob, err := wire.EncodeBlob(wire.Inventory{Capacity: 12, Items: []wire.Item{{ID: "a", Name: "Amethyst", Stack: 1}}})
	require.NoError(t, err)

	tests := []struct {
		msg  wire.Message
		want string
	}{
		{&wire.ClaimRequest{Entity: "abigail"}, "wants to recruit abigail"},
		{&wire.ClaimRejected{Entity: "abigail", Reason: wire.RejectTaken}, "claim on abigail rejected: taken"},
		{&wire.StateChanged{Entity: "abigail", NewState: wire.StateRecruited, Claimant: "alice"}, "abigail is now recruited (alice)"},
		{&wire.StateChanged{Entity: "abigail", NewState: wire.StateAvailable}, "abigail is now available"},
		{&wire.StateRequest{}, "requests a full resync"},
		{&wire.LocationWarped{Entity: "abigail", From: "Farm", To: "Town"}, "abigail follows from Farm to Town"},
		{&wire.InventoryHandoff{Entity: "abigail", Blob: blob}, "hands over abigail's bag (1 items)"},
		{&wire.PeriodicStatus{Entity: "abigail", Payload: wire.Status{Location: "Mine", Activity: "follow", Health: 80}.Payload()}, "abigail at Mine, follow, 80 hp"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Describe(tt.msg))
	}
}

func TestNewEvent(t *testing.T) {
	data := frame(t, wire.Envelope{From: "host", Broadcast: true}, &wire.StateChanged{Entity: "maru", NewState: wire.StateUnavailable})

	ev := NewEvent("alice", data)
	assert.Equal(t, wire.KindStateChanged, ev.Kind)
	assert.Equal(t, wire.PeerID("host"), ev.From)
	assert.Equal(t, wire.PeerID("alice"), ev.To)
	assert.Equal(t, wire.EntityID("maru"), ev.Entity)
	assert.True(t, ev.Broadcast)
	assert.NotEmpty(t, ev.ID)

	bad := NewEvent("alice", []byte("not json"))
	assert.Equal(t, wire.Kind("invalid"), bad.Kind)
	assert.NotEmpty(t, bad.Summary)
}

func TestStream(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	broadcast := frame(t, wire.Envelope{From: "host", Broadcast: true}, &wire.StateChanged{Entity: "abigail", NewState: wire.StateRecruited, Claimant: "alice"})
	direct := frame(t, wire.Envelope{From: "alice", To: "host"}, &wire.ClaimRequest{Entity: "maru"})

	feed := func() <-chan redistransport.Frame {
		ch := make(chan redistransport.Frame, 4)
		ch <- redistransport.Frame{To: "alice", Data: broadcast}
		ch <- redistransport.Frame{To: "bob", Data: broadcast}
		ch <- redistransport.Frame{To: "host", Data: direct}
		close(ch)
		return ch
	}

	t.Run("dedup writes one copy of a broadcast", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, Stream(context.Background(), feed(), &out, OutputFormatDefault, true))

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 2)
		assert.Contains(t, lines[0], "host → all: abigail is now recruited (alice)")
		assert.Contains(t, lines[1], "alice → host: wants to recruit maru")
	})

	t.Run("every copy without dedup", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, Stream(context.Background(), feed(), &out, OutputFormatDefault, false))
		assert.Len(t, strings.Split(strings.TrimSpace(out.String()), "\n"), 3)
	})

	t.Run("json lines", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, Stream(context.Background(), feed(), &out, OutputFormatJSON, true))

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 2)
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(lines[1]), &ev))
		assert.Equal(t, wire.KindClaimRequest, ev.Kind)
		assert.Equal(t, wire.EntityID("maru"), ev.Entity)
	})

	t.Run("stops on cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.NoError(t, Stream(ctx, make(chan redistransport.Frame), &bytes.Buffer{}, OutputFormatDefault, true))
	})
}

func TestRecent(t *testing.T) {
	r := newRecent(2)
	r.add("a")
	r.add("b")
	assert.True(t, r.contains("a"))
	r.add("c")
	assert.False(t, r.contains("a"))
	assert.True(t, r.contains("b"))
	assert.True(t, r.contains("c"))
}

func TestPollForAuthority(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	ctx := context.Background()
	monitor, err := redistransport.NewMonitor(&redis.Options{Addr: mr.Addr()}, "valley")
	require.NoError(t, err)
	defer monitor.Close()

	t.Run("times out without a host", func(t *testing.T) {
		_, err := PollForAuthority(ctx, monitor, 300*time.Millisecond)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timeout")
	})

	t.Run("returns host once it appears", func(t *testing.T) {
		go func() {
			time.Sleep(250 * time.Millisecond)
			mr.Set(wire.AuthorityKey("valley"), "host")
		}()

		id, err := PollForAuthority(ctx, monitor, 2*time.Second)
		require.NoError(t, err)
		assert.Equal(t, wire.PeerID("host"), id)
	})
}
