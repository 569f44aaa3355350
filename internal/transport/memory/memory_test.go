package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/retinue/pkg/wire"
)

func TestNetwork(t *testing.T) {
	ctx := context.Background()
	n := NewNetwork()

	host, err := n.Join("host")
	require.NoError(t, err)
	alice, err := n.Join("alice")
	require.NoError(t, err)

	_, err = n.Join("alice")
	assert.Error(t, err)
	_, err = n.Join(wire.NoPeer)
	assert.Error(t, err)

	peers, err := host.Peers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []wire.PeerID{"alice", "host"}, peers)

	require.NoError(t, alice.Send(ctx, "host", []byte("one")))
	require.NoError(t, alice.Send(ctx, "host", []byte("two")))
	assert.Equal(t, 2, host.Pending())
	assert.Equal(t, []byte("one"), <-host.Inbox())
	assert.Equal(t, []byte("two"), <-host.Inbox())

	assert.ErrorIs(t, alice.Send(ctx, "bob", []byte("x")), ErrUnknownPeer)
}

func TestSendCopiesFrame(t *testing.T) {
	n := NewNetwork()
	host, _ := n.Join("host")
	alice, _ := n.Join("alice")

	frame := []byte("abc")
	require.NoError(t, alice.Send(context.Background(), "host", frame))
	frame[0] = 'z'
	assert.Equal(t, []byte("abc"), <-host.Inbox())
}

func TestInboxFull(t *testing.T) {
	n := NewNetwork()
	n.inboxSize = 1
	_, _ = n.Join("host")
	alice, _ := n.Join("alice")

	require.NoError(t, alice.Send(context.Background(), "host", []byte("1")))
	assert.ErrorIs(t, alice.Send(context.Background(), "host", []byte("2")), ErrInboxFull)
}

func TestClose(t *testing.T) {
	n := NewNetwork()
	host, _ := n.Join("host")
	alice, _ := n.Join("alice")

	require.NoError(t, alice.Close())
	require.NoError(t, alice.Close())

	_, open := <-alice.Inbox()
	assert.False(t, open)
	assert.ErrorIs(t, host.Send(context.Background(), "alice", []byte("x")), ErrUnknownPeer)

	peers, _ := n.Peers(context.Background())
	assert.Equal(t, []wire.PeerID{"host"}, peers)
}
