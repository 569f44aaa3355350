//go:build integration

package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dyluth/retinue/pkg/wire"
)

// setupRedis starts a Redis container for testing.
func setupRedis(t *testing.T) string {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s", host, port.Port())
}

func TestRealRedisRoundTrip(t *testing.T) {
	redisURL := setupRedis(t)
	opts, err := backend.ParseURL(redisURL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	host, err := Join(ctx, opts, "it", "host")
	require.NoError(t, err)
	defer host.Close()
	alice, err := Join(ctx, opts, "it", "alice")
	require.NoError(t, err)
	defer alice.Close()

	auth, err := host.ClaimAuthority(ctx)
	require.NoError(t, err)
	assert.Equal(t, wire.PeerID("host"), auth)

	for i := 0; i < 50; i++ {
		require.NoError(t, alice.Send(ctx, "host", []byte(fmt.Sprint(i))))
	}
	for i := 0; i < 50; i++ {
		select {
		case frame := <-host.Inbox():
			assert.Equal(t, fmt.Sprint(i), string(frame), "frames arrive in send order")
		case <-ctx.Done():
			t.Fatal("timed out waiting for frames")
		}
	}
}
