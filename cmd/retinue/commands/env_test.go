package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/retinue/internal/broker"
	"github.com/dyluth/retinue/internal/config"
	"github.com/dyluth/retinue/internal/printer"
	"github.com/dyluth/retinue/pkg/wire"
)

func TestResolvePeerID(t *testing.T) {
	t.Setenv(EnvPeerID, "")
	assert.Equal(t, "alice", string(resolvePeerID("alice")))

	generated := resolvePeerID("")
	assert.True(t, strings.HasPrefix(string(generated), "peer-"))
	assert.Len(t, string(generated), len("peer-")+8)

	t.Setenv(EnvPeerID, "bob")
	assert.Equal(t, "bob", string(resolvePeerID("")))
	assert.Equal(t, "alice", string(resolvePeerID("alice")), "flag wins")
}

func TestLoadConfigRedisOverride(t *testing.T) {
	path := writeTestConfig(t, `version: "1.0"
session: valley
companions:
  - id: abigail
`)

	t.Setenv(EnvRedisURL, "")
	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultRedisURL, cfg.Transport.RedisURL)

	t.Setenv(EnvRedisURL, "redis://broker:6380")
	cfg, err = loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "redis://broker:6380", cfg.Transport.RedisURL)
}

func TestLoadConfigMissing(t *testing.T) {
	var errOut bytes.Buffer
	prev := printer.ErrOut
	printer.ErrOut = &errOut
	t.Cleanup(func() { printer.ErrOut = prev })

	_, err := loadConfig("/nonexistent/retinue.yml")
	require.Error(t, err)
	assert.True(t, printer.Reported(err))
	assert.Contains(t, errOut.String(), "retinue validate -c /nonexistent/retinue.yml")
}

func TestRenderRoster(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, renderRoster(&out, roster{
		Session:   "valley",
		Authority: "host",
		Peers:     []wire.PeerID{"alice", "host"},
	}))

	lines := strings.Split(out.String(), "\n")
	var alice, host string
	for _, line := range lines {
		if strings.Contains(line, "alice") {
			alice = line
		} else if strings.Count(line, "host") == 2 {
			host = line
		}
	}
	assert.Contains(t, alice, "guest")
	assert.NotEmpty(t, host, out.String())
}

func TestRenderBrokers(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, renderBrokers(&out, []broker.Info{
		{Session: "valley", Status: broker.StatusRunning, Port: 6379, Uptime: "5m 2s"},
		{Session: "farm", Status: broker.StatusStopped, Uptime: "-"},
	}))
	assert.Contains(t, out.String(), "valley")
	assert.Contains(t, out.String(), "6379")
	assert.Contains(t, out.String(), "Stopped")
}

func TestRenderConfig(t *testing.T) {
	cfg, err := config.Load(writeTestConfig(t, `version: "1.0"
session: valley
blackout_days: [7, 14]
max_per_peer: 2
companions:
  - id: abigail
    name: Abigail
    home: SeedShop
  - id: maru
transport:
  kind: ws
`))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, renderConfig(&out, cfg))
	text := out.String()
	assert.Contains(t, text, "ws ("+config.DefaultRelayURL+")")
	assert.Contains(t, text, "22:00")
	assert.Contains(t, text, "7, 14")
	assert.Contains(t, text, "one per companion")
	assert.Contains(t, text, "SeedShop")
}
