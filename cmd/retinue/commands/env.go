package commands

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/dyluth/retinue/internal/config"
	"github.com/dyluth/retinue/internal/printer"
	"github.com/dyluth/retinue/pkg/wire"
)

// Environment overrides
const (
	EnvRedisURL = "RETINUE_REDIS_URL"
	EnvPeerID   = "RETINUE_PEER_ID"
)

// loadConfig loads retinue.yml and applies environment overrides.
func loadConfig(path string) (*config.RetinueConfig, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, printer.Error(
			"retinue.yml not found or invalid",
			fmt.Sprintf("Could not load %s.\n\nError details: %v", path, err),
			[]string{"Check the file, then validate it:\n  retinue validate -c " + path},
		)
	}

	if url := os.Getenv(EnvRedisURL); url != "" {
		cfg.Transport.RedisURL = url
	}

	return cfg, nil
}

// resolvePeerID picks the local peer id: the flag, then RETINUE_PEER_ID, then
// a generated one.
func resolvePeerID(flag string) wire.PeerID {
	if flag != "" {
		return wire.PeerID(flag)
	}
	if id := os.Getenv(EnvPeerID); id != "" {
		return wire.PeerID(id)
	}
	return wire.PeerID("peer-" + uuid.New().String()[:8])
}
