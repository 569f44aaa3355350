package docker

import (
	"fmt"

	"github.com/google/uuid"
)

// Label keys used for retinue resources
const (
	LabelProject   = "retinue.project"
	LabelSession   = "retinue.session"
	LabelRunID     = "retinue.run_id"
	LabelRole      = "retinue.role"
	LabelRedisPort = "retinue.redis.port"
)

// RoleBroker marks the Redis container carrying a session's traffic.
const RoleBroker = "broker"

// BuildLabels creates the standard label set for a session's resources.
// role is omitted when empty (networks carry no role).
func BuildLabels(session, runID, role string) map[string]string {
	labels := map[string]string{
		LabelProject: "true",
		LabelSession: session,
		LabelRunID:   runID,
	}

	if role != "" {
		labels[LabelRole] = role
	}

	return labels
}

// GenerateRunID creates a new UUID for a broker run.
// Each invocation of `retinue up` gets a unique run ID.
func GenerateRunID() string {
	return uuid.New().String()
}

// NetworkName returns the Docker network name for a session
func NetworkName(session string) string {
	return fmt.Sprintf("retinue-network-%s", session)
}

// BrokerContainerName returns the Redis container name for a session
func BrokerContainerName(session string) string {
	return fmt.Sprintf("retinue-redis-%s", session)
}
