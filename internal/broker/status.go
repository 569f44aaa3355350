package broker

import (
	"fmt"
	"os"
	"time"

	"github.com/docker/docker/api/types"
)

// Status represents the health of a session's broker
type Status string

const (
	// StatusRunning indicates all containers are running
	StatusRunning Status = "Running"

	// StatusDegraded indicates some containers are stopped
	StatusDegraded Status = "Degraded"

	// StatusStopped indicates no container is running
	StatusStopped Status = "Stopped"
)

// DetermineStatus analyzes a set of containers and determines the overall status.
func DetermineStatus(containers []types.Container) Status {
	if len(containers) == 0 {
		return StatusStopped
	}

	running := 0
	for _, c := range containers {
		if c.State == "running" {
			running++
		}
	}

	switch {
	case running == len(containers):
		return StatusRunning
	case running > 0:
		return StatusDegraded
	default:
		return StatusStopped
	}
}

// Info describes a session's broker
type Info struct {
	Session  string `json:"session"`
	Status   Status `json:"status"`
	Port     int    `json:"port"`
	RedisURL string `json:"redis_url"`
	Uptime   string `json:"uptime"`
}

// FormatDuration renders an uptime as "1h 5m", "5m 3s" or "3s".
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	hours := d / time.Hour
	d -= hours * time.Hour

	minutes := d / time.Minute
	d -= minutes * time.Minute

	seconds := d / time.Second

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// RedisHost returns the hostname a broker's published port is reachable on.
// Inside a container that is the Docker host.
func RedisHost() string {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "host.docker.internal"
	}
	return "localhost"
}

// RedisURL constructs the Redis URL for a broker port.
func RedisURL(port int) string {
	return fmt.Sprintf("redis://%s:%d", RedisHost(), port)
}
