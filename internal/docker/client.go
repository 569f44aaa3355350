// Package docker holds the Docker client and the labels and names of the
// resources retinue creates.
package docker

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

// NewClient connects to the Docker daemon from the environment and pings it.
// The client is closed again if the daemon does not answer.
func NewClient(ctx context.Context) (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf(`Docker daemon not accessible: %w

The broker commands (up, down, status --brokers) need Docker:
  • macOS: Docker Desktop
  • Linux: sudo systemctl start docker`, err)
	}

	return cli, nil
}

// LabelArg is a label=value filter argument.
func LabelArg(label, value string) filters.KeyValuePair {
	return filters.Arg("label", fmt.Sprintf("%s=%s", label, value))
}

// BrokerFilter matches every retinue broker container, optionally narrowed
// by extra arguments.
func BrokerFilter(extra ...filters.KeyValuePair) filters.Args {
	args := append([]filters.KeyValuePair{
		LabelArg(LabelProject, "true"),
		LabelArg(LabelRole, RoleBroker),
	}, extra...)
	return filters.NewArgs(args...)
}

// SessionFilter matches every resource of session.
func SessionFilter(session string) filters.Args {
	return filters.NewArgs(LabelArg(LabelSession, session))
}
