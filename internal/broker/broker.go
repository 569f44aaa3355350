// Package broker manages the Docker-hosted Redis that carries a session's
// traffic: one bridge network and one Redis container per session, found again
// by their labels.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	dockerpkg "github.com/dyluth/retinue/internal/docker"
)

// ErrNotFound is returned when a session has no broker container.
var ErrNotFound = errors.New("broker not found")

// ErrExists is returned by Up when the session already has a broker.
var ErrExists = errors.New("broker already exists")

const redisPort nat.Port = "6379/tcp"

// Broker creates and removes session brokers.
type Broker struct {
	cli    *client.Client
	logger *log.Logger
}

// New creates a Broker on a connected Docker client.
func New(cli *client.Client, logger *log.Logger) *Broker {
	if logger == nil {
		logger = log.Default()
	}
	return &Broker{cli: cli, logger: logger}
}

// Up starts the broker of session. port 0 picks the next free port from 6379.
// On failure every resource created so far is removed again.
func (b *Broker) Up(ctx context.Context, session, image string, port int) (Info, error) {
	if err := ValidateName(session); err != nil {
		return Info{}, err
	}

	if _, err := Find(ctx, b.cli, session); err == nil {
		return Info{}, fmt.Errorf("%w: session '%s'", ErrExists, session)
	} else if !errors.Is(err, ErrNotFound) {
		return Info{}, err
	}

	if port == 0 {
		var err error
		if port, err = FindNextAvailablePort(ctx, b.cli); err != nil {
			return Info{}, fmt.Errorf("failed to allocate broker port: %w", err)
		}
	}
	b.logger.Printf("[Broker] Allocated port %d for session '%s'", port, session)

	if err := b.create(ctx, session, image, port, dockerpkg.GenerateRunID()); err != nil {
		b.logger.Printf("[Broker] Creation failed, rolling back: %v", err)
		if rollbackErr := b.Down(ctx, session); rollbackErr != nil && !errors.Is(rollbackErr, ErrNotFound) {
			b.logger.Printf("[Broker] Rollback encountered errors: %v", rollbackErr)
		}
		return Info{}, fmt.Errorf("failed to create broker: %w", err)
	}

	return Info{
		Session:  session,
		Status:   StatusRunning,
		Port:     port,
		RedisURL: RedisURL(port),
		Uptime:   FormatDuration(0),
	}, nil
}

func (b *Broker) create(ctx context.Context, session, image string, port int, runID string) error {
	networkName := dockerpkg.NetworkName(session)
	_, err := b.cli.NetworkCreate(ctx, networkName, types.NetworkCreate{
		Driver: "bridge",
		Labels: dockerpkg.BuildLabels(session, runID, ""),
	})
	if err != nil {
		return fmt.Errorf("failed to create network '%s': %w", networkName, err)
	}
	b.logger.Printf("[Broker] Created network %s", networkName)

	name := dockerpkg.BrokerContainerName(session)
	labels := dockerpkg.BuildLabels(session, runID, dockerpkg.RoleBroker)
	labels[dockerpkg.LabelRedisPort] = strconv.Itoa(port)

	resp, err := b.cli.ContainerCreate(ctx, &container.Config{
		Image:  image,
		Labels: labels,
		ExposedPorts: nat.PortSet{
			redisPort: struct{}{},
		},
	}, &container.HostConfig{
		NetworkMode: container.NetworkMode(networkName),
		PortBindings: nat.PortMap{
			redisPort: []nat.PortBinding{
				{
					HostIP:   "127.0.0.1",
					HostPort: strconv.Itoa(port),
				},
			},
		},
	}, nil, nil, name)
	if err != nil {
		return fmt.Errorf("failed to create Redis container: %w", err)
	}

	if err := b.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start Redis container: %w", err)
	}
	b.logger.Printf("[Broker] Started %s (port %d)", name, port)

	return nil
}

// Down stops and removes the containers and network of session.
func (b *Broker) Down(ctx context.Context, session string) error {
	sessionFilter := dockerpkg.SessionFilter(session)

	containers, err := b.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: sessionFilter,
	})
	if err != nil {
		return fmt.Errorf("failed to list containers: %w", err)
	}

	networks, err := b.cli.NetworkList(ctx, types.NetworkListOptions{
		Filters: sessionFilter,
	})
	if err != nil {
		return fmt.Errorf("failed to list networks: %w", err)
	}

	if len(containers) == 0 && len(networks) == 0 {
		return fmt.Errorf("%w: session '%s'", ErrNotFound, session)
	}

	timeout := 10
	var errs []error
	for _, c := range containers {
		name := containerName(c)
		b.logger.Printf("[Broker] Stopping %s", name)
		if err := b.cli.ContainerStop(ctx, c.ID, container.StopOptions{Timeout: &timeout}); err != nil {
			// already stopped containers are removed below anyway
			b.logger.Printf("[Broker] Failed to stop %s: %v", name, err)
		}
		if err := b.cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", name, err))
		}
	}

	for _, n := range networks {
		b.logger.Printf("[Broker] Removing network %s", n.Name)
		if err := b.cli.NetworkRemove(ctx, n.ID); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove network %s: %w", n.Name, err))
		}
	}

	return errors.Join(errs...)
}

// Find returns the broker of session.
func Find(ctx context.Context, cli ContainerLister, session string) (Info, error) {
	infos, err := list(ctx, cli, dockerpkg.LabelArg(dockerpkg.LabelSession, session))
	if err != nil {
		return Info{}, err
	}
	if len(infos) == 0 {
		return Info{}, fmt.Errorf("%w: session '%s'", ErrNotFound, session)
	}
	return infos[0], nil
}

// List returns every broker, sorted by session.
func List(ctx context.Context, cli ContainerLister) ([]Info, error) {
	return list(ctx, cli)
}

func list(ctx context.Context, cli ContainerLister, extra ...filters.KeyValuePair) ([]Info, error) {
	containers, err := cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: dockerpkg.BrokerFilter(extra...),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	bySession := make(map[string][]types.Container)
	for _, c := range containers {
		session := c.Labels[dockerpkg.LabelSession]
		bySession[session] = append(bySession[session], c)
	}

	infos := make([]Info, 0, len(bySession))
	for session, cs := range bySession {
		status := DetermineStatus(cs)
		port, _ := strconv.Atoi(cs[0].Labels[dockerpkg.LabelRedisPort])

		uptime := "-"
		if status == StatusRunning {
			uptime = FormatDuration(time.Since(time.Unix(cs[0].Created, 0)))
		}

		infos = append(infos, Info{
			Session:  session,
			Status:   status,
			Port:     port,
			RedisURL: RedisURL(port),
			Uptime:   uptime,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Session < infos[j].Session
	})
	return infos, nil
}

func containerName(c types.Container) string {
	if len(c.Names) > 0 {
		return c.Names[0]
	}
	return c.ID
}
