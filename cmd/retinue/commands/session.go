package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/dyluth/retinue/internal/companion"
	"github.com/dyluth/retinue/internal/config"
	"github.com/dyluth/retinue/internal/content"
	"github.com/dyluth/retinue/internal/health"
	"github.com/dyluth/retinue/internal/metrics"
	"github.com/dyluth/retinue/internal/peer"
	"github.com/dyluth/retinue/internal/printer"
	"github.com/dyluth/retinue/internal/session"
	"github.com/dyluth/retinue/internal/transport/memory"
	redistransport "github.com/dyluth/retinue/internal/transport/redis"
	"github.com/dyluth/retinue/internal/transport/ws"
	"github.com/dyluth/retinue/internal/watch"
	"github.com/dyluth/retinue/internal/world"
	"github.com/dyluth/retinue/pkg/wire"
)

// sessionOptions are the flags shared by host and join.
type sessionOptions struct {
	peerID      string
	healthAddr  string
	noHealth    bool
	hearts      int
	day         int
	joinTimeout time.Duration
	quiet       bool
	input       io.Reader
}

func (o *sessionOptions) register(flags *pflag.FlagSet) {
	flags.StringVar(&o.peerID, "peer", "", "Local peer id (default $"+EnvPeerID+" or generated)")
	flags.StringVar(&o.healthAddr, "health-addr", "", "Health and metrics listen address (default from retinue.yml)")
	flags.BoolVar(&o.noHealth, "no-health", false, "Do not serve /healthz and /metrics")
	flags.IntVar(&o.hearts, "hearts", 5, "Starting friendship hearts between every player and companion")
	flags.IntVar(&o.day, "day", 1, "Session day to start on")
	flags.DurationVar(&o.joinTimeout, "join-timeout", 30*time.Second, "How long join waits for a host")
	flags.BoolVar(&o.quiet, "quiet", false, "Discard runtime logs")
}

// connection is a peer's link to the session medium.
type connection struct {
	transport peer.Transport
	authority wire.PeerID
	pinger    health.Pinger
	close     func() error
}

// connect opens the configured transport. A host claims the session; a
// joiner waits for whoever claimed it.
func connect(ctx context.Context, cfg *config.RetinueConfig, local wire.PeerID, host bool, timeout time.Duration) (*connection, error) {
	switch cfg.Transport.Kind {
	case config.TransportMemory:
		if !host {
			return nil, printer.Error(
				"cannot join an in-process session",
				"The memory transport only carries a single local peer.",
				[]string{"Use transport.kind: redis or ws to play with others"},
			)
		}
		ep, err := memory.NewNetwork().Join(local)
		if err != nil {
			return nil, err
		}
		return &connection{transport: ep, authority: local, close: ep.Close}, nil

	case config.TransportRedis:
		opts, err := backend.ParseURL(cfg.Transport.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		client, err := redistransport.Join(ctx, opts, cfg.Session, local)
		if err != nil {
			return nil, printer.ErrorWithContext(
				"Redis connection failed",
				fmt.Sprintf("Could not join session '%s'.", cfg.Session),
				map[string]string{"Redis": cfg.Transport.RedisURL, "Error": err.Error()},
				[]string{"Start a broker:\n  retinue up", "Point at another Redis:\n  export " + EnvRedisURL + "=redis://host:6379"},
			)
		}

		var authority wire.PeerID
		if host {
			authority, err = client.ClaimAuthority(ctx)
		} else {
			authority, err = watch.PollForAuthority(ctx, client, timeout)
		}
		if err != nil {
			client.Close()
			return nil, err
		}
		return &connection{transport: client, authority: authority, pinger: client, close: client.Close}, nil

	case config.TransportWS:
		client, err := ws.Dial(ctx, cfg.Transport.RelayURL, cfg.Session, local, host)
		if err != nil {
			return nil, printer.ErrorWithContext(
				"relay connection failed",
				fmt.Sprintf("Could not join session '%s'.", cfg.Session),
				map[string]string{"Relay": cfg.Transport.RelayURL, "Error": err.Error()},
				[]string{"Start a relay:\n  retinue relay"},
			)
		}

		var authority wire.PeerID
		if host {
			authority, err = client.Authority(ctx)
		} else {
			authority, err = watch.PollForAuthority(ctx, client, timeout)
		}
		if err != nil {
			client.Close()
			return nil, err
		}
		return &connection{transport: client, authority: authority, close: client.Close}, nil
	}

	return nil, fmt.Errorf("unsupported transport: %s", cfg.Transport.Kind)
}

// collaborators builds the in-memory world of a CLI peer.
func collaborators(cfg *config.RetinueConfig, hearts int, logger *log.Logger) peer.Collaborators {
	var loader companion.ContentLoader = content.Builtin
	if cfg.ContentDir != "" {
		loader = content.Fallback{Primary: content.NewYAMLLoader(cfg.ContentDir), Secondary: content.Builtin}
	}

	homes := make(map[wire.EntityID]string, len(cfg.Companions))
	names := make(map[wire.EntityID]string, len(cfg.Companions))
	for _, c := range cfg.Companions {
		home := c.Home
		if home == "" {
			home = "Town"
		}
		homes[wire.EntityID(c.ID)] = home
		names[wire.EntityID(c.ID)] = c.Name
	}

	ledger := world.NewLedger()
	ledger.SetBaseHearts(hearts)
	bodies := world.NewBodies(homes, logger)

	return peer.Collaborators{
		Content:  loader,
		World:    bodies,
		Affinity: ledger,
		Buffs:    world.NewPerks(),
		AI:       world.NewFollowerFactory(bodies),
		UI:       world.NewPresenter(loader, names),
		Random:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// newPeer wires a peer for cfg on an open connection.
func newPeer(cfg *config.RetinueConfig, local wire.PeerID, conn *connection, opts *sessionOptions, m *metrics.Collector, logger *log.Logger) (*peer.Peer, error) {
	companions := make([]peer.Companion, len(cfg.Companions))
	for i, c := range cfg.Companions {
		companions[i] = peer.Companion{ID: wire.EntityID(c.ID), Name: c.Name}
	}

	return peer.New(peer.Config{
		Session:      session.Context{Session: cfg.Session, Local: local, Authority: conn.authority},
		Companions:   companions,
		Rules:        cfg.Rules(),
		Day:          opts.day,
		StartTime:    cfg.StartClock(),
		TickInterval: cfg.TickInterval(),
		TimeStep:     cfg.TimeStepInterval(),
	}, conn.transport, collaborators(cfg, opts.hearts, logger),
		peer.WithLogger(logger),
		peer.WithObserver(m),
		peer.WithStateGauge(m),
	)
}

// runSession hosts or joins the configured session and runs until interrupted.
func runSession(opts *sessionOptions, host bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	local := resolvePeerID(opts.peerID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := log.Default()
	if opts.quiet {
		logger = log.New(io.Discard, "", 0)
	}

	conn, err := connect(ctx, cfg, local, host, opts.joinTimeout)
	if err != nil {
		return err
	}
	defer conn.close()

	if host && conn.authority != local {
		return printer.Error(
			fmt.Sprintf("session '%s' is already hosted", cfg.Session),
			fmt.Sprintf("Peer '%s' hosts this session.", conn.authority),
			[]string{"Join it instead:\n  retinue join", "Or pick another session name in retinue.yml"},
		)
	}

	m := metrics.New(cfg.Session)
	p, err := newPeer(cfg, local, conn, opts, m, logger)
	if err != nil {
		return fmt.Errorf("failed to create peer: %w", err)
	}

	if !opts.noHealth {
		addr := opts.healthAddr
		if addr == "" {
			addr = cfg.Health.Addr
		}
		hs := health.NewServer(cfg.Session, conn.pinger, m.Handler(), logger)
		if err := hs.Start(addr); err != nil {
			printer.Warning("health server disabled: %v\n", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				hs.Shutdown(shutdownCtx)
			}()
		}
	}

	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("failed to start peer: %w", err)
	}

	role := "joined"
	if host {
		role = "hosting"
	}
	printer.Success("%s session '%s' as %s (host: %s)\n", role, cfg.Session, local, conn.authority)
	printer.Info("Type 'help' for commands.\n")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	input := opts.input
	if input == nil {
		input = os.Stdin
	}
	go newConsole(p, printer.Out).Run(runCtx, input, cancel)

	if err := p.Run(runCtx); err != nil {
		if errors.Is(err, wire.ErrDesync) {
			return printer.ErrorWithContext(
				"session out of sync",
				"This peer received a message it cannot reconcile with its state and stopped.",
				map[string]string{"Error": err.Error()},
				[]string{"Rejoin the session to resync:\n  retinue join"},
			)
		}
		return err
	}

	printer.Info("\nLeft session '%s'\n", cfg.Session)
	return nil
}
