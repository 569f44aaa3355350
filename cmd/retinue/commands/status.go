package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dyluth/retinue/internal/broker"
	"github.com/dyluth/retinue/internal/config"
	dockerpkg "github.com/dyluth/retinue/internal/docker"
	"github.com/dyluth/retinue/internal/printer"
	redistransport "github.com/dyluth/retinue/internal/transport/redis"
	"github.com/dyluth/retinue/internal/transport/ws"
	"github.com/dyluth/retinue/pkg/wire"
)

var statusBrokers bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show who is in the session",
	Long: `Show the peers of the session named in retinue.yml and which one hosts it.

With --brokers, list every retinue Redis broker on this Docker host instead.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusBrokers, "brokers", false, "List Docker-managed Redis brokers")
	rootCmd.AddCommand(statusCmd)
}

// roster is the membership of one session.
type roster struct {
	Session   string
	Authority wire.PeerID
	Peers     []wire.PeerID
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if statusBrokers {
		cli, err := dockerpkg.NewClient(ctx)
		if err != nil {
			return err
		}
		defer cli.Close()

		infos, err := broker.List(ctx, cli)
		if err != nil {
			return fmt.Errorf("failed to list brokers: %w", err)
		}
		if len(infos) == 0 {
			printer.Info("No brokers found\n\nStart one with:\n  retinue up\n")
			return nil
		}
		return renderBrokers(os.Stdout, infos)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	r, err := readRoster(ctx, cfg)
	if err != nil {
		return err
	}
	if len(r.Peers) == 0 {
		printer.Info("Session '%s' has no peers\n", r.Session)
		return nil
	}
	printer.Info("Session '%s'\n\n", r.Session)
	return renderRoster(os.Stdout, r)
}

func readRoster(ctx context.Context, cfg *config.RetinueConfig) (roster, error) {
	switch cfg.Transport.Kind {
	case config.TransportRedis:
		opts, err := backend.ParseURL(cfg.Transport.RedisURL)
		if err != nil {
			return roster{}, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		monitor, err := redistransport.NewMonitor(opts, cfg.Session)
		if err != nil {
			return roster{}, err
		}
		defer monitor.Close()

		peers, err := monitor.Peers(ctx)
		if err != nil {
			return roster{}, printer.ErrorWithContext(
				"Redis connection failed",
				fmt.Sprintf("Could not read session '%s'.", cfg.Session),
				map[string]string{"Redis": cfg.Transport.RedisURL, "Error": err.Error()},
				[]string{"Start a broker:\n  retinue up"},
			)
		}
		authority, err := monitor.Authority(ctx)
		if err != nil {
			return roster{}, err
		}
		return roster{Session: cfg.Session, Authority: authority, Peers: peers}, nil

	case config.TransportWS:
		info, err := ws.FetchInfo(ctx, nil, cfg.Transport.RelayURL, cfg.Session)
		if err != nil {
			return roster{}, printer.ErrorWithContext(
				"relay unreachable",
				fmt.Sprintf("Could not read session '%s'.", cfg.Session),
				map[string]string{"Relay": cfg.Transport.RelayURL, "Error": err.Error()},
				[]string{"Start a relay:\n  retinue relay"},
			)
		}
		return roster{Session: cfg.Session, Authority: info.Authority, Peers: info.Peers}, nil
	}

	return roster{}, printer.Error(
		"status needs a shared transport",
		fmt.Sprintf("Session '%s' uses transport '%s', which lives inside one process.", cfg.Session, cfg.Transport.Kind),
		[]string{"Set transport.kind to redis or ws in retinue.yml"},
	)
}

func renderRoster(w io.Writer, r roster) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Peer", "Role"})
	for _, p := range r.Peers {
		role := "guest"
		if p == r.Authority {
			role = "host"
		}
		if err := table.Append([]string{string(p), role}); err != nil {
			return err
		}
	}
	return table.Render()
}

func renderBrokers(w io.Writer, infos []broker.Info) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Session", "Status", "Port", "Uptime"})
	for _, info := range infos {
		port := "-"
		if info.Port > 0 {
			port = strconv.Itoa(info.Port)
		}
		if err := table.Append([]string{info.Session, string(info.Status), port, info.Uptime}); err != nil {
			return err
		}
	}
	return table.Render()
}
