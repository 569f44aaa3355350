package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/retinue/internal/broker"
	dockerpkg "github.com/dyluth/retinue/internal/docker"
	"github.com/dyluth/retinue/internal/printer"
)

var upPort int

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Start the session's Redis broker",
	Long: `Start a Redis broker for the session named in retinue.yml.

Creates and starts:
  • Isolated Docker network
  • Redis container carrying the session's traffic

The broker's host port is picked from 6379-6478 unless broker.port or --port
sets it.`,
	RunE: runUp,
}

func init() {
	upCmd.Flags().IntVar(&upPort, "port", 0, "Host port for Redis (default from retinue.yml, else next free)")
	rootCmd.AddCommand(upCmd)
}

func runUp(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	cli, err := dockerpkg.NewClient(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()

	port := upPort
	if port == 0 {
		port = cfg.Broker.Port
	}

	printer.Step("Starting broker for session '%s'...\n", cfg.Session)
	info, err := broker.New(cli, nil).Up(ctx, cfg.Session, cfg.Broker.Image, port)
	if errors.Is(err, broker.ErrExists) {
		return printer.Error(
			fmt.Sprintf("session '%s' already has a broker", cfg.Session),
			"Found an existing broker container for this session.",
			[]string{
				"Use it as is:\n  retinue host",
				"Recreate it:\n  retinue down && retinue up",
			},
		)
	}
	if err != nil {
		return err
	}

	printer.Success("Broker for '%s' started\n\n", info.Session)
	printer.Info("Containers:\n  • %s (running)\n\n", dockerpkg.BrokerContainerName(info.Session))
	printer.Info("Network:\n  • %s\n\n", dockerpkg.NetworkName(info.Session))
	printer.Info("Redis: %s\n\n", info.RedisURL)
	printer.Info("Next steps:\n")
	printer.Info("  1. export %s=%s\n", EnvRedisURL, info.RedisURL)
	printer.Info("  2. Run 'retinue host' on one machine and 'retinue join' on the others\n")
	printer.Info("  3. Run 'retinue down' when finished\n")
	return nil
}
