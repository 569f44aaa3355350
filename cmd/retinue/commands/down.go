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

var downSession string

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop the session's Redis broker",
	Long: `Stop and remove the Docker resources of a session's broker.

The session is read from retinue.yml unless --session is given.
The command does not prompt for confirmation and executes immediately.`,
	RunE: runDown,
}

func init() {
	downCmd.Flags().StringVarP(&downSession, "session", "s", "", "Session to stop (default from retinue.yml)")
	rootCmd.AddCommand(downCmd)
}

func runDown(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	session := downSession
	if session == "" {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		session = cfg.Session
	}

	cli, err := dockerpkg.NewClient(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()

	printer.Step("Removing broker for session '%s'...\n", session)
	err = broker.New(cli, nil).Down(ctx, session)
	if errors.Is(err, broker.ErrNotFound) {
		return printer.Error(
			fmt.Sprintf("session '%s' has no broker", session),
			fmt.Sprintf("No containers or networks are labelled with session '%s'.", session),
			[]string{"Run 'retinue status --brokers' to see running brokers"},
		)
	}
	if err != nil {
		return err
	}

	printer.Success("Broker for '%s' removed\n", session)
	return nil
}
