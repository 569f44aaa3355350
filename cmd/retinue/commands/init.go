package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/retinue/internal/scaffold"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new retinue project",
	Long: `Initialize a new retinue project in the current directory.

Creates:
  • retinue.yml - Session configuration file
  • content/    - Companion strings and dialogue, seeded with the defaults

Use --force to reinitialize an existing project (WARNING: destroys existing configuration).`,
	RunE: runInit,
}

func init() {
	// Note: Cannot use -f shorthand because it conflicts with the config flag
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Force reinitialization (removes existing retinue.yml and content/)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if !forceInit {
		if err := scaffold.CheckExisting("."); err != nil {
			return err
		}
	}

	if err := scaffold.Initialize(".", forceInit); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	scaffold.PrintSuccess()
	return nil
}
