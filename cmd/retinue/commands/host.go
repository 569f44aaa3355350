package commands

import (
	"github.com/spf13/cobra"
)

var hostOpts sessionOptions

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Host a session as its authority",
	Long: `Host the session named in retinue.yml.

The host arbitrates every claim on a companion and broadcasts the outcome to
the other peers. Only one peer can host a session; a second host is refused.

With transport.kind: memory the session runs in-process for a single player.

Examples:
  # Host with the settings from retinue.yml
  retinue host --peer farmer

  # Host on another Redis
  RETINUE_REDIS_URL=redis://10.0.0.5:6379 retinue host`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(&hostOpts, true)
	},
}

func init() {
	hostOpts.register(hostCmd.Flags())
	rootCmd.AddCommand(hostCmd)
}
