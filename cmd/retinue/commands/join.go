package commands

import (
	"github.com/spf13/cobra"
)

var joinOpts sessionOptions

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join a hosted session",
	Long: `Join the session named in retinue.yml as a replica.

The joiner waits for the session's host, asks it for the state of every
companion and then follows the host's decisions.

Examples:
  retinue join --peer alice
  RETINUE_PEER_ID=bob retinue join --join-timeout 1m`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(&joinOpts, false)
	},
}

func init() {
	joinOpts.register(joinCmd.Flags())
	rootCmd.AddCommand(joinCmd)
}
