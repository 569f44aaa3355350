package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dyluth/retinue/internal/config"
	"github.com/dyluth/retinue/internal/printer"
	"github.com/dyluth/retinue/internal/timespec"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check retinue.yml and show the effective settings",
	Long: `Load retinue.yml, apply defaults and environment overrides, and print the
settings every peer of the session will run with.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	printer.Success("%s is valid\n\n", configPath)
	return renderConfig(os.Stdout, cfg)
}

// renderConfig prints the rules and companions of cfg.
func renderConfig(w io.Writer, cfg *config.RetinueConfig) error {
	rules := cfg.Rules()

	capacity := "one per companion"
	if rules.Capacity > 0 {
		capacity = strconv.Itoa(rules.Capacity)
	}
	blackout := "none"
	if len(rules.BlackoutDays) > 0 {
		days := make([]string, len(rules.BlackoutDays))
		for i, d := range rules.BlackoutDays {
			days[i] = strconv.Itoa(d)
		}
		blackout = strings.Join(days, ", ")
	}
	endpoint := "in-process"
	switch cfg.Transport.Kind {
	case config.TransportRedis:
		endpoint = cfg.Transport.RedisURL
	case config.TransportWS:
		endpoint = cfg.Transport.RelayURL
	}

	settings := tablewriter.NewWriter(w)
	settings.Header([]string{"Setting", "Value"})
	rows := [][]string{
		{"session", cfg.Session},
		{"transport", fmt.Sprintf("%s (%s)", cfg.Transport.Kind, endpoint)},
		{"day starts", timespec.FormatClock(cfg.StartClock())},
		{"auto release", timespec.FormatClock(rules.AutoReleaseAt)},
		{"exclusive", strconv.FormatBool(rules.Exclusive)},
		{"max per peer", strconv.Itoa(rules.MaxPerPeer)},
		{"capacity", capacity},
		{"blackout days", blackout},
		{"tick rate", cfg.TickInterval().String()},
		{"time step", cfg.TimeStepInterval().String()},
	}
	for _, row := range rows {
		if err := settings.Append(row); err != nil {
			return err
		}
	}
	if err := settings.Render(); err != nil {
		return err
	}
	fmt.Fprintln(w)

	companions := tablewriter.NewWriter(w)
	companions.Header([]string{"Companion", "Name", "Home"})
	for _, c := range cfg.Companions {
		home := c.Home
		if home == "" {
			home = "-"
		}
		if err := companions.Append([]string{c.ID, c.Name, home}); err != nil {
			return err
		}
	}
	return companions.Render()
}
