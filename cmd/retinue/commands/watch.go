package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dyluth/retinue/internal/config"
	"github.com/dyluth/retinue/internal/printer"
	redistransport "github.com/dyluth/retinue/internal/transport/redis"
	"github.com/dyluth/retinue/internal/watch"
)

var (
	watchOutputFormat string
	watchAll          bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor session traffic in real time",
	Long: `Monitor the messages peers exchange in the session named in retinue.yml.

Streams interactions, ownership claims, state changes and warps as they are
sent, without joining the session.

Output Formats:
  default - Human-readable output with timestamps
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Watch the configured session
  retinue watch

  # Export events as JSON
  retinue watch --output=json > events.jsonl

  # Show every delivered copy of broadcasts
  retinue watch --all`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	watchCmd.Flags().BoolVar(&watchAll, "all", false, "Show one line per recipient instead of one per message")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	var outputFormat watch.OutputFormat
	switch watchOutputFormat {
	case "default":
		outputFormat = watch.OutputFormatDefault
	case "json":
		outputFormat = watch.OutputFormatJSON
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Transport.Kind != config.TransportRedis {
		return printer.Error(
			"watch needs the redis transport",
			fmt.Sprintf("Session '%s' uses transport '%s', which cannot be observed from outside.", cfg.Session, cfg.Transport.Kind),
			[]string{"Set transport.kind: redis in retinue.yml"},
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts, err := backend.ParseURL(cfg.Transport.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	monitor, err := redistransport.NewMonitor(opts, cfg.Session)
	if err != nil {
		return err
	}
	defer monitor.Close()

	if err := monitor.Ping(ctx); err != nil {
		return printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", cfg.Transport.RedisURL),
			nil,
			[]string{
				fmt.Sprintf("Check the broker:\n  docker logs retinue-redis-%s", cfg.Session),
				"Restart it if needed:\n  retinue down && retinue up",
			},
		)
	}

	sub, err := monitor.Watch(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	if outputFormat == watch.OutputFormatDefault {
		printer.Info("Watching session '%s' (Ctrl+C to stop)\n", cfg.Session)
	}
	return watch.Stream(ctx, sub.Frames(), os.Stdout, outputFormat, !watchAll)
}
