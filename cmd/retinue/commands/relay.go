package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/dyluth/retinue/internal/health"
	"github.com/dyluth/retinue/internal/printer"
	"github.com/dyluth/retinue/internal/transport/ws"
)

var relayAddr string

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run a websocket relay for peers without Redis",
	Long: `Run a websocket relay. Peers with transport.kind: ws connect to it and the
relay forwards each frame to the peer named in its envelope.

Routes:
  GET /sessions/{session}                   roster and host as JSON
  GET /sessions/{session}/peers/{peer}      websocket (add ?host=true to host)
  GET /healthz                              liveness`,
	Args: cobra.NoArgs,
	RunE: runRelay,
}

func init() {
	relayCmd.Flags().StringVar(&relayAddr, "addr", ":8070", "Listen address")
	rootCmd.AddCommand(relayCmd)
}

func runRelay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	relay := ws.NewRelay(ws.RelayConfig{})

	r := chi.NewRouter()
	relay.Mount(r)
	r.Method(http.MethodGet, "/healthz", health.NewServer("relay", nil, nil, nil).Handler())

	srv := &http.Server{
		Addr:              relayAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	printer.Success("Relay listening on %s\n", relayAddr)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return printer.Error(
				"relay failed",
				fmt.Sprintf("Could not serve on %s: %v", relayAddr, err),
				[]string{"Pick another address:\n  retinue relay --addr :8071"},
			)
		}
	case <-ctx.Done():
		printer.Info("\nShutting down relay...\n")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
