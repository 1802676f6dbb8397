package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mailmate/mailmate/internal/logging"
	"github.com/mailmate/mailmate/internal/relay"
	"github.com/mailmate/mailmate/internal/server"
)

func newRelayCmd() *cobra.Command {
	var (
		debugMode  bool
		httpAddr   string
		backendURL string
		envFile    string
	)

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Start the avatar-frontend relay",
		Long: `Start the relay that the virtual-avatar frontend talks to.

The relay hands the browser a session cookie on entry and forwards chat
messages to the backend API with the backend's session cookie attached.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loadEnvFile(envFile)

			httpAddr = envString(cmd, "http-addr", "RELAY_ADDR", httpAddr)
			backendURL = envString(cmd, "backend-url", "BACKEND_URL", backendURL)

			logging.Setup(debugMode)

			return runRelay(relay.Config{
				Addr:       httpAddr,
				BackendURL: backendURL,
			})
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":12393", "Relay server address. Can also use RELAY_ADDR env var.")
	cmd.Flags().StringVar(&backendURL, "backend-url", "http://localhost:8101", "Base URL of the backend API. Can also use BACKEND_URL env var.")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Path of an optional .env file loaded before env vars are read")

	return cmd
}

func runRelay(cfg relay.Config) error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	relayServer := relay.New(cfg)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- relayServer.Start()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("relay server stopped: %w", err)
		}
		return nil
	case <-shutdownCtx.Done():
	}

	ctx, cancelShutdown := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancelShutdown()

	if err := relayServer.Shutdown(ctx); err != nil {
		slog.Warn("relay shutdown failed", logging.Err(err))
	}
	return nil
}
