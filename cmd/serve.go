package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mailmate/mailmate/internal/authstore"
	"github.com/mailmate/mailmate/internal/google"
	"github.com/mailmate/mailmate/internal/instrumentation"
	"github.com/mailmate/mailmate/internal/llm"
	"github.com/mailmate/mailmate/internal/logging"
	"github.com/mailmate/mailmate/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		debugMode          bool
		httpAddr           string
		baseURL            string
		frontendOrigin     string
		googleClientID     string
		googleClientSecret string
		tokenFile          string
		openaiAPIKey       string
		openaiBaseURL      string
		openaiModel        string
		envFile            string
		metricsEnabled     bool
		metricsAddr        string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the backend HTTP API server.

It serves the OAuth login flow, the email and calendar endpoints and the
assistant chat endpoint. Metrics are exposed on a dedicated port.

Configuration:
  Google OAuth (required):
    --google-client-id and --google-client-secret flags
    OR GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars

  LLM provider (required):
    --openai-api-key flag OR OPENAI_API_KEY env var
    The base URL is configurable for OpenAI-compatible providers.

  An optional .env file is loaded before env vars are read.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loadEnvFile(envFile)

			httpAddr = envString(cmd, "http-addr", "HTTP_ADDR", httpAddr)
			baseURL = envString(cmd, "base-url", "CURRENT_HOSTNAME", baseURL)
			frontendOrigin = envString(cmd, "frontend-origin", "FRONTEND_ORIGIN", frontendOrigin)
			googleClientID = envString(cmd, "google-client-id", "GOOGLE_CLIENT_ID", googleClientID)
			googleClientSecret = envString(cmd, "google-client-secret", "GOOGLE_CLIENT_SECRET", googleClientSecret)
			tokenFile = envString(cmd, "token-file", "TOKEN_FILE", tokenFile)
			openaiAPIKey = envString(cmd, "openai-api-key", "OPENAI_API_KEY", openaiAPIKey)
			openaiBaseURL = envString(cmd, "openai-base-url", "OPENAI_BASE_URL", openaiBaseURL)
			openaiModel = envString(cmd, "openai-model", "OPENAI_MODEL", openaiModel)
			metricsAddr = envString(cmd, "metrics-addr", "METRICS_ADDR", metricsAddr)

			logging.Setup(debugMode)

			if googleClientID == "" || googleClientSecret == "" {
				return fmt.Errorf("google OAuth client is required: set --google-client-id/--google-client-secret or GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET")
			}
			if openaiAPIKey == "" {
				return fmt.Errorf("LLM provider key is required: set --openai-api-key or OPENAI_API_KEY")
			}

			return runServe(serveConfig{
				debug:          debugMode,
				httpAddr:       httpAddr,
				baseURL:        baseURL,
				frontendOrigin: frontendOrigin,
				google: google.Config{
					ClientID:     googleClientID,
					ClientSecret: googleClientSecret,
					RedirectURL:  baseURL + "/auth/callback",
				},
				tokenFile:      tokenFile,
				openaiAPIKey:   openaiAPIKey,
				openaiBaseURL:  openaiBaseURL,
				openaiModel:    openaiModel,
				metricsEnabled: metricsEnabled,
				metricsAddr:    metricsAddr,
			})
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8101", "HTTP server address. Can also use HTTP_ADDR env var.")
	cmd.Flags().StringVar(&baseURL, "base-url", "http://127.0.0.1:8101", "Public base URL of this server, used for the OAuth redirect. Can also use CURRENT_HOSTNAME env var.")
	cmd.Flags().StringVar(&frontendOrigin, "frontend-origin", "http://localhost:8501", "Frontend base URL: the CORS allow-origin and post-login redirect target. Can also use FRONTEND_ORIGIN env var.")
	cmd.Flags().StringVar(&googleClientID, "google-client-id", "", "Google OAuth client ID. Can also use GOOGLE_CLIENT_ID env var.")
	cmd.Flags().StringVar(&googleClientSecret, "google-client-secret", "", "Google OAuth client secret. Can also use GOOGLE_CLIENT_SECRET env var.")
	cmd.Flags().StringVar(&tokenFile, "token-file", "tokens.json", "Path of the credential store snapshot. Can also use TOKEN_FILE env var.")
	cmd.Flags().StringVar(&openaiAPIKey, "openai-api-key", "", "API key for the LLM provider. Can also use OPENAI_API_KEY env var.")
	cmd.Flags().StringVar(&openaiBaseURL, "openai-base-url", "", "Base URL for an OpenAI-compatible provider. Can also use OPENAI_BASE_URL env var.")
	cmd.Flags().StringVar(&openaiModel, "openai-model", "", "Model name for chat and tool routing. Can also use OPENAI_MODEL env var.")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Path of an optional .env file loaded before env vars are read")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

type serveConfig struct {
	debug          bool
	httpAddr       string
	baseURL        string
	frontendOrigin string
	google         google.Config
	tokenFile      string
	openaiAPIKey   string
	openaiBaseURL  string
	openaiModel    string
	metricsEnabled bool
	metricsAddr    string
}

func runServe(cfg serveConfig) error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store := authstore.NewFileStore(cfg.tokenFile)
	if err := store.Load(); err != nil {
		return fmt.Errorf("failed to load credential store: %w", err)
	}
	slog.Info("credential store loaded",
		slog.String("path", cfg.tokenFile),
		slog.Int("sessions", store.Len()))

	llmCfg := llm.DefaultConfig()
	llmCfg.APIKey = cfg.openaiAPIKey
	if cfg.openaiBaseURL != "" {
		llmCfg.BaseURL = cfg.openaiBaseURL
	}
	if cfg.openaiModel != "" {
		llmCfg.Model = cfg.openaiModel
	}
	chat := llm.NewClient(llmCfg)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.Enabled = cfg.metricsEnabled
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			slog.Warn("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	var metricsServer *server.MetricsServer
	if provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.metricsAddr,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server stopped", logging.Err(err))
			}
		}()
	}

	apiServer := server.New(server.Config{
		Addr:           cfg.httpAddr,
		FrontendOrigin: cfg.frontendOrigin,
		Google:         cfg.google,
	}, store, chat, provider.Metrics())

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- apiServer.Start()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("api server stopped: %w", err)
		}
		return nil
	case <-shutdownCtx.Done():
	}

	ctx, cancelShutdown := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancelShutdown()

	if err := apiServer.Shutdown(ctx); err != nil {
		slog.Warn("api server shutdown failed", logging.Err(err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Warn("metrics server shutdown failed", logging.Err(err))
		}
	}
	return nil
}

// loadEnvFile loads a .env file when it exists. A missing file is not an
// error so production deployments can rely on real env vars.
func loadEnvFile(path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		slog.Warn("failed to load env file",
			slog.String("path", path),
			logging.Err(err))
	}
}

// envString returns current unless the flag was left at its default and the
// env var is set, in which case the env var wins.
func envString(cmd *cobra.Command, flag, env, current string) string {
	if cmd.Flags().Changed(flag) {
		return current
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return current
}
