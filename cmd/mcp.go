package cmd

import (
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/mailmate/mailmate/internal/authstore"
	"github.com/mailmate/mailmate/internal/llm"
	"github.com/mailmate/mailmate/internal/logging"
	"github.com/mailmate/mailmate/internal/mcptools"
)

func newMCPCmd() *cobra.Command {
	var (
		debugMode     bool
		sessionKey    string
		tokenFile     string
		openaiAPIKey  string
		openaiBaseURL string
		openaiModel   string
		envFile       string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server on stdio",
		Long: `Start a Model Context Protocol server on stdio exposing the assistant
tools (email search, inbox summary) and the gateway listings to MCP-capable
AI agents.

The tools operate on one stored session: complete the OAuth login against
the HTTP API first and pass the minted session key.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loadEnvFile(envFile)

			sessionKey = envString(cmd, "session-key", "SESSION_KEY", sessionKey)
			tokenFile = envString(cmd, "token-file", "TOKEN_FILE", tokenFile)
			openaiAPIKey = envString(cmd, "openai-api-key", "OPENAI_API_KEY", openaiAPIKey)
			openaiBaseURL = envString(cmd, "openai-base-url", "OPENAI_BASE_URL", openaiBaseURL)
			openaiModel = envString(cmd, "openai-model", "OPENAI_MODEL", openaiModel)

			logging.Setup(debugMode)

			if sessionKey == "" {
				return fmt.Errorf("session key is required: set --session-key or SESSION_KEY")
			}
			if openaiAPIKey == "" {
				return fmt.Errorf("LLM provider key is required: set --openai-api-key or OPENAI_API_KEY")
			}

			store := authstore.NewFileStore(tokenFile)
			if err := store.Load(); err != nil {
				return fmt.Errorf("failed to load credential store: %w", err)
			}

			llmCfg := llm.DefaultConfig()
			llmCfg.APIKey = openaiAPIKey
			if openaiBaseURL != "" {
				llmCfg.BaseURL = openaiBaseURL
			}
			if openaiModel != "" {
				llmCfg.Model = openaiModel
			}

			mcpSrv := mcpserver.NewMCPServer("mailmate", version,
				mcpserver.WithToolCapabilities(true),
			)

			err := mcptools.RegisterTools(mcpSrv, mcptools.Deps{
				Store:      store,
				Chat:       llm.NewClient(llmCfg),
				SessionKey: sessionKey,
			})
			if err != nil {
				return fmt.Errorf("failed to register tools: %w", err)
			}

			if err := mcpserver.ServeStdio(mcpSrv); err != nil {
				return fmt.Errorf("server stopped with error: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&sessionKey, "session-key", "", "Session key minted by the OAuth login. Can also use SESSION_KEY env var.")
	cmd.Flags().StringVar(&tokenFile, "token-file", "tokens.json", "Path of the credential store snapshot. Can also use TOKEN_FILE env var.")
	cmd.Flags().StringVar(&openaiAPIKey, "openai-api-key", "", "API key for the LLM provider. Can also use OPENAI_API_KEY env var.")
	cmd.Flags().StringVar(&openaiBaseURL, "openai-base-url", "", "Base URL for an OpenAI-compatible provider. Can also use OPENAI_BASE_URL env var.")
	cmd.Flags().StringVar(&openaiModel, "openai-model", "", "Model name for chat and tool routing. Can also use OPENAI_MODEL env var.")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Path of an optional .env file loaded before env vars are read")

	return cmd
}
