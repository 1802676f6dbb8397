package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the mailmate application
var rootCmd = &cobra.Command{
	Use:   "mailmate",
	Short: "Email and calendar assistant backend",
	Long: `mailmate is the backend for an email/calendar assistant: it exposes
OAuth-gated Gmail and Calendar operations plus an LLM-driven tool-calling
chat endpoint.

It can run as:
  - The HTTP API server (default)
  - A relay for the virtual-avatar frontend
  - An MCP (Model Context Protocol) server for AI assistants`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mailmate version %s\n" .Version}}`)

	// If no subcommand is provided, run the API server by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newRelayCmd())
	rootCmd.AddCommand(newMCPCmd())
	rootCmd.AddCommand(newVersionCmd())
}
