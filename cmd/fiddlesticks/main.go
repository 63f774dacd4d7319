// Package main provides the CLI entry point for fiddlesticks, a
// conversational LLM orchestrator: a chat turn engine sitting over
// OpenAI-compatible, Anthropic, Ollama, and OpenCode-Zen providers, driven
// through a two-phase (initializer, task-iteration) harness with a
// pluggable backing store.
//
// # Basic Usage
//
// Drive one harness run against a session:
//
//	fiddlesticks run --config fiddlesticks.yaml --session demo --objective "scaffold the repo"
//
// List a provider's available models:
//
//	fiddlesticks models --provider anthropic
//
// # Environment Variables
//
//   - OPENAI_API_KEY, ANTHROPIC_API_KEY, OPENCODE_ZEN_API_KEY: provider credentials
//   - FMEMORY_SQLITE_PATH: sqlite memory backend path override
//   - FMEMORY_POSTGRES_DSN: postgres memory backend DSN override
//   - FIDDLESTICKS_LOG_LEVEL: logging level override
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
//
// Example build command:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fiddlesticks",
		Short: "fiddlesticks - conversational LLM orchestrator",
		Long: `fiddlesticks drives chat turns against pluggable LLM providers and
persists session state through a two-phase harness.

Supported providers: OpenAI-compatible, Anthropic, Ollama, OpenCode-Zen
Supported memory backends: in-memory, filesystem, SQLite, Postgres`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildRunCmd(),
		buildModelsCmd(),
		buildVersionCmd(),
	)

	return rootCmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "fiddlesticks %s (commit: %s, built: %s)\n", version, commit, date)
			return nil
		},
	}
}
