package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/philo-groves/fiddlesticks/internal/config"
	"github.com/philo-groves/fiddlesticks/internal/fidchat"
	"github.com/philo-groves/fiddlesticks/internal/fidcommon"
	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
	"github.com/philo-groves/fiddlesticks/internal/harness"
	"github.com/philo-groves/fiddlesticks/internal/observability"
)

func buildRunCmd() *cobra.Command {
	var (
		configPath string
		sessionID  string
		objective  string
		stream     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive one harness run against a session",
		Long: `Dispatches to the initializer on a session's first call, and to one
task-iteration call on every call after that, per the configured run
policy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			if sessionID == "" {
				return fmt.Errorf("--session is required")
			}
			if objective == "" {
				return fmt.Errorf("--objective is required")
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := newLogger(cfg)

			h, err := buildHarness(cfg)
			if err != nil {
				return fmt.Errorf("build harness: %w", err)
			}

			session := fidchat.Session{
				ID:       fidcommon.SessionID(sessionID),
				Provider: fidprovider.ProviderID(cfg.Provider.Default),
				Model:    cfg.Provider.Model,
			}
			request := harness.NewRuntimeRunRequest(session, sessionID+"-run", objective)
			request.Stream = stream

			out := cmd.OutOrStdout()
			var observer harness.EventObserver
			if stream {
				observer = func(event fidchat.Event) {
					if event.TextDelta != nil {
						fmt.Fprint(out, *event.TextDelta)
					}
				}
			}

			logger.Info(cmd.Context(), "starting harness run", "session_id", sessionID, "stream", stream)
			outcome, err := h.RunWithObserver(cmd.Context(), request, observer)
			if err != nil {
				logger.Error(cmd.Context(), "harness run failed", "session_id", sessionID, "error", err)
				return fmt.Errorf("harness run: %w", err)
			}

			if outcome.Initializer != nil {
				fmt.Fprintf(out, "initialized session %s (created=%v, features=%d)\n",
					outcome.Initializer.SessionID, outcome.Initializer.Created, outcome.Initializer.FeatureCount)
			}
			if outcome.TaskIteration != nil {
				ti := outcome.TaskIteration
				fmt.Fprintf(out, "task iteration on session %s: processed=%d validated=%v no_pending=%v\n",
					ti.SessionID, ti.ProcessedFeatureCount, ti.Validated, ti.NoPendingFeatures)
				if ti.AssistantMessage != nil && !stream {
					fmt.Fprintln(out, *ti.AssistantMessage)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID")
	cmd.Flags().StringVar(&objective, "objective", "", "Session objective, used by the initializer phase")
	cmd.Flags().BoolVar(&stream, "stream", false, "Stream the task-iteration turn's text deltas to stdout")

	return cmd
}

// buildHarness wires a harness.Harness from cfg: memory backend, provider,
// run policy, and panic-isolated hooks over the provider and phase
// lifecycle.
func buildHarness(cfg *config.Config) (*harness.Harness, error) {
	memory, err := buildMemoryBackend(cfg)
	if err != nil {
		return nil, fmt.Errorf("build memory backend: %w", err)
	}

	vault := vaultFromConfig(cfg)
	provider, err := buildProvider(cfg, cfg.Provider.Default, vault)
	if err != nil {
		return nil, fmt.Errorf("build provider: %w", err)
	}

	chatHooks := observability.NewSafeProviderHooks(fidprovider.NoopProviderOperationHooks{}, nil)
	harnessHooks := observability.NewSafeHarnessHooks(harness.NoopHarnessHooks{}, nil)

	return harness.NewBuilder(memory).
		WithProvider(provider).
		WithChatHooks(chatHooks).
		WithHarnessHooks(harnessHooks).
		WithRunPolicy(cfg.RunPolicy()).
		Build()
}
