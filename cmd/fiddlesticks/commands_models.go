package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/philo-groves/fiddlesticks/internal/config"
)

func buildModelsCmd() *cobra.Command {
	var (
		configPath string
		providerID string
	)

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List a provider's available models",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			if providerID == "" {
				return fmt.Errorf("--provider is required")
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			vault := vaultFromConfig(cfg)
			provider, err := buildProvider(cfg, providerID, vault)
			if err != nil {
				return fmt.Errorf("build provider: %w", err)
			}

			models, err := provider.ListModels(cmd.Context())
			if err != nil {
				return fmt.Errorf("list models: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, model := range models {
				fmt.Fprintln(out, model)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().StringVar(&providerID, "provider", "", "Provider id: openai, anthropic, ollama, opencode_zen")

	return cmd
}
