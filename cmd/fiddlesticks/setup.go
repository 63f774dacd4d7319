package main

import (
	"fmt"

	"github.com/philo-groves/fiddlesticks/internal/config"
	"github.com/philo-groves/fiddlesticks/internal/credentials"
	"github.com/philo-groves/fiddlesticks/internal/fidmemory"
	"github.com/philo-groves/fiddlesticks/internal/fidmemory/backend/filesystem"
	"github.com/philo-groves/fiddlesticks/internal/fidmemory/backend/inmemory"
	"github.com/philo-groves/fiddlesticks/internal/fidmemory/backend/postgres"
	"github.com/philo-groves/fiddlesticks/internal/fidmemory/backend/sqlite"
	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
	"github.com/philo-groves/fiddlesticks/internal/fidprovideradapters/anthropic"
	"github.com/philo-groves/fiddlesticks/internal/fidprovideradapters/ollama"
	"github.com/philo-groves/fiddlesticks/internal/fidprovideradapters/openai"
	"github.com/philo-groves/fiddlesticks/internal/fidprovideradapters/zen"
	"github.com/philo-groves/fiddlesticks/internal/observability"
)

// vaultFromConfig loads every configured provider credential into a fresh
// vault. A provider with no API key configured is simply absent from the
// vault; building an adapter for it still succeeds, but the adapter's first
// call fails with a providererr.Authentication error.
func vaultFromConfig(cfg *config.Config) *credentials.Vault {
	vault := credentials.NewVault()
	if cfg.Provider.OpenAI.APIKey != "" {
		vault.Set("openai", credentials.NewAPIKey(cfg.Provider.OpenAI.APIKey), nil)
	}
	if cfg.Provider.Anthropic.APIKey != "" {
		vault.Set("anthropic", credentials.NewAPIKey(cfg.Provider.Anthropic.APIKey), nil)
	}
	if cfg.Provider.OpenCodeZen.APIKey != "" {
		vault.Set("opencode_zen", credentials.NewAPIKey(cfg.Provider.OpenCodeZen.APIKey), nil)
	}
	return vault
}

// buildProvider constructs the named provider's ModelProvider from cfg.
func buildProvider(cfg *config.Config, providerID string, vault *credentials.Vault) (fidprovider.ModelProvider, error) {
	switch fidprovider.ProviderID(providerID) {
	case fidprovider.OpenAI:
		return openai.New(vault, cfg.Provider.OpenAI.BaseURL, nil), nil
	case fidprovider.Anthropic:
		return anthropic.New(vault, "", nil), nil
	case fidprovider.Ollama:
		return ollama.New(cfg.Provider.Ollama.BaseURL, "", nil), nil
	case fidprovider.OpenCodeZen:
		return zen.New(vault, cfg.Provider.OpenCodeZen.BaseURL, nil), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", providerID)
	}
}

// buildMemoryBackend constructs cfg.Memory.Backend's MemoryBackend
// implementation.
func buildMemoryBackend(cfg *config.Config) (fidmemory.MemoryBackend, error) {
	switch cfg.Memory.Backend {
	case "inmemory":
		return inmemory.New(nil), nil
	case "filesystem":
		dir := cfg.Memory.FilesystemDir
		if dir == "" {
			dir = ".fiddlesticks/sessions"
		}
		return filesystem.New(dir, nil), nil
	case "sqlite":
		return sqlite.New(cfg.Memory.SQLitePath)
	case "postgres":
		pcfg := postgres.DefaultConfig()
		if cfg.Memory.MaxOpenConns > 0 {
			pcfg.MaxOpenConns = cfg.Memory.MaxOpenConns
		}
		if cfg.Memory.MaxIdleConns > 0 {
			pcfg.MaxIdleConns = cfg.Memory.MaxIdleConns
		}
		if cfg.Memory.ConnMaxLifetime > 0 {
			pcfg.ConnMaxLifetime = cfg.Memory.ConnMaxLifetime
		}
		return postgres.New(cfg.Memory.PostgresDSN, pcfg)
	default:
		return nil, fmt.Errorf("unknown memory backend %q", cfg.Memory.Backend)
	}
}

// newLogger builds the observability logger from cfg's logging section.
func newLogger(cfg *config.Config) *observability.Logger {
	return observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
}
