// Package config loads fiddlesticks' YAML configuration file: provider
// credentials and defaults, memory backend selection, and harness run
// policy. Environment variables override file values the same way the
// reference configuration loader does.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
	"github.com/philo-groves/fiddlesticks/internal/harness"
)

// Config is fiddlesticks' top-level configuration.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Memory   MemoryConfig   `yaml:"memory"`
	Harness  HarnessConfig  `yaml:"harness"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ProviderConfig selects the default model provider and carries one
// credential/base-URL block per supported adapter.
type ProviderConfig struct {
	Default    string           `yaml:"default"`
	Model      string           `yaml:"model"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Anthropic  AnthropicConfig  `yaml:"anthropic"`
	Ollama     OllamaConfig     `yaml:"ollama"`
	OpenCodeZen OpenCodeZenConfig `yaml:"opencode_zen"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
}

type OllamaConfig struct {
	BaseURL string `yaml:"base_url"`
}

type OpenCodeZenConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// MemoryConfig selects and configures the MemoryBackend implementation the
// harness persists session state through.
type MemoryConfig struct {
	// Backend is one of "inmemory", "filesystem", "sqlite", "postgres".
	Backend        string        `yaml:"backend"`
	FilesystemDir  string        `yaml:"filesystem_dir"`
	SQLitePath     string        `yaml:"sqlite_path"`
	PostgresDSN    string        `yaml:"postgres_dsn"`
	MaxOpenConns   int           `yaml:"max_open_conns"`
	MaxIdleConns   int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// HarnessConfig configures the default run policy a harness.Builder is
// constructed with.
type HarnessConfig struct {
	// Mode is one of "strict_incremental", "bounded_batch", "unlimited_batch".
	Mode              string `yaml:"mode"`
	MaxTurnsPerRun    int    `yaml:"max_turns_per_run"`
	MaxFeaturesPerRun int    `yaml:"max_features_per_run"`
	RetryBudget       int    `yaml:"retry_budget"`
}

// LoggingConfig matches the reference logger's configuration surface.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads, environment-expands, and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("parse config: expected single document")
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		cfg.Provider.OpenAI.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		cfg.Provider.Anthropic.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENCODE_ZEN_API_KEY")); v != "" {
		cfg.Provider.OpenCodeZen.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("FMEMORY_SQLITE_PATH")); v != "" {
		cfg.Memory.SQLitePath = v
	}
	if v := strings.TrimSpace(os.Getenv("FMEMORY_POSTGRES_DSN")); v != "" {
		cfg.Memory.PostgresDSN = v
	}
	if v := strings.TrimSpace(os.Getenv("FIDDLESTICKS_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Provider.Default == "" {
		cfg.Provider.Default = string(fidprovider.OpenAI)
	}
	if cfg.Provider.Model == "" {
		cfg.Provider.Model = "gpt-4o-mini"
	}
	if cfg.Provider.Ollama.BaseURL == "" {
		cfg.Provider.Ollama.BaseURL = "http://localhost:11434"
	}
	if cfg.Provider.OpenCodeZen.BaseURL == "" {
		cfg.Provider.OpenCodeZen.BaseURL = "https://opencode.ai/zen/v1"
	}

	if cfg.Memory.Backend == "" {
		cfg.Memory.Backend = "inmemory"
	}
	if cfg.Memory.SQLitePath == "" {
		cfg.Memory.SQLitePath = defaultSQLitePath()
	}
	if cfg.Memory.MaxOpenConns == 0 {
		cfg.Memory.MaxOpenConns = 10
	}
	if cfg.Memory.MaxIdleConns == 0 {
		cfg.Memory.MaxIdleConns = 5
	}
	if cfg.Memory.ConnMaxLifetime == 0 {
		cfg.Memory.ConnMaxLifetime = 5 * time.Minute
	}

	if cfg.Harness.Mode == "" {
		cfg.Harness.Mode = string(harness.StrictIncremental)
	}
	if cfg.Harness.MaxTurnsPerRun == 0 {
		cfg.Harness.MaxTurnsPerRun = 1
	}
	if cfg.Harness.MaxFeaturesPerRun == 0 {
		cfg.Harness.MaxFeaturesPerRun = 1
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return "fmemory.sqlite3"
	}
	return home + string(os.PathSeparator) + ".fiddlesticks" + string(os.PathSeparator) + "fmemory.sqlite3"
}

func validate(cfg *Config) error {
	switch cfg.Memory.Backend {
	case "inmemory", "filesystem", "sqlite", "postgres":
	default:
		return fmt.Errorf("memory.backend must be one of inmemory, filesystem, sqlite, postgres, got %q", cfg.Memory.Backend)
	}
	if cfg.Memory.Backend == "postgres" && strings.TrimSpace(cfg.Memory.PostgresDSN) == "" {
		return fmt.Errorf("memory.postgres_dsn is required when memory.backend is postgres")
	}

	switch cfg.Provider.Default {
	case string(fidprovider.OpenAI), string(fidprovider.Anthropic), string(fidprovider.Ollama), string(fidprovider.OpenCodeZen):
	default:
		return fmt.Errorf("provider.default must be a known provider id, got %q", cfg.Provider.Default)
	}

	policy := harnessRunPolicy(cfg.Harness)
	if err := policy.Validate(); err != nil {
		return fmt.Errorf("harness config: %w", err)
	}
	return nil
}

// RunPolicy builds a harness.RunPolicy from the loaded configuration.
func (c *Config) RunPolicy() harness.RunPolicy {
	return harnessRunPolicy(c.Harness)
}

func harnessRunPolicy(cfg HarnessConfig) harness.RunPolicy {
	policy := harness.DefaultRunPolicy()
	policy.Mode = harness.RunPolicyMode(cfg.Mode)
	policy.MaxTurnsPerRun = cfg.MaxTurnsPerRun
	policy.MaxFeaturesPerRun = cfg.MaxFeaturesPerRun
	policy.RetryBudget = cfg.RetryBudget
	return policy
}
