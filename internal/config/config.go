// Package config handles configuration loading and management for Quill.
// It supports XDG config paths, workspace-level overrides, and environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for Quill.
type Config struct {
	Anthropic    AnthropicConfig    `mapstructure:"anthropic"`
	Workspace    WorkspaceConfig    `mapstructure:"workspace"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Memory       MemoryConfig       `mapstructure:"memory"`
	Agents       AgentsConfig       `mapstructure:"agents"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	MaxTokens  int64  `mapstructure:"max_tokens"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// WorkspaceConfig identifies the writing workspace runs operate in.
type WorkspaceConfig struct {
	// Root is the workspace directory. Files, the database, and signals
	// all live under <root>/.quill.
	Root string `mapstructure:"root"`
	// ID scopes database rows when several logical workspaces share a root.
	ID string `mapstructure:"id"`
}

// OrchestratorConfig holds run-loop tuning knobs.
type OrchestratorConfig struct {
	// MaxWorkers bounds concurrent sub-agent execution per run.
	MaxWorkers int `mapstructure:"max_workers"`
	// ContextBudget is the rune budget handed to sub-agents.
	ContextBudget int `mapstructure:"context_budget"`
	// EventBuffer is the progress event channel capacity.
	EventBuffer int `mapstructure:"event_buffer"`
}

// MemoryConfig holds long-term memory settings.
type MemoryConfig struct {
	// VectorEnabled turns on semantic recall through the embedded vector
	// index. When false, recall falls back to importance ranking.
	VectorEnabled bool `mapstructure:"vector_enabled"`
	// VectorPath overrides the vector index directory.
	VectorPath string `mapstructure:"vector_path"`
	// EmbeddingProvider selects the embedding provider: local, openai, or ollama.
	EmbeddingProvider string `mapstructure:"embedding_provider"`
}

// AgentsConfig holds sub-agent settings.
type AgentsConfig struct {
	// Profiles is an optional YAML file overriding sub-agent system prompts.
	Profiles string `mapstructure:"profiles"`
}

// Load loads configuration from XDG paths, workspace overrides, and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, QUILL_WORKSPACE_ROOT)
// 2. Workspace config (.quill.yaml in current directory or parent)
// 3. User config (~/.config/quill/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if workspaceConfig := findWorkspaceConfig(); workspaceConfig != "" {
		wv := viper.New()
		wv.SetConfigFile(workspaceConfig)
		if err := wv.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(wv.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging workspace config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("workspace.root", "QUILL_WORKSPACE_ROOT")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.max_tokens", cfg.Anthropic.MaxTokens)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("workspace.root", cfg.Workspace.Root)
	v.Set("workspace.id", cfg.Workspace.ID)
	v.Set("orchestrator.max_workers", cfg.Orchestrator.MaxWorkers)
	v.Set("orchestrator.context_budget", cfg.Orchestrator.ContextBudget)
	v.Set("orchestrator.event_buffer", cfg.Orchestrator.EventBuffer)
	v.Set("memory.vector_enabled", cfg.Memory.VectorEnabled)
	v.Set("memory.vector_path", cfg.Memory.VectorPath)
	v.Set("memory.embedding_provider", cfg.Memory.EmbeddingProvider)
	v.Set("agents.profiles", cfg.Agents.Profiles)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetWorkspaceConfigPath returns the path to the workspace config file if
// one exists.
func GetWorkspaceConfigPath() string {
	return findWorkspaceConfig()
}

// VectorDir returns the vector index directory, defaulting to a path
// under the workspace root when not configured.
func (c *Config) VectorDir() string {
	if c.Memory.VectorPath != "" {
		return c.Memory.VectorPath
	}
	return filepath.Join(c.Workspace.Root, ".quill", "vectors")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("workspace.root", ".")
	v.SetDefault("workspace.id", "default")

	v.SetDefault("orchestrator.max_workers", 4)
	v.SetDefault("orchestrator.context_budget", 20000)
	v.SetDefault("orchestrator.event_buffer", 100)

	v.SetDefault("memory.vector_enabled", false)
	v.SetDefault("memory.vector_path", "")
	v.SetDefault("memory.embedding_provider", "local")

	v.SetDefault("agents.profiles", "")
}

// getUserConfigDir returns the XDG config directory for Quill.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "quill")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "quill")
	}
	return filepath.Join(home, ".config", "quill")
}

// findWorkspaceConfig searches for .quill.yaml in the current directory
// and parents.
func findWorkspaceConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".quill.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			MaxTokens: 8192,
		},
		Workspace: WorkspaceConfig{
			Root: ".",
			ID:   "default",
		},
		Orchestrator: OrchestratorConfig{
			MaxWorkers:    4,
			ContextBudget: 20000,
			EventBuffer:   100,
		},
		Memory: MemoryConfig{
			EmbeddingProvider: "local",
		},
	}
}

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("no Anthropic API key configured")

// ResolveAPIKey returns the Anthropic API key, checking the environment
// first and the config second. Bedrock setups don't need one.
func (c *Config) ResolveAPIKey() (string, error) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return key, nil
	}

	if c != nil && c.Anthropic.APIKey != "" {
		key := os.ExpandEnv(c.Anthropic.APIKey)
		if key != "" && !strings.HasPrefix(key, "${") {
			return key, nil
		}
	}

	return "", ErrNoAPIKey
}

// MaskKey returns a masked version of an API key for display.
// Shows the first 7 characters and last 4.
func MaskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 15 {
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}
