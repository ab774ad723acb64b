package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quillworks/quill/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify Quill configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/quill/config.yaml
Workspace-specific overrides can be placed in .quill.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("anthropic.api_key: %s\n", config.MaskKey(cfg.Anthropic.APIKey))
	fmt.Printf("anthropic.model: %s\n", orDefault(cfg.Anthropic.Model))
	fmt.Printf("anthropic.max_tokens: %d\n", cfg.Anthropic.MaxTokens)
	fmt.Printf("anthropic.use_bedrock: %t\n", cfg.Anthropic.UseBedrock)
	fmt.Printf("anthropic.aws_region: %s\n", orDefault(cfg.Anthropic.AWSRegion))
	fmt.Printf("anthropic.aws_profile: %s\n", orDefault(cfg.Anthropic.AWSProfile))
	fmt.Printf("workspace.root: %s\n", cfg.Workspace.Root)
	fmt.Printf("workspace.id: %s\n", cfg.Workspace.ID)
	fmt.Printf("orchestrator.max_workers: %d\n", cfg.Orchestrator.MaxWorkers)
	fmt.Printf("orchestrator.context_budget: %d\n", cfg.Orchestrator.ContextBudget)
	fmt.Printf("orchestrator.event_buffer: %d\n", cfg.Orchestrator.EventBuffer)
	fmt.Printf("memory.vector_enabled: %t\n", cfg.Memory.VectorEnabled)
	fmt.Printf("memory.vector_path: %s\n", orDefault(cfg.Memory.VectorPath))
	fmt.Printf("memory.embedding_provider: %s\n", cfg.Memory.EmbeddingProvider)
	fmt.Printf("agents.profiles: %s\n", orDefault(cfg.Agents.Profiles))
}

func orDefault(s string) string {
	if s == "" {
		return "(default)"
	}
	return s
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return config.MaskKey(cfg.Anthropic.APIKey), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.max_tokens":
		return strconv.FormatInt(cfg.Anthropic.MaxTokens, 10), nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "anthropic.aws_region":
		return cfg.Anthropic.AWSRegion, nil
	case "anthropic.aws_profile":
		return cfg.Anthropic.AWSProfile, nil
	case "workspace.root":
		return cfg.Workspace.Root, nil
	case "workspace.id":
		return cfg.Workspace.ID, nil
	case "orchestrator.max_workers":
		return strconv.Itoa(cfg.Orchestrator.MaxWorkers), nil
	case "orchestrator.context_budget":
		return strconv.Itoa(cfg.Orchestrator.ContextBudget), nil
	case "orchestrator.event_buffer":
		return strconv.Itoa(cfg.Orchestrator.EventBuffer), nil
	case "memory.vector_enabled":
		return strconv.FormatBool(cfg.Memory.VectorEnabled), nil
	case "memory.vector_path":
		return cfg.Memory.VectorPath, nil
	case "memory.embedding_provider":
		return cfg.Memory.EmbeddingProvider, nil
	case "agents.profiles":
		return cfg.Agents.Profiles, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.max_tokens":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid value for max_tokens: %w", err)
		}
		cfg.Anthropic.MaxTokens = n
	case "anthropic.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for use_bedrock: %w", err)
		}
		cfg.Anthropic.UseBedrock = b
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "anthropic.aws_profile":
		cfg.Anthropic.AWSProfile = value
	case "workspace.root":
		cfg.Workspace.Root = value
	case "workspace.id":
		cfg.Workspace.ID = value
	case "orchestrator.max_workers":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_workers: %w", err)
		}
		cfg.Orchestrator.MaxWorkers = n
	case "orchestrator.context_budget":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for context_budget: %w", err)
		}
		cfg.Orchestrator.ContextBudget = n
	case "orchestrator.event_buffer":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for event_buffer: %w", err)
		}
		cfg.Orchestrator.EventBuffer = n
	case "memory.vector_enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for vector_enabled: %w", err)
		}
		cfg.Memory.VectorEnabled = b
	case "memory.vector_path":
		cfg.Memory.VectorPath = value
	case "memory.embedding_provider":
		cfg.Memory.EmbeddingProvider = value
	case "agents.profiles":
		cfg.Agents.Profiles = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
