package main

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/quillworks/quill/internal/api"
	"github.com/quillworks/quill/internal/config"
)

// newAPIClient builds the Anthropic client from config: direct API by
// default, AWS Bedrock when configured.
func newAPIClient(cfg *config.Config) (*api.Client, error) {
	clientCfg := api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		MaxTokens:     cfg.Anthropic.MaxTokens,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	}

	if !cfg.Anthropic.UseBedrock {
		key, err := cfg.ResolveAPIKey()
		if err != nil {
			return nil, fmt.Errorf("%w\n\nSet it with:\n"+
				"  export ANTHROPIC_API_KEY=your-key-here\n"+
				"or:\n"+
				"  quill config anthropic.api_key your-key-here", err)
		}
		clientCfg.APIKey = key
	}

	client, err := api.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}
	return client, nil
}
