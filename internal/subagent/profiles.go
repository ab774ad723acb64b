package subagent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quillworks/quill/pkg/models"
)

// Profile is the priming configuration for one agent type.
type Profile struct {
	// SystemPrompt is sent as the system preamble for every generation the
	// agent performs.
	SystemPrompt string `yaml:"system_prompt"`
}

// Profiles maps agent types to their profiles.
type Profiles map[models.AgentType]Profile

// DefaultProfiles returns the compiled-in profile for each agent type.
func DefaultProfiles() Profiles {
	return Profiles{
		models.AgentTypeResearch: {
			SystemPrompt: "You are a research assistant. Gather the key facts, figures, and sources the task needs. Be thorough but concise, and say where a claim comes from when you can.",
		},
		models.AgentTypeTranslation: {
			SystemPrompt: "You are a professional translator. Translate the material faithfully, preserving tone and register. Leave names and established glossary terms untranslated unless instructed otherwise.",
		},
		models.AgentTypeEditing: {
			SystemPrompt: "You are a copy editor. Improve clarity, flow, and correctness without changing the meaning. Return the full edited text, not a list of suggestions.",
		},
		models.AgentTypeFactCheck: {
			SystemPrompt: "You are a fact checker. Verify each factual claim in the material and flag anything unsupported, outdated, or wrong, each with a short justification.",
		},
	}
}

// LoadProfiles reads per-type overrides from a YAML file and merges them
// over the defaults. A missing file is not an error.
func LoadProfiles(path string) (Profiles, error) {
	profiles := DefaultProfiles()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return profiles, nil
		}
		return nil, fmt.Errorf("read agent profiles: %w", err)
	}

	var overrides map[models.AgentType]Profile
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse agent profiles: %w", err)
	}

	for typ, profile := range overrides {
		if !typ.Valid() {
			return nil, fmt.Errorf("agent profiles: unknown agent type %q", typ)
		}
		base := profiles[typ]
		if profile.SystemPrompt != "" {
			base.SystemPrompt = profile.SystemPrompt
		}
		profiles[typ] = base
	}
	return profiles, nil
}

// For returns the profile for an agent type. Unknown types get a zero
// profile, which generates with no system preamble.
func (p Profiles) For(typ models.AgentType) Profile {
	return p[typ]
}
