package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// WorldSpec declares a world and its agent roster for one-shot setup:
// `agentworld world create --spec team.yaml` builds the whole thing.
type WorldSpec struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	TurnLimit   int         `yaml:"turn_limit,omitempty"`
	Agents      []AgentSpec `yaml:"agents"`
}

// AgentSpec declares one agent of a world spec.
type AgentSpec struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description,omitempty"`
	Provider     string `yaml:"provider,omitempty"`
	Model        string `yaml:"model,omitempty"`
	SystemPrompt string `yaml:"system_prompt,omitempty"`
}

// LoadWorldSpec reads and validates a world definition.
func LoadWorldSpec(path string) (*WorldSpec, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read world spec: %w", err)
	}
	return ParseWorldSpec(b)
}

// ParseWorldSpec decodes a world definition from YAML, normalizes it
// and validates it.
func ParseWorldSpec(data []byte) (*WorldSpec, error) {
	var spec WorldSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("world spec: %w", err)
	}
	spec.normalize()
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

func (s *WorldSpec) normalize() {
	s.Name = strings.TrimSpace(s.Name)
	for i := range s.Agents {
		s.Agents[i].Name = strings.TrimSpace(s.Agents[i].Name)
	}
}

// Validate checks structural requirements: a world name, at least one
// agent, mentionable agent names, unique case-insensitively.
func (s *WorldSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("world spec: name is required")
	}
	if s.TurnLimit < 0 {
		return fmt.Errorf("world spec %q: turn_limit must not be negative", s.Name)
	}
	if len(s.Agents) == 0 {
		return fmt.Errorf("world spec %q: at least one agent is required", s.Name)
	}
	seen := make(map[string]struct{}, len(s.Agents))
	for i, a := range s.Agents {
		if a.Name == "" {
			return fmt.Errorf("world spec %q: agent %d has no name", s.Name, i)
		}
		if !validMentionName(a.Name) {
			return fmt.Errorf("world spec %q: agent name %q is not mentionable (use letters, digits, _ . -)", s.Name, a.Name)
		}
		key := strings.ToLower(a.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("world spec %q: duplicate agent name %q", s.Name, a.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// validMentionName mirrors the mention token character set without
// importing the decision package from config.
func validMentionName(name string) bool {
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		case c == '_' || c == '.' || c == '-':
		default:
			return false
		}
	}
	return name != ""
}
