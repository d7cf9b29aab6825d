package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const teamSpec = `
name: product-team
description: planning and execution
turn_limit: 3
agents:
  - name: planner
    provider: anthropic
    system_prompt: "You are {{.AgentName}}, the planner of {{.WorldName}}."
  - name: coder
    provider: openai
    model: gpt-4o
`

func TestParseWorldSpec(t *testing.T) {
	spec, err := ParseWorldSpec([]byte(teamSpec))
	require.NoError(t, err)
	assert.Equal(t, "product-team", spec.Name)
	assert.Equal(t, 3, spec.TurnLimit)
	require.Len(t, spec.Agents, 2)
	assert.Equal(t, "planner", spec.Agents[0].Name)
	assert.Equal(t, "anthropic", spec.Agents[0].Provider)
	assert.Equal(t, "gpt-4o", spec.Agents[1].Model)
}

func TestLoadWorldSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "team.yaml")
	require.NoError(t, os.WriteFile(path, []byte(teamSpec), 0o644))

	spec, err := LoadWorldSpec(path)
	require.NoError(t, err)
	assert.Equal(t, "product-team", spec.Name)

	_, err = LoadWorldSpec(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestParseWorldSpec_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no name", "agents: [{name: a}]", "name is required"},
		{"no agents", "name: w", "at least one agent"},
		{"nameless agent", "name: w\nagents: [{provider: mock}]", "has no name"},
		{"unmentionable agent", "name: w\nagents: [{name: 'bad name'}]", "not mentionable"},
		{"duplicate agents", "name: w\nagents: [{name: Twin}, {name: twin}]", "duplicate agent name"},
		{"negative turn limit", "name: w\nturn_limit: -1\nagents: [{name: a}]", "must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWorldSpec([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
