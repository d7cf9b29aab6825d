package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/yysun/agent-world-sub006/core"
)

// Request captures the normalized input for one generation call.
type Request struct {
	// System is the agent's rendered system prompt, empty when none.
	System string `json:"system,omitempty"`
	// History is the agent's visible memory in chronological order.
	History []core.MemoryEntry `json:"history"`
	// AgentName identifies the requesting agent for attribution and mock
	// routing.
	AgentName string `json:"agent_name,omitempty"`
}

// LastContent returns the content of the newest history entry, or "".
func (r Request) LastContent() string {
	if len(r.History) == 0 {
		return ""
	}
	return r.History[len(r.History)-1].Content
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the single outcome of a generation call.
type Response struct {
	Content string      `json:"content"`
	Usage   *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", etc.
}

// Model is the minimal interface the world manager drives. Generate
// either returns a complete response or an error; any error is treated
// as one generation failure and is never retried here.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests and
// examples. Responses are keyed on the newest history entry's content;
// unmatched inputs get a deterministic echo. Safe for concurrent use.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	err       error
	requests  []Request
}

// NewMockModel constructs a MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info: Info{
			Name:     name,
			Provider: "mock",
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input.
func (m *MockModel) AddResponse(input, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[input] = response
}

// FailWith makes every subsequent Generate call return err. A nil err
// restores normal behavior.
func (m *MockModel) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Requests returns a copy of every request seen so far, in call order.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	err := m.err
	full := m.responses[req.LastContent()]
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if full == "" {
		full = fmt.Sprintf("Mock response to: %s", req.LastContent())
	}
	return &Response{Content: full}, nil
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

var _ Model = (*MockModel)(nil)
