package core

import (
	"sync"
	"time"
)

// AgentOptions configures a new agent.
type AgentOptions struct {
	// ID overrides the generated identifier.
	ID string
	// Description is a short human-readable role summary.
	Description string
	// Provider selects the model provider registered with the manager.
	Provider string
	// Model is the provider-specific model identifier.
	Model string
	// SystemPrompt is the persona text sent with every generation.
	SystemPrompt string
}

// Agent is a member of a world: a persona bound to a model, owning an
// append-only conversation memory and a per-turn LLM call counter. All
// mutable state is guarded; the exported configuration fields are set at
// construction and by stores during load, never concurrently.
type Agent struct {
	// ID uniquely identifies the agent within its world.
	ID string `json:"id"`
	// Name is the mention target (@name) and must be unique per world
	// case-insensitively.
	Name string `json:"name"`
	// Description is a short role summary.
	Description string `json:"description,omitempty"`
	// Provider selects the model provider.
	Provider string `json:"provider,omitempty"`
	// Model is the provider-specific model identifier.
	Model string `json:"model,omitempty"`
	// SystemPrompt is the persona text.
	SystemPrompt string `json:"systemPrompt,omitempty"`
	// CreatedAt and UpdatedAt track entity lifecycle times (UTC).
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	mu        sync.RWMutex
	callCount int
	memory    []MemoryEntry
}

// NewAgent creates an agent with the given mention name.
func NewAgent(name string, optFns ...func(*AgentOptions)) *Agent {
	opts := AgentOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	id := opts.ID
	if id == "" {
		id = NewID()
	}
	now := time.Now().UTC()
	return &Agent{
		ID:           id,
		Name:         name,
		Description:  opts.Description,
		Provider:     opts.Provider,
		Model:        opts.Model,
		SystemPrompt: opts.SystemPrompt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// CallCount returns the current per-turn LLM call counter.
func (a *Agent) CallCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.callCount
}

// SetCallCount restores the counter; stores use it when loading.
func (a *Agent) SetCallCount(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.callCount = n
}

// IncrementCallCount bumps the counter by one and returns the new value.
func (a *Agent) IncrementCallCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.callCount++
	return a.callCount
}

// ResetCallCount zeroes the counter. Reports whether it changed.
func (a *Agent) ResetCallCount() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	changed := a.callCount != 0
	a.callCount = 0
	return changed
}

// AdjustCallCount applies a decision outcome in one locked step: an
// optional reset followed by an optional increment. Returns the
// resulting counter.
func (a *Agent) AdjustCallCount(reset, increment bool) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if reset {
		a.callCount = 0
	}
	if increment {
		a.callCount++
	}
	return a.callCount
}

// AppendMemory appends entries to the agent's conversation memory.
func (a *Agent) AppendMemory(entries ...MemoryEntry) {
	if len(entries) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.memory = append(a.memory, entries...)
	a.UpdatedAt = time.Now().UTC()
}

// GetMemory returns a defensive copy of the memory log in append order.
func (a *Agent) GetMemory() []MemoryEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return CloneMemory(a.memory)
}

// MemoryLen returns the number of entries without copying.
func (a *Agent) MemoryLen() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.memory)
}

// SetMemory replaces the memory log; stores use it when loading.
func (a *Agent) SetMemory(entries []MemoryEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.memory = CloneMemory(entries)
}

// ClearMemory empties the memory log and returns the removed entries so
// the caller can archive them first.
func (a *Agent) ClearMemory() []MemoryEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	removed := a.memory
	a.memory = nil
	a.UpdatedAt = time.Now().UTC()
	return removed
}

// Clone returns a detached deep copy of the agent: configuration, call
// counter and memory log. Stores keep and hand out clones.
func (a *Agent) Clone() *Agent {
	if a == nil {
		return nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return &Agent{
		ID:           a.ID,
		Name:         a.Name,
		Description:  a.Description,
		Provider:     a.Provider,
		Model:        a.Model,
		SystemPrompt: a.SystemPrompt,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
		callCount:    a.callCount,
		memory:       CloneMemory(a.memory),
	}
}
