package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultTurnLimit bounds consecutive agent-triggered responses per
// agent when a world does not configure its own limit.
const DefaultTurnLimit = 5

// WorldOptions configures a new world.
type WorldOptions struct {
	// ID overrides the generated identifier.
	ID string
	// Description is a short human-readable summary.
	Description string
	// TurnLimit overrides DefaultTurnLimit when positive.
	TurnLimit int
}

// World is an isolated coordination scope: a roster of agents, a turn
// limit, a current chat-session pointer and an event stream for
// observers. Roster access is guarded; configuration fields are set at
// construction and by stores during load.
type World struct {
	// ID uniquely identifies the world.
	ID string `json:"id"`
	// Name is the display name.
	Name string `json:"name"`
	// Description is a short summary.
	Description string `json:"description,omitempty"`
	// TurnLimit bounds consecutive agent-triggered responses. Values
	// <= 0 mean DefaultTurnLimit; read it through EffectiveTurnLimit.
	TurnLimit int `json:"turnLimit,omitempty"`
	// CurrentSessionID points at the active chat session, empty when
	// none. Only the chat coordinator mutates it.
	CurrentSessionID string `json:"currentSessionId,omitempty"`
	// CreatedAt and UpdatedAt track entity lifecycle times (UTC).
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	mu     sync.RWMutex
	agents map[string]*Agent // by id
	byName map[string]string // lower(name) -> id
	events *Stream
}

// NewWorld creates a world with the given display name.
func NewWorld(name string, optFns ...func(*WorldOptions)) *World {
	opts := WorldOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	id := opts.ID
	if id == "" {
		id = NewID()
	}
	now := time.Now().UTC()
	return &World{
		ID:          id,
		Name:        name,
		Description: opts.Description,
		TurnLimit:   opts.TurnLimit,
		CreatedAt:   now,
		UpdatedAt:   now,
		agents:      make(map[string]*Agent),
		byName:      make(map[string]string),
		events:      NewStream(),
	}
}

// EffectiveTurnLimit returns the configured limit, or DefaultTurnLimit
// when unset.
func (w *World) EffectiveTurnLimit() int {
	if w.TurnLimit > 0 {
		return w.TurnLimit
	}
	return DefaultTurnLimit
}

// AddAgent places an agent on the roster. Names are unique per world
// case-insensitively; duplicates are rejected with ErrAgentNameTaken.
func (w *World) AddAgent(a *Agent) error {
	if a == nil || a.Name == "" {
		return fmt.Errorf("add agent: missing name")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	key := strings.ToLower(a.Name)
	if _, taken := w.byName[key]; taken {
		return fmt.Errorf("add agent %q: %w", a.Name, ErrAgentNameTaken)
	}
	w.agents[a.ID] = a
	w.byName[key] = a.ID
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// RemoveAgent drops an agent from the roster by id or name. Reports
// whether anything was removed.
func (w *World) RemoveAgent(idOrName string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	a := w.lookupLocked(idOrName)
	if a == nil {
		return false
	}
	delete(w.agents, a.ID)
	delete(w.byName, strings.ToLower(a.Name))
	w.UpdatedAt = time.Now().UTC()
	return true
}

// GetAgent resolves an agent by exact id or case-insensitive name.
func (w *World) GetAgent(idOrName string) (*Agent, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a := w.lookupLocked(idOrName)
	return a, a != nil
}

func (w *World) lookupLocked(idOrName string) *Agent {
	if a, ok := w.agents[idOrName]; ok {
		return a
	}
	if id, ok := w.byName[strings.ToLower(idOrName)]; ok {
		return w.agents[id]
	}
	return nil
}

// Agents returns the roster sorted by name for deterministic iteration.
func (w *World) Agents() []*Agent {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*Agent, 0, len(w.agents))
	for _, a := range w.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AgentCount returns the roster size.
func (w *World) AgentCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.agents)
}

// Events returns the world's observer stream.
func (w *World) Events() *Stream {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.events
}

// Touch refreshes UpdatedAt.
func (w *World) Touch() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.UpdatedAt = time.Now().UTC()
}

// Snapshot returns a detached copy of the world's persistent fields with
// an empty roster and its own stream. Stores keep and hand out snapshots
// so callers can never reach live dispatch state through them.
func (w *World) Snapshot() *World {
	if w == nil {
		return nil
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	dup := NewWorld(w.Name, func(o *WorldOptions) {
		o.ID = w.ID
		o.Description = w.Description
		o.TurnLimit = w.TurnLimit
	})
	dup.CurrentSessionID = w.CurrentSessionID
	dup.CreatedAt = w.CreatedAt
	dup.UpdatedAt = w.UpdatedAt
	return dup
}
