// Package storage provides the persistence backends behind the core
// store interfaces: a volatile in-memory store, a sqlite store and a
// JSON file-tree store. All three hand out detached copies so callers
// can never reach shared internal state through a load.
package storage

import (
	"sort"
	"sync"

	"github.com/yysun/agent-world-sub006/core"
)

// InMemoryStore is a volatile core.Store implementation keeping
// everything in process-local maps. It is safe for concurrent access and
// best suited for tests or ephemeral demo runs. Every value crossing the
// boundary is cloned in both directions.
type InMemoryStore struct {
	mu       sync.RWMutex
	worlds   map[string]*core.World                   // world id -> snapshot
	agents   map[string]map[string]*core.Agent       // world id -> agent id -> clone
	chats    map[string]map[string]*core.ChatSession // world id -> chat id -> clone
	messages map[string][]core.Message               // world id -> publish-ordered log
}

var _ core.Store = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		worlds:   make(map[string]*core.World),
		agents:   make(map[string]map[string]*core.Agent),
		chats:    make(map[string]map[string]*core.ChatSession),
		messages: make(map[string][]core.Message),
	}
}

// SaveWorld upserts the world's persistent fields.
func (s *InMemoryStore) SaveWorld(w *core.World) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.worlds[w.ID] = w.Snapshot()
	return nil
}

// LoadWorld returns a snapshot of the stored world, (nil, nil) when missing.
func (s *InMemoryStore) LoadWorld(id string) (*core.World, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.worlds[id]
	if !ok {
		return nil, nil
	}
	return w.Snapshot(), nil
}

// DeleteWorld removes the world row and its message log; agents and
// chats are cascaded by the manager through their own stores.
func (s *InMemoryStore) DeleteWorld(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.worlds, id)
	delete(s.messages, id)
	return nil
}

// ListWorlds returns stored worlds, most recently updated first.
func (s *InMemoryStore) ListWorlds() ([]*core.World, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.World, 0, len(s.worlds))
	for _, w := range s.worlds {
		out = append(out, w.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// SaveAgent upserts the agent's configuration, counter and memory.
func (s *InMemoryStore) SaveAgent(worldID string, a *core.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.agents[worldID]
	if !ok {
		byID = make(map[string]*core.Agent)
		s.agents[worldID] = byID
	}
	byID[a.ID] = a.Clone()
	return nil
}

// LoadAgent returns a clone with full memory, (nil, nil) when missing.
func (s *InMemoryStore) LoadAgent(worldID, agentID string) (*core.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[worldID][agentID]
	if !ok {
		return nil, nil
	}
	return a.Clone(), nil
}

// DeleteAgent removes the agent and its memory.
func (s *InMemoryStore) DeleteAgent(worldID, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.agents[worldID], agentID)
	return nil
}

// ListAgents returns a world's agents sorted by name.
func (s *InMemoryStore) ListAgents(worldID string) ([]*core.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.Agent, 0, len(s.agents[worldID]))
	for _, a := range s.agents[worldID] {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// AppendMemory appends entries to the stored memory log.
func (s *InMemoryStore) AppendMemory(worldID, agentID string, entries ...core.MemoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[worldID][agentID]
	if !ok {
		return nil
	}
	a.AppendMemory(core.CloneMemory(entries)...)
	return nil
}

// ClearMemory empties the stored memory log.
func (s *InMemoryStore) ClearMemory(worldID, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.agents[worldID][agentID]; ok {
		a.ClearMemory()
	}
	return nil
}

// SaveChat upserts a chat session.
func (s *InMemoryStore) SaveChat(worldID string, c *core.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.chats[worldID]
	if !ok {
		byID = make(map[string]*core.ChatSession)
		s.chats[worldID] = byID
	}
	byID[c.ID] = c.Clone()
	return nil
}

// LoadChat returns a clone of the session, (nil, nil) when missing.
func (s *InMemoryStore) LoadChat(worldID, chatID string) (*core.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[worldID][chatID]
	if !ok {
		return nil, nil
	}
	return c.Clone(), nil
}

// DeleteChat removes a session.
func (s *InMemoryStore) DeleteChat(worldID, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chats[worldID], chatID)
	return nil
}

// ListChats returns a world's sessions, most recently updated first.
func (s *InMemoryStore) ListChats(worldID string) ([]*core.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.ChatSession, 0, len(s.chats[worldID]))
	for _, c := range s.chats[worldID] {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// SaveMessage appends a message to the world's publish-ordered log.
func (s *InMemoryStore) SaveMessage(worldID string, m core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[worldID] = append(s.messages[worldID], m)
	return nil
}

// ListMessages returns the log in publish order, optionally filtered to
// one session.
func (s *InMemoryStore) ListMessages(worldID, sessionID string) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.messages[worldID]
	out := make([]core.Message, 0, len(log))
	for _, m := range log {
		if sessionID != "" && m.SessionID != sessionID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
