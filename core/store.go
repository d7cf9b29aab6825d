package core

// WorldStore persists worlds. Lookups return (nil, nil) for unknown ids;
// errors are reserved for storage faults. All operations are idempotent.
type WorldStore interface {
	// SaveWorld upserts the world's persistent fields (not its roster;
	// agents are persisted through AgentStore).
	SaveWorld(w *World) error
	// LoadWorld fetches a world by id, (nil, nil) when missing. The
	// returned world has an empty roster; callers attach agents.
	LoadWorld(id string) (*World, error)
	// DeleteWorld removes the world row. Cascading to agents and chats is
	// the manager's responsibility.
	DeleteWorld(id string) error
	// ListWorlds returns all worlds, most recently updated first.
	ListWorlds() ([]*World, error)
}

// AgentStore persists agents and their append-only memory. SaveAgent
// covers configuration and the call counter; memory changes flow through
// AppendMemory/ClearMemory so storage mirrors the append-only model.
type AgentStore interface {
	SaveAgent(worldID string, a *Agent) error
	// LoadAgent fetches an agent with its full memory, (nil, nil) when
	// missing.
	LoadAgent(worldID, agentID string) (*Agent, error)
	DeleteAgent(worldID, agentID string) error
	// ListAgents returns a world's agents sorted by name.
	ListAgents(worldID string) ([]*Agent, error)
	// AppendMemory appends entries to the agent's stored memory log.
	AppendMemory(worldID, agentID string, entries ...MemoryEntry) error
	// ClearMemory empties the stored memory log.
	ClearMemory(worldID, agentID string) error
}

// ChatStore persists chat sessions and the world message log.
type ChatStore interface {
	SaveChat(worldID string, c *ChatSession) error
	// LoadChat fetches a session by id, (nil, nil) when missing.
	LoadChat(worldID, chatID string) (*ChatSession, error)
	DeleteChat(worldID, chatID string) error
	// ListChats returns a world's sessions, most recently updated first.
	ListChats(worldID string) ([]*ChatSession, error)
	// SaveMessage appends a published message to the world's log.
	SaveMessage(worldID string, m Message) error
	// ListMessages returns the log in publish order, filtered to one
	// session when sessionID is non-empty.
	ListMessages(worldID, sessionID string) ([]Message, error)
}

// Store bundles the three persistence interfaces; the in-memory, sqlite
// and file backends implement all of them.
type Store interface {
	WorldStore
	AgentStore
	ChatStore
}
