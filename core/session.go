package core

import "time"

// DefaultSessionName is the name given to freshly created chat sessions.
// Sessions still carrying it are considered blank for reuse purposes.
const DefaultSessionName = "New Chat"

// ChatSession is the persistence unit of one conversation in a world:
// identity, display name and message-count bookkeeping. It carries no
// behavior beyond the reuse heuristic; the chat coordinator owns every
// mutation.
type ChatSession struct {
	// ID uniquely identifies the session.
	ID string `json:"id"`
	// WorldID is the owning world.
	WorldID string `json:"worldId"`
	// Name is the display title, DefaultSessionName until auto-titling
	// replaces it.
	Name string `json:"name"`
	// MessageCount counts agent responses recorded in this session.
	MessageCount int `json:"messageCount"`
	// CreatedAt and UpdatedAt track lifecycle times (UTC).
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewChatSession creates a blank session for the given world.
func NewChatSession(worldID string) *ChatSession {
	now := time.Now().UTC()
	return &ChatSession{
		ID:        NewID(),
		WorldID:   worldID,
		Name:      DefaultSessionName,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Reusable reports whether the session may serve a new conversation
// instead of creating another: it still has the default name or has
// recorded no messages.
func (c *ChatSession) Reusable() bool {
	return c.Name == DefaultSessionName || c.MessageCount == 0
}

// Clone returns a copy safe for the caller to mutate.
func (c *ChatSession) Clone() *ChatSession {
	if c == nil {
		return nil
	}
	dup := *c
	return &dup
}
