package core

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a new globally unique identifier.
func NewID() string {
	return uuid.NewString()
}

// Message is an immutable event flowing through a world: produced once by
// a publish call and never mutated afterwards. Copies are passed by
// value; receivers must not retain modified versions.
type Message struct {
	// ID uniquely identifies the message.
	ID string `json:"id"`
	// Content is the message text. Approval envelopes and error lines are
	// carried here as well.
	Content string `json:"content"`
	// Sender classifies and identifies the producer.
	Sender Sender `json:"sender"`
	// Timestamp records creation time in UTC.
	Timestamp time.Time `json:"timestamp"`
	// SessionID optionally binds the message to the chat session that was
	// current when it was published. Empty means unbound.
	SessionID string `json:"sessionId,omitempty"`
}

// NewMessage creates a message with a fresh ID and UTC timestamp.
func NewMessage(content string, sender Sender) Message {
	return Message{
		ID:        NewID(),
		Content:   content,
		Sender:    sender,
		Timestamp: time.Now().UTC(),
	}
}

// NewHumanMessage creates a message from the default human sender.
func NewHumanMessage(content string) Message {
	return NewMessage(content, HumanSender(""))
}

// NewSystemMessage creates a message from the synthetic system sender.
func NewSystemMessage(content string) Message {
	return NewMessage(content, SystemSender())
}

// NewWorldMessage creates an ambient world event message.
func NewWorldMessage(content string) Message {
	return NewMessage(content, WorldSender())
}

// NewAgentMessage creates a message attributed to the given agent.
func NewAgentMessage(agentID, content string) Message {
	return NewMessage(content, AgentSender(agentID))
}

// WithSession returns a copy of the message bound to a chat session.
func (m Message) WithSession(sessionID string) Message {
	m.SessionID = sessionID
	return m
}
