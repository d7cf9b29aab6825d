package testutil

import (
	"time"

	"github.com/yysun/agent-world-sub006/core"
)

// MessageBuilder constructs messages fluently. Example:
//
//	msg := NewMessageBuilder().FromAgent("planner").Content("@coder go").Build()
//
// Chain only what the scenario needs; defaults fill in the rest.
type MessageBuilder struct {
	id        string
	content   string
	sender    core.Sender
	timestamp time.Time
	sessionID string
}

// NewMessageBuilder creates a builder defaulting to a human sender.
func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{sender: core.HumanSender("")}
}

// ID overrides the generated message id (chainable).
func (b *MessageBuilder) ID(id string) *MessageBuilder { b.id = id; return b }

// Content sets the message text (chainable).
func (b *MessageBuilder) Content(c string) *MessageBuilder { b.content = c; return b }

// FromHuman attributes the message to a human sender (chainable).
func (b *MessageBuilder) FromHuman(id string) *MessageBuilder {
	b.sender = core.HumanSender(id)
	return b
}

// FromSystem attributes the message to the synthetic system sender (chainable).
func (b *MessageBuilder) FromSystem() *MessageBuilder {
	b.sender = core.SystemSender()
	return b
}

// FromWorld attributes the message to the ambient world sender (chainable).
func (b *MessageBuilder) FromWorld() *MessageBuilder {
	b.sender = core.WorldSender()
	return b
}

// FromAgent attributes the message to an agent sender (chainable).
func (b *MessageBuilder) FromAgent(id string) *MessageBuilder {
	b.sender = core.AgentSender(id)
	return b
}

// At sets an explicit timestamp (chainable).
func (b *MessageBuilder) At(t time.Time) *MessageBuilder { b.timestamp = t; return b }

// Session binds the message to a chat session (chainable).
func (b *MessageBuilder) Session(id string) *MessageBuilder { b.sessionID = id; return b }

// Build finalizes the message, generating id and timestamp when unset.
func (b *MessageBuilder) Build() core.Message {
	m := core.NewMessage(b.content, b.sender)
	if b.id != "" {
		m.ID = b.id
	}
	if !b.timestamp.IsZero() {
		m.Timestamp = b.timestamp.UTC()
	}
	if b.sessionID != "" {
		m = m.WithSession(b.sessionID)
	}
	return m
}
