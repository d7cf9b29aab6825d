package testutil

import (
	"encoding/json"
	"time"

	"github.com/yysun/agent-world-sub006/core"
)

// MemoryBuilder accumulates an agent memory log entry by entry, with
// shortcuts for the approval record shapes the protocol scans for.
// Example:
//
//	entries := NewMemoryBuilder().
//		User("run ls please", "human").
//		DecisionJSON("call-1", map[string]any{
//			"decision": "approve", "scope": "session", "toolName": "shell_cmd",
//		}).
//		Build()
type MemoryBuilder struct {
	entries []core.MemoryEntry
	at      time.Time
}

// NewMemoryBuilder creates an empty builder.
func NewMemoryBuilder() *MemoryBuilder { return &MemoryBuilder{} }

// At sets the timestamp applied to subsequently added entries
// (chainable). Each entry advances it by one second so scan order stays
// unambiguous.
func (b *MemoryBuilder) At(t time.Time) *MemoryBuilder { b.at = t.UTC(); return b }

func (b *MemoryBuilder) stamp() time.Time {
	if b.at.IsZero() {
		b.at = time.Now().UTC()
	}
	t := b.at
	b.at = b.at.Add(time.Second)
	return t
}

// Add appends an arbitrary entry (chainable).
func (b *MemoryBuilder) Add(e core.MemoryEntry) *MemoryBuilder {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = b.stamp()
	}
	b.entries = append(b.entries, e)
	return b
}

// User appends a user-role entry (chainable).
func (b *MemoryBuilder) User(content, sender string) *MemoryBuilder {
	return b.Add(core.MemoryEntry{Role: core.RoleUser, Content: content, Sender: sender})
}

// Assistant appends an assistant-role entry (chainable).
func (b *MemoryBuilder) Assistant(content, sender string) *MemoryBuilder {
	return b.Add(core.MemoryEntry{Role: core.RoleAssistant, Content: content, Sender: sender})
}

// Tool appends a tool-result entry carrying raw content (chainable).
func (b *MemoryBuilder) Tool(toolCallID, content string) *MemoryBuilder {
	return b.Add(core.MemoryEntry{Role: core.RoleTool, Content: content, ToolCallID: toolCallID})
}

// ToolJSON appends a tool-result entry whose content is the JSON
// encoding of payload (chainable). Panics on unencodable payloads;
// builders run in tests where that is a bug, not a condition.
func (b *MemoryBuilder) ToolJSON(toolCallID string, payload any) *MemoryBuilder {
	body, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return b.Tool(toolCallID, string(body))
}

// PendingRequest appends an assistant entry flagged as a pending
// approval request (chainable).
func (b *MemoryBuilder) PendingRequest(toolCallID string, req core.ApprovalRequest) *MemoryBuilder {
	return b.Add(core.MemoryEntry{
		Role:       core.RoleAssistant,
		Content:    req.Message,
		ToolCallID: toolCallID,
		Approval:   &req,
	})
}

// Build returns the accumulated log in append order.
func (b *MemoryBuilder) Build() []core.MemoryEntry {
	return core.CloneMemory(b.entries)
}
