package core

import "time"

// Memory entry roles. They mirror conversation roles so a memory
// snapshot maps directly onto a model request.
const (
	// RoleUser marks entries recording messages the agent received.
	RoleUser = "user"
	// RoleAssistant marks entries recording the agent's own output,
	// including pending approval requests.
	RoleAssistant = "assistant"
	// RoleTool marks tool-result entries: approval decisions and
	// execution completion records.
	RoleTool = "tool"
	// RoleSystem marks entries injected by the coordination layer.
	RoleSystem = "system"
)

// ApprovalRequest is the pending-approval marker carried by a memory
// entry: it records exactly what the agent asked permission for and the
// choices offered to the human. A nil pointer on the entry means no
// approval is pending.
type ApprovalRequest struct {
	// ToolName is the tool awaiting permission.
	ToolName string `json:"toolName"`
	// ToolArgs is the full argument object of the pending call.
	ToolArgs map[string]any `json:"toolArgs,omitempty"`
	// WorkingDirectory is the directory the call would run in.
	WorkingDirectory string `json:"workingDirectory,omitempty"`
	// Message is the human-readable prompt shown when asking.
	Message string `json:"message,omitempty"`
	// Options are the accepted answer labels, in display order.
	Options []string `json:"options,omitempty"`
}

// Clone returns a deep copy of the request.
func (r *ApprovalRequest) Clone() *ApprovalRequest {
	if r == nil {
		return nil
	}
	dup := *r
	if r.ToolArgs != nil {
		dup.ToolArgs = make(map[string]any, len(r.ToolArgs))
		for k, v := range r.ToolArgs {
			dup.ToolArgs[k] = v
		}
	}
	if r.Options != nil {
		dup.Options = append([]string(nil), r.Options...)
	}
	return &dup
}

// MemoryEntry is one element of an agent's append-only conversation
// memory. Entries are only ever appended; the single exception is the
// archive-then-clear operation on the owning agent.
type MemoryEntry struct {
	// Role is one of RoleUser, RoleAssistant, RoleTool, RoleSystem.
	Role string `json:"role"`
	// Content is the entry text. Tool-role entries carry the JSON
	// approval envelope here.
	Content string `json:"content"`
	// Sender is the display identity of the originating sender, when the
	// entry records a received message.
	Sender string `json:"sender,omitempty"`
	// CreatedAt records append time in UTC.
	CreatedAt time.Time `json:"createdAt"`
	// ToolCallID links tool requests, decisions and completions that
	// belong to the same call.
	ToolCallID string `json:"toolCallId,omitempty"`
	// Approval, when non-nil, marks the entry as a pending approval
	// request.
	Approval *ApprovalRequest `json:"approval,omitempty"`
}

// NewMemoryEntry creates an entry with a UTC timestamp.
func NewMemoryEntry(role, content, sender string) MemoryEntry {
	return MemoryEntry{
		Role:      role,
		Content:   content,
		Sender:    sender,
		CreatedAt: time.Now().UTC(),
	}
}

// Clone returns a deep copy of the entry.
func (e MemoryEntry) Clone() MemoryEntry {
	e.Approval = e.Approval.Clone()
	return e
}

// CloneMemory deep-copies a slice of entries. Stores and snapshot
// accessors use it to keep callers from aliasing internal state.
func CloneMemory(entries []MemoryEntry) []MemoryEntry {
	if entries == nil {
		return nil
	}
	out := make([]MemoryEntry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}
