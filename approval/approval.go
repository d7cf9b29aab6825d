package approval

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/yysun/agent-world-sub006/core"
)

// Decision is a human answer to an approval request.
type Decision string

const (
	// DecisionApprove grants execution.
	DecisionApprove Decision = "approve"
	// DecisionDeny refuses execution.
	DecisionDeny Decision = "deny"
)

// Scope bounds how long an approval grant lasts.
type Scope string

const (
	// ScopeOnce is consumed by exactly one completed execution.
	ScopeOnce Scope = "once"
	// ScopeSession persists indefinitely for the identical request
	// triple.
	ScopeSession Scope = "session"
)

// RequestOptions are the answer labels offered with an approval request,
// in display order.
var RequestOptions = []string{"deny", "approve_once", "approve_session"}

// Request identifies one prospective tool execution. All three fields
// participate in grant matching; there are no partial matches.
type Request struct {
	ToolName         string         `json:"toolName"`
	ToolArgs         map[string]any `json:"toolArgs,omitempty"`
	WorkingDirectory string         `json:"workingDirectory,omitempty"`
}

// Status is the outcome of an approval check.
type Status struct {
	// NeedsApproval means no usable grant exists; the caller should
	// append a request entry and wait for a decision.
	NeedsApproval bool `json:"needsApproval"`
	// CanExecute means a grant covers the request right now.
	CanExecute bool `json:"canExecute"`
	// Reason explains the outcome for display and logs.
	Reason string `json:"reason,omitempty"`
	// Options carries the answer labels when approval is needed.
	Options []string `json:"options,omitempty"`
}

// DecisionPayload is the canonical wire form of an approval decision:
// the JSON string body of a tool-result entry carrying the tool call id.
// It is fully verifiable because it restates the request triple.
type DecisionPayload struct {
	Decision         Decision       `json:"decision"`
	Scope            Scope          `json:"scope,omitempty"`
	ToolName         string         `json:"toolName"`
	ToolArgs         map[string]any `json:"toolArgs,omitempty"`
	WorkingDirectory string         `json:"workingDirectory,omitempty"`
}

// StatusCompleted tags completion payloads.
const StatusCompleted = "completed"

// CompletionPayload records a finished execution of an exact request
// triple. Its presence newer than a once-grant consumes that grant.
type CompletionPayload struct {
	Status           string         `json:"status"`
	ToolName         string         `json:"toolName"`
	ToolArgs         map[string]any `json:"toolArgs,omitempty"`
	WorkingDirectory string         `json:"workingDirectory,omitempty"`
	Result           any            `json:"result,omitempty"`
}

// NewRequestEntry builds the pending-approval memory entry appended when
// a check reports NeedsApproval.
func NewRequestEntry(req Request, toolCallID string) core.MemoryEntry {
	msg := fmt.Sprintf("Tool %q requires approval before it can run", req.ToolName)
	if req.WorkingDirectory != "" {
		msg = fmt.Sprintf("%s in %q", msg, req.WorkingDirectory)
	}
	msg += "."
	return core.MemoryEntry{
		Role:       core.RoleAssistant,
		Content:    msg,
		CreatedAt:  time.Now().UTC(),
		ToolCallID: toolCallID,
		Approval: &core.ApprovalRequest{
			ToolName:         req.ToolName,
			ToolArgs:         req.ToolArgs,
			WorkingDirectory: req.WorkingDirectory,
			Message:          msg,
			Options:          append([]string(nil), RequestOptions...),
		},
	}
}

// NewDecisionEntry builds the canonical decision record for the given
// request.
func NewDecisionEntry(toolCallID string, d Decision, s Scope, req Request) (core.MemoryEntry, error) {
	if d != DecisionApprove && d != DecisionDeny {
		return core.MemoryEntry{}, fmt.Errorf("approval decision %q unknown", d)
	}
	if d == DecisionApprove && s != ScopeOnce && s != ScopeSession {
		return core.MemoryEntry{}, fmt.Errorf("approval scope %q unknown", s)
	}
	payload := DecisionPayload{
		Decision:         d,
		Scope:            s,
		ToolName:         req.ToolName,
		ToolArgs:         req.ToolArgs,
		WorkingDirectory: req.WorkingDirectory,
	}
	if d == DecisionDeny {
		payload.Scope = ""
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return core.MemoryEntry{}, fmt.Errorf("encode approval decision: %w", err)
	}
	return core.MemoryEntry{
		Role:       core.RoleTool,
		Content:    string(body),
		CreatedAt:  time.Now().UTC(),
		ToolCallID: toolCallID,
	}, nil
}

// NewCompletionEntry builds the execution record appended after a tool
// ran, consuming any once-grant covering the request.
func NewCompletionEntry(toolCallID string, req Request, result any) (core.MemoryEntry, error) {
	payload := CompletionPayload{
		Status:           StatusCompleted,
		ToolName:         req.ToolName,
		ToolArgs:         req.ToolArgs,
		WorkingDirectory: req.WorkingDirectory,
		Result:           result,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return core.MemoryEntry{}, fmt.Errorf("encode completion record: %w", err)
	}
	return core.MemoryEntry{
		Role:       core.RoleTool,
		Content:    string(body),
		CreatedAt:  time.Now().UTC(),
		ToolCallID: toolCallID,
	}, nil
}
