package approval

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/yysun/agent-world-sub006/core"
	"github.com/yysun/agent-world-sub006/logging"
)

// Check re-derives the approval state for one request by scanning the
// agent's memory most-recent-first with early exit. The newest record
// matching the request triple decides:
//
//   - deny (any scope): execution refused until a newer grant appears.
//   - approve/once: executable unless a newer completion entry for the
//     same triple consumed it, in which case the check reverts to the
//     no-record state.
//   - approve/session: executable indefinitely for the identical triple.
//
// Records arrive in two encodings: the canonical JSON envelope in
// tool-result entries (fully verifiable) and a legacy free-text form in
// user entries, matched by tool name only and flagged with a security
// warning. Malformed envelopes count as no record, failing closed.
func Check(entries []core.MemoryEntry, req Request, logger logging.Logger) Status {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	seenCompletion := false
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		switch e.Role {
		case core.RoleTool:
			rec, err := parseToolRecord(e.Content)
			if err != nil {
				logger.Warn("malformed approval payload treated as no record",
					"tool_call_id", e.ToolCallID, "error", err)
				continue
			}
			if rec == nil {
				continue
			}
			if rec.completion != nil {
				if matches(req, rec.completion.ToolName, rec.completion.ToolArgs, rec.completion.WorkingDirectory) {
					seenCompletion = true
				}
				continue
			}
			d := rec.decision
			if !matches(req, d.ToolName, d.ToolArgs, d.WorkingDirectory) {
				continue
			}
			return decide(d.Decision, d.Scope, seenCompletion)
		case core.RoleUser:
			d, s, tool, ok := ParseLegacy(e.Content)
			if !ok || tool != req.ToolName {
				continue
			}
			logger.Warn("legacy free-text approval matched by tool name only; arguments and working directory are unverified",
				"tool", req.ToolName, "decision", string(d))
			return decide(d, s, seenCompletion)
		}
	}
	return needsApproval("no approval on record")
}

func needsApproval(reason string) Status {
	return Status{
		NeedsApproval: true,
		Reason:        reason,
		Options:       append([]string(nil), RequestOptions...),
	}
}

func decide(d Decision, s Scope, seenCompletion bool) Status {
	switch {
	case d == DecisionDeny:
		return Status{Reason: "denied"}
	case s == ScopeSession:
		return Status{CanExecute: true, Reason: "session approval"}
	default:
		// Approvals without an explicit scope grant the least: once.
		if seenCompletion {
			return needsApproval("single-use approval already consumed")
		}
		return Status{CanExecute: true, Reason: "single-use approval"}
	}
}

// toolRecord is a parsed approval envelope from a tool-result entry.
// Exactly one of the fields is set.
type toolRecord struct {
	decision   *DecisionPayload
	completion *CompletionPayload
}

// parseToolRecord classifies a tool-result body. (nil, nil) means the
// body is ordinary tool output, not an approval envelope; an error means
// the body tried to be an envelope but is malformed.
func parseToolRecord(content string) (*toolRecord, error) {
	trim := strings.TrimSpace(content)
	if !strings.HasPrefix(trim, "{") {
		return nil, nil
	}
	var probe struct {
		Decision string `json:"decision"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal([]byte(trim), &probe); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}
	switch {
	case probe.Decision != "":
		var p DecisionPayload
		if err := json.Unmarshal([]byte(trim), &p); err != nil {
			return nil, fmt.Errorf("parse decision payload: %w", err)
		}
		if p.Decision != DecisionApprove && p.Decision != DecisionDeny {
			return nil, fmt.Errorf("decision %q unknown", p.Decision)
		}
		if p.ToolName == "" {
			return nil, fmt.Errorf("decision payload missing tool name")
		}
		if p.Decision == DecisionApprove && p.Scope != "" && p.Scope != ScopeOnce && p.Scope != ScopeSession {
			return nil, fmt.Errorf("scope %q unknown", p.Scope)
		}
		return &toolRecord{decision: &p}, nil
	case probe.Status == StatusCompleted:
		var p CompletionPayload
		if err := json.Unmarshal([]byte(trim), &p); err != nil {
			return nil, fmt.Errorf("parse completion payload: %w", err)
		}
		if p.ToolName == "" {
			return nil, fmt.Errorf("completion payload missing tool name")
		}
		return &toolRecord{completion: &p}, nil
	default:
		// Ordinary structured tool output.
		return nil, nil
	}
}

// matches applies the triple key: tool name case-sensitive, working
// directory exact, arguments by order-independent deep equality. No
// partial matches on any field.
func matches(req Request, tool string, args map[string]any, dir string) bool {
	return tool == req.ToolName &&
		dir == req.WorkingDirectory &&
		argsEqual(args, req.ToolArgs)
}

// argsEqual compares argument objects after JSON normalization, so
// map ordering and numeric representation differences do not defeat a
// match while any value difference does.
func argsEqual(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	na, aok := normalizeJSON(a)
	nb, bok := normalizeJSON(b)
	return aok && bok && reflect.DeepEqual(na, nb)
}

func normalizeJSON(v any) (any, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false
	}
	return out, true
}
