package approval

import (
	"regexp"
	"strings"
)

// legacyPattern accepts the free-text approval phrases older frontends
// wrote straight into chat: "approve shell_cmd", "approve shell_cmd for
// session", "approve_once shell_cmd", "deny shell_cmd". Verbs are
// case-insensitive; the tool name is captured verbatim.
var legacyPattern = regexp.MustCompile(`(?i)^\s*(approve_once|approve|deny)\s+([A-Za-z0-9_.-]+)(\s+for\s+session)?\s*$`)

// ParseLegacy interprets a user-authored message as a free-text approval
// record. It reports the decision, its scope, and the tool name it names,
// with ok false when the text is not an approval phrase at all.
//
// A bare "approve <tool>" grants the least: scope once. Only the explicit
// "for session" suffix widens it, and only for the approve verb.
func ParseLegacy(content string) (d Decision, s Scope, tool string, ok bool) {
	m := legacyPattern.FindStringSubmatch(content)
	if m == nil {
		return "", "", "", false
	}
	verb := strings.ToLower(m[1])
	tool = m[2]
	switch verb {
	case "deny":
		return DecisionDeny, "", tool, true
	case "approve_once":
		return DecisionApprove, ScopeOnce, tool, true
	default:
		if m[3] != "" {
			return DecisionApprove, ScopeSession, tool, true
		}
		return DecisionApprove, ScopeOnce, tool, true
	}
}
