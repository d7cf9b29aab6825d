package decision

import (
	"fmt"
	"strings"

	"github.com/yysun/agent-world-sub006/core"
)

// The turn governor bounds runaway agent-to-agent loops: every agent
// carries a per-turn call counter that human or system activity rearms
// and agent-triggered dispatches consume.

// ShouldReset reports whether a message from this sender resets turn
// counters. Human and system activity rearms every agent; agent and
// world senders never do.
func ShouldReset(s core.Sender) bool {
	return s.IsHuman() || s.IsSystem()
}

// IsBlocked reports whether the governor suppresses a response: the
// trigger is agent-sent and the counter has passed the limit. Human and
// system triggers are never blocked.
func IsBlocked(counter, limit int, s core.Sender) bool {
	return s.IsAgent() && counter > limit
}

// TurnLimitNotice renders the system notice published when an agent hits
// the turn limit. The fixed prefix is what IsTurnLimitNotice matches.
func TurnLimitNotice(limit int, agentName string) string {
	return fmt.Sprintf(
		"Turn limit reached (%d) for @%s. Send a human message to resume agent-to-agent replies.",
		limit, agentName,
	)
}

const turnLimitNoticePrefix = "Turn limit reached ("

// IsTurnLimitNotice reports whether content is a turn-limit notice.
// Notices are published as real system messages, so the decision rules
// filter them by this pattern before anything else: they must trigger no
// one and reset no counters.
func IsTurnLimitNotice(content string) bool {
	return strings.HasPrefix(strings.TrimSpace(content), turnLimitNoticePrefix)
}
