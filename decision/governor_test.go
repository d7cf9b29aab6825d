package decision

import (
	"strings"
	"testing"

	"github.com/yysun/agent-world-sub006/core"
)

func TestShouldReset(t *testing.T) {
	if !ShouldReset(core.HumanSender("")) || !ShouldReset(core.SystemSender()) {
		t.Error("human and system activity must rearm counters")
	}
	if ShouldReset(core.AgentSender("a")) || ShouldReset(core.WorldSender()) {
		t.Error("agent and world senders must not rearm counters")
	}
}

func TestIsBlocked(t *testing.T) {
	agent := core.AgentSender("writer")
	if IsBlocked(5, 5, agent) {
		t.Error("counter at limit is not blocked")
	}
	if !IsBlocked(6, 5, agent) {
		t.Error("counter over limit on agent trigger must block")
	}
	if IsBlocked(100, 5, core.HumanSender("")) {
		t.Error("human triggers are never blocked")
	}
}

func TestTurnLimitNotice(t *testing.T) {
	n := TurnLimitNotice(5, "researcher")
	if !IsTurnLimitNotice(n) {
		t.Fatalf("notice should match its own pattern: %q", n)
	}
	if !strings.Contains(n, "@researcher") || !strings.Contains(n, "(5)") {
		t.Fatalf("notice should name agent and limit: %q", n)
	}
	if IsTurnLimitNotice("Turn limits are a good idea") {
		t.Error("prose must not match the notice pattern")
	}
	if !IsTurnLimitNotice("  " + n) {
		t.Error("leading whitespace should not defeat the pattern")
	}
}
