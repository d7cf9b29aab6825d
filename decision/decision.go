package decision

import (
	"github.com/yysun/agent-world-sub006/core"
	"github.com/yysun/agent-world-sub006/logging"
)

// Verdict explains the outcome of evaluating one message for one agent.
type Verdict struct {
	// Respond is the dispatch decision.
	Respond bool
	// Reset records that the trigger rearmed the turn counter.
	Reset bool
	// Blocked records that the turn governor suppressed a reply.
	Blocked bool
	// Reason names the rule that decided, for logs and tests.
	Reason string
}

// Decision reasons.
const (
	ReasonNotice       = "turn_limit_notice"
	ReasonSelf         = "self_message"
	ReasonTurnLimit    = "turn_limit"
	ReasonBroadcast    = "human_or_system"
	ReasonMentioned    = "mentioned"
	ReasonNotMentioned = "not_mentioned"
	ReasonWorldEvent   = "world_event"
)

// Evaluate runs the ordered response rules for one agent against one
// message. It is pure: counter state comes in as a value and side
// effects are reported on the verdict for the caller to apply.
//
// Rule order is load-bearing. Notices are filtered before the governor
// so they cannot reset counters; the self check precedes the governor so
// an agent's own echo neither resets nor consumes budget.
func Evaluate(agentID, agentName string, counter, limit int, ev core.Message) Verdict {
	// 1. Coordination notices trigger no one and reset nothing.
	if IsTurnLimitNotice(ev.Content) {
		return Verdict{Reason: ReasonNotice}
	}
	// 2. Never respond to yourself.
	if ev.Sender.Matches(agentID) || ev.Sender.Matches(agentName) {
		return Verdict{Reason: ReasonSelf}
	}
	// 3. Turn governor: rearm on human/system, then check the bound.
	var v Verdict
	if ShouldReset(ev.Sender) {
		v.Reset = true
		counter = 0
	}
	if IsBlocked(counter, limit, ev.Sender) {
		v.Blocked = true
		v.Reason = ReasonTurnLimit
		return v
	}
	// 4. Human and system messages are public broadcasts.
	if ev.Sender.IsHuman() || ev.Sender.IsSystem() {
		v.Respond = true
		v.Reason = ReasonBroadcast
		return v
	}
	// 5. Agent messages require a paragraph-anchored mention.
	if ev.Sender.IsAgent() {
		if IsParagraphMention(ev.Content, agentName) {
			v.Respond = true
			v.Reason = ReasonMentioned
		} else {
			v.Reason = ReasonNotMentioned
		}
		return v
	}
	// World and unknown senders fall through: never a trigger.
	v.Reason = ReasonWorldEvent
	return v
}

// Engine applies the rule kernel to live agents during dispatch,
// mutating counters exactly as the verdict prescribes: reset on
// human/system triggers, one increment per dispatching verdict.
type Engine struct {
	logger logging.Logger
}

// NewEngine creates an engine. A nil logger falls back to no-op.
func NewEngine(logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Engine{logger: logger}
}

// Decide evaluates the message for the agent and applies the counter
// side effects atomically.
func (e *Engine) Decide(w *core.World, a *core.Agent, ev core.Message) Verdict {
	v := Evaluate(a.ID, a.Name, a.CallCount(), w.EffectiveTurnLimit(), ev)
	if v.Reset || v.Respond {
		a.AdjustCallCount(v.Reset, v.Respond)
	}
	e.logger.Debug("response decision",
		"world", w.ID,
		"agent", a.Name,
		"sender", ev.Sender.String(),
		"respond", v.Respond,
		"reason", v.Reason,
		"call_count", a.CallCount(),
	)
	return v
}
