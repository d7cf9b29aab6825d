package decision

import "github.com/yysun/agent-world-sub006/core"

// FilterHistory replays the response rules over a recorded message
// history and returns what the agent would have seen: every message that
// would have dispatched to it, plus its own messages as passive context.
// Used to rebuild an agent's view of a conversation without leaking
// messages it never processed. Counters are simulated locally; live
// agent state is never touched.
func FilterHistory(agentID, agentName string, limit int, history []core.Message) []core.Message {
	counter := 0
	out := make([]core.Message, 0, len(history))
	for _, ev := range history {
		// Own output folds in as context; it never consumes turn budget,
		// matching the live self-message rule.
		if ev.Sender.Matches(agentID) || ev.Sender.Matches(agentName) {
			out = append(out, ev)
			continue
		}
		v := Evaluate(agentID, agentName, counter, limit, ev)
		if v.Reset {
			counter = 0
		}
		if v.Respond {
			counter++
			out = append(out, ev)
		}
	}
	return out
}
