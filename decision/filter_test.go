package decision

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/yysun/agent-world-sub006/core"
)

func contents(msgs []core.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func TestFilterHistory_ReconstructsAgentView(t *testing.T) {
	history := []core.Message{
		core.NewHumanMessage("kick off"),
		core.NewAgentMessage("researcher", "@writer draft it"),
		core.NewAgentMessage("writer", "working"),               // no mention: invisible to researcher
		core.NewAgentMessage("writer", "@researcher need data"), // dispatches
		core.NewWorldMessage("rain"),                            // never visible
	}
	got := FilterHistory("agent-r", "researcher", 5, history)
	want := []string{"kick off", "@writer draft it", "@researcher need data"}
	if diff := cmp.Diff(want, contents(got)); diff != "" {
		t.Fatalf("view mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterHistory_IncludesOwnMessagesAsContext(t *testing.T) {
	history := []core.Message{
		core.NewHumanMessage("hello"),
		core.NewAgentMessage("researcher", "on it"),
	}
	got := FilterHistory("agent-r", "researcher", 5, history)
	want := []string{"hello", "on it"}
	if diff := cmp.Diff(want, contents(got)); diff != "" {
		t.Fatalf("view mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterHistory_ReplaysTurnLimit(t *testing.T) {
	var history []core.Message
	history = append(history, core.NewHumanMessage("start"))
	for i := 0; i < 10; i++ {
		history = append(history, core.NewAgentMessage("writer", "@researcher ping"))
	}
	history = append(history, core.NewHumanMessage("rearm"))
	history = append(history, core.NewAgentMessage("writer", "@researcher after rearm"))

	got := FilterHistory("agent-r", "researcher", 2, history)
	// start resets (counter 0) and dispatches (1); pings dispatch at
	// counters 1 and 2, block from counter 3 on; rearm resets and
	// dispatches; the final ping dispatches again.
	want := []string{"start", "@researcher ping", "@researcher ping", "rearm", "@researcher after rearm"}
	if diff := cmp.Diff(want, contents(got)); diff != "" {
		t.Fatalf("replay mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterHistory_DoesNotTouchLiveState(t *testing.T) {
	a := core.NewAgent("researcher")
	a.SetCallCount(4)
	FilterHistory(a.ID, a.Name, 5, []core.Message{
		core.NewHumanMessage("x"),
		core.NewAgentMessage("writer", "@researcher y"),
	})
	if a.CallCount() != 4 {
		t.Fatalf("live counter changed to %d", a.CallCount())
	}
}
