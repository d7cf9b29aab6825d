package core

import "testing"

func TestAgent_CallCounter(t *testing.T) {
	a := NewAgent("bot")
	if a.CallCount() != 0 {
		t.Fatalf("fresh counter: got %d", a.CallCount())
	}
	if got := a.IncrementCallCount(); got != 1 {
		t.Fatalf("increment: got %d", got)
	}
	a.IncrementCallCount()
	if !a.ResetCallCount() {
		t.Error("reset of non-zero counter should report change")
	}
	if a.ResetCallCount() {
		t.Error("reset of zero counter should report no change")
	}
	if a.CallCount() != 0 {
		t.Fatalf("after reset: got %d", a.CallCount())
	}
}

func TestAgent_MemoryAppendAndSnapshotIsolation(t *testing.T) {
	a := NewAgent("bot")
	a.AppendMemory(NewMemoryEntry(RoleUser, "hi", "human"))
	a.AppendMemory(NewMemoryEntry(RoleAssistant, "hello", "bot"))

	snap := a.GetMemory()
	if len(snap) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(snap))
	}
	snap[0].Content = "mutated"
	if a.GetMemory()[0].Content != "hi" {
		t.Error("memory slice should be copied on read")
	}
}

func TestAgent_ClearMemoryReturnsEntries(t *testing.T) {
	a := NewAgent("bot")
	a.AppendMemory(NewMemoryEntry(RoleUser, "one", "human"))
	a.AppendMemory(NewMemoryEntry(RoleUser, "two", "human"))

	removed := a.ClearMemory()
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed entries, got %d", len(removed))
	}
	if a.MemoryLen() != 0 {
		t.Fatalf("memory should be empty, got %d", a.MemoryLen())
	}
	if len(a.ClearMemory()) != 0 {
		t.Error("clearing empty memory should return nothing")
	}
}

func TestMemoryEntry_CloneIsDeep(t *testing.T) {
	e := NewMemoryEntry(RoleAssistant, "run?", "bot")
	e.Approval = &ApprovalRequest{
		ToolName: "shell_cmd",
		ToolArgs: map[string]any{"command": "ls"},
		Options:  []string{"deny", "approve_once"},
	}
	dup := e.Clone()
	dup.Approval.ToolArgs["command"] = "rm"
	dup.Approval.Options[0] = "x"
	if e.Approval.ToolArgs["command"] != "ls" || e.Approval.Options[0] != "deny" {
		t.Error("clone should not share approval state")
	}
}

func TestAgent_CloneIsDetached(t *testing.T) {
	a := NewAgent("writer", func(o *AgentOptions) {
		o.SystemPrompt = "be brief"
	})
	a.SetCallCount(3)
	a.AppendMemory(NewMemoryEntry(RoleUser, "hello", "human"))

	dup := a.Clone()
	if dup.Name != "writer" || dup.SystemPrompt != "be brief" || dup.CallCount() != 3 {
		t.Errorf("clone lost fields: %+v", dup)
	}
	dup.AppendMemory(NewMemoryEntry(RoleUser, "extra", "human"))
	dup.SetCallCount(9)
	if a.MemoryLen() != 1 || a.CallCount() != 3 {
		t.Error("mutating the clone must not touch the source")
	}
}
