package approval

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yysun/agent-world-sub006/core"
)

// recordingLogger captures warnings so tests can assert the legacy-form
// security warning and malformed-payload reporting.
type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Debug(msg string, args ...any) {}
func (l *recordingLogger) Info(msg string, args ...any)  {}
func (l *recordingLogger) Error(msg string, args ...any) {}

func (l *recordingLogger) Warn(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) warnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns)
}

func shellReq() Request {
	return Request{
		ToolName:         "shell_cmd",
		ToolArgs:         map[string]any{"command": "ls"},
		WorkingDirectory: "/tmp",
	}
}

func decisionEntry(t *testing.T, d Decision, s Scope, req Request) core.MemoryEntry {
	t.Helper()
	e, err := NewDecisionEntry(core.NewID(), d, s, req)
	require.NoError(t, err)
	return e
}

func completionEntry(t *testing.T, req Request) core.MemoryEntry {
	t.Helper()
	e, err := NewCompletionEntry(core.NewID(), req, "ok")
	require.NoError(t, err)
	return e
}

func TestCheck_NoRecord(t *testing.T) {
	st := Check(nil, shellReq(), nil)

	assert.True(t, st.NeedsApproval)
	assert.False(t, st.CanExecute)
	assert.Equal(t, RequestOptions, st.Options)
}

func TestCheck_SessionApprovalPersists(t *testing.T) {
	req := shellReq()
	entries := []core.MemoryEntry{
		decisionEntry(t, DecisionApprove, ScopeSession, req),
	}

	st := Check(entries, req, nil)
	require.True(t, st.CanExecute)

	// Completions do not consume a session grant.
	entries = append(entries, completionEntry(t, req))
	st = Check(entries, req, nil)
	assert.True(t, st.CanExecute)
	assert.False(t, st.NeedsApproval)
}

func TestCheck_OnceConsumedByCompletion(t *testing.T) {
	req := shellReq()
	entries := []core.MemoryEntry{
		decisionEntry(t, DecisionApprove, ScopeOnce, req),
	}

	st := Check(entries, req, nil)
	require.True(t, st.CanExecute)

	entries = append(entries, completionEntry(t, req))
	st = Check(entries, req, nil)
	assert.True(t, st.NeedsApproval, "consumed once grant must revert to the no-record state")
	assert.False(t, st.CanExecute)
	assert.Equal(t, RequestOptions, st.Options)
}

func TestCheck_OnceSurvivesUnrelatedCompletion(t *testing.T) {
	req := shellReq()
	other := shellReq()
	other.ToolArgs = map[string]any{"command": "pwd"}

	entries := []core.MemoryEntry{
		decisionEntry(t, DecisionApprove, ScopeOnce, req),
		completionEntry(t, other),
	}

	st := Check(entries, req, nil)
	assert.True(t, st.CanExecute)
}

func TestCheck_Deny(t *testing.T) {
	req := shellReq()
	entries := []core.MemoryEntry{
		decisionEntry(t, DecisionDeny, "", req),
	}

	st := Check(entries, req, nil)
	assert.False(t, st.NeedsApproval)
	assert.False(t, st.CanExecute)
	assert.Equal(t, "denied", st.Reason)
}

func TestCheck_NewestMatchingRecordWins(t *testing.T) {
	req := shellReq()

	entries := []core.MemoryEntry{
		decisionEntry(t, DecisionApprove, ScopeSession, req),
		decisionEntry(t, DecisionDeny, "", req),
	}
	st := Check(entries, req, nil)
	assert.False(t, st.CanExecute, "newer deny overrides older session grant")

	entries = []core.MemoryEntry{
		decisionEntry(t, DecisionDeny, "", req),
		decisionEntry(t, DecisionApprove, ScopeSession, req),
	}
	st = Check(entries, req, nil)
	assert.True(t, st.CanExecute, "newer grant overrides older deny")
}

func TestCheck_TripleIsolation(t *testing.T) {
	granted := shellReq()
	entries := []core.MemoryEntry{
		decisionEntry(t, DecisionApprove, ScopeSession, granted),
	}

	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"different tool", func(r *Request) { r.ToolName = "current_time" }},
		{"different args", func(r *Request) { r.ToolArgs = map[string]any{"command": "rm -rf /"} }},
		{"different working directory", func(r *Request) { r.WorkingDirectory = "/home" }},
		{"tool name is case sensitive", func(r *Request) { r.ToolName = "Shell_Cmd" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := shellReq()
			tt.mutate(&req)
			st := Check(entries, req, nil)
			assert.True(t, st.NeedsApproval, "grant for one triple must not leak to another")
		})
	}

	st := Check(entries, granted, nil)
	assert.True(t, st.CanExecute, "identical triple still matches")
}

func TestCheck_ArgsMatchIsOrderIndependent(t *testing.T) {
	granted := Request{
		ToolName:         "shell_cmd",
		ToolArgs:         map[string]any{"command": "ls", "timeout": 30},
		WorkingDirectory: "/tmp",
	}
	entries := []core.MemoryEntry{
		decisionEntry(t, DecisionApprove, ScopeSession, granted),
	}

	req := Request{
		ToolName:         "shell_cmd",
		ToolArgs:         map[string]any{"timeout": 30.0, "command": "ls"},
		WorkingDirectory: "/tmp",
	}
	st := Check(entries, req, nil)
	assert.True(t, st.CanExecute, "key order and numeric representation must not defeat a match")
}

func TestCheck_MalformedPayloadFailsClosed(t *testing.T) {
	req := shellReq()
	logger := &recordingLogger{}

	bad := core.NewMemoryEntry(core.RoleTool, `{"decision": "maybe", "toolName": "shell_cmd"}`, "human")
	truncated := core.NewMemoryEntry(core.RoleTool, `{"decision":`, "human")

	st := Check([]core.MemoryEntry{bad, truncated}, req, logger)
	assert.True(t, st.NeedsApproval)
	assert.Equal(t, 2, logger.warnCount())

	// A malformed newer record does not mask a valid older one.
	entries := []core.MemoryEntry{
		decisionEntry(t, DecisionApprove, ScopeSession, req),
		bad,
	}
	st = Check(entries, req, nil)
	assert.True(t, st.CanExecute)
}

func TestCheck_OrdinaryToolOutputIgnored(t *testing.T) {
	req := shellReq()
	logger := &recordingLogger{}
	entries := []core.MemoryEntry{
		core.NewMemoryEntry(core.RoleTool, `{"stdout": "file.txt", "exitCode": 0}`, "world"),
		core.NewMemoryEntry(core.RoleTool, `not json at all`, "world"),
	}

	st := Check(entries, req, logger)
	assert.True(t, st.NeedsApproval)
	assert.Zero(t, logger.warnCount(), "plain tool output is not a malformed envelope")
}

func TestCheck_PendingRequestIsNotARecord(t *testing.T) {
	req := shellReq()
	entries := []core.MemoryEntry{
		NewRequestEntry(req, core.NewID()),
	}

	st := Check(entries, req, nil)
	assert.True(t, st.NeedsApproval)
}

func TestCheck_LegacyFreeText(t *testing.T) {
	req := shellReq()

	t.Run("session grant matched by tool name only", func(t *testing.T) {
		logger := &recordingLogger{}
		entries := []core.MemoryEntry{
			core.NewMemoryEntry(core.RoleUser, "approve shell_cmd for session", "human"),
		}
		st := Check(entries, req, logger)
		assert.True(t, st.CanExecute)
		require.Equal(t, 1, logger.warnCount(), "legacy match must emit a security warning")
		assert.Contains(t, logger.warns[0], "legacy")
	})

	t.Run("deny", func(t *testing.T) {
		entries := []core.MemoryEntry{
			core.NewMemoryEntry(core.RoleUser, "deny shell_cmd", "human"),
		}
		st := Check(entries, req, &recordingLogger{})
		assert.False(t, st.CanExecute)
		assert.Equal(t, "denied", st.Reason)
	})

	t.Run("bare approve grants once", func(t *testing.T) {
		entries := []core.MemoryEntry{
			core.NewMemoryEntry(core.RoleUser, "approve shell_cmd", "human"),
			completionEntry(t, req),
		}
		st := Check(entries, req, &recordingLogger{})
		assert.True(t, st.NeedsApproval, "bare approve is single-use and the completion consumed it")
	})

	t.Run("other tool name does not match", func(t *testing.T) {
		entries := []core.MemoryEntry{
			core.NewMemoryEntry(core.RoleUser, "approve current_time", "human"),
		}
		st := Check(entries, req, &recordingLogger{})
		assert.True(t, st.NeedsApproval)
	})

	t.Run("ordinary chat is not an approval", func(t *testing.T) {
		logger := &recordingLogger{}
		entries := []core.MemoryEntry{
			core.NewMemoryEntry(core.RoleUser, "please approve shell_cmd when you can", "human"),
		}
		st := Check(entries, req, logger)
		assert.True(t, st.NeedsApproval)
		assert.Zero(t, logger.warnCount())
	})
}

func TestParseLegacy(t *testing.T) {
	tests := []struct {
		content  string
		decision Decision
		scope    Scope
		tool     string
		ok       bool
	}{
		{"approve shell_cmd", DecisionApprove, ScopeOnce, "shell_cmd", true},
		{"approve shell_cmd for session", DecisionApprove, ScopeSession, "shell_cmd", true},
		{"APPROVE shell_cmd FOR SESSION", DecisionApprove, ScopeSession, "shell_cmd", true},
		{"approve_once shell_cmd", DecisionApprove, ScopeOnce, "shell_cmd", true},
		{"deny shell_cmd", DecisionDeny, "", "shell_cmd", true},
		{"  deny shell_cmd  ", DecisionDeny, "", "shell_cmd", true},
		{"approve", "", "", "", false},
		{"approve two words", "", "", "", false},
		{"rejected shell_cmd", "", "", "", false},
		{"", "", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			d, s, tool, ok := ParseLegacy(tt.content)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.decision, d)
				assert.Equal(t, tt.scope, s)
				assert.Equal(t, tt.tool, tool)
			}
		})
	}
}

func TestDecisionEntry_RoundTrip(t *testing.T) {
	req := shellReq()
	callID := core.NewID()

	e, err := NewDecisionEntry(callID, DecisionApprove, ScopeSession, req)
	require.NoError(t, err)
	assert.Equal(t, core.RoleTool, e.Role)
	assert.Equal(t, callID, e.ToolCallID)

	rec, perr := parseToolRecord(e.Content)
	require.NoError(t, perr)
	require.NotNil(t, rec)
	require.NotNil(t, rec.decision)
	assert.Equal(t, DecisionApprove, rec.decision.Decision)
	assert.Equal(t, ScopeSession, rec.decision.Scope)
	assert.Equal(t, req.ToolName, rec.decision.ToolName)
}

func TestNewDecisionEntry_Validates(t *testing.T) {
	req := shellReq()

	_, err := NewDecisionEntry(core.NewID(), "maybe", "", req)
	assert.Error(t, err)

	_, err = NewDecisionEntry(core.NewID(), DecisionApprove, "forever", req)
	assert.Error(t, err)

	e, err := NewDecisionEntry(core.NewID(), DecisionDeny, ScopeSession, req)
	require.NoError(t, err)
	rec, perr := parseToolRecord(e.Content)
	require.NoError(t, perr)
	assert.Empty(t, rec.decision.Scope, "deny carries no scope")
}
