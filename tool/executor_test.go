package tool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yysun/agent-world-sub006/approval"
	"github.com/yysun/agent-world-sub006/core"
)

func echoParameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{"type": "string"},
		},
		"required": []string{"text"},
	}
}

func newEchoTool() *FunctionTool {
	return NewFunctionTool("echo", "Echo text back", echoParameters(), func(tc *Context, args map[string]any) (any, error) {
		return args["text"], nil
	}, func(o *FunctionToolOptions) {
		o.RequiresApproval = true
	})
}

func TestExecutor_RegisterDuplicate(t *testing.T) {
	exec := NewExecutor()
	require.NoError(t, exec.Register(newEchoTool()))
	assert.Error(t, exec.Register(newEchoTool()))

	got, ok := exec.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", got.Name())
}

func TestExecutor_UnknownTool(t *testing.T) {
	exec := NewExecutor()
	agent := core.NewAgent("worker")

	_, err := exec.Execute(context.Background(), agent, Call{Name: "nope"})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeUnknown, toolErr.Code)
}

// -------------------- Approval Gate Tests --------------------

func TestExecutor_ApprovalRoundTrip(t *testing.T) {
	exec := NewExecutor()
	require.NoError(t, exec.Register(newEchoTool()))
	agent := core.NewAgent("worker")
	args := map[string]any{"text": "hi"}

	// No record: pending, and a request entry lands in memory.
	_, err := exec.Execute(context.Background(), agent, Call{Name: "echo", Args: args})
	require.ErrorIs(t, err, ErrApprovalPending)

	mem := agent.GetMemory()
	require.Len(t, mem, 1)
	assert.Equal(t, core.RoleAssistant, mem[0].Role)
	require.NotNil(t, mem[0].Approval)
	assert.Equal(t, "echo", mem[0].Approval.ToolName)
	assert.Equal(t, approval.RequestOptions, mem[0].Approval.Options)

	// Grant once for the exact triple.
	req := approval.Request{ToolName: "echo", ToolArgs: args}
	grant, gerr := approval.NewDecisionEntry(core.NewID(), approval.DecisionApprove, approval.ScopeOnce, req)
	require.NoError(t, gerr)
	agent.AppendMemory(grant)

	got, err := exec.Execute(context.Background(), agent, Call{Name: "echo", Args: args})
	require.NoError(t, err)
	assert.Equal(t, "hi", got)

	mem = agent.GetMemory()
	require.Len(t, mem, 3)
	assert.Equal(t, core.RoleTool, mem[2].Role, "execution appends a completion entry")

	// The completion consumed the grant: back to pending.
	_, err = exec.Execute(context.Background(), agent, Call{Name: "echo", Args: args})
	require.ErrorIs(t, err, ErrApprovalPending)
	assert.Equal(t, 4, agent.MemoryLen(), "a fresh request entry is appended")
}

func TestExecutor_SessionApproval(t *testing.T) {
	exec := NewExecutor()
	require.NoError(t, exec.Register(newEchoTool()))
	agent := core.NewAgent("worker")
	args := map[string]any{"text": "again"}

	req := approval.Request{ToolName: "echo", ToolArgs: args}
	grant, err := approval.NewDecisionEntry(core.NewID(), approval.DecisionApprove, approval.ScopeSession, req)
	require.NoError(t, err)
	agent.AppendMemory(grant)

	for i := 0; i < 3; i++ {
		got, err := exec.Execute(context.Background(), agent, Call{Name: "echo", Args: args})
		require.NoError(t, err, "session grants survive completions")
		assert.Equal(t, "again", got)
	}
}

func TestExecutor_Denied(t *testing.T) {
	exec := NewExecutor()
	require.NoError(t, exec.Register(newEchoTool()))
	agent := core.NewAgent("worker")
	args := map[string]any{"text": "no"}

	req := approval.Request{ToolName: "echo", ToolArgs: args}
	denial, err := approval.NewDecisionEntry(core.NewID(), approval.DecisionDeny, "", req)
	require.NoError(t, err)
	agent.AppendMemory(denial)

	_, err = exec.Execute(context.Background(), agent, Call{Name: "echo", Args: args})
	require.ErrorIs(t, err, ErrApprovalDenied)
	assert.Equal(t, 1, agent.MemoryLen(), "denial does not append a new request")
}

func TestExecutor_ValidationFailureKeepsGrant(t *testing.T) {
	exec := NewExecutor()
	require.NoError(t, exec.Register(newEchoTool()))
	agent := core.NewAgent("worker")
	badArgs := map[string]any{"text": 123}

	req := approval.Request{ToolName: "echo", ToolArgs: badArgs}
	grant, err := approval.NewDecisionEntry(core.NewID(), approval.DecisionApprove, approval.ScopeOnce, req)
	require.NoError(t, err)
	agent.AppendMemory(grant)

	for i := 0; i < 2; i++ {
		_, err := exec.Execute(context.Background(), agent, Call{Name: "echo", Args: badArgs})
		var toolErr *ToolError
		require.ErrorAs(t, err, &toolErr)
		assert.Equal(t, CodeValidation, toolErr.Code)
	}
	assert.Equal(t, 1, agent.MemoryLen(), "the tool never ran, so the grant is not consumed")
}

func TestExecutor_NoApprovalToolSkipsGate(t *testing.T) {
	exec := NewExecutor()
	require.NoError(t, exec.Register(NewFunctionTool("ping", "Reply pong", nil, func(tc *Context, args map[string]any) (any, error) {
		return "pong", nil
	})))
	agent := core.NewAgent("worker")

	got, err := exec.Execute(context.Background(), agent, Call{Name: "ping"})
	require.NoError(t, err)
	assert.Equal(t, "pong", got)
	assert.Zero(t, agent.MemoryLen(), "ungated tools leave no approval records")
}

func TestExecutor_OnMemoryAppendHook(t *testing.T) {
	var mu sync.Mutex
	var appended []core.MemoryEntry

	exec := NewExecutor(func(o *ExecutorOptions) {
		o.OnMemoryAppend = func(agentID string, entry core.MemoryEntry) {
			mu.Lock()
			appended = append(appended, entry)
			mu.Unlock()
		}
	})
	require.NoError(t, exec.Register(newEchoTool()))
	agent := core.NewAgent("worker")
	args := map[string]any{"text": "persist me"}

	_, err := exec.Execute(context.Background(), agent, Call{Name: "echo", Args: args})
	require.ErrorIs(t, err, ErrApprovalPending)

	req := approval.Request{ToolName: "echo", ToolArgs: args}
	grant, gerr := approval.NewDecisionEntry(core.NewID(), approval.DecisionApprove, approval.ScopeOnce, req)
	require.NoError(t, gerr)
	agent.AppendMemory(grant)

	_, err = exec.Execute(context.Background(), agent, Call{Name: "echo", Args: args})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, appended, 2, "request and completion both flow through the hook")
	assert.NotNil(t, appended[0].Approval)
	assert.Equal(t, core.RoleTool, appended[1].Role)
}

func TestExecutor_PanicRecovery(t *testing.T) {
	exec := NewExecutor()
	require.NoError(t, exec.Register(NewFunctionTool("explode", "Panics", nil, func(tc *Context, args map[string]any) (any, error) {
		panic("kaboom")
	})))
	require.NoError(t, exec.Register(NewFunctionTool("ping", "Reply pong", nil, func(tc *Context, args map[string]any) (any, error) {
		return "pong", nil
	})))
	agent := core.NewAgent("worker")

	_, err := exec.Execute(context.Background(), agent, Call{Name: "explode"})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Contains(t, toolErr.Message, "kaboom")

	got, err := exec.Execute(context.Background(), agent, Call{Name: "ping"})
	require.NoError(t, err)
	assert.Equal(t, "pong", got)
}

// -------------------- Batch Tests --------------------

func TestExecutor_ExecuteBatch(t *testing.T) {
	exec := NewExecutor()
	require.NoError(t, exec.Register(NewFunctionTool("double", "Double a number", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"n": map[string]any{"type": "number"},
		},
		"required": []string{"n"},
	}, func(tc *Context, args map[string]any) (any, error) {
		return args["n"].(float64) * 2, nil
	})))
	agent := core.NewAgent("worker")

	calls := []Call{
		{Name: "double", Args: map[string]any{"n": 1.0}},
		{Name: "double", Args: map[string]any{"n": 2.0}},
		{Name: "double", Args: map[string]any{"n": 3.0}},
		{Name: "missing"},
	}
	results, err := exec.ExecuteBatch(context.Background(), agent, calls)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, 2.0, results[0].Value)
	assert.Equal(t, 4.0, results[1].Value)
	assert.Equal(t, 6.0, results[2].Value)
	assert.NotEmpty(t, results[0].ID)

	var toolErr *ToolError
	require.ErrorAs(t, results[3].Err, &toolErr)
	assert.Equal(t, CodeUnknown, toolErr.Code)
}

func TestExecutor_BatchHonorsConcurrencyLimit(t *testing.T) {
	var current, peak atomic.Int32

	exec := NewExecutor(func(o *ExecutorOptions) {
		o.Concurrency = 2
	})
	require.NoError(t, exec.Register(NewFunctionTool("slow", "Sleep briefly", nil, func(tc *Context, args map[string]any) (any, error) {
		c := current.Add(1)
		for {
			p := peak.Load()
			if c <= p || peak.CompareAndSwap(p, c) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		current.Add(-1)
		return nil, nil
	})))
	agent := core.NewAgent("worker")

	calls := make([]Call, 6)
	for i := range calls {
		calls[i] = Call{Name: "slow"}
	}
	_, err := exec.ExecuteBatch(context.Background(), agent, calls)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}
