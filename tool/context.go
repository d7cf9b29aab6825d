package tool

import (
	"context"

	"github.com/yysun/agent-world-sub006/logging"
)

// Context provides a constrained, auditable surface for tool implementations
// invoked on behalf of an agent. It carries the invocation context, the
// identity of the calling agent, the working directory the call is keyed to
// and a logger pre-scoped to the call.
type Context struct {
	ctx            context.Context
	functionCallID string
	worldID        string
	agentID        string
	agentName      string
	workingDir     string
	logger         logging.Logger
}

// ContextOptions configures a tool invocation context.
type ContextOptions struct {
	// WorldID identifies the world the invoking agent belongs to.
	WorldID string

	// AgentID identifies the invoking agent.
	AgentID string

	// AgentName is the invoking agent's display name.
	AgentName string

	// WorkingDirectory is the directory side-effecting tools operate in. It is
	// part of the approval key, so tools must not silently substitute another.
	WorkingDirectory string

	// Logger receives per-call diagnostics. Defaults to a no-op logger.
	Logger logging.Logger
}

// NewContext constructs a tool context bound to a parent context and unique
// function call ID.
func NewContext(ctx context.Context, functionCallID string, optFns ...func(*ContextOptions)) *Context {
	opts := ContextOptions{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Context{
		ctx:            ctx,
		functionCallID: functionCallID,
		worldID:        opts.WorldID,
		agentID:        opts.AgentID,
		agentName:      opts.AgentName,
		workingDir:     opts.WorkingDirectory,
		logger:         opts.Logger,
	}
}

// Context returns the context associated with the tool invocation.
func (tc *Context) Context() context.Context {
	if tc.ctx == nil {
		return context.Background()
	}
	return tc.ctx
}

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *Context) FunctionCallID() string { return tc.functionCallID }

// WorldID returns the world ID associated with the tool invocation.
func (tc *Context) WorldID() string { return tc.worldID }

// AgentID returns the agent ID associated with the tool invocation.
func (tc *Context) AgentID() string { return tc.agentID }

// AgentName returns the agent name associated with the tool invocation.
func (tc *Context) AgentName() string { return tc.agentName }

// WorkingDirectory returns the directory side-effecting tools run in.
func (tc *Context) WorkingDirectory() string { return tc.workingDir }

// Logger returns the logger associated with the tool invocation.
func (tc *Context) Logger() logging.Logger { return tc.logger }
