package tool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yysun/agent-world-sub006/approval"
	"github.com/yysun/agent-world-sub006/core"
	"github.com/yysun/agent-world-sub006/logging"
)

// Sentinel errors surfaced by approval-gated execution. Callers branch on
// these with errors.Is to decide whether to ask the human or report refusal.
var (
	// ErrApprovalPending means no approval record covers the call. A request
	// entry has been appended to the agent's memory for the human to act on.
	ErrApprovalPending = errors.New("tool execution awaiting approval")

	// ErrApprovalDenied means the newest matching record is a denial.
	ErrApprovalDenied = errors.New("tool execution denied")
)

// DefaultBatchConcurrency bounds parallel tool execution in ExecuteBatch when
// the executor is not configured otherwise.
const DefaultBatchConcurrency = 4

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	// WorldID scopes invocation contexts and log fields.
	WorldID string

	// WorkingDirectory keys approval checks and is handed to side-effecting
	// tools. Approvals are only valid for the exact directory they name.
	WorkingDirectory string

	// Concurrency bounds parallel execution in ExecuteBatch.
	// Defaults to DefaultBatchConcurrency.
	Concurrency int

	// Logger receives executor and per-call diagnostics.
	Logger logging.Logger

	// OnMemoryAppend is invoked after the executor appends an approval
	// request or completion entry to an agent's memory, letting the caller
	// persist the entry. Optional.
	OnMemoryAppend func(agentID string, entry core.MemoryEntry)
}

// Executor routes function calls to registered tools and enforces the
// approval protocol. It is the only component that reads or writes approval
// state: callers never consult approval records directly.
//
// For a tool that requires approval the executor re-derives the approval
// state from the agent's memory on every call. With no grant on record it
// appends a request entry and reports ErrApprovalPending; with a denial it
// reports ErrApprovalDenied; with a grant it runs the tool and appends a
// completion entry, which is what consumes a single-use grant.
type Executor struct {
	opts ExecutorOptions

	mu    sync.RWMutex
	tools map[string]Tool

	// Serializes check-run-record cycles so concurrent calls cannot both
	// spend the same single-use grant.
	approvalMu sync.Mutex
}

// NewExecutor constructs an Executor.
func NewExecutor(optFns ...func(*ExecutorOptions)) *Executor {
	opts := ExecutorOptions{
		Concurrency: DefaultBatchConcurrency,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultBatchConcurrency
	}
	return &Executor{
		opts:  opts,
		tools: map[string]Tool{},
	}
}

// Register adds a tool under its name. Registering a second tool with the
// same name is an error.
func (e *Executor) Register(t Tool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.tools[t.Name()]; exists {
		return fmt.Errorf("tool %q already registered", t.Name())
	}
	e.tools[t.Name()] = t
	return nil
}

// Get returns the tool registered under name.
func (e *Executor) Get(name string) (Tool, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.tools[name]
	return t, ok
}

// Tools returns the registered tools sorted by name.
func (e *Executor) Tools() []Tool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Tool, 0, len(e.tools))
	for _, t := range e.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Call identifies one tool invocation requested by a model response.
type Call struct {
	// ID correlates the request, any approval records and the result.
	// Assigned when empty.
	ID string

	// Name of the registered tool to invoke.
	Name string

	// Args as decoded from the model's function call.
	Args map[string]any
}

// Result pairs one batch call with its outcome.
type Result struct {
	ID    string
	Name  string
	Value any
	Err   error
}

// Execute runs a single call against the invoking agent, applying the
// approval gate when the tool demands it.
func (e *Executor) Execute(ctx context.Context, agent *core.Agent, call Call) (any, error) {
	t, ok := e.Get(call.Name)
	if !ok {
		return nil, NewToolError(call.Name, "no such tool registered", CodeUnknown)
	}
	if call.ID == "" {
		call.ID = core.NewID()
	}

	if !t.RequiresApproval() {
		return e.run(ctx, agent, t, call)
	}

	e.approvalMu.Lock()
	defer e.approvalMu.Unlock()

	req := approval.Request{
		ToolName:         call.Name,
		ToolArgs:         call.Args,
		WorkingDirectory: e.opts.WorkingDirectory,
	}
	status := approval.Check(agent.GetMemory(), req, e.opts.Logger)
	switch {
	case status.NeedsApproval:
		e.append(agent, approval.NewRequestEntry(req, call.ID))
		e.opts.Logger.Info("tool.approval.pending",
			"tool", call.Name, "agent_id", agent.ID, "fc_id", call.ID)
		return nil, fmt.Errorf("%s: %w", call.Name, ErrApprovalPending)
	case !status.CanExecute:
		e.opts.Logger.Info("tool.approval.denied",
			"tool", call.Name, "agent_id", agent.ID, "fc_id", call.ID)
		return nil, fmt.Errorf("%s: %w", call.Name, ErrApprovalDenied)
	}

	result, err := e.run(ctx, agent, t, call)

	// Record the execution so single-use grants are consumed. Validation and
	// schema failures never reached the tool, so they leave the grant intact.
	if consumesGrant(err) {
		outcome := result
		if err != nil {
			outcome = err.Error()
		}
		entry, cerr := approval.NewCompletionEntry(call.ID, req, outcome)
		if cerr != nil {
			e.opts.Logger.Warn("tool.approval.completion_failed",
				"tool", call.Name, "fc_id", call.ID, "error", cerr.Error())
		} else {
			e.append(agent, entry)
		}
	}

	return result, err
}

// ExecuteBatch runs the calls with bounded parallelism, one Result per call
// in input order. Individual failures land in their Result; the returned
// error reflects only context cancellation.
func (e *Executor) ExecuteBatch(ctx context.Context, agent *core.Agent, calls []Call) ([]Result, error) {
	batch := make([]Call, len(calls))
	copy(batch, calls)
	for i := range batch {
		if batch[i].ID == "" {
			batch[i].ID = core.NewID()
		}
	}

	results := make([]Result, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i := range batch {
		g.Go(func() error {
			call := batch[i]
			if err := gctx.Err(); err != nil {
				results[i] = Result{ID: call.ID, Name: call.Name, Err: err}
				return nil
			}
			v, err := e.Execute(gctx, agent, call)
			results[i] = Result{ID: call.ID, Name: call.Name, Value: v, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results, ctx.Err()
}

// run builds the invocation context and calls the tool, converting panics
// into execution errors so one misbehaving tool cannot take down the caller.
func (e *Executor) run(ctx context.Context, agent *core.Agent, t Tool, call Call) (result any, err error) {
	tc := NewContext(ctx, call.ID, func(o *ContextOptions) {
		o.WorldID = e.opts.WorldID
		o.AgentID = agent.ID
		o.AgentName = agent.Name
		o.WorkingDirectory = e.opts.WorkingDirectory
		o.Logger = e.opts.Logger
	})

	defer func() {
		if r := recover(); r != nil {
			e.opts.Logger.Error("tool.call.panic", "tool", t.Name(), "fc_id", call.ID, "panic", fmt.Sprintf("%v", r))
			result = nil
			err = NewToolError(t.Name(), fmt.Sprintf("panic: %v", r), CodeExecution)
		}
	}()

	return t.Call(tc, call.Args)
}

func (e *Executor) append(agent *core.Agent, entry core.MemoryEntry) {
	agent.AppendMemory(entry)
	if e.opts.OnMemoryAppend != nil {
		e.opts.OnMemoryAppend(agent.ID, entry)
	}
}

// consumesGrant reports whether an execution outcome spends a single-use
// approval. Failures that happen before the tool runs do not.
func consumesGrant(err error) bool {
	if err == nil {
		return true
	}
	var te *ToolError
	if errors.As(err, &te) {
		switch te.Code {
		case CodeValidation, CodeSchema, CodeUnknown:
			return false
		}
	}
	return true
}
