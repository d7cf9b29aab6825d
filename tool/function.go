package tool

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/yysun/agent-world-sub006/internal/util"
)

// FunctionTool is a generic adapter that exposes a plain Go function as a tool.
//
// Responsibilities:
//   - Holds a JSON Schema parameter specification, compiled once at construction
//   - Validates model supplied arguments against that schema before execution
//   - Invokes the wrapped function with a *Context giving access to the calling
//     agent's identity, working directory and logger
//   - Normalizes error handling so callers receive *ToolError with consistent codes:
//     VALIDATION_ERROR  -> schema / argument mismatch
//     EXECUTION_ERROR   -> underlying function returned an error (non-ToolError)
//     (custom codes preserved if the function returns *ToolError directly)
//
// Concurrency:
//
//	A FunctionTool has no internal mutable state after construction and is safe
//	for concurrent use by multiple goroutines.
//
// Returned result:
//
//	The returned value can be any Go type that is JSON-serializable by the
//	higher layer. If more structure is required, implement Tool directly.
type FunctionTool struct {
	// Tool identifier (snake_case recommended)
	name string
	// Human-readable description shown to models
	description string
	// JSON schema describing accepted arguments
	parameters map[string]any
	// Compiled form of parameters; nil when the schema itself is broken
	schema *jsonschema.Schema
	// Set when the declared schema failed to compile
	schemaErr error
	// Whether the executor must find a human approval on record first
	requiresApproval bool
	// User supplied implementation
	fn Func
}

// Func is the signature of a wrapped tool implementation.
type Func func(tc *Context, args map[string]any) (any, error)

// FunctionToolOptions configures optional FunctionTool behavior.
type FunctionToolOptions struct {
	// RequiresApproval marks the tool as needing a human approval record
	// before each execution the approval state does not already cover.
	RequiresApproval bool
}

// NewFunctionTool constructs a FunctionTool from explicit schema and function.
//
// Arguments:
//
//	name        - unique tool name (avoid collisions; snake_case suggested)
//	description - concise, imperative description ("Calculate the …")
//	parameters  - JSON Schema map describing the accepted arguments
//	fn          - implementation receiving a Context plus already-validated args
//
// Example:
//
//	sumTool := NewFunctionTool(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    "required": []string{"a", "b"},
//	  },
//	  func(tc *tool.Context, args map[string]any) (any, error) {
//	    return args["a"].(float64) + args["b"].(float64), nil
//	  },
//	)
func NewFunctionTool(name, description string, parameters map[string]any, fn Func, optFns ...func(*FunctionToolOptions)) *FunctionTool {
	opts := FunctionToolOptions{}
	for _, optFn := range optFns {
		optFn(&opts)
	}

	t := &FunctionTool{
		name:             name,
		description:      description,
		parameters:       parameters,
		requiresApproval: opts.RequiresApproval,
		fn:               fn,
	}
	t.schema, t.schemaErr = compileSchema(name, parameters)

	return t
}

// NewFunctionToolFromStruct derives the parameter schema from a struct using
// reflection. It is a convenience for simple argument containers and produces
// a schema equivalent to util.CreateSchema(structType).
//
// Example:
//
//	type SumArgs struct {
//	  A float64 `json:"a" description:"First addend"`
//	  B float64 `json:"b" description:"Second addend"`
//	}
//
//	sumTool := NewFunctionToolFromStruct(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  SumArgs{},
//	  func(tc *tool.Context, args map[string]any) (any, error) {
//	    return args["a"].(float64) + args["b"].(float64), nil
//	  },
//	)
func NewFunctionToolFromStruct(name, description string, structType any, fn Func, optFns ...func(*FunctionToolOptions)) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn, optFns...)
}

// Name returns the unique tool name used in function call declarations and routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// RequiresApproval reports whether executions must be covered by an approval record.
func (t *FunctionTool) RequiresApproval() bool { return t.requiresApproval }

// Call validates the provided args against the declared schema then invokes
// the underlying function. Validation or execution failures are wrapped (or
// passed through) as *ToolError for uniform downstream handling.
//
// Error Semantics:
//
//	*ToolError (returned directly)  -> forwarded unchanged
//	broken declared schema          -> *ToolError{Code: "SCHEMA_ERROR"}
//	validation failure              -> *ToolError{Code: "VALIDATION_ERROR"}
//	other error                     -> *ToolError{Code: "EXECUTION_ERROR"}
func (t *FunctionTool) Call(tc *Context, args map[string]any) (any, error) {
	logger := tc.Logger()
	start := time.Now()

	logger.Debug("tool.call.start", "tool", t.name, "fc_id", tc.FunctionCallID())

	if t.schemaErr != nil {
		logger.Error("tool.call.bad_schema", "tool", t.name, "error", t.schemaErr.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("tool schema does not compile: %v", t.schemaErr),
			Code:    CodeSchema,
		}
	}

	if err := t.validate(args); err != nil {
		logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
		}
	}

	result, err := t.fn(tc, args)
	if err != nil {
		if toolErr, ok := err.(*ToolError); ok { // Already a ToolError -> just log and forward
			logger.Error("tool.call.error", "tool", t.name, "error", toolErr.Message)

			return nil, toolErr
		}

		logger.Error("tool.call.error", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    CodeExecution,
		}
	}

	logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

// validate checks args against the compiled schema. Arguments pass through a
// JSON round trip first so Go integers and typed values compare the way their
// wire form would.
func (t *FunctionTool) validate(args map[string]any) error {
	if t.schema == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return t.schema.Validate(doc)
}

// compileSchema turns a schema map into a compiled draft 2020-12 validator.
// An empty map means "no constraints" and compiles to nil.
func compileSchema(name string, parameters map[string]any) (*jsonschema.Schema, error) {
	if len(parameters) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(parameters)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}

	url := fmt.Sprintf("tool://%s/parameters.json", name)
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(url, strings.NewReader(string(raw))); err != nil {
		return nil, fmt.Errorf("register schema: %w", err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}
