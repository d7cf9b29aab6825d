// Package tool implements the function calling subsystem that lets agents
// invoke structured capabilities (shell commands, computations, side effects)
// with schema validated arguments, consistent error handling and an approval
// gate for anything dangerous.
package tool

import "fmt"

// Tool defines the interface for extending agent capabilities with external
// functions.
//
// Tools are registered with an Executor and invoked by name when a model
// response carries a function call. Every tool declares a JSON schema for its
// arguments and whether invoking it requires an explicit human approval on
// record before it may run.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be thread-safe if used concurrently
type Tool interface {
	// Name returns the unique identifier for this tool.
	// Names should be descriptive and follow function naming conventions (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this tool does.
	// This description is provided to the LLM to help it understand when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	// This schema is used for parameter validation and LLM function calling.
	Parameters() map[string]any

	// RequiresApproval reports whether the executor must find a human approval
	// on record before running this tool.
	RequiresApproval() bool

	// Call executes the tool with structured arguments and a Context carrying
	// the invoking agent's identity, working directory and logger. Arguments
	// have already been validated against the tool's schema.
	Call(tc *Context, args map[string]any) (any, error)
}

// Error codes attached to ToolError for uniform downstream handling.
const (
	CodeValidation = "VALIDATION_ERROR" // arguments rejected by the schema
	CodeExecution  = "EXECUTION_ERROR"  // tool ran and failed
	CodeSchema     = "SCHEMA_ERROR"     // the tool's own schema does not compile
	CodeUnknown    = "UNKNOWN_TOOL"     // no tool registered under the name
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
