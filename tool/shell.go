package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ShellToolName is the registered name of the shell command tool.
const ShellToolName = "shell_cmd"

// DefaultShellTimeout bounds a shell command when no timeout is configured.
const DefaultShellTimeout = 30 * time.Second

// ShellResult is the structured outcome handed back to the model.
type ShellResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
}

// ShellToolOptions configures a ShellTool.
type ShellToolOptions struct {
	// Timeout caps each command. Defaults to DefaultShellTimeout.
	Timeout time.Duration

	// Shell is the interpreter invoked with -c. Defaults to /bin/sh.
	Shell string
}

// ShellTool executes a shell command in the invocation's working directory.
// It always requires approval: commands run with the host's privileges, so a
// human grant keyed to the exact command, arguments and directory must be on
// record before anything executes.
//
// A command that runs and exits nonzero is a normal result, not an error;
// the model sees stdout, stderr and the exit code and decides what to do.
type ShellTool struct {
	opts ShellToolOptions
}

var _ Tool = (*ShellTool)(nil)

// NewShellTool constructs a ShellTool.
func NewShellTool(optFns ...func(*ShellToolOptions)) *ShellTool {
	opts := ShellToolOptions{
		Timeout: DefaultShellTimeout,
		Shell:   "/bin/sh",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Shell == "" {
		opts.Shell = "/bin/sh"
	}
	return &ShellTool{opts: opts}
}

// Name returns the registered tool name.
func (t *ShellTool) Name() string { return ShellToolName }

// Description returns the description exposed to models.
func (t *ShellTool) Description() string {
	return "Execute a shell command in the session working directory and return stdout, stderr and the exit code"
}

// Parameters returns the argument schema.
func (t *ShellTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The shell command line to execute",
			},
		},
		"required":             []string{"command"},
		"additionalProperties": false,
	}
}

// RequiresApproval reports that shell commands always need a human grant.
func (t *ShellTool) RequiresApproval() bool { return true }

// Call runs the command through the configured shell.
func (t *ShellTool) Call(tc *Context, args map[string]any) (any, error) {
	command, _ := args["command"].(string)
	if strings.TrimSpace(command) == "" {
		return nil, NewToolError(ShellToolName, "command must be a non-empty string", CodeValidation)
	}

	ctx := tc.Context()
	if t.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, t.opts.Shell, "-c", command)
	if wd := tc.WorkingDirectory(); wd != "" {
		cmd.Dir = wd
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result := &ShellResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		if ctx.Err() == context.DeadlineExceeded {
			return nil, NewToolError(ShellToolName,
				fmt.Sprintf("command timed out after %s", t.opts.Timeout), CodeExecution)
		}
		result.ExitCode = exitErr.ExitCode()
	default:
		return nil, NewToolError(ShellToolName,
			fmt.Sprintf("start command: %v", err), CodeExecution)
	}

	tc.Logger().Debug("tool.shell.done",
		"exit_code", result.ExitCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"fc_id", tc.FunctionCallID())

	return result, nil
}
