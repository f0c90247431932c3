package tools

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"babylon/internal/toolkit"
)

const shellTimeout = 120 * time.Second

type runTerminalCommand struct{}

// NewRunTerminalCommand returns the run_terminal_command tool.
func NewRunTerminalCommand() toolkit.ToolExecutor { return &runTerminalCommand{} }

func (t *runTerminalCommand) Definition() toolkit.ToolDefinition {
	return toolkit.ToolDefinition{
		Name:        "run_terminal_command",
		Description: "Run a non-interactive shell command and return its combined output and exit code.",
		Parameters: toolkit.ParameterSchema{
			Type: "object",
			Properties: map[string]toolkit.Property{
				"command": {Type: "string", Description: "Shell command to execute"},
				"cwd":     {Type: "string", Description: "Working directory relative to the task root"},
			},
			Required: []string{"command"},
		},
	}
}

func (t *runTerminalCommand) Execute(ctx context.Context, tc toolkit.ToolContext, call toolkit.ToolCall) (*toolkit.ToolResult, error) {
	command, _ := call.Arguments["command"].(string)
	if command == "" {
		return toolkit.ErrorResult("missing required argument 'command'"), nil
	}
	if matchAny(blockedCommandPatterns, command) {
		return toolkit.ErrorResult("command blocked: %q matches a disallowed pattern", command), nil
	}
	if matchAny(nonTerminatingCommandPatterns, command) {
		return toolkit.ErrorResult("command rejected: %q looks like a long-running or watch process that would never return; run it out-of-band instead", command), nil
	}

	cwd := tc.WorkingDir
	if rel, _ := call.Arguments["cwd"].(string); rel != "" {
		abs, err := toolkit.ResolvePath(tc.WorkingDir, rel)
		if err != nil {
			return toolkit.ErrorResult("cwd %s: %v", rel, err), nil
		}
		cwd = abs
	}

	return runShell(ctx, command, cwd, shellTimeout)
}

func runShell(ctx context.Context, command, dir string, timeout time.Duration) (*toolkit.ToolResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "bash", "-c", command)
	cmd.Dir = dir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	output := out.String()

	exitCode := 0
	isError := false
	if err != nil {
		isError = true
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
		if runCtx.Err() == context.DeadlineExceeded {
			output += "\n[command timed out after " + timeout.String() + "]"
		}
	}

	result := toolkit.Truncate(output, toolkit.CapGeneralOutput)
	if looksInteractive(output) {
		result += "\n[hint: this command appears to be waiting on interactive input; retry with piped input or a non-interactive/-y flag]"
	}

	return &toolkit.ToolResult{
		Content: result,
		IsError: isError,
		Metadata: map[string]any{
			"exitCode": exitCode,
		},
	}, nil
}
