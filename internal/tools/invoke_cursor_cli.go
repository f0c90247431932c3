package tools

import (
	"context"
	"fmt"
	"time"

	"babylon/internal/toolkit"
)

const cursorCliTimeout = 300 * time.Second

var cursorCliBinaries = map[string]string{
	"cursor": "cursor-agent",
	"claude": "claude",
}

type invokeCursorCLI struct {
	enabled bool
}

// NewInvokeCursorCLI returns the invoke_cursor_cli tool. When enabled is
// false every call is rejected without touching the shell, matching the
// configuration flag that disables external coding-assistant delegation.
func NewInvokeCursorCLI(enabled bool) toolkit.ToolExecutor {
	return &invokeCursorCLI{enabled: enabled}
}

func (t *invokeCursorCLI) Definition() toolkit.ToolDefinition {
	return toolkit.ToolDefinition{
		Name:        "invoke_cursor_cli",
		Description: "Delegate a prompt to an external coding-assistant CLI (cursor or claude).",
		Parameters: toolkit.ParameterSchema{
			Type: "object",
			Properties: map[string]toolkit.Property{
				"prompt": {Type: "string", Description: "Prompt to hand off to the external assistant"},
				"cli":     {Type: "string", Description: "Which assistant to invoke", Enum: []any{"cursor", "claude"}},
			},
			Required: []string{"prompt"},
		},
	}
}

func (t *invokeCursorCLI) Execute(ctx context.Context, tc toolkit.ToolContext, call toolkit.ToolCall) (*toolkit.ToolResult, error) {
	if !t.enabled {
		return toolkit.ErrorResult("invoke_cursor_cli is disabled by configuration"), nil
	}

	prompt, _ := call.Arguments["prompt"].(string)
	if prompt == "" {
		return toolkit.ErrorResult("missing required argument 'prompt'"), nil
	}
	cli, _ := call.Arguments["cli"].(string)
	if cli == "" {
		cli = "claude"
	}
	bin, ok := cursorCliBinaries[cli]
	if !ok {
		return toolkit.ErrorResult("unsupported cli %q", cli), nil
	}

	command := fmt.Sprintf("%s %q", bin, prompt)
	if matchAny(blockedCommandPatterns, command) {
		return toolkit.ErrorResult("command blocked: matches a disallowed pattern"), nil
	}

	return runShell(ctx, command, tc.WorkingDir, cursorCliTimeout)
}
