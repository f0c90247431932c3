package tools

import (
	"context"
	"fmt"
	"strings"

	"babylon/internal/toolkit"
)

var allowedGitOperations = map[string]bool{
	"status": true, "branch": true, "checkout": true, "add": true,
	"commit": true, "diff": true, "log": true, "merge": true,
}

type gitOperations struct{}

// NewGitOperations returns the git_operations tool.
func NewGitOperations() toolkit.ToolExecutor { return &gitOperations{} }

func (t *gitOperations) Definition() toolkit.ToolDefinition {
	return toolkit.ToolDefinition{
		Name:        "git_operations",
		Description: "Run a constrained git subcommand (status, branch, checkout, add, commit, diff, log, merge) in the working directory.",
		Parameters: toolkit.ParameterSchema{
			Type: "object",
			Properties: map[string]toolkit.Property{
				"operation": {Type: "string", Description: "git subcommand", Enum: []any{"status", "branch", "checkout", "add", "commit", "diff", "log", "merge"}},
				"args":      {Type: "string", Description: "additional arguments appended verbatim"},
			},
			Required: []string{"operation"},
		},
	}
}

func (t *gitOperations) Execute(ctx context.Context, tc toolkit.ToolContext, call toolkit.ToolCall) (*toolkit.ToolResult, error) {
	op, _ := call.Arguments["operation"].(string)
	if !allowedGitOperations[op] {
		return toolkit.ErrorResult("unsupported git operation %q", op), nil
	}
	args, _ := call.Arguments["args"].(string)

	command := fmt.Sprintf("git %s %s", op, args)
	if matchAny(blockedCommandPatterns, command) {
		return toolkit.ErrorResult("command blocked: %q matches a disallowed pattern", strings.TrimSpace(command)), nil
	}

	return runShell(ctx, command, tc.WorkingDir, shellTimeout)
}
