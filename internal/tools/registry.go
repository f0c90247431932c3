package tools

import (
	"babylon/internal/logging"
	"babylon/internal/toolkit"
)

// Options controls which optional tools NewRegistry wires in.
type Options struct {
	CursorCLIEnabled bool
	Logger           logging.Logger
}

// NewRegistry builds the full tool registry used by the agent runtime. All
// tools are registered regardless of role; role-to-tool filtering happens in
// the agent runtime via AllowedForRole.
func NewRegistry(opts Options) toolkit.Registry {
	reg := toolkit.NewRegistry()
	all := []toolkit.ToolExecutor{
		NewReadFile(),
		NewReadFiles(),
		NewWriteFile(opts.Logger),
		NewListDirectory(),
		NewSearchInFiles(),
		NewRunTerminalCommand(),
		NewGitOperations(),
		NewReviewWorkspace(),
		NewInvokeCursorCLI(opts.CursorCLIEnabled),
		NewCompleteTask(),
	}
	for _, tool := range all {
		_ = reg.Register(tool)
	}
	return reg
}

// Role names used by AllowedForRole, matching the fixed role->tool mapping.
const (
	RoleAnalyzer    = "analyzer"
	RolePlanner     = "planner"
	RoleExecutor    = "executor"
	RoleReviewer    = "reviewer"
	RoleCoordinator = "coordinator"
	RoleSteward     = "steward"
	RoleOracle      = "oracle"
)

// AllowedForRole returns the fixed set of tool names a role may call.
func AllowedForRole(role string) map[string]bool {
	switch role {
	case RoleAnalyzer, RolePlanner:
		return set("read_file", "read_files", "list_directory", "search_in_files", "run_terminal_command", "complete_task")
	case RoleExecutor:
		return set("read_file", "read_files", "write_file", "list_directory", "run_terminal_command", "git_operations", "invoke_cursor_cli", "complete_task")
	case RoleReviewer:
		return set("review_workspace", "read_file", "read_files", "list_directory", "search_in_files", "run_terminal_command", "git_operations", "complete_task")
	case RoleCoordinator:
		return set("read_file", "read_files", "write_file", "list_directory", "run_terminal_command", "git_operations", "complete_task")
	case RoleSteward, RoleOracle:
		return set("complete_task")
	default:
		return set("complete_task")
	}
}

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}
