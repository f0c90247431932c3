package tools

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"babylon/internal/toolkit"
)

func testContext(t *testing.T, scope ...string) toolkit.ToolContext {
	dir := t.TempDir()
	return toolkit.ToolContext{TaskID: "t1", AgentID: "executor", WorkingDir: dir, FileScope: scope}
}

func TestReadFileReturnsFullContentByDefault(t *testing.T) {
	tc := testContext(t)
	path := filepath.Join(tc.WorkingDir, "a.txt")
	if err := os.WriteFile(path, []byte("line1\nline2\nline3"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := NewReadFile().Execute(context.Background(), tc, toolkit.ToolCall{
		Name: "read_file", Arguments: map[string]any{"path": "a.txt"},
	})
	if err != nil || res.IsError {
		t.Fatalf("unexpected error: %v %v", err, res)
	}
	if res.Content != "line1\nline2\nline3" {
		t.Fatalf("got %q", res.Content)
	}
}

func TestReadFileRangeSlicesLines(t *testing.T) {
	tc := testContext(t)
	path := filepath.Join(tc.WorkingDir, "a.txt")
	os.WriteFile(path, []byte("l1\nl2\nl3\nl4"), 0o644)

	res, err := NewReadFile().Execute(context.Background(), tc, toolkit.ToolCall{
		Arguments: map[string]any{"path": "a.txt", "startLine": 2, "endLine": 3},
	})
	if err != nil || res.IsError {
		t.Fatalf("unexpected error: %v %v", err, res)
	}
	if res.Content != "[Lines 2-3]\nl2\nl3" {
		t.Fatalf("got %q", res.Content)
	}
}

func TestReadFileRejectsPathEscape(t *testing.T) {
	tc := testContext(t)
	res, _ := NewReadFile().Execute(context.Background(), tc, toolkit.ToolCall{
		Arguments: map[string]any{"path": "../outside.txt"},
	})
	if !res.IsError {
		t.Fatalf("expected isError for path escape")
	}
}

func TestWriteFileWarnsButWritesOutsideScope(t *testing.T) {
	tc := testContext(t, "allowed/")
	res, err := NewWriteFile(nil).Execute(context.Background(), tc, toolkit.ToolCall{
		Arguments: map[string]any{"path": "other/file.txt", "content": "hi"},
	})
	if err != nil || res.IsError {
		t.Fatalf("unexpected error: %v %v", err, res)
	}
	data, err := os.ReadFile(filepath.Join(tc.WorkingDir, "other/file.txt"))
	if err != nil {
		t.Fatalf("file was not written: %v", err)
	}
	if string(data) != "hi" {
		t.Fatalf("got %q", data)
	}
}

func TestListDirectorySkipsReservedNames(t *testing.T) {
	tc := testContext(t)
	os.MkdirAll(filepath.Join(tc.WorkingDir, "node_modules"), 0o755)
	os.MkdirAll(filepath.Join(tc.WorkingDir, "src"), 0o755)

	res, err := NewListDirectory().Execute(context.Background(), tc, toolkit.ToolCall{Arguments: map[string]any{}})
	if err != nil || res.IsError {
		t.Fatalf("unexpected error: %v %v", err, res)
	}
	if containsLine(res.Content, "node_modules") {
		t.Fatalf("expected node_modules to be skipped, got %q", res.Content)
	}
	if !containsLine(res.Content, "src") {
		t.Fatalf("expected src entry, got %q", res.Content)
	}
}

func containsLine(haystack, needle string) bool {
	for _, line := range splitLines(haystack) {
		if line == "d "+needle || line == "f "+needle {
			return true
		}
	}
	return false
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}

func TestRunTerminalCommandBlocksDangerousPatterns(t *testing.T) {
	tc := testContext(t)
	res, err := NewRunTerminalCommand().Execute(context.Background(), tc, toolkit.ToolCall{
		Arguments: map[string]any{"command": "rm -rf /"},
	})
	if err != nil || !res.IsError {
		t.Fatalf("expected blocked command to be isError, got %v %v", err, res)
	}
}

func TestRunTerminalCommandRejectsNonTerminating(t *testing.T) {
	tc := testContext(t)
	res, err := NewRunTerminalCommand().Execute(context.Background(), tc, toolkit.ToolCall{
		Arguments: map[string]any{"command": "npm run dev"},
	})
	if err != nil || !res.IsError {
		t.Fatalf("expected non-terminating command to be isError, got %v %v", err, res)
	}
}

func TestRunTerminalCommandExecutesSimpleCommand(t *testing.T) {
	tc := testContext(t)
	res, err := NewRunTerminalCommand().Execute(context.Background(), tc, toolkit.ToolCall{
		Arguments: map[string]any{"command": "echo hello"},
	})
	if err != nil || res.IsError {
		t.Fatalf("unexpected error: %v %v", err, res)
	}
	if res.Content != "hello\n" && res.Content != "hello" {
		t.Fatalf("got %q", res.Content)
	}
}

func TestCompleteTaskEchoesArgumentsAsJSON(t *testing.T) {
	tc := testContext(t)
	res, err := NewCompleteTask().Execute(context.Background(), tc, toolkit.ToolCall{
		Arguments: map[string]any{"status": "completed", "summary": "done", "content": "result"},
	})
	if err != nil || res.IsError {
		t.Fatalf("unexpected error: %v %v", err, res)
	}
	if res.Metadata["status"] != "completed" {
		t.Fatalf("expected metadata to echo arguments, got %v", res.Metadata)
	}
}

func TestInvokeCursorCLIDisabledByConfig(t *testing.T) {
	tc := testContext(t)
	res, err := NewInvokeCursorCLI(false).Execute(context.Background(), tc, toolkit.ToolCall{
		Arguments: map[string]any{"prompt": "do something"},
	})
	if err != nil || !res.IsError {
		t.Fatalf("expected disabled tool to be isError, got %v %v", err, res)
	}
}

func TestReviewWorkspaceRendersDiffAndSkipsTests(t *testing.T) {
	tc := testContext(t)
	runGit := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = tc.WorkingDir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v (%s)", args, err, out)
		}
	}
	runGit("init", "-q")
	runGit("config", "user.email", "test@example.com")
	runGit("config", "user.name", "test")
	os.WriteFile(filepath.Join(tc.WorkingDir, "a.txt"), []byte("line one\n"), 0o644)
	runGit("add", "a.txt")
	runGit("commit", "-q", "-m", "initial")
	os.WriteFile(filepath.Join(tc.WorkingDir, "a.txt"), []byte("line one changed\n"), 0o644)

	res, err := NewReviewWorkspace().Execute(context.Background(), tc, toolkit.ToolCall{
		Arguments: map[string]any{"testCommand": ""},
	})
	if err != nil || res.IsError {
		t.Fatalf("unexpected error: %v %v", err, res)
	}
	if !strings.Contains(res.Content, "a.txt") {
		t.Fatalf("expected diff section to mention a.txt, got %q", res.Content)
	}
	if !strings.Contains(res.Content, "## Tests\nskipped") {
		t.Fatalf("expected tests section to be skipped, got %q", res.Content)
	}
}

func TestAllowedForRoleMatchesFixedMapping(t *testing.T) {
	stewardTools := AllowedForRole(RoleSteward)
	if len(stewardTools) != 1 || !stewardTools["complete_task"] {
		t.Fatalf("steward should only have complete_task, got %v", stewardTools)
	}
	executorTools := AllowedForRole(RoleExecutor)
	if !executorTools["write_file"] || !executorTools["git_operations"] {
		t.Fatalf("executor should have write_file and git_operations, got %v", executorTools)
	}
	if executorTools["review_workspace"] {
		t.Fatalf("executor should not have review_workspace")
	}
}
