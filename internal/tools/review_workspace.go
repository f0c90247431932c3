package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"babylon/internal/toolkit"
)

const reviewTestTimeout = 45 * time.Second

type reviewWorkspace struct{}

// NewReviewWorkspace returns the review_workspace tool.
func NewReviewWorkspace() toolkit.ToolExecutor { return &reviewWorkspace{} }

func (t *reviewWorkspace) Definition() toolkit.ToolDefinition {
	return toolkit.ToolDefinition{
		Name:        "review_workspace",
		Description: "Produce a one-shot Markdown summary of working-tree status, diff stat, full diff, and test output.",
		Parameters: toolkit.ParameterSchema{
			Type: "object",
			Properties: map[string]toolkit.Property{
				"testCommand": {Type: "string", Description: "Command to run the test suite; default 'npm test', empty string skips it"},
			},
		},
	}
}

func (t *reviewWorkspace) Execute(ctx context.Context, tc toolkit.ToolContext, call toolkit.ToolCall) (*toolkit.ToolResult, error) {
	testCommand := "npm test"
	if v, ok := call.Arguments["testCommand"]; ok {
		testCommand, _ = v.(string)
	}

	status, err := runShell(ctx, "git status --short", tc.WorkingDir, shellTimeout)
	if err != nil {
		return toolkit.ErrorResult("review_workspace: %v", err), nil
	}
	diffStat, err := runShell(ctx, "git diff --stat", tc.WorkingDir, shellTimeout)
	if err != nil {
		return toolkit.ErrorResult("review_workspace: %v", err), nil
	}
	diffBlock, err := t.renderDiff(ctx, tc.WorkingDir)
	if err != nil {
		return toolkit.ErrorResult("review_workspace: %v", err), nil
	}

	var sections []string
	sections = append(sections, "## Working tree status\n```\n"+status.Content+"\n```")
	sections = append(sections, "## Diff stat\n```\n"+diffStat.Content+"\n```")
	sections = append(sections, "## Diff\n```diff\n"+toolkit.Truncate(diffBlock, toolkit.CapDiffBlock)+"\n```")

	if testCommand != "" {
		testResult, err := runShell(ctx, testCommand, tc.WorkingDir, reviewTestTimeout)
		if err != nil {
			return toolkit.ErrorResult("review_workspace: %v", err), nil
		}
		label := "passed"
		if testResult.IsError {
			label = "failed"
		}
		sections = append(sections, fmt.Sprintf("## Tests (%s)\n```\n%s\n```", label, toolkit.TruncateTail(testResult.Content, toolkit.CapTestOutput)))
	} else {
		sections = append(sections, "## Tests\nskipped")
	}

	content := ""
	for i, s := range sections {
		if i > 0 {
			content += "\n\n"
		}
		content += s
	}

	return &toolkit.ToolResult{Content: content}, nil
}

// renderDiff lists files git considers changed (tracked or untracked) and
// renders each one's content diff with diffmatchpatch rather than shelling
// out to git diff a second time: DiffCleanupSemantic gives a tighter hunk
// than git's own myers diff for prose-like file content, and PatchToText
// gets us a familiar unified-diff block to embed per file.
func (t *reviewWorkspace) renderDiff(ctx context.Context, dir string) (string, error) {
	names, err := runShell(ctx, "git diff --name-only; git ls-files --others --exclude-standard", dir, shellTimeout)
	if err != nil {
		return "", err
	}

	dmp := diffmatchpatch.New()
	var b strings.Builder
	for _, name := range strings.Split(strings.TrimSpace(names.Content), "\n") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		before, _ := runShell(ctx, fmt.Sprintf("git show HEAD:%q 2>/dev/null || true", name), dir, shellTimeout)
		after, readErr := os.ReadFile(filepath.Join(dir, name))
		afterText := ""
		if readErr == nil {
			afterText = string(after)
		}
		if before.Content == afterText {
			continue
		}

		diffs := dmp.DiffMain(before.Content, afterText, false)
		diffs = dmp.DiffCleanupSemantic(diffs)
		patches := dmp.PatchMake(before.Content, diffs)

		fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n", name, name)
		b.WriteString(dmp.PatchToText(patches))
		b.WriteString("\n")
	}

	return b.String(), nil
}
