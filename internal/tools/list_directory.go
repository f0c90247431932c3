package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"babylon/internal/toolkit"
)

var listDirectorySkip = map[string]bool{
	"node_modules": true,
	".git":         true,
	".next":        true,
	"dist":         true,
	"build":        true,
	".babylon":     true,
}

type listDirectory struct{}

// NewListDirectory returns the list_directory tool.
func NewListDirectory() toolkit.ToolExecutor { return &listDirectory{} }

func (t *listDirectory) Definition() toolkit.ToolDefinition {
	return toolkit.ToolDefinition{
		Name:        "list_directory",
		Description: "List directory entries, optionally recursing up to maxDepth levels.",
		Parameters: toolkit.ParameterSchema{
			Type: "object",
			Properties: map[string]toolkit.Property{
				"path":     {Type: "string", Description: "Directory path relative to the working directory, default '.'"},
				"maxDepth": {Type: "integer", Description: "Recursion depth, 1 to 5"},
			},
		},
	}
}

func (t *listDirectory) Execute(ctx context.Context, tc toolkit.ToolContext, call toolkit.ToolCall) (*toolkit.ToolResult, error) {
	path, _ := call.Arguments["path"].(string)
	if path == "" {
		path = "."
	}
	maxDepth, ok := intArg(call.Arguments["maxDepth"])
	if !ok || maxDepth < 1 {
		maxDepth = 1
	}
	if maxDepth > 5 {
		maxDepth = 5
	}

	abs, err := toolkit.ResolvePath(tc.WorkingDir, path)
	if err != nil {
		return toolkit.ErrorResult("%s: %v", path, err), nil
	}

	var lines []string
	if err := walkDir(abs, 0, maxDepth, &lines); err != nil {
		return toolkit.ErrorResult("failed to list %s: %v", path, err), nil
	}

	return &toolkit.ToolResult{Content: toolkit.Truncate(strings.Join(lines, "\n"), toolkit.CapListingTree)}, nil
}

func walkDir(dir string, depth, maxDepth int, lines *[]string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	indent := strings.Repeat("  ", depth)
	for _, e := range entries {
		if listDirectorySkip[e.Name()] {
			continue
		}
		kind := "f"
		if e.IsDir() {
			kind = "d"
		}
		*lines = append(*lines, fmt.Sprintf("%s%s %s", indent, kind, e.Name()))
		if e.IsDir() && depth+1 < maxDepth {
			if err := walkDir(filepath.Join(dir, e.Name()), depth+1, maxDepth, lines); err != nil {
				return err
			}
		}
	}
	return nil
}
