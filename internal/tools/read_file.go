package tools

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"babylon/internal/toolkit"
)

type readFile struct{}

// NewReadFile returns the read_file tool.
func NewReadFile() toolkit.ToolExecutor { return &readFile{} }

func (t *readFile) Definition() toolkit.ToolDefinition {
	return toolkit.ToolDefinition{
		Name:        "read_file",
		Description: "Read a file's contents, optionally restricted to a 1-based inclusive line range.",
		Parameters: toolkit.ParameterSchema{
			Type: "object",
			Properties: map[string]toolkit.Property{
				"path":      {Type: "string", Description: "File path relative to the working directory"},
				"startLine": {Type: "integer", Description: "1-based inclusive start line"},
				"endLine":   {Type: "integer", Description: "1-based inclusive end line"},
			},
			Required: []string{"path"},
		},
	}
}

func (t *readFile) Execute(ctx context.Context, tc toolkit.ToolContext, call toolkit.ToolCall) (*toolkit.ToolResult, error) {
	path, _ := call.Arguments["path"].(string)
	if path == "" {
		return toolkit.ErrorResult("missing required argument 'path'"), nil
	}

	abs, err := toolkit.ResolvePath(tc.WorkingDir, path)
	if err != nil {
		return toolkit.ErrorResult("%s: %v", path, err), nil
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return toolkit.ErrorResult("failed to read %s: %v", path, err), nil
	}
	content := string(data)

	start, hasStart := intArg(call.Arguments["startLine"])
	end, hasEnd := intArg(call.Arguments["endLine"])
	if !hasStart && !hasEnd {
		return &toolkit.ToolResult{Content: toolkit.Truncate(content, toolkit.CapGeneralOutput)}, nil
	}

	lines := strings.Split(content, "\n")
	if !hasStart {
		start = 1
	}
	if !hasEnd {
		end = len(lines)
	}
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return toolkit.ErrorResult("startLine %d is after endLine %d", start, end), nil
	}

	slice := strings.Join(lines[start-1:end], "\n")
	result := fmt.Sprintf("[Lines %d-%d]\n%s", start, end, slice)
	return &toolkit.ToolResult{Content: toolkit.Truncate(result, toolkit.CapGeneralOutput)}, nil
}

func intArg(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		if n == "" {
			return 0, false
		}
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
