package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"babylon/internal/toolkit"
)

type readFiles struct{}

// NewReadFiles returns the read_files tool.
func NewReadFiles() toolkit.ToolExecutor { return &readFiles{} }

func (t *readFiles) Definition() toolkit.ToolDefinition {
	return toolkit.ToolDefinition{
		Name:        "read_files",
		Description: "Read up to 10 files in a single call, each block capped independently.",
		Parameters: toolkit.ParameterSchema{
			Type: "object",
			Properties: map[string]toolkit.Property{
				"paths": {Type: "array", Description: "1 to 10 file paths relative to the working directory"},
			},
			Required: []string{"paths"},
		},
	}
}

func (t *readFiles) Execute(ctx context.Context, tc toolkit.ToolContext, call toolkit.ToolCall) (*toolkit.ToolResult, error) {
	raw, ok := call.Arguments["paths"].([]any)
	if !ok || len(raw) == 0 {
		return toolkit.ErrorResult("missing required argument 'paths'"), nil
	}
	if len(raw) > 10 {
		raw = raw[:10]
	}

	var blocks []string
	for _, item := range raw {
		path, _ := item.(string)
		if path == "" {
			blocks = append(blocks, "--- (invalid path) ---\nerror: empty path")
			continue
		}
		abs, err := toolkit.ResolvePath(tc.WorkingDir, path)
		if err != nil {
			blocks = append(blocks, fmt.Sprintf("--- %s ---\nerror: %v", path, err))
			continue
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			blocks = append(blocks, fmt.Sprintf("--- %s ---\nerror: %v", path, err))
			continue
		}
		content := toolkit.Truncate(string(data), toolkit.CapReadFilesTail)
		blocks = append(blocks, fmt.Sprintf("--- %s ---\n%s", path, content))
	}

	joined := strings.Join(blocks, "\n\n")
	return &toolkit.ToolResult{Content: toolkit.Truncate(joined, toolkit.CapReadFilesAll)}, nil
}
