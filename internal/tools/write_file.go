package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"babylon/internal/logging"
	"babylon/internal/toolkit"
)

type writeFile struct {
	logger logging.Logger
}

// NewWriteFile returns the write_file tool. logger receives a scope-warning
// whenever a write lands outside the tool context's declared file scope;
// the write still proceeds (warn-but-allow).
func NewWriteFile(logger logging.Logger) toolkit.ToolExecutor {
	return &writeFile{logger: logging.OrNop(logger)}
}

func (t *writeFile) Definition() toolkit.ToolDefinition {
	return toolkit.ToolDefinition{
		Name:        "write_file",
		Description: "Create or overwrite a file with the given content.",
		Parameters: toolkit.ParameterSchema{
			Type: "object",
			Properties: map[string]toolkit.Property{
				"path":    {Type: "string", Description: "File path relative to the working directory"},
				"content": {Type: "string", Description: "File content to write"},
			},
			Required: []string{"path", "content"},
		},
	}
}

func (t *writeFile) Execute(ctx context.Context, tc toolkit.ToolContext, call toolkit.ToolCall) (*toolkit.ToolResult, error) {
	path, _ := call.Arguments["path"].(string)
	content, _ := call.Arguments["content"].(string)
	if path == "" {
		return toolkit.ErrorResult("missing required argument 'path'"), nil
	}

	abs, err := toolkit.ResolvePath(tc.WorkingDir, path)
	if err != nil {
		return toolkit.ErrorResult("%s: %v", path, err), nil
	}

	if !inScope(path, tc.FileScope) {
		t.logger.Warn("write_file: %s is outside the declared file scope for agent %s, writing anyway", path, tc.AgentID)
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return toolkit.ErrorResult("failed to create parent directories for %s: %v", path, err), nil
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return toolkit.ErrorResult("failed to write %s: %v", path, err), nil
	}

	return &toolkit.ToolResult{Content: "wrote " + path, Metadata: map[string]any{"bytes": len(content)}}, nil
}

func inScope(path string, scope []string) bool {
	if len(scope) == 0 {
		return true
	}
	clean := filepath.ToSlash(filepath.Clean(path))
	for _, prefix := range scope {
		p := filepath.ToSlash(filepath.Clean(prefix))
		if clean == p || strings.HasPrefix(clean, p+"/") {
			return true
		}
	}
	return false
}
