package tools

import (
	"context"
	"encoding/json"

	"babylon/internal/toolkit"
)

type completeTask struct{}

// NewCompleteTask returns the complete_task tool. It does no validation of
// its own — the agent runtime is the one that checks status/summary/content
// and decides whether the turn loop may actually terminate.
func NewCompleteTask() toolkit.ToolExecutor { return &completeTask{} }

func (t *completeTask) Definition() toolkit.ToolDefinition {
	return toolkit.ToolDefinition{
		Name:        "complete_task",
		Description: "Signal that the current turn loop should terminate with the given status and result.",
		Parameters: toolkit.ParameterSchema{
			Type: "object",
			Properties: map[string]toolkit.Property{
				"status":        {Type: "string", Description: "Outcome of the task", Enum: []any{"completed", "failed", "needs_review"}},
				"summary":       {Type: "string", Description: "Short summary of what happened"},
				"content":       {Type: "string", Description: "Full result content"},
				"handoff_notes": {Type: "string", Description: "Notes for whoever picks up next"},
				"review_notes":  {Type: "string", Description: "Notes for a reviewer"},
				"metadata":      {Type: "object", Description: "Arbitrary structured metadata"},
			},
			Required: []string{"status", "summary", "content"},
		},
	}
}

func (t *completeTask) Execute(ctx context.Context, tc toolkit.ToolContext, call toolkit.ToolCall) (*toolkit.ToolResult, error) {
	encoded, err := json.Marshal(call.Arguments)
	if err != nil {
		return toolkit.ErrorResult("failed to encode complete_task arguments: %v", err), nil
	}
	return &toolkit.ToolResult{Content: string(encoded), Metadata: call.Arguments}, nil
}
