package domain

import (
	"babylon/internal/events"
	"babylon/internal/toolkit"
)

// AgentStatus is the fixed outcome set an agent result can carry.
type AgentStatus string

const (
	AgentCompleted   AgentStatus = "completed"
	AgentFailed      AgentStatus = "failed"
	AgentNeedsReview AgentStatus = "needs_review"
)

// Message is one turn of the conversation the agent runtime drives: a
// system/user/assistant/tool message, optionally carrying tool calls (on an
// assistant message) or tool results (on a tool message).
type Message struct {
	Role        string
	Content     string
	ToolCalls   []toolkit.ToolCall
	ToolResults []ToolResultEntry
}

// ToolResultEntry is one tool's outcome appended after an assistant turn
// requested it.
type ToolResultEntry struct {
	CallID  string
	Content string
	IsError bool
}

// AgentResult is what an agent runtime returns once its turn loop
// finalizes, successfully or not.
type AgentResult struct {
	AgentID  string
	Role     string
	Status   AgentStatus
	Artifact Artifact
	Usage    events.TokenUsage
	Log      []Message
}
