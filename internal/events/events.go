// Package events defines the closed set of event variants published on the
// workflow event bus and the bus itself.
package events

import "time"

// Event is implemented by every concrete event variant published on the bus.
type Event interface {
	EventType() string
	Timestamp() time.Time
}

// base embeds the fields common to every event variant.
type base struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
}

func (b base) EventType() string   { return b.Type }
func (b base) Timestamp() time.Time { return b.At }

func newBase(eventType string, ts time.Time) base {
	if ts.IsZero() {
		ts = time.Now()
	}
	return base{Type: eventType, At: ts}
}

// WorkflowStart is emitted exactly once per root task, at the start of Engine.Run.
type WorkflowStart struct {
	base
	TaskID      string
	Description string
}

func NewWorkflowStart(taskID, description string, ts time.Time) *WorkflowStart {
	return &WorkflowStart{base: newBase("workflow:start", ts), TaskID: taskID, Description: description}
}

// WorkflowComplete is emitted exactly once per root task, matching WorkflowStart's TaskID.
type WorkflowComplete struct {
	base
	TaskID   string
	Status   string
	Duration time.Duration
}

func NewWorkflowComplete(taskID, status string, duration time.Duration, ts time.Time) *WorkflowComplete {
	return &WorkflowComplete{base: newBase("workflow:complete", ts), TaskID: taskID, Status: status, Duration: duration}
}

// StepStart is emitted when a role-playing agent is about to run for a task.
type StepStart struct {
	base
	StepID string
	TaskID string
	Role   string
}

func NewStepStart(stepID, taskID, role string, ts time.Time) *StepStart {
	return &StepStart{base: newBase("step:start", ts), StepID: stepID, TaskID: taskID, Role: role}
}

// StepComplete is emitted when a role-playing agent finishes, matching StepStart's StepID and Role.
type StepComplete struct {
	base
	StepID          string
	TaskID          string
	Role            string
	Model           string
	Status          string
	Duration        time.Duration
	Usage           TokenUsage
	CumulativeUsage TokenUsage
}

func NewStepComplete(stepID, taskID, role, model, status string, duration time.Duration, usage, cumulative TokenUsage, ts time.Time) *StepComplete {
	return &StepComplete{
		base: newBase("step:complete", ts), StepID: stepID, TaskID: taskID, Role: role, Model: model,
		Status: status, Duration: duration, Usage: usage, CumulativeUsage: cumulative,
	}
}

// StepRetry is emitted when the execute-review cycle sends a task back to the executor.
type StepRetry struct {
	base
	StepID     string
	TaskID     string
	Attempt    int
	MaxRetries int
	Reason     string
}

func NewStepRetry(stepID, taskID string, attempt, maxRetries int, reason string, ts time.Time) *StepRetry {
	return &StepRetry{base: newBase("step:retry", ts), StepID: stepID, TaskID: taskID, Attempt: attempt, MaxRetries: maxRetries, Reason: reason}
}

// AgentSpawn is emitted when the agent runtime begins driving a role-playing agent.
type AgentSpawn struct {
	base
	AgentID string
	StepID  string
	TaskID  string
	Role    string
}

func NewAgentSpawn(agentID, stepID, taskID, role string, ts time.Time) *AgentSpawn {
	return &AgentSpawn{base: newBase("agent:spawn", ts), AgentID: agentID, StepID: stepID, TaskID: taskID, Role: role}
}

// AgentTurn is emitted at the start of each agent-runtime turn.
type AgentTurn struct {
	base
	AgentID string
	Turn    int
	MaxTurn int
}

func NewAgentTurn(agentID string, turn, maxTurn int, ts time.Time) *AgentTurn {
	return &AgentTurn{base: newBase("agent:turn", ts), AgentID: agentID, Turn: turn, MaxTurn: maxTurn}
}

// AgentToolCall is emitted immediately before a tool is executed, with sanitized arguments.
type AgentToolCall struct {
	base
	AgentID   string
	CallID    string
	ToolName  string
	Arguments map[string]any
}

func NewAgentToolCall(agentID, callID, toolName string, arguments map[string]any, ts time.Time) *AgentToolCall {
	return &AgentToolCall{base: newBase("agent:tool_call", ts), AgentID: agentID, CallID: callID, ToolName: toolName, Arguments: arguments}
}

// AgentToolResult is emitted immediately after a tool finishes.
type AgentToolResult struct {
	base
	AgentID    string
	CallID     string
	ToolName   string
	IsError    bool
	DurationMs int64
}

func NewAgentToolResult(agentID, callID, toolName string, isError bool, durationMs int64, ts time.Time) *AgentToolResult {
	return &AgentToolResult{base: newBase("agent:tool_result", ts), AgentID: agentID, CallID: callID, ToolName: toolName, IsError: isError, DurationMs: durationMs}
}

// AgentContent is emitted when an assistant turn produces non-empty textual content.
type AgentContent struct {
	base
	AgentID string
	Content string
}

func NewAgentContent(agentID, content string, ts time.Time) *AgentContent {
	return &AgentContent{base: newBase("agent:content", ts), AgentID: agentID, Content: content}
}

// AgentComplete is emitted when an agent finalizes via complete_task (or runtime-forced finalize).
type AgentComplete struct {
	base
	AgentID string
	Role    string
	Status  string
	Summary string
}

func NewAgentComplete(agentID, role, status, summary string, ts time.Time) *AgentComplete {
	return &AgentComplete{base: newBase("agent:complete", ts), AgentID: agentID, Role: role, Status: status, Summary: summary}
}

// SubtaskStart is emitted when a decomposition child task is launched.
type SubtaskStart struct {
	base
	ParentTaskID string
	TaskID       string
	Index        int
	Description  string
	Parallel     bool
}

func NewSubtaskStart(parentTaskID, taskID string, index int, description string, parallel bool, ts time.Time) *SubtaskStart {
	return &SubtaskStart{base: newBase("subtask:start", ts), ParentTaskID: parentTaskID, TaskID: taskID, Index: index, Description: description, Parallel: parallel}
}

// SubtaskComplete is emitted when a decomposition child task finishes.
type SubtaskComplete struct {
	base
	ParentTaskID string
	TaskID       string
	Index        int
	Status       string
}

func NewSubtaskComplete(parentTaskID, taskID string, index int, status string, ts time.Time) *SubtaskComplete {
	return &SubtaskComplete{base: newBase("subtask:complete", ts), ParentTaskID: parentTaskID, TaskID: taskID, Index: index, Status: status}
}

// TaskStatusChange is emitted whenever a task's Status field transitions.
type TaskStatusChange struct {
	base
	TaskID string
	From   string
	To     string
}

func NewTaskStatusChange(taskID, from, to string, ts time.Time) *TaskStatusChange {
	return &TaskStatusChange{base: newBase("task:status_change", ts), TaskID: taskID, From: from, To: to}
}

// TaskSubtaskCreated is emitted when a decomposition registers a new child task identity.
type TaskSubtaskCreated struct {
	base
	ParentTaskID string
	TaskID       string
}

func NewTaskSubtaskCreated(parentTaskID, taskID string, ts time.Time) *TaskSubtaskCreated {
	return &TaskSubtaskCreated{base: newBase("task:subtask_created", ts), ParentTaskID: parentTaskID, TaskID: taskID}
}

// TokenUsage mirrors the additive usage record carried by TokenUpdate and StepComplete.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Add returns the element-wise sum of two usage records.
func (u TokenUsage) Add(o TokenUsage) TokenUsage {
	return TokenUsage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

// TokenUpdate is emitted after every LLM call with the agent's cumulative usage.
type TokenUpdate struct {
	base
	AgentID         string
	StepID          string
	Role            string
	Model           string
	Delta           TokenUsage
	CumulativeUsage TokenUsage
}

func NewTokenUpdate(agentID, stepID, role, model string, delta, cumulative TokenUsage, ts time.Time) *TokenUpdate {
	return &TokenUpdate{base: newBase("token:update", ts), AgentID: agentID, StepID: stepID, Role: role, Model: model, Delta: delta, CumulativeUsage: cumulative}
}

// CostUpdate is emitted after every cost recalculation triggered by a StepComplete.
type CostUpdate struct {
	base
	TotalCost float64
	ByRole    map[string]float64
	ByModel   map[string]float64
}

func NewCostUpdate(totalCost float64, byRole, byModel map[string]float64, ts time.Time) *CostUpdate {
	return &CostUpdate{base: newBase("cost:update", ts), TotalCost: totalCost, ByRole: byRole, ByModel: byModel}
}

// CompositeCycleStart is emitted when the composite QA cycle begins after a decomposition's children complete.
type CompositeCycleStart struct {
	base
	TaskID string
	Cycle  int
}

func NewCompositeCycleStart(taskID string, cycle int, ts time.Time) *CompositeCycleStart {
	return &CompositeCycleStart{base: newBase("composite_cycle:start", ts), TaskID: taskID, Cycle: cycle}
}

// OracleInvoked is emitted when the root-only oracle role is consulted.
type OracleInvoked struct {
	base
	TaskID          string
	SnapshotSummary string
}

func NewOracleInvoked(taskID, snapshotSummary string, ts time.Time) *OracleInvoked {
	return &OracleInvoked{base: newBase("oracle:invoked", ts), TaskID: taskID, SnapshotSummary: snapshotSummary}
}

// OracleDecision is emitted once the oracle's action has been parsed.
type OracleDecision struct {
	base
	TaskID string
	Action string
}

func NewOracleDecision(taskID, action string, ts time.Time) *OracleDecision {
	return &OracleDecision{base: newBase("oracle:decision", ts), TaskID: taskID, Action: action}
}

// OversightCheckIn is emitted when the oversight tracker's signals are consulted mid-workflow.
type OversightCheckIn struct {
	base
	TaskID  string
	Signals []string
	Nudge   string
}

func NewOversightCheckIn(taskID string, signals []string, nudge string, ts time.Time) *OversightCheckIn {
	return &OversightCheckIn{base: newBase("oversight:check_in", ts), TaskID: taskID, Signals: signals, Nudge: nudge}
}
