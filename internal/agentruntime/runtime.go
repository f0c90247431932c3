// Package agentruntime drives a single role-playing agent's bounded turn
// loop: think (call the LLM), act (execute any requested tools), observe
// (feed results back), until the agent calls complete_task or the turn
// budget runs out.
package agentruntime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"babylon/internal/domain"
	"babylon/internal/events"
	"babylon/internal/llmclient"
	"babylon/internal/logging"
	"babylon/internal/metrics"
	"babylon/internal/toolkit"
)

var tracer = otel.Tracer("babylon/agentruntime")

// maxConsecutiveDuplicates is the number of consecutive turns with an
// identical tool-call sequence before the runtime gives up on the agent.
const maxConsecutiveDuplicates = 3

// retryDelays are the backoff delays between LLM retries, in order.
var retryDelays = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// argEllipsisLimit is the per-argument-value length above which
// agent:tool_call sanitizes the value before emitting it.
const argEllipsisLimit = 400

// contentDisplayLimit caps the content carried on an agent:content event.
const contentDisplayLimit = 2000

// Config configures a single run of the agent turn loop.
type Config struct {
	AgentID         string
	StepID          string
	TaskID          string
	Role            string
	SystemPrompt    string
	InitialContext  string
	Client          llmclient.Client
	Tools           toolkit.Registry
	AllowedTools    map[string]bool
	ToolContext     toolkit.ToolContext
	Temperature     float64
	MaxTokens       int
	MaxTurns        int
	MaxContextTurns int
	Bus             *events.Bus
	Logger          logging.Logger
	Metrics         *metrics.Registry
}

// Runtime drives one agent's turn loop to completion.
type Runtime struct {
	cfg    Config
	logger logging.Logger
	sleep  func(time.Duration) <-chan time.Time
}

// New returns a Runtime ready to Run.
func New(cfg Config) *Runtime {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 1
	}
	return &Runtime{cfg: cfg, logger: logging.OrNop(cfg.Logger), sleep: time.After}
}

// Run executes the turn loop and returns the agent's final result. It never
// returns a Go error: every failure mode is represented as a "failed" or
// "needs_review" AgentResult.
func (r *Runtime) Run(ctx context.Context) domain.AgentResult {
	cfg := r.cfg
	messages := []domain.Message{
		{Role: "system", Content: cfg.SystemPrompt},
		{Role: "user", Content: cfg.InitialContext},
	}

	var cumulative events.TokenUsage
	var lastSignature string
	consecutiveDuplicates := 0
	var log []domain.Message

	publish := func(e events.Event) {
		if cfg.Bus != nil {
			cfg.Bus.Publish(e)
		}
	}

	finalize := func(status domain.AgentStatus, summary, content string, metadata map[string]any) domain.AgentResult {
		artifact := domain.Artifact{
			Type:      domain.ArtifactTypeForRole(cfg.Role),
			Content:   content,
			Metadata:  metadata,
			CreatedAt: time.Now(),
		}
		publish(events.NewAgentComplete(cfg.AgentID, cfg.Role, string(status), summary, time.Time{}))
		return domain.AgentResult{
			AgentID:  cfg.AgentID,
			Role:     cfg.Role,
			Status:   status,
			Artifact: artifact,
			Usage:    cumulative,
			Log:      log,
		}
	}

	for turn := 1; turn <= cfg.MaxTurns; turn++ {
		if ctx.Err() != nil {
			return finalize(domain.AgentFailed, "Aborted by user", "Aborted by user", nil)
		}

		result, done := func() (domain.AgentResult, bool) {
			turnCtx, turnSpan := tracer.Start(ctx, "agent.turn", trace.WithAttributes(
				attribute.String("role", cfg.Role),
				attribute.Int("turn", turn),
			))
			defer turnSpan.End()

			publish(events.NewAgentTurn(cfg.AgentID, turn, cfg.MaxTurns, time.Time{}))
			if cfg.Metrics != nil {
				cfg.Metrics.Turns.WithLabelValues(cfg.Role).Inc()
			}

			if turn == cfg.MaxTurns {
				messages = append(messages, domain.Message{
					Role:    "user",
					Content: "This is your FINAL turn. You MUST call complete_task now with your best result so far.",
				})
			}

			windowed := trimContext(messages, cfg.MaxContextTurns)
			resp, err := r.completeWithRetry(turnCtx, windowed)
			if err != nil {
				turnSpan.RecordError(err)
				return finalize(domain.AgentFailed, err.Error(), err.Error(), nil), true
			}

			delta := resp.Usage
			cumulative = cumulative.Add(delta)
			publish(events.NewTokenUpdate(cfg.AgentID, cfg.StepID, cfg.Role, cfg.Client.Model(), delta, cumulative, time.Time{}))

			assistantMsg := domain.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls}
			messages = append(messages, assistantMsg)
			log = append(log, assistantMsg)

			if resp.Content != "" {
				publish(events.NewAgentContent(cfg.AgentID, toolkit.Truncate(resp.Content, contentDisplayLimit), time.Time{}))
			}

			if len(resp.ToolCalls) == 0 {
				return domain.AgentResult{}, false
			}

			signature := toolCallSignature(resp.ToolCalls)
			if signature == lastSignature {
				consecutiveDuplicates++
			} else {
				consecutiveDuplicates = 1
				lastSignature = signature
			}
			if consecutiveDuplicates >= maxConsecutiveDuplicates {
				return finalize(domain.AgentNeedsReview, "Agent appeared stuck in a loop", "Agent appeared stuck in a loop", nil), true
			}

			toolMsg, completion, invalidCompletion := r.executeToolCalls(turnCtx, resp.ToolCalls)
			messages = append(messages, toolMsg)
			log = append(log, toolMsg)

			if completion != nil {
				return finalize(completion.status, completion.summary, completion.content, completion.metadata), true
			}
			if invalidCompletion {
				messages = append(messages, domain.Message{
					Role:    "user",
					Content: "Your complete_task call was invalid. Call complete_task again with status in {completed, failed, needs_review}, a non-empty summary, and non-empty content.",
				})
			}
			return domain.AgentResult{}, false
		}()

		if done {
			return result
		}
	}

	return finalize(domain.AgentNeedsReview, "Agent reached maximum turns without completing", "Agent reached maximum turns without completing", nil)
}

func (r *Runtime) completeWithRetry(ctx context.Context, messages []domain.Message) (*llmclient.CompletionResponse, error) {
	req := llmclient.CompletionRequest{
		Messages:    messages,
		Tools:       r.allowedToolDefinitions(),
		Temperature: r.cfg.Temperature,
		MaxTokens:   r.cfg.MaxTokens,
	}

	var lastErr error
	for attempt := 0; attempt <= len(retryDelays); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-r.sleep(retryDelays[attempt-1]):
			}
		}

		resp, err := r.cfg.Client.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !llmclient.IsRetryable(err) {
			return nil, err
		}
		r.logger.Warn("llm call failed (attempt %d/%d), retrying: %v", attempt+1, len(retryDelays)+1, err)
	}
	return nil, lastErr
}

func (r *Runtime) allowedToolDefinitions() []toolkit.ToolDefinition {
	if r.cfg.Tools == nil {
		return nil
	}
	var defs []toolkit.ToolDefinition
	for _, def := range r.cfg.Tools.List() {
		if r.cfg.AllowedTools != nil && !r.cfg.AllowedTools[def.Name] {
			continue
		}
		defs = append(defs, def)
	}
	return defs
}

type completionResult struct {
	status   domain.AgentStatus
	summary  string
	content  string
	metadata map[string]any
}

// executeToolCalls runs every tool call in order, returns the synthesized
// tool-result message to append to the conversation, and — if one call was
// a successfully-parsed complete_task — the finalize-ready result.
func (r *Runtime) executeToolCalls(ctx context.Context, calls []toolkit.ToolCall) (domain.Message, *completionResult, bool) {
	msg := domain.Message{Role: "tool"}
	var completion *completionResult
	invalid := false

	for _, call := range calls {
		publish := func(e events.Event) {
			if r.cfg.Bus != nil {
				r.cfg.Bus.Publish(e)
			}
		}
		publish(events.NewAgentToolCall(r.cfg.AgentID, call.ID, call.Name, sanitizeArguments(call.Arguments), time.Time{}))

		toolCtx, toolSpan := tracer.Start(ctx, "tool.execute", trace.WithAttributes(attribute.String("tool", call.Name)))
		recordOutcome := func(isError bool) {
			if r.cfg.Metrics == nil {
				return
			}
			outcome := "ok"
			if isError {
				outcome = "error"
			}
			r.cfg.Metrics.ToolCalls.WithLabelValues(call.Name, outcome).Inc()
		}

		if r.cfg.AllowedTools != nil && !r.cfg.AllowedTools[call.Name] {
			msg.ToolResults = append(msg.ToolResults, domain.ToolResultEntry{
				CallID: call.ID, Content: fmt.Sprintf("Unknown tool: %s", call.Name), IsError: true,
			})
			publish(events.NewAgentToolResult(r.cfg.AgentID, call.ID, call.Name, true, 0, time.Time{}))
			recordOutcome(true)
			toolSpan.End()
			continue
		}

		start := time.Now()
		tool, ok := r.cfg.Tools.Get(call.Name)
		if !ok {
			msg.ToolResults = append(msg.ToolResults, domain.ToolResultEntry{
				CallID: call.ID, Content: fmt.Sprintf("Unknown tool: %s", call.Name), IsError: true,
			})
			publish(events.NewAgentToolResult(r.cfg.AgentID, call.ID, call.Name, true, 0, time.Time{}))
			recordOutcome(true)
			toolSpan.End()
			continue
		}

		result, err := tool.Execute(toolCtx, r.cfg.ToolContext, call)
		duration := time.Since(start).Milliseconds()
		if err != nil {
			msg.ToolResults = append(msg.ToolResults, domain.ToolResultEntry{CallID: call.ID, Content: err.Error(), IsError: true})
			publish(events.NewAgentToolResult(r.cfg.AgentID, call.ID, call.Name, true, duration, time.Time{}))
			recordOutcome(true)
			toolSpan.RecordError(err)
			toolSpan.End()
			continue
		}

		msg.ToolResults = append(msg.ToolResults, domain.ToolResultEntry{CallID: call.ID, Content: result.Content, IsError: result.IsError})
		publish(events.NewAgentToolResult(r.cfg.AgentID, call.ID, call.Name, result.IsError, duration, time.Time{}))
		recordOutcome(result.IsError)
		toolSpan.End()

		if call.Name == "complete_task" && !result.IsError {
			if parsed, ok := parseCompleteTask(call.Arguments); ok {
				completion = parsed
			} else {
				invalid = true
			}
		}
	}

	return msg, completion, invalid
}

func parseCompleteTask(args map[string]any) (*completionResult, bool) {
	status, _ := args["status"].(string)
	summary, _ := args["summary"].(string)
	content, _ := args["content"].(string)

	switch domain.AgentStatus(status) {
	case domain.AgentCompleted, domain.AgentFailed, domain.AgentNeedsReview:
	default:
		return nil, false
	}
	if summary == "" || content == "" {
		return nil, false
	}

	metadata := map[string]any{}
	if handoff, ok := args["handoff_notes"]; ok {
		metadata["handoff_notes"] = handoff
	}
	if review, ok := args["review_notes"]; ok {
		metadata["review_notes"] = review
	}
	if extra, ok := args["metadata"].(map[string]any); ok {
		for k, v := range extra {
			metadata[k] = v
		}
	}

	return &completionResult{
		status:   domain.AgentStatus(status),
		summary:  summary,
		content:  content,
		metadata: metadata,
	}, true
}

// sanitizeArguments ellipsizes string values longer than argEllipsisLimit so
// agent:tool_call events stay small.
func sanitizeArguments(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	sanitized := make(map[string]any, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok && len(s) > argEllipsisLimit {
			sanitized[k] = s[:argEllipsisLimit] + "..."
			continue
		}
		sanitized[k] = v
	}
	return sanitized
}

// toolCallSignature builds a canonical string for a turn's ordered tool
// calls (name + arguments) used to detect repeated identical sequences.
func toolCallSignature(calls []toolkit.ToolCall) string {
	type entry struct {
		Name string         `json:"name"`
		Args map[string]any `json:"args"`
	}
	entries := make([]entry, len(calls))
	for i, c := range calls {
		entries[i] = entry{Name: c.Name, Args: c.Arguments}
	}
	encoded, err := json.Marshal(entries)
	if err != nil {
		return uuid.NewString()
	}
	return string(encoded)
}

// trimContext applies the spec's sliding-window rule: keep the system
// message, the first user message, and the suffix starting at the
// N-th-from-last assistant message, dropping everything in between. When
// maxContextTurns is not positive the full conversation is sent.
func trimContext(messages []domain.Message, maxContextTurns int) []domain.Message {
	if maxContextTurns <= 0 || len(messages) == 0 {
		return messages
	}

	var system, firstUser *domain.Message
	assistantIndices := make([]int, 0)
	for i := range messages {
		switch {
		case messages[i].Role == "system" && system == nil:
			system = &messages[i]
		case messages[i].Role == "user" && firstUser == nil:
			firstUser = &messages[i]
		case messages[i].Role == "assistant":
			assistantIndices = append(assistantIndices, i)
		}
	}
	if len(assistantIndices) < maxContextTurns {
		return messages
	}

	cutoff := assistantIndices[len(assistantIndices)-maxContextTurns]

	var out []domain.Message
	if system != nil {
		out = append(out, *system)
	}
	if firstUser != nil {
		out = append(out, *firstUser)
	}
	out = append(out, messages[cutoff:]...)
	return out
}
