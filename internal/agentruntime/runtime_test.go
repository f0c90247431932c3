package agentruntime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"babylon/internal/domain"
	"babylon/internal/llmclient"
	"babylon/internal/metrics"
	"babylon/internal/toolkit"
)

type scriptedClient struct {
	responses []llmclient.CompletionResponse
	errs      []error
	calls     int
}

func (c *scriptedClient) Model() string { return "stub-model" }

func (c *scriptedClient) Complete(ctx context.Context, req llmclient.CompletionRequest) (*llmclient.CompletionResponse, error) {
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	if i >= len(c.responses) {
		i = len(c.responses) - 1
	}
	resp := c.responses[i]
	return &resp, nil
}

func registryWithCompleteTask() toolkit.Registry {
	reg := toolkit.NewRegistry()
	_ = reg.Register(stubCompleteTaskTool{})
	return reg
}

type stubCompleteTaskTool struct{}

func (stubCompleteTaskTool) Definition() toolkit.ToolDefinition {
	return toolkit.ToolDefinition{Name: "complete_task"}
}

func (stubCompleteTaskTool) Execute(ctx context.Context, tc toolkit.ToolContext, call toolkit.ToolCall) (*toolkit.ToolResult, error) {
	return &toolkit.ToolResult{Content: "ok"}, nil
}

func TestRunFinalizesOnValidCompleteTask(t *testing.T) {
	client := &scriptedClient{
		responses: []llmclient.CompletionResponse{
			{
				Content: "doing it",
				ToolCalls: []toolkit.ToolCall{
					{ID: "1", Name: "complete_task", Arguments: map[string]any{
						"status": "completed", "summary": "done", "content": "result body",
					}},
				},
			},
		},
	}
	rt := New(Config{
		AgentID: "a1", Role: "executor", SystemPrompt: "sys", InitialContext: "ctx",
		Client: client, Tools: registryWithCompleteTask(), MaxTurns: 5,
	})

	result := rt.Run(context.Background())
	if result.Status != domain.AgentCompleted {
		t.Fatalf("expected completed, got %v", result.Status)
	}
	if result.Artifact.Content != "result body" {
		t.Fatalf("got artifact content %q", result.Artifact.Content)
	}
}

func TestRunRecordsTurnAndToolCallMetrics(t *testing.T) {
	client := &scriptedClient{
		responses: []llmclient.CompletionResponse{
			{
				Content: "doing it",
				ToolCalls: []toolkit.ToolCall{
					{ID: "1", Name: "complete_task", Arguments: map[string]any{
						"status": "completed", "summary": "done", "content": "result body",
					}},
				},
			},
		},
	}
	reg := metrics.New()
	rt := New(Config{
		AgentID: "a1", Role: "executor", SystemPrompt: "sys", InitialContext: "ctx",
		Client: client, Tools: registryWithCompleteTask(), MaxTurns: 5, Metrics: reg,
	})

	rt.Run(context.Background())

	if got := testutil.ToFloat64(reg.Turns.WithLabelValues("executor")); got != 1 {
		t.Fatalf("expected 1 turn recorded, got %v", got)
	}
	if got := testutil.ToFloat64(reg.ToolCalls.WithLabelValues("complete_task", "ok")); got != 1 {
		t.Fatalf("expected 1 successful complete_task call recorded, got %v", got)
	}
}

func TestRunExhaustsBudgetWithoutCompletion(t *testing.T) {
	client := &scriptedClient{
		responses: []llmclient.CompletionResponse{{Content: "still thinking"}},
	}
	rt := New(Config{
		AgentID: "a1", Role: "executor", SystemPrompt: "sys", InitialContext: "ctx",
		Client: client, Tools: registryWithCompleteTask(), MaxTurns: 3,
	})

	result := rt.Run(context.Background())
	if result.Status != domain.AgentNeedsReview {
		t.Fatalf("expected needs_review, got %v", result.Status)
	}
}

func TestRunDetectsStuckLoop(t *testing.T) {
	call := toolkit.ToolCall{ID: "1", Name: "some_tool", Arguments: map[string]any{"x": 1}}
	client := &scriptedClient{
		responses: []llmclient.CompletionResponse{{ToolCalls: []toolkit.ToolCall{call}}},
	}
	reg := registryWithCompleteTask()
	_ = reg.Register(stubEchoTool{name: "some_tool"})
	rt := New(Config{
		AgentID: "a1", Role: "executor", SystemPrompt: "sys", InitialContext: "ctx",
		Client: client, Tools: reg, MaxTurns: 10,
	})

	result := rt.Run(context.Background())
	if result.Status != domain.AgentNeedsReview {
		t.Fatalf("expected needs_review for stuck loop, got %v", result.Status)
	}
	if result.Artifact.Content != "Agent appeared stuck in a loop" {
		t.Fatalf("got %q", result.Artifact.Content)
	}
}

type stubEchoTool struct{ name string }

func (s stubEchoTool) Definition() toolkit.ToolDefinition { return toolkit.ToolDefinition{Name: s.name} }
func (s stubEchoTool) Execute(ctx context.Context, tc toolkit.ToolContext, call toolkit.ToolCall) (*toolkit.ToolResult, error) {
	return &toolkit.ToolResult{Content: "echo"}, nil
}

func TestRunRetriesRetryableErrorsThenSucceeds(t *testing.T) {
	client := &scriptedClient{
		errs: []error{errors.New("503 service unavailable"), nil},
		responses: []llmclient.CompletionResponse{
			{},
			{ToolCalls: []toolkit.ToolCall{{ID: "1", Name: "complete_task", Arguments: map[string]any{
				"status": "completed", "summary": "s", "content": "c",
			}}}},
		},
	}
	rt := New(Config{
		AgentID: "a1", Role: "executor", SystemPrompt: "sys", InitialContext: "ctx",
		Client: client, Tools: registryWithCompleteTask(), MaxTurns: 3,
	})
	rt.sleep = instantClock
	result := rt.Run(context.Background())
	if result.Status != domain.AgentCompleted {
		t.Fatalf("expected completed after retry, got %v (calls=%d)", result.Status, client.calls)
	}
}

func instantClock(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func TestRunFailsFastOnPermanentError(t *testing.T) {
	client := &scriptedClient{errs: []error{errors.New("401 unauthorized")}, responses: []llmclient.CompletionResponse{{}}}
	rt := New(Config{
		AgentID: "a1", Role: "executor", SystemPrompt: "sys", InitialContext: "ctx",
		Client: client, Tools: registryWithCompleteTask(), MaxTurns: 3,
	})
	result := rt.Run(context.Background())
	if result.Status != domain.AgentFailed {
		t.Fatalf("expected failed, got %v", result.Status)
	}
	if client.calls != 1 {
		t.Fatalf("expected no retries for permanent error, got %d calls", client.calls)
	}
}

func TestRunAbortsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := &scriptedClient{responses: []llmclient.CompletionResponse{{}}}
	rt := New(Config{
		AgentID: "a1", Role: "executor", SystemPrompt: "sys", InitialContext: "ctx",
		Client: client, Tools: registryWithCompleteTask(), MaxTurns: 3,
	})
	result := rt.Run(ctx)
	if result.Status != domain.AgentFailed {
		t.Fatalf("expected failed on cancellation, got %v", result.Status)
	}
}
