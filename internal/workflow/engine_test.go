package workflow

import (
	"context"
	"sync"
	"testing"

	"babylon/internal/domain"
	"babylon/internal/events"
	"babylon/internal/llmclient"
	"babylon/internal/orgchart"
	"babylon/internal/oversight"
	"babylon/internal/persistence"
	"babylon/internal/toolkit"
	"babylon/internal/tools"
)

// scriptedClient returns one fixed complete_task call per Complete
// invocation, stepping through a role's canned turns in order and
// repeating the last one once they run out. Guarded by a mutex
// since the engine may call a role's client from concurrent subtasks.
type scriptedClient struct {
	model string
	turns []llmclient.CompletionResponse

	mu    sync.Mutex
	calls int
}

func (c *scriptedClient) Model() string { return c.model }

func (c *scriptedClient) Complete(ctx context.Context, req llmclient.CompletionRequest) (*llmclient.CompletionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.calls
	if i >= len(c.turns) {
		i = len(c.turns) - 1
	}
	c.calls++
	resp := c.turns[i]
	return &resp, nil
}

func completeTaskCall(id, status, summary, content string, extra map[string]any) llmclient.CompletionResponse {
	args := map[string]any{"status": status, "summary": summary, "content": content}
	for k, v := range extra {
		args[k] = v
	}
	return llmclient.CompletionResponse{
		Content:   summary,
		ToolCalls: []toolkit.ToolCall{{ID: id, Name: "complete_task", Arguments: args}},
	}
}

func testRegistry(t *testing.T) toolkit.Registry {
	t.Helper()
	return tools.NewRegistry(tools.Options{})
}

func newTestEngine(t *testing.T, clients map[string]llmclient.Client) (*Engine, *orgchart.Chart) {
	t.Helper()
	chart := orgchart.New()
	bus := events.NewBus(nil)
	return New(Config{
		Bus:        bus,
		Tools:      testRegistry(t),
		WorkingDir: t.TempDir(),
		OrgChart:   chart,
		Oversight:  oversight.New(),
		Clients:    clients,
	}), chart
}

func TestRunDirectTaskCompletes(t *testing.T) {
	analyzer := &scriptedClient{model: "m-analyzer", turns: []llmclient.CompletionResponse{
		completeTaskCall("1", "completed", "analyzed", `{"complexity":0.2,"summary":"small change"}`, nil),
	}}
	executor := &scriptedClient{model: "m-executor", turns: []llmclient.CompletionResponse{
		completeTaskCall("1", "completed", "wrote the file", "added the helper function", nil),
	}}
	reviewer := &scriptedClient{model: "m-reviewer", turns: []llmclient.CompletionResponse{
		completeTaskCall("1", "completed", "looks good", "approved", nil),
	}}

	e, chart := newTestEngine(t, map[string]llmclient.Client{
		tools.RoleAnalyzer: analyzer,
		tools.RoleExecutor: executor,
		tools.RoleReviewer: reviewer,
	})

	result := e.Run(context.Background(), "add a helper function", "root")
	if result.Status != domain.TaskCompleted {
		t.Fatalf("expected task to complete, got %v", result.Status)
	}
	if len(result.Artifacts) == 0 {
		t.Fatalf("expected artifacts to be recorded")
	}
	if len(chart.Snapshot()) != 1 {
		t.Fatalf("expected only the root org-chart node for a direct task, got %d", len(chart.Snapshot()))
	}
}

func TestRunDirectTaskFailsAfterExhaustingRetries(t *testing.T) {
	analyzer := &scriptedClient{model: "m-analyzer", turns: []llmclient.CompletionResponse{
		completeTaskCall("1", "completed", "analyzed", `{"complexity":0.2,"summary":"small change"}`, nil),
	}}
	executor := &scriptedClient{model: "m-executor", turns: []llmclient.CompletionResponse{
		completeTaskCall("1", "completed", "wrote something", "first attempt", nil),
		completeTaskCall("2", "completed", "wrote something else", "second attempt", nil),
		completeTaskCall("3", "completed", "wrote something else again", "third attempt", nil),
	}}
	reviewer := &scriptedClient{model: "m-reviewer", turns: []llmclient.CompletionResponse{
		completeTaskCall("1", "needs_review", "issues found", "", map[string]any{"review_notes": "missing error handling"}),
		completeTaskCall("2", "needs_review", "still issues", "", map[string]any{"review_notes": "missing tests"}),
		completeTaskCall("3", "needs_review", "still issues", "", map[string]any{"review_notes": "still missing tests"}),
	}}

	e, _ := newTestEngine(t, map[string]llmclient.Client{
		tools.RoleAnalyzer: analyzer,
		tools.RoleExecutor: executor,
		tools.RoleReviewer: reviewer,
	})

	result := e.Run(context.Background(), "add a helper function", "root")
	if result.Status != domain.TaskFailed {
		t.Fatalf("expected task to fail after exhausting retries, got %v", result.Status)
	}
	if executor.calls != 3 {
		t.Fatalf("expected 3 executor attempts (1 + MaxRetries), got %d", executor.calls)
	}
}

func TestRunDecomposedTaskMergesAndCompletes(t *testing.T) {
	analyzer := &scriptedClient{model: "m-analyzer", turns: []llmclient.CompletionResponse{
		completeTaskCall("1", "completed", "analyzed", `{"complexity":0.9,"summary":"big change"}`, nil),
		completeTaskCall("2", "completed", "analyzed", `{"complexity":0.2,"summary":"small change"}`, nil),
	}}
	planner := &scriptedClient{model: "m-planner", turns: []llmclient.CompletionResponse{
		completeTaskCall("1", "completed", "planned", `{
			"kind": "decomposition",
			"decomposition": {
				"subtasks": [
					{"description": "build the API handler", "fileScope": ["src/api"]},
					{"description": "build the web page", "fileScope": ["src/web"]}
				],
				"parallel": true
			}
		}`, nil),
	}}
	executor := &scriptedClient{model: "m-executor", turns: []llmclient.CompletionResponse{
		completeTaskCall("1", "completed", "done", "implemented the change", nil),
	}}
	reviewer := &scriptedClient{model: "m-reviewer", turns: []llmclient.CompletionResponse{
		completeTaskCall("1", "completed", "approved", "looks good", nil),
	}}
	coordinator := &scriptedClient{model: "m-coordinator", turns: []llmclient.CompletionResponse{
		completeTaskCall("1", "completed", "merged", "merged both subtasks, tests pass", nil),
	}}

	e, chart := newTestEngine(t, map[string]llmclient.Client{
		tools.RoleAnalyzer:    analyzer,
		tools.RolePlanner:     planner,
		tools.RoleExecutor:    executor,
		tools.RoleReviewer:    reviewer,
		tools.RoleCoordinator: coordinator,
	})

	result := e.Run(context.Background(), "build the API and the web page", "root")
	if result.Status != domain.TaskCompleted {
		t.Fatalf("expected decomposed task to complete, got %v", result.Status)
	}

	snaps := chart.Snapshot()
	if len(snaps) != 3 {
		t.Fatalf("expected root + 2 subtask nodes in the org chart, got %d", len(snaps))
	}
}

func TestRunDecomposedTaskEscalatesWhenCoordinatorNeverCompletes(t *testing.T) {
	analyzer := &scriptedClient{model: "m-analyzer", turns: []llmclient.CompletionResponse{
		completeTaskCall("1", "completed", "analyzed", `{"complexity":0.9,"summary":"big change"}`, nil),
	}}
	planner := &scriptedClient{model: "m-planner", turns: []llmclient.CompletionResponse{
		completeTaskCall("1", "completed", "planned", `{
			"kind": "decomposition",
			"decomposition": {
				"subtasks": [
					{"description": "build the API handler"}
				],
				"parallel": false
			}
		}`, nil),
	}}
	executor := &scriptedClient{model: "m-executor", turns: []llmclient.CompletionResponse{
		completeTaskCall("1", "completed", "done", "implemented the change", nil),
	}}
	reviewer := &scriptedClient{model: "m-reviewer", turns: []llmclient.CompletionResponse{
		completeTaskCall("1", "completed", "approved", "looks good", nil),
	}}
	coordinator := &scriptedClient{model: "m-coordinator", turns: []llmclient.CompletionResponse{
		completeTaskCall("1", "needs_review", "merge conflict", "", map[string]any{"review_notes": "handlers disagree on the response shape"}),
	}}
	steward := &scriptedClient{model: "m-steward", turns: []llmclient.CompletionResponse{
		completeTaskCall("1", "completed", "escalating", `{"action": "escalate"}`, nil),
	}}
	oracle := &scriptedClient{model: "m-oracle", turns: []llmclient.CompletionResponse{
		completeTaskCall("1", "completed", "escalating to user", `{"action": "escalate_to_user"}`, nil),
	}}

	e, _ := newTestEngine(t, map[string]llmclient.Client{
		tools.RoleAnalyzer:    analyzer,
		tools.RolePlanner:     planner,
		tools.RoleExecutor:    executor,
		tools.RoleReviewer:    reviewer,
		tools.RoleCoordinator: coordinator,
		tools.RoleSteward:     steward,
		tools.RoleOracle:      oracle,
	})

	result := e.Run(context.Background(), "build the API handler", "root")
	if result.Status != domain.TaskReview {
		t.Fatalf("expected escalation to surface as needs_review, got %v", result.Status)
	}
}

func TestRunPersistsEachTaskUnderTasksPrefix(t *testing.T) {
	analyzer := &scriptedClient{model: "m-analyzer", turns: []llmclient.CompletionResponse{
		completeTaskCall("1", "completed", "analyzed", `{"complexity":0.2,"summary":"small change"}`, nil),
	}}
	executor := &scriptedClient{model: "m-executor", turns: []llmclient.CompletionResponse{
		completeTaskCall("1", "completed", "wrote the file", "added the helper function", nil),
	}}
	reviewer := &scriptedClient{model: "m-reviewer", turns: []llmclient.CompletionResponse{
		completeTaskCall("1", "completed", "looks good", "approved", nil),
	}}

	store, err := persistence.New(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chart := orgchart.New()
	e := New(Config{
		Bus:        events.NewBus(nil),
		Tools:      testRegistry(t),
		WorkingDir: t.TempDir(),
		OrgChart:   chart,
		Oversight:  oversight.New(),
		Store:      store,
		Clients: map[string]llmclient.Client{
			tools.RoleAnalyzer: analyzer,
			tools.RoleExecutor: executor,
			tools.RoleReviewer: reviewer,
		},
	})

	result := e.Run(context.Background(), "add a helper function", "root")

	var saved domain.Task
	if err := store.Get("tasks/"+result.TaskID, &saved); err != nil {
		t.Fatalf("expected a persisted task record: %v", err)
	}
	if saved.Status != domain.TaskCompleted {
		t.Fatalf("expected persisted task status %v, got %v", domain.TaskCompleted, saved.Status)
	}
	if len(saved.Artifacts) == 0 {
		t.Fatalf("expected the persisted task to carry its artifacts")
	}
}

func TestRunMaxDepthForcesSpecMode(t *testing.T) {
	analyzer := &scriptedClient{model: "m-analyzer", turns: []llmclient.CompletionResponse{
		completeTaskCall("1", "completed", "analyzed", `{"complexity":0.9,"summary":"big change"}`, nil),
	}}
	planner := &scriptedClient{model: "m-planner", turns: []llmclient.CompletionResponse{
		completeTaskCall("1", "completed", "planned", `{
			"kind": "decomposition",
			"decomposition": {
				"subtasks": [
					{"description": "keep splitting this forever"}
				]
			}
		}`, nil),
	}}
	executor := &scriptedClient{model: "m-executor", turns: []llmclient.CompletionResponse{
		completeTaskCall("1", "completed", "done", "implemented at max depth", nil),
	}}
	reviewer := &scriptedClient{model: "m-reviewer", turns: []llmclient.CompletionResponse{
		completeTaskCall("1", "completed", "approved", "looks good", nil),
	}}
	coordinator := &scriptedClient{model: "m-coordinator", turns: []llmclient.CompletionResponse{
		completeTaskCall("1", "completed", "merged", "merged", nil),
	}}

	e, _ := newTestEngine(t, map[string]llmclient.Client{
		tools.RoleAnalyzer:    analyzer,
		tools.RolePlanner:     planner,
		tools.RoleExecutor:    executor,
		tools.RoleReviewer:    reviewer,
		tools.RoleCoordinator: coordinator,
	})
	e.cfg.MaxDepth = 1

	result := e.Run(context.Background(), "build something recursive", "root")
	if result.Status != domain.TaskCompleted {
		t.Fatalf("expected max-depth-forced spec mode to complete, got %v", result.Status)
	}
}
