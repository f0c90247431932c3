// Package workflow implements the babylon recursive workflow engine: the
// think/decompose/execute/review/merge cycle that drives a task from a
// plain-language description to a completed (or failed) result.
//
// Grounded on the teacher's internal/agent/app/coordinator/{coordinator,
// agent_workflow}.go (role invocation sequencing, artifact handoff,
// parent-context propagation), generalized from single-agent session
// orchestration to the recursive multi-role decomposition this domain
// requires.
package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"babylon/internal/agentruntime"
	"babylon/internal/domain"
	"babylon/internal/events"
	"babylon/internal/llmclient"
	"babylon/internal/logging"
	"babylon/internal/metrics"
	"babylon/internal/orgchart"
	"babylon/internal/oversight"
	"babylon/internal/parsers"
	"babylon/internal/persistence"
	"babylon/internal/toolkit"
	"babylon/internal/tools"
)

var tracer = otel.Tracer("babylon/workflow")

const (
	defaultDirectThreshold    = 0.35
	defaultMaxDepth           = 4
	defaultMaxCompositeCycles = 2
	defaultMaxRetries         = 2

	defaultExecutorMaxTurns        = 20
	defaultExecutorMaxTurnsEconomy = 8
	defaultReviewerMaxTurns        = 8
	defaultReviewerMaxTurnsEconomy = 5

	defaultAnalyzerMaxTurns    = 6
	defaultPlannerMaxTurns     = 6
	defaultCoordinatorMaxTurns = 12
	defaultStewardMaxTurns     = 3
	defaultOracleMaxTurns      = 3

	economyNudge = "This is a small task. Make the minimal change. Prefer read_file and write_file; avoid invoke_cursor_cli unless necessary. Use as few turns as possible."
)

// Config wires an Engine to its dependencies and tunable thresholds.
type Config struct {
	Bus        *events.Bus
	Logger     logging.Logger
	Tools      toolkit.Registry
	WorkingDir string
	OrgChart   *orgchart.Chart
	Oversight  *oversight.Tracker
	Prompts    PromptProvider

	// Store, if non-nil, receives one write-through record per task under
	// "tasks/<task-id>" every time the task's status changes or it gains a
	// new artifact. Persistence here is for observability only — a crashed
	// run is not resumed from these records, only inspected.
	Store *persistence.Store

	// Clients is keyed by role name (tools.RoleAnalyzer, etc.). An optional
	// "reviewer_economy" key overrides the reviewer's model when the
	// execute-review cycle runs in economy mode.
	Clients map[string]llmclient.Client

	Metrics *metrics.Registry

	Temperature     float64
	MaxTokens       int
	MaxContextTurns int

	DirectThreshold    float64
	MaxDepth            int
	MaxCompositeCycles  int
	MaxRetries          int
}

func (c Config) withDefaults() Config {
	if c.DirectThreshold <= 0 {
		c.DirectThreshold = defaultDirectThreshold
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = defaultMaxDepth
	}
	if c.MaxCompositeCycles <= 0 {
		c.MaxCompositeCycles = defaultMaxCompositeCycles
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4096
	}
	return c
}

// Engine runs one workflow to completion. Construct a fresh Engine per run.
type Engine struct {
	cfg    Config
	logger logging.Logger

	mu         sync.Mutex
	tasks      map[string]*domain.Task
	totalUsage events.TokenUsage
}

// New constructs an Engine ready to Run.
func New(cfg Config) *Engine {
	return &Engine{
		cfg:    cfg.withDefaults(),
		logger: logging.OrNop(cfg.Logger),
		tasks:  make(map[string]*domain.Task),
	}
}

// Result is what Run returns: the root task's final status and every
// artifact collected across the tree, in completion order.
type Result struct {
	TaskID    string
	Status    domain.TaskStatus
	Artifacts []domain.Artifact
	Usage     events.TokenUsage
}

// Run is the engine's entry point: emits workflow:start, runs the root
// task, emits workflow:complete, and never returns a Go error — any
// internal failure surfaces as a failed Result.
func (e *Engine) Run(ctx context.Context, description, rootTaskID string) Result {
	start := time.Now()
	e.publish(events.NewWorkflowStart(rootTaskID, description, time.Time{}))

	if e.cfg.OrgChart != nil {
		e.cfg.OrgChart.AddRoot(rootTaskID, description)
	}

	status := e.runTaskSafe(ctx, runOptions{
		taskID:      rootTaskID,
		description: description,
		depth:       0,
	})

	e.publish(events.NewWorkflowComplete(rootTaskID, string(status), time.Since(start), time.Time{}))

	return Result{
		TaskID:    rootTaskID,
		Status:    status,
		Artifacts: e.artifactsFor(rootTaskID),
		Usage:     e.usage(),
	}
}

// runTaskSafe recovers a panicking runTask into a failed status, matching
// the entry point's "caught exceptions surface as failed" rule.
func (e *Engine) runTaskSafe(ctx context.Context, opts runOptions) domain.TaskStatus {
	var status domain.TaskStatus
	func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("workflow: task %s panicked: %v", opts.taskID, r)
				status = domain.TaskFailed
			}
		}()
		status = e.runTask(ctx, opts)
	}()
	return status
}

// runOptions captures the parameters a single runTask invocation needs,
// matching §4.6's "description, depth, optional file-scope, skipAnalysis
// flag, parent-context text, subtask identity" option list.
type runOptions struct {
	taskID        string
	parentID      string
	description   string
	depth         int
	fileScope     []string
	skipAnalysis  bool
	parentContext string
}

func (e *Engine) runTask(ctx context.Context, opts runOptions) domain.TaskStatus {
	ctx, span := tracer.Start(ctx, "runTask", trace.WithAttributes(
		attribute.String("task.id", opts.taskID),
		attribute.Int("task.depth", opts.depth),
	))
	defer span.End()

	task := e.ensureTask(opts.taskID, opts.parentID, opts.description)
	e.setStatus(task, domain.TaskInProgress)

	if ctx.Err() != nil {
		e.setStatus(task, domain.TaskFailed)
		return domain.TaskFailed
	}

	if opts.skipAnalysis {
		task.SetComplexity(0.5)
		status := e.executeReviewCycle(ctx, task, opts, withParentContext(opts, opts.description), nil, true)
		e.setStatus(task, status)
		return status
	}

	analyzerResult := e.runAgent(ctx, tools.RoleAnalyzer, task.ID, analyzerContext(opts.description), defaultAnalyzerMaxTurns, nil)
	e.addArtifact(task, analyzerResult.Artifact)
	if analyzerResult.Status == domain.AgentFailed {
		e.setStatus(task, domain.TaskFailed)
		return domain.TaskFailed
	}

	analysis := parsers.ParseAnalyzer(analyzerResult.Artifact.Content)
	task.SetComplexity(analysis.Complexity)

	if analysis.Complexity <= e.cfg.DirectThreshold {
		status := e.executeReviewCycle(ctx, task, opts, withParentContext(opts, opts.description), nil, true)
		e.setStatus(task, status)
		return status
	}

	plannerResult := e.runAgent(ctx, tools.RolePlanner, task.ID, plannerContext(opts.description, analysis), defaultPlannerMaxTurns, nil)
	e.addArtifact(task, plannerResult.Artifact)
	if plannerResult.Status == domain.AgentFailed {
		e.setStatus(task, domain.TaskFailed)
		return domain.TaskFailed
	}

	plan := parsers.ParsePlanner(plannerResult.Artifact.Content)

	if plan.Kind == domain.PlannerSpec {
		status := e.executeReviewCycle(ctx, task, opts, withParentContext(opts, plan.NaturalLanguageSpec), plan.FileScopePrefixes, false)
		e.setStatus(task, status)
		return status
	}

	if opts.depth >= e.cfg.MaxDepth {
		status := e.executeReviewCycle(ctx, task, opts, withParentContext(opts, maxDepthSpecContext(opts.description)), nil, false)
		e.setStatus(task, status)
		return status
	}

	if e.cfg.OrgChart != nil {
		e.cfg.OrgChart.MarkComposite(task.ID)
	}
	status := e.runDecomposition(ctx, task, opts, plan)
	e.setStatus(task, status)
	return status
}

func (e *Engine) ensureTask(id, parentID, description string) *domain.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.tasks[id]; ok {
		return t
	}
	t := &domain.Task{ID: id, Description: description, Status: domain.TaskPending, ParentID: parentID}
	e.tasks[id] = t
	if parentID != "" {
		if parent, ok := e.tasks[parentID]; ok {
			parent.ChildIDs = append(parent.ChildIDs, id)
		}
	}
	return t
}

func (e *Engine) setStatus(task *domain.Task, status domain.TaskStatus) {
	e.mu.Lock()
	from := task.Status
	task.Status = status
	e.mu.Unlock()
	if from != status {
		e.publish(events.NewTaskStatusChange(task.ID, string(from), string(status), time.Time{}))
	}
	e.persistTask(task)
}

// addArtifact appends an artifact to task and writes the task record
// through, matching §3's "destroyed never within a run (retained by
// persistence)" and the persisted-state layout's tasks/<task-id> entry.
func (e *Engine) addArtifact(task *domain.Task, a domain.Artifact) {
	e.mu.Lock()
	task.AddArtifact(a)
	e.mu.Unlock()
	e.persistTask(task)
}

// persistTask writes task under "tasks/<task-id>", ignoring a nil Store
// (tests and callers that don't care about observability persistence).
// Failures are logged, not returned: persistence here is write-through for
// observability only and must never fail a run.
func (e *Engine) persistTask(task *domain.Task) {
	if e.cfg.Store == nil {
		return
	}
	e.mu.Lock()
	snapshot := *task
	snapshot.Artifacts = append([]domain.Artifact(nil), task.Artifacts...)
	snapshot.ChildIDs = append([]string(nil), task.ChildIDs...)
	e.mu.Unlock()
	if err := e.cfg.Store.Put("tasks/"+task.ID, snapshot); err != nil {
		e.logger.Error("workflow: failed to persist task %s: %v", task.ID, err)
	}
}

func (e *Engine) artifactsFor(taskID string) []domain.Artifact {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tasks[taskID]
	if !ok {
		return nil
	}
	return append([]domain.Artifact(nil), t.Artifacts...)
}

func (e *Engine) usage() events.TokenUsage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalUsage
}

func (e *Engine) publish(ev events.Event) {
	if e.cfg.Bus != nil {
		e.cfg.Bus.Publish(ev)
	}
}

// newChildID allocates a fresh task identity for a decomposition subtask.
func newChildID(parentID string, index int) string {
	return fmt.Sprintf("%s.%d-%s", parentID, index, uuid.NewString()[:8])
}

// runAgent drives one role-playing agent for taskID: resolves its client
// and system prompt, wraps the call in step:start/step:complete, updates
// the engine's cumulative usage, and maps identity through agent:spawn so
// the oversight tracker can key tool-call history by step.
func (e *Engine) runAgent(ctx context.Context, role, taskID, initialContext string, maxTurns int, fileScope []string) domain.AgentResult {
	return e.runAgentWithClient(ctx, role, e.clientFor(role), taskID, initialContext, maxTurns, fileScope)
}

// runAgentWithClient is runAgent with an explicit client override, used by
// the execute-review cycle's economy-mode reviewer substitution. Passing
// an explicit client (rather than mutating shared role->client config)
// keeps this safe to call from concurrently-running subtasks.
func (e *Engine) runAgentWithClient(ctx context.Context, role string, client llmclient.Client, taskID, initialContext string, maxTurns int, fileScope []string) domain.AgentResult {
	agentID := uuid.NewString()
	stepID := uuid.NewString()

	model := ""
	if client != nil {
		model = client.Model()
	}

	systemPrompt := ""
	if e.cfg.Prompts != nil {
		systemPrompt = e.cfg.Prompts.SystemPrompt(role)
	}

	e.publish(events.NewStepStart(stepID, taskID, role, time.Time{}))
	e.publish(events.NewAgentSpawn(agentID, stepID, taskID, role, time.Time{}))

	start := time.Now()
	rt := agentruntime.New(agentruntime.Config{
		AgentID:         agentID,
		StepID:          stepID,
		TaskID:          taskID,
		Role:            role,
		SystemPrompt:    systemPrompt,
		InitialContext:  initialContext,
		Client:          client,
		Tools:           e.cfg.Tools,
		AllowedTools:    tools.AllowedForRole(role),
		ToolContext:     toolkit.ToolContext{TaskID: taskID, AgentID: agentID, WorkingDir: e.cfg.WorkingDir, FileScope: fileScope},
		Temperature:     e.cfg.Temperature,
		MaxTokens:       e.cfg.MaxTokens,
		MaxTurns:        maxTurns,
		MaxContextTurns: e.cfg.MaxContextTurns,
		Bus:             e.cfg.Bus,
		Logger:          e.logger,
		Metrics:         e.cfg.Metrics,
	})
	result := rt.Run(ctx)
	duration := time.Since(start)

	e.mu.Lock()
	e.totalUsage = e.totalUsage.Add(result.Usage)
	cumulative := e.totalUsage
	e.mu.Unlock()

	e.publish(events.NewStepComplete(stepID, taskID, role, model, string(result.Status), duration, result.Usage, cumulative, time.Time{}))
	return result
}

func (e *Engine) clientFor(role string) llmclient.Client {
	if e.cfg.Clients == nil {
		return nil
	}
	return e.cfg.Clients[role]
}

// maybeOversightCheckIn consults the oversight tracker for taskID and, if
// any signal fired since the last check-in, emits oversight:check_in and
// returns the nudge text to apply.
func (e *Engine) maybeOversightCheckIn(taskID string) (nudge string, ok bool) {
	if e.cfg.Oversight == nil {
		return "", false
	}
	signals := e.cfg.Oversight.SignalsForTask(taskID)
	if len(signals) == 0 {
		return "", false
	}

	names := make([]string, len(signals))
	for i, s := range signals {
		names[i] = string(s)
	}
	nudge = fmt.Sprintf("Oversight flagged: %v. Tighten scope, avoid repeating the same tool call, and finish decisively.", names)
	e.cfg.Oversight.RecordNudge(taskID, nudge)
	e.publish(events.NewOversightCheckIn(taskID, names, nudge, time.Time{}))
	return nudge, true
}
