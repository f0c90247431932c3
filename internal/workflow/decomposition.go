package workflow

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"babylon/internal/domain"
	"babylon/internal/events"
	"babylon/internal/parsers"
	"babylon/internal/tools"
)

// childOutcome is one decomposition child's result, tracked for the
// composite QA cycle's summary and for steward-directed retries.
type childOutcome struct {
	index       int
	taskID      string
	description string
	fileScope   []string
	status      domain.TaskStatus
	summary     string
}

func (e *Engine) lastArtifactSummary(taskID string) string {
	e.mu.Lock()
	t, ok := e.tasks[taskID]
	e.mu.Unlock()
	if !ok {
		return ""
	}
	if a, ok := t.LastArtifact(); ok {
		return a.Content
	}
	return ""
}

// runDecomposition implements §4.6's runDecomposition: setup-first, then
// parallel or sequential subtask execution (downgraded to sequential on
// overlapping file scopes), followed by the composite QA cycle.
func (e *Engine) runDecomposition(ctx context.Context, task *domain.Task, opts runOptions, plan domain.PlannerOutput) domain.TaskStatus {
	ctx, span := tracer.Start(ctx, "runDecomposition", trace.WithAttributes(
		attribute.String("task.id", task.ID),
		attribute.Int("task.subtasks", len(plan.Subtasks)),
	))
	defer span.End()

	subtasks := filterDuplicateSetup(plan.Subtasks, plan.SetupSubtask)
	parallel := plan.Parallel
	if parallel && haveOverlappingFileScopes(subtasks) {
		e.logger.Warn("workflow: task %s decomposition downgraded to sequential: overlapping file scopes", task.ID)
		parallel = false
	}

	if opts.depth == 0 && e.cfg.OrgChart != nil {
		e.cfg.OrgChart.AssignSteward(task.ID)
	}

	var outcomes []childOutcome

	if plan.SetupSubtask != nil {
		outcome := e.runChild(ctx, task, opts, 0, *plan.SetupSubtask, false)
		outcomes = append(outcomes, outcome)
		if outcome.status == domain.TaskFailed {
			return domain.TaskFailed
		}
	}

	subtaskOutcomes := e.runSubtasks(ctx, task, opts, subtasks, parallel)
	outcomes = append(outcomes, subtaskOutcomes...)

	if !parallel {
		for _, o := range subtaskOutcomes {
			if o.status == domain.TaskFailed {
				return domain.TaskFailed
			}
		}
	} else {
		for _, o := range subtaskOutcomes {
			if o.status == domain.TaskFailed {
				return e.compositeQACycle(ctx, task, opts, outcomes, domain.TaskFailed)
			}
		}
	}

	return e.compositeQACycle(ctx, task, opts, outcomes, domain.TaskCompleted)
}

// runChild launches one decomposition child via runTask and returns its
// outcome, including the subtask:start/subtask:complete events.
func (e *Engine) runChild(ctx context.Context, parent *domain.Task, opts runOptions, index int, def domain.SubtaskDefinition, parallel bool) childOutcome {
	childID := newChildID(parent.ID, index)
	if e.cfg.OrgChart != nil {
		e.cfg.OrgChart.AddChild(childID, parent.ID, def.Description)
	}
	e.publish(events.NewSubtaskStart(parent.ID, childID, index, def.Description, parallel, time.Time{}))
	e.publish(events.NewTaskSubtaskCreated(parent.ID, childID, time.Time{}))

	status := e.runTaskSafe(ctx, runOptions{
		taskID:       childID,
		parentID:     parent.ID,
		description:  def.Description,
		depth:        opts.depth + 1,
		fileScope:    def.FileScope,
		skipAnalysis: def.SkipAnalysis,
	})

	e.publish(events.NewSubtaskComplete(parent.ID, childID, index, string(status), time.Time{}))

	return childOutcome{
		index:       index,
		taskID:      childID,
		description: def.Description,
		fileScope:   def.FileScope,
		status:      status,
		summary:     e.lastArtifactSummary(childID),
	}
}

// runSubtasks executes the filtered subtask list either in parallel
// (fan-out/fan-in) or sequentially (with oversight check-ins, stopping on
// first failure), per §4.6 step 5.
func (e *Engine) runSubtasks(ctx context.Context, task *domain.Task, opts runOptions, subtasks []domain.SubtaskDefinition, parallel bool) []childOutcome {
	if len(subtasks) == 0 {
		return nil
	}

	baseIndex := 1 // index 0 is reserved for a setup task when present
	if task == nil {
		baseIndex = 0
	}

	if parallel {
		outcomes := make([]childOutcome, len(subtasks))
		var wg sync.WaitGroup
		for i, def := range subtasks {
			wg.Add(1)
			go func(i int, def domain.SubtaskDefinition) {
				defer wg.Done()
				outcomes[i] = e.runChild(ctx, task, opts, baseIndex+i, def, true)
			}(i, def)
		}
		wg.Wait()
		return outcomes
	}

	outcomes := make([]childOutcome, 0, len(subtasks))
	for i, def := range subtasks {
		if ctx.Err() != nil {
			break
		}
		nudge, pending := e.maybeOversightCheckIn(task.ID)
		childOpts := opts
		if pending {
			childOpts.parentContext = stewardVoiceLine(nudge)
		}
		outcome := e.runChildWithContext(ctx, task, childOpts, baseIndex+i, def, false)
		if pending {
			e.cfg.Oversight.RecordOutcome(task.ID, string(outcome.status))
		}
		outcomes = append(outcomes, outcome)
		if outcome.status == domain.TaskFailed {
			break
		}
	}
	return outcomes
}

// runChildWithContext is runChild but threads parentContext through to the
// child's run options, used for the sequential-path steward-nudge prepend.
func (e *Engine) runChildWithContext(ctx context.Context, parent *domain.Task, opts runOptions, index int, def domain.SubtaskDefinition, parallel bool) childOutcome {
	childID := newChildID(parent.ID, index)
	if e.cfg.OrgChart != nil {
		e.cfg.OrgChart.AddChild(childID, parent.ID, def.Description)
	}
	e.publish(events.NewSubtaskStart(parent.ID, childID, index, def.Description, parallel, time.Time{}))
	e.publish(events.NewTaskSubtaskCreated(parent.ID, childID, time.Time{}))

	status := e.runTaskSafe(ctx, runOptions{
		taskID:        childID,
		parentID:      parent.ID,
		description:   def.Description,
		depth:         opts.depth + 1,
		fileScope:     def.FileScope,
		skipAnalysis:  def.SkipAnalysis,
		parentContext: opts.parentContext,
	})

	e.publish(events.NewSubtaskComplete(parent.ID, childID, index, string(status), time.Time{}))

	return childOutcome{
		index:       index,
		taskID:      childID,
		description: def.Description,
		fileScope:   def.FileScope,
		status:      status,
		summary:     e.lastArtifactSummary(childID),
	}
}

// summaryLines renders every outcome's last-artifact summary as the
// composite QA cycle's completed-subtasks block.
func summaryLines(outcomes []childOutcome) string {
	var out string
	for _, o := range outcomes {
		out += subtaskSummaryLine(o.index, o.summary) + "\n"
	}
	return out
}

// compositeQACycle runs the coordinator merge, then the steward/oracle
// escalation loop, then (at depth 0) the final oracle pass, per §4.6
// steps 6-7.
func (e *Engine) compositeQACycle(ctx context.Context, task *domain.Task, opts runOptions, outcomes []childOutcome, seedStatus domain.TaskStatus) domain.TaskStatus {
	if seedStatus == domain.TaskFailed {
		// A parallel sibling already failed; still attempt the merge so
		// the coordinator can report what's salvageable, but the QA loop
		// below governs the final verdict.
	}

	var priorReviewNotes string
	coordinatorResult := e.runCoordinator(ctx, task, opts, outcomes, priorReviewNotes)
	if coordinatorResult.Status == domain.AgentCompleted {
		return domain.TaskCompleted
	}
	priorReviewNotes = coordinatorReviewNotes(coordinatorResult)

	var oracleNudge string
	lastCoordinatorStatus := coordinatorResult.Status

	for cycle := 1; cycle <= e.cfg.MaxCompositeCycles; cycle++ {
		e.publish(events.NewCompositeCycleStart(task.ID, cycle, time.Time{}))

		action := e.consultSteward(ctx, task, opts, outcomes, priorReviewNotes, oracleNudge)
		oracleNudge = ""

		if action == nil || action.Kind == domain.StewardEscalate {
			if opts.depth != 0 {
				return domain.TaskReview
			}
			action, oracleNudge = e.consultOracleAsSteward(ctx, task, opts, outcomes, priorReviewNotes)
			if action == nil && oracleNudge != "" {
				action = e.consultSteward(ctx, task, opts, outcomes, priorReviewNotes, oracleNudge)
				oracleNudge = ""
			}
			if action == nil || action.Kind == domain.StewardEscalate {
				return domain.TaskReview
			}
		}

		var completed bool
		outcomes, priorReviewNotes, coordinatorResult, completed = e.applyStewardAction(ctx, task, opts, outcomes, priorReviewNotes, *action)
		lastCoordinatorStatus = coordinatorResult.Status
		if completed {
			return domain.TaskCompleted
		}
	}

	if opts.depth == 0 {
		return e.finalOraclePass(ctx, task, opts, outcomes, priorReviewNotes, lastCoordinatorStatus)
	}
	if lastCoordinatorStatus == domain.AgentNeedsReview {
		return domain.TaskReview
	}
	return domain.TaskFailed
}

func (e *Engine) runCoordinator(ctx context.Context, task *domain.Task, opts runOptions, outcomes []childOutcome, priorReviewNotes string) domain.AgentResult {
	ctxText := coordinatorContext(opts.description, summaryLines(outcomes), priorReviewNotes)
	result := e.runAgent(ctx, tools.RoleCoordinator, task.ID, ctxText, defaultCoordinatorMaxTurns, nil)
	e.addArtifact(task, result.Artifact)
	return result
}

func coordinatorReviewNotes(result domain.AgentResult) string {
	if notes, ok := result.Artifact.Metadata["review_notes"].(string); ok && notes != "" {
		return notes
	}
	return result.Artifact.Content
}

// consultSteward runs the steward role and parses its chosen action.
func (e *Engine) consultSteward(ctx context.Context, task *domain.Task, opts runOptions, outcomes []childOutcome, reviewNotes, oracleNudge string) *domain.StewardAction {
	summaries := make([]string, len(outcomes))
	for i, o := range outcomes {
		summaries[i] = o.summary
	}
	ctxText := stewardContext(opts.description, summaries, qaSummary(outcomes), reviewNotes, oracleNudge)
	result := e.runAgent(ctx, tools.RoleSteward, task.ID, ctxText, defaultStewardMaxTurns, nil)
	e.addArtifact(task, result.Artifact)
	return parsers.ParseSteward(result.Artifact.Content)
}

func qaSummary(outcomes []childOutcome) string {
	failed := 0
	for _, o := range outcomes {
		if o.status != domain.TaskCompleted {
			failed++
		}
	}
	if failed == 0 {
		return "All subtasks completed; coordinator merge did not pass."
	}
	return "One or more subtasks did not complete cleanly; coordinator merge did not pass."
}

// consultOracleAsSteward consults the oracle and maps its action onto the
// steward action vocabulary, per §4.6's oracle-output mapping rule.
func (e *Engine) consultOracleAsSteward(ctx context.Context, task *domain.Task, opts runOptions, outcomes []childOutcome, reviewNotes string) (*domain.StewardAction, string) {
	childLines := make([]string, len(outcomes))
	for i, o := range outcomes {
		childLines[i] = o.description + ": " + string(o.status)
	}
	situation := "root steward escalated after exhausting composite QA cycles"
	ctxText := oracleContext(opts.description, situation, reviewNotes, childLines)

	e.publish(events.NewOracleInvoked(task.ID, clip(ctxText, 200), time.Time{}))
	result := e.runAgent(ctx, tools.RoleOracle, task.ID, ctxText, defaultOracleMaxTurns, nil)
	e.addArtifact(task, result.Artifact)

	oracleAction := parsers.ParseOracle(result.Artifact.Content)
	actionName := "escalate_to_user"
	if oracleAction != nil {
		actionName = string(oracleAction.Kind)
	}
	e.publish(events.NewOracleDecision(task.ID, actionName, time.Time{}))

	if oracleAction == nil {
		return &domain.StewardAction{Kind: domain.StewardEscalate}, ""
	}
	switch oracleAction.Kind {
	case domain.OracleNudgeRootSteward:
		return nil, oracleAction.Message // caller re-asks steward with this nudge
	case domain.OracleRetryOnce:
		return &domain.StewardAction{Kind: domain.StewardRetryMerge}, ""
	default:
		return &domain.StewardAction{Kind: domain.StewardEscalate}, ""
	}
}

// applyStewardAction performs the chosen steward action and re-runs the
// coordinator, per §4.6 step 6.2.
func (e *Engine) applyStewardAction(ctx context.Context, task *domain.Task, opts runOptions, outcomes []childOutcome, reviewNotes string, action domain.StewardAction) ([]childOutcome, string, domain.AgentResult, bool) {
	switch action.Kind {
	case domain.StewardRetryMerge:
		result := e.runCoordinator(ctx, task, opts, outcomes, reviewNotes)
		return outcomes, coordinatorReviewNotes(result), result, result.Status == domain.AgentCompleted

	case domain.StewardRetryChildren:
		for _, pos := range action.RetryChildIndices {
			if pos < 0 || pos >= len(outcomes) {
				continue
			}
			def := domain.SubtaskDefinition{Description: outcomes[pos].description, FileScope: outcomes[pos].fileScope}
			childOpts := opts
			childOpts.parentContext = stewardVoiceLine(action.Focus)
			outcomes[pos] = e.runChildWithContext(ctx, task, childOpts, outcomes[pos].index, def, false)
		}
		result := e.runCoordinator(ctx, task, opts, outcomes, reviewNotes)
		return outcomes, coordinatorReviewNotes(result), result, result.Status == domain.AgentCompleted

	case domain.StewardAddFixTask:
		desc := action.Description
		if desc == "" {
			desc = reviewNotes
		}
		fixDef := domain.SubtaskDefinition{Description: desc, SkipAnalysis: true}
		outcome := e.runChild(ctx, task, opts, len(outcomes), fixDef, false)
		outcomes = append(outcomes, outcome)
		result := e.runCoordinator(ctx, task, opts, outcomes, reviewNotes)
		return outcomes, coordinatorReviewNotes(result), result, result.Status == domain.AgentCompleted

	case domain.StewardReDecompose:
		plannerResult := e.runAgent(ctx, tools.RolePlanner, task.ID, redecomposeContext(opts.description), defaultPlannerMaxTurns, nil)
		e.addArtifact(task, plannerResult.Artifact)
		newPlan := parsers.ParsePlanner(plannerResult.Artifact.Content)
		if newPlan.Kind != domain.PlannerDecomposition || len(newPlan.Subtasks) == 0 {
			result := e.runCoordinator(ctx, task, opts, outcomes, reviewNotes)
			return outcomes, coordinatorReviewNotes(result), result, result.Status == domain.AgentCompleted
		}
		subtasks := filterDuplicateSetup(newPlan.Subtasks, newPlan.SetupSubtask)
		parallel := newPlan.Parallel && !haveOverlappingFileScopes(subtasks)
		newOutcomes := e.runSubtasks(ctx, task, opts, subtasks, parallel)
		result := e.runCoordinator(ctx, task, opts, newOutcomes, reviewNotes)
		return newOutcomes, coordinatorReviewNotes(result), result, result.Status == domain.AgentCompleted

	default:
		result := e.runCoordinator(ctx, task, opts, outcomes, reviewNotes)
		return outcomes, coordinatorReviewNotes(result), result, result.Status == domain.AgentCompleted
	}
}

// finalOraclePass implements §4.6 step 7, the root-only last resort after
// the composite QA cycle is exhausted.
func (e *Engine) finalOraclePass(ctx context.Context, task *domain.Task, opts runOptions, outcomes []childOutcome, reviewNotes string, lastCoordinatorStatus domain.AgentStatus) domain.TaskStatus {
	action, oracleNudge := e.consultOracleAsSteward(ctx, task, opts, outcomes, reviewNotes)

	if action == nil {
		stewardAction := e.consultSteward(ctx, task, opts, outcomes, reviewNotes, oracleNudge)
		if stewardAction != nil && stewardAction.Kind == domain.StewardRetryMerge {
			result := e.runCoordinator(ctx, task, opts, outcomes, reviewNotes)
			if result.Status == domain.AgentCompleted {
				return domain.TaskCompleted
			}
			lastCoordinatorStatus = result.Status
		}
	} else if action.Kind == domain.StewardRetryMerge {
		result := e.runCoordinator(ctx, task, opts, outcomes, reviewNotes)
		if result.Status == domain.AgentCompleted {
			return domain.TaskCompleted
		}
		lastCoordinatorStatus = result.Status
	}

	if lastCoordinatorStatus == domain.AgentNeedsReview {
		return domain.TaskReview
	}
	return domain.TaskFailed
}
