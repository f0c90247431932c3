package workflow

import (
	"context"
	"time"

	"babylon/internal/domain"
	"babylon/internal/events"
	"babylon/internal/tools"
)

// executeReviewCycle runs the executor and reviewer for one child, per
// §4.7. economy selects the small-task turn budgets and (if configured) a
// cheaper reviewer model.
func (e *Engine) executeReviewCycle(ctx context.Context, task *domain.Task, opts runOptions, specContext string, fileScope []string, economy bool) domain.TaskStatus {
	executorMaxTurns := defaultExecutorMaxTurns
	reviewerMaxTurns := defaultReviewerMaxTurns
	prefix := ""
	if economy {
		executorMaxTurns = defaultExecutorMaxTurnsEconomy
		reviewerMaxTurns = defaultReviewerMaxTurnsEconomy
		prefix = economyNudge + "\n\n"
	}

	executorContext := prefix + specContext
	var lastReviewNotes string

	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return domain.TaskFailed
		}

		executorResult := e.runAgent(ctx, tools.RoleExecutor, task.ID, executorContext, executorMaxTurns, fileScope)
		e.addArtifact(task, executorResult.Artifact)

		handoffNotes, _ := executorResult.Artifact.Metadata["handoff_notes"].(string)
		reviewCtx := reviewerContext(opts.description, specContext, executorSummary(executorResult.Artifact.Content), handoffNotes)

		reviewerRole := tools.RoleReviewer
		reviewerResult := e.runReviewer(ctx, reviewerRole, task.ID, reviewCtx, reviewerMaxTurns, economy)
		e.addArtifact(task, reviewerResult.Artifact)

		if reviewerResult.Status == domain.AgentCompleted {
			return domain.TaskCompleted
		}

		lastReviewNotes, _ = reviewerResult.Artifact.Metadata["review_notes"].(string)
		if lastReviewNotes == "" {
			lastReviewNotes = reviewerResult.Artifact.Content
		}

		if attempt < e.cfg.MaxRetries {
			e.publish(events.NewStepRetry(task.ID, task.ID, attempt+1, e.cfg.MaxRetries, "reviewer found issues", time.Time{}))
			nudge, _ := e.maybeOversightCheckIn(task.ID)
			executorContext = prefix + revisionExecutorContext(specContext, lastReviewNotes, nudge)
		}
	}

	return domain.TaskFailed
}

// runReviewer runs the reviewer role, substituting a cheaper configured
// model ("reviewer_economy") when economy is set and one is configured.
func (e *Engine) runReviewer(ctx context.Context, role, taskID, initialContext string, maxTurns int, economy bool) domain.AgentResult {
	client := e.clientFor(role)
	if economy {
		if economyClient, ok := e.cfg.Clients["reviewer_economy"]; ok {
			client = economyClient
		}
	}
	return e.runAgentWithClient(ctx, role, client, taskID, initialContext, maxTurns, nil)
}
