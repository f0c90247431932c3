package workflow

import (
	"fmt"
	"strings"

	"babylon/internal/domain"
)

// PromptProvider resolves the fixed system-prompt asset for a role.
// internal/prompts implements this over an embedded asset set.
type PromptProvider interface {
	SystemPrompt(role string) string
}

// clip truncates s to at most n characters, matching the spec's various
// "≤ N chars" context-building rules.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// withParentContext prepends a subtask's inherited parent-context text (set
// when a decomposition launches a child) ahead of its own spec/description.
func withParentContext(opts runOptions, text string) string {
	if opts.parentContext == "" {
		return text
	}
	return opts.parentContext + "\n\n" + text
}

func stewardVoiceLine(nudge string) string {
	if nudge == "" {
		return ""
	}
	return fmt.Sprintf("--- STEWARD NOTE ---\n%s\n", nudge)
}

func analyzerContext(description string) string {
	return description
}

func plannerContext(description string, analysis domain.AnalyzerOutput) string {
	var sb strings.Builder
	sb.WriteString("Task: ")
	sb.WriteString(description)
	sb.WriteString("\n\nAnalysis:\n")
	sb.WriteString(analysis.Summary)
	if analysis.RecommendedApproach != "" {
		sb.WriteString("\nRecommended approach: ")
		sb.WriteString(analysis.RecommendedApproach)
	}
	if len(analysis.AffectedFiles) > 0 {
		sb.WriteString("\nAffected files: ")
		sb.WriteString(strings.Join(analysis.AffectedFiles, ", "))
	}
	return sb.String()
}

func redecomposeContext(description string) string {
	return "Re-decompose this task: " + description
}

func maxDepthSpecContext(description string) string {
	return description + "\n\nMax decomposition depth reached; implement as a single unit of work."
}

// executorSummary clips an executor's artifact content to ≤ 500 chars, the
// cap the reviewer context uses per spec §4.7 step 3.
func executorSummary(content string) string {
	return clip(content, 500)
}

func reviewerContext(originalTask, specContext, executorSummaryText, handoffNotes string) string {
	var sb strings.Builder
	sb.WriteString("Original task: ")
	sb.WriteString(originalTask)
	sb.WriteString("\n\nSpec/context:\n")
	sb.WriteString(specContext)
	sb.WriteString("\n\nExecutor summary:\n")
	sb.WriteString(executorSummaryText)
	if handoffNotes != "" {
		sb.WriteString("\n\nExecutor handoff notes:\n")
		sb.WriteString(handoffNotes)
	}
	return sb.String()
}

func revisionExecutorContext(specContext, reviewNotes, pendingNudge string) string {
	var sb strings.Builder
	sb.WriteString(specContext)
	sb.WriteString("\n--- REVISION REQUIRED ---\n")
	sb.WriteString("The Mirror (reviewer) found issues with your previous implementation:\n")
	sb.WriteString(reviewNotes)
	sb.WriteString("\nFix ONLY the issues described above. Do not change anything else.")
	if pendingNudge != "" {
		sb.WriteString("\n")
		sb.WriteString(stewardVoiceLine(pendingNudge))
	}
	return sb.String()
}

// subtaskSummaryLine formats one child's last artifact for the composite
// QA cycle's completed-subtasks summary, per runDecomposition step 6.
func subtaskSummaryLine(index int, artifactContent string) string {
	return fmt.Sprintf("Subtask %d: %s", index, clip(artifactContent, 200))
}

func coordinatorContext(originalTask, subtaskSummaries, priorReviewNotes string) string {
	var sb strings.Builder
	sb.WriteString("Original task: ")
	sb.WriteString(originalTask)
	sb.WriteString("\n\nCompleted subtasks:\n")
	sb.WriteString(subtaskSummaries)
	sb.WriteString("\n\nMerge the subtask results and run the full test suite. Call complete_task with status completed once the merged result passes, or needs_review/failed with review_notes describing what is broken.")
	if priorReviewNotes != "" {
		sb.WriteString("\n\nPrior review notes:\n")
		sb.WriteString(priorReviewNotes)
	}
	return sb.String()
}

// stewardContext formats the steward invocation context, per the
// "Steward invocation" rules in §4.6.
func stewardContext(originalTask string, subtaskSummaries []string, qaSummary, reviewNotes, oracleNudge string) string {
	var sb strings.Builder
	sb.WriteString("Original task: ")
	sb.WriteString(originalTask)
	sb.WriteString("\n\nSubtasks:\n")
	for i, s := range subtaskSummaries {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i, clip(s, 150)))
	}
	sb.WriteString("\nMerge/QA result:\n")
	sb.WriteString(clip(qaSummary, 300))
	if reviewNotes != "" {
		sb.WriteString("\n\nReview notes:\n")
		sb.WriteString(reviewNotes)
	}
	sb.WriteString("\n\nDecide the next action and call complete_task with content = JSON: {action, ...}.")

	if oracleNudge != "" {
		return fmt.Sprintf("The Oracle says: %s\n\n%s", oracleNudge, sb.String())
	}
	return sb.String()
}

// oracleContext formats the oracle's terse snapshot, per §4.6.
func oracleContext(rootTask, rootStewardSituation, reviewNotes string, childLines []string) string {
	var sb strings.Builder
	sb.WriteString("Root task: ")
	sb.WriteString(rootTask)
	sb.WriteString("\nSituation: ")
	sb.WriteString(rootStewardSituation)
	if reviewNotes != "" {
		sb.WriteString("\nReview notes: ")
		sb.WriteString(clip(reviewNotes, 500))
	}
	for _, line := range childLines {
		sb.WriteString("\n- ")
		sb.WriteString(clip(line, 80))
	}
	return sb.String()
}
