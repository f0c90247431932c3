package oversight

import (
	"testing"
	"time"

	"babylon/internal/events"
)

func TestRepeatedSameToolSignalFiresOnThreeIdenticalCalls(t *testing.T) {
	tr := New()
	tr.OnEvent(events.NewAgentSpawn("agent-1", "step-1", "task-1", "executor", time.Time{}))
	tr.OnEvent(events.NewStepStart("step-1", "task-1", "executor", time.Time{}))
	for i := 0; i < 3; i++ {
		tr.OnEvent(events.NewAgentToolCall("agent-1", "call", "run_terminal_command", nil, time.Time{}))
	}
	tr.OnEvent(events.NewStepComplete("step-1", "task-1", "executor", "claude-3-5-sonnet", "completed", 5*time.Second, events.TokenUsage{}, events.TokenUsage{}, time.Time{}))

	signals := tr.SignalsForTask("task-1")
	if !hasSignal(signals, SignalRepeatedSameTool) {
		t.Fatalf("expected repeatedSameTool signal, got %v", signals)
	}
}

func TestRepeatedSameToolSignalDoesNotFireOnMixedCalls(t *testing.T) {
	tr := New()
	tr.OnEvent(events.NewAgentSpawn("agent-1", "step-1", "task-1", "executor", time.Time{}))
	tr.OnEvent(events.NewStepStart("step-1", "task-1", "executor", time.Time{}))
	tr.OnEvent(events.NewAgentToolCall("agent-1", "c1", "read_file", nil, time.Time{}))
	tr.OnEvent(events.NewAgentToolCall("agent-1", "c2", "write_file", nil, time.Time{}))
	tr.OnEvent(events.NewAgentToolCall("agent-1", "c3", "read_file", nil, time.Time{}))
	tr.OnEvent(events.NewStepComplete("step-1", "task-1", "executor", "claude-3-5-sonnet", "completed", time.Second, events.TokenUsage{}, events.TokenUsage{}, time.Time{}))

	signals := tr.SignalsForTask("task-1")
	if hasSignal(signals, SignalRepeatedSameTool) {
		t.Fatalf("did not expect repeatedSameTool, got %v", signals)
	}
}

func TestLongStepDurationSignalFiresAboveThreshold(t *testing.T) {
	tr := New(WithLongStepThreshold(10 * time.Second))
	tr.OnEvent(events.NewStepStart("step-1", "task-1", "executor", time.Time{}))
	tr.OnEvent(events.NewStepComplete("step-1", "task-1", "executor", "claude-3-5-sonnet", "completed", 30*time.Second, events.TokenUsage{}, events.TokenUsage{}, time.Time{}))

	signals := tr.SignalsForTask("task-1")
	if !hasSignal(signals, SignalLongStepDuration) {
		t.Fatalf("expected longStepDurationMs signal, got %v", signals)
	}
}

func TestStepFailedSignalFiresOnNonCompletedStatus(t *testing.T) {
	tr := New()
	tr.OnEvent(events.NewStepStart("step-1", "task-1", "executor", time.Time{}))
	tr.OnEvent(events.NewStepComplete("step-1", "task-1", "executor", "claude-3-5-sonnet", "failed", time.Second, events.TokenUsage{}, events.TokenUsage{}, time.Time{}))

	signals := tr.SignalsForTask("task-1")
	if !hasSignal(signals, SignalStepFailedOrNeedsReview) {
		t.Fatalf("expected stepFailedOrNeedsReview signal, got %v", signals)
	}
}

func TestSignalsForTaskClearsAfterConsumption(t *testing.T) {
	tr := New()
	tr.OnEvent(events.NewStepStart("step-1", "task-1", "executor", time.Time{}))
	tr.OnEvent(events.NewStepComplete("step-1", "task-1", "executor", "claude-3-5-sonnet", "failed", time.Second, events.TokenUsage{}, events.TokenUsage{}, time.Time{}))

	first := tr.SignalsForTask("task-1")
	if len(first) == 0 {
		t.Fatalf("expected at least one signal on first read")
	}
	second := tr.SignalsForTask("task-1")
	if len(second) != 0 {
		t.Fatalf("expected signals cleared after consumption, got %v", second)
	}
}

func TestRecordAndReadNudgeOutcome(t *testing.T) {
	tr := New()
	tr.RecordNudge("task-1", "please hurry")
	tr.RecordOutcome("task-1", "completed")

	nudge, ok := tr.LastNudge("task-1")
	if !ok || nudge != "please hurry" {
		t.Fatalf("got %q, %v", nudge, ok)
	}
	outcome, ok := tr.LastOutcome("task-1")
	if !ok || outcome != "completed" {
		t.Fatalf("got %q, %v", outcome, ok)
	}
}

func hasSignal(signals []Signal, target Signal) bool {
	for _, s := range signals {
		if s == target {
			return true
		}
	}
	return false
}
