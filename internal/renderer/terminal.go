package renderer

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"

	"babylon/internal/events"
)

// roleColors mirrors each role with a stable color across a run, so a
// reader can track a role's lines down a scrolling terminal by color alone.
var roleColors = map[string]*color.Color{
	"analyzer":    color.New(color.FgCyan),
	"planner":     color.New(color.FgBlue),
	"executor":    color.New(color.FgGreen),
	"reviewer":    color.New(color.FgMagenta),
	"coordinator": color.New(color.FgYellow),
	"steward":     color.New(color.FgHiYellow),
	"oracle":      color.New(color.FgHiRed),
}

var (
	statusGood = color.New(color.FgGreen, color.Bold)
	statusBad  = color.New(color.FgRed, color.Bold)
	statusWarn = color.New(color.FgYellow, color.Bold)
	dim        = color.New(color.FgHiBlack)
)

func colorForRole(role string) *color.Color {
	if c, ok := roleColors[role]; ok {
		return c
	}
	return color.New(color.FgWhite)
}

func statusColor(status string) *color.Color {
	switch status {
	case "completed":
		return statusGood
	case "failed":
		return statusBad
	case "needs_review":
		return statusWarn
	default:
		return dim
	}
}

// terminalRenderer prints one colored line per event, grounded on the
// teacher's cobra_cli.go status-line helpers.
type terminalRenderer struct {
	mu  sync.Mutex
	out io.Writer
}

func newTerminalRenderer(out io.Writer) *terminalRenderer {
	if out == nil {
		out = os.Stdout
	}
	return &terminalRenderer{out: out}
}

func (r *terminalRenderer) Close() error { return nil }

func (r *terminalRenderer) OnEvent(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	line := r.render(e)
	if line == "" {
		return
	}
	fmt.Fprintln(r.out, line)
}

func (r *terminalRenderer) render(e events.Event) string {
	switch ev := e.(type) {
	case *events.WorkflowStart:
		return statusColor("in_progress").Sprint("▶ ") + fmt.Sprintf("workflow %s: %s", ev.TaskID, truncateWithEllipsis(ev.Description, 120))

	case *events.WorkflowComplete:
		return statusColor(ev.Status).Sprintf("■ workflow %s %s", ev.TaskID, ev.Status) + dim.Sprintf(" (%s)", formatDurationShort(ev.Duration))

	case *events.StepStart:
		return colorForRole(ev.Role).Sprintf("  %s", ev.Role) + dim.Sprintf(" start task=%s", ev.TaskID)

	case *events.StepComplete:
		status := statusColor(ev.Status).Sprint(ev.Status)
		return colorForRole(ev.Role).Sprintf("  %s", ev.Role) + fmt.Sprintf(" %s", status) +
			dim.Sprintf(" task=%s model=%s %s tokens=%d", ev.TaskID, ev.Model, formatDurationShort(ev.Duration), ev.Usage.TotalTokens)

	case *events.StepRetry:
		return statusWarn.Sprint("  ↻ retry") + dim.Sprintf(" task=%s attempt=%d/%d reason=%s", ev.TaskID, ev.Attempt, ev.MaxRetries, ev.Reason)

	case *events.AgentToolCall:
		args := formatArgs(ev.Arguments)
		if args != "" {
			args = " " + dim.Sprint(args)
		}
		return dim.Sprintf("    → %s", ev.ToolName) + args

	case *events.AgentToolResult:
		if ev.IsError {
			return statusBad.Sprintf("    ✗ %s", ev.ToolName) + dim.Sprintf(" (%dms)", ev.DurationMs)
		}
		return dim.Sprintf("    ✓ %s (%dms)", ev.ToolName, ev.DurationMs)

	case *events.SubtaskStart:
		kind := "sequential"
		if ev.Parallel {
			kind = "parallel"
		}
		return colorForRole("").Sprintf("  ⊢ subtask %d (%s)", ev.Index, kind) + dim.Sprintf(" %s", truncateWithEllipsis(ev.Description, 100))

	case *events.SubtaskComplete:
		return statusColor(ev.Status).Sprintf("  ⊣ subtask %d %s", ev.Index, ev.Status)

	case *events.CompositeCycleStart:
		return statusWarn.Sprintf("  ⟲ composite QA cycle %d", ev.Cycle) + dim.Sprintf(" task=%s", ev.TaskID)

	case *events.OracleInvoked:
		return statusBad.Sprint("  ⚑ oracle invoked") + dim.Sprintf(" %s", truncateWithEllipsis(ev.SnapshotSummary, 100))

	case *events.OracleDecision:
		return statusWarn.Sprintf("  ⚑ oracle decided: %s", ev.Action)

	case *events.OversightCheckIn:
		return statusWarn.Sprintf("  ⚠ oversight [%v]", ev.Signals) + dim.Sprintf(" %s", truncateWithEllipsis(ev.Nudge, 100))

	case *events.CostUpdate:
		return dim.Sprintf("  $ total=$%.4f", ev.TotalCost)

	case *events.TaskStatusChange:
		return dim.Sprintf("  task %s: %s -> %s", ev.TaskID, ev.From, ev.To)

	default:
		return ""
	}
}
