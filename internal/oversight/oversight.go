// Package oversight subscribes to the workflow event bus and keeps
// per-step state used to decide when a running task needs a steward
// check-in: a repeated-tool-call loop, an unusually long step, or a step
// that finished without completing cleanly.
//
// The teacher has no literal equivalent of this tracker; it is built in
// the idiom of the teacher's workflow.Listener subscriber pattern
// (internal/workflow/workflow.go), supplemented for this domain.
package oversight

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"babylon/internal/events"
)

const (
	defaultRepeatWindow   = 3
	defaultLongStepThreshold = 90 * time.Second
	toolHistoryCacheSize  = 256
)

// Signal names the derived conditions a check-in may act on.
type Signal string

const (
	SignalRepeatedSameTool       Signal = "repeatedSameTool"
	SignalLongStepDuration       Signal = "longStepDurationMs"
	SignalStepFailedOrNeedsReview Signal = "stepFailedOrNeedsReview"
)

type stepState struct {
	taskID    string
	role      string
	toolNames []string
	startedAt time.Time
	duration  time.Duration
	status    string
	completed bool
	signals   map[Signal]bool
}

// Tracker is a bus subscriber maintaining per-step tool-call history and
// deriving oversight signals at step:complete.
type Tracker struct {
	mu              sync.Mutex
	repeatWindow    int
	longStepThreshold time.Duration

	agentToStep map[string]string // agentID -> stepID
	steps       *lru.Cache[string, *stepState]

	lastNudge    map[string]string // taskID -> nudge string
	lastOutcome  map[string]string // taskID -> eventual child status
}

// Option configures a Tracker's thresholds.
type Option func(*Tracker)

// WithRepeatWindow overrides the trailing-tool-call window size (default 3).
func WithRepeatWindow(k int) Option {
	return func(t *Tracker) {
		if k > 0 {
			t.repeatWindow = k
		}
	}
}

// WithLongStepThreshold overrides the long-step duration threshold (default 90s).
func WithLongStepThreshold(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.longStepThreshold = d
		}
	}
}

// New constructs a Tracker subscribed to nothing yet; call Attach(bus) to
// start receiving events.
func New(opts ...Option) *Tracker {
	cache, _ := lru.New[string, *stepState](toolHistoryCacheSize) // size is positive, never errors
	t := &Tracker{
		repeatWindow:      defaultRepeatWindow,
		longStepThreshold: defaultLongStepThreshold,
		agentToStep:       make(map[string]string),
		steps:             cache,
		lastNudge:         make(map[string]string),
		lastOutcome:       make(map[string]string),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Attach subscribes the tracker to bus and returns the detach function.
func (t *Tracker) Attach(bus *events.Bus) (detach func()) {
	return bus.Subscribe(events.SubscriberFunc(t.OnEvent))
}

// OnEvent implements events.Subscriber.
func (t *Tracker) OnEvent(e events.Event) {
	switch ev := e.(type) {
	case *events.AgentSpawn:
		t.onAgentSpawn(ev)
	case *events.StepStart:
		t.onStepStart(ev)
	case *events.AgentToolCall:
		t.onToolCall(ev)
	case *events.StepComplete:
		t.onStepComplete(ev)
	}
}

func (t *Tracker) onAgentSpawn(ev *events.AgentSpawn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.agentToStep[ev.AgentID] = ev.StepID
}

func (t *Tracker) onStepStart(ev *events.StepStart) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps.Add(ev.StepID, &stepState{
		taskID:    ev.TaskID,
		role:      ev.Role,
		startedAt: time.Now(),
		signals:   make(map[Signal]bool),
	})
}

func (t *Tracker) onToolCall(ev *events.AgentToolCall) {
	t.mu.Lock()
	defer t.mu.Unlock()

	stepID, ok := t.agentToStep[ev.AgentID]
	if !ok {
		return
	}
	state, ok := t.steps.Get(stepID)
	if !ok {
		return
	}
	state.toolNames = append(state.toolNames, ev.ToolName)
}

func (t *Tracker) onStepComplete(ev *events.StepComplete) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.steps.Get(ev.StepID)
	if !ok {
		state = &stepState{taskID: ev.TaskID, role: ev.Role, signals: make(map[Signal]bool)}
	}
	state.duration = ev.Duration
	state.status = ev.Status
	state.completed = true

	if repeatedTail(state.toolNames, t.repeatWindow) {
		state.signals[SignalRepeatedSameTool] = true
	}
	if ev.Duration >= t.longStepThreshold {
		state.signals[SignalLongStepDuration] = true
	}
	if ev.Status != "completed" {
		state.signals[SignalStepFailedOrNeedsReview] = true
	}

	t.steps.Add(ev.StepID, state)
}

// repeatedTail reports whether the trailing k entries of names are all
// identical and non-empty.
func repeatedTail(names []string, k int) bool {
	if k <= 0 || len(names) < k {
		return false
	}
	tail := names[len(names)-k:]
	first := tail[0]
	if first == "" {
		return false
	}
	for _, n := range tail[1:] {
		if n != first {
			return false
		}
	}
	return true
}

// SignalsForTask returns the union of signals currently held by every step
// belonging to taskID, then clears them — signals are consumed by a
// check-in, per the spec's "cleared after consumed" rule.
func (t *Tracker) SignalsForTask(taskID string) []Signal {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[Signal]bool)
	for _, key := range t.steps.Keys() {
		state, ok := t.steps.Peek(key)
		if !ok || state.taskID != taskID {
			continue
		}
		for sig := range state.signals {
			seen[sig] = true
		}
		state.signals = make(map[Signal]bool)
	}

	out := make([]Signal, 0, len(seen))
	for sig := range seen {
		out = append(out, sig)
	}
	return out
}

// RecordNudge stores the nudge string issued for taskID's check-in. The
// status the affected child resolves to is stored by RecordOutcome.
func (t *Tracker) RecordNudge(taskID, nudge string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastNudge[taskID] = nudge
}

// RecordOutcome stores the eventual child status following a nudge.
func (t *Tracker) RecordOutcome(taskID, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastOutcome[taskID] = status
}

// LastNudge returns the most recent nudge issued for taskID, if any.
func (t *Tracker) LastNudge(taskID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.lastNudge[taskID]
	return n, ok
}

// LastOutcome returns the eventual child status following the last nudge
// for taskID, if any.
func (t *Tracker) LastOutcome(taskID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.lastOutcome[taskID]
	return o, ok
}
