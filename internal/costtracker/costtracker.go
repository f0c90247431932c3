// Package costtracker subscribes to step:complete events, costs each one
// against a per-model price table, and publishes running totals. If a
// monetary budget is configured and exceeded, it triggers the run's
// cancellation.
//
// Grounded on the teacher's internal/agent/ports/cost.go (GetModelPricing,
// CalculateCost) and internal/agent/app/cost_tracker.go (aggregateRecords,
// Export), adapted from a per-session store-backed tracker to a bus
// subscriber accumulating in memory for the lifetime of one run.
package costtracker

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"babylon/internal/events"
	"babylon/internal/metrics"
)

// Tracker accumulates cost totals for a single run, keyed by role and by
// model, and enforces an optional monetary budget ceiling.
type Tracker struct {
	mu      sync.Mutex
	bus     *events.Bus
	cancel  func()
	budget  *float64
	metrics *metrics.Registry

	totalCost float64
	byRole    map[string]float64
	byModel   map[string]float64
	records   []Record

	// inflight holds, per step, the priced cost of that step's cumulative
	// usage so far — a provisional figure superseded once the step's
	// StepComplete lands and folds its usage into totalCost. Kept only so
	// the budget ceiling can be checked on every token update, not just
	// once a whole step (possibly many turns) finishes.
	inflight map[string]float64
}

// Record is one priced step:complete event, retained for export.
type Record struct {
	StepID       string
	TaskID       string
	Role         string
	Model        string
	PromptTokens int
	OutputTokens int
	Cost         float64
}

// New constructs a Tracker that publishes cost:update on bus and invokes
// cancel (if non-nil) the moment the running total exceeds budget (if
// non-nil). reg, if non-nil, also gets every priced step mirrored into its
// token and cost counters.
func New(bus *events.Bus, cancel func(), budget *float64, reg *metrics.Registry) *Tracker {
	return &Tracker{
		bus:      bus,
		cancel:   cancel,
		budget:   budget,
		metrics:  reg,
		byRole:   make(map[string]float64),
		byModel:  make(map[string]float64),
		inflight: make(map[string]float64),
	}
}

// Attach subscribes the tracker to its bus and returns the detach function.
func (t *Tracker) Attach() (detach func()) {
	return t.bus.Subscribe(events.SubscriberFunc(t.OnEvent))
}

// OnEvent implements events.Subscriber.
func (t *Tracker) OnEvent(e events.Event) {
	switch ev := e.(type) {
	case *events.StepComplete:
		t.onStepComplete(ev)
	case *events.TokenUpdate:
		t.onTokenUpdate(ev)
	}
}

// onStepComplete folds one finished step's total usage into the
// committed totals, records it for export, and checks the budget.
func (t *Tracker) onStepComplete(ev *events.StepComplete) {
	cost := Cost(ev.Model, ev.Usage.PromptTokens, ev.Usage.CompletionTokens)

	if t.metrics != nil {
		t.metrics.CostUSD.WithLabelValues(ev.Role).Add(cost)
		t.metrics.Tokens.WithLabelValues(ev.Role, "prompt").Add(float64(ev.Usage.PromptTokens))
		t.metrics.Tokens.WithLabelValues(ev.Role, "completion").Add(float64(ev.Usage.CompletionTokens))
	}

	t.mu.Lock()
	t.totalCost += cost
	t.byRole[ev.Role] += cost
	t.byModel[ev.Model] += cost
	t.records = append(t.records, Record{
		StepID: ev.StepID, TaskID: ev.TaskID, Role: ev.Role, Model: ev.Model,
		PromptTokens: ev.Usage.PromptTokens, OutputTokens: ev.Usage.CompletionTokens, Cost: cost,
	})
	delete(t.inflight, ev.StepID)

	totalCost := t.totalCost
	byRole := cloneMap(t.byRole)
	byModel := cloneMap(t.byModel)
	exceeded := t.budget != nil && t.totalCost > *t.budget
	t.mu.Unlock()

	t.bus.Publish(events.NewCostUpdate(totalCost, byRole, byModel, ev.Timestamp()))

	if exceeded && t.cancel != nil {
		t.cancel()
	}
}

// onTokenUpdate re-checks the budget against each step's cumulative usage
// as it happens, rather than waiting for the step to finish (which may be
// many turns away): a ceiling exceeded mid-step must stop the next turn
// from starting, not just the next step. The step's provisional cost is
// tracked in inflight, keyed by StepID, and superseded by the committed
// total once its StepComplete arrives — it is never folded into
// totalCost/byRole/byModel itself, so it can't double-count what
// StepComplete will add.
func (t *Tracker) onTokenUpdate(ev *events.TokenUpdate) {
	cost := Cost(ev.Model, ev.CumulativeUsage.PromptTokens, ev.CumulativeUsage.CompletionTokens)

	t.mu.Lock()
	t.inflight[ev.StepID] = cost
	provisional := t.totalCost
	for _, c := range t.inflight {
		provisional += c
	}
	exceeded := t.budget != nil && provisional > *t.budget
	t.mu.Unlock()

	if exceeded && t.cancel != nil {
		t.cancel()
	}
}

// TotalCost returns the running total.
func (t *Tracker) TotalCost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalCost
}

// Breakdown returns the running totals by role and by model.
func (t *Tracker) Breakdown() (byRole, byModel map[string]float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneMap(t.byRole), cloneMap(t.byModel)
}

// ExportJSON serializes every recorded step as a JSON array.
func (t *Tracker) ExportJSON() ([]byte, error) {
	t.mu.Lock()
	records := append([]Record(nil), t.records...)
	t.mu.Unlock()
	return json.MarshalIndent(records, "", "  ")
}

// ExportCSV serializes every recorded step as CSV, one row per step.
func (t *Tracker) ExportCSV() ([]byte, error) {
	t.mu.Lock()
	records := append([]Record(nil), t.records...)
	t.mu.Unlock()

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write([]string{"step_id", "task_id", "role", "model", "prompt_tokens", "output_tokens", "cost"}); err != nil {
		return nil, err
	}
	for _, r := range records {
		if err := w.Write([]string{
			r.StepID, r.TaskID, r.Role, r.Model,
			fmt.Sprintf("%d", r.PromptTokens), fmt.Sprintf("%d", r.OutputTokens), fmt.Sprintf("%.6f", r.Cost),
		}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

func cloneMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
