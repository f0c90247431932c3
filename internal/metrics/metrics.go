// Package metrics holds babylon's per-run Prometheus counters: agent
// turns, tool calls, token usage, and cost, all served over /metrics by
// Registry.Handler.
//
// Grounded on the teacher's go.mod observability stack
// (github.com/prometheus/client_golang), scoped down from the teacher's
// full HTTP-served metrics surface (internal/observability in the
// original tree) to the handful of counters SPEC_FULL.md's ambient stack
// names: turns, tool calls, cost, and tokens.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds one run's counters, isolated from the Go process default
// registry so tests can construct a fresh Registry without collisions.
type Registry struct {
	reg *prometheus.Registry

	Turns     *prometheus.CounterVec
	ToolCalls *prometheus.CounterVec
	Tokens    *prometheus.CounterVec
	CostUSD   *prometheus.CounterVec
}

// New constructs a Registry with every counter family registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		Turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "babylon_agent_turns_total",
			Help: "Agent turns executed, labeled by role.",
		}, []string{"role"}),
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "babylon_tool_calls_total",
			Help: "Tool invocations, labeled by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		Tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "babylon_tokens_total",
			Help: "Cumulative token usage, labeled by role and kind (prompt|completion).",
		}, []string{"role", "kind"}),
		CostUSD: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "babylon_cost_usd_total",
			Help: "Cumulative estimated spend in dollars, labeled by role.",
		}, []string{"role"}),
	}
	reg.MustRegister(r.Turns, r.ToolCalls, r.Tokens, r.CostUSD)
	return r
}

// Handler serves the registry's families in the Prometheus exposition
// format. Callers mount it at /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
