// Package toolkit defines the tool surface primitives agents invoke:
// ToolCall/ToolResult/ToolDefinition, the ToolExecutor/ToolRegistry
// contracts, and the path-safety and truncation helpers every filesystem
// tool relies on.
package toolkit

import (
	"context"
	"fmt"
)

// ToolCall is a single invocation request decoded from the LLM's function call.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolResult is the outcome of executing a ToolCall. Tool execution never
// throws into the agent loop: failures are reported as IsError=true with a
// diagnostic Content message.
type ToolResult struct {
	Content  string
	IsError  bool
	Metadata map[string]any
}

// ErrorResult builds a ToolResult carrying a diagnostic error message.
func ErrorResult(format string, args ...any) *ToolResult {
	return &ToolResult{Content: fmt.Sprintf(format, args...), IsError: true}
}

// ToolContext carries the scoping and cancellation state every tool
// execution needs: identity, absolute working directory, optional
// file-scope prefixes, and the shared cancellation handle (via ctx).
type ToolContext struct {
	TaskID     string
	AgentID    string
	WorkingDir string
	FileScope  []string
}

// Property describes a single JSON-Schema-like tool parameter.
type Property struct {
	Type        string
	Description string
	Enum        []any
}

// ParameterSchema is a JSON-Schema-like object describing a tool's parameters.
type ParameterSchema struct {
	Type       string
	Properties map[string]Property
	Required   []string
}

// ToolDefinition describes a tool to the LLM.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  ParameterSchema
}

// ToolExecutor is a single named operation an agent may invoke.
type ToolExecutor interface {
	Definition() ToolDefinition
	Execute(ctx context.Context, tc ToolContext, call ToolCall) (*ToolResult, error)
}

// Registry manages the set of tools available to a role.
type Registry interface {
	Register(tool ToolExecutor) error
	Get(name string) (ToolExecutor, bool)
	List() []ToolDefinition
}

type registry struct {
	tools map[string]ToolExecutor
	order []string
}

// NewRegistry constructs an empty tool registry.
func NewRegistry() Registry {
	return &registry{tools: make(map[string]ToolExecutor)}
}

func (r *registry) Register(tool ToolExecutor) error {
	if tool == nil {
		return fmt.Errorf("toolkit: cannot register nil tool")
	}
	name := tool.Definition().Name
	if name == "" {
		return fmt.Errorf("toolkit: tool definition missing name")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("toolkit: tool %q already registered", name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

func (r *registry) Get(name string) (ToolExecutor, bool) {
	t, ok := r.tools[name]
	return t, ok
}

func (r *registry) List() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Execute looks up the named tool and runs it, returning the "Unknown tool"
// ToolResult the agent runtime needs when a name has no registered executor.
func Execute(ctx context.Context, reg Registry, tc ToolContext, call ToolCall) (*ToolResult, error) {
	tool, ok := reg.Get(call.Name)
	if !ok {
		return &ToolResult{Content: fmt.Sprintf("Unknown tool: %s", call.Name), IsError: true}, nil
	}
	return tool.Execute(ctx, tc, call)
}
