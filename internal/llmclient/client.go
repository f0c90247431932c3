// Package llmclient provides a thin, provider-normalizing HTTP client for
// the two chat-completion providers the runtime talks to. Providers are
// external collaborators: this package's only job is to translate a single
// request/response shape across their wire formats and to classify errors
// as retryable or fatal for the agent runtime's retry loop.
package llmclient

import (
	"context"

	"babylon/internal/domain"
	"babylon/internal/events"
	"babylon/internal/toolkit"
)

// CompletionRequest is the provider-agnostic shape the agent runtime builds
// for every LLM call.
type CompletionRequest struct {
	Messages      []domain.Message
	Tools         []toolkit.ToolDefinition
	Temperature   float64
	MaxTokens     int
	StopSequences []string
}

// CompletionResponse is the provider-agnostic shape every Client normalizes
// its response into.
type CompletionResponse struct {
	Content    string
	ToolCalls  []toolkit.ToolCall
	StopReason string
	Usage      events.TokenUsage
}

// Client is implemented by every provider-specific chat-completion client.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	Model() string
}

// Config carries the provider connection details the runfacade resolves
// from configuration before constructing a Client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout int // seconds, 0 uses the provider default
	Headers map[string]string
}
