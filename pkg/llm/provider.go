// Package llm provides a small chat-with-structured-output interface over
// the LLM backends prima can talk to.
package llm

import (
	"context"
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a chat message.
type Message struct {
	Role    Role
	Content string
}

// Request represents a completion request to the LLM.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
	JSONSchema  map[string]any // For structured output
	SchemaName  string         // Name reported to providers that label schemas
	StrictMode  bool           // Ask the provider to enforce the schema exactly
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response represents the result of an LLM execution.
type Response struct {
	Content      string
	FinishReason string
	Usage        Usage
	Model        string // Model reported by the provider
	Cost         float64
	Duration     time.Duration
}

// Provider is the interface all LLM backends implement.
type Provider interface {
	// Execute sends a completion request and returns the response.
	Execute(ctx context.Context, req Request) (*Response, error)

	// Name returns the provider identifier (e.g., "openai", "anthropic").
	Name() string

	// Model returns the configured model name.
	Model() string
}

// CostEstimator is an optional interface for providers that can estimate
// costs based on token counts without making an API call.
type CostEstimator interface {
	EstimateCost(modelID string, inputTokens, outputTokens int) float64
}

// ProviderConfig holds common configuration for providers.
type ProviderConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	UserAgent string
	// HTTPTimeout bounds the underlying HTTP client. Per-request deadlines
	// come from the caller's context.
	HTTPTimeout time.Duration
}

// pricing is a per-token price pair in USD.
type pricing struct {
	prompt     float64
	completion float64
}

func (p pricing) cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*p.prompt + float64(outputTokens)*p.completion
}
