package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaProvider communicates with a local Ollama instance over its HTTP
// chat endpoint. Ollama is self-hosted, so it needs no credential.
type OllamaProvider struct {
	baseURL   string
	model     string
	userAgent string
	client    *http.Client
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(cfg ProviderConfig) (*OllamaProvider, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel("ollama")
	}

	return &OllamaProvider{
		baseURL:   baseURL,
		model:     model,
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: cfg.HTTPTimeout},
	}, nil
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Format   json.RawMessage `json:"format,omitempty"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	DoneReason      string        `json:"done_reason"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

// Execute sends a completion request to Ollama.
func (p *OllamaProvider) Execute(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	messages := make([]ollamaMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, ollamaMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	ollamaReq := ollamaRequest{
		Model:    p.model,
		Messages: messages,
		Stream:   false,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	}

	// Ollama constrains output to a JSON schema passed in the format field.
	if req.JSONSchema != nil {
		schemaBytes, err := json.Marshal(req.JSONSchema)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON schema: %w", err)
		}
		ollamaReq.Format = schemaBytes
	}

	body, err := json.Marshal(ollamaReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.userAgent != "" {
		httpReq.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, newAPIError(p.Name(), 0, fmt.Errorf("request failed: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, newAPIError(p.Name(), resp.StatusCode, fmt.Errorf("%s", strings.TrimSpace(string(bodyBytes))))
	}

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return nil, newAPIError(p.Name(), 0, fmt.Errorf("failed to decode response: %w", err))
	}

	finish := ollamaResp.DoneReason
	if finish == "" {
		finish = "stop"
	}

	return &Response{
		Content:      ollamaResp.Message.Content,
		FinishReason: finish,
		Usage: Usage{
			InputTokens:  ollamaResp.PromptEvalCount,
			OutputTokens: ollamaResp.EvalCount,
		},
		Model:    ollamaResp.Model,
		Duration: time.Since(start),
	}, nil
}

// Name returns the provider identifier.
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// Model returns the configured model name.
func (p *OllamaProvider) Model() string {
	return p.model
}

var _ Provider = (*OllamaProvider)(nil)
