package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// extractToolName is the tool Anthropic models are forced to call; its input
// is the structured record.
const extractToolName = "extract_record"

// Known Anthropic model pricing (per token, USD)
var anthropicPricing = map[string]pricing{
	"claude-opus-4-20250514":    {15.0 / 1_000_000, 75.0 / 1_000_000},
	"claude-sonnet-4-20250514":  {3.0 / 1_000_000, 15.0 / 1_000_000},
	"claude-3-5-haiku-20241022": {0.80 / 1_000_000, 4.0 / 1_000_000},
}

// AnthropicProvider implements Provider using forced tool use for
// structured output, since the Messages API has no response_format.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

// NewAnthropicProvider creates a new Anthropic provider. The SDK's own
// retries are disabled; callers own the retry budget.
func NewAnthropicProvider(cfg ProviderConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, option.WithHeader("User-Agent", cfg.UserAgent))
	}
	if cfg.HTTPTimeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel("anthropic")
	}

	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

// Execute sends a completion request to Anthropic.
func (p *AnthropicProvider) Execute(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	var systemPrompt string

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			systemPrompt = msg.Content
		case RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	if req.JSONSchema != nil {
		properties, _ := req.JSONSchema["properties"].(map[string]any)
		params.Tools = []anthropic.ToolUnionParam{
			{
				OfTool: &anthropic.ToolParam{
					Name:        extractToolName,
					Description: anthropic.String("Record the structured data extracted from the document."),
					InputSchema: anthropic.ToolInputSchemaParam{
						Type:       "object",
						Properties: properties,
						Required:   requiredFields(req.JSONSchema),
					},
				},
			},
		}
		params.ToolChoice = anthropic.ToolChoiceParamOfTool(extractToolName)
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		status := 0
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		return nil, newAPIError(p.Name(), status, err)
	}

	var content string
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			if content == "" {
				content = b.Text
			}
		case anthropic.ToolUseBlock:
			// The tool input is the record itself and wins over any text.
			jsonBytes, err := json.Marshal(b.Input)
			if err != nil {
				return nil, &APIError{Provider: p.Name(), Class: ClassPermanent, Err: fmt.Errorf("marshal tool input: %w", err)}
			}
			content = string(jsonBytes)
		}
	}

	usage := Usage{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}

	return &Response{
		Content:      content,
		FinishReason: string(resp.StopReason),
		Usage:        usage,
		Model:        string(resp.Model),
		Cost:         p.EstimateCost(p.model, usage.InputTokens, usage.OutputTokens),
		Duration:     time.Since(start),
	}, nil
}

// requiredFields reads the schema's required list, which may be []string
// when built in process or []any when decoded from JSON.
func requiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Name returns the provider identifier.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Model returns the configured model name.
func (p *AnthropicProvider) Model() string {
	return p.model
}

// EstimateCost calculates cost based on known Anthropic pricing, falling
// back to Sonnet pricing for unknown models.
func (p *AnthropicProvider) EstimateCost(modelID string, inputTokens, outputTokens int) float64 {
	if pr, ok := anthropicPricing[modelID]; ok {
		return pr.cost(inputTokens, outputTokens)
	}
	return anthropicPricing["claude-sonnet-4-20250514"].cost(inputTokens, outputTokens)
}

var (
	_ Provider      = (*AnthropicProvider)(nil)
	_ CostEstimator = (*AnthropicProvider)(nil)
)
