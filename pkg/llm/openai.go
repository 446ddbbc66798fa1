package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Known OpenAI model pricing (per token, USD)
var openaiPricing = map[string]pricing{
	"gpt-4o":       {2.50 / 1_000_000, 10.0 / 1_000_000},
	"gpt-4o-mini":  {0.15 / 1_000_000, 0.60 / 1_000_000},
	"gpt-4.1":      {2.00 / 1_000_000, 8.00 / 1_000_000},
	"gpt-4.1-mini": {0.40 / 1_000_000, 1.60 / 1_000_000},
	"gpt-5":        {1.25 / 1_000_000, 10.0 / 1_000_000},
	"gpt-5-mini":   {0.25 / 1_000_000, 2.00 / 1_000_000},
}

// OpenAIProvider implements Provider with OpenAI structured outputs.
type OpenAIProvider struct {
	client openai.Client
	name   string
	model  string
}

// NewOpenAIProvider creates a new OpenAI provider. The SDK's own retries are
// disabled; callers own the retry budget.
func NewOpenAIProvider(cfg ProviderConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key required")
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
		model = DefaultModel("openai")
	}

	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		name:   "openai",
		model:  model,
	}, nil
}

// Execute sends a completion request to OpenAI.
func (p *OpenAIProvider) Execute(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(p.model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
	}
	// Some reasoning models reject any temperature other than their default.
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	if req.JSONSchema != nil {
		name := req.SchemaName
		if name == "" {
			name = "extraction_result"
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   name,
					Schema: req.JSONSchema,
					Strict: openai.Bool(req.StrictMode),
				},
			},
		}
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		status := 0
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		return nil, newAPIError(p.Name(), status, err)
	}

	if len(resp.Choices) == 0 {
		return nil, &APIError{Provider: p.Name(), Class: ClassTransient, Err: errors.New("no choices in response")}
	}

	usage := Usage{
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}

	choice := resp.Choices[0]
	content := choice.Message.Content
	if content == "" && choice.Message.Refusal != "" {
		content = choice.Message.Refusal
	}

	return &Response{
		Content:      content,
		FinishReason: string(choice.FinishReason),
		Usage:        usage,
		Model:        resp.Model,
		Cost:         p.EstimateCost(p.model, usage.InputTokens, usage.OutputTokens),
		Duration:     time.Since(start),
	}, nil
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Model returns the configured model name.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// EstimateCost calculates cost based on known OpenAI pricing. Versioned model
// IDs match the longest known prefix.
func (p *OpenAIProvider) EstimateCost(modelID string, inputTokens, outputTokens int) float64 {
	if pr, ok := openaiPricing[modelID]; ok {
		return pr.cost(inputTokens, outputTokens)
	}

	best := ""
	for id := range openaiPricing {
		if strings.HasPrefix(modelID, id) && len(id) > len(best) {
			best = id
		}
	}
	if best != "" {
		return openaiPricing[best].cost(inputTokens, outputTokens)
	}

	return openaiPricing["gpt-4o-mini"].cost(inputTokens, outputTokens)
}

var (
	_ Provider      = (*OpenAIProvider)(nil)
	_ CostEstimator = (*OpenAIProvider)(nil)
)
