package llm

import (
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// NewOpenRouterProvider returns an OpenAI-compatible provider pointed at
// OpenRouter. Model IDs carry the upstream vendor, e.g. "openai/gpt-4o-mini".
func NewOpenRouterProvider(cfg ProviderConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenRouter API key required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openRouterBaseURL
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
		// OpenRouter attributes traffic by these headers.
		option.WithHeader("HTTP-Referer", "https://github.com/hunterdeturk/PRIMA"),
		option.WithHeader("X-Title", "PRIMA"),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, option.WithHeader("User-Agent", cfg.UserAgent))
	}
	if cfg.HTTPTimeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel("openrouter")
	}

	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		name:   "openrouter",
		model:  model,
	}, nil
}
