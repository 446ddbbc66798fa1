package llm

import (
	"fmt"
	"sort"
	"strings"
)

// ProviderFactory creates providers from config.
type ProviderFactory func(cfg ProviderConfig) (Provider, error)

type providerEntry struct {
	factory      ProviderFactory
	defaultModel string
	envKey       string // API key variable; empty when no key is needed
}

var registry = map[string]providerEntry{}

func init() {
	RegisterProvider("openai", "gpt-4o-mini", "OPENAI_API_KEY", func(cfg ProviderConfig) (Provider, error) {
		return NewOpenAIProvider(cfg)
	})
	RegisterProvider("anthropic", "claude-sonnet-4-20250514", "ANTHROPIC_API_KEY", func(cfg ProviderConfig) (Provider, error) {
		return NewAnthropicProvider(cfg)
	})
	RegisterProvider("openrouter", "openai/gpt-4o-mini", "OPENROUTER_API_KEY", func(cfg ProviderConfig) (Provider, error) {
		return NewOpenRouterProvider(cfg)
	})
	RegisterProvider("ollama", "llama3.2", "", func(cfg ProviderConfig) (Provider, error) {
		return NewOllamaProvider(cfg)
	})
}

// RegisterProvider adds a provider factory under name.
func RegisterProvider(name, defaultModel, envKey string, factory ProviderFactory) {
	registry[name] = providerEntry{factory: factory, defaultModel: defaultModel, envKey: envKey}
}

// NewProvider creates a provider by name.
func NewProvider(name string, cfg ProviderConfig) (Provider, error) {
	entry, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s (available: %s)", name, strings.Join(AvailableProviders(), ", "))
	}
	return entry.factory(cfg)
}

// AvailableProviders returns the registered provider names, sorted.
func AvailableProviders() []string {
	providers := make([]string, 0, len(registry))
	for name := range registry {
		providers = append(providers, name)
	}
	sort.Strings(providers)
	return providers
}

// IsRegistered returns true if a provider is registered.
func IsRegistered(name string) bool {
	_, ok := registry[name]
	return ok
}

// DefaultModel returns the default model for a provider.
func DefaultModel(provider string) string {
	return registry[provider].defaultModel
}

// APIKeyEnv returns the environment variable holding the provider's API
// key, or "" when the provider needs none.
func APIKeyEnv(provider string) string {
	return registry[provider].envKey
}

// RequiresAPIKey reports whether the provider needs a credential.
func RequiresAPIKey(provider string) bool {
	return APIKeyEnv(provider) != ""
}
