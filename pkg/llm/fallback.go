package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoProvider is returned when a fallback chain is empty.
var ErrNoProvider = errors.New("no provider available")

// FallbackProvider tries each provider in order until one succeeds. A
// provider is skipped only for failures another provider could avoid:
// transient, rate, quota, auth and context-length errors. Any other error
// is returned as is.
type FallbackProvider struct {
	providers []Provider
}

// NewFallback creates a fallback chain from the given providers.
func NewFallback(providers ...Provider) *FallbackProvider {
	return &FallbackProvider{providers: providers}
}

// Execute implements Provider.
func (f *FallbackProvider) Execute(ctx context.Context, req Request) (*Response, error) {
	if len(f.providers) == 0 {
		return nil, ErrNoProvider
	}

	var lastErr error
	tried := make([]string, 0, len(f.providers))

	for _, p := range f.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tried = append(tried, p.Name())
		resp, err := p.Execute(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !shouldFallBack(err) {
			return nil, err
		}
	}

	if len(tried) == 1 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("all providers failed (tried: %s): %w", strings.Join(tried, ", "), lastErr)
}

func shouldFallBack(err error) bool {
	switch Classify(err) {
	case ClassRate, ClassTransient, ClassQuota, ClassAuth, ClassContextLength:
		return true
	default:
		return false
	}
}

// Name returns the fallback chain name.
func (f *FallbackProvider) Name() string {
	names := make([]string, 0, len(f.providers))
	for _, p := range f.providers {
		names = append(names, p.Name())
	}
	return "fallback(" + strings.Join(names, "->") + ")"
}

// Model returns the first provider's model.
func (f *FallbackProvider) Model() string {
	if len(f.providers) == 0 {
		return ""
	}
	return f.providers[0].Model()
}

var _ Provider = (*FallbackProvider)(nil)
