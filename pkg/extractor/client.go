// Package extractor turns recovered document text into a validated
// peco.Record. It builds the schema-constrained prompt, calls the language
// model with a bounded transport retry budget, and repairs a malformed
// response with a single corrective re-prompt.
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/hunterdeturk/PRIMA/internal/logger"
	"github.com/hunterdeturk/PRIMA/pkg/llm"
	"github.com/hunterdeturk/PRIMA/pkg/peco"
	"github.com/hunterdeturk/PRIMA/pkg/schema"
)

// Defaults for a Client.
const (
	DefaultRetries   = 2
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 4096
	DefaultBackoff   = 2 * time.Second
)

// Client sends extraction prompts to a provider and validates the answers.
type Client struct {
	provider    llm.Provider
	schema      schema.Schema
	compiled    *schema.Compiled
	retries     int
	timeout     time.Duration
	backoff     time.Duration
	maxTokens   int
	temperature float64
	observer    llm.Observer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRetries sets how many times a transient transport failure is retried.
func WithRetries(n int) ClientOption {
	return func(c *Client) { c.retries = n }
}

// WithTimeout bounds each provider call. 0 disables the per-call deadline.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithBackoff sets the base delay between transport retries. The delay
// doubles after every retry.
func WithBackoff(d time.Duration) ClientOption {
	return func(c *Client) { c.backoff = d }
}

// WithMaxTokens sets the output token limit.
func WithMaxTokens(n int) ClientOption {
	return func(c *Client) { c.maxTokens = n }
}

// WithTemperature sets the sampling temperature. 0 leaves the provider's
// default in place.
func WithTemperature(t float64) ClientOption {
	return func(c *Client) { c.temperature = t }
}

// WithObserver receives every provider call.
func WithObserver(obs llm.Observer) ClientOption {
	return func(c *Client) { c.observer = obs }
}

// NewClient creates a client validating against s, which must describe
// peco.Record (see peco.CheckCompatible).
func NewClient(provider llm.Provider, s schema.Schema, opts ...ClientOption) (*Client, error) {
	if provider == nil {
		return nil, llm.ErrNoProvider
	}
	compiled, err := s.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", s.Name, err)
	}

	c := &Client{
		provider:  provider,
		schema:    s,
		compiled:  compiled,
		retries:   DefaultRetries,
		timeout:   DefaultTimeout,
		backoff:   DefaultBackoff,
		maxTokens: DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retries < 0 {
		c.retries = 0
	}
	if c.observer == nil {
		c.observer = llm.LogObserver{Logger: logger.Component("llm")}
	}
	return c, nil
}

// Extract returns a validated record for p. Transient transport failures are
// retried within the retry budget. A response that fails parsing or
// validation gets exactly one corrective re-prompt; if that fails too, the
// returned *ExtractionError names the offending field.
func (c *Client) Extract(ctx context.Context, p Prompt) (peco.Record, error) {
	log := logger.With("provider", c.provider.Name(), "model", c.provider.Model())

	resp, attempts, err := c.call(ctx, p, "extract")
	if err != nil {
		return peco.Record{}, &ExtractionError{Kind: KindTransport, Attempts: attempts, Err: err}
	}

	rec, verr := c.decode(resp.Content)
	if verr == nil {
		return rec, nil
	}
	log.Warn("response failed validation, re-prompting", "field", verr.Field, "error", verr.Message)

	repair := CorrectivePrompt(p, resp.Content, verr)
	resp, n, err := c.call(ctx, repair, "repair")
	attempts += n
	if err != nil {
		return peco.Record{}, &ExtractionError{Kind: KindTransport, Attempts: attempts, Err: err}
	}

	rec, verr = c.decode(resp.Content)
	if verr != nil {
		return peco.Record{}, &ExtractionError{Kind: KindSchema, Field: verr.Field, Attempts: attempts, Err: verr}
	}
	return rec, nil
}

// call executes p with transport retries and reports the calls made.
func (c *Client) call(ctx context.Context, p Prompt, purpose string) (*llm.Response, int, error) {
	var (
		resp     *llm.Response
		attempts int
	)

	err := retry.Do(
		func() error {
			r, err := c.once(ctx, p, purpose, attempts)
			attempts++
			if err != nil {
				return err
			}
			resp = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.retries)+1),
		retry.Delay(c.backoff),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(llm.IsTransient),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Debug("retrying provider call", "purpose", purpose, "retry", n+1, "error", err)
		}),
	)
	return resp, attempts, err
}

func (c *Client) once(ctx context.Context, p Prompt, purpose string, attempt int) (*llm.Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: p.System},
			{Role: llm.RoleUser, Content: p.User},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		JSONSchema:  p.JSONSchema,
		SchemaName:  p.SchemaName,
		StrictMode:  true,
	}

	startedAt := time.Now()
	resp, err := c.provider.Execute(ctx, req)

	event := llm.CallEvent{
		Provider:  c.provider.Name(),
		Model:     c.provider.Model(),
		Attempt:   attempt,
		Purpose:   purpose,
		InputSize: len(p.System) + len(p.User),
		Response:  resp,
		Error:     err,
		Duration:  time.Since(startedAt),
		StartedAt: startedAt,
	}
	if resp != nil && resp.Model != "" {
		event.Model = resp.Model
	}
	c.observer.OnCall(ctx, event)

	if err != nil {
		return nil, fmt.Errorf("LLM completion failed: %w", err)
	}
	return resp, nil
}

// decode parses, normalizes and validates one response. The schema check
// reports missing keys and wrong types by field; the compiled JSON Schema
// is a second gate; the typed record then gets its struct constraints.
func (c *Client) decode(content string) (peco.Record, *SchemaValidationError) {
	raw, err := parseObject(content)
	if err != nil {
		return peco.Record{}, &SchemaValidationError{Message: err.Error()}
	}

	data := c.schema.Normalize(raw)
	if errs := c.schema.Validate(data); len(errs) > 0 {
		return peco.Record{}, newSchemaValidationError(errs)
	}
	if err := c.compiled.ValidateDocument(data); err != nil {
		return peco.Record{}, fromJSONSchemaError(err)
	}

	b, err := json.Marshal(data)
	if err != nil {
		return peco.Record{}, &SchemaValidationError{Message: err.Error()}
	}
	var rec peco.Record
	if err := json.Unmarshal(b, &rec); err != nil {
		sve := &SchemaValidationError{Message: err.Error()}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			sve.Field = typeErr.Field
		}
		return peco.Record{}, sve
	}
	if errs := rec.Validate(); len(errs) > 0 {
		return peco.Record{}, newSchemaValidationError(errs)
	}
	return rec, nil
}
