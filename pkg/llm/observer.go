package llm

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Observer receives a notification after every provider call, successful
// or not.
type Observer interface {
	OnCall(ctx context.Context, event CallEvent)
}

// CallEvent describes one provider call.
type CallEvent struct {
	Provider  string
	Model     string
	Attempt   int // 0 = first attempt, 1 = first retry, etc.
	Purpose   string
	InputSize int // Characters of prompt text sent
	Response  *Response
	Error     error
	Duration  time.Duration
	StartedAt time.Time
}

// ObserverFunc is a convenience type for using a function as an Observer.
type ObserverFunc func(ctx context.Context, event CallEvent)

// OnCall implements Observer.
func (f ObserverFunc) OnCall(ctx context.Context, event CallEvent) {
	f(ctx, event)
}

// MultiObserver dispatches each event to several observers.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver creates an observer that dispatches to multiple observers.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	return &MultiObserver{observers: observers}
}

// OnCall dispatches the event to all registered observers.
func (m *MultiObserver) OnCall(ctx context.Context, event CallEvent) {
	for _, obs := range m.observers {
		obs.OnCall(ctx, event)
	}
}

// Totals summarizes provider calls.
type Totals struct {
	Calls  int
	Failed int
	Usage  Usage
	Cost   float64
}

// UsageTally sums calls, tokens and cost over a run. It is safe for
// concurrent use.
type UsageTally struct {
	mu     sync.Mutex
	totals Totals
}

// OnCall implements Observer.
func (t *UsageTally) OnCall(_ context.Context, event CallEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.totals.Calls++
	if event.Error != nil {
		t.totals.Failed++
	}
	if event.Response != nil {
		t.totals.Usage.InputTokens += event.Response.Usage.InputTokens
		t.totals.Usage.OutputTokens += event.Response.Usage.OutputTokens
		t.totals.Cost += event.Response.Cost
	}
}

// Totals returns the sums so far.
func (t *UsageTally) Totals() Totals {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totals
}

// LogObserver writes one structured record per call.
type LogObserver struct {
	Logger *slog.Logger
}

// OnCall implements Observer.
func (o LogObserver) OnCall(ctx context.Context, event CallEvent) {
	if o.Logger == nil {
		return
	}
	attrs := []any{
		"provider", event.Provider,
		"model", event.Model,
		"attempt", event.Attempt,
		"purpose", event.Purpose,
		"input_chars", event.InputSize,
		"duration", event.Duration.Round(time.Millisecond),
	}
	if event.Error != nil {
		attrs = append(attrs, "class", Classify(event.Error), "error", event.Error)
		o.Logger.WarnContext(ctx, "llm call failed", attrs...)
		return
	}
	if event.Response != nil {
		attrs = append(attrs,
			"input_tokens", event.Response.Usage.InputTokens,
			"output_tokens", event.Response.Usage.OutputTokens,
			"finish_reason", event.Response.FinishReason,
			"cost_usd", event.Response.Cost,
		)
	}
	o.Logger.DebugContext(ctx, "llm call", attrs...)
}
