// Package pipeline drives each document through text recovery, prompting,
// extraction and effect computation. A failing document becomes an error
// row; the run always yields one row per document, in input order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hunterdeturk/PRIMA/internal/logger"
	"github.com/hunterdeturk/PRIMA/pkg/effect"
	"github.com/hunterdeturk/PRIMA/pkg/extractor"
	"github.com/hunterdeturk/PRIMA/pkg/pdftext"
	"github.com/hunterdeturk/PRIMA/pkg/peco"
	"github.com/hunterdeturk/PRIMA/pkg/schema"
)

// ErrCancelled marks documents the run did not get to.
var ErrCancelled = errors.New("run cancelled")

// Recoverer is the text recovery stage.
type Recoverer interface {
	Recover(ctx context.Context, path string) pdftext.RecoveredText
}

// Extractor is the model extraction stage.
type Extractor interface {
	Extract(ctx context.Context, p extractor.Prompt) (peco.Record, error)
}

// Orchestrator runs documents through the stages.
type Orchestrator struct {
	recoverer   Recoverer
	extractor   Extractor
	promptOpts  extractor.PromptOptions
	limit       int
	concurrency int
	skipEmpty   bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLimit processes only the first n documents. 0 means all.
func WithLimit(n int) Option {
	return func(o *Orchestrator) { o.limit = n }
}

// WithConcurrency sets how many documents are processed at once.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) { o.concurrency = n }
}

// WithPromptOptions sets the prompt budget and instructions.
func WithPromptOptions(opts extractor.PromptOptions) Option {
	return func(o *Orchestrator) { o.promptOpts = opts }
}

// WithSkipUnreadable leaves the extractor out for documents whose text could
// not be recovered. By default such a document is still sent, with an empty
// article text and its filename.
func WithSkipUnreadable(skip bool) Option {
	return func(o *Orchestrator) { o.skipEmpty = skip }
}

// New creates an Orchestrator.
func New(rec Recoverer, ext Extractor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		recoverer:   rec,
		extractor:   ext,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}
	return o
}

// Run processes docs and returns exactly one row per document after the
// limit is applied, in input order. Once ctx is done no further documents
// start; the rows are still returned, with ErrCancelled on those that did
// not run, together with ctx.Err().
func (o *Orchestrator) Run(ctx context.Context, docs []Document, s schema.Schema) ([]OutputRow, error) {
	if o.limit > 0 && len(docs) > o.limit {
		docs = docs[:o.limit]
	}

	prompter, err := extractor.NewPrompter(s, o.promptOpts)
	if err != nil {
		return nil, err
	}

	total := len(docs)
	rows := make([]OutputRow, total)
	started := make([]bool, total)
	var completed, failed atomic.Int64
	runStart := time.Now()

	logger.Info("run starting", "documents", total, "concurrency", o.concurrency)

	var g errgroup.Group
	g.SetLimit(o.concurrency)

	for i, doc := range docs {
		if ctx.Err() != nil {
			break
		}
		started[i] = true
		g.Go(func() error {
			if ctx.Err() != nil {
				rows[i] = cancelledRow(doc)
				return nil
			}

			start := time.Now()
			row := o.process(ctx, doc, prompter)
			rows[i] = row

			n := completed.Add(1)
			if row.Failed() {
				failed.Add(1)
			}
			attrs := []any{
				"progress", fmt.Sprintf("%d/%d", n, total),
				"file", filepath.Base(doc.Path),
				"method", row.Method,
				"duration", time.Since(start).Round(time.Millisecond),
			}
			if row.Failed() {
				attrs = append(attrs, "error", row.Err)
			} else if row.Stats == nil {
				attrs = append(attrs, "stats", row.SkipReason)
			}
			logger.Info("document done", attrs...)
			return nil
		})
	}
	_ = g.Wait()

	for i, doc := range docs {
		if !started[i] {
			rows[i] = cancelledRow(doc)
		}
	}

	logger.Info("run complete",
		"documents", total,
		"completed", completed.Load(),
		"failed", failed.Load(),
		"duration", time.Since(runStart).Round(time.Millisecond),
	)
	return rows, ctx.Err()
}

func (o *Orchestrator) process(ctx context.Context, doc Document, prompter *extractor.Prompter) OutputRow {
	if doc.ID == "" {
		doc.ID = DocumentID(doc.Path)
	}
	row := OutputRow{Document: doc}

	text := o.recoverer.Recover(ctx, doc.Path)
	row.Method = text.Method
	row.Confidence = text.Confidence
	if text.Failed() || text.Text == "" {
		row.Method = pdftext.MethodFailed
		row.Err = pdftext.ErrTextRecoveryFailure
		if ctx.Err() != nil {
			row.Err = fmt.Errorf("%w: %w", pdftext.ErrTextRecoveryFailure, ctx.Err())
			return row
		}
		if o.skipEmpty {
			return row
		}
		text.Text = ""
	}

	prompt := prompter.Build(text.Text, doc.Path)
	row.Truncated = prompt.Truncated

	rec, err := o.extractor.Extract(ctx, prompt)
	if err != nil {
		if row.Err != nil {
			err = fmt.Errorf("%w: %w", row.Err, err)
		}
		row.Err = err
		return row
	}
	row.Record = &rec

	a, b, c, d := rec.Counts()
	row.Stats = effect.Compute(a, b, c, d)
	if row.Stats == nil {
		row.SkipReason = effect.SkipReason(a, b, c, d)
	}
	return row
}

func cancelledRow(doc Document) OutputRow {
	return OutputRow{Document: doc, Method: pdftext.MethodFailed, Err: ErrCancelled}
}
