// Package pdftext recovers plain text from PDF files. An optional forced-OCR
// pass adds a text layer to scanned documents before an ordered list of
// extraction backends is tried.
package pdftext

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/hunterdeturk/PRIMA/internal/logger"
)

// ErrTextRecoveryFailure is recorded when no backend produced text.
var ErrTextRecoveryFailure = errors.New("text recovery failed")

// Method identifies how a document's text was obtained.
type Method string

const (
	MethodOCRLibraryA Method = "ocr_then_library_A"
	MethodOCRLibraryB Method = "ocr_then_library_B"
	MethodLibraryA    Method = "library_A"
	MethodLibraryB    Method = "library_B"
	MethodFailed      Method = "failed"
)

// RecoveredText is the result of recovering one document.
type RecoveredText struct {
	Path       string
	Text       string
	Method     Method
	Confidence float64
	Pages      int
	OCRApplied bool
	Backend    string // name of the backend that produced Text
}

// Failed reports whether no text could be recovered.
func (t RecoveredText) Failed() bool {
	return t.Method == MethodFailed
}

// Recoverer turns a PDF path into the best available text.
type Recoverer struct {
	ocr      OCRCapability
	ocrCfg   OCRConfig
	runner   Runner
	backends []Backend
}

// Option configures a Recoverer.
type Option func(*Recoverer)

// WithOCR enables the OCR pass when cap reports the tool as available.
func WithOCR(cap OCRCapability, cfg OCRConfig) Option {
	return func(r *Recoverer) {
		r.ocr = cap
		r.ocrCfg = cfg
	}
}

// WithRunner replaces the command runner used for OCR.
func WithRunner(runner Runner) Option {
	return func(r *Recoverer) {
		r.runner = runner
	}
}

// WithBackends replaces the backend order. The first backend maps to
// library_A, every later one to library_B.
func WithBackends(backends ...Backend) Option {
	return func(r *Recoverer) {
		r.backends = backends
	}
}

// New creates a Recoverer. Without WithOCR no OCR is attempted.
func New(opts ...Option) *Recoverer {
	r := &Recoverer{
		runner:   ExecRunner{},
		backends: DefaultBackends(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OCREnabled reports whether Recover will attempt an OCR pass.
func (r *Recoverer) OCREnabled() bool {
	return r.ocr.Available && r.ocr.Path != ""
}

// Recover never returns an error. When every backend fails the result has
// MethodFailed and empty text. Temp files are removed before it returns and
// the input file is never modified.
func (r *Recoverer) Recover(ctx context.Context, path string) RecoveredText {
	start := time.Now()
	log := logger.With("file", filepath.Base(path))

	source := path
	ocrApplied := false
	if r.OCREnabled() {
		ocrPath, cleanup, err := r.ocrPass(ctx, path)
		defer cleanup()
		if err != nil {
			log.Warn("ocr pass failed, using original file", "error", err)
		} else {
			source = ocrPath
			ocrApplied = true
		}
	}

	for i, backend := range r.backends {
		if err := ctx.Err(); err != nil {
			break
		}
		text, err := backend.Extract(ctx, source)
		if err != nil {
			log.Warn("text backend failed", "backend", backend.Name(), "error", err)
			continue
		}
		content := Normalize(text.Content)
		if content == "" {
			log.Warn("text backend returned no text", "backend", backend.Name())
			continue
		}

		result := RecoveredText{
			Path:       path,
			Text:       content,
			Method:     methodFor(i, ocrApplied),
			Confidence: Confidence(content, text.Pages, ocrApplied),
			Pages:      text.Pages,
			OCRApplied: ocrApplied,
			Backend:    backend.Name(),
		}
		log.Debug("text recovered",
			"method", result.Method,
			"chars", len(content),
			"pages", result.Pages,
			"confidence", result.Confidence,
			"duration", time.Since(start).Round(time.Millisecond),
		)
		return result
	}

	log.Error("text recovery failed", "error", ErrTextRecoveryFailure, "ocr", ocrApplied)
	return RecoveredText{Path: path, Method: MethodFailed, OCRApplied: ocrApplied}
}

func methodFor(backend int, ocr bool) Method {
	switch {
	case backend == 0 && ocr:
		return MethodOCRLibraryA
	case backend == 0:
		return MethodLibraryA
	case ocr:
		return MethodOCRLibraryB
	default:
		return MethodLibraryB
	}
}

// String implements fmt.Stringer.
func (m Method) String() string {
	return string(m)
}

