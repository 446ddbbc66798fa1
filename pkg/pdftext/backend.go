package pdftext

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Text is the raw output of a backend.
type Text struct {
	Content string
	Pages   int
}

// Backend is one text extraction strategy. Backends are tried in order; an
// error or blank text moves on to the next one.
type Backend interface {
	Name() string
	Extract(ctx context.Context, path string) (Text, error)
}

// DefaultBackends returns the primary and secondary strategies.
func DefaultBackends() []Backend {
	return []Backend{PlainTextBackend{}, ContentStreamBackend{}}
}

// PlainTextBackend reads the text layer with github.com/ledongthuc/pdf.
type PlainTextBackend struct{}

// Name implements Backend.
func (PlainTextBackend) Name() string { return "ledongthuc" }

// Extract implements Backend. It prefers the whole-document plain text and
// falls back to page-by-page extraction when that comes back empty.
func (b PlainTextBackend) Extract(ctx context.Context, path string) (text Text, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s: malformed pdf: %v", b.Name(), rec)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return Text{}, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	pages := r.NumPage()

	reader, err := r.GetPlainText()
	if err == nil {
		buf := new(strings.Builder)
		if _, err := io.Copy(buf, reader); err == nil && strings.TrimSpace(buf.String()) != "" {
			return Text{Content: buf.String(), Pages: pages}, nil
		}
	}

	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return Text{}, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(pageText)
	}
	return Text{Content: sb.String(), Pages: pages}, nil
}

// ContentStreamBackend parses page content streams with
// github.com/pdfcpu/pdfcpu and collects the strings shown by text operators.
type ContentStreamBackend struct{}

// Name implements Backend.
func (ContentStreamBackend) Name() string { return "pdfcpu" }

// Extract implements Backend.
func (b ContentStreamBackend) Extract(ctx context.Context, path string) (Text, error) {
	f, err := os.Open(path)
	if err != nil {
		return Text{}, err
	}
	defer f.Close()

	pdfCtx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return Text{}, fmt.Errorf("pdfcpu read: %w", err)
	}

	var sb strings.Builder
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return Text{}, err
		}
		pageText := extractPageText(pdfCtx, pageNr)
		if pageText == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(pageText)
	}
	return Text{Content: sb.String(), Pages: pdfCtx.PageCount}, nil
}
