package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hunterdeturk/PRIMA/internal/logger"
)

// DefaultOCRBinary is the ocrmypdf-compatible tool looked up on PATH.
const DefaultOCRBinary = "ocrmypdf"

// OCRCapability records whether the OCR tool was found. It is detected once
// at startup and handed to the Recoverer.
type OCRCapability struct {
	Available bool
	Path      string
}

// DetectOCR resolves binary on PATH. A missing tool is not an error.
func DetectOCR(binary string) OCRCapability {
	if binary == "" {
		binary = DefaultOCRBinary
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		logger.Debug("ocr tool not found", "binary", binary)
		return OCRCapability{}
	}
	return OCRCapability{Available: true, Path: path}
}

// Runner lets tests stub external commands.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with exec.CommandContext.
type ExecRunner struct{}

// Run executes name with args and captures both output streams.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	if err != nil {
		logger.Debug("exec failed",
			"cmd", name,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
			"stderr", truncate(errb.String(), 8<<10),
		)
	} else {
		logger.Debug("exec ok",
			"cmd", name,
			"duration_ms", time.Since(start).Milliseconds(),
			"stdout_bytes", out.Len(),
		)
	}
	return out.Bytes(), errb.Bytes(), err
}

// OCRConfig controls the forced-OCR pass.
type OCRConfig struct {
	Language string        // tesseract language code, default "eng"
	Timeout  time.Duration // 0 = bounded only by the caller's context
	TempDir  string        // parent of per-document work dirs, default os.TempDir()
}

// ocrPass writes a text-annotated copy of the input into a fresh temp dir.
// The returned cleanup removes that dir and must always be called.
func (r *Recoverer) ocrPass(ctx context.Context, path string) (string, func(), error) {
	noop := func() {}

	dir, err := os.MkdirTemp(r.ocrCfg.TempDir, "prima-ocr-*")
	if err != nil {
		return "", noop, fmt.Errorf("create ocr temp dir: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("failed to remove ocr temp dir", "dir", dir, "error", err)
		}
	}

	if r.ocrCfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.ocrCfg.Timeout)
		defer cancel()
	}

	out := filepath.Join(dir, uuid.NewString()+".pdf")
	_, stderr, err := r.runner.Run(ctx, r.ocr.Path, ocrArgs(r.ocrCfg.Language, path, out)...)
	if err != nil {
		msg := strings.TrimSpace(truncate(string(stderr), 300))
		if msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return "", cleanup, fmt.Errorf("ocr pass: %w", err)
	}

	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		return "", cleanup, fmt.Errorf("ocr pass produced no output")
	}
	return out, cleanup, nil
}

func ocrArgs(lang, in, out string) []string {
	if lang == "" {
		lang = "eng"
	}
	return []string{
		"--force-ocr",
		"--rotate-pages",
		"--deskew",
		"--optimize", "1",
		"--language", lang,
		in, out,
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
