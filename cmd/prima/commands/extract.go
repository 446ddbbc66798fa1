package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hunterdeturk/PRIMA/internal/config"
	"github.com/hunterdeturk/PRIMA/internal/discover"
	"github.com/hunterdeturk/PRIMA/internal/logger"
	"github.com/hunterdeturk/PRIMA/internal/output"
	"github.com/hunterdeturk/PRIMA/internal/version"
	"github.com/hunterdeturk/PRIMA/pkg/extractor"
	"github.com/hunterdeturk/PRIMA/pkg/llm"
	"github.com/hunterdeturk/PRIMA/pkg/pdftext"
	"github.com/hunterdeturk/PRIMA/pkg/pipeline"
)

var extractCmd = &cobra.Command{
	Use:   "extract [dir]",
	Short: "Extract PECO records from a directory of PDFs",
	Long: `Extract one PECO record per PDF and compute effect sizes.

Every PDF found in the input directory produces exactly one output row,
in filename order. Documents whose text cannot be recovered, or whose
model answer fails validation, are kept as rows with the error in the
notes and error columns.

Documents without recoverable text are still sent to the model with
their filename, unless --skip-unreadable is set.

The primary output format follows --format, or the --output extension.
A CSV copy is written next to it unless --no-csv is set.

Examples:
  prima extract ./papers
  prima extract -i ./papers -r -o out/results.xlsx --csv out/all.csv
  prima extract ./papers --limit 5 --max-chars 60k --retries 3`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

// extractBindings maps config keys to extract flags.
var extractBindings = map[string]string{
	"input":                    "input",
	"recursive":                "recursive",
	"output":                   "output",
	"format":                   "format",
	"csv_path":                 "csv",
	"schema":                   "schema",
	"sheet":                    "sheet",
	"compact":                  "compact",
	"skip_unreadable":          "skip-unreadable",
	"limit":                    "limit",
	"concurrency":              "concurrency",
	"max_chars":                "max-chars",
	"retries":                  "retries",
	"timeout":                  "timeout",
	"prompt.instructions":      "instructions",
	"prompt.instructions_file": "instructions-file",
	"ocr.binary":               "ocr-binary",
	"ocr.language":             "ocr-language",
	"ocr.timeout":              "ocr-timeout",
	"ocr.temp_dir":             "temp-dir",
	"llm.provider":             "provider",
	"llm.model":                "model",
	"llm.api_key":              "api-key",
	"llm.base_url":             "base-url",
	"llm.temperature":          "temperature",
	"llm.max_tokens":           "max-tokens",
	"llm.fallback":             "fallback",
}

func init() {
	rootCmd.AddCommand(extractCmd)

	flags := extractCmd.Flags()

	// Input
	flags.StringP("input", "i", "", "directory of PDFs (or pass it as the argument)")
	flags.BoolP("recursive", "r", false, "include PDFs in subdirectories")
	flags.StringP("schema", "s", "", "custom record schema file (JSON or YAML)")
	flags.Int("limit", 0, "process only the first N documents (0=all)")

	// Output
	flags.StringP("output", "o", "prima_results.xlsx", "output file")
	flags.String("format", "", "output format: "+formatList()+" (default: from --output extension)")
	flags.String("csv", "", "CSV copy path (default: output path with .csv)")
	flags.Bool("no-csv", false, "do not write the CSV copy")
	flags.String("sheet", output.DefaultSheetName, "worksheet name for XLSX output")
	flags.Bool("compact", false, "write JSON output on a single line")

	// Extraction
	flags.IntP("concurrency", "c", 1, "documents processed at once")
	flags.String("max-chars", "120000", "max article characters sent to the model (e.g. 120k, 0=unlimited)")
	flags.Int("retries", 2, "retries per LLM call on transient errors")
	flags.Duration("timeout", 120*time.Second, "per-call LLM timeout")
	flags.Bool("skip-unreadable", false, "do not call the model for documents without recoverable text")
	flags.String("instructions", "", "extra domain instructions appended to the system prompt")
	flags.String("instructions-file", "", "file with extra domain instructions")

	// OCR
	flags.Bool("no-ocr", false, "skip the OCR pass even when ocrmypdf is installed")
	flags.String("ocr-binary", pdftext.DefaultOCRBinary, "ocrmypdf-compatible binary")
	flags.String("ocr-language", "eng", "OCR language (tesseract codes, e.g. eng+deu)")
	flags.Duration("ocr-timeout", 10*time.Minute, "max time for one OCR pass")
	flags.String("temp-dir", "", "directory for OCR copies (default: system temp)")

	// LLM settings
	flags.StringP("provider", "p", "openai", "LLM provider: "+strings.Join(llm.AvailableProviders(), ", "))
	flags.StringP("model", "m", "", "model name (provider-specific)")
	flags.StringP("api-key", "k", "", "API key (or use the provider's env var)")
	flags.String("base-url", "", "custom API base URL")
	flags.Float64("temperature", 0, "sampling temperature")
	flags.Int("max-tokens", 4096, "max output tokens per call")
	flags.StringSlice("fallback", nil, "providers to try when the primary is unavailable")
}

func formatList() string {
	names := make([]string, 0, len(output.Formats()))
	for _, f := range output.Formats() {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Debug("extract command starting")

	v, err := newViper(cmd, extractBindings)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		v.Set("input", args[0])
	}
	if noCSV, _ := cmd.Flags().GetBool("no-csv"); noCSV {
		v.Set("csv", false)
	}
	if noOCR, _ := cmd.Flags().GetBool("no-ocr"); noOCR {
		v.Set("ocr.enabled", false)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	format, err := resolveFormat(cfg)
	if err != nil {
		return err
	}

	s, err := loadSchema(cfg.Schema)
	if err != nil {
		return fmt.Errorf("failed to load schema: %w", err)
	}
	logger.Debug("schema loaded", "name", s.Name, "fields", len(s.Fields))

	paths, err := discover.PDFs(cfg.InputDir, cfg.Recursive)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no PDF files found in %s", cfg.InputDir)
	}
	logger.Debug("documents discovered", "count", len(paths), "dir", cfg.InputDir)
	if cfg.Limit > 0 && len(paths) > cfg.Limit {
		paths = paths[:cfg.Limit]
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	usage := &llm.UsageTally{}
	client, err := extractor.NewClient(provider, s,
		extractor.WithObserver(llm.NewMultiObserver(llm.LogObserver{Logger: logger.Component("llm")}, usage)),
		extractor.WithRetries(cfg.Retries),
		extractor.WithTimeout(cfg.Timeout),
		extractor.WithMaxTokens(cfg.LLM.MaxTokens),
		extractor.WithTemperature(cfg.LLM.Temperature),
	)
	if err != nil {
		return err
	}

	orch := pipeline.New(buildRecoverer(cfg), client,
		pipeline.WithLimit(cfg.Limit),
		pipeline.WithConcurrency(cfg.Concurrency),
		pipeline.WithSkipUnreadable(cfg.SkipUnreadable),
		pipeline.WithPromptOptions(extractor.PromptOptions{
			MaxChars:     promptBudget(cfg.MaxChars),
			Instructions: cfg.Prompt.Instructions,
		}),
	)

	logInfo("Extracting %d document(s) with %s (%s)", len(paths), provider.Name(), provider.Model())

	start := time.Now()
	rows, runErr := orch.Run(ctx, pipeline.NewDocuments(paths), s)

	writerOpts := []output.WriterOption{
		output.WithSheetName(cfg.Sheet),
		output.WithPretty(!cfg.Compact),
	}
	if err := writeRows(cfg.Output, format, rows, writerOpts...); err != nil {
		return err
	}
	if path := csvPath(cfg, format); path != "" {
		if err := writeRows(path, output.FormatCSV, rows); err != nil {
			return err
		}
	}

	failed := 0
	for _, row := range rows {
		if row.Failed() {
			failed++
		}
	}
	logInfo("Done: %d/%d succeeded, %d failed in %s", len(rows)-failed, len(rows), failed, time.Since(start).Round(time.Second))
	if t := usage.Totals(); t.Calls > 0 {
		logInfo("LLM: %d call(s), %s input / %s output tokens, $%.4f",
			t.Calls, humanize.Comma(int64(t.Usage.InputTokens)), humanize.Comma(int64(t.Usage.OutputTokens)), t.Cost)
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return errors.New("interrupted; partial results written")
		}
		return runErr
	}
	return nil
}

// buildProvider creates the primary provider and, when configured, wraps it
// in a fallback chain. Fallback providers use their own default model and
// key variable.
func buildProvider(cfg config.Config) (llm.Provider, error) {
	primary, err := llm.NewProvider(cfg.LLM.Provider, llm.ProviderConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		UserAgent:   version.UserAgent(),
		HTTPTimeout: cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	if len(cfg.LLM.Fallback) == 0 {
		return primary, nil
	}

	chain := []llm.Provider{primary}
	for _, name := range cfg.LLM.Fallback {
		p, err := llm.NewProvider(name, llm.ProviderConfig{
			APIKey:      config.KeyFromEnv(name),
			UserAgent:   version.UserAgent(),
			HTTPTimeout: cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("fallback provider %s: %w", name, err)
		}
		chain = append(chain, p)
	}
	return llm.NewFallback(chain...), nil
}

func buildRecoverer(cfg config.Config) *pdftext.Recoverer {
	if !cfg.OCR.Enabled {
		logger.Debug("OCR disabled by configuration")
		return pdftext.New()
	}

	ocr := pdftext.DetectOCR(cfg.OCR.Binary)
	if !ocr.Available {
		logger.Debug("OCR tool not found, using embedded PDF text only", "binary", cfg.OCR.Binary)
	}
	return pdftext.New(pdftext.WithOCR(ocr, pdftext.OCRConfig{
		Language: cfg.OCR.Language,
		Timeout:  cfg.OCR.Timeout,
		TempDir:  cfg.OCR.TempDir,
	}))
}

// promptBudget maps the configured limit, where 0 means unlimited, onto
// PromptOptions.MaxChars, where 0 means the default.
func promptBudget(maxChars int) int {
	if maxChars == 0 {
		return -1
	}
	return maxChars
}

func resolveFormat(cfg config.Config) (output.Format, error) {
	if cfg.Format != "" {
		return output.ParseFormat(cfg.Format)
	}
	return output.FormatFromPath(cfg.Output)
}

// csvPath returns where the CSV copy goes, or "" when none is wanted.
func csvPath(cfg config.Config, primary output.Format) string {
	if !cfg.CSV {
		return ""
	}
	if cfg.CSVPath != "" {
		return cfg.CSVPath
	}
	if primary == output.FormatCSV {
		return ""
	}
	return strings.TrimSuffix(cfg.Output, filepath.Ext(cfg.Output)) + ".csv"
}

func writeRows(path string, format output.Format, rows []pipeline.OutputRow, opts ...output.WriterOption) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = f.Close() }()

	w, err := output.NewWriter(f, format, opts...)
	if err != nil {
		return err
	}
	if err := output.WriteRows(w, rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if info, err := f.Stat(); err == nil {
		logInfo("Wrote %s (%s, %d rows)", path, humanize.Bytes(uint64(info.Size())), len(rows))
	}
	return nil
}
