// Package commands implements the CLI commands for prima.
package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hunterdeturk/PRIMA/internal/config"
	"github.com/hunterdeturk/PRIMA/internal/logger"
	"github.com/hunterdeturk/PRIMA/pkg/peco"
	"github.com/hunterdeturk/PRIMA/pkg/schema"
)

// quiet suppresses progress output on stderr.
var quiet bool

var rootCmd = &cobra.Command{
	Use:   "prima",
	Short: "Extract PECO records and effect sizes from study PDFs",
	Long: `PRIMA turns a directory of biomedical article PDFs into a table of
Population, Exposure, Comparator and Outcome records, one row per article.

Text is recovered from each PDF (with an OCR pass when ocrmypdf is
installed), sent to an LLM with a strict JSON schema, validated, and
enriched with the odds ratio and 95% confidence interval when the 2x2
counts are reported.

Examples:
  # Extract every PDF in ./papers into prima_results.xlsx and .csv
  prima extract ./papers

  # Use Anthropic and write JSON instead
  prima extract ./papers -p anthropic -o results.json

  # Local Ollama, four documents at a time, no OCR
  prima extract ./papers -p ollama -m llama3.2 -c 4 --no-ocr`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogger(cmd)
	},
}

func init() {
	cobra.OnInitialize(loadDotEnv)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (default ./prima.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")
	rootCmd.PersistentFlags().Bool("log-json", false, "write logs as JSON")
}

func loadDotEnv() {
	_ = godotenv.Load(".env")
}

func initLogger(cmd *cobra.Command) error {
	debug, _ := cmd.Flags().GetBool("debug")
	quiet, _ = cmd.Flags().GetBool("quiet")
	asJSON, _ := cmd.Flags().GetBool("log-json")
	return logger.Init(logger.Options{
		Debug: debug,
		Quiet: quiet,
		JSON:  asJSON,
	})
}

// newViper layers the config file, PRIMA_* environment variables and the
// command's flags. bindings maps config keys to flag names.
func newViper(cmd *cobra.Command, bindings map[string]string) (*viper.Viper, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	v, err := config.NewViper(cfgFile)
	if err != nil {
		return nil, err
	}
	for key, name := range bindings {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return v, nil
}

// loadSchema returns the built-in record schema, or a custom schema file
// that still decodes into the record type, with every field required.
func loadSchema(path string) (schema.Schema, error) {
	if path == "" {
		return peco.Schema()
	}
	s, err := schema.FromFile(path)
	if err != nil {
		return schema.Schema{}, err
	}
	return peco.FromCustom(s)
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		logError("%v", err)
	}
	return err
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// logInfo prints an info message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
