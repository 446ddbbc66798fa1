// Package config builds the run configuration from flags, environment,
// an optional YAML file and defaults, once at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/hunterdeturk/PRIMA/pkg/llm"
)

// EnvPrefix prefixes environment overrides, e.g. PRIMA_LLM_MODEL.
const EnvPrefix = "PRIMA"

// ErrNoCredential is returned when the selected provider needs an API key
// and none was configured.
var ErrNoCredential = errors.New("no LLM credential configured")

// Config is the full run configuration.
type Config struct {
	InputDir  string `mapstructure:"input" validate:"required"`
	Recursive bool   `mapstructure:"recursive"`
	Output    string `mapstructure:"output" validate:"required"`
	Format    string `mapstructure:"format" validate:"omitempty,oneof=xlsx csv json jsonl yaml yml"`
	CSV       bool   `mapstructure:"csv"`
	CSVPath   string `mapstructure:"csv_path"`
	Schema    string `mapstructure:"schema"`
	Sheet     string `mapstructure:"sheet"`
	Compact   bool   `mapstructure:"compact"`

	Limit       int           `mapstructure:"limit" validate:"gte=0"`
	Concurrency int           `mapstructure:"concurrency" validate:"gte=1,lte=64"`
	MaxChars    int           `mapstructure:"-" validate:"gte=0"`
	Retries     int           `mapstructure:"retries" validate:"gte=0,lte=10"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`

	// SkipUnreadable leaves the model out for documents whose text could
	// not be recovered. By default they are still sent with an empty text.
	SkipUnreadable bool `mapstructure:"skip_unreadable"`

	Prompt PromptConfig `mapstructure:"prompt"`
	OCR    OCRConfig    `mapstructure:"ocr"`
	LLM    LLMConfig    `mapstructure:"llm"`
}

// PromptConfig holds extra domain instructions for the model.
type PromptConfig struct {
	Instructions     string `mapstructure:"instructions"`
	InstructionsFile string `mapstructure:"instructions_file"`
}

// OCRConfig controls the forced-OCR pre-pass.
type OCRConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Binary   string        `mapstructure:"binary" validate:"required_if=Enabled true"`
	Language string        `mapstructure:"language"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gte=0"`
	TempDir  string        `mapstructure:"temp_dir"`
}

// LLMConfig selects and tunes the model provider.
type LLMConfig struct {
	Provider    string   `mapstructure:"provider" validate:"required"`
	Model       string   `mapstructure:"model"`
	APIKey      string   `mapstructure:"api_key"`
	BaseURL     string   `mapstructure:"base_url" validate:"omitempty,url"`
	Temperature float64  `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int      `mapstructure:"max_tokens" validate:"gte=0"`
	Fallback    []string `mapstructure:"fallback"`
}

// SetDefaults registers every key with its default so that environment
// overrides apply to all of them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("input", "")
	v.SetDefault("recursive", false)
	v.SetDefault("output", "prima_results.xlsx")
	v.SetDefault("format", "")
	v.SetDefault("csv", true)
	v.SetDefault("csv_path", "")
	v.SetDefault("schema", "")
	v.SetDefault("sheet", "extraction")
	v.SetDefault("compact", false)
	v.SetDefault("limit", 0)
	v.SetDefault("concurrency", 1)
	v.SetDefault("max_chars", "120000")
	v.SetDefault("retries", 2)
	v.SetDefault("timeout", 120*time.Second)
	v.SetDefault("skip_unreadable", false)

	v.SetDefault("prompt.instructions", "")
	v.SetDefault("prompt.instructions_file", "")

	v.SetDefault("ocr.enabled", true)
	v.SetDefault("ocr.binary", "ocrmypdf")
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.timeout", 10*time.Minute)
	v.SetDefault("ocr.temp_dir", "")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.fallback", []string{})
}

// NewViper returns a viper instance with defaults and PRIMA_ environment
// overrides. cfgFile is read when set; otherwise ./prima.yaml is read if
// present.
func NewViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("prima")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return v, nil
}

// Load decodes v into a Config and resolves derived values: the character
// budget, the provider's default model, the API key from the provider's
// usual environment variable and the instructions file.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	maxChars, err := ParseMaxChars(v.GetString("max_chars"))
	if err != nil {
		return Config{}, err
	}
	cfg.MaxChars = maxChars

	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = llm.DefaultModel(cfg.LLM.Provider)
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = KeyFromEnv(cfg.LLM.Provider)
	}

	if path := cfg.Prompt.InstructionsFile; path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read instructions file: %w", err)
		}
		cfg.Prompt.Instructions = strings.TrimSpace(cfg.Prompt.Instructions + "\n" + string(data))
	}

	return cfg, nil
}

// ParseMaxChars accepts a plain count or a humanized size such as "120k"
// or "120KB". "0" and "" disable the limit.
func ParseMaxChars(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("invalid max_chars %q: must not be negative", s)
		}
		return n, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid max_chars %q: %w", s, err)
	}
	return int(n), nil
}

// KeyFromEnv reads the provider's conventional API key variable.
func KeyFromEnv(provider string) string {
	if env := llm.APIKeyEnv(provider); env != "" {
		return os.Getenv(env)
	}
	return ""
}

// Validate checks field constraints, the provider names and credentials.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q (value %v)", e.Namespace(), e.Tag(), e.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	providers := append([]string{c.LLM.Provider}, c.LLM.Fallback...)
	for i, name := range providers {
		if !llm.IsRegistered(name) {
			return fmt.Errorf("unknown provider: %s (available: %s)", name, strings.Join(llm.AvailableProviders(), ", "))
		}
		if !llm.RequiresAPIKey(name) {
			continue
		}
		key := KeyFromEnv(name)
		if i == 0 {
			key = c.LLM.APIKey
		}
		if key == "" {
			return fmt.Errorf("%w: provider %s needs %s or --api-key", ErrNoCredential, name, llm.APIKeyEnv(name))
		}
	}
	return nil
}
