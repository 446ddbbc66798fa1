package extractor

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/hunterdeturk/PRIMA/pkg/schema"
)

// DefaultMaxChars bounds the document text placed in a prompt.
const DefaultMaxChars = 120000

// SystemPrompt is the fixed instruction block sent with every request.
const SystemPrompt = `You are a data extraction assistant for biomedical literature. Extract structured study data from the text of a published article.

The text was recovered from a PDF and may contain OCR noise, running headers and broken tables.

Respond with ONLY a JSON object matching the schema. No explanations, no markdown.

Rules:
1. Every field must be present. Use null when the article does not report a value; never omit a field.
2. Integers: digits only, no thousands separators, units or ranges.
3. Do not guess. Prefer null over an inferred value.
4. 2x2 counts: a = exposed with outcome, b = exposed without outcome, c = unexposed with outcome, d = unexposed without outcome. Fill them only when the article reports them or they can be read directly from a table.`

// PromptOptions tunes prompt construction.
type PromptOptions struct {
	MaxChars     int    // rune budget for the document text; 0 = DefaultMaxChars, <0 = unlimited
	Filename     string // source file hint; only the base name is used
	Instructions string // extra domain instructions appended to the system prompt
}

// Prompt is a complete extraction request. Building it is pure: the same
// inputs always give a byte-identical Prompt.
type Prompt struct {
	System     string
	User       string
	JSONSchema map[string]any
	SchemaName string
	Truncated  bool
}

// Fingerprint is a hex SHA-256 over the system text, the user text and the
// canonical JSON of the schema.
func (p Prompt) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(p.System))
	h.Write([]byte{0})
	h.Write([]byte(p.User))
	h.Write([]byte{0})
	if b, err := json.Marshal(p.JSONSchema); err == nil {
		h.Write(b)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Prompter builds prompts for one schema. The JSON Schema and the field
// description are computed once.
type Prompter struct {
	schemaName  string
	description string
	jsonSchema  map[string]any
	opts        PromptOptions
}

// NewPrompter prepares a Prompter for s.
func NewPrompter(s schema.Schema, opts PromptOptions) (*Prompter, error) {
	js, err := s.ToJSONSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to generate JSON schema: %w", err)
	}
	if opts.MaxChars == 0 {
		opts.MaxChars = DefaultMaxChars
	}
	return &Prompter{
		schemaName:  s.Name,
		description: s.ToPromptDescription(),
		jsonSchema:  js,
		opts:        opts,
	}, nil
}

// BuildPrompt is a one-shot NewPrompter followed by Build.
func BuildPrompt(text string, s schema.Schema, opts PromptOptions) (Prompt, error) {
	p, err := NewPrompter(s, opts)
	if err != nil {
		return Prompt{}, err
	}
	return p.Build(text, opts.Filename), nil
}

// noText stands in for an article whose text could not be recovered.
const noText = "(none)"

// Build creates the prompt for one document. filename overrides the
// configured hint when non-empty.
func (p *Prompter) Build(text, filename string) Prompt {
	if filename == "" {
		filename = p.opts.Filename
	}
	body, truncated := TruncateRunes(text, p.opts.MaxChars)
	if strings.TrimSpace(body) == "" {
		body = noText
	}

	var user strings.Builder
	user.WriteString("Extract the study record from the following article text.\n\n")
	user.WriteString(p.description)
	user.WriteString("\nEvery field listed above must appear in your answer. Use null for anything the article does not report.\n")

	if filename != "" {
		user.WriteString("\n## Source File\n")
		user.WriteString(filepath.Base(filename))
		user.WriteString("\n")
	}

	user.WriteString("\n## Article Text\n")
	user.WriteString("```\n")
	user.WriteString(body)
	user.WriteString("\n```\n")
	if truncated {
		fmt.Fprintf(&user, "\n[Text truncated to the first %d characters.]\n", p.opts.MaxChars)
	}

	system := SystemPrompt
	if instr := strings.TrimSpace(p.opts.Instructions); instr != "" {
		system += "\n\nAdditional instructions:\n" + instr
	}

	return Prompt{
		System:     system,
		User:       user.String(),
		JSONSchema: p.jsonSchema,
		SchemaName: p.schemaName,
		Truncated:  truncated,
	}
}

// maxEchoedOutput bounds the previous response quoted in a corrective prompt.
const maxEchoedOutput = 4000

// CorrectivePrompt extends p with the rejected output and the reason it was
// rejected, asking for the whole object again.
func CorrectivePrompt(p Prompt, previousOutput string, failure error) Prompt {
	previousOutput = strings.TrimSpace(previousOutput)
	if echoed, cut := TruncateRunes(previousOutput, maxEchoedOutput); cut {
		previousOutput = echoed + "\n...[truncated]"
	}

	details := ""
	var sve *SchemaValidationError
	if errors.As(failure, &sve) {
		details = sve.Details()
	} else if failure != nil {
		details = "- " + failure.Error()
	}

	var user strings.Builder
	user.WriteString(p.User)
	user.WriteString("\n## Previous Attempt Errors\n")
	user.WriteString("Your previous answer was rejected:\n")
	user.WriteString(details)
	user.WriteString("\n\nYour previous answer:\n```\n")
	user.WriteString(previousOutput)
	user.WriteString("\n```\n")
	user.WriteString("\nReturn ONLY the corrected JSON object. Include every schema field, using null where the article reports nothing.\n")

	p.User = user.String()
	return p
}

// TruncateRunes keeps the first max runes of s. max <= 0 means no limit.
func TruncateRunes(s string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s, false
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i], true
		}
		n++
	}
	return s, false
}
