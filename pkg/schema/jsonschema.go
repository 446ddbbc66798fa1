package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ToJSONSchema converts the schema to JSON Schema format for LLM structured
// output. Nullable fields get a ["<type>", "null"] type union so that strict
// structured-output modes can list every field as required.
func (s Schema) ToJSONSchema() (map[string]any, error) {
	properties := make(map[string]any, len(s.Fields))
	required := make([]string, 0, len(s.Fields))

	for _, field := range s.Fields {
		if field.Name == "" {
			return nil, fmt.Errorf("schema %s: field without a name", s.Name)
		}
		properties[field.Name] = fieldToJSONSchema(field)
		if field.Required {
			required = append(required, field.Name)
		}
	}

	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false, // Required for strict mode
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	if s.Description != "" {
		schema["description"] = s.Description
	}

	return schema, nil
}

// fieldToJSONSchema converts a Field to JSON Schema format.
func fieldToJSONSchema(f Field) map[string]any {
	schema := map[string]any{}

	if f.Nullable {
		schema["type"] = []any{string(f.Type), "null"}
	} else {
		schema["type"] = string(f.Type)
	}

	if f.Description != "" {
		schema["description"] = f.Description
	}

	if len(f.Examples) > 0 {
		schema["examples"] = f.Examples
	}

	if f.IsEnum() {
		enum := make([]any, 0, len(f.Enum)+1)
		for _, v := range f.Enum {
			enum = append(enum, v)
		}
		if f.Nullable {
			enum = append(enum, nil)
		}
		schema["enum"] = enum
	}

	return schema
}

// Compiled is a schema compiled for document validation.
type Compiled struct {
	schema *jsonschema.Schema
}

// Compile compiles the JSON Schema form of s.
func (s Schema) Compile() (*Compiled, error) {
	doc, err := s.ToJSONSchema()
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Compiled{schema: compiled}, nil
}

// ValidateDocument validates a decoded document. The document is re-encoded
// first so that Go integer types reach the validator as JSON numbers.
func (c *Compiled) ValidateDocument(doc map[string]any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("unmarshal document: %w", err)
	}
	if err := c.schema.Validate(v); err != nil {
		return fmt.Errorf("document does not match schema: %w", err)
	}
	return nil
}

// ToPromptDescription generates a human-readable description for the LLM prompt.
func (s Schema) ToPromptDescription() string {
	var sb strings.Builder

	sb.WriteString("## Content Type\n")
	if s.Description != "" {
		sb.WriteString(s.Description)
	} else {
		sb.WriteString("Extract the following structured data.")
	}
	sb.WriteString("\n\n## Fields to Extract\n")

	for _, field := range s.Fields {
		writeFieldDescription(&sb, field)
	}

	return sb.String()
}

// typeLabel names a field's semantic type for prompts, e.g. "integer or null".
func typeLabel(f Field) string {
	label := string(f.Type)
	if f.IsEnum() {
		label = "category"
	}
	if f.Nullable {
		label += " or null"
	}
	return label
}

// writeFieldDescription writes a field description to the string builder.
func writeFieldDescription(sb *strings.Builder, f Field) {
	sb.WriteString("- ")
	sb.WriteString(f.Name)
	sb.WriteString(" (")
	sb.WriteString(typeLabel(f))
	if f.Required {
		sb.WriteString(", required")
	}
	sb.WriteString(")")

	if f.Description != "" {
		sb.WriteString(": ")
		sb.WriteString(f.Description)
	}
	if f.IsEnum() {
		sb.WriteString(" One of: ")
		sb.WriteString(strings.Join(f.Enum, ", "))
		sb.WriteString(".")
	}

	sb.WriteString("\n")
}
