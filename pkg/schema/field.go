// Package schema describes the record an LLM is asked to produce: field
// names, semantic types, nullability and enumerations. A Schema renders
// itself as JSON Schema for structured-output requests and as a plain-text
// field list for prompts, and it validates and normalizes decoded responses.
//
// Records are flat: every field is a scalar.
package schema

// FieldType represents the type of a schema field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
)

// Valid reports whether t is a known scalar type.
func (t FieldType) Valid() bool {
	switch t {
	case TypeString, TypeNumber, TypeInteger, TypeBoolean:
		return true
	}
	return false
}

// Field represents a single field in the schema.
type Field struct {
	Name        string    `json:"name" yaml:"name"`
	Type        FieldType `json:"type" yaml:"type"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"` // key must be present
	Nullable    bool      `json:"nullable,omitempty" yaml:"nullable,omitempty"` // null is an accepted value
	Enum        []string  `json:"enum,omitempty" yaml:"enum,omitempty"`         // Allowed values for string fields
	Validators  []string  `json:"validators,omitempty" yaml:"validators,omitempty"`
	Examples    []string  `json:"examples,omitempty" yaml:"examples,omitempty"`
}

// IsEnum reports whether the field is an enumerated category.
func (f Field) IsEnum() bool {
	return f.Type == TypeString && len(f.Enum) > 0
}

// ValidationError represents a validation failure on one field.
type ValidationError struct {
	Field   string
	Message string
	Value   any
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
