package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Schema defines the structure for data extraction.
type Schema struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []Field `json:"fields" yaml:"fields"`

	validate *validator.Validate
}

// SchemaOption configures schema creation.
type SchemaOption func(*schemaBuilder)

type schemaBuilder struct {
	name        string
	description string
}

// WithDescription sets the schema description (the extraction context).
func WithDescription(desc string) SchemaOption {
	return func(b *schemaBuilder) {
		b.description = desc
	}
}

// WithName overrides the schema name, which defaults to the struct name.
func WithName(name string) SchemaOption {
	return func(b *schemaBuilder) {
		b.name = name
	}
}

// NewSchema creates a Schema from a struct type using reflection.
//
// Field names come from json tags. A field without omitempty is required,
// meaning the key must be present. Pointer fields are nullable. The
// description, examples and validate tags are carried over, and an
// enum tag ("a|b|c") turns a string field into an enumerated category.
func NewSchema[T any](opts ...SchemaOption) (Schema, error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return Schema{}, fmt.Errorf("schema must be created from a struct type, got interface")
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return Schema{}, fmt.Errorf("schema must be created from a struct type, got %v", t.Kind())
	}

	builder := &schemaBuilder{name: t.Name()}
	for _, opt := range opts {
		opt(builder)
	}

	fields, err := extractFields(t)
	if err != nil {
		return Schema{}, err
	}

	return Schema{
		Name:        builder.name,
		Description: builder.description,
		Fields:      fields,
		validate:    validator.New(),
	}, nil
}

// FromFile loads a schema from a JSON or YAML file.
func FromFile(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("failed to read schema file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return FromJSON(data)
	case ".yaml", ".yml":
		return FromYAML(data)
	default:
		return Schema{}, fmt.Errorf("unsupported schema file format: %s", ext)
	}
}

// FromJSON creates a schema from JSON data.
func FromJSON(data []byte) (Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return Schema{}, fmt.Errorf("failed to parse JSON schema: %w", err)
	}
	return s.checked()
}

// FromYAML creates a schema from YAML data.
func FromYAML(data []byte) (Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Schema{}, fmt.Errorf("failed to parse YAML schema: %w", err)
	}
	return s.checked()
}

// checked rejects fields a loaded schema cannot describe and attaches the
// validator.
func (s Schema) checked() (Schema, error) {
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return Schema{}, fmt.Errorf("schema field without a name")
		}
		if seen[f.Name] {
			return Schema{}, fmt.Errorf("duplicate schema field %q", f.Name)
		}
		seen[f.Name] = true
		if !f.Type.Valid() {
			return Schema{}, fmt.Errorf("field %s: unsupported type %q", f.Name, f.Type)
		}
		if f.IsEnum() && f.Type != TypeString {
			return Schema{}, fmt.Errorf("field %s: enum requires a string field", f.Name)
		}
	}
	s.validate = validator.New()
	return s, nil
}

// Field returns the field with the given name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns field names in declaration order.
func (s Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// extractFields extracts field definitions from a struct type.
func extractFields(t reflect.Type) ([]Field, error) {
	fields := make([]Field, 0, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() || sf.Tag.Get("json") == "-" {
			continue
		}

		field := Field{
			Name:        getJSONName(sf),
			Description: sf.Tag.Get("description"),
			Required:    !hasOmitempty(sf),
			Validators:  parseValidators(sf.Tag.Get("validate")),
		}

		if examples := sf.Tag.Get("examples"); examples != "" {
			field.Examples = strings.Split(examples, ",")
		}

		fieldType := sf.Type
		if fieldType.Kind() == reflect.Ptr {
			fieldType = fieldType.Elem()
			field.Nullable = true
		}

		typ, err := scalarType(fieldType)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", sf.Name, err)
		}
		field.Type = typ

		if enum := sf.Tag.Get("enum"); enum != "" {
			if field.Type != TypeString {
				return nil, fmt.Errorf("field %s: enum tag requires a string field", sf.Name)
			}
			field.Enum = strings.Split(enum, "|")
		}

		fields = append(fields, field)
	}

	return fields, nil
}

// scalarType maps a Go kind to a field type. Nested records are not
// supported.
func scalarType(t reflect.Type) (FieldType, error) {
	switch t.Kind() {
	case reflect.String:
		return TypeString, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInteger, nil
	case reflect.Float32, reflect.Float64:
		return TypeNumber, nil
	case reflect.Bool:
		return TypeBoolean, nil
	default:
		return "", fmt.Errorf("unsupported type: %v", t.Kind())
	}
}

// getJSONName returns the JSON field name from struct tags.
func getJSONName(sf reflect.StructField) string {
	tag := sf.Tag.Get("json")
	if tag == "" || tag == "-" {
		return sf.Name
	}
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		return parts[0]
	}
	return sf.Name
}

// hasOmitempty checks if the json tag contains omitempty.
func hasOmitempty(sf reflect.StructField) bool {
	return strings.Contains(sf.Tag.Get("json"), "omitempty")
}

// parseValidators extracts validator tags.
func parseValidators(tag string) []string {
	if tag == "" {
		return nil
	}
	return strings.Split(tag, ",")
}

// Validate checks decoded data against the schema. Maps are checked for
// required keys, nullability, types and enum membership. Structs are
// checked with their validate tags.
func (s Schema) Validate(data any) []ValidationError {
	if m, ok := data.(map[string]any); ok {
		return s.validateMap(m)
	}

	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return []ValidationError{{Field: s.Name, Message: "value is nil"}}
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct || s.validate == nil {
		return nil
	}

	err := s.validate.Struct(data)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []ValidationError{{Field: s.Name, Message: err.Error()}}
	}

	errors := make([]ValidationError, 0, len(verrs))
	for _, e := range verrs {
		errors = append(errors, ValidationError{
			Field:   jsonFieldName(v.Type(), e.StructField()),
			Message: formatValidationError(e),
			Value:   e.Value(),
		})
	}
	return errors
}

// jsonFieldName maps a Go struct field name back to its JSON key.
func jsonFieldName(t reflect.Type, structField string) string {
	if sf, ok := t.FieldByName(structField); ok {
		return getJSONName(sf)
	}
	return structField
}

// validateMap validates a map against the schema fields.
func (s Schema) validateMap(data map[string]any) []ValidationError {
	var errors []ValidationError

	for _, field := range s.Fields {
		val, exists := data[field.Name]
		if !exists {
			if field.Required {
				errors = append(errors, ValidationError{
					Field:   field.Name,
					Message: "required field is missing",
				})
			}
			continue
		}

		if err := validateFieldType(field, val); err != nil {
			errors = append(errors, ValidationError{
				Field:   field.Name,
				Message: err.Error(),
				Value:   val,
			})
		}
	}

	return errors
}

// validateFieldType checks if a value matches the expected field type.
func validateFieldType(field Field, val any) error {
	if val == nil {
		if !field.Nullable {
			return fmt.Errorf("value is null but field is not nullable")
		}
		return nil
	}

	switch field.Type {
	case TypeString:
		str, ok := val.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", val)
		}
		if field.IsEnum() && !containsString(field.Enum, str) {
			return fmt.Errorf("expected one of [%s], got %q", strings.Join(field.Enum, ", "), str)
		}
	case TypeInteger:
		if !isInteger(val) {
			return fmt.Errorf("expected integer, got %T (%v)", val, val)
		}
	case TypeNumber:
		if !isNumber(val) {
			return fmt.Errorf("expected number, got %T", val)
		}
	case TypeBoolean:
		if _, ok := val.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", val)
		}
	}

	return nil
}

func isInteger(val any) bool {
	switch v := val.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return fitsInt64(v)
	case json.Number:
		_, err := v.Int64()
		return err == nil
	default:
		return false
	}
}

func isNumber(val any) bool {
	switch v := val.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	case json.Number:
		_, err := v.Float64()
		return err == nil
	default:
		return false
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
