package extractor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/hunterdeturk/PRIMA/pkg/schema"
)

// SchemaValidationError reports a model response that could not be parsed
// or did not satisfy the schema. Field names the first offending field and
// is empty when the response was not a JSON object at all.
type SchemaValidationError struct {
	Field   string
	Message string
	Errors  []schema.ValidationError
}

func (e *SchemaValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("field %q: %s", e.Field, e.Message)
}

// Details lists every violation, one per line, for a corrective prompt.
func (e *SchemaValidationError) Details() string {
	if len(e.Errors) == 0 {
		return "- " + e.Error()
	}
	var sb strings.Builder
	for i, ve := range e.Errors {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("- Field \"")
		sb.WriteString(ve.Field)
		sb.WriteString("\": ")
		sb.WriteString(ve.Message)
	}
	return sb.String()
}

func newSchemaValidationError(errs []schema.ValidationError) *SchemaValidationError {
	msg := errs[0].Message
	if len(errs) > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, len(errs)-1)
	}
	return &SchemaValidationError{
		Field:   errs[0].Field,
		Message: msg,
		Errors:  errs,
	}
}

// fromJSONSchemaError turns a jsonschema failure into a field-level error
// using the deepest cause's instance location.
func fromJSONSchemaError(err error) *SchemaValidationError {
	out := &SchemaValidationError{Message: err.Error()}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return out
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	out.Field = strings.TrimPrefix(ve.InstanceLocation, "/")
	out.Message = ve.Message
	if out.Field != "" {
		out.Errors = []schema.ValidationError{{Field: out.Field, Message: ve.Message}}
	}
	return out
}

// ErrorKind separates failures to reach the model from failures of the
// model to produce a valid record.
type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindSchema    ErrorKind = "schema"
)

// ExtractionError is returned by Client.Extract.
type ExtractionError struct {
	Kind     ErrorKind
	Field    string // offending field for KindSchema, when known
	Attempts int    // provider calls made
	Err      error
}

func (e *ExtractionError) Error() string {
	var sb strings.Builder
	sb.WriteString("extraction failed (")
	sb.WriteString(string(e.Kind))
	if e.Field != "" {
		sb.WriteString(", field ")
		sb.WriteString(e.Field)
	}
	fmt.Fprintf(&sb, ") after %d attempt", e.Attempts)
	if e.Attempts != 1 {
		sb.WriteByte('s')
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
