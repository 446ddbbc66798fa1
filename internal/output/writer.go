// Package output writes result rows as XLSX, CSV, JSON, JSONL or YAML.
package output

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Format represents output format types.
type Format string

const (
	FormatXLSX  Format = "xlsx"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatXLSX, FormatCSV, FormatJSON, FormatJSONL, FormatYAML}
}

// ParseFormat validates a format name. "yml" is accepted for YAML.
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "yml" {
		return FormatYAML, nil
	}
	for _, f := range Formats() {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported output format: %s", name)
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("cannot infer output format from %q", path)
	}
	return ParseFormat(ext)
}

// Record is one output row. Columns and Values have the same length and a
// stable order; a nil value is an empty cell.
type Record interface {
	Columns() []string
	Values() []any
}

// Writer handles output serialization.
type Writer interface {
	// Write outputs a single row.
	Write(row Record) error

	// WriteAll outputs multiple rows.
	WriteAll(rows []Record) error

	// Flush ensures all data is written.
	Flush() error

	// Close releases resources.
	Close() error
}

// WriteRows writes a slice of any Record type.
func WriteRows[R Record](w Writer, rows []R) error {
	records := make([]Record, len(rows))
	for i, r := range rows {
		records[i] = r
	}
	return w.WriteAll(records)
}

// WriterOption configures a writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	pretty bool
	sheet  string
}

// WithPretty enables pretty-printing of JSON output. It is on by default.
func WithPretty(enabled bool) WriterOption {
	return func(c *writerConfig) {
		c.pretty = enabled
	}
}

// WithSheetName sets the worksheet name for XLSX output.
func WithSheetName(name string) WriterOption {
	return func(c *writerConfig) {
		c.sheet = name
	}
}

// NewWriter creates a writer for the specified format.
func NewWriter(w io.Writer, format Format, opts ...WriterOption) (Writer, error) {
	cfg := &writerConfig{
		pretty: true,
		sheet:  DefaultSheetName,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	switch format {
	case FormatXLSX:
		return NewXLSXWriter(w, cfg.sheet), nil
	case FormatCSV:
		return NewCSVWriter(w), nil
	case FormatJSON:
		return NewJSONWriter(w, cfg.pretty), nil
	case FormatJSONL:
		return NewJSONLWriter(w), nil
	case FormatYAML:
		return NewYAMLWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

func checkShape(row Record) ([]string, []any, error) {
	cols, vals := row.Columns(), row.Values()
	if len(cols) != len(vals) {
		return nil, nil, fmt.Errorf("row has %d columns but %d values", len(cols), len(vals))
	}
	return cols, vals, nil
}
