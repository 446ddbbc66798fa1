package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// CSVWriter streams rows as CSV with a header taken from the first row.
type CSVWriter struct {
	w      *csv.Writer
	header []string
}

// NewCSVWriter creates a CSV writer.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// Write writes a single row, preceded by the header on first use.
func (w *CSVWriter) Write(row Record) error {
	cols, vals, err := checkShape(row)
	if err != nil {
		return err
	}
	if w.header == nil {
		w.header = cols
		if err := w.w.Write(cols); err != nil {
			return err
		}
	} else if len(cols) != len(w.header) {
		return fmt.Errorf("row has %d columns, header has %d", len(cols), len(w.header))
	}

	record := make([]string, len(vals))
	for i, v := range vals {
		record[i] = FormatCell(v)
	}
	return w.w.Write(record)
}

// WriteAll writes multiple rows.
func (w *CSVWriter) WriteAll(rows []Record) error {
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the buffer.
func (w *CSVWriter) Flush() error {
	w.w.Flush()
	return w.w.Error()
}

// Close flushes the writer.
func (w *CSVWriter) Close() error {
	return w.Flush()
}

// FormatCell renders a value for text formats. nil is the empty string and
// floats use the shortest exact representation.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
