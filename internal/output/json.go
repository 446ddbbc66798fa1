package output

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
)

// orderedRow marshals a Record as a JSON object with keys in column order.
type orderedRow struct {
	cols []string
	vals []any
}

func newOrderedRow(row Record) (orderedRow, error) {
	cols, vals, err := checkShape(row)
	if err != nil {
		return orderedRow{}, err
	}
	return orderedRow{cols: cols, vals: vals}, nil
}

func (r orderedRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.cols {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.vals[i])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// JSONWriter writes JSON output.
type JSONWriter struct {
	w       *bufio.Writer
	pretty  bool
	items   []orderedRow
	flushed bool
}

// NewJSONWriter creates a JSON writer. Pretty output is indented by two
// spaces.
func NewJSONWriter(w io.Writer, pretty bool) *JSONWriter {
	return &JSONWriter{
		w:      bufio.NewWriter(w),
		pretty: pretty,
		items:  make([]orderedRow, 0),
	}
}

// Write buffers a single row for JSON array output.
func (w *JSONWriter) Write(row Record) error {
	item, err := newOrderedRow(row)
	if err != nil {
		return err
	}
	w.items = append(w.items, item)
	return nil
}

// WriteAll buffers all rows.
func (w *JSONWriter) WriteAll(rows []Record) error {
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes the buffered rows as a JSON array. The array is written even
// when it is empty.
func (w *JSONWriter) Flush() error {
	var output []byte
	var err error

	if w.pretty {
		output, err = json.MarshalIndent(w.items, "", "  ")
	} else {
		output, err = json.Marshal(w.items)
	}
	if err != nil {
		return err
	}

	if _, err := w.w.Write(output); err != nil {
		return err
	}
	if _, err := w.w.WriteString("\n"); err != nil {
		return err
	}

	w.items = w.items[:0]
	w.flushed = true
	return w.w.Flush()
}

// Close flushes the writer unless Flush already ran.
func (w *JSONWriter) Close() error {
	if w.flushed {
		return nil
	}
	return w.Flush()
}

// JSONLWriter writes newline-delimited JSON (JSONL).
type JSONLWriter struct {
	w *bufio.Writer
}

// NewJSONLWriter creates a JSONL writer.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{
		w: bufio.NewWriter(w),
	}
}

// Write writes a single row as a JSON line.
func (w *JSONLWriter) Write(row Record) error {
	item, err := newOrderedRow(row)
	if err != nil {
		return err
	}
	output, err := json.Marshal(item)
	if err != nil {
		return err
	}

	if _, err := w.w.Write(output); err != nil {
		return err
	}
	if _, err := w.w.WriteString("\n"); err != nil {
		return err
	}

	return w.w.Flush()
}

// WriteAll writes multiple rows as JSON lines.
func (w *JSONLWriter) WriteAll(rows []Record) error {
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the buffer.
func (w *JSONLWriter) Flush() error {
	return w.w.Flush()
}

// Close flushes the writer.
func (w *JSONLWriter) Close() error {
	return w.Flush()
}
