package output

import (
	"bufio"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLWriter writes YAML output.
type YAMLWriter struct {
	w       *bufio.Writer
	items   []*yaml.Node
	flushed bool
}

// NewYAMLWriter creates a YAML writer.
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	return &YAMLWriter{
		w:     bufio.NewWriter(w),
		items: make([]*yaml.Node, 0),
	}
}

// rowNode builds a mapping node so keys keep column order.
func rowNode(row Record) (*yaml.Node, error) {
	cols, vals, err := checkShape(row)
	if err != nil {
		return nil, err
	}
	node := &yaml.Node{Kind: yaml.MappingNode}
	for i, col := range cols {
		val := &yaml.Node{}
		if err := val.Encode(vals[i]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: col},
			val,
		)
	}
	return node, nil
}

// Write buffers a single row.
func (w *YAMLWriter) Write(row Record) error {
	node, err := rowNode(row)
	if err != nil {
		return err
	}
	w.items = append(w.items, node)
	return nil
}

// WriteAll buffers multiple rows.
func (w *YAMLWriter) WriteAll(rows []Record) error {
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes the buffered rows as a YAML sequence.
func (w *YAMLWriter) Flush() error {
	encoder := yaml.NewEncoder(w.w)
	encoder.SetIndent(2)

	seq := &yaml.Node{Kind: yaml.SequenceNode, Content: w.items}
	if err := encoder.Encode(seq); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}

	w.items = w.items[:0]
	w.flushed = true
	return w.w.Flush()
}

// Close flushes the writer unless Flush already ran.
func (w *YAMLWriter) Close() error {
	if w.flushed {
		return nil
	}
	return w.Flush()
}
