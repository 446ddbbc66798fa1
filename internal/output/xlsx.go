package output

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// DefaultSheetName is the worksheet used for XLSX output.
const DefaultSheetName = "extraction"

const (
	minColWidth = 10
	maxColWidth = 60
	// Excel rejects cells longer than this.
	maxCellChars = 32767
)

// XLSXWriter buffers rows into a workbook that is written on Flush.
type XLSXWriter struct {
	out     io.Writer
	sheet   string
	file    *excelize.File
	row     int
	widths  []int
	header  []string
	flushed bool
}

// NewXLSXWriter creates an XLSX writer.
func NewXLSXWriter(w io.Writer, sheet string) *XLSXWriter {
	if sheet == "" {
		sheet = DefaultSheetName
	}
	return &XLSXWriter{out: w, sheet: sheet}
}

func (w *XLSXWriter) init(cols []string) error {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", w.sheet); err != nil {
		_ = f.Close()
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	w.file = f
	w.header = cols
	w.widths = make([]int, len(cols))
	w.row = 1
	return w.writeRow(toAny(cols))
}

// Write adds a single row, preceded by the header on first use.
func (w *XLSXWriter) Write(row Record) error {
	cols, vals, err := checkShape(row)
	if err != nil {
		return err
	}
	if w.file == nil {
		if err := w.init(cols); err != nil {
			return err
		}
	} else if len(cols) != len(w.header) {
		return fmt.Errorf("row has %d columns, header has %d", len(cols), len(w.header))
	}
	return w.writeRow(vals)
}

func (w *XLSXWriter) writeRow(vals []any) error {
	for i, v := range vals {
		cell, err := excelize.CoordinatesToCellName(i+1, w.row)
		if err != nil {
			return err
		}
		if s, ok := v.(string); ok && utf8.RuneCountInString(s) > maxCellChars {
			v = string([]rune(s)[:maxCellChars])
		}
		if v != nil {
			if err := w.file.SetCellValue(w.sheet, cell, v); err != nil {
				return fmt.Errorf("xlsx cell %s: %w", cell, err)
			}
		}
		if n := utf8.RuneCountInString(FormatCell(v)); n > w.widths[i] {
			w.widths[i] = n
		}
	}
	w.row++
	return nil
}

// WriteAll adds multiple rows.
func (w *XLSXWriter) WriteAll(rows []Record) error {
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// Flush sizes the columns and writes the workbook. A writer that received
// no rows produces an empty sheet.
func (w *XLSXWriter) Flush() error {
	if w.file == nil {
		if err := w.init(nil); err != nil {
			return err
		}
	}

	for i, width := range w.widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		width = max(minColWidth, min(maxColWidth, width+2))
		if err := w.file.SetColWidth(w.sheet, col, col, float64(width)); err != nil {
			return err
		}
	}
	if len(w.header) > 0 {
		if err := w.file.SetPanes(w.sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return err
		}
	}

	if err := w.file.Write(w.out); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	w.flushed = true
	return nil
}

// Close writes the workbook unless Flush already ran and releases it.
func (w *XLSXWriter) Close() error {
	var err error
	if !w.flushed {
		err = w.Flush()
	}
	if w.file != nil {
		if cerr := w.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
