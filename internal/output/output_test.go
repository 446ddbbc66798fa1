package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// testRow is a minimal Record.
type testRow struct {
	Name  string
	Value any
}

func (r testRow) Columns() []string { return []string{"name", "value"} }
func (r testRow) Values() []any     { return []any{r.Name, r.Value} }

type badRow struct{}

func (badRow) Columns() []string { return []string{"a", "b"} }
func (badRow) Values() []any     { return []any{1} }

func rows(items ...testRow) []Record {
	out := make([]Record, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out
}

// --- NewWriter Factory Tests ---

func TestNewWriter_Types(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{FormatXLSX, "*output.XLSXWriter"},
		{FormatCSV, "*output.CSVWriter"},
		{FormatJSON, "*output.JSONWriter"},
		{FormatJSONL, "*output.JSONLWriter"},
		{FormatYAML, "*output.YAMLWriter"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			w, err := NewWriter(&bytes.Buffer{}, tt.format)
			if err != nil {
				t.Fatalf("NewWriter() error = %v", err)
			}
			if got := fmt.Sprintf("%T", w); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestNewWriter_UnsupportedFormat(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, Format("unsupported"))
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("expected error containing 'unsupported', got %v", err)
	}
}

func TestNewWriter_Options(t *testing.T) {
	buf := &bytes.Buffer{}
	w, err := NewWriter(buf, FormatJSON, WithPretty(false))
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	if err := w.WriteAll(rows(testRow{Name: "a", Value: 1})); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := buf.String(); got != `[{"name":"a","value":1}]`+"\n" {
		t.Errorf("compact output = %q", got)
	}

	buf = &bytes.Buffer{}
	w, err = NewWriter(buf, FormatXLSX, WithSheetName("peco"))
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("invalid workbook: %v", err)
	}
	defer f.Close()
	if idx, _ := f.GetSheetIndex("peco"); idx == -1 {
		t.Errorf("expected sheet %q, got %v", "peco", f.GetSheetList())
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"xlsx", FormatXLSX, false},
		{"CSV", FormatCSV, false},
		{" json ", FormatJSON, false},
		{"yml", FormatYAML, false},
		{"xls", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatFromPath(t *testing.T) {
	if f, err := FormatFromPath("out/results.XLSX"); err != nil || f != FormatXLSX {
		t.Errorf("FormatFromPath() = %q, %v", f, err)
	}
	if _, err := FormatFromPath("results"); err == nil {
		t.Error("expected error for path without extension")
	}
}

// --- JSONWriter Tests ---

func TestJSONWriter_KeepsColumnOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf, false)

	if err := w.WriteAll(rows(testRow{Name: "a", Value: 1}, testRow{Name: "b", Value: nil})); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	want := `[{"name":"a","value":1},{"name":"b","value":null}]` + "\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestJSONWriter_SingleItemIsStillArray(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf, true)

	if err := w.Write(testRow{Name: "only", Value: 2.5}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	var result []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if len(result) != 1 || result[0]["name"] != "only" {
		t.Errorf("unexpected output: %v", result)
	}
	if !strings.Contains(buf.String(), "\n  {") {
		t.Errorf("expected indented output, got %q", buf.String())
	}
}

func TestJSONWriter_CloseAfterFlushWritesOnce(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf, false)
	_ = w.Write(testRow{Name: "x"})

	if err := w.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if n := strings.Count(buf.String(), "\n"); n != 1 {
		t.Errorf("expected one document, got %d lines: %q", n, buf.String())
	}
}

func TestJSONWriter_Empty(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf, true)

	if err := w.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("expected empty array, got %q", buf.String())
	}
}

func TestJSONWriter_ShapeMismatch(t *testing.T) {
	w := NewJSONWriter(&bytes.Buffer{}, false)
	if err := w.Write(badRow{}); err == nil {
		t.Error("expected error for mismatched row")
	}
}

// --- JSONLWriter Tests ---

func TestJSONLWriter_SeparateLines(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONLWriter(buf)

	if err := WriteRows(w, []testRow{{Name: "a", Value: 1}, {Name: "b", Value: 2}}); err != nil {
		t.Fatalf("WriteRows() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[1] != `{"name":"b","value":2}` {
		t.Errorf("line 2 = %q", lines[1])
	}
}

func TestJSONLWriter_Empty(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONLWriter(buf)
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected empty output, got %q", buf.String())
	}
}

// --- YAMLWriter Tests ---

func TestYAMLWriter_KeepsColumnOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewYAMLWriter(buf)

	if err := w.WriteAll(rows(testRow{Name: "a", Value: 1}, testRow{Name: "b"})); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	out := buf.String()
	if strings.Index(out, "name: a") > strings.Index(out, "value: 1") {
		t.Errorf("columns out of order: %q", out)
	}

	var result []map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("invalid YAML output: %v", err)
	}
	if len(result) != 2 || result[1]["value"] != nil {
		t.Errorf("unexpected output: %v", result)
	}
}

func TestYAMLWriter_Empty(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewYAMLWriter(buf)
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("expected empty sequence, got %q", buf.String())
	}
}

// --- CSVWriter Tests ---

func TestCSVWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewCSVWriter(buf)

	if err := w.WriteAll(rows(
		testRow{Name: "a, with comma", Value: 0.5325},
		testRow{Name: "b", Value: nil},
		testRow{Name: "c", Value: true},
	)); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	records, err := csv.NewReader(buf).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV output: %v", err)
	}
	want := [][]string{
		{"name", "value"},
		{"a, with comma", "0.5325"},
		{"b", ""},
		{"c", "true"},
	}
	if len(records) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(records))
	}
	for i := range want {
		for j := range want[i] {
			if records[i][j] != want[i][j] {
				t.Errorf("record %d col %d = %q, want %q", i, j, records[i][j], want[i][j])
			}
		}
	}
}

func TestFormatCell(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{42, "42"},
		{int64(7), "7"},
		{13.333333333333334, "13.333333333333334"},
		{false, "false"},
	}
	for _, tt := range tests {
		if got := FormatCell(tt.in); got != tt.want {
			t.Errorf("FormatCell(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// --- XLSXWriter Tests ---

func TestXLSXWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewXLSXWriter(buf, "results")

	if err := w.WriteAll(rows(testRow{Name: "a", Value: 10}, testRow{Name: "b", Value: nil})); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("invalid workbook: %v", err)
	}
	defer f.Close()

	got, err := f.GetRows("results")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d: %v", len(got), got)
	}
	if got[0][0] != "name" || got[0][1] != "value" {
		t.Errorf("header = %v", got[0])
	}
	if got[1][0] != "a" || got[1][1] != "10" {
		t.Errorf("row 1 = %v", got[1])
	}
	if got[2][0] != "b" || len(got[2]) != 1 {
		t.Errorf("row 2 = %v", got[2])
	}
}

func TestXLSXWriter_EmptyWorkbook(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewXLSXWriter(buf, "")
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("invalid workbook: %v", err)
	}
	defer f.Close()
	if idx, _ := f.GetSheetIndex(DefaultSheetName); idx == -1 {
		t.Errorf("expected sheet %q", DefaultSheetName)
	}
}
