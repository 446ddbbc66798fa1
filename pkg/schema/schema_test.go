package schema

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// Test structs for NewSchema

type citation struct {
	Title   *string `json:"title" description:"Article title"`
	Year    *int    `json:"year" description:"Publication year" validate:"omitempty,min=1800,max=2100"`
	Design  *string `json:"design" enum:"cohort|case-control|other"`
	Journal string  `json:"journal,omitempty"`
}

type withSlice struct {
	Tags []string `json:"tags"`
}

type withStruct struct {
	Counts struct {
		A *int `json:"a"`
	} `json:"counts"`
}

type withAllTypes struct {
	StringField  string  `json:"string_field"`
	IntField     int     `json:"int_field"`
	Int64Field   int64   `json:"int64_field"`
	Float32Field float32 `json:"float32_field"`
	Float64Field float64 `json:"float64_field"`
	BoolField    bool    `json:"bool_field"`
	Skipped      string  `json:"-"`
	unexported   string
}

type withBadEnum struct {
	Count int `json:"count" enum:"1|2"`
}

func mustSchema[T any](t *testing.T, opts ...SchemaOption) Schema {
	t.Helper()
	s, err := NewSchema[T](opts...)
	if err != nil {
		t.Fatalf("NewSchema() error = %v", err)
	}
	return s
}

// --- NewSchema Tests ---

func TestNewSchema_NullableAndRequired(t *testing.T) {
	s := mustSchema[citation](t)

	if s.Name != "citation" {
		t.Errorf("Name = %q, want %q", s.Name, "citation")
	}
	if got := s.FieldNames(); !reflect.DeepEqual(got, []string{"title", "year", "design", "journal"}) {
		t.Fatalf("FieldNames() = %v", got)
	}

	title, _ := s.Field("title")
	if !title.Required || !title.Nullable || title.Type != TypeString {
		t.Errorf("title = %+v, want required nullable string", title)
	}
	year, _ := s.Field("year")
	if year.Type != TypeInteger || !year.Nullable {
		t.Errorf("year = %+v, want nullable integer", year)
	}
	if !reflect.DeepEqual(year.Validators, []string{"omitempty", "min=1800", "max=2100"}) {
		t.Errorf("year validators = %v", year.Validators)
	}
	journal, _ := s.Field("journal")
	if journal.Required || journal.Nullable {
		t.Errorf("journal = %+v, want optional non-nullable", journal)
	}
}

func TestNewSchema_EnumTag(t *testing.T) {
	s := mustSchema[citation](t)
	design, ok := s.Field("design")
	if !ok {
		t.Fatal("design field missing")
	}
	if !design.IsEnum() {
		t.Fatal("design should be an enum")
	}
	if !reflect.DeepEqual(design.Enum, []string{"cohort", "case-control", "other"}) {
		t.Errorf("Enum = %v", design.Enum)
	}
}

func TestNewSchema_EnumOnNonString(t *testing.T) {
	if _, err := NewSchema[withBadEnum](); err == nil {
		t.Fatal("expected error for enum on integer field")
	}
}

func TestNewSchema_UnsupportedKinds(t *testing.T) {
	if _, err := NewSchema[withSlice](); err == nil || !strings.Contains(err.Error(), "Tags") {
		t.Errorf("NewSchema[withSlice]() error = %v, want error naming Tags", err)
	}
	if _, err := NewSchema[withStruct](); err == nil || !strings.Contains(err.Error(), "Counts") {
		t.Errorf("NewSchema[withStruct]() error = %v, want error naming Counts", err)
	}
}

func TestNewSchema_AllTypes(t *testing.T) {
	s := mustSchema[withAllTypes](t)

	want := map[string]FieldType{
		"string_field":  TypeString,
		"int_field":     TypeInteger,
		"int64_field":   TypeInteger,
		"float32_field": TypeNumber,
		"float64_field": TypeNumber,
		"bool_field":    TypeBoolean,
	}
	if len(s.Fields) != len(want) {
		t.Fatalf("expected %d fields, got %d", len(want), len(s.Fields))
	}
	for _, f := range s.Fields {
		if want[f.Name] != f.Type {
			t.Errorf("field %s type = %s, want %s", f.Name, f.Type, want[f.Name])
		}
	}
}

func TestNewSchema_Options(t *testing.T) {
	s := mustSchema[citation](t, WithName("peco"), WithDescription("Study records"))
	if s.Name != "peco" || s.Description != "Study records" {
		t.Errorf("got name=%q description=%q", s.Name, s.Description)
	}
}

func TestNewSchema_NonStructType_Error(t *testing.T) {
	if _, err := NewSchema[string](); err == nil {
		t.Error("expected error for non-struct type")
	}
}

// --- File loading Tests ---

func TestFromYAML_KeepsFieldOrder(t *testing.T) {
	s, err := FromYAML([]byte(`
name: counts
fields:
  - name: d
    type: integer
    nullable: true
  - name: a
    type: integer
    nullable: true
  - name: design
    type: string
    enum: [cohort, other]
`))
	if err != nil {
		t.Fatalf("FromYAML() error = %v", err)
	}

	if got := s.FieldNames(); !reflect.DeepEqual(got, []string{"d", "a", "design"}) {
		t.Errorf("FieldNames() = %v, want d, a, design", got)
	}
	if !s.Fields[1].Nullable || s.Fields[1].Required {
		t.Errorf("a = %+v, want nullable and optional", s.Fields[1])
	}
	if !s.Fields[2].IsEnum() {
		t.Error("design should be an enum")
	}
}

func TestFromJSON_RejectsUnsupportedFields(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"object type", `{"fields": [{"name": "table", "type": "object"}]}`, "unsupported type"},
		{"missing type", `{"fields": [{"name": "doi"}]}`, "unsupported type"},
		{"missing name", `{"fields": [{"type": "string"}]}`, "without a name"},
		{"duplicate", `{"fields": [{"name": "a", "type": "string"}, {"name": "a", "type": "string"}]}`, "duplicate"},
		{"enum on integer", `{"fields": [{"name": "n", "type": "integer", "enum": ["1"]}]}`, "enum"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromJSON([]byte(tt.json))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("FromJSON() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestFromJSON_InvalidJSON(t *testing.T) {
	if _, err := FromJSON([]byte(`{not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	if err := os.WriteFile(path, []byte("name: x\nfields:\n  - name: doi\n    type: string\n    nullable: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile() error = %v", err)
	}
	if len(s.Fields) != 1 || !s.Fields[0].Nullable {
		t.Errorf("Fields = %+v", s.Fields)
	}

	if _, err := FromFile(filepath.Join(dir, "schema.toml")); err == nil {
		t.Error("expected error for missing file")
	}
	bad := filepath.Join(dir, "schema.txt")
	_ = os.WriteFile(bad, []byte("x"), 0o644)
	if _, err := FromFile(bad); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("FromFile(.txt) error = %v, want unsupported format", err)
	}
}

func TestField_JSONRoundTripKeepsNullableAndEnum(t *testing.T) {
	f := Field{Name: "design", Type: TypeString, Nullable: true, Required: true, Enum: []string{"cohort"}}
	b, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var got Field
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !reflect.DeepEqual(got, f) {
		t.Errorf("round trip = %+v, want %+v", got, f)
	}
}

// --- Validate Tests ---

func TestValidateMap(t *testing.T) {
	s := mustSchema[citation](t)

	tests := []struct {
		name      string
		data      map[string]any
		wantField string
		errSubstr string
	}{
		{
			name: "all_null",
			data: map[string]any{"title": nil, "year": nil, "design": nil},
		},
		{
			name:      "missing_required",
			data:      map[string]any{"title": "T", "design": nil},
			wantField: "year",
			errSubstr: "missing",
		},
		{
			name:      "wrong_type",
			data:      map[string]any{"title": "T", "year": "2001", "design": nil},
			wantField: "year",
			errSubstr: "expected integer",
		},
		{
			name:      "fractional_integer",
			data:      map[string]any{"title": "T", "year": 2001.5, "design": nil},
			wantField: "year",
			errSubstr: "expected integer",
		},
		{
			name:      "enum_mismatch",
			data:      map[string]any{"title": "T", "year": json.Number("2001"), "design": "rct"},
			wantField: "design",
			errSubstr: "one of",
		},
		{
			name:      "null_on_non_nullable",
			data:      map[string]any{"title": "T", "year": nil, "design": nil, "journal": nil},
			wantField: "journal",
			errSubstr: "not nullable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := s.Validate(tt.data)
			if tt.wantField == "" {
				if len(errs) != 0 {
					t.Fatalf("expected no errors, got %v", errs)
				}
				return
			}
			if len(errs) != 1 {
				t.Fatalf("expected 1 error, got %v", errs)
			}
			if errs[0].Field != tt.wantField {
				t.Errorf("Field = %q, want %q", errs[0].Field, tt.wantField)
			}
			if !strings.Contains(errs[0].Message, tt.errSubstr) {
				t.Errorf("Message = %q, want substring %q", errs[0].Message, tt.errSubstr)
			}
		})
	}
}

func TestValidate_StructTags(t *testing.T) {
	s := mustSchema[citation](t)

	year := 1700
	errs := s.Validate(&citation{Year: &year})
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	if errs[0].Field != "year" {
		t.Errorf("Field = %q, want json name %q", errs[0].Field, "year")
	}
	if !strings.Contains(errs[0].Message, "at least 1800") {
		t.Errorf("Message = %q", errs[0].Message)
	}

	if errs := s.Validate(&citation{}); len(errs) != 0 {
		t.Errorf("nil pointers should pass omitempty validators, got %v", errs)
	}
}

// --- Normalize Tests ---

func TestNormalize(t *testing.T) {
	s := mustSchema[citation](t)

	got := s.Normalize(map[string]any{
		"title":   "  ",
		"year":    "2,004",
		"design":  "Case-Control",
		"journal": " Lancet ",
		"extra":   "dropped",
	})

	want := map[string]any{
		"title":   nil,
		"year":    int64(2004),
		"design":  "case-control",
		"journal": "Lancet",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize() = %#v, want %#v", got, want)
	}
}

func TestNormalize_NumbersAndLeftovers(t *testing.T) {
	type numbers struct {
		N *int     `json:"n"`
		P *float64 `json:"p"`
		M *int     `json:"m"`
	}
	s := mustSchema[numbers](t)

	got := s.Normalize(map[string]any{
		"n": json.Number("12"),
		"p": "0.05",
		"m": "about twelve",
	})

	if got["n"] != int64(12) {
		t.Errorf("n = %#v, want int64(12)", got["n"])
	}
	if got["p"] != 0.05 {
		t.Errorf("p = %#v, want 0.05", got["p"])
	}
	if got["m"] != "about twelve" {
		t.Errorf("m = %#v, want the original string kept for validation", got["m"])
	}
	if errs := s.Validate(got); len(errs) != 1 || errs[0].Field != "m" {
		t.Errorf("Validate() = %v, want one error on m", errs)
	}
}

func TestNormalize_OutOfRangeIntegersAreNotCoerced(t *testing.T) {
	type counts struct {
		A *int `json:"a"`
	}
	s := mustSchema[counts](t)

	for _, in := range []any{"1e19", json.Number("1e30"), 1e300} {
		got := s.Normalize(map[string]any{"a": in})
		if got["a"] != in {
			t.Errorf("Normalize(%v) = %#v, want the value kept", in, got["a"])
		}
		errs := s.Validate(got)
		if len(errs) != 1 || !strings.Contains(errs[0].Message, "expected integer") {
			t.Errorf("Validate(%v) = %v, want an integer type error", in, errs)
		}
	}

	if got := s.Normalize(map[string]any{"a": "-9e18"}); got["a"] != int64(-9e18) {
		t.Errorf("Normalize(-9e18) = %#v, want int64", got["a"])
	}
}

func TestNormalize_MissingKeysStayMissing(t *testing.T) {
	s := mustSchema[citation](t)
	got := s.Normalize(map[string]any{"title": "x"})
	if _, ok := got["year"]; ok {
		t.Error("Normalize() must not invent missing keys")
	}
}
