// Package peco defines the study record extracted from each document:
// citation details, study descriptors, PECO fields and 2x2 counts.
package peco

import (
	"fmt"
	"sync"

	"github.com/hunterdeturk/PRIMA/pkg/schema"
)

// Study design categories.
const (
	DesignRCT              = "randomized controlled trial"
	DesignCohort           = "cohort"
	DesignCaseControl      = "case-control"
	DesignCrossSectional   = "cross-sectional"
	DesignCaseSeries       = "case series"
	DesignSystematicReview = "systematic review"
	DesignOther            = "other"
)

// Record is one extracted study. Every field is a pointer; nil is null.
// All keys are required in the model's response, so a response cannot
// omit a field, only set it to null.
type Record struct {
	Title   *string `json:"title" description:"Full article title."`
	Year    *int    `json:"year" description:"Publication year." validate:"omitempty,min=1800,max=2100"`
	Journal *string `json:"journal" description:"Journal name."`
	DOI     *string `json:"doi" description:"Digital Object Identifier without a URL prefix, e.g. 10.1000/xyz123."`

	StudyDesign     *string `json:"study_design" description:"Study design." enum:"randomized controlled trial|cohort|case-control|cross-sectional|case series|systematic review|other"`
	SampleSizeTotal *int    `json:"sample_size_total" description:"Total number of participants analysed." validate:"omitempty,min=0"`
	FollowUp        *string `json:"follow_up" description:"Follow-up duration as reported, e.g. '5 years'."`

	Population             *string `json:"population" description:"Who was studied (P)."`
	ExposureOrIntervention *string `json:"exposure_or_intervention" description:"Exposure or intervention (E)."`
	Comparator             *string `json:"comparator" description:"Comparison group (C)."`
	Outcomes               *string `json:"outcomes" description:"Outcomes measured (O)."`

	A *int `json:"a" description:"2x2 count: exposed with outcome." validate:"omitempty,min=0"`
	B *int `json:"b" description:"2x2 count: exposed without outcome." validate:"omitempty,min=0"`
	C *int `json:"c" description:"2x2 count: unexposed with outcome." validate:"omitempty,min=0"`
	D *int `json:"d" description:"2x2 count: unexposed without outcome." validate:"omitempty,min=0"`

	EffectMeasures *string `json:"effect_measures" description:"Effect estimates reported by the authors, e.g. 'OR 2.1 (95% CI 1.3-3.4)'."`
	PValue         *string `json:"p_value" description:"P value for the main association as reported, e.g. '<0.001'."`

	Notes *string `json:"notes" description:"Anything the reviewer should know, including uncertainty about the counts."`
}

// Description is the extraction context given to the model.
const Description = "A published biomedical study. Extract citation details, the study design, " +
	"the PECO elements (population, exposure or intervention, comparator, outcomes) " +
	"and, when a table allows it, the 2x2 counts for the main exposure and outcome."

var (
	defaultOnce   sync.Once
	defaultSchema schema.Schema
	defaultErr    error
)

// Schema returns the schema describing Record.
func Schema() (schema.Schema, error) {
	defaultOnce.Do(func() {
		defaultSchema, defaultErr = schema.NewSchema[Record](
			schema.WithName("peco_record"),
			schema.WithDescription(Description),
		)
	})
	return defaultSchema, defaultErr
}

// MustSchema is Schema for package initialisation and tests.
func MustSchema() schema.Schema {
	s, err := Schema()
	if err != nil {
		panic(err)
	}
	return s
}

// CheckCompatible reports whether a custom schema, typically loaded from a
// file to change descriptions or categories, still decodes into Record: it
// must declare exactly the Record fields with the same types.
func CheckCompatible(custom schema.Schema) error {
	base, err := Schema()
	if err != nil {
		return err
	}
	if len(custom.Fields) != len(base.Fields) {
		return fmt.Errorf("schema %s: expected %d fields, got %d", custom.Name, len(base.Fields), len(custom.Fields))
	}
	for _, bf := range base.Fields {
		cf, ok := custom.Field(bf.Name)
		if !ok {
			return fmt.Errorf("schema %s: missing field %q", custom.Name, bf.Name)
		}
		if cf.Type != bf.Type {
			return fmt.Errorf("schema %s: field %q has type %s, want %s", custom.Name, bf.Name, cf.Type, bf.Type)
		}
		if !cf.Nullable {
			return fmt.Errorf("schema %s: field %q must be nullable", custom.Name, bf.Name)
		}
	}
	return nil
}

// FromCustom returns custom with every field required, after checking it with
// CheckCompatible. A file schema may leave out "required"; the model still
// has to return every key. An empty description falls back to Description.
func FromCustom(custom schema.Schema) (schema.Schema, error) {
	if err := CheckCompatible(custom); err != nil {
		return schema.Schema{}, err
	}
	out := custom
	out.Fields = make([]schema.Field, len(custom.Fields))
	for i, f := range custom.Fields {
		f.Required = true
		out.Fields[i] = f
	}
	if out.Description == "" {
		out.Description = Description
	}
	return out, nil
}

// Validate checks the struct constraints: the publication year range and
// non-negative counts.
func (r Record) Validate() []schema.ValidationError {
	s, err := Schema()
	if err != nil {
		return []schema.ValidationError{{Field: "record", Message: err.Error()}}
	}
	return s.Validate(&r)
}

// Counts returns the 2x2 cells.
func (r Record) Counts() (a, b, c, d *int) {
	return r.A, r.B, r.C, r.D
}

// Values returns field values keyed by JSON name with nil for null, in the
// shape a tabular writer expects.
func (r Record) Values() map[string]any {
	return map[string]any{
		"title":                    deref(r.Title),
		"year":                     deref(r.Year),
		"journal":                  deref(r.Journal),
		"doi":                      deref(r.DOI),
		"study_design":             deref(r.StudyDesign),
		"sample_size_total":        deref(r.SampleSizeTotal),
		"follow_up":                deref(r.FollowUp),
		"population":               deref(r.Population),
		"exposure_or_intervention": deref(r.ExposureOrIntervention),
		"comparator":               deref(r.Comparator),
		"outcomes":                 deref(r.Outcomes),
		"a":                        deref(r.A),
		"b":                        deref(r.B),
		"c":                        deref(r.C),
		"d":                        deref(r.D),
		"effect_measures":          deref(r.EffectMeasures),
		"p_value":                  deref(r.PValue),
		"notes":                    deref(r.Notes),
	}
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
