package peco

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hunterdeturk/PRIMA/pkg/schema"
)

func TestSchema_FieldContract(t *testing.T) {
	s, err := Schema()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"title", "year", "journal", "doi",
		"study_design", "sample_size_total", "follow_up",
		"population", "exposure_or_intervention", "comparator", "outcomes",
		"a", "b", "c", "d",
		"effect_measures", "p_value",
		"notes",
	}, s.FieldNames())

	for _, f := range s.Fields {
		assert.True(t, f.Required, "%s should be required", f.Name)
		assert.True(t, f.Nullable, "%s should be nullable", f.Name)
	}

	for _, name := range []string{"year", "sample_size_total", "a", "b", "c", "d"} {
		f, _ := s.Field(name)
		assert.Equal(t, schema.TypeInteger, f.Type, name)
	}

	design, _ := s.Field("study_design")
	assert.True(t, design.IsEnum())
	assert.Contains(t, design.Enum, DesignCaseControl)
	assert.Contains(t, design.Enum, DesignRCT)
}

func TestSchema_ValuesMatchFields(t *testing.T) {
	s := MustSchema()
	values := Record{}.Values()
	assert.Len(t, values, len(s.Fields))
	for _, name := range s.FieldNames() {
		v, ok := values[name]
		assert.True(t, ok, "Values() missing %s", name)
		assert.Nil(t, v)
	}
}

func TestCheckCompatible(t *testing.T) {
	base := MustSchema()
	require.NoError(t, CheckCompatible(base))

	custom := base
	custom.Fields = append([]schema.Field(nil), base.Fields...)
	custom.Fields[11].Description = "Earlobe crease present and CAD present."
	assert.NoError(t, CheckCompatible(custom))

	missing := base
	missing.Fields = base.Fields[:len(base.Fields)-1]
	assert.ErrorContains(t, CheckCompatible(missing), "expected")

	retyped := base
	retyped.Fields = append([]schema.Field(nil), base.Fields...)
	retyped.Fields[1].Type = schema.TypeString
	assert.ErrorContains(t, CheckCompatible(retyped), `"year"`)

	renamed := base
	renamed.Fields = append([]schema.Field(nil), base.Fields...)
	renamed.Fields[0].Name = "headline"
	assert.ErrorContains(t, CheckCompatible(renamed), `missing field "title"`)
}

func TestFromCustom_RequiresEveryField(t *testing.T) {
	base := MustSchema()
	loose := schema.Schema{Name: "loose", Fields: append([]schema.Field(nil), base.Fields...)}
	for i := range loose.Fields {
		loose.Fields[i].Required = false
	}

	got, err := FromCustom(loose)
	require.NoError(t, err)
	for _, f := range got.Fields {
		assert.True(t, f.Required, "%s should be required", f.Name)
	}
	assert.False(t, loose.Fields[0].Required, "input schema must not be modified")
	assert.Equal(t, Description, got.Description)

	doc, err := got.ToJSONSchema()
	require.NoError(t, err)
	assert.Contains(t, doc["required"], "doi")

	loose.Fields = loose.Fields[1:]
	_, err = FromCustom(loose)
	assert.ErrorContains(t, err, "expected")
}

func TestRecord_Counts(t *testing.T) {
	one, two := 1, 2
	r := Record{A: &one, B: &two, C: &one}
	_, _, _, d := r.Counts()
	assert.Nil(t, d)

	r.D = &two
	a, b, c, d := r.Counts()
	assert.Equal(t, 1, *a)
	assert.Equal(t, 2, *b)
	assert.Equal(t, 1, *c)
	assert.Equal(t, 2, *d)
	assert.Equal(t, 2, r.Values()["d"])
}

func TestRecord_Validate(t *testing.T) {
	year := 1700
	neg := -1
	ok := 2019

	assert.Empty(t, Record{Year: &ok}.Validate())
	assert.Empty(t, Record{}.Validate())

	errs := Record{Year: &year, C: &neg}.Validate()
	require.Len(t, errs, 2)
	assert.Equal(t, "year", errs[0].Field)
	assert.Equal(t, "c", errs[1].Field)
}
