package completion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-wizard"
	"github.com/goliatone/go-wizard/pkg/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchemaAcceptsBareAndMappedFields(t *testing.T) {
	schema, err := ParseSchema([]byte(`
sections:
  - id: site
    trackProgress: true
    fields:
      - "  subjectData.area  "
      - path: subjectData.floodZone
        when: subjectData?.inFloodArea == true
`))
	require.NoError(t, err)

	section, ok := schema.Section("site")
	require.True(t, ok)
	assert.Equal(t, []Field{
		{Path: "subjectData.area"},
		{Path: "subjectData.floodZone", When: "subjectData?.inFloodArea == true"},
	}, section.Fields)
	assert.Equal(t, []string{"subjectData.area", "subjectData.floodZone"}, schema.Paths())
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	schema := Schema{Sections: []Section{
		{ID: "a", CelebrationLevel: "huge"},
		{ID: "a"},
		{ID: "b", Tabs: []Tab{{ID: "t"}, {ID: "t"}}, Fields: []Field{{Path: "x"}}, DefaultTab: "nope"},
		{ID: "c", Fields: []Field{{Path: ""}, {Path: "owners[x]"}}},
	}}

	err := schema.Validate()
	require.ErrorIs(t, err, ErrInvalidSchema)
	for _, want := range []string{
		`unknown celebration level "huge"`,
		`duplicate section "a"`,
		`duplicate tab "t"`,
		"not both",
		`default tab "nope"`,
		"empty path",
		"bad index",
	} {
		assert.Contains(t, err.Error(), want)
	}

	_, err = NewEngine(schema)
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestDefaultSchemaShape(t *testing.T) {
	schema := DefaultSchema()
	require.NoError(t, schema.Validate())

	var ids []string
	for _, section := range schema.TrackedSections() {
		ids = append(ids, section.ID)
	}
	assert.Equal(t, []string{"setup", "subject", "components", "income", "reconciliation", "photos"}, ids)

	review, ok := schema.Section("review")
	require.True(t, ok)
	assert.False(t, review.TrackProgress)
	assert.Equal(t, wizard.CelebrationNone, review.CelebrationLevel)

	subject, _ := schema.Section("subject")
	assert.Equal(t, wizard.CelebrationMajor, subject.CelebrationLevel)
	assert.Equal(t, "location", subject.DefaultTab)

	raw := DefaultSchemaYAML()
	raw[0] = 'X'
	assert.NotEqual(t, raw[0], DefaultSchemaYAML()[0])
}

func TestLoadSchemaFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(good, DefaultSchemaYAML(), 0o600))

	schema, err := LoadSchemaFile(good)
	require.NoError(t, err)
	assert.Len(t, schema.Sections, len(DefaultSchema().Sections))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("sections:\n  - label: no id\n"), 0o600))
	_, err = LoadSchemaFile(bad)
	require.ErrorIs(t, err, ErrInvalidSchema)
	assert.Contains(t, err.Error(), bad)

	_, err = LoadSchemaFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestEngineWithCELConditions(t *testing.T) {
	backend, err := rules.Lookup(rules.BackendCEL)
	require.NoError(t, err)

	schema := Schema{Sections: []Section{{
		ID:            "income",
		TrackProgress: true,
		Tabs: []Tab{{
			ID:     "rent-roll",
			When:   `propertyType == "commercial"`,
			Fields: []Field{{Path: "incomeApproachInstances"}},
		}},
	}}}
	engine, err := NewEngine(schema, WithConditions(rules.NewCompiler(rules.WithBackend(backend))))
	require.NoError(t, err)

	residential := apply(t, wizard.Defaults(), wizard.SetPropertyType{PropertyType: "residential"})
	commercial := apply(t, wizard.Defaults(), wizard.SetPropertyType{PropertyType: "commercial"})

	assert.Equal(t, 100, engine.SectionCompletion(residential, "income"))
	assert.Equal(t, 0, engine.SectionCompletion(commercial, "income"))
	assert.Equal(t, 0, engine.OverallCompletion(commercial))
}
