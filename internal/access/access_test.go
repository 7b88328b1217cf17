package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/medicrypt/internal/medrecord"
)

func mustParse(t *testing.T, s string) *medrecord.Record {
	t.Helper()
	rec, err := medrecord.Parse([]byte(s))
	require.NoError(t, err)
	return rec
}

var sampleRecords = []string{
	`{"patient_id":"P1","name":"Alice","bp":"120/80"}`,
	`{"name":"Bob","age":61,"patient_id":"P2","labs":{"hba1c":6.1}}`,
	`{"diagnosis":"asthma"}`,
	`{"patient_id":null,"name":"","meds":["albuterol"]}`,
	`{}`,
}

func TestSanitizeResearcherRedactsIdentifiers(t *testing.T) {
	for _, s := range sampleRecords {
		rec := mustParse(t, s)
		out := Sanitize(rec, RoleResearcher)

		id, ok := out.PatientID()
		assert.True(t, ok, s)
		assert.Equal(t, RedactionMarker, id, s)
		name, ok := out.Name()
		assert.True(t, ok, s)
		assert.Equal(t, RedactionMarker, name, s)

		for _, key := range rec.Keys() {
			if key == medrecord.FieldPatientID || key == medrecord.FieldName {
				continue
			}
			want, _ := rec.Get(key)
			got, ok := out.Get(key)
			require.True(t, ok, "field %q dropped from %s", key, s)
			assert.Equal(t, want, got, "field %q changed in %s", key, s)
		}
	}
}

func TestSanitizeResearcherKeepsFieldOrder(t *testing.T) {
	rec := mustParse(t, `{"name":"Alice","bp":"120/80","patient_id":"P1"}`)
	out := Sanitize(rec, RoleResearcher)
	assert.Equal(t, []string{"name", "bp", "patient_id"}, out.Keys())
}

func TestSanitizePatientIsIdentity(t *testing.T) {
	for _, s := range sampleRecords {
		rec := mustParse(t, s)
		out := Sanitize(rec, RolePatient)
		assert.Same(t, rec, out)
		assert.True(t, out.Equal(mustParse(t, s)))
	}
}

func TestSanitizeDoesNotMutateInput(t *testing.T) {
	for _, s := range sampleRecords {
		rec := mustParse(t, s)
		before := rec.Clone()

		_ = Sanitize(rec, RoleResearcher)
		_ = Sanitize(rec, RolePatient)

		assert.True(t, rec.Equal(before), "input mutated: %s", s)
	}
}

func TestSanitizeIsDeterministic(t *testing.T) {
	rec := mustParse(t, sampleRecords[1])
	a := Sanitize(rec, RoleResearcher)
	b := Sanitize(rec, RoleResearcher)
	assert.True(t, a.Equal(b))
}

func TestSanitizeNil(t *testing.T) {
	assert.Nil(t, Sanitize(nil, RoleResearcher))
	assert.Nil(t, Sanitize(nil, RolePatient))
}

func TestPolicyFailsClosed(t *testing.T) {
	rec := mustParse(t, `{"patient_id":"P1","name":"Alice"}`)

	out := Policy{Level: "partial"}.Apply(rec, RoleResearcher)
	id, _ := out.PatientID()
	assert.Equal(t, RedactionMarker, id)

	out = DefaultPolicy.Apply(rec, Role("auditor"))
	name, _ := out.Name()
	assert.Equal(t, RedactionMarker, name)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Researcher ")
	require.NoError(t, err)
	assert.Equal(t, RoleResearcher, r)

	r, err = ParseRole("PATIENT")
	require.NoError(t, err)
	assert.Equal(t, RolePatient, r)

	_, err = ParseRole("doctor")
	assert.Error(t, err)

	assert.Equal(t, "Researcher", RoleResearcher.Label())
	assert.False(t, Role("doctor").Valid())
}

func TestIdentityProbe(t *testing.T) {
	probe := DefaultIdentityProbe()

	for _, in := range []string{
		"tell me about yourself",
		"Tell me about yourself please",
		"  TELL ME ABOUT YOURSELF?",
		"who are you",
		"  Who are you?",
		"Can you introduce yourself?",
		"describe yourself",
	} {
		assert.True(t, probe.Match(in), in)
	}

	for _, in := range []string{
		"What's the average age?",
		"tell me about the cohort",
		"what are your data sources for hypertension",
		"who are you able to find with diabetes",
		"Who are young adults with asthma?",
		"introduce yourself to the cohort data first, then list outliers",
		"",
	} {
		assert.False(t, probe.Match(in), in)
	}
}

func TestIdentityProbeExtraPatterns(t *testing.T) {
	probe, err := NewIdentityProbe(`\bwhat model\b`)
	require.NoError(t, err)
	assert.True(t, probe.Match("What model are you running?"))
	assert.True(t, probe.Match("tell me about yourself"))

	_, err = NewIdentityProbe(`(`)
	assert.Error(t, err)

	var nilProbe *IdentityProbe
	assert.False(t, nilProbe.Match("tell me about yourself"))
}
