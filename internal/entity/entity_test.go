package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/clinical-timeline/constants"
)

func TestFields_KeepsInsertionOrder(t *testing.T) {
	var f Fields
	f = f.Append("Plan", "review in 2 weeks")
	f = f.Append("General", "seen & examined <ok>")
	f = f.Append("Plan", "repeat bloods")

	assert.Equal(t, []string{"Plan", "General"}, f.Labels())
	text, ok := f.Get("Plan")
	require.True(t, ok)
	assert.Equal(t, "review in 2 weeks repeat bloods", text)

	b, err := f.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"Plan":"review in 2 weeks repeat bloods","General":"seen & examined <ok>"}`, string(b))

	var back Fields
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, f, back)
}

func TestFields_AppendSep(t *testing.T) {
	f := Fields{}.AppendSep("Glucose", "5.4", "\n\n\n").AppendSep("Glucose", "5.6", "\n\n\n")
	text, _ := f.Get("Glucose")
	assert.Equal(t, "5.4\n\n\n5.6", text)
}

func TestFields_UnmarshalRejectsNonObject(t *testing.T) {
	var f Fields
	assert.Error(t, json.Unmarshal([]byte(`["a"]`), &f))
	assert.Error(t, json.Unmarshal([]byte(`{"a": 1}`), &f))
}

func TestStructuredData_Marshal(t *testing.T) {
	var sd StructuredData
	nka := constants.NoKnownAllergies
	sd.AddNote("20-Jun-2025", NoteRecord{
		Doctor:      "Tan Ah Kow",
		SectionType: "Consult",
		Text:        Fields{{Label: "General", Text: "seen"}},
		Subsections: []string{"General"},
		Allergies:   &nka,
	})
	sd.AddNote(constants.UnknownValue, NoteRecord{Doctor: constants.UnknownValue, SectionType: constants.UnknownValue})

	b, err := json.Marshal(sd)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"20-Jun-2025": [{"doctor":"Tan Ah Kow","section_type":"Consult","text":{"General":"seen"},"subsections":["General"],"allergies":"NKA"}],
		"UNKNOWN": [{"doctor":"UNKNOWN","section_type":"UNKNOWN","text":{},"subsections":[],"allergies":null}]
	}`, string(b))
	assert.Equal(t, 2, sd.Records())

	b, err = json.Marshal(Failure(constants.UnknownTypeError))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"Unknown file type, skipped parsing."}`, string(b))
}

func TestStructuredData_LabBucket(t *testing.T) {
	var sd StructuredData
	lab := sd.Lab("20-Jun-2025")
	lab.Tests = lab.Tests.Append("Glucose", "5.4 mmol/L")
	lab = sd.Lab("20-Jun-2025")
	lab.Tests = lab.Tests.Append("Sodium", "140")

	require.Len(t, sd.Dates, 1)
	require.Len(t, sd.Dates[0].Labs, 1)
	assert.Equal(t, []string{"Glucose", "Sodium"}, sd.Dates[0].Labs[0].Tests.Labels())
}

func TestDocumentResult_RoundTrip(t *testing.T) {
	var sd StructuredData
	lab := sd.Lab("20-Jun-2025")
	lab.Tests = lab.Tests.Append("Glucose", "5.4 mmol/L")
	in := DocumentResult{SourceFile: "labs.pdf", FileType: constants.LabResult, Data: sd}

	b, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"original_filename":"labs.pdf","file_type":"Lab Results","structured_data":{"20-Jun-2025":[{"Glucose":"5.4 mmol/L"}]}}`, string(b))

	var out DocumentResult
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "labs.pdf", out.SourceFile)
	assert.Equal(t, constants.LabResult, out.FileType)
	require.Len(t, out.Data.Dates, 1)
	assert.Equal(t, "20-Jun-2025", out.Data.Dates[0].Labs[0].Date)
}

func TestDecodeStructured(t *testing.T) {
	sd, err := DecodeStructured([]byte(`{"error":"Parsing failed: boom"}`), constants.ClinicalNote)
	require.NoError(t, err)
	assert.True(t, sd.Failed())
	assert.Equal(t, "Parsing failed: boom", sd.Error)

	sd, err = DecodeStructured([]byte(`{"01-Jan-2025":{"doctor":"X"},"02-Jan-2025":[{"doctor":"Y","section_type":"Consult","text":{},"subsections":[],"allergies":null}]}`), constants.ClinicalNote)
	require.NoError(t, err)
	assert.Equal(t, []string{"01-Jan-2025"}, sd.Malformed)
	require.Len(t, sd.Dates, 1)
	assert.Equal(t, "Y", sd.Dates[0].Notes[0].Doctor)
	assert.Equal(t, "02-Jan-2025", sd.Dates[0].Notes[0].Date)

	sd, err = DecodeStructured([]byte(`{}`), constants.ClinicalNote)
	require.NoError(t, err)
	assert.True(t, sd.Empty())

	_, err = DecodeStructured([]byte(`[1]`), constants.ClinicalNote)
	assert.Error(t, err)
}

func TestEvent_Marshal(t *testing.T) {
	lab := LabRecord{Tests: Fields{{Label: "Glucose", Text: "5.4"}}}
	b, err := json.Marshal(Event{RecordType: constants.LabResult, SourceFile: "a.pdf", Lab: &lab})
	require.NoError(t, err)
	assert.Equal(t, `{"record_type":"Lab Results","source_file":"a.pdf","tests":[{"Glucose":"5.4"}]}`, string(b))

	note := NoteRecord{Doctor: "X", SectionType: "Consult", Text: Fields{{Label: "Plan", Text: "TCU"}}, Subsections: []string{"Plan"}}
	b, err = json.Marshal(Event{RecordType: constants.ClinicalNote, SourceFile: "b.pdf", Note: &note})
	require.NoError(t, err)
	assert.Equal(t, `{"record_type":"Medical Records","source_file":"b.pdf","doctor":"X","section_type":"Consult","text":{"Plan":"TCU"},"subsections":["Plan"],"allergies":null}`, string(b))
}

func TestNoteRecord_Clone(t *testing.T) {
	a := "penicillin"
	n := NoteRecord{Text: Fields{{Label: "General", Text: "x"}}, Subsections: []string{"General"}, Allergies: &a}
	c := n.Clone()
	c.Text[0].Text = "y"
	*c.Allergies = "none"
	assert.Equal(t, "x", n.Text[0].Text)
	assert.Equal(t, "penicillin", *n.Allergies)
}
