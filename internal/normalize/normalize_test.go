package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/clinical-timeline/constants"
	"github.com/joseph-ayodele/clinical-timeline/internal/vocab"
)

const consultNote = `DMO Consult [Charted Location: Ward 5]
Authored: 20-Jun-2025
| Presenting Complaint: SOB for 2 days
Electronic Signatures:
Tan Ah Kow (Doctor) (Signed 20-Jun-2025 10:00)
Last Updated: 20-Jun-2025 10:00 by Tan Ah Kow (Doctor)`

func newNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	return New(vocab.MustDefault())
}

func TestClean_RemovesAdminNoise(t *testing.T) {
	n := newNormalizer(t)
	got := n.Clean(consultNote)
	assert.Equal(t, "DMO Consult [Charted Location: Ward 5]\nPresenting Complaint: SOB for 2 days", got)
}

func TestClean_ReachesFixpoint(t *testing.T) {
	n := newNormalizer(t)
	// removing the bar exposes an Authored line
	got := n.Clean("Plan: rest\n| Authored: 1-Jan-2025\nreview")
	assert.Equal(t, "Plan: rest\n\nreview", got)
}

func TestCanonicalizeDates(t *testing.T) {
	n := newNormalizer(t)
	assert.Equal(t, "Seen 2025-07-03 and 2024-01-12", n.CanonicalizeDates("Seen 3-Jul-2025 and 12-Xyz-2024"))
	assert.Equal(t, "2025-06-20", n.CanonicalizeDates("20-jun-2025"))
}

func TestExpandAbbreviations(t *testing.T) {
	n := newNormalizer(t)
	got := n.ExpandAbbreviations("PMHx of SOB, BP 120/80, HRV stable")
	assert.Equal(t, "past medical history of shortness of breath, blood pressure 120/80, HRV stable", got)
}

func TestToASCII(t *testing.T) {
	assert.Equal(t, "Cafenaive", ToASCII("Café–naïve"))
	assert.Equal(t, "line one\nline two", ToASCII("line one\nline two"))
}

func TestFormat(t *testing.T) {
	n := newNormalizer(t)
	got := n.Format("Hx:\n  seen 1-Feb-2025 in OPD\n\n✓ TCU")
	assert.Equal(t, "history: seen 2025-02-01 in outpatient clinic to come up", got)
}

func TestNormalize_Idempotent(t *testing.T) {
	n := newNormalizer(t)
	inputs := []string{
		consultNote,
		"| | Authored: 2-Feb-2024\nImpression: Dx pending\n\n\n\nPlan: Rx given",
		"Café au lait spots noted 3-Mar-2023; ED visit",
		"",
		"   \n\n   ",
	}
	for _, in := range inputs {
		once := n.Normalize(in)
		assert.Equal(t, once, n.Normalize(once), "input %q", in)
		assert.NotContains(t, once, "\n")
	}
}

func TestNormalize_NonASCIILineStart(t *testing.T) {
	n := newNormalizer(t)
	in := "•Authored: 20-Jun-2025 by X\nPlan: SOB on 3-Jun-2025 é"

	got := n.Normalize(in)
	assert.Equal(t, "Plan: shortness of breath on 2025-06-03 e", got)
	assert.Equal(t, got, n.Normalize(got))
	assert.Equal(t, []string{"Plan"}, n.Subsections(got).Labels())
}

func TestNormalize_KeepsJoinedText(t *testing.T) {
	n := newNormalizer(t)
	// a formatted record whose words happen to start like a noise line
	got := n.Normalize("Plan: review\nLast Updated: pending labs")
	assert.Equal(t, "Plan: review", got)

	joined := "Plan: review Electronic Signatures: pending"
	assert.Equal(t, joined, n.Normalize(joined))
}

func TestSubsections(t *testing.T) {
	n := newNormalizer(t)
	text := "Seen in clinic. Presenting Complaint: cough Past Medical History: asthma Plan: inhaler PLAN: review"
	f := n.Subsections(text)

	assert.Equal(t, []string{constants.GeneralSubsection, "Presenting Complaint", "Past Medical History", "Plan"}, f.Labels())
	plan, _ := f.Get("Plan")
	assert.Equal(t, "inhaler review", plan)
	general, _ := f.Get(constants.GeneralSubsection)
	assert.Equal(t, "Seen in clinic.", general)
}

func TestSubsections_DropsEmpty(t *testing.T) {
	n := newNormalizer(t)
	f := n.Subsections("Impression: Plan: discharge")
	assert.Equal(t, []string{"Plan"}, f.Labels())

	assert.Empty(t, n.Subsections("   "))
}

func TestAllergies(t *testing.T) {
	n := newNormalizer(t)

	tests := []struct {
		name string
		text string
		want *string
	}{
		{"no known allergies", "Allergies: No Known Allergies", ptr(constants.NoKnownAllergies)},
		{"nil known any case", "Drug allergy: NIL KNOWN", ptr(constants.NoKnownAllergies)},
		{"labeled field stops at line end", "Allergies: penicillin\nPlan: review", ptr("penicillin")},
		{"field value formatted", "allergies  naïve to Rx", ptr("naive to prescription")},
		{"absent", "Plan: review", nil},
		{"empty field", "Allergies:   \n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Allergies(tt.text))
		})
	}
}

func TestMetadata(t *testing.T) {
	n := newNormalizer(t)

	md := n.Metadata(consultNote)
	assert.Equal(t, "20-Jun-2025", md.Date)
	assert.Equal(t, "Tan Ah Kow", md.Doctor)
	assert.Equal(t, "Consult", md.SectionType)

	md = n.Metadata("DMO Inpatient  Daily Ward Round V2 [Charted Location: W5]\nno trailer")
	assert.Equal(t, "Inpatient Daily Ward Round V2", md.SectionType)
	assert.Equal(t, constants.UnknownValue, md.Date)
	assert.Equal(t, constants.UnknownValue, md.Doctor)

	md = n.Metadata("Progress note\nAuthored: 5-May-2025")
	assert.Equal(t, constants.UnknownValue, md.SectionType)
	assert.Equal(t, "5-May-2025", md.Date)
}

func TestNote(t *testing.T) {
	n := newNormalizer(t)
	body := strings.Replace(consultNote, "Authored:", "Allergies: nil known\nAuthored:", 1)

	rec := n.Note(body)
	assert.Equal(t, "20-Jun-2025", rec.Date)
	assert.Equal(t, "Tan Ah Kow", rec.Doctor)
	assert.Equal(t, "Consult", rec.SectionType)
	assert.Equal(t, rec.Text.Labels(), rec.Subsections)
	require.NotNil(t, rec.Allergies)
	assert.Equal(t, constants.NoKnownAllergies, *rec.Allergies)

	pc, ok := rec.Text.Get("Presenting Complaint")
	require.True(t, ok)
	assert.Equal(t, "shortness of breath for 2 days", pc)
	for _, f := range rec.Text {
		assert.NotContains(t, f.Text, "Last Updated")
		assert.NotContains(t, f.Text, "Authored")
	}
}

func TestDateKey(t *testing.T) {
	tests := []struct{ in, want string }{
		{"1-jul-2025", "01-Jul-2025"},
		{"20-Jun-2025", "20-Jun-2025"},
		{"2025-07-01", "01-Jul-2025"},
		{"", constants.UnknownValue},
		{"unknown", constants.UnknownValue},
		{" 31-Feb-2025 ", "31-Feb-2025"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DateKey(tt.in), "input %q", tt.in)
	}
}

func TestLabDetails(t *testing.T) {
	n := newNormalizer(t)
	got := n.LabDetails([]string{
		"Glucose Final\n  5.4 mmol/L   \n",
		"Glucose\n(confirmed) 5.4 mmol/L SGCR123",
	})
	assert.Equal(t, "Glucose 5.4 mmol/L\n\n\nGlucose\n(confirmed) 5.4 mmol/L", got)
	assert.Equal(t, 1, strings.Count(got, "\n\n\n"))

	assert.Equal(t, "", n.LabDetails([]string{"Final Updated"}))
}

func ptr(s string) *string { return &s }
