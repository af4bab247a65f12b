package segment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/clinical-timeline/constants"
	"github.com/joseph-ayodele/clinical-timeline/internal/vocab"
)

func newNotes(t *testing.T) *NoteSegmenter {
	t.Helper()
	return NewNoteSegmenter(vocab.MustDefault())
}

func TestNoteSegmenter_IsHeader(t *testing.T) {
	s := newNotes(t)

	tests := []struct {
		line string
		want bool
	}{
		{"DMO Consult [Charted Location: Ward 64]", true},
		{"|| ~ DMO Correspondence Note [Charted Location: SOC Clinic]", true},
		{"dmo pre-clerk consult (amended) [charted location: PAC]", true},
		{"xx DMO Inpatient Daily Ward Round V2 [Charted Location: W5]", true},
		{"DMO Inpatient Admission Note [Charted Location: ED]", true},
		{"DMO Consult", false},
		{"Nursing Consult [Charted Location: Ward 64]", false},
		{"Last Updated: 20-Jun-2025 10:00 by Tan Ah Kow (Doctor)", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.IsHeader(tt.line), "line %q", tt.line)
	}
}

func TestNoteSegmenter_IsTerminator(t *testing.T) {
	s := newNotes(t)
	assert.True(t, s.IsTerminator("  Last Updated: 20-Jun-2025 by X (Doctor)"))
	assert.True(t, s.IsTerminator("LAST UPDATED: 20-Jun-2025"))
	assert.False(t, s.IsTerminator("Reviewed. Last Updated: 20-Jun-2025"))
}

func TestNoteSegmenter_Step(t *testing.T) {
	s := newNotes(t)

	m, rec, tr := s.Step(Machine{}, "stray text before any note")
	assert.Equal(t, Ignored, tr)
	assert.Equal(t, Outside, m.State)
	assert.Nil(t, rec)

	m, rec, tr = s.Step(m, "~~~~~~~~~~~~~~")
	assert.Equal(t, Dropped, tr)
	assert.Nil(t, rec)

	m, rec, tr = s.Step(m, "DMO Consult [Charted Location: Ward 64]")
	assert.Equal(t, Started, tr)
	assert.Equal(t, InsideNote, m.State)
	assert.Nil(t, rec)

	m, rec, tr = s.Step(m, "  Chest clear.  ")
	assert.Equal(t, Appended, tr)
	assert.Equal(t, []string{"DMO Consult [Charted Location: Ward 64]", "Chest clear."}, m.Buffer)
	assert.Nil(t, rec)

	m, rec, tr = s.Step(m, "Last Updated: 20-Jun-2025 10:00 by Tan Ah Kow (Doctor)")
	assert.Equal(t, Terminated, tr)
	assert.Equal(t, Outside, m.State)
	assert.Empty(t, m.Buffer)
	require.NotNil(t, rec)
	assert.Equal(t, "DMO Consult [Charted Location: Ward 64]\nChest clear.\nLast Updated: 20-Jun-2025 10:00 by Tan Ah Kow (Doctor)", rec.Body)
	assert.Equal(t, "DMO Consult [Charted Location: Ward 64]", rec.Header)
}

func TestNoteSegmenter_BackToBackHeaders(t *testing.T) {
	s := newNotes(t)
	text := strings.Join([]string{
		"DMO Consult [Charted Location: Ward 5]",
		"Authored: 20-Jun-2025",
		"Patient seen for review.",
		"DMO Correspondence Note [Charted Location: Clinic B]",
		"Authored: 21-Jun-2025",
		"Letter to GP regarding follow up.",
		"Last Updated: 21-Jun-2025 10:00 by John Tan (Doctor)",
	}, "\n")

	recs, stats := s.Segment(text)
	require.Len(t, recs, 2)
	assert.Equal(t, "DMO Consult [Charted Location: Ward 5]\nAuthored: 20-Jun-2025\nPatient seen for review.", recs[0].Body)
	assert.True(t, strings.HasPrefix(recs[1].Body, "DMO Correspondence Note"))
	assert.True(t, strings.HasSuffix(recs[1].Body, "(Doctor)"))
	assert.Equal(t, 1, stats.Preempted)
	assert.Equal(t, 1, stats.Terminated)
	assert.Equal(t, 0, stats.Trailing)
}

func TestNoteSegmenter_TrailingPartialNote(t *testing.T) {
	s := newNotes(t)
	text := "cover page\nDMO Consult [Charted Location: Ward 5]\nAuthored: 2-Jul-2025\nScan pending"

	recs, stats := s.Segment(text)
	require.Len(t, recs, 1)
	assert.Equal(t, 1, stats.Trailing)
	assert.Contains(t, recs[0].Body, "Scan pending")
	assert.NotContains(t, recs[0].Body, "cover page")
}

func TestNoteSegmenter_BoundaryCompleteness(t *testing.T) {
	s := newNotes(t)
	header := "DMO Consult [Charted Location: Ward 5]"
	term := "Last Updated: 20-Jun-2025 10:00 by A B (Doctor)"

	inputs := []string{
		"",
		"nothing to see",
		header,
		header + "\nbody\n" + term,
		header + "\n" + header + "\n" + header,
		header + "\nbody\n" + term + "\noutside\n" + header + "\nbody\n" + term,
		header + "\nbody\n" + term + "\n" + term + "\n" + header + "\ntrailing",
		"@@@@@@@@@@@@\n" + header + "\n%%%%%%%%%%%%\nbody\n" + header + "\nmore\n" + term,
	}
	for _, in := range inputs {
		recs, stats := s.Segment(in)
		assert.Equal(t, stats.Emitted(), len(recs), "input %q", in)
		assert.LessOrEqual(t, stats.Trailing, 1)
		assert.Equal(t, strings.Count(in, header), stats.Headers, "every header leaves OUTSIDE")
		for _, r := range recs {
			assert.NotEmpty(t, strings.TrimSpace(r.Body))
			assert.Equal(t, constants.UnknownValue, r.Date)
		}
	}
}

func TestNoteSegmenter_DropsJunkInsideNotes(t *testing.T) {
	s := newNotes(t)
	text := "DMO Consult [Charted Location: Ward 5]\n=============\nImpression: stable\nLast Updated: 1-Jan-2025 by X (Doctor)"

	recs, stats := s.Segment(text)
	require.Len(t, recs, 1)
	assert.Equal(t, 1, stats.Junk)
	assert.NotContains(t, recs[0].Body, "=====")
}
