package vocab

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/clinical-timeline/internal/common"
)

func TestDefault(t *testing.T) {
	v, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "patient results", v.Classifier.Keyword)
	assert.Equal(t, 1, v.Classifier.LineIndex)
	assert.Equal(t, "LAST UPDATED:", v.Notes.TerminatorPrefix)
	assert.Equal(t, 10, v.Notes.Junk.MinLength)
	assert.Equal(t, "06", v.Notes.Months["jun"])
	assert.Equal(t, "\n\n\n", v.Labs.MergeDelimiter)
	assert.NotNil(t, v.Notes.SubsectionSplit)
	assert.NotNil(t, v.Labs.Cleanup)
	assert.Contains(t, v.Notes.LineFilters, "singapore general hospital")
}

func TestSubsectionLabel(t *testing.T) {
	v := MustDefault()

	label, ok := v.Notes.SubsectionLabel("  PLAN: ")
	require.True(t, ok)
	assert.Equal(t, "Plan", label)

	label, ok = v.Notes.SubsectionLabel("physical examination")
	require.True(t, ok)
	assert.Equal(t, "Physical Examination", label)

	_, ok = v.Notes.SubsectionLabel("Prognosis")
	assert.False(t, ok)
}

func TestSubsectionSplit_PrefersLongerHeader(t *testing.T) {
	v := MustDefault()
	m := v.Notes.SubsectionSplit.FindString("on Physical Examination: alert")
	assert.Equal(t, "Physical Examination:", m)

	// word boundaries keep headers from matching inside words
	assert.Empty(t, v.Notes.SubsectionSplit.FindString("Explanation given"))
}

func TestHeaderMatch(t *testing.T) {
	v := MustDefault()

	m := v.Notes.HeaderMatch("#~ DMO Correspondence Note [Charted Location: SOC]")
	require.Len(t, m, 2)
	assert.Equal(t, "Correspondence Note", m[1])

	m = v.Notes.HeaderMatch("DMO Correspondence [Charted Location: SOC]")
	require.Len(t, m, 2)
	assert.Equal(t, "Correspondence", m[1])

	assert.Nil(t, v.Notes.HeaderMatch("Correspondence Note"))
}

func TestAbbreviationsAreOrdered(t *testing.T) {
	v := MustDefault()
	require.NotEmpty(t, v.Notes.Abbreviations)
	for i := 1; i < len(v.Notes.Abbreviations); i++ {
		prev, cur := v.Notes.Abbreviations[i-1].Short, v.Notes.Abbreviations[i].Short
		assert.True(t, len(prev) > len(cur) || (len(prev) == len(cur) && prev < cur), "%q before %q", prev, cur)
	}
}

func TestParse_Overrides(t *testing.T) {
	v, err := Parse([]byte(`
classifier:
  keyword: Laboratory Report
  line_index: 0
lab_results:
  merge_delimiter: "\n--\n"
`))
	require.NoError(t, err)
	assert.Equal(t, "laboratory report", v.Classifier.Keyword)
	assert.Equal(t, 0, v.Classifier.LineIndex)
	assert.Equal(t, "\n--\n", v.Labs.MergeDelimiter)
	// untouched sections keep defaults
	assert.Equal(t, "LAST UPDATED:", v.Notes.TerminatorPrefix)
}

func TestParse_WhitespaceMergeDelimiter(t *testing.T) {
	v, err := Parse([]byte("lab_results:\n  merge_delimiter: \"\\n\\n\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "\n\n", v.Labs.MergeDelimiter)
}

func TestParse_CustomTablesReplaceDefaults(t *testing.T) {
	v, err := Parse([]byte(`
clinical_notes:
  abbreviations:
    TCU: to come up
  month_map:
    Jun: "06"
    Juni: "06"
`))
	require.NoError(t, err)

	require.Len(t, v.Notes.Abbreviations, 1)
	assert.Equal(t, "TCU", v.Notes.Abbreviations[0].Short)
	assert.Equal(t, map[string]string{"jun": "06", "juni": "06"}, v.Notes.Months)

	// a custom table may now reuse words that are default abbreviations
	_, err = Parse([]byte("clinical_notes:\n  abbreviations:\n    CP: chest pain with SOB\n"))
	assert.NoError(t, err)
}

func TestParse_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad regexp", "lab_results:\n  stamp_pattern: '(\\d+'\n"},
		{"empty keyword", "classifier:\n  keyword: ''\n"},
		{"self-expanding abbreviation", "clinical_notes:\n  abbreviations:\n    BP: BP reading\n"},
		{"expansion contains another abbreviation", "clinical_notes:\n  abbreviations:\n    SOB: shortness of breath\n    CP: chest pain with SOB\n"},
		{"empty merge delimiter", "lab_results:\n  merge_delimiter: ''\n"},
		{"not yaml", "classifier: [unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Equal(t, "VOCAB_ERROR", common.CodeOf(err))
		})
	}
}

func TestLoad(t *testing.T) {
	v, err := Load("")
	require.NoError(t, err)
	assert.NotNil(t, v.Notes.Header)

	path := filepath.Join(t.TempDir(), "vocab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("classifier:\n  keyword: cumulative report\n"), 0o644))
	v, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cumulative report", v.Classifier.Keyword)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
