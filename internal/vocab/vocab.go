// Package vocab loads the pattern vocabulary that drives classification,
// segmentation and normalization. A vocabulary is compiled once and shared
// read-only by every parser.
package vocab

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/clinical-timeline/internal/common"
)

//go:embed default.yaml
var defaultYAML []byte

// File mirrors the YAML layout.
type File struct {
	Classifier    ClassifierSpec `yaml:"classifier"`
	ClinicalNotes NotesSpec      `yaml:"clinical_notes"`
	LabResults    LabsSpec       `yaml:"lab_results"`
}

type ClassifierSpec struct {
	Keyword   string `yaml:"keyword"`
	LineIndex int    `yaml:"line_index"`
}

type HeaderSpec struct {
	Keyword        string   `yaml:"keyword"`
	SectionTypes   []string `yaml:"section_types"`
	MaxLeadingJunk int      `yaml:"max_leading_junk"`
	MaxGap         int      `yaml:"max_gap"`
	Anchor         string   `yaml:"anchor"`
}

type JunkSpec struct {
	MinLength          int     `yaml:"min_length"`
	MinAlnumRatio      float64 `yaml:"min_alnum_ratio"`
	LongLineLength     int     `yaml:"long_line_length"`
	LongLineAlnumRatio float64 `yaml:"long_line_alnum_ratio"`
	PunctuationRun     int     `yaml:"punctuation_run"`
}

type AllergySpec struct {
	NonePhrases  []string `yaml:"none_phrases"`
	FieldPattern string   `yaml:"field_pattern"`
}

type NotesSpec struct {
	Header            HeaderSpec        `yaml:"header"`
	TerminatorPrefix  string            `yaml:"terminator_prefix"`
	Junk              JunkSpec          `yaml:"junk"`
	Artifacts         []string          `yaml:"artifacts"`
	HospitalPatterns  []string          `yaml:"hospital_patterns"`
	FooterPatterns    []string          `yaml:"footer_patterns"`
	AdminNoise        []string          `yaml:"admin_noise_patterns"`
	AuthoredPattern   string            `yaml:"authored_pattern"`
	DoctorPattern     string            `yaml:"doctor_pattern"`
	SubsectionHeaders []string          `yaml:"subsection_headers"`
	MonthMap          map[string]string `yaml:"month_map"`
	Abbreviations     map[string]string `yaml:"abbreviations"`
	Allergies         AllergySpec       `yaml:"allergies"`
}

type LabsSpec struct {
	HeaderPatterns  []string `yaml:"header_patterns"`
	FooterPatterns  []string `yaml:"footer_patterns"`
	StampPattern    string   `yaml:"stamp_pattern"`
	DatePattern     string   `yaml:"date_pattern"`
	NameStopwords   []string `yaml:"name_stopwords"`
	NameDelimiters  []string `yaml:"name_delimiters"`
	DescriptorWords []string `yaml:"descriptor_words"`
	CleanupPatterns []string `yaml:"cleanup_patterns"`
	MergeDelimiter  string   `yaml:"merge_delimiter"`
}

// JunkThresholds parameterize the recognition-noise line filter.
type JunkThresholds struct {
	MinLength          int
	MinAlnumRatio      float64
	LongLineLength     int
	LongLineAlnumRatio float64
	PunctuationRun     int
}

// Abbreviation is one whole-word substitution.
type Abbreviation struct {
	Short     string
	Expansion string
	Pattern   *regexp.Regexp
}

// Classifier holds the first-page rule.
type Classifier struct {
	Keyword   string // lowercased
	LineIndex int
}

// Notes holds compiled clinical-note tables.
type Notes struct {
	Header           *regexp.Regexp
	TerminatorPrefix string // uppercased
	Junk             JunkThresholds
	Artifacts        []string
	LineFilters      []string // lowercased substrings
	AdminNoise       []*regexp.Regexp
	Authored         *regexp.Regexp
	Doctor           *regexp.Regexp
	Subsections      []string
	SubsectionSplit  *regexp.Regexp // nil when no headers are configured
	Months           map[string]string
	Abbreviations    []Abbreviation
	NoAllergyPhrases []string // lowercased
	AllergyField     *regexp.Regexp

	subsectionLabels map[string]string
}

// Labs holds compiled lab-report tables.
type Labs struct {
	PageNoise      []*regexp.Regexp
	Stamp          *regexp.Regexp
	Date           *regexp.Regexp
	NameTrim       *regexp.Regexp
	Descriptors    *regexp.Regexp // nil when no descriptor words are configured
	Cleanup        *regexp.Regexp // nil when no cleanup patterns are configured
	MergeDelimiter string
}

// Vocabulary is the compiled, immutable form of a File.
type Vocabulary struct {
	Classifier Classifier
	Notes      Notes
	Labs       Labs
}

// Default returns the compiled embedded vocabulary.
func Default() (*Vocabulary, error) {
	return Parse(defaultYAML)
}

// MustDefault is Default for tests and package-level setup.
func MustDefault() *Vocabulary {
	v, err := Default()
	if err != nil {
		panic(err)
	}
	return v
}

// Load reads a vocabulary file. An empty path selects the embedded default.
func Load(path string) (*Vocabulary, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.NewAppError("VOCAB_ERROR", fmt.Sprintf("read %s", path), err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of the embedded default, so a custom file only
// needs the sections it overrides. A month_map or abbreviations table in
// the custom file replaces the default table instead of extending it.
func Parse(data []byte) (*Vocabulary, error) {
	var f File
	if err := yaml.Unmarshal(defaultYAML, &f); err != nil {
		return nil, common.NewAppError("VOCAB_ERROR", "decode embedded vocabulary", err)
	}
	var custom File
	if err := yaml.Unmarshal(data, &custom); err != nil {
		return nil, common.NewAppError("VOCAB_ERROR", "decode vocabulary", err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, common.NewAppError("VOCAB_ERROR", "decode vocabulary", err)
	}
	if custom.ClinicalNotes.MonthMap != nil {
		f.ClinicalNotes.MonthMap = custom.ClinicalNotes.MonthMap
	}
	if custom.ClinicalNotes.Abbreviations != nil {
		f.ClinicalNotes.Abbreviations = custom.ClinicalNotes.Abbreviations
	}
	return Compile(f)
}

// Compile validates f and builds the lookup tables.
func Compile(f File) (*Vocabulary, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	v := &Vocabulary{
		Classifier: Classifier{
			Keyword:   strings.ToLower(strings.TrimSpace(f.Classifier.Keyword)),
			LineIndex: f.Classifier.LineIndex,
		},
	}

	n := f.ClinicalNotes
	v.Notes = Notes{
		Header:           regexp.MustCompile(headerPattern(n.Header)),
		TerminatorPrefix: strings.ToUpper(strings.TrimSpace(n.TerminatorPrefix)),
		Junk:             JunkThresholds(n.Junk),
		Artifacts:        slices.Clone(n.Artifacts),
		LineFilters:      lowerAll(append(slices.Clone(n.HospitalPatterns), n.FooterPatterns...)),
		AdminNoise:       compileAll("(?im)", n.AdminNoise),
		Authored:         regexp.MustCompile("(?i)" + n.AuthoredPattern),
		Doctor:           regexp.MustCompile("(?i)" + n.DoctorPattern),
		Subsections:      slices.Clone(n.SubsectionHeaders),
		Months:           make(map[string]string, len(n.MonthMap)),
		NoAllergyPhrases: lowerAll(n.Allergies.NonePhrases),
		AllergyField:     regexp.MustCompile("(?i)" + n.Allergies.FieldPattern),
		subsectionLabels: make(map[string]string, len(n.SubsectionHeaders)),
	}
	for k, m := range n.MonthMap {
		v.Notes.Months[strings.ToLower(k)] = m
	}
	for _, h := range n.SubsectionHeaders {
		key := strings.ToUpper(strings.TrimSpace(h))
		if _, dup := v.Notes.subsectionLabels[key]; !dup {
			v.Notes.subsectionLabels[key] = strings.TrimSpace(h)
		}
	}
	v.Notes.SubsectionSplit = subsectionPattern(n.SubsectionHeaders)
	v.Notes.Abbreviations = compileAbbreviations(n.Abbreviations)
	if err := checkAbbreviations(v.Notes.Abbreviations); err != nil {
		return nil, err
	}

	l := f.LabResults
	v.Labs = Labs{
		PageNoise:      compileAll("(?im)", append(slices.Clone(l.HeaderPatterns), l.FooterPatterns...)),
		Stamp:          regexp.MustCompile(l.StampPattern),
		Date:           regexp.MustCompile(l.DatePattern),
		NameTrim:       regexp.MustCompile(nameTrimPattern(l.NameStopwords, l.NameDelimiters)),
		Descriptors:    wordsPattern(l.DescriptorWords),
		MergeDelimiter: l.MergeDelimiter,
	}
	if len(l.CleanupPatterns) > 0 {
		v.Labs.Cleanup = regexp.MustCompile(`(?i)(?:` + strings.Join(l.CleanupPatterns, "|") + `)\s*`)
	}
	return v, nil
}

var reLeadingNonWord = regexp.MustCompile(`^[^\p{L}\p{N}_]*`)

// HeaderMatch matches line against the note-header grammar after dropping
// leading noise characters. The second element, when present, is the
// section-type token.
func (n *Notes) HeaderMatch(line string) []string {
	return n.Header.FindStringSubmatch(reLeadingNonWord.ReplaceAllString(line, ""))
}

// SubsectionLabel maps a matched header back to its configured spelling.
func (n *Notes) SubsectionLabel(candidate string) (string, bool) {
	key := strings.ToUpper(strings.TrimSpace(strings.TrimRight(strings.TrimSpace(candidate), ":")))
	label, ok := n.subsectionLabels[key]
	return label, ok
}

func (f File) validate() error {
	v := common.NewValidator()
	v.Field("classifier.keyword", f.Classifier.Keyword, common.Required)
	v.Field("classifier.line_index", f.Classifier.LineIndex, common.NonNegative)

	n := f.ClinicalNotes
	v.Field("clinical_notes.header.keyword", n.Header.Keyword, common.Required)
	v.Field("clinical_notes.header.section_types", n.Header.SectionTypes, common.Required, common.Pattern)
	v.Field("clinical_notes.header.anchor", n.Header.Anchor, common.Required, common.Pattern)
	v.Field("clinical_notes.header.max_leading_junk", n.Header.MaxLeadingJunk, common.InRange(0, 1000))
	v.Field("clinical_notes.header.max_gap", n.Header.MaxGap, common.InRange(0, 1000))
	v.Field("clinical_notes.terminator_prefix", n.TerminatorPrefix, common.Required)
	v.Field("clinical_notes.junk.min_alnum_ratio", n.Junk.MinAlnumRatio, common.NonNegative)
	v.Field("clinical_notes.junk.punctuation_run", n.Junk.PunctuationRun, common.InRange(2, 1000))
	v.Field("clinical_notes.admin_noise_patterns", n.AdminNoise, common.Pattern)
	v.Field("clinical_notes.authored_pattern", n.AuthoredPattern, common.Required, common.Pattern)
	v.Field("clinical_notes.doctor_pattern", n.DoctorPattern, common.Required, common.Pattern)
	v.Field("clinical_notes.allergies.field_pattern", n.Allergies.FieldPattern, common.Required, common.Pattern)

	l := f.LabResults
	v.Field("lab_results.header_patterns", l.HeaderPatterns, common.Pattern)
	v.Field("lab_results.footer_patterns", l.FooterPatterns, common.Pattern)
	v.Field("lab_results.stamp_pattern", l.StampPattern, common.Required, common.Pattern)
	v.Field("lab_results.date_pattern", l.DatePattern, common.Required, common.Pattern)
	v.Field("lab_results.name_delimiters", l.NameDelimiters, common.Pattern)
	v.Field("lab_results.cleanup_patterns", l.CleanupPatterns, common.Pattern)
	v.Field("lab_results.merge_delimiter", l.MergeDelimiter, common.NonEmpty)

	if v.HasErrors() {
		return common.NewAppError("VOCAB_ERROR", v.ErrorMessage(), common.ErrValidation)
	}
	return nil
}

func headerPattern(h HeaderSpec) string {
	return fmt.Sprintf(`(?is).{0,%d}?%s\s*(%s).{0,%d}?%s`,
		h.MaxLeadingJunk,
		regexp.QuoteMeta(strings.TrimSpace(h.Keyword)),
		strings.Join(h.SectionTypes, "|"),
		h.MaxGap,
		h.Anchor,
	)
}

// subsectionPattern matches any configured header with an optional colon.
// Longer headers are tried first so "Physical Examination" wins over
// "Examination".
func subsectionPattern(headers []string) *regexp.Regexp {
	if len(headers) == 0 {
		return nil
	}
	sorted := slices.Clone(headers)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	alts := make([]string, 0, len(sorted))
	for _, h := range sorted {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		alts = append(alts, wordBounded(h)+`:?`)
	}
	return regexp.MustCompile(`(?i)(?:` + strings.Join(alts, "|") + `)`)
}

func nameTrimPattern(stopwords, delimiters []string) string {
	alts := make([]string, 0, len(stopwords)+len(delimiters))
	for _, w := range stopwords {
		if w = strings.TrimSpace(w); w != "" {
			alts = append(alts, wordBounded(w))
		}
	}
	alts = append(alts, delimiters...)
	if len(alts) == 0 {
		return `(?i)^(.*)$`
	}
	return `(?i)^(.*?)(?:\s+(?:` + strings.Join(alts, "|") + `)|$)`
}

func wordsPattern(words []string) *regexp.Regexp {
	alts := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			alts = append(alts, wordBounded(w))
		}
	}
	if len(alts) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)(?:` + strings.Join(alts, "|") + `)`)
}

// wordBounded quotes s and adds \b on each side that starts or ends with a
// word character.
func wordBounded(s string) string {
	q := regexp.QuoteMeta(s)
	if isWordByte(s[0]) {
		q = `\b` + q
	}
	if isWordByte(s[len(s)-1]) {
		q += `\b`
	}
	return q
}

func isWordByte(b byte) bool {
	return b == '_' || ('0' <= b && b <= '9') || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

// compileAbbreviations orders entries longest first, then alphabetically, so
// substitution order does not depend on map iteration.
func compileAbbreviations(m map[string]string) []Abbreviation {
	keys := make([]string, 0, len(m))
	for k := range m {
		if strings.TrimSpace(k) != "" {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	out := make([]Abbreviation, 0, len(keys))
	for _, k := range keys {
		short := strings.TrimSpace(k)
		out = append(out, Abbreviation{
			Short:     short,
			Expansion: m[k],
			Pattern:   regexp.MustCompile(wordBounded(short)),
		})
	}
	return out
}

// checkAbbreviations rejects an expansion that would itself be rewritten by a
// later normalization pass.
func checkAbbreviations(abbrs []Abbreviation) error {
	for _, a := range abbrs {
		for _, b := range abbrs {
			if b.Pattern.MatchString(a.Expansion) {
				return common.NewAppError("VOCAB_ERROR",
					fmt.Sprintf("expansion %q of %q contains abbreviation %q", a.Expansion, a.Short, b.Short),
					common.ErrValidation)
			}
		}
	}
	return nil
}

func compileAll(flags string, patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(flags+p))
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, strings.ToLower(s))
		}
	}
	return out
}
