package segment

import (
	"regexp"
	"slices"
	"strings"

	"github.com/joseph-ayodele/clinical-timeline/constants"
	"github.com/joseph-ayodele/clinical-timeline/internal/vocab"
)

var reKeyStrip = regexp.MustCompile(`[\s\p{P}]+`)

type LabSegmenter struct {
	labs *vocab.Labs
}

func NewLabSegmenter(v *vocab.Vocabulary) *LabSegmenter {
	return &LabSegmenter{labs: &v.Labs}
}

// Segment splits text at stamps and coalesces adjacent same-test records.
func (s *LabSegmenter) Segment(text string) []RawRecord {
	return Coalesce(s.Split(text), s.labs.MergeDelimiter)
}

// Split emits one record per stamp. The body runs to the next stamp or the
// end of text. Records without a test name or body are dropped.
func (s *LabSegmenter) Split(text string) []RawRecord {
	locs := s.labs.Stamp.FindAllStringSubmatchIndex(text, -1)
	out := make([]RawRecord, 0, len(locs))
	for i, loc := range locs {
		stamp := text[loc[0]:loc[1]]
		if len(loc) >= 4 && loc[2] >= 0 {
			stamp = text[loc[2]:loc[3]]
		}
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		body := strings.TrimSpace(text[loc[1]:end])
		header, _, _ := strings.Cut(body, "\n")
		header = strings.TrimSpace(header)
		name := s.CleanName(header)
		if name == "" || body == "" {
			continue
		}
		out = append(out, RawRecord{
			Date:   s.StampDate(stamp),
			Header: header,
			Name:   name,
			Body:   body,
			Parts:  []string{body},
		})
	}
	return out
}

// StampDate pulls the calendar date out of a stamp.
func (s *LabSegmenter) StampDate(stamp string) string {
	m := s.labs.Date.FindStringSubmatch(strings.TrimSpace(stamp))
	switch {
	case len(m) >= 2 && m[1] != "":
		return m[1]
	case len(m) == 1:
		return m[0]
	default:
		return constants.UnknownValue
	}
}

// CleanName cuts a raw test header at the first stopword or structural
// delimiter, then drops descriptor words.
func (s *LabSegmenter) CleanName(header string) string {
	name := strings.TrimSpace(header)
	if m := s.labs.NameTrim.FindStringSubmatch(name); len(m) >= 2 {
		name = m[1]
	}
	if s.labs.Descriptors != nil {
		name = s.labs.Descriptors.ReplaceAllString(name, " ")
	}
	name = strings.Join(strings.Fields(name), " ")
	return strings.Trim(name, " ,;:-")
}

// Key is the coalescing key: date plus the lowercased test name with
// whitespace and punctuation removed.
func Key(r RawRecord) string {
	return r.Date + "-" + strings.ToLower(reKeyStrip.ReplaceAllString(r.Name, ""))
}

// Coalesce merges adjacent records with equal keys. The first record's
// header and name are kept; bodies are joined with delim in original order.
func Coalesce(records []RawRecord, delim string) []RawRecord {
	out := make([]RawRecord, 0, len(records))
	for _, r := range records {
		if n := len(out); n > 0 && Key(out[n-1]) == Key(r) {
			last := &out[n-1]
			last.Body += delim + r.Body
			last.Parts = append(last.Parts, r.Parts...)
			continue
		}
		r.Parts = slices.Clone(r.Parts)
		out = append(out, r)
	}
	return out
}
