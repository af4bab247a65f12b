package normalize

import (
	"strings"

	"github.com/joseph-ayodele/clinical-timeline/constants"
	"github.com/joseph-ayodele/clinical-timeline/internal/entity"
)

// Metadata is what a note says about itself.
type Metadata struct {
	Date        string
	Doctor      string
	SectionType string
}

// Metadata reads the authored date, the signing doctor and the section type
// from a raw note body. Each field falls back to UNKNOWN independently.
func (n *Normalizer) Metadata(body string) Metadata {
	md := Metadata{
		Date:        constants.UnknownValue,
		Doctor:      constants.UnknownValue,
		SectionType: constants.UnknownValue,
	}
	if m := n.notes.Authored.FindStringSubmatch(body); len(m) > 1 && strings.TrimSpace(m[1]) != "" {
		md.Date = strings.TrimSpace(m[1])
	}
	if m := n.notes.Doctor.FindStringSubmatch(body); len(m) > 1 {
		if d := collapse(m[1]); d != "" {
			md.Doctor = d
		}
	}
	first, _, _ := strings.Cut(strings.TrimSpace(body), "\n")
	if m := n.notes.HeaderMatch(first); len(m) > 1 {
		if t := collapse(m[1]); t != "" {
			md.SectionType = t
		}
	}
	return md
}

// Subsections splits normalized note text at the configured headers. Text
// before the first header goes to General. Empty subsections are dropped and
// a repeated header appends to its first occurrence.
func (n *Normalizer) Subsections(text string) entity.Fields {
	out := entity.Fields{}
	current := constants.GeneralSubsection
	flush := func(chunk string) {
		if c := strings.TrimSpace(chunk); c != "" {
			out = out.Append(current, c)
		}
	}
	if n.notes.SubsectionSplit == nil {
		flush(text)
		return out
	}

	last := 0
	for _, loc := range n.notes.SubsectionSplit.FindAllStringIndex(text, -1) {
		label, ok := n.notes.SubsectionLabel(text[loc[0]:loc[1]])
		if !ok {
			continue
		}
		flush(text[last:loc[0]])
		current = label
		last = loc[1]
	}
	flush(text[last:])
	return out
}

// Allergies returns NKA when a no-allergy phrase appears, the value of the
// first allergy field otherwise, or nil.
func (n *Normalizer) Allergies(text string) *string {
	lower := strings.ToLower(text)
	for _, p := range n.notes.NoAllergyPhrases {
		if strings.Contains(lower, p) {
			nka := constants.NoKnownAllergies
			return &nka
		}
	}
	m := n.notes.AllergyField.FindStringSubmatch(text)
	if len(m) < 2 {
		return nil
	}
	v := n.Format(m[1])
	if v == "" {
		return nil
	}
	return &v
}

// Note enriches one raw note body into a record dated by its authored date.
func (n *Normalizer) Note(body string) entity.NoteRecord {
	md := n.Metadata(body)
	cleaned := n.Clean(body)
	text := n.Normalize(cleaned)
	subs := n.Subsections(text)
	return entity.NoteRecord{
		Date:        DateKey(md.Date),
		Doctor:      md.Doctor,
		SectionType: md.SectionType,
		Text:        subs,
		Subsections: subs.Labels(),
		Allergies:   n.Allergies(cleaned),
	}
}
