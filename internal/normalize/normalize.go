// Package normalize cleans finished records and derives their structured
// fields. Every function here is pure: it returns a new string and never
// touches shared state, so one Normalizer serves all workers.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/joseph-ayodele/clinical-timeline/constants"
	"github.com/joseph-ayodele/clinical-timeline/internal/vocab"
)

// maxPasses bounds the Format fixpoint loop in Normalize.
const maxPasses = 4

var (
	reBlankRun     = regexp.MustCompile(`\n{3,}`)
	reDayMonYear   = regexp.MustCompile(`(\d{1,2})-([A-Za-z]{3})-(\d{4})`)
	reSpaceRun     = regexp.MustCompile(` {2,}`)
	reLineJoin     = regexp.MustCompile(`\s*\n\s*`)
	reWhitespace   = regexp.MustCompile(`\s+`)
	dateKeyLayouts = []string{"2-Jan-2006", "02-Jan-2006", "2006-01-02"}
)

type Normalizer struct {
	notes *vocab.Notes
	labs  *vocab.Labs
}

func New(v *vocab.Vocabulary) *Normalizer {
	return &Normalizer{notes: &v.Notes, labs: &v.Labs}
}

// Clean removes administrative noise lines until none match, then collapses
// blank-line runs.
func (n *Normalizer) Clean(text string) string {
	for {
		next := text
		for _, re := range n.notes.AdminNoise {
			next = re.ReplaceAllString(next, "")
		}
		if next == text {
			break
		}
		text = next
	}
	text = reBlankRun.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// CanonicalizeDates rewrites D-Mon-YYYY tokens as YYYY-MM-DD. Unknown month
// abbreviations map to 01.
func (n *Normalizer) CanonicalizeDates(text string) string {
	return reDayMonYear.ReplaceAllStringFunc(text, func(tok string) string {
		m := reDayMonYear.FindStringSubmatch(tok)
		day, err := strconv.Atoi(m[1])
		if err != nil {
			return tok
		}
		month, ok := n.notes.Months[strings.ToLower(m[2])]
		if !ok {
			month = "01"
		}
		return fmt.Sprintf("%s-%s-%02d", m[3], month, day)
	})
}

// ExpandAbbreviations substitutes whole-word abbreviations, longest first.
func (n *Normalizer) ExpandAbbreviations(text string) string {
	for _, a := range n.notes.Abbreviations {
		text = a.Pattern.ReplaceAllLiteralString(text, a.Expansion)
	}
	return text
}

// Format canonicalizes dates and abbreviations, joins lines and strips
// characters outside ASCII.
func (n *Normalizer) Format(text string) string {
	text = n.CanonicalizeDates(text)
	text = n.ExpandAbbreviations(text)
	text = strings.ReplaceAll(text, "\n", " ")
	text = ToASCII(text)
	text = reSpaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Normalize folds the text to ASCII, removes noise lines, then formats
// until the text stops changing. Folding first lets Clean see the same line
// starts Format will produce; Clean never runs on joined text.
func (n *Normalizer) Normalize(text string) string {
	text = n.Format(n.Clean(ToASCII(text)))
	for i := 1; i < maxPasses; i++ {
		next := n.Format(text)
		if next == text {
			break
		}
		text = next
	}
	return text
}

// ToASCII folds accented letters to their base letter and drops everything
// else outside ASCII.
func ToASCII(s string) string {
	t := transform.Chain(
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.Map(func(r rune) rune {
			if r > unicode.MaxASCII {
				return -1
			}
			return r
		}, s)
	}
	return out
}

// DateKey canonicalizes a bucket date to DD-Mon-YYYY. Values that do not
// parse are returned trimmed; blank input becomes UNKNOWN.
func DateKey(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, constants.UnknownValue) {
		return constants.UnknownValue
	}
	if t, ok := ParseDate(raw); ok {
		return t.Format("02-Jan-2006")
	}
	return raw
}

// ParseDate parses a bucket date in any of the accepted layouts.
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range dateKeyLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func collapse(s string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}
