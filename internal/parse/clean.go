package parse

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/clinical-timeline/internal/normalize"
	"github.com/joseph-ayodele/clinical-timeline/internal/ocr"
	"github.com/joseph-ayodele/clinical-timeline/internal/vocab"
)

const pageSeparator = "\n\n"

var (
	reBlankLines = regexp.MustCompile(`\n\s*\n\s*\n+`)
	reSpaces     = regexp.MustCompile(` {2,}`)
)

// CleanNotePages removes recognition artifacts and drops every line that
// carries a hospital banner or a report footer.
func CleanNotePages(pages []ocr.Page, notes *vocab.Notes) string {
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		text := p.Text
		for _, a := range notes.Artifacts {
			text = strings.ReplaceAll(text, a, "")
		}
		lines := strings.Split(text, "\n")
		kept := lines[:0]
		for _, line := range lines {
			if !matchesAny(strings.ToLower(line), notes.LineFilters) {
				kept = append(kept, line)
			}
		}
		out = append(out, strings.TrimSpace(strings.Join(kept, "\n")))
	}
	return strings.Join(out, pageSeparator)
}

// CleanLabPages strips report headers and footers, non-ASCII noise and
// redundant blank lines and spaces from every page.
func CleanLabPages(pages []ocr.Page, labs *vocab.Labs) string {
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		text := p.Text
		for _, re := range labs.PageNoise {
			text = re.ReplaceAllString(text, "")
		}
		text = normalize.ToASCII(text)
		text = reBlankLines.ReplaceAllString(text, "\n\n")
		text = reSpaces.ReplaceAllString(text, " ")
		out = append(out, strings.TrimSpace(text))
	}
	return strings.Join(out, pageSeparator)
}

func matchesAny(line string, substrings []string) bool {
	for _, s := range substrings {
		if strings.Contains(line, s) {
			return true
		}
	}
	return false
}
