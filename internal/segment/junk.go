package segment

import (
	"unicode"

	"github.com/joseph-ayodele/clinical-timeline/internal/vocab"
)

// IsJunk reports whether a stripped line is recognition noise. Lines shorter
// than th.MinLength are never junk.
func IsJunk(line string, th vocab.JunkThresholds) bool {
	runes := []rune(line)
	n := len(runes)
	if n == 0 || n < th.MinLength {
		return false
	}

	alnum, hasSpace := 0, false
	for _, r := range runes {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
		if unicode.IsSpace(r) {
			hasSpace = true
		}
	}
	ratio := float64(alnum) / float64(n)

	if ratio < th.MinAlnumRatio {
		return true
	}
	if n > th.LongLineLength && !hasSpace && ratio < th.LongLineAlnumRatio {
		return true
	}
	return isPunctuationRun(runes, th.PunctuationRun)
}

// isPunctuationRun matches a line made of one non-word, non-space character
// repeated at least min times.
func isPunctuationRun(runes []rune, min int) bool {
	if len(runes) < min {
		return false
	}
	first := runes[0]
	if first == '_' || unicode.IsLetter(first) || unicode.IsDigit(first) || unicode.IsSpace(first) {
		return false
	}
	for _, r := range runes[1:] {
		if r != first {
			return false
		}
	}
	return true
}
