package ocr

import (
	"regexp"
	"strings"
)

var reTrailingSpace = regexp.MustCompile(`[ \t]+\n`)

// NormalizePage canonicalizes line endings and drops control characters the
// text layer sometimes carries. Line structure is preserved.
func NormalizePage(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\f", "\n")
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, "\t", " ")
	return reTrailingSpace.ReplaceAllString(s, "\n")
}
