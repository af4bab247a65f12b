package normalize

import "strings"

// LabDetails cleans each coalesced fragment of a test body and joins them
// with the merge delimiter. Verification stamps and status words become
// spaces, whitespace around line breaks collapses to one newline.
func (n *Normalizer) LabDetails(parts []string) string {
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		if n.labs.Cleanup != nil {
			p = n.labs.Cleanup.ReplaceAllString(p, " ")
		}
		p = reLineJoin.ReplaceAllString(p, "\n")
		p = strings.TrimSpace(reSpaceRun.ReplaceAllString(p, " "))
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return strings.Join(cleaned, n.labs.MergeDelimiter)
}
