package contact

import "strings"

const (
	maxDescriptionRunes = 200
	ellipsis            = "..."
	noDescription       = "Business information not available"
)

// describe picks summary, then joined highlights, then raw text, and truncates the winner.
func describe(summary string, highlights []string, text string) string {
	d := firstNonEmpty(
		func() string { return collapseSpace(summary) },
		func() string { return collapseSpace(strings.Join(highlights, " ")) },
		func() string { return collapseSpace(text) },
	)
	if d == "" {
		return noDescription
	}
	return truncate(d, maxDescriptionRunes)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max])) + ellipsis
}
