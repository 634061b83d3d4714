package contact

import (
	"regexp"
	"strings"
)

var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\+1[-.\s]?)?\(([0-9]{3})\)[-.\s]?([0-9]{3})[-.\s]?([0-9]{4})`),
	regexp.MustCompile(`(\+1[-.\s]?)?([0-9]{3})[-.\s]?([0-9]{3})[-.\s]?([0-9]{4})`),
	regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`),
}

func extractPhone(text string) string {
	for _, re := range phonePatterns {
		if m := re.FindString(text); m != "" {
			return FormatPhone(m)
		}
	}
	return ""
}

// FormatPhone renders 10-digit and 1-prefixed 11-digit numbers in North American display
// form. Anything else is returned unchanged.
func FormatPhone(raw string) string {
	d := digitsOnly(raw)
	switch {
	case len(d) == 10:
		return "(" + d[:3] + ") " + d[3:6] + "-" + d[6:]
	case len(d) == 11 && d[0] == '1':
		return "+1 (" + d[1:4] + ") " + d[4:7] + "-" + d[7:]
	default:
		return raw
	}
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
