package enrich

import (
	"regexp"
	"strings"
)

const maxPerKind = 3

var (
	emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	// International, North American, and bare digit-run forms, scanned in that order.
	phoneRes = []*regexp.Regexp{
		regexp.MustCompile(`\+\d{1,4}[\s.-]?\(?[\d\s.-]{7,}\)?[\s.-]?\d`),
		regexp.MustCompile(`\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}`),
		regexp.MustCompile(`\b\d{10,15}\b`),
	}
)

// ExtractEmails returns up to three distinct lowercased emails in order of appearance.
func ExtractEmails(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range emailRe.FindAllString(text, -1) {
		m = strings.ToLower(m)
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
		if len(out) == maxPerKind {
			break
		}
	}
	return out
}

// ExtractPhones returns up to three distinct phone numbers reduced to digits (and a leading
// +), keeping only those 7 to 15 characters long.
func ExtractPhones(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, re := range phoneRes {
		for _, m := range re.FindAllString(text, -1) {
			p := phoneDigits(m)
			if len(p) < 7 || len(p) > 15 || seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
			if len(out) == maxPerKind {
				return out
			}
		}
	}
	return out
}

func phoneDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
