package contact

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const unknownBusiness = "Unknown Business"

var (
	parentheticalRe = regexp.MustCompile(`\([^)]*\)`)
	whitespaceRe    = regexp.MustCompile(`\s+`)

	// Tried in order against page text when the title is uninformative.
	nameFromTextPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Welcome to|About)\s+([A-Z][A-Za-z\s&]{2,30})`),
		regexp.MustCompile(`(?i)([A-Z][A-Za-z\s&]{2,30})(?:\s+is\s+a|,\s+a|,\s+an|\s+provides|\s+offers)`),
		regexp.MustCompile(`(?i)([A-Z][A-Za-z\s&]{2,30})\s+(?:LLC|Inc|Corporation|Corp|Company|Co)`),
	}
)

func (e *Extractor) name(title, text string) string {
	cleaned := cleanTitle(title)
	if cleaned == "" || utf8.RuneCountInString(cleaned) < 3 || e.isGenericTitle(cleaned) {
		return firstNonEmpty(
			func() string { return nameFromText(text) },
			func() string { return cleaned },
			func() string { return unknownBusiness },
		)
	}
	return cleaned
}

// cleanTitle drops the site/SEO suffix after the first separator and any parenthesized aside.
func cleanTitle(title string) string {
	if i := strings.IndexAny(title, "-|:"); i >= 0 {
		title = title[:i]
	}
	title = parentheticalRe.ReplaceAllString(title, "")
	return collapseSpace(title)
}

func (e *Extractor) isGenericTitle(name string) bool {
	return containsAny(strings.ToLower(name), e.tables.GenericTitleTerms)
}

func nameFromText(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	for _, re := range nameFromTextPatterns {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			if v := collapseSpace(m[1]); v != "" {
				return v
			}
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
