package contact

import "strings"

// category classifies by the query first: the user's search intent is a stronger signal than
// page content.
func (e *Extractor) category(query, title, text string) string {
	if label, ok := e.matchCategory(strings.ToLower(query)); ok {
		return label
	}
	if label, ok := e.matchCategory(strings.ToLower(title + " " + text)); ok {
		return label
	}
	return e.tables.DefaultCategory
}

func (e *Extractor) matchCategory(s string) (string, bool) {
	if strings.TrimSpace(s) == "" {
		return "", false
	}
	for _, c := range e.tables.Categories {
		if containsAny(s, c.Keywords) {
			return c.Label, true
		}
	}
	return "", false
}
