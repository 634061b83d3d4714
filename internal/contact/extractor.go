package contact

import "strings"

// Extractor derives contacts from search results using a fixed set of keyword tables.
type Extractor struct {
	tables Tables
	rng    Rand
}

// NewExtractor returns an Extractor over a private copy of tables. A nil rng uses GlobalRand.
func NewExtractor(tables Tables, rng Rand) *Extractor {
	if rng == nil {
		rng = GlobalRand()
	}
	if tables.validate() != nil {
		tables = DefaultTables()
	}
	return &Extractor{tables: tables.normalized(), rng: rng}
}

// Tables returns a copy of the tables the extractor runs against.
func (e *Extractor) Tables() Tables {
	return e.tables.normalized()
}

// Extract builds a contact from one search result and runs the validation gate.
//
// It never fails: missing fields degrade to defaults and an unusable result comes back as a
// rejected Outcome. ID and CreatedAt are left for the caller to assign.
func (e *Extractor) Extract(r SearchResult, query string) Outcome {
	email, generated := e.email(r)
	c := Contact{
		Name:           e.name(r.Title, r.Text),
		Email:          email,
		EmailGenerated: generated,
		Phone:          extractPhone(r.Text),
		Address:        extractAddress(r.Text),
		Website:        cleanWebsite(r.URL),
		Description:    describe(r.Summary, r.Highlights, r.Text),
		Category:       e.category(query, r.Title, r.Text),
		Rating:         e.rating(r.Text),
		Source:         SourceExa,
		OriginalTitle:  strings.TrimSpace(r.Title),
		SearchQuery:    query,
	}
	return Outcome{Contact: c, Reason: e.Validate(c)}
}

func (e *Extractor) email(r SearchResult) (string, bool) {
	if found := extractEmail(r.Text, e.tables.WebmailDomains); found != "" {
		return found, false
	}
	if generated := generateEmail(r.URL, e.tables.EmailPrefixes, e.rng); generated != "" {
		return generated, true
	}
	return "", false
}

// firstNonEmpty evaluates candidates in order and returns the first non-blank result.
func firstNonEmpty(candidates ...func() string) string {
	for _, next := range candidates {
		if v := strings.TrimSpace(next()); v != "" {
			return v
		}
	}
	return ""
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
