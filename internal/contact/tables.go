package contact

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category maps a display label to the lowercase keyword substrings that select it.
type Category struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

// Tables holds the keyword data the heuristics run against.
//
// Treat a Tables value as immutable once handed to an Extractor; NewExtractor copies it.
type Tables struct {
	// GenericTitleTerms mark a cleaned title as uninformative.
	GenericTitleTerms []string `yaml:"generic_title_terms"`
	// NameDenylist rejects contacts whose name contains any entry.
	NameDenylist []string `yaml:"name_denylist"`
	// WebmailDomains are deprioritized when choosing among extracted emails.
	WebmailDomains []string `yaml:"webmail_domains"`
	// EmailPrefixes are the inbox names used when generating an email from a hostname.
	EmailPrefixes []string `yaml:"email_prefixes"`
	// PositiveKeywords each add to the synthetic rating.
	PositiveKeywords []string `yaml:"positive_keywords"`
	// Categories are checked in order; the first with a matching keyword wins.
	Categories []Category `yaml:"categories"`
	// DefaultCategory is used when no category matches.
	DefaultCategory string `yaml:"default_category"`
}

// DefaultTables returns a fresh copy of the built-in keyword tables.
func DefaultTables() Tables {
	return Tables{
		GenericTitleTerms: []string{"home", "about", "contact", "services", "welcome", "index"},
		NameDenylist:      []string{"error", "not found", "404", "page not found", "home", "index"},
		WebmailDomains:    []string{"gmail.com", "yahoo.com", "hotmail.com", "outlook.com"},
		EmailPrefixes:     []string{"info", "contact", "hello", "sales"},
		PositiveKeywords:  []string{"professional", "certified", "licensed", "experienced", "quality", "service"},
		Categories: []Category{
			{Label: "Automotive", Keywords: []string{"car", "auto", "dealer", "vehicle", "automotive"}},
			{Label: "Real estate", Keywords: []string{"real estate", "realtor", "property", "homes", "broker"}},
			{Label: "Healthcare", Keywords: []string{"doctor", "medical", "healthcare", "clinic", "physician", "dentist"}},
			{Label: "Restaurant", Keywords: []string{"restaurant", "dining", "food", "cuisine", "eatery", "cafe"}},
			{Label: "Technology", Keywords: []string{"technology", "software", "tech", "startup", "digital"}},
			{Label: "Legal", Keywords: []string{"law", "attorney", "lawyer", "legal", "firm"}},
			{Label: "Retail", Keywords: []string{"store", "shop", "retail", "boutique", "marketplace"}},
			{Label: "Construction", Keywords: []string{"construction", "contractor", "builder", "renovation"}},
			{Label: "Beauty", Keywords: []string{"salon", "beauty", "spa", "cosmetic", "hair"}},
			{Label: "Finance", Keywords: []string{"bank", "financial", "accounting", "investment", "insurance"}},
		},
		DefaultCategory: "Business",
	}
}

// LoadTables reads a YAML overlay on top of DefaultTables. Lists present in the document
// replace the built-in list entirely; omitted keys keep their defaults.
func LoadTables(r io.Reader) (Tables, error) {
	t := DefaultTables()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		if errors.Is(err, io.EOF) {
			return t, nil
		}
		return Tables{}, fmt.Errorf("parse keyword tables: %w", err)
	}
	if err := t.validate(); err != nil {
		return Tables{}, err
	}
	return t.normalized(), nil
}

// LoadTablesFile is LoadTables for a path. An empty path yields DefaultTables.
func LoadTablesFile(path string) (Tables, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultTables(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Tables{}, fmt.Errorf("open keyword tables: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return LoadTables(f)
}

func (t Tables) validate() error {
	if len(t.EmailPrefixes) == 0 {
		return fmt.Errorf("keyword tables: email_prefixes must not be empty")
	}
	for i, c := range t.Categories {
		if strings.TrimSpace(c.Label) == "" {
			return fmt.Errorf("keyword tables: categories[%d] has no label", i)
		}
	}
	if strings.TrimSpace(t.DefaultCategory) == "" {
		return fmt.Errorf("keyword tables: default_category must not be empty")
	}
	return nil
}

// normalized lowercases every matching term so lookups can compare against lowercased text.
func (t Tables) normalized() Tables {
	lower := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, v := range in {
			v = strings.ToLower(strings.TrimSpace(v))
			if v != "" {
				out = append(out, v)
			}
		}
		return out
	}
	cats := make([]Category, 0, len(t.Categories))
	for _, c := range t.Categories {
		cats = append(cats, Category{Label: strings.TrimSpace(c.Label), Keywords: lower(c.Keywords)})
	}
	return Tables{
		GenericTitleTerms: lower(t.GenericTitleTerms),
		NameDenylist:      lower(t.NameDenylist),
		WebmailDomains:    lower(t.WebmailDomains),
		EmailPrefixes:     lower(t.EmailPrefixes),
		PositiveKeywords:  lower(t.PositiveKeywords),
		Categories:        cats,
		DefaultCategory:   strings.TrimSpace(t.DefaultCategory),
	}
}
