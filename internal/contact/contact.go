// Package contact turns a single search result into a structured business contact.
//
// Extraction is pure: no I/O and no shared mutable state. The only nondeterminism (rating
// jitter and the inbox prefix of a generated email) comes from an injected Rand, so callers
// that need reproducible output pass a seeded one.
package contact

import "time"

// SearchResult is one ranked page excerpt from the search provider.
type SearchResult struct {
	Title      string
	URL        string
	Text       string
	Summary    string
	Highlights []string
}

// Contact is the structured record derived from a SearchResult.
//
// Rating is a synthetic quality proxy computed from the page text. It is not a review score
// and must not be presented as one. EmailGenerated is true when Email was guessed from the
// result's hostname rather than found in the text.
type Contact struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email,omitempty"`
	EmailGenerated bool      `json:"emailGenerated"`
	Phone          string    `json:"phone,omitempty"`
	Address        string    `json:"address,omitempty"`
	Website        string    `json:"website"`
	Description    string    `json:"description"`
	Category       string    `json:"category"`
	Rating         float64   `json:"rating"`
	Source         string    `json:"source"`
	OriginalTitle  string    `json:"originalTitle,omitempty"`
	SearchQuery    string    `json:"searchQuery"`
	CreatedAt      time.Time `json:"createdAt"`
}

// RejectReason explains why a contact failed validation. The zero value means accepted.
type RejectReason string

const (
	RejectNone            RejectReason = ""
	RejectShortName       RejectReason = "short_name"
	RejectDenylistedName  RejectReason = "denylisted_name"
	RejectNoContactMethod RejectReason = "no_contact_method"
)

// Outcome is the result of one extraction: either an accepted Contact or a rejected one
// together with the reason. The rejected Contact is kept so callers can log what was dropped.
type Outcome struct {
	Contact Contact
	Reason  RejectReason
}

// Accepted reports whether the contact passed validation.
func (o Outcome) Accepted() bool {
	return o.Reason == RejectNone
}

// SourceExa is the provenance label for contacts built from Exa results.
const SourceExa = "exa"
