// Package enrich fills in contact details for records that have little more than a name and a
// website: Exa page contents first, then the page itself, then a name search.
package enrich

import (
	"context"
	"fmt"
	"strings"
)

// Type is one kind of enrichment a caller can ask for.
type Type string

const (
	TypeEmail    Type = "email"
	TypePhone    Type = "phone"
	TypeInsights Type = "insights"
)

// AllTypes is the default request.
var AllTypes = []Type{TypeEmail, TypePhone, TypeInsights}

// ParseTypes parses a comma-separated list such as "email,phone". Empty means AllTypes.
func ParseTypes(s string) ([]Type, error) {
	if strings.TrimSpace(s) == "" {
		return append([]Type(nil), AllTypes...), nil
	}
	var out []Type
	seen := map[Type]bool{}
	for _, part := range strings.Split(s, ",") {
		t := Type(strings.ToLower(strings.TrimSpace(part)))
		if t == "" {
			continue
		}
		switch t {
		case TypeEmail, TypePhone, TypeInsights:
		default:
			return nil, fmt.Errorf("unknown enrichment type %q (want email, phone, insights)", part)
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out, nil
}

func hasType(types []Type, want Type) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

// Record is the minimal input to enrichment.
type Record struct {
	ID      string
	Name    string
	URL     string
	Summary string
}

// Source names where enrichment data came from.
type Source string

const (
	SourceNone        Source = ""
	SourceExaContents Source = "exa_contents"
	SourceWebsite     Source = "website"
	SourceSearch      Source = "search"
)

// Result is the enrichment output for one record. Types lists what was actually found,
// which can be less than what was requested.
type Result struct {
	Record
	Email    string
	Phone    string
	Emails   []string
	Phones   []string
	Insights string
	Types    []Type
	Source   Source
	Model    string
}

// Successful reports whether a contact method was found. Only successful results are billed.
func (r Result) Successful() bool {
	return r.Email != "" || r.Phone != ""
}

// Enricher enriches a single record. Errors wrapped in core.TransientError are retried by
// the worker pool.
type Enricher interface {
	Enrich(ctx context.Context, rec Record, types []Type) (Result, error)
}
