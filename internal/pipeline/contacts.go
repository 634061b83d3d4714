package pipeline

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shpitdev/leadfinder/internal/contact"
)

// ContactHeader is the stable column order for contact CSVs. "rating" is the synthetic
// page-quality score, not a review rating.
func ContactHeader() []string {
	return []string{
		"id",
		"name",
		"email",
		"email_generated",
		"phone",
		"address",
		"website",
		"description",
		"category",
		"rating",
		"source",
		"original_title",
		"search_query",
		"created_at",
	}
}

// WriteContactsCSV writes contacts with the ContactHeader() ordering.
func WriteContactsCSV(w io.Writer, contacts []contact.Contact) error {
	rows := make([][]string, 0, len(contacts))
	for _, c := range contacts {
		created := ""
		if !c.CreatedAt.IsZero() {
			created = c.CreatedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []string{
			c.ID,
			c.Name,
			c.Email,
			strconv.FormatBool(c.EmailGenerated),
			c.Phone,
			c.Address,
			c.Website,
			c.Description,
			c.Category,
			strconv.FormatFloat(c.Rating, 'f', 1, 64),
			c.Source,
			c.OriginalTitle,
			c.SearchQuery,
			created,
		})
	}
	return writeAll(w, ContactHeader(), rows)
}

// ReadContactsCSV reads contacts for import. Only "name" is required, so hand-made lists
// with a subset of the columns work; rows with a blank name are skipped.
func ReadContactsCSV(r io.Reader) ([]contact.Contact, error) {
	t, err := openTable(r, "name")
	if err != nil {
		return nil, err
	}
	var out []contact.Contact
	for line := 2; ; line++ {
		get, err := t.next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if get("name") == "" {
			continue
		}
		c := contact.Contact{
			ID:            get("id"),
			Name:          get("name"),
			Email:         get("email"),
			Phone:         get("phone"),
			Address:       get("address"),
			Website:       get("website"),
			Description:   get("description"),
			Category:      get("category"),
			Source:        get("source"),
			OriginalTitle: get("original_title"),
			SearchQuery:   get("search_query"),
		}
		if v := get("email_generated"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("line %d: email_generated: %w", line, err)
			}
			c.EmailGenerated = b
		}
		if v := get("rating"); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: rating: %w", line, err)
			}
			c.Rating = f
		}
		if v := get("created_at"); v != "" {
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, fmt.Errorf("line %d: created_at: %w", line, err)
			}
			c.CreatedAt = ts
		}
		out = append(out, c)
	}
}

// FilterContactable drops contacts with neither an email nor a phone. Hand-made import
// lists do not go through the extractor's validation.
func FilterContactable(in []contact.Contact) (kept []contact.Contact, dropped int) {
	for _, c := range in {
		if strings.TrimSpace(c.Email) == "" && strings.TrimSpace(c.Phone) == "" {
			dropped++
			continue
		}
		kept = append(kept, c)
	}
	return kept, dropped
}
