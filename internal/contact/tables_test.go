package contact_test

import (
	"strings"
	"testing"

	"github.com/shpitdev/leadfinder/internal/contact"
)

func TestLoadTables(t *testing.T) {
	t.Run("empty document keeps defaults", func(t *testing.T) {
		got, err := contact.LoadTables(strings.NewReader(""))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got.Categories) != 10 || got.DefaultCategory != "Business" {
			t.Fatalf("unexpected tables: %#v", got)
		}
	})

	t.Run("overlay replaces listed keys", func(t *testing.T) {
		in := `
email_prefixes: [Office]
categories:
  - label: Pets
    keywords: [Veterinary, "dog grooming"]
`
		got, err := contact.LoadTables(strings.NewReader(in))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got.EmailPrefixes) != 1 || got.EmailPrefixes[0] != "office" {
			t.Fatalf("prefixes=%#v", got.EmailPrefixes)
		}
		if len(got.Categories) != 1 || got.Categories[0].Keywords[0] != "veterinary" {
			t.Fatalf("categories=%#v", got.Categories)
		}
		if len(got.WebmailDomains) != 4 {
			t.Fatalf("webmail defaults lost: %#v", got.WebmailDomains)
		}

		ex := contact.NewExtractor(got, contact.SeededRand(1))
		out := ex.Extract(contact.SearchResult{Title: "Paws Place", URL: "https://paws.example"}, "veterinary clinic")
		if out.Contact.Category != "Pets" || out.Contact.Email != "office@paws.example" {
			t.Fatalf("unexpected contact: %#v", out.Contact)
		}
	})

	t.Run("unknown keys are rejected", func(t *testing.T) {
		if _, err := contact.LoadTables(strings.NewReader("colours: [red]\n")); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("empty prefixes are rejected", func(t *testing.T) {
		if _, err := contact.LoadTables(strings.NewReader("email_prefixes: []\n")); err == nil {
			t.Fatalf("expected error")
		}
	})
}
