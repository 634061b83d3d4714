package enrich

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtractEmails(t *testing.T) {
	t.Parallel()

	text := "Write to Sales@Acme.com or sales@acme.com, support@acme.com, billing@acme.com and ceo@acme.com"
	got := ExtractEmails(text)
	want := []string{"sales@acme.com", "support@acme.com", "billing@acme.com"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("emails (-want +got):\n%s", diff)
	}
	if got := ExtractEmails("no addresses here"); len(got) != 0 {
		t.Fatalf("expected none, got %v", got)
	}
}

func TestExtractPhones(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "international", text: "Call +44 20 7946 0958 today", want: []string{"+442079460958"}},
		{name: "north american", text: "Office (512) 555-0100, fax 512.555.0101", want: []string{"5125550100", "5125550101"}},
		// The grouped pattern also claims the first ten digits of a longer run.
		{name: "bare digits", text: "ref 18005550199", want: []string{"1800555019", "18005550199"}},
		{name: "capped at three", text: "111-222-3333 222-333-4444 333-444-5555 444-555-6666", want: []string{"1112223333", "2223334444", "3334445555"}},
		{name: "too short", text: "suite 12", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if diff := cmp.Diff(tt.want, ExtractPhones(tt.text)); diff != "" {
				t.Fatalf("phones (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParsePage(t *testing.T) {
	t.Parallel()

	html := `<html><head><title>Smile Dental</title><meta name="description" content="Family dentist in Austin"></head>
<body>
  <script>var tracking = "x@tracker.io";</script>
  <h1>Welcome</h1>
  <p>Gentle care for the whole family.</p>
  <footer><a href="mailto:Front.Desk%40smiledental.com?subject=Hi">Email us</a> <a href="tel:+1-512-555-0100">Call</a></footer>
</body></html>`
	p, err := ParsePage("https://smiledental.com", strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Title != "Smile Dental" || p.Description != "Family dentist in Austin" {
		t.Fatalf("unexpected head fields: %+v", p)
	}
	if diff := cmp.Diff([]string{"Front.Desk@smiledental.com"}, p.MailTo); diff != "" {
		t.Fatalf("mailto (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"+1-512-555-0100"}, p.Tel); diff != "" {
		t.Fatalf("tel (-want +got):\n%s", diff)
	}
	if strings.Contains(p.Text, "tracker.io") {
		t.Fatalf("script text leaked into page text: %q", p.Text)
	}
	if !strings.Contains(p.Text, "Gentle care for the whole family.") {
		t.Fatalf("missing body text: %q", p.Text)
	}
	if got := ExtractEmails(p.ContactText()); len(got) != 1 || got[0] != "front.desk@smiledental.com" {
		t.Fatalf("contact text emails = %v", got)
	}
}

func TestParseTypes(t *testing.T) {
	t.Parallel()

	got, err := ParseTypes("phone, EMAIL,phone")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if diff := cmp.Diff([]Type{TypePhone, TypeEmail}, got); diff != "" {
		t.Fatalf("types (-want +got):\n%s", diff)
	}
	if all, _ := ParseTypes(""); len(all) != 3 {
		t.Fatalf("empty should mean all types, got %v", all)
	}
	if _, err := ParseTypes("fax"); err == nil {
		t.Fatal("expected unknown type error")
	}
}
