package contact

import "testing"

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Joe's Pizza - Best Pizza in Town | Yelp", want: "Joe's Pizza"},
		{in: "Acme Plumbing | Home", want: "Acme Plumbing"},
		{in: "Bright Dental: Family Dentistry", want: "Bright Dental"},
		{in: "Acme  (Since 1990)   Roofing", want: "Acme Roofing"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		if got := cleanTitle(tt.in); got != tt.want {
			t.Errorf("cleanTitle(%q)=%q want %q", tt.in, got, tt.want)
		}
	}
}

func TestNameFromText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "welcome", text: "Welcome to Harbor Bakery! Fresh bread daily.", want: "Harbor Bakery"},
		{name: "is a", text: "Summit Roofing provides roof repair.", want: "Summit Roofing"},
		{name: "suffix", text: "copyright 2024 Blue Ridge Holdings LLC.", want: "Blue Ridge Holdings"},
		{name: "none", text: "12345 67890", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nameFromText(tt.text); got != tt.want {
				t.Fatalf("nameFromText=%q want %q", got, tt.want)
			}
		})
	}
}

func TestFormatPhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "212.555.0199", want: "(212) 555-0199"},
		{in: "+1 800 555 1234", want: "+1 (800) 555-1234"},
		{in: "555-0199", want: "555-0199"},
	}
	for _, tt := range tests {
		if got := FormatPhone(tt.in); got != tt.want {
			t.Errorf("FormatPhone(%q)=%q want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractPhone(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{text: "Call (212) 555-0199 now", want: "(212) 555-0199"},
		{text: "Call +1 (800) 555-1234", want: "+1 (800) 555-1234"},
		{text: "Phone: 415-555-2671.", want: "(415) 555-2671"},
		{text: "Fax 212-555-0199, office (646) 555-0100", want: "(646) 555-0100"},
		{text: "Open since 1990", want: ""},
	}
	for _, tt := range tests {
		if got := extractPhone(tt.text); got != tt.want {
			t.Errorf("extractPhone(%q)=%q want %q", tt.text, got, tt.want)
		}
	}
}

func TestExtractAddress(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{text: "Visit 123 Main Street, Springfield, IL 62704 today.", want: "123 Main Street, Springfield, IL 62704"},
		{text: "Find us at 9 Oak Ave, OR", want: "9 Oak Ave, OR"},
		{text: "Office: 77 Harbor, Portland, ME 04101", want: "77 Harbor, Portland, ME 04101"},
		{text: "123 Main Street Springfield IL 62704", want: "123 Main Street Springfield IL 62704"},
		{text: "Stop by 500 Oak Avenue, Austin TX 78701.", want: "500 Oak Avenue, Austin TX 78701"},
		{text: "42 Elm St, Denver, co 80202", want: "42 Elm St, Denver, co 80202"},
		{text: "Our 2 Main Street shops are open", want: ""},
		{text: "No address listed.", want: ""},
	}
	for _, tt := range tests {
		if got := extractAddress(tt.text); got != tt.want {
			t.Errorf("extractAddress(%q)=%q want %q", tt.text, got, tt.want)
		}
	}
}

func TestCleanWebsite(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "https://www.acmeplumbing.com/about", want: "acmeplumbing.com/about"},
		{in: "https://acme.com/", want: "acme.com"},
		{in: "not a url", want: "not a url"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		if got := cleanWebsite(tt.in); got != tt.want {
			t.Errorf("cleanWebsite(%q)=%q want %q", tt.in, got, tt.want)
		}
	}
}

func TestFirstNonEmpty(t *testing.T) {
	calls := 0
	got := firstNonEmpty(
		func() string { calls++; return " " },
		func() string { calls++; return "second" },
		func() string { calls++; return "third" },
	)
	if got != "second" || calls != 2 {
		t.Fatalf("got %q after %d calls", got, calls)
	}
}
