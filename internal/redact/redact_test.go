package redact

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSecrets(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		leak    string
		wantHas string
	}{
		{name: "bearer", in: "Authorization: Bearer pit-abc.def", leak: "pit-abc.def", wantHas: "Bearer <redacted>"},
		{name: "x-api-key header", in: "x-api-key: exa_live_123", leak: "exa_live_123", wantHas: "<redacted_kv>"},
		{name: "query param", in: "https://host/?api_key=s3cret&q=dentist", leak: "s3cret", wantHas: "q=dentist"},
		{name: "oauth json", in: `{"access_token":"tok","token_type":"Bearer"}`, leak: `"tok"`, wantHas: `"access_token":"<redacted>"`},
		{name: "oauth form", in: "grant_type=refresh_token&refresh_token=r1&client_secret=c1", leak: "r1", wantHas: "client_secret=<redacted>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Secrets(tt.in)
			if strings.Contains(got, tt.leak) {
				t.Fatalf("Secrets(%q) = %q still contains %q", tt.in, got, tt.leak)
			}
			if !strings.Contains(got, tt.wantHas) {
				t.Fatalf("Secrets(%q) = %q, want substring %q", tt.in, got, tt.wantHas)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := Truncate(nil, 10); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	got := Truncate([]byte("line one\nline two and more"), 8)
	if got != "line one..." {
		t.Fatalf("got %q", got)
	}
	if got := Truncate([]byte("short"), 256); got != "short" {
		t.Fatalf("got %q", got)
	}
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	t.Parallel()

	// "é" is two bytes, so a 6-byte cut lands inside the third one.
	body := []byte("Café Müller, Zürich")
	for max := 1; max < len(body); max++ {
		got := Truncate(body, max)
		if !utf8.ValidString(got) {
			t.Fatalf("Truncate(%d) = %q is not valid UTF-8", max, got)
		}
	}
	if got := Truncate([]byte("ééé"), 5); got != "éé..." {
		t.Fatalf("got %q", got)
	}
}
