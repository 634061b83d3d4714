// Package redact scrubs credentials out of strings headed for logs and error messages.
package redact

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// Matches "Bearer <token>" (GHL access tokens, JWTs, opaque tokens).
	bearerTokenRe = regexp.MustCompile(`(?i)\bBearer\s+[^\s"']+`)

	// key=value and key: value forms, including the x-api-key header Exa uses.
	apiKeyKVRe = regexp.MustCompile(`(?i)\b((?:x[_-]?)?api[_-]?key|gemini[_-]?api[_-]?key|exa[_-]?api[_-]?key)\b\s*[:=]\s*[^\s"',&]+`)

	// OAuth token fields as they appear in JSON bodies and form-encoded requests.
	oauthJSONRe = regexp.MustCompile(`(?i)"(access_token|refresh_token|client_secret|id_token)"\s*:\s*"[^"]*"`)
	oauthFormRe = regexp.MustCompile(`(?i)\b(access_token|refresh_token|client_secret|code)=[^\s&"']+`)
)

// Secrets removes obvious secret-bearing substrings from error/log strings.
//
// Safe to call on any message, including upstream response bodies.
func Secrets(s string) string {
	if s == "" {
		return ""
	}
	out := s
	out = bearerTokenRe.ReplaceAllString(out, "Bearer <redacted>")
	out = apiKeyKVRe.ReplaceAllString(out, "<redacted_kv>")
	out = oauthJSONRe.ReplaceAllString(out, `"$1":"<redacted>"`)
	out = oauthFormRe.ReplaceAllString(out, "$1=<redacted>")
	return strings.TrimSpace(out)
}

// Truncate redacts body and clips it to at most max bytes on a rune boundary, flattening newlines. Response bodies can
// carry PII, so callers keep max small.
func Truncate(body []byte, max int) string {
	if len(body) == 0 {
		return ""
	}
	b := body
	if max > 0 && len(b) > max {
		cut := max
		for cut > 0 && !utf8.RuneStart(b[cut]) {
			cut--
		}
		b = b[:cut]
	}
	s := Secrets(string(b))
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if max > 0 && len(body) > max {
		return s + "..."
	}
	return s
}
