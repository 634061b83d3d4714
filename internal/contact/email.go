package contact

import (
	"net/url"
	"regexp"
	"slices"
	"strings"
)

var (
	emailTokenRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	emailShapeRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// extractEmail returns the first business-looking address in text, falling back to the first
// address of any kind.
func extractEmail(text string, webmail []string) string {
	matches := emailTokenRe.FindAllString(text, -1)
	if len(matches) == 0 {
		return ""
	}
	for _, m := range matches {
		if !isWebmail(m, webmail) {
			return m
		}
	}
	return matches[0]
}

func isWebmail(email string, webmail []string) bool {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return false
	}
	return slices.Contains(webmail, strings.ToLower(email[at+1:]))
}

// generateEmail guesses a role inbox on the result's own domain.
func generateEmail(rawURL string, prefixes []string, rng Rand) string {
	host := hostname(rawURL)
	if host == "" || !strings.Contains(host, ".") || len(prefixes) == 0 {
		return ""
	}
	return prefixes[rng.IntN(len(prefixes))] + "@" + host
}

// IsEmailShaped reports whether s looks like local@domain.tld.
func IsEmailShaped(s string) bool {
	return emailShapeRe.MatchString(s)
}

func hostname(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// cleanWebsite renders a URL as hostname plus path, without scheme or leading "www.".
// Unparseable input is returned trimmed.
func cleanWebsite(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	out := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if u.Path != "" && u.Path != "/" {
		out += u.Path
	}
	return out
}
