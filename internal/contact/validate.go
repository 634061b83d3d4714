package contact

import (
	"strings"
	"unicode/utf8"
)

// Validate runs the acceptance gate on c and returns RejectNone when it passes.
func (e *Extractor) Validate(c Contact) RejectReason {
	name := strings.TrimSpace(c.Name)
	if utf8.RuneCountInString(name) < 2 {
		return RejectShortName
	}
	if containsAny(strings.ToLower(name), e.tables.NameDenylist) {
		return RejectDenylistedName
	}
	hasEmail := c.Email != "" && IsEmailShaped(c.Email)
	if !hasEmail && strings.TrimSpace(c.Phone) == "" {
		return RejectNoContactMethod
	}
	return RejectNone
}
