package contact

import (
	"regexp"
	"strings"
)

const streetTypes = `Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Drive|Dr|Lane|Ln|Way|Court|Ct`

// A lowercase state abbreviation only counts when a ZIP follows it.
const stateZip = `(?:[A-Za-z]{2}\s+\d{5}|[A-Z]{2})\b`

var addressPatterns = []*regexp.Regexp{
	// 123 Main Street[, Springfield], IL [62704]
	regexp.MustCompile(`\b\d+\s+[A-Za-z][A-Za-z\s]*?\s(?i:` + streetTypes + `)\b\.?(?:[,\s]+[A-Za-z][A-Za-z\s]*?)?[,\s]+` + stateZip),
	// 123 Main, Springfield, IL 62704
	regexp.MustCompile(`\b\d+\s+[A-Za-z][A-Za-z\s]*?[,\s]+[A-Za-z][A-Za-z\s]*?[,\s]+[A-Za-z]{2}\s+\d{5}\b`),
}

func extractAddress(text string) string {
	for _, re := range addressPatterns {
		if m := re.FindString(text); m != "" {
			return strings.TrimSpace(m)
		}
	}
	return ""
}
