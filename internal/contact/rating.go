package contact

import (
	"math"
	"strings"
	"unicode/utf8"
)

const (
	baseRating   = 3.0
	minRating    = 1.0
	maxRating    = 5.0
	ratingJitter = 0.4
)

// rating is a synthetic quality proxy: longer, keyword-rich pages score higher.
func (e *Extractor) rating(text string) float64 {
	score := baseRating
	if text != "" {
		n := utf8.RuneCountInString(text)
		if n > 500 {
			score += 0.5
		}
		if n > 1000 {
			score += 0.3
		}
		lower := strings.ToLower(text)
		for _, kw := range e.tables.PositiveKeywords {
			if strings.Contains(lower, kw) {
				score += 0.2
			}
		}
	}
	score += (e.rng.Float64() - 0.5) * ratingJitter
	return clampRating(score)
}

func clampRating(v float64) float64 {
	v = math.Round(v*10) / 10
	return math.Min(maxRating, math.Max(minRating, v))
}
