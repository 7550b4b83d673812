package release

import (
	"regexp"
	"slices"

	"github.com/hbollon/go-edlib"
)

var sequenceNumber = regexp.MustCompile(`\b\d+\b`)

// Sequence number adjustments applied by TitleSimilarity.
const (
	sequenceMatchBonus    = 1.05
	sequenceMismatch      = 0.90
	sequenceMissingOnSide = 0.85
)

// TitleSimilarity compares two titles after CleanTitle using Jaro-Winkler,
// which favours shared prefixes. Titles carrying sequence numbers must agree
// on one, so "Rocky II" and "Rocky III" score apart.
func TitleSimilarity(a, b string) float64 {
	a, b = CleanTitle(a), CleanTitle(b)
	if a == b {
		return 1
	}
	score := float64(edlib.JaroWinklerSimilarity(a, b))

	na, nb := sequenceNumber.FindAllString(a, -1), sequenceNumber.FindAllString(b, -1)
	switch {
	case len(na) == 0 && len(nb) == 0:
		return score
	case len(na) == 0 || len(nb) == 0:
		return score * sequenceMissingOnSide
	}
	for _, n := range na {
		if slices.Contains(nb, n) {
			return min(score*sequenceMatchBonus, 1)
		}
	}
	return score * sequenceMismatch
}

// Similarity returns the normalized Levenshtein similarity of two release
// names after DotName, between 0 and 1.
func Similarity(a, b string) float64 {
	a, b = DotName(a), DotName(b)
	if a == b {
		return 1
	}
	score, err := edlib.StringsSimilarity(a, b, edlib.Levenshtein)
	if err != nil {
		return 0
	}
	return float64(score)
}
