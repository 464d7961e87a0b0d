package match

import (
	"regexp"
	"strings"
)

// BrandUnclassified is the sentinel returned when no brand rule matches.
const BrandUnclassified = "OUTROS"

// Confidence is constant per rule tier, not a continuous score.
const (
	brandConfidenceName     = 0.9
	brandConfidencePattern  = 0.8
	brandConfidenceFallback = 0.6
	brandConfidenceDefault  = 0.3
)

// knownBrands are matched as case-insensitive substrings of the product
// name, in this order.
var knownBrands = []string{
	"BRANDILI",
	"KYLY",
	"MALWEE",
	"ELIAN",
	"HERING",
}

// brandPattern ties a reference-code shape to a brand. First match wins.
type brandPattern struct {
	re    *regexp.Regexp
	brand string
}

var brandPatterns = []brandPattern{
	{regexp.MustCompile(`^K[0-9]{4,5}$`), "KYLY"},
	{regexp.MustCompile(`^B[0-9]{4,5}$`), "BRANDILI"},
	{regexp.MustCompile(`^BR[0-9]{3,4}$`), "BRANDILI"},
	{regexp.MustCompile(`^ML[0-9]{3,4}$`), "MALWEE"},
	{regexp.MustCompile(`^EL[0-9]{3,4}$`), "ELIAN"},
	{regexp.MustCompile(`^[0-9]{5}$`), "HERING"},
}

// Brand guesses the brand of a line item from its reference code and product
// name. The name check runs first; reference-code patterns and two weak
// shape heuristics follow. The confidence reflects which tier answered.
func Brand(reference, name string) (string, float64) {
	upperName := strings.ToUpper(name)
	for _, brand := range knownBrands {
		if strings.Contains(upperName, brand) {
			return brand, brandConfidenceName
		}
	}

	ref := strings.ToUpper(strings.TrimSpace(reference))
	for _, p := range brandPatterns {
		if p.re.MatchString(ref) {
			return p.brand, brandConfidencePattern
		}
	}

	// Weak shape heuristics on the reference code alone.
	if strings.HasPrefix(ref, "M") && len(ref) >= 5 {
		return "MALWEE", brandConfidenceFallback
	}
	if len(ref) >= 7 && isDigits(ref) {
		return "BRANDILI", brandConfidenceFallback
	}

	return BrandUnclassified, brandConfidenceDefault
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
