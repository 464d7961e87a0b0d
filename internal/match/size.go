package match

import (
	"regexp"
	"strings"
)

// Size rules run in fixed priority order. An explicit "TAM: G" label beats a
// bare "M" token no matter where either appears in the text.
const (
	SizeRuleLabel     = "label"
	SizeRuleToken     = "token"
	SizeRuleShoeRange = "shoe-range"
	SizeRuleCategory  = "category"
	SizeRuleCommon    = "common-child"
	SizeRuleNone      = ""
)

var (
	sizeLabelRe     = regexp.MustCompile(`\b(?:TAMANHO|TAM)\b\s*[:.]?\s*((?:EXTRA\s+)?[A-ZÀ-Ü0-9]{1,8}(?:/[0-9]{2})?)`)
	sizeTokenRe     = regexp.MustCompile(`\b(PP|XXG|XG|GG|P|M|G)\b`)
	shoeRangeRe     = regexp.MustCompile(`\b([0-9]{2}/[0-9]{2})\b`)
	numericSizeRe   = regexp.MustCompile(`^[0-9]{2,3}$`)
	shoeRangeFullRe = regexp.MustCompile(`^[0-9]{2}/[0-9]{2}$`)
)

var sizeCategoryWords = []string{"INFANTIL", "JUVENIL", "ADULTO"}

// sizeSynonyms folds verbose labels into the standard apparel tokens.
var sizeSynonyms = map[string]string{
	"PEQUENO":       "P",
	"SMALL":         "P",
	"MEDIO":         "M",
	"MÉDIO":         "M",
	"MEDIUM":        "M",
	"GRANDE":        "G",
	"LARGE":         "G",
	"EXTRA GRANDE":  "XG",
	"EXTRA LARGE":   "XG",
	"EXTRA PEQUENO": "PP",
	"EXTRA SMALL":   "PP",
}

var validSizeTokens = map[string]bool{
	"PP": true, "P": true, "M": true, "G": true,
	"GG": true, "XG": true, "XXG": true,
	"INFANTIL": true, "JUVENIL": true, "ADULTO": true,
}

// SizeTrace records which rule produced the size and the intermediate match
// state. It exists for debugging and tests; production callers use Size.
type SizeTrace struct {
	Rule       string
	Candidate  string
	Normalized string
	Size       string
}

// Size extracts an apparel size from a description, or "" when no rule
// yields a valid candidate.
func Size(description string) string {
	return SizeWithTrace(description).Size
}

// SizeWithTrace runs the size rules in priority order and reports how the
// result was obtained. A rule whose candidate fails validation is recorded
// as a miss and the next rule runs.
func SizeWithTrace(description string) SizeTrace {
	upper := strings.ToUpper(strings.TrimSpace(description))

	if m := sizeLabelRe.FindStringSubmatch(upper); m != nil {
		if trace, ok := validate(SizeRuleLabel, m[1]); ok {
			return trace
		}
	}
	if m := sizeTokenRe.FindStringSubmatch(upper); m != nil {
		if trace, ok := validate(SizeRuleToken, m[1]); ok {
			return trace
		}
	}
	if m := shoeRangeRe.FindStringSubmatch(upper); m != nil {
		if trace, ok := validate(SizeRuleShoeRange, m[1]); ok {
			return trace
		}
	}
	if strings.Contains(upper, "COMUM INFANTIL") {
		if trace, ok := validate(SizeRuleCommon, "INFANTIL"); ok {
			return trace
		}
	}
	for _, word := range sizeCategoryWords {
		if strings.Contains(upper, word) {
			if trace, ok := validate(SizeRuleCategory, word); ok {
				return trace
			}
		}
	}
	return SizeTrace{Rule: SizeRuleNone}
}

// validate normalizes a candidate and checks it against the whitelist of
// size tokens, 2-3 digit numeric sizes and NN/NN shoe ranges.
func validate(rule, candidate string) (SizeTrace, bool) {
	normalized := strings.Join(strings.Fields(strings.ToUpper(candidate)), " ")
	if folded, ok := sizeSynonyms[normalized]; ok {
		normalized = folded
	}
	trace := SizeTrace{Rule: rule, Candidate: candidate, Normalized: normalized}
	if validSizeTokens[normalized] || numericSizeRe.MatchString(normalized) || shoeRangeFullRe.MatchString(normalized) {
		trace.Size = normalized
		return trace, true
	}
	return trace, false
}
