package nfe

import (
	"strconv"
	"strings"
)

// ParseDecimal converts raw invoice numeric text to a float64. Producers
// vary wildly in formatting, so parsing is lenient: everything except
// digits, comma, period and minus is stripped, a trailing decimal comma is
// converted to a period, and anything still unparseable becomes 0.
func ParseDecimal(raw string) float64 {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r == ',', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if idx := strings.LastIndexByte(cleaned, ','); idx >= 0 {
		cleaned = cleaned[:idx] + "." + cleaned[idx+1:]
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return value
}
