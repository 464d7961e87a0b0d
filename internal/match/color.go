// Package match infers categorical attributes (color, size, brand) from
// free-text invoice product descriptions.
package match

import "strings"

// canonicalColors is the fixed match order. When a description mentions more
// than one color the earliest entry here wins.
var canonicalColors = []string{
	"PRETO",
	"BRANCO",
	"VERMELHO",
	"AZUL",
	"VERDE",
	"AMARELO",
	"MARROM",
	"CINZA",
	"ROXO",
	"ROSA",
	"LARANJA",
	"BEGE",
	"DOURADO",
	"PRATA",
}

// Color returns the first canonical color that appears as a substring of the
// description, or "" when none matches. Matching is case-insensitive and
// makes no attempt to reject false positives ("BLACKOUT" style prefixes
// still match).
func Color(description string) string {
	upper := strings.ToUpper(description)
	for _, color := range canonicalColors {
		if strings.Contains(upper, color) {
			return color
		}
	}
	return ""
}
