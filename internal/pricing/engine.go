// Package pricing derives per-unit and per-channel sale prices from
// extracted invoice line items under configurable markup and rounding rules.
package pricing

import (
	"math"

	"github.com/pedroojr/xml-merch-importer/internal/nfe"
)

// Policy selects how a computed sale price is rounded.
type Policy string

const (
	// PolicyNinety pins the fractional part to .90 (charm pricing). This is
	// not mathematical rounding: 10.95 becomes 10.90, not 11.90.
	PolicyNinety Policy = "ninety"
	// PolicyFifty rounds to the nearest multiple of 0.50, half up.
	PolicyFifty Policy = "fifty"
	// PolicyNone leaves the price untouched.
	PolicyNone Policy = "none"
)

// ParsePolicy maps arbitrary input to a known policy, defaulting to
// PolicyNone for anything unrecognised.
func ParsePolicy(s string) Policy {
	switch Policy(s) {
	case PolicyNinety, PolicyFifty, PolicyNone:
		return Policy(s)
	default:
		return PolicyNone
	}
}

// Config is the full pricing configuration surface: one markup percentage
// per channel plus the rounding policy.
type Config struct {
	ChannelAMarkup float64 `json:"channelAMarkup"`
	ChannelBMarkup float64 `json:"channelBMarkup"`
	Rounding       Policy  `json:"roundingPolicy"`
}

// SalePrice computes the markup-driven sale price of a line item. Items not
// participating in markup pricing pass their net price through unchanged,
// whatever the markup.
func SalePrice(p nfe.Product, markupPercent float64) float64 {
	if !p.UseMarkup {
		return p.NetPrice
	}
	return p.NetPrice * (1 + markupPercent/100)
}

// Round applies the rounding policy. Unknown policies are treated as
// PolicyNone.
func Round(price float64, policy Policy) float64 {
	switch policy {
	case PolicyNinety:
		return math.Floor(price) + 0.90
	case PolicyFifty:
		return math.Round(price/0.5) * 0.5
	default:
		return price
	}
}

// UnitNet is the per-unit net price of a line whose net price aggregates
// quantity > 1. A zero quantity yields 0, never a division error.
func UnitNet(p nfe.Product) float64 {
	if p.Quantity > 0 {
		return p.NetPrice / p.Quantity
	}
	return 0
}

// UnitDiscount is the per-unit share of the line discount.
func UnitDiscount(p nfe.Product) float64 {
	if p.Quantity > 0 {
		return p.Discount / p.Quantity
	}
	return 0
}

// ChannelPrice computes the rounded per-unit sale price for one channel:
// the markup applies to the unit net price, then the policy rounds.
func ChannelPrice(p nfe.Product, markupPercent float64, policy Policy) float64 {
	unit := p
	unit.NetPrice = UnitNet(p)
	return Round(SalePrice(unit, markupPercent), policy)
}
