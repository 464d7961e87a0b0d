package pricing

import "github.com/pedroojr/xml-merch-importer/internal/nfe"

// Totals aggregates the additive fields of a product sequence.
type Totals struct {
	Count      int     `json:"count"`
	Quantity   float64 `json:"quantity"`
	TotalPrice float64 `json:"totalPrice"`
	Discount   float64 `json:"discount"`
	NetPrice   float64 `json:"netPrice"`
}

// IncludeAll is the identity filter for Sum and ChannelRevenue.
func IncludeAll(nfe.Product) bool { return true }

// Sum folds the quantity and currency fields of every product accepted by
// the filter. Which items are visible is the caller's concern; a nil filter
// includes everything.
func Sum(products []nfe.Product, include func(nfe.Product) bool) Totals {
	if include == nil {
		include = IncludeAll
	}
	var t Totals
	for _, p := range products {
		if !include(p) {
			continue
		}
		t.Count++
		t.Quantity += p.Quantity
		t.TotalPrice += p.TotalPrice
		t.Discount += p.Discount
		t.NetPrice += p.NetPrice
	}
	return t
}

// ChannelRevenue projects revenue for one channel: the rounded per-unit
// channel price of each included item times its quantity.
func ChannelRevenue(products []nfe.Product, include func(nfe.Product) bool, markupPercent float64, policy Policy) float64 {
	if include == nil {
		include = IncludeAll
	}
	var revenue float64
	for _, p := range products {
		if !include(p) {
			continue
		}
		revenue += ChannelPrice(p, markupPercent, policy) * p.Quantity
	}
	return revenue
}

// Fixed advisory multipliers, independent of the configured markups.
const (
	suggestedFactorA = 2.2
	suggestedFactorB = 2.3
)

// SuggestedChannelA is the advisory price for channel A: average gross
// total price times 2.2. Zero items yields 0.
func SuggestedChannelA(t Totals) float64 {
	if t.Count == 0 {
		return 0
	}
	return t.TotalPrice / float64(t.Count) * suggestedFactorA
}

// SuggestedChannelB is the advisory price for channel B: average net price
// times 2.3. Zero items yields 0.
func SuggestedChannelB(t Totals) float64 {
	if t.Count == 0 {
		return 0
	}
	return t.NetPrice / float64(t.Count) * suggestedFactorB
}
