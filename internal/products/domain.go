// Package products manages imported invoice batches: persistence, pricing
// views, settings and the HTTP surface.
package products

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pedroojr/xml-merch-importer/internal/nfe"
	"github.com/pedroojr/xml-merch-importer/internal/pricing"
)

// Import is the header of one imported invoice batch.
type Import struct {
	ID        uuid.UUID `json:"id"`
	AccessKey string    `json:"accessKey"`
	Number    string    `json:"number"`
	Supplier  string    `json:"supplier"`
	ItemCount int       `json:"itemCount"`
	Skipped   int       `json:"skipped"`
	CreatedAt time.Time `json:"createdAt"`
}

// Settings is the persisted pricing configuration snapshot. Revision
// increments on every write and keys the priced-view cache.
type Settings struct {
	Revision    int64          `json:"revision"`
	Pricing     pricing.Config `json:"pricing"`
	HiddenCodes []string       `json:"hiddenCodes"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Hidden reports whether a product code is in the hidden partition.
func (s Settings) Hidden(code string) bool {
	for _, c := range s.HiddenCodes {
		if c == code {
			return true
		}
	}
	return false
}

// PricedProduct decorates a stored product with the per-channel unit prices
// derived under the current settings.
type PricedProduct struct {
	nfe.Product
	UnitNet       float64 `json:"unitNet"`
	ChannelAPrice float64 `json:"channelAPrice"`
	ChannelBPrice float64 `json:"channelBPrice"`
	Hidden        bool    `json:"hidden"`
}

// ImportDetail is an import header plus its priced products.
type ImportDetail struct {
	Import   Import          `json:"import"`
	Products []PricedProduct `json:"products"`
	Settings Settings        `json:"settings"`
}

// Summary aggregates an import under the current settings.
type Summary struct {
	Totals          pricing.Totals `json:"totals"`
	HiddenCount     int            `json:"hiddenCount"`
	ChannelARevenue float64        `json:"channelARevenue"`
	ChannelBRevenue float64        `json:"channelBRevenue"`
	SuggestedA      float64        `json:"suggestedChannelA"`
	SuggestedB      float64        `json:"suggestedChannelB"`
}

var (
	// ErrImportNotFound indicates an unknown import batch id.
	ErrImportNotFound = errors.New("products: import not found")
	// ErrProductNotFound indicates an unknown product code within a batch.
	ErrProductNotFound = errors.New("products: product not found")
	// ErrDuplicateImport indicates the invoice access key was already
	// imported.
	ErrDuplicateImport = errors.New("products: import already exists")
)
