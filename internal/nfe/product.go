// Package nfe extracts line-item product data from Brazilian electronic
// invoice (NF-e) XML documents.
package nfe

// Product is one invoice line item after extraction and attribute
// inference. Quantities and currency amounts are non-negative decimals in
// the invoice's currency unit.
type Product struct {
	Code      string `json:"code"`
	EAN       string `json:"ean"`
	Name      string `json:"name"`
	NCM       string `json:"ncm"`
	CFOP      string `json:"cfop"`
	UOM       string `json:"uom"`
	Reference string `json:"reference"`

	Quantity   float64 `json:"quantity"`
	UnitPrice  float64 `json:"unitPrice"`
	TotalPrice float64 `json:"totalPrice"`
	Discount   float64 `json:"discount"`
	// NetPrice is totalPrice - discount, fixed at extraction time. Callers
	// that later change TotalPrice or Discount must recompute it themselves.
	NetPrice float64 `json:"netPrice"`

	Color           string  `json:"color"`
	Size            string  `json:"size"`
	Brand           string  `json:"brand"`
	BrandConfidence float64 `json:"brandConfidence"`

	// ICMS classification is extracted for completeness; pricing never
	// reads it.
	ICMSCST    string `json:"icmsCst"`
	ICMSOrigin string `json:"icmsOrigin"`

	UseMarkup bool    `json:"useMarkup"`
	Markup    float64 `json:"markup"`
	SalePrice float64 `json:"salePrice"`
}
