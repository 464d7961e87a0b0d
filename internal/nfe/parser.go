package nfe

import (
	"encoding/xml"
	"errors"
	"fmt"

	"github.com/pedroojr/xml-merch-importer/internal/match"
)

// ErrMalformedDocument indicates the input is not well-formed XML. It is the
// only failure that crosses the package boundary; structural gaps inside a
// well-formed document degrade to skipped items or zero values.
var ErrMalformedDocument = errors.New("nfe: malformed document")

// DefaultMarkup is the baseline markup percentage applied to every freshly
// extracted item, independent of any channel configuration.
const DefaultMarkup = 30

// Result is the outcome of parsing one invoice document.
type Result struct {
	// AccessKey is the infNFe Id attribute (chave de acesso), when present.
	AccessKey string
	// Number is the invoice number (nNF).
	Number string
	// Supplier is the emitter's trade name.
	Supplier string
	// Products holds one entry per line item, in document order.
	Products []Product
	// Skipped counts det nodes dropped for lack of a prod child.
	Skipped int
}

// Parse extracts products from a complete NF-e document. Line items appear
// in Products in document order. A det node without a prod child is skipped
// and counted in Skipped; missing tags default to "" (string fields) or to
// the lenient numeric parse of "" (numeric fields).
func Parse(data []byte) (Result, error) {
	var env envelope
	if err := xml.Unmarshal(data, &env); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	inf := env.infNFe()
	result := Result{
		AccessKey: inf.ID,
		Number:    inf.Ide.NNF,
		Supplier:  inf.Emit.XNome,
		Products:  make([]Product, 0, len(inf.Det)),
	}

	for _, det := range inf.Det {
		if det.Prod == nil {
			result.Skipped++
			continue
		}
		result.Products = append(result.Products, buildProduct(det))
	}
	return result, nil
}

func buildProduct(det detXML) Product {
	prod := det.Prod

	quantity := ParseDecimal(prod.QCom)
	unitPrice := ParseDecimal(prod.VUnCom)
	totalPrice := ParseDecimal(prod.VProd)
	discount := ParseDecimal(det.VDesc)
	netPrice := totalPrice - discount

	cst, origin := det.Imposto.ICMS.classification()
	brand, confidence := match.Brand(prod.CProd, prod.XProd)

	return Product{
		Code:      prod.CProd,
		EAN:       prod.CEAN,
		Name:      prod.XProd,
		NCM:       prod.NCM,
		CFOP:      prod.CFOP,
		UOM:       prod.UCom,
		Reference: prod.CProd,

		Quantity:   quantity,
		UnitPrice:  unitPrice,
		TotalPrice: totalPrice,
		Discount:   discount,
		NetPrice:   netPrice,

		Color:           match.Color(prod.XProd),
		Size:            match.Size(prod.XProd),
		Brand:           brand,
		BrandConfidence: confidence,

		ICMSCST:    cst,
		ICMSOrigin: origin,

		UseMarkup: false,
		Markup:    DefaultMarkup,
		SalePrice: netPrice * (1 + float64(DefaultMarkup)/100),
	}
}
