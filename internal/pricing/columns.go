package pricing

import (
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/pedroojr/xml-merch-importer/internal/nfe"
)

// Alignment hints how a column should be displayed.
type Alignment string

const (
	AlignLeft  Alignment = "left"
	AlignRight Alignment = "right"
)

// Column describes one projected field of a product row: how its value is
// derived and how it is rendered. Accessors are pure: they never mutate the
// product and tolerate quantity = 0.
type Column struct {
	ID             string
	Label          string
	Align          Alignment
	DefaultVisible bool
	Value          func(p nfe.Product, cfg Config) any
	Format         func(v any) string
}

var brlPrinter = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL renders a monetary amount in Brazilian convention
// (R$ 1.234,56).
func FormatBRL(v float64) string {
	return brlPrinter.Sprintf("R$ %.2f", v)
}

func formatString(v any) string {
	s, _ := v.(string)
	return s
}

func formatQuantity(v any) string {
	f, _ := v.(float64)
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatMoney(v any) string {
	f, _ := v.(float64)
	return FormatBRL(f)
}

func stringColumn(id, label string, value func(nfe.Product) string) Column {
	return Column{
		ID:             id,
		Label:          label,
		Align:          AlignLeft,
		DefaultVisible: true,
		Value:          func(p nfe.Product, _ Config) any { return value(p) },
		Format:         formatString,
	}
}

func moneyColumn(id, label string, visible bool, value func(nfe.Product, Config) float64) Column {
	return Column{
		ID:             id,
		Label:          label,
		Align:          AlignRight,
		DefaultVisible: visible,
		Value:          func(p nfe.Product, cfg Config) any { return value(p, cfg) },
		Format:         formatMoney,
	}
}

// Columns returns the fixed projection table consumed by display and export
// layers. Derived prices read the ambient pricing configuration.
func Columns() []Column {
	return []Column{
		stringColumn("code", "Código", func(p nfe.Product) string { return p.Code }),
		stringColumn("ean", "EAN", func(p nfe.Product) string { return p.EAN }),
		stringColumn("name", "Descrição", func(p nfe.Product) string { return p.Name }),
		stringColumn("ncm", "NCM", func(p nfe.Product) string { return p.NCM }),
		stringColumn("cfop", "CFOP", func(p nfe.Product) string { return p.CFOP }),
		stringColumn("uom", "Unidade", func(p nfe.Product) string { return p.UOM }),
		{
			ID:             "quantity",
			Label:          "Quantidade",
			Align:          AlignRight,
			DefaultVisible: true,
			Value:          func(p nfe.Product, _ Config) any { return p.Quantity },
			Format:         formatQuantity,
		},
		moneyColumn("unitPrice", "Preço Unitário", true, func(p nfe.Product, _ Config) float64 { return p.UnitPrice }),
		moneyColumn("totalPrice", "Total", true, func(p nfe.Product, _ Config) float64 { return p.TotalPrice }),
		moneyColumn("discount", "Desconto", true, func(p nfe.Product, _ Config) float64 { return p.Discount }),
		moneyColumn("unitDiscount", "Desconto Unitário", false, func(p nfe.Product, _ Config) float64 { return UnitDiscount(p) }),
		moneyColumn("netPrice", "Valor Líquido", true, func(p nfe.Product, _ Config) float64 { return p.NetPrice }),
		moneyColumn("unitNet", "Líquido Unitário", false, func(p nfe.Product, _ Config) float64 { return UnitNet(p) }),
		stringColumn("color", "Cor", func(p nfe.Product) string { return p.Color }),
		stringColumn("size", "Tamanho", func(p nfe.Product) string { return p.Size }),
		stringColumn("brand", "Marca", func(p nfe.Product) string { return p.Brand }),
		moneyColumn("salePrice", "Preço de Venda", true, func(p nfe.Product, _ Config) float64 { return p.SalePrice }),
		moneyColumn("channelA", "Canal A", true, func(p nfe.Product, cfg Config) float64 {
			return ChannelPrice(p, cfg.ChannelAMarkup, cfg.Rounding)
		}),
		moneyColumn("channelB", "Canal B", true, func(p nfe.Product, cfg Config) float64 {
			return ChannelPrice(p, cfg.ChannelBMarkup, cfg.Rounding)
		}),
	}
}

// ColumnByID looks a column up by identifier, returning false when absent.
func ColumnByID(id string) (Column, bool) {
	for _, c := range Columns() {
		if c.ID == id {
			return c, true
		}
	}
	return Column{}, false
}
