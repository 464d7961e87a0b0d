package products

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pedroojr/xml-merch-importer/internal/nfe"
	"github.com/pedroojr/xml-merch-importer/internal/pricing"
)

const sampleInvoice = `<?xml version="1.0" encoding="UTF-8"?>
<nfeProc xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00">
  <NFe>
    <infNFe Id="NFe35240112345678000199550010000012341000012349" versao="4.00">
      <ide><nNF>1234</nNF></ide>
      <emit><xNome>CONFECCOES EXEMPLO LTDA</xNome></emit>
      <det nItem="1">
        <prod>
          <cProd>K1234</cProd>
          <cEAN>7891234567895</cEAN>
          <xProd>CAMISETA KYLY AZUL TAM G</xProd>
          <NCM>61091000</NCM>
          <CFOP>5102</CFOP>
          <uCom>UN</uCom>
          <qCom>2.0000</qCom>
          <vUnCom>50.00</vUnCom>
          <vProd>100.00</vProd>
        </prod>
        <vDesc>10.00</vDesc>
      </det>
    </infNFe>
  </NFe>
</nfeProc>`

type memoryRepo struct {
	imports  map[uuid.UUID]Import
	products map[uuid.UUID][]nfe.Product
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		imports:  make(map[uuid.UUID]Import),
		products: make(map[uuid.UUID][]nfe.Product),
	}
}

func (r *memoryRepo) CreateImport(ctx context.Context, imp Import, items []nfe.Product) error {
	for _, existing := range r.imports {
		if existing.AccessKey == imp.AccessKey {
			return ErrDuplicateImport
		}
	}
	r.imports[imp.ID] = imp
	r.products[imp.ID] = append([]nfe.Product(nil), items...)
	return nil
}

func (r *memoryRepo) ListImports(ctx context.Context) ([]Import, error) {
	result := make([]Import, 0, len(r.imports))
	for _, imp := range r.imports {
		result = append(result, imp)
	}
	return result, nil
}

func (r *memoryRepo) GetImport(ctx context.Context, id uuid.UUID) (Import, error) {
	imp, ok := r.imports[id]
	if !ok {
		return Import{}, ErrImportNotFound
	}
	return imp, nil
}

func (r *memoryRepo) GetProducts(ctx context.Context, importID uuid.UUID) ([]nfe.Product, error) {
	if _, ok := r.imports[importID]; !ok {
		return nil, ErrImportNotFound
	}
	return append([]nfe.Product(nil), r.products[importID]...), nil
}

func (r *memoryRepo) GetProduct(ctx context.Context, importID uuid.UUID, code string) (nfe.Product, error) {
	for _, p := range r.products[importID] {
		if p.Code == code {
			return p, nil
		}
	}
	return nfe.Product{}, ErrProductNotFound
}

func (r *memoryRepo) UpdateProduct(ctx context.Context, importID uuid.UUID, updated nfe.Product) error {
	items := r.products[importID]
	for i, p := range items {
		if p.Code == updated.Code {
			items[i] = updated
			return nil
		}
	}
	return ErrProductNotFound
}

type memorySettings struct {
	current Settings
}

func newMemorySettings(cfg pricing.Config) *memorySettings {
	return &memorySettings{current: Settings{Pricing: cfg}}
}

func (s *memorySettings) Get(ctx context.Context) (Settings, error) {
	return s.current, nil
}

func (s *memorySettings) Save(ctx context.Context, next Settings) (Settings, error) {
	next.Revision = s.current.Revision + 1
	next.UpdatedAt = time.Now().UTC()
	s.current = next
	return next, nil
}

func newTestService(repo *memoryRepo, settings *memorySettings) *Service {
	return NewService(repo, settings, nil, nil)
}

func defaultConfig() pricing.Config {
	return pricing.Config{
		ChannelAMarkup: 120,
		ChannelBMarkup: 100,
		Rounding:       pricing.PolicyNinety,
	}
}

func TestImportInvoicePersistsAndPrices(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, newMemorySettings(defaultConfig()))
	ctx := context.Background()

	detail, err := svc.ImportInvoice(ctx, []byte(sampleInvoice))
	require.NoError(t, err)
	require.Equal(t, "1234", detail.Import.Number)
	require.Equal(t, "CONFECCOES EXEMPLO LTDA", detail.Import.Supplier)
	require.Equal(t, 1, detail.Import.ItemCount)
	require.Len(t, detail.Products, 1)

	p := detail.Products[0]
	require.Equal(t, "K1234", p.Code)
	require.Equal(t, "AZUL", p.Color)
	require.Equal(t, "G", p.Size)
	require.Equal(t, "KYLY", p.Brand)
	require.InDelta(t, 90, p.NetPrice, 1e-9)
	require.InDelta(t, 45, p.UnitNet, 1e-9)
	// markup pricing is off on freshly imported items, so both channels
	// carry the rounded unit net
	require.InDelta(t, 45.90, p.ChannelAPrice, 1e-9)
	require.InDelta(t, 45.90, p.ChannelBPrice, 1e-9)

	stored, err := repo.GetProducts(ctx, detail.Import.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestImportInvoiceRejectsDuplicateAccessKey(t *testing.T) {
	svc := newTestService(newMemoryRepo(), newMemorySettings(defaultConfig()))
	ctx := context.Background()

	_, err := svc.ImportInvoice(ctx, []byte(sampleInvoice))
	require.NoError(t, err)

	_, err = svc.ImportInvoice(ctx, []byte(sampleInvoice))
	require.ErrorIs(t, err, ErrDuplicateImport)
}

func TestImportInvoiceMalformedXML(t *testing.T) {
	svc := newTestService(newMemoryRepo(), newMemorySettings(defaultConfig()))

	_, err := svc.ImportInvoice(context.Background(), []byte("<nfeProc><unclosed"))
	require.ErrorIs(t, err, nfe.ErrMalformedDocument)
}

func TestGetImportMarksHiddenProducts(t *testing.T) {
	repo := newMemoryRepo()
	settings := newMemorySettings(defaultConfig())
	svc := newTestService(repo, settings)
	ctx := context.Background()

	detail, err := svc.ImportInvoice(ctx, []byte(sampleInvoice))
	require.NoError(t, err)

	settings.current.HiddenCodes = []string{"K1234"}
	view, err := svc.GetImport(ctx, detail.Import.ID)
	require.NoError(t, err)
	require.Len(t, view.Products, 1)
	require.True(t, view.Products[0].Hidden)
}

func TestGetImportUnknownID(t *testing.T) {
	svc := newTestService(newMemoryRepo(), newMemorySettings(defaultConfig()))

	_, err := svc.GetImport(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrImportNotFound)
}

func TestUpdateProductRepricesNetOnDiscountChange(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, newMemorySettings(defaultConfig()))
	ctx := context.Background()

	detail, err := svc.ImportInvoice(ctx, []byte(sampleInvoice))
	require.NoError(t, err)

	discount := 20.0
	updated, err := svc.UpdateProduct(ctx, detail.Import.ID, "K1234", ProductPatch{Discount: &discount})
	require.NoError(t, err)
	require.InDelta(t, 80, updated.NetPrice, 1e-9)
	// markup disabled on import, so the sale price tracks the net price
	require.InDelta(t, 80, updated.SalePrice, 1e-9)
}

func TestUpdateProductMarkupRepricesSale(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, newMemorySettings(defaultConfig()))
	ctx := context.Background()

	detail, err := svc.ImportInvoice(ctx, []byte(sampleInvoice))
	require.NoError(t, err)

	use := true
	markup := 50.0
	updated, err := svc.UpdateProduct(ctx, detail.Import.ID, "K1234", ProductPatch{UseMarkup: &use, Markup: &markup})
	require.NoError(t, err)
	require.True(t, updated.UseMarkup)
	require.InDelta(t, 135, updated.SalePrice, 1e-9) // 90 * 1.5
}

func TestUpdateProductExplicitSalePriceWins(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, newMemorySettings(defaultConfig()))
	ctx := context.Background()

	detail, err := svc.ImportInvoice(ctx, []byte(sampleInvoice))
	require.NoError(t, err)

	use := true
	markup := 50.0
	sale := 123.45
	updated, err := svc.UpdateProduct(ctx, detail.Import.ID, "K1234", ProductPatch{
		UseMarkup: &use, Markup: &markup, SalePrice: &sale,
	})
	require.NoError(t, err)
	require.InDelta(t, 123.45, updated.SalePrice, 1e-9)
}

func TestUpdateProductUnknownCode(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, newMemorySettings(defaultConfig()))
	ctx := context.Background()

	detail, err := svc.ImportInvoice(ctx, []byte(sampleInvoice))
	require.NoError(t, err)

	name := "RENAMED"
	_, err = svc.UpdateProduct(ctx, detail.Import.ID, "NOPE", ProductPatch{Name: &name})
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestUpdateProductDuplicateCodePatchesFirstOccurrence(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, newMemorySettings(defaultConfig()))
	ctx := context.Background()

	// Suppliers occasionally repeat a SKU within one invoice. A patch must
	// land on the first occurrence only, the row GetProduct resolves.
	id := uuid.New()
	items := []nfe.Product{
		{Code: "DUP1", Name: "MEIA LISA PRETA", Quantity: 1, TotalPrice: 10, NetPrice: 10, SalePrice: 13},
		{Code: "DUP1", Name: "MEIA LISA BRANCA", Quantity: 1, TotalPrice: 12, NetPrice: 12, SalePrice: 15.6},
	}
	require.NoError(t, repo.CreateImport(ctx, Import{ID: id, AccessKey: "dup-key"}, items))

	name := "MEIA CANO ALTO PRETA"
	updated, err := svc.UpdateProduct(ctx, id, "DUP1", ProductPatch{Name: &name})
	require.NoError(t, err)
	require.Equal(t, name, updated.Name)

	stored, err := repo.GetProducts(ctx, id)
	require.NoError(t, err)
	require.Equal(t, name, stored[0].Name)
	require.Equal(t, "MEIA LISA BRANCA", stored[1].Name)
}

func TestUpdateSettingsBumpsRevision(t *testing.T) {
	settings := newMemorySettings(defaultConfig())
	svc := newTestService(newMemoryRepo(), settings)
	ctx := context.Background()

	cfg := pricing.Config{ChannelAMarkup: 150, ChannelBMarkup: 80, Rounding: pricing.PolicyFifty}
	saved, err := svc.UpdateSettings(ctx, cfg, []string{"X1"})
	require.NoError(t, err)
	require.EqualValues(t, 1, saved.Revision)
	require.Equal(t, cfg, saved.Pricing)

	saved, err = svc.UpdateSettings(ctx, cfg, nil)
	require.NoError(t, err)
	require.EqualValues(t, 2, saved.Revision)
}

func TestSummaryExcludesHiddenFromTotals(t *testing.T) {
	repo := newMemoryRepo()
	settings := newMemorySettings(defaultConfig())
	svc := newTestService(repo, settings)
	ctx := context.Background()

	detail, err := svc.ImportInvoice(ctx, []byte(sampleInvoice))
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, detail.Import.ID)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Totals.Count)
	require.Zero(t, summary.HiddenCount)
	require.InDelta(t, 90, summary.Totals.NetPrice, 1e-9)
	// avg gross 100 * 2.2 and avg net 90 * 2.3
	require.InDelta(t, 220, summary.SuggestedA, 1e-9)
	require.InDelta(t, 207, summary.SuggestedB, 1e-9)
	// markup pricing off: rounded unit net 45.90 times qty 2
	require.InDelta(t, 91.80, summary.ChannelARevenue, 1e-9)

	settings.current.HiddenCodes = []string{"K1234"}
	summary, err = svc.Summary(ctx, detail.Import.ID)
	require.NoError(t, err)
	require.Zero(t, summary.Totals.Count)
	require.Equal(t, 1, summary.HiddenCount)
	require.Zero(t, summary.SuggestedA)
	require.Zero(t, summary.SuggestedB)
}
