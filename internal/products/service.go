package products

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pedroojr/xml-merch-importer/internal/nfe"
	"github.com/pedroojr/xml-merch-importer/internal/pricing"
)

// Service coordinates invoice imports and pricing views.
type Service struct {
	repo     RepositoryPort
	settings SettingsPort
	cache    *Cache
	logger   *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, settings SettingsPort, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cache == nil {
		cache = NewCache(nil, 0)
	}
	return &Service{repo: repo, settings: settings, cache: cache, logger: logger}
}

// ImportInvoice parses a raw NF-e document, enriches and prices its line
// items, and persists the batch. Malformed XML aborts the whole call with
// an error wrapping nfe.ErrMalformedDocument; items without a product node
// are logged and skipped.
func (s *Service) ImportInvoice(ctx context.Context, xmlData []byte) (ImportDetail, error) {
	result, err := nfe.Parse(xmlData)
	if err != nil {
		return ImportDetail{}, err
	}
	if result.Skipped > 0 {
		s.logger.Warn("line items without product node skipped",
			slog.Int("skipped", result.Skipped),
			slog.String("invoice", result.Number))
	}

	imp := Import{
		ID:        uuid.New(),
		AccessKey: result.AccessKey,
		Number:    result.Number,
		Supplier:  result.Supplier,
		ItemCount: len(result.Products),
		Skipped:   result.Skipped,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateImport(ctx, imp, result.Products); err != nil {
		return ImportDetail{}, err
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return ImportDetail{}, err
	}
	return ImportDetail{
		Import:   imp,
		Products: priceAll(result.Products, settings),
		Settings: settings,
	}, nil
}

// ListImports returns every batch header.
func (s *Service) ListImports(ctx context.Context) ([]Import, error) {
	return s.repo.ListImports(ctx)
}

// GetImport returns a batch with its products priced under the current
// settings. The assembled view is cached per (import, settings revision).
func (s *Service) GetImport(ctx context.Context, id uuid.UUID) (ImportDetail, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return ImportDetail{}, err
	}

	key, err := s.cache.BuildKey(ctx, "products:view", id.String(),
		fmt.Sprintf("rev%d", settings.Revision))
	if err != nil {
		return ImportDetail{}, err
	}

	var detail ImportDetail
	err = s.cache.FetchJSON(ctx, key, &detail, func(ctx context.Context) (any, error) {
		imp, err := s.repo.GetImport(ctx, id)
		if err != nil {
			return nil, err
		}
		items, err := s.repo.GetProducts(ctx, id)
		if err != nil {
			return nil, err
		}
		return ImportDetail{
			Import:   imp,
			Products: priceAll(items, settings),
			Settings: settings,
		}, nil
	})
	if err != nil {
		return ImportDetail{}, err
	}
	return detail, nil
}

// ProductPatch carries the optional field edits of a single line item. Nil
// fields stay untouched.
type ProductPatch struct {
	Name       *string  `json:"name" validate:"omitempty,min=1"`
	UOM        *string  `json:"uom"`
	Color      *string  `json:"color"`
	Size       *string  `json:"size"`
	Brand      *string  `json:"brand"`
	Quantity   *float64 `json:"quantity" validate:"omitempty,gte=0"`
	TotalPrice *float64 `json:"totalPrice" validate:"omitempty,gte=0"`
	Discount   *float64 `json:"discount" validate:"omitempty,gte=0"`
	UseMarkup  *bool    `json:"useMarkup"`
	Markup     *float64 `json:"markup" validate:"omitempty,gte=0"`
	SalePrice  *float64 `json:"salePrice" validate:"omitempty,gte=0"`
}

// UpdateProduct applies a patch to one line item. Net price is re-derived
// only when the patch touches totalPrice or discount; the sale price is
// re-derived from the markup unless the patch sets it explicitly.
func (s *Service) UpdateProduct(ctx context.Context, importID uuid.UUID, code string, patch ProductPatch) (nfe.Product, error) {
	p, err := s.repo.GetProduct(ctx, importID, code)
	if err != nil {
		return nfe.Product{}, err
	}

	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.UOM != nil {
		p.UOM = *patch.UOM
	}
	if patch.Color != nil {
		p.Color = *patch.Color
	}
	if patch.Size != nil {
		p.Size = *patch.Size
	}
	if patch.Brand != nil {
		p.Brand = *patch.Brand
	}
	if patch.Quantity != nil {
		p.Quantity = *patch.Quantity
	}

	repriceNet := patch.TotalPrice != nil || patch.Discount != nil
	if patch.TotalPrice != nil {
		p.TotalPrice = *patch.TotalPrice
	}
	if patch.Discount != nil {
		p.Discount = *patch.Discount
	}
	if repriceNet {
		p.NetPrice = p.TotalPrice - p.Discount
	}

	repriceSale := repriceNet || patch.UseMarkup != nil || patch.Markup != nil
	if patch.UseMarkup != nil {
		p.UseMarkup = *patch.UseMarkup
	}
	if patch.Markup != nil {
		p.Markup = *patch.Markup
	}
	if patch.SalePrice != nil {
		p.SalePrice = *patch.SalePrice
	} else if repriceSale {
		p.SalePrice = pricing.SalePrice(p, p.Markup)
	}

	if err := s.repo.UpdateProduct(ctx, importID, p); err != nil {
		return nfe.Product{}, err
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("cache bump failed", slog.Any("error", err))
	}
	return p, nil
}

// Settings returns the current pricing configuration snapshot.
func (s *Service) Settings(ctx context.Context) (Settings, error) {
	return s.settings.Get(ctx)
}

// UpdateSettings persists a new pricing configuration snapshot.
func (s *Service) UpdateSettings(ctx context.Context, cfg pricing.Config, hidden []string) (Settings, error) {
	return s.settings.Save(ctx, Settings{Pricing: cfg, HiddenCodes: hidden})
}

// Summary aggregates a batch under the current settings, excluding hidden
// items from the sums.
func (s *Service) Summary(ctx context.Context, importID uuid.UUID) (Summary, error) {
	if _, err := s.repo.GetImport(ctx, importID); err != nil {
		return Summary{}, err
	}
	items, err := s.repo.GetProducts(ctx, importID)
	if err != nil {
		return Summary{}, err
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return Summary{}, err
	}

	visible := func(p nfe.Product) bool { return !settings.Hidden(p.Code) }
	totals := pricing.Sum(items, visible)
	return Summary{
		Totals:          totals,
		HiddenCount:     len(items) - totals.Count,
		ChannelARevenue: pricing.ChannelRevenue(items, visible, settings.Pricing.ChannelAMarkup, settings.Pricing.Rounding),
		ChannelBRevenue: pricing.ChannelRevenue(items, visible, settings.Pricing.ChannelBMarkup, settings.Pricing.Rounding),
		SuggestedA:      pricing.SuggestedChannelA(totals),
		SuggestedB:      pricing.SuggestedChannelB(totals),
	}, nil
}

// ExportProducts returns a batch header plus its items in document order,
// ready for CSV export.
func (s *Service) ExportProducts(ctx context.Context, importID uuid.UUID) (Import, []nfe.Product, error) {
	imp, err := s.repo.GetImport(ctx, importID)
	if err != nil {
		return Import{}, nil, err
	}
	items, err := s.repo.GetProducts(ctx, importID)
	if err != nil {
		return Import{}, nil, err
	}
	return imp, items, nil
}

func priceAll(items []nfe.Product, settings Settings) []PricedProduct {
	priced := make([]PricedProduct, 0, len(items))
	for _, p := range items {
		priced = append(priced, PricedProduct{
			Product:       p,
			UnitNet:       pricing.UnitNet(p),
			ChannelAPrice: pricing.ChannelPrice(p, settings.Pricing.ChannelAMarkup, settings.Pricing.Rounding),
			ChannelBPrice: pricing.ChannelPrice(p, settings.Pricing.ChannelBMarkup, settings.Pricing.Rounding),
			Hidden:        settings.Hidden(p.Code),
		})
	}
	return priced
}
