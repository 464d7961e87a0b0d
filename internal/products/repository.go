package products

import (
	"context"

	"github.com/google/uuid"

	"github.com/pedroojr/xml-merch-importer/internal/nfe"
)

// RepositoryPort abstracts batch persistence for the service.
type RepositoryPort interface {
	CreateImport(ctx context.Context, imp Import, items []nfe.Product) error
	ListImports(ctx context.Context) ([]Import, error)
	GetImport(ctx context.Context, id uuid.UUID) (Import, error)
	GetProducts(ctx context.Context, importID uuid.UUID) ([]nfe.Product, error)
	GetProduct(ctx context.Context, importID uuid.UUID, code string) (nfe.Product, error)
	UpdateProduct(ctx context.Context, importID uuid.UUID, p nfe.Product) error
}

// SettingsPort abstracts the pricing-settings snapshot store.
type SettingsPort interface {
	Get(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) (Settings, error)
}
