package products

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pedroojr/xml-merch-importer/internal/nfe"
	"github.com/pedroojr/xml-merch-importer/internal/platform/db"
	"github.com/pedroojr/xml-merch-importer/internal/pricing"
)

// Repository persists import batches in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `code, ean, name, ncm, cfop, uom, reference,
	quantity, unit_price, total_price, discount, net_price,
	color, size, brand, brand_confidence, icms_cst, icms_origin,
	use_markup, markup, sale_price`

// CreateImport inserts the batch header and all items atomically. A
// duplicate access key maps to ErrDuplicateImport.
func (r *Repository) CreateImport(ctx context.Context, imp Import, items []nfe.Product) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO imports (id, access_key, number, supplier, item_count, skipped, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			imp.ID, imp.AccessKey, imp.Number, imp.Supplier, imp.ItemCount, imp.Skipped, imp.CreatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrDuplicateImport
			}
			return err
		}
		for i, p := range items {
			if _, err := tx.Exec(ctx, `
				INSERT INTO import_products (import_id, position, `+productColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
				        $15, $16, $17, $18, $19, $20, $21, $22, $23)`,
				imp.ID, i,
				p.Code, p.EAN, p.Name, p.NCM, p.CFOP, p.UOM, p.Reference,
				p.Quantity, p.UnitPrice, p.TotalPrice, p.Discount, p.NetPrice,
				p.Color, p.Size, p.Brand, p.BrandConfidence, p.ICMSCST, p.ICMSOrigin,
				p.UseMarkup, p.Markup, p.SalePrice); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListImports returns batch headers, most recent first.
func (r *Repository) ListImports(ctx context.Context) ([]Import, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, access_key, number, supplier, item_count, skipped, created_at
		FROM imports ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var imports []Import
	for rows.Next() {
		var imp Import
		if err := rows.Scan(&imp.ID, &imp.AccessKey, &imp.Number, &imp.Supplier,
			&imp.ItemCount, &imp.Skipped, &imp.CreatedAt); err != nil {
			return nil, err
		}
		imports = append(imports, imp)
	}
	return imports, rows.Err()
}

// GetImport fetches one batch header.
func (r *Repository) GetImport(ctx context.Context, id uuid.UUID) (Import, error) {
	var imp Import
	err := r.pool.QueryRow(ctx, `
		SELECT id, access_key, number, supplier, item_count, skipped, created_at
		FROM imports WHERE id = $1`, id).
		Scan(&imp.ID, &imp.AccessKey, &imp.Number, &imp.Supplier,
			&imp.ItemCount, &imp.Skipped, &imp.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Import{}, ErrImportNotFound
	}
	if err != nil {
		return Import{}, err
	}
	return imp, nil
}

// GetProducts returns the batch items in document order.
func (r *Repository) GetProducts(ctx context.Context, importID uuid.UUID) ([]nfe.Product, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+productColumns+`
		FROM import_products WHERE import_id = $1 ORDER BY position`, importID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []nfe.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// GetProduct fetches a single item by code.
func (r *Repository) GetProduct(ctx context.Context, importID uuid.UUID, code string) (nfe.Product, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM import_products WHERE import_id = $1 AND code = $2
		ORDER BY position LIMIT 1`, importID, code)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nfe.Product{}, ErrProductNotFound
	}
	if err != nil {
		return nfe.Product{}, err
	}
	return p, nil
}

// UpdateProduct overwrites the mutable fields of an item. Codes can repeat
// within a batch, so the update is pinned to the first occurrence, the same
// row GetProduct resolves.
func (r *Repository) UpdateProduct(ctx context.Context, importID uuid.UUID, p nfe.Product) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE import_products SET
			ean = $3, name = $4, ncm = $5, cfop = $6, uom = $7, reference = $8,
			quantity = $9, unit_price = $10, total_price = $11, discount = $12,
			net_price = $13, color = $14, size = $15, brand = $16,
			brand_confidence = $17, use_markup = $18, markup = $19, sale_price = $20
		WHERE import_id = $1 AND code = $2 AND position = (
			SELECT MIN(position) FROM import_products
			WHERE import_id = $1 AND code = $2)`,
		importID, p.Code,
		p.EAN, p.Name, p.NCM, p.CFOP, p.UOM, p.Reference,
		p.Quantity, p.UnitPrice, p.TotalPrice, p.Discount,
		p.NetPrice, p.Color, p.Size, p.Brand,
		p.BrandConfidence, p.UseMarkup, p.Markup, p.SalePrice)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func scanProduct(row pgx.Row) (nfe.Product, error) {
	var p nfe.Product
	err := row.Scan(&p.Code, &p.EAN, &p.Name, &p.NCM, &p.CFOP, &p.UOM, &p.Reference,
		&p.Quantity, &p.UnitPrice, &p.TotalPrice, &p.Discount, &p.NetPrice,
		&p.Color, &p.Size, &p.Brand, &p.BrandConfidence, &p.ICMSCST, &p.ICMSOrigin,
		&p.UseMarkup, &p.Markup, &p.SalePrice)
	return p, err
}

// SettingsRepository stores the single pricing-settings snapshot row.
type SettingsRepository struct {
	pool     *pgxpool.Pool
	defaults pricing.Config
}

// NewSettingsRepository constructs SettingsRepository. The defaults seed
// the snapshot until the first explicit save.
func NewSettingsRepository(pool *pgxpool.Pool, defaults pricing.Config) *SettingsRepository {
	return &SettingsRepository{pool: pool, defaults: defaults}
}

// Get returns the current snapshot, or the configured defaults at revision
// zero when none was saved yet.
func (r *SettingsRepository) Get(ctx context.Context) (Settings, error) {
	var s Settings
	var policy string
	err := r.pool.QueryRow(ctx, `
		SELECT revision, channel_a_markup, channel_b_markup, rounding_policy, hidden_codes, updated_at
		FROM pricing_settings WHERE id = 1`).
		Scan(&s.Revision, &s.Pricing.ChannelAMarkup, &s.Pricing.ChannelBMarkup,
			&policy, &s.HiddenCodes, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Settings{Pricing: r.defaults}, nil
	}
	if err != nil {
		return Settings{}, err
	}
	s.Pricing.Rounding = pricing.ParsePolicy(policy)
	return s, nil
}

// Save upserts the snapshot, bumping the revision.
func (r *SettingsRepository) Save(ctx context.Context, s Settings) (Settings, error) {
	s.UpdatedAt = time.Now().UTC()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO pricing_settings (id, revision, channel_a_markup, channel_b_markup, rounding_policy, hidden_codes, updated_at)
		VALUES (1, 1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			revision = pricing_settings.revision + 1,
			channel_a_markup = EXCLUDED.channel_a_markup,
			channel_b_markup = EXCLUDED.channel_b_markup,
			rounding_policy = EXCLUDED.rounding_policy,
			hidden_codes = EXCLUDED.hidden_codes,
			updated_at = EXCLUDED.updated_at
		RETURNING revision`,
		s.Pricing.ChannelAMarkup, s.Pricing.ChannelBMarkup, string(s.Pricing.Rounding),
		s.HiddenCodes, s.UpdatedAt).Scan(&s.Revision)
	if err != nil {
		return Settings{}, err
	}
	return s, nil
}
