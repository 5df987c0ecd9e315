package products

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads catalog data from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `id, name, COALESCE(sku_code, ''), COALESCE(hsn_code, ''), COALESCE(ean_code, ''),
COALESCE(is_serialized, FALSE), COALESCE(unit_price, 0), COALESCE(cost_price, 0),
COALESCE(purchase_tax_type, 'exclusive'), COALESCE(purchase_tax_id, '00000000-0000-0000-0000-000000000000'),
COALESCE(sale_tax_type, 'exclusive'), COALESCE(sale_tax_id, '00000000-0000-0000-0000-000000000000'),
created_at, updated_at`

func (r *Repository) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return product, nil
}

func (r *Repository) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, product)
	}
	return out, rows.Err()
}

func (r *Repository) GetTax(ctx context.Context, id uuid.UUID) (Tax, error) {
	var tax Tax
	err := r.pool.QueryRow(ctx, `SELECT id, name, COALESCE(rate, 0) FROM taxes WHERE id=$1`, id).
		Scan(&tax.ID, &tax.Name, &tax.Rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tax{}, ErrNotFound
		}
		return Tax{}, err
	}
	return tax, nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.SKUCode, &p.HSNCode, &p.EANCode,
		&p.IsSerialized, &p.UnitPrice, &p.CostPrice,
		&p.PurchaseTaxType, &p.PurchaseTaxID,
		&p.SaleTaxType, &p.SaleTaxID,
		&p.CreatedAt, &p.UpdatedAt)
	return p, err
}
