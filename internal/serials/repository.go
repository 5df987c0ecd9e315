package serials

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists serialized units in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const serialColumns = `
	id,
	product_id,
	serial_number,
	status,
	COALESCE(grn_item_id, '00000000-0000-0000-0000-000000000000'::uuid),
	COALESCE(sale_invoice_item_id, '00000000-0000-0000-0000-000000000000'::uuid),
	created_at,
	updated_at`

func (r *Repository) InsertBatch(ctx context.Context, units []Unit) error {
	batch := &pgx.Batch{}
	for _, unit := range units {
		batch.Queue(`
			INSERT INTO product_serials (product_id, serial_number, status, grn_item_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW(), NOW())
		`, unit.ProductID, unit.SerialNumber, unit.Status, nullUUID(unit.GRNItemID))
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range units {
		if _, err := results.Exec(); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return fmt.Errorf("%w: duplicate serial number for product", ErrInvalidInput)
			}
			return fmt.Errorf("serials: insert batch: %w", err)
		}
	}
	return nil
}

func (r *Repository) GetBySerial(ctx context.Context, productID uuid.UUID, serialNumber string) (Unit, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+serialColumns+`
		FROM product_serials
		WHERE product_id = $1 AND serial_number = $2
	`, productID, serialNumber)
	return scanUnit(row)
}

func (r *Repository) List(ctx context.Context, filter Filter) ([]Unit, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+serialColumns+`
		FROM product_serials
		WHERE ($1::uuid IS NULL OR product_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC, serial_number
		LIMIT $3
	`, nullUUID(filter.ProductID), nullStatus(filter.Status), limit)
	if err != nil {
		return nil, fmt.Errorf("serials: list: %w", err)
	}
	defer rows.Close()
	return collectUnits(rows)
}

func (r *Repository) Lookup(ctx context.Context, serialNumber string) ([]Unit, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+serialColumns+`
		FROM product_serials
		WHERE serial_number = $1
		ORDER BY created_at DESC
	`, serialNumber)
	if err != nil {
		return nil, fmt.Errorf("serials: lookup: %w", err)
	}
	defer rows.Close()
	return collectUnits(rows)
}

func (r *Repository) ListByClaim(ctx context.Context, claimID uuid.UUID) ([]Unit, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+serialColumns+`
		FROM product_serials
		WHERE sale_invoice_item_id = $1
		ORDER BY serial_number
	`, claimID)
	if err != nil {
		return nil, fmt.Errorf("serials: list by claim: %w", err)
	}
	defer rows.Close()
	return collectUnits(rows)
}

// UpdateStatus applies the transition in a single conditional statement.
// When no row satisfies the status precondition the update loses and
// ErrNotFound is returned; the service distinguishes missing from blocked.
func (r *Repository) UpdateStatus(ctx context.Context, update StatusUpdate) (Unit, error) {
	from := make([]string, 0, len(update.From))
	for _, status := range update.From {
		from = append(from, string(status))
	}

	claim := nullUUID(update.ClaimID)
	if update.ClearClaim {
		claim = nil
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE product_serials
		SET status = $1,
		    sale_invoice_item_id = CASE WHEN $2 OR $3::uuid IS NOT NULL THEN $3 ELSE sale_invoice_item_id END,
		    updated_at = NOW()
		WHERE product_id = $4
		  AND serial_number = $5
		  AND status = ANY($6)
		RETURNING `+serialColumns+`
	`, update.To, update.ClearClaim, claim, update.ProductID, update.SerialNumber, from)
	return scanUnit(row)
}

func scanUnit(row pgx.Row) (Unit, error) {
	var unit Unit
	err := row.Scan(
		&unit.ID,
		&unit.ProductID,
		&unit.SerialNumber,
		&unit.Status,
		&unit.GRNItemID,
		&unit.SaleInvoiceItemID,
		&unit.CreatedAt,
		&unit.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Unit{}, ErrNotFound
	}
	if err != nil {
		return Unit{}, fmt.Errorf("serials: scan: %w", err)
	}
	return unit, nil
}

func collectUnits(rows pgx.Rows) ([]Unit, error) {
	units := []Unit{}
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("serials: rows: %w", err)
	}
	return units, nil
}

func nullUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}

func nullStatus(status Status) any {
	if status == "" {
		return nil
	}
	return string(status)
}
