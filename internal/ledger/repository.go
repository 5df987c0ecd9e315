package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists ledger entries in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, entry Entry) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO inventory_transactions (product_id, transaction_type, quantity_change, reference_type, reference_id, notes, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())`,
		entry.ProductID, string(entry.Type), entry.QuantityChange, string(entry.ReferenceType), nullUUID(entry.ReferenceID), entry.Notes, nullUUID(entry.CreatedBy))
	return err
}

func (r *Repository) List(ctx context.Context, filter Filter) ([]Entry, error) {
	if r == nil {
		return nil, errors.New("ledger repository not initialised")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, transaction_type, quantity_change, reference_type, COALESCE(reference_id, '00000000-0000-0000-0000-000000000000'), COALESCE(notes, ''), COALESCE(created_by, '00000000-0000-0000-0000-000000000000'), created_at
FROM inventory_transactions
WHERE ($1::uuid IS NULL OR product_id = $1)
  AND ($2::text IS NULL OR transaction_type = $2)
  AND ($3::uuid IS NULL OR reference_id = $3)
ORDER BY created_at DESC, id DESC
LIMIT $4`, nullUUID(filter.ProductID), nullString(string(filter.Type)), nullUUID(filter.ReferenceID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ProductID, &e.Type, &e.QuantityChange, &e.ReferenceType, &e.ReferenceID, &e.Notes, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func nullUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
