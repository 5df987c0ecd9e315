package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alsubhan/versal/internal/platform/db"
)

// Repository persists sale invoices in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type txRepository struct {
	q queryer
}

// WithTx runs fn inside one transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{q: tx})
	})
}

const invoiceColumns = `
	id,
	invoice_number,
	customer_id,
	status,
	invoice_date,
	due_date,
	subtotal,
	discount_amount,
	tax_amount,
	rounding_adjustment,
	total_amount,
	COALESCE(notes, ''),
	COALESCE(created_by, '00000000-0000-0000-0000-000000000000'::uuid),
	created_at,
	updated_at`

func (r *Repository) GetInvoice(ctx context.Context, id uuid.UUID) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+invoiceColumns+`
		FROM sale_invoices
		WHERE id = $1
	`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		return Invoice{}, err
	}
	items, err := r.listInvoiceItems(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	inv.Items = items
	return inv, nil
}

func (r *Repository) ListInvoices(ctx context.Context) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM sale_invoices
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("sales: list invoices: %w", err)
	}
	defer rows.Close()

	invoices := []Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (r *Repository) listInvoiceItems(ctx context.Context, invoiceID uuid.UUID) ([]InvoiceItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, sale_invoice_id, product_id, quantity, unit_price, discount,
		       tax_type, tax_amount, total, COALESCE(serial_numbers, '{}')
		FROM sale_invoice_items
		WHERE sale_invoice_id = $1
		ORDER BY created_at
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("sales: list invoice items: %w", err)
	}
	defer rows.Close()

	items := []InvoiceItem{}
	for rows.Next() {
		var item InvoiceItem
		if err := rows.Scan(
			&item.ID, &item.SaleInvoiceID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.Discount,
			&item.TaxType, &item.TaxAmount, &item.Total, &item.SerialNumbers,
		); err != nil {
			return nil, fmt.Errorf("sales: scan invoice item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// MarkOverdue flips sent and partial invoices past their due date to overdue
// in one statement.
func (r *Repository) MarkOverdue(ctx context.Context, asOf time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sale_invoices
		SET status = 'overdue', updated_at = NOW()
		WHERE status IN ('sent', 'partial')
		  AND due_date < $1
	`, asOf)
	if err != nil {
		return 0, fmt.Errorf("sales: mark overdue: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (t *txRepository) InsertInvoice(ctx context.Context, inv *Invoice) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO sale_invoices (
			id, invoice_number, customer_id, status, invoice_date, due_date,
			subtotal, discount_amount, tax_amount, rounding_adjustment, total_amount,
			notes, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
	`, inv.ID, inv.InvoiceNumber, inv.CustomerID, inv.Status, inv.InvoiceDate, inv.DueDate,
		inv.Subtotal, inv.DiscountAmount, inv.TaxAmount, inv.RoundingAdjustment, inv.TotalAmount,
		nullString(inv.Notes), nullUUID(inv.CreatedBy))
	return mapWriteError("insert invoice", err)
}

func (t *txRepository) InsertInvoiceItems(ctx context.Context, items []InvoiceItem) error {
	for _, item := range items {
		_, err := t.q.Exec(ctx, `
			INSERT INTO sale_invoice_items (
				id, sale_invoice_id, product_id, quantity, unit_price, discount,
				tax_type, tax_amount, total, serial_numbers, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		`, item.ID, item.SaleInvoiceID, item.ProductID, item.Quantity, item.UnitPrice, item.Discount,
			item.TaxType, item.TaxAmount, item.Total, item.SerialNumbers)
		if err != nil {
			return mapWriteError("insert invoice item", err)
		}
	}
	return nil
}

func (t *txRepository) UpdateInvoice(ctx context.Context, inv *Invoice) error {
	_, err := t.q.Exec(ctx, `
		UPDATE sale_invoices
		SET invoice_number = $2, customer_id = $3, status = $4, invoice_date = $5,
		    due_date = $6, subtotal = $7, discount_amount = $8, tax_amount = $9,
		    rounding_adjustment = $10, total_amount = $11, notes = $12, updated_at = NOW()
		WHERE id = $1
	`, inv.ID, inv.InvoiceNumber, inv.CustomerID, inv.Status, inv.InvoiceDate, inv.DueDate,
		inv.Subtotal, inv.DiscountAmount, inv.TaxAmount, inv.RoundingAdjustment, inv.TotalAmount,
		nullString(inv.Notes))
	return mapWriteError("update invoice", err)
}

func (t *txRepository) DeleteInvoiceItems(ctx context.Context, invoiceID uuid.UUID) error {
	_, err := t.q.Exec(ctx, `DELETE FROM sale_invoice_items WHERE sale_invoice_id = $1`, invoiceID)
	return mapWriteError("delete invoice items", err)
}

func (t *txRepository) DeleteInvoice(ctx context.Context, invoiceID uuid.UUID) error {
	_, err := t.q.Exec(ctx, `DELETE FROM sale_invoices WHERE id = $1`, invoiceID)
	return mapWriteError("delete invoice", err)
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.CustomerID, &inv.Status, &inv.InvoiceDate, &inv.DueDate,
		&inv.Subtotal, &inv.DiscountAmount, &inv.TaxAmount, &inv.RoundingAdjustment, &inv.TotalAmount,
		&inv.Notes, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	if err != nil {
		return Invoice{}, fmt.Errorf("sales: scan invoice: %w", err)
	}
	return inv, nil
}

func mapWriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return fmt.Errorf("sales: %s: %w", op, err)
}

func nullUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
