package procurement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alsubhan/versal/internal/platform/db"
)

// Repository persists procurement documents in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txRepository struct {
	q queryer
}

// WithTx runs fn inside one transaction; writes go through the TxRepository.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{q: tx})
	})
}

const purchaseOrderColumns = `
	id,
	order_number,
	supplier_id,
	status,
	order_date,
	expected_date,
	subtotal,
	discount_amount,
	tax_amount,
	rounding_adjustment,
	total_amount,
	COALESCE(notes, ''),
	COALESCE(created_by, '00000000-0000-0000-0000-000000000000'::uuid),
	created_at,
	updated_at`

func (r *Repository) GetPurchaseOrder(ctx context.Context, id uuid.UUID) (PurchaseOrder, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+purchaseOrderColumns+`
		FROM purchase_orders
		WHERE id = $1
	`, id)
	po, err := scanPurchaseOrder(row)
	if err != nil {
		return PurchaseOrder{}, err
	}
	items, err := r.listPurchaseOrderItems(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Items = items
	return po, nil
}

func (r *Repository) ListPurchaseOrders(ctx context.Context) ([]PurchaseOrder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+purchaseOrderColumns+`
		FROM purchase_orders
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("procurement: list purchase orders: %w", err)
	}
	defer rows.Close()

	orders := []PurchaseOrder{}
	for rows.Next() {
		po, err := scanPurchaseOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, po)
	}
	return orders, rows.Err()
}

func (r *Repository) listPurchaseOrderItems(ctx context.Context, poID uuid.UUID) ([]PurchaseOrderItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, purchase_order_id, product_id, quantity, received_quantity,
		       unit_cost, discount, tax_type, tax_amount, total
		FROM purchase_order_items
		WHERE purchase_order_id = $1
		ORDER BY created_at
	`, poID)
	if err != nil {
		return nil, fmt.Errorf("procurement: list order items: %w", err)
	}
	defer rows.Close()

	items := []PurchaseOrderItem{}
	for rows.Next() {
		var item PurchaseOrderItem
		if err := rows.Scan(
			&item.ID, &item.PurchaseOrderID, &item.ProductID, &item.Quantity, &item.ReceivedQuantity,
			&item.UnitCost, &item.Discount, &item.TaxType, &item.TaxAmount, &item.Total,
		); err != nil {
			return nil, fmt.Errorf("procurement: scan order item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

const goodsReceiptColumns = `
	id,
	grn_number,
	purchase_order_id,
	supplier_id,
	status,
	received_date,
	COALESCE(vendor_invoice_number, ''),
	subtotal,
	discount_amount,
	tax_amount,
	rounding_adjustment,
	total_amount,
	COALESCE(notes, ''),
	COALESCE(created_by, '00000000-0000-0000-0000-000000000000'::uuid),
	created_at,
	updated_at`

func (r *Repository) GetGoodsReceipt(ctx context.Context, id uuid.UUID) (GoodsReceipt, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+goodsReceiptColumns+`
		FROM good_receive_notes
		WHERE id = $1
	`, id)
	grn, err := scanGoodsReceipt(row)
	if err != nil {
		return GoodsReceipt{}, err
	}
	items, err := r.listGoodsReceiptItems(ctx, id)
	if err != nil {
		return GoodsReceipt{}, err
	}
	grn.Items = items
	return grn, nil
}

func (r *Repository) ListGoodsReceipts(ctx context.Context, poID uuid.UUID) ([]GoodsReceipt, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+goodsReceiptColumns+`
		FROM good_receive_notes
		WHERE ($1::uuid IS NULL OR purchase_order_id = $1)
		ORDER BY created_at DESC
	`, nullUUID(poID))
	if err != nil {
		return nil, fmt.Errorf("procurement: list goods receipts: %w", err)
	}
	defer rows.Close()

	receipts := []GoodsReceipt{}
	for rows.Next() {
		grn, err := scanGoodsReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, grn)
	}
	return receipts, rows.Err()
}

func (r *Repository) listGoodsReceiptItems(ctx context.Context, grnID uuid.UUID) ([]GoodsReceiptItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+goodsReceiptItemColumns+`
		FROM good_receive_note_items
		WHERE grn_id = $1
		ORDER BY created_at
	`, grnID)
	if err != nil {
		return nil, fmt.Errorf("procurement: list receipt items: %w", err)
	}
	defer rows.Close()
	return collectGoodsReceiptItems(rows)
}

// ListCompletedReceiptItems returns every line of every completed receipt
// against the purchase order, for reconciliation.
func (r *Repository) ListCompletedReceiptItems(ctx context.Context, poID uuid.UUID) ([]GoodsReceiptItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+prefixedGoodsReceiptItemColumns("i")+`
		FROM good_receive_note_items i
		JOIN good_receive_notes g ON g.id = i.grn_id
		WHERE g.purchase_order_id = $1 AND g.status = 'completed'
	`, poID)
	if err != nil {
		return nil, fmt.Errorf("procurement: list completed receipt items: %w", err)
	}
	defer rows.Close()
	return collectGoodsReceiptItems(rows)
}

func (t *txRepository) InsertPurchaseOrder(ctx context.Context, po *PurchaseOrder) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO purchase_orders (
			id, order_number, supplier_id, status, order_date, expected_date,
			subtotal, discount_amount, tax_amount, rounding_adjustment, total_amount,
			notes, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
	`, po.ID, po.OrderNumber, po.SupplierID, po.Status, po.OrderDate, po.ExpectedDate,
		po.Subtotal, po.DiscountAmount, po.TaxAmount, po.RoundingAdjustment, po.TotalAmount,
		nullString(po.Notes), nullUUID(po.CreatedBy))
	return mapWriteError("insert purchase order", err)
}

func (t *txRepository) InsertPurchaseOrderItems(ctx context.Context, items []PurchaseOrderItem) error {
	for _, item := range items {
		_, err := t.q.Exec(ctx, `
			INSERT INTO purchase_order_items (
				id, purchase_order_id, product_id, quantity, received_quantity,
				unit_cost, discount, tax_type, tax_amount, total, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		`, item.ID, item.PurchaseOrderID, item.ProductID, item.Quantity, item.ReceivedQuantity,
			item.UnitCost, item.Discount, item.TaxType, item.TaxAmount, item.Total)
		if err != nil {
			return mapWriteError("insert purchase order item", err)
		}
	}
	return nil
}

func (t *txRepository) UpdatePurchaseOrder(ctx context.Context, po *PurchaseOrder) error {
	_, err := t.q.Exec(ctx, `
		UPDATE purchase_orders
		SET order_number = $2, supplier_id = $3, status = $4, order_date = $5,
		    expected_date = $6, subtotal = $7, discount_amount = $8, tax_amount = $9,
		    rounding_adjustment = $10, total_amount = $11, notes = $12, updated_at = NOW()
		WHERE id = $1
	`, po.ID, po.OrderNumber, po.SupplierID, po.Status, po.OrderDate, po.ExpectedDate,
		po.Subtotal, po.DiscountAmount, po.TaxAmount, po.RoundingAdjustment, po.TotalAmount,
		nullString(po.Notes))
	return mapWriteError("update purchase order", err)
}

func (t *txRepository) DeletePurchaseOrderItems(ctx context.Context, poID uuid.UUID) error {
	_, err := t.q.Exec(ctx, `DELETE FROM purchase_order_items WHERE purchase_order_id = $1`, poID)
	return mapWriteError("delete purchase order items", err)
}

func (t *txRepository) DeletePurchaseOrder(ctx context.Context, poID uuid.UUID) error {
	_, err := t.q.Exec(ctx, `DELETE FROM purchase_orders WHERE id = $1`, poID)
	return mapWriteError("delete purchase order", err)
}

func (t *txRepository) SetPurchaseOrderStatus(ctx context.Context, poID uuid.UUID, status POStatus) error {
	_, err := t.q.Exec(ctx, `UPDATE purchase_orders SET status = $2, updated_at = NOW() WHERE id = $1`, poID, status)
	return mapWriteError("set purchase order status", err)
}

func (t *txRepository) SetPurchaseOrderItemReceived(ctx context.Context, itemID uuid.UUID, received int) error {
	_, err := t.q.Exec(ctx, `UPDATE purchase_order_items SET received_quantity = $2 WHERE id = $1`, itemID, received)
	return mapWriteError("set received quantity", err)
}

func (t *txRepository) InsertGoodsReceipt(ctx context.Context, grn *GoodsReceipt) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO good_receive_notes (
			id, grn_number, purchase_order_id, supplier_id, status, received_date,
			vendor_invoice_number, subtotal, discount_amount, tax_amount,
			rounding_adjustment, total_amount, notes, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
	`, grn.ID, grn.GRNNumber, grn.PurchaseOrderID, grn.SupplierID, grn.Status, grn.ReceivedDate,
		nullString(grn.VendorInvoiceNumber), grn.Subtotal, grn.DiscountAmount, grn.TaxAmount,
		grn.RoundingAdjustment, grn.TotalAmount, nullString(grn.Notes), nullUUID(grn.CreatedBy))
	return mapWriteError("insert goods receipt", err)
}

func (t *txRepository) InsertGoodsReceiptItems(ctx context.Context, items []GoodsReceiptItem) error {
	for _, item := range items {
		_, err := t.q.Exec(ctx, `
			INSERT INTO good_receive_note_items (
				id, grn_id, purchase_order_item_id, product_id,
				ordered_quantity, received_quantity, accepted_quantity, rejected_quantity,
				unit_cost, discount, tax_type, tax_amount, total, serial_numbers, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
		`, item.ID, item.GoodsReceiptID, nullUUID(item.PurchaseOrderItemID), item.ProductID,
			item.OrderedQuantity, item.ReceivedQuantity, item.AcceptedQuantity, item.RejectedQuantity,
			item.UnitCost, item.Discount, item.TaxType, item.TaxAmount, item.Total, item.SerialNumbers)
		if err != nil {
			return mapWriteError("insert goods receipt item", err)
		}
	}
	return nil
}

func (t *txRepository) UpdateGoodsReceipt(ctx context.Context, grn *GoodsReceipt) error {
	_, err := t.q.Exec(ctx, `
		UPDATE good_receive_notes
		SET status = $2, received_date = $3, vendor_invoice_number = $4, subtotal = $5,
		    discount_amount = $6, tax_amount = $7, rounding_adjustment = $8,
		    total_amount = $9, notes = $10, updated_at = NOW()
		WHERE id = $1
	`, grn.ID, grn.Status, grn.ReceivedDate, nullString(grn.VendorInvoiceNumber), grn.Subtotal,
		grn.DiscountAmount, grn.TaxAmount, grn.RoundingAdjustment, grn.TotalAmount, nullString(grn.Notes))
	return mapWriteError("update goods receipt", err)
}

func (t *txRepository) DeleteGoodsReceiptItems(ctx context.Context, grnID uuid.UUID) error {
	_, err := t.q.Exec(ctx, `DELETE FROM good_receive_note_items WHERE grn_id = $1`, grnID)
	return mapWriteError("delete goods receipt items", err)
}

func (t *txRepository) DeleteGoodsReceipt(ctx context.Context, grnID uuid.UUID) error {
	_, err := t.q.Exec(ctx, `DELETE FROM good_receive_notes WHERE id = $1`, grnID)
	return mapWriteError("delete goods receipt", err)
}

const goodsReceiptItemColumns = `
	id, grn_id, COALESCE(purchase_order_item_id, '00000000-0000-0000-0000-000000000000'::uuid), product_id,
	ordered_quantity, received_quantity, accepted_quantity, rejected_quantity,
	unit_cost, discount, tax_type, tax_amount, total, COALESCE(serial_numbers, '{}')`

func prefixedGoodsReceiptItemColumns(alias string) string {
	return fmt.Sprintf(`
	%[1]s.id, %[1]s.grn_id, COALESCE(%[1]s.purchase_order_item_id, '00000000-0000-0000-0000-000000000000'::uuid), %[1]s.product_id,
	%[1]s.ordered_quantity, %[1]s.received_quantity, %[1]s.accepted_quantity, %[1]s.rejected_quantity,
	%[1]s.unit_cost, %[1]s.discount, %[1]s.tax_type, %[1]s.tax_amount, %[1]s.total, COALESCE(%[1]s.serial_numbers, '{}')`, alias)
}

func collectGoodsReceiptItems(rows pgx.Rows) ([]GoodsReceiptItem, error) {
	items := []GoodsReceiptItem{}
	for rows.Next() {
		var item GoodsReceiptItem
		if err := rows.Scan(
			&item.ID, &item.GoodsReceiptID, &item.PurchaseOrderItemID, &item.ProductID,
			&item.OrderedQuantity, &item.ReceivedQuantity, &item.AcceptedQuantity, &item.RejectedQuantity,
			&item.UnitCost, &item.Discount, &item.TaxType, &item.TaxAmount, &item.Total, &item.SerialNumbers,
		); err != nil {
			return nil, fmt.Errorf("procurement: scan receipt item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanPurchaseOrder(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(
		&po.ID, &po.OrderNumber, &po.SupplierID, &po.Status, &po.OrderDate, &po.ExpectedDate,
		&po.Subtotal, &po.DiscountAmount, &po.TaxAmount, &po.RoundingAdjustment, &po.TotalAmount,
		&po.Notes, &po.CreatedBy, &po.CreatedAt, &po.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, ErrNotFound
	}
	if err != nil {
		return PurchaseOrder{}, fmt.Errorf("procurement: scan purchase order: %w", err)
	}
	return po, nil
}

func scanGoodsReceipt(row pgx.Row) (GoodsReceipt, error) {
	var grn GoodsReceipt
	err := row.Scan(
		&grn.ID, &grn.GRNNumber, &grn.PurchaseOrderID, &grn.SupplierID, &grn.Status, &grn.ReceivedDate,
		&grn.VendorInvoiceNumber, &grn.Subtotal, &grn.DiscountAmount, &grn.TaxAmount,
		&grn.RoundingAdjustment, &grn.TotalAmount, &grn.Notes, &grn.CreatedBy, &grn.CreatedAt, &grn.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return GoodsReceipt{}, ErrNotFound
	}
	if err != nil {
		return GoodsReceipt{}, fmt.Errorf("procurement: scan goods receipt: %w", err)
	}
	return grn, nil
}

func mapWriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return fmt.Errorf("procurement: %s: %w", op, err)
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
