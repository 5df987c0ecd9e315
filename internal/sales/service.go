package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alsubhan/versal/internal/masterdata/products"
	"github.com/alsubhan/versal/internal/pricing"
	"github.com/alsubhan/versal/internal/serials"
	"github.com/alsubhan/versal/internal/shared"
)

// TxRepository is the write surface available inside a transaction.
type TxRepository interface {
	InsertInvoice(ctx context.Context, inv *Invoice) error
	InsertInvoiceItems(ctx context.Context, items []InvoiceItem) error
	UpdateInvoice(ctx context.Context, inv *Invoice) error
	DeleteInvoiceItems(ctx context.Context, invoiceID uuid.UUID) error
	DeleteInvoice(ctx context.Context, invoiceID uuid.UUID) error
}

// RepositoryPort abstracts sales persistence.
type RepositoryPort interface {
	GetInvoice(ctx context.Context, id uuid.UUID) (Invoice, error)
	ListInvoices(ctx context.Context) ([]Invoice, error)
	MarkOverdue(ctx context.Context, asOf time.Time) (int, error)
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
}

// CatalogPort exposes product and tax lookups.
type CatalogPort interface {
	Get(ctx context.Context, id uuid.UUID) (products.Product, error)
	SaleTax(ctx context.Context, id uuid.UUID) (pricing.TaxType, float64, error)
}

// SerialPort binds and releases serialized units for invoice lines.
type SerialPort interface {
	ValidateForOperation(ctx context.Context, productID uuid.UUID, serialNumbers []string, operation serials.Operation, heldClaims map[uuid.UUID]bool) ([]string, error)
	Claim(ctx context.Context, productID uuid.UUID, serialNumbers []string, claimRef uuid.UUID, finalize bool, actor uuid.UUID) (serials.ClaimResult, error)
	ReleaseClaim(ctx context.Context, claimRef uuid.UUID, actor uuid.UUID) ([]serials.Unit, error)
}

// IdempotencyPort guards against duplicate invoice posting.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service implements sale invoice operations.
type Service struct {
	repo        RepositoryPort
	catalog     CatalogPort
	serials     SerialPort
	idempotency IdempotencyPort
	logger      *slog.Logger
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, catalog CatalogPort, serials SerialPort, idempotency IdempotencyPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, catalog: catalog, serials: serials, idempotency: idempotency, logger: logger}
}

// InvoiceItemInput is a client-supplied invoice line.
type InvoiceItemInput struct {
	ProductID     uuid.UUID
	Quantity      int
	UnitPrice     float64
	Discount      float64
	SerialNumbers []string
}

// InvoiceInput is a client-supplied invoice.
type InvoiceInput struct {
	InvoiceNumber      string
	CustomerID         uuid.UUID
	Status             InvoiceStatus
	InvoiceDate        time.Time
	DueDate            time.Time
	RoundingAdjustment float64
	Notes              string
	Items              []InvoiceItemInput
}

// InvoiceResult carries the persisted invoice plus non-fatal warnings from
// serial binding.
type InvoiceResult struct {
	Invoice  Invoice
	Warnings []string
}

// CreateInvoice persists a new invoice. Serialized lines are validated in
// full before anything is written; units are claimed after the invoice
// commits, reserved for draft-like statuses and sold when the invoice goes
// out as sent.
func (s *Service) CreateInvoice(ctx context.Context, input InvoiceInput, actor uuid.UUID) (InvoiceResult, error) {
	status, err := s.normalizeStatus(input.Status, InvoiceStatusDraft)
	if err != nil {
		return InvoiceResult{}, err
	}
	number := strings.TrimSpace(input.InvoiceNumber)
	if number == "" {
		return InvoiceResult{}, fmt.Errorf("%w: invoice number is required", ErrInvalidInput)
	}
	if input.CustomerID == uuid.Nil {
		return InvoiceResult{}, fmt.Errorf("%w: customer is required", ErrInvalidInput)
	}
	if len(input.Items) == 0 {
		return InvoiceResult{}, fmt.Errorf("%w: at least one line is required", ErrInvalidInput)
	}
	if err := s.validateSerialLines(ctx, input.Items, status, nil); err != nil {
		return InvoiceResult{}, err
	}

	idemKey := "invoice:" + number
	if err := s.idempotency.CheckAndInsert(ctx, idemKey, "sales"); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			return InvoiceResult{}, fmt.Errorf("%w: invoice %s was already posted", ErrDuplicate, number)
		}
		return InvoiceResult{}, err
	}

	inv := Invoice{
		ID:                 uuid.New(),
		InvoiceNumber:      number,
		CustomerID:         input.CustomerID,
		Status:             status,
		InvoiceDate:        input.InvoiceDate,
		DueDate:            input.DueDate,
		RoundingAdjustment: input.RoundingAdjustment,
		Notes:              input.Notes,
		CreatedBy:          actor,
	}
	if err := s.priceInvoice(ctx, &inv, input.Items); err != nil {
		_ = s.idempotency.Delete(ctx, idemKey)
		return InvoiceResult{}, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertInvoice(ctx, &inv); err != nil {
			return err
		}
		return tx.InsertInvoiceItems(ctx, inv.Items)
	})
	if err != nil {
		_ = s.idempotency.Delete(ctx, idemKey)
		return InvoiceResult{}, err
	}

	warnings, err := s.claimSerialLines(ctx, inv.Items, status.Finalized(), actor)
	if err != nil {
		return InvoiceResult{Invoice: inv, Warnings: warnings}, err
	}
	return InvoiceResult{Invoice: inv, Warnings: warnings}, nil
}

// UpdateInvoice replaces the invoice head and lines. The new payload is
// validated before anything changes hands; units reserved under the old lines
// count as claimable during that check, then the superseded reservations are
// released so they do not leak. Sold units stay sold.
func (s *Service) UpdateInvoice(ctx context.Context, id uuid.UUID, input InvoiceInput, actor uuid.UUID) (InvoiceResult, error) {
	existing, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return InvoiceResult{}, err
	}
	if !existing.Status.Editable() {
		return InvoiceResult{}, fmt.Errorf("%w: invoice in status %s cannot be edited", ErrInvalidState, existing.Status)
	}
	status, err := s.normalizeStatus(input.Status, existing.Status)
	if err != nil {
		return InvoiceResult{}, err
	}
	if len(input.Items) == 0 {
		return InvoiceResult{}, fmt.Errorf("%w: at least one line is required", ErrInvalidInput)
	}

	held := make(map[uuid.UUID]bool, len(existing.Items))
	for _, item := range existing.Items {
		held[item.ID] = true
	}
	if err := s.validateSerialLines(ctx, input.Items, status, held); err != nil {
		return InvoiceResult{}, err
	}

	inv := existing
	inv.InvoiceNumber = strings.TrimSpace(input.InvoiceNumber)
	if inv.InvoiceNumber == "" {
		inv.InvoiceNumber = existing.InvoiceNumber
	}
	inv.CustomerID = input.CustomerID
	if inv.CustomerID == uuid.Nil {
		inv.CustomerID = existing.CustomerID
	}
	inv.Status = status
	inv.InvoiceDate = input.InvoiceDate
	inv.DueDate = input.DueDate
	inv.RoundingAdjustment = input.RoundingAdjustment
	inv.Notes = input.Notes
	if err := s.priceInvoice(ctx, &inv, input.Items); err != nil {
		return InvoiceResult{}, err
	}

	for _, item := range existing.Items {
		if _, err := s.serials.ReleaseClaim(ctx, item.ID, actor); err != nil {
			return InvoiceResult{}, err
		}
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateInvoice(ctx, &inv); err != nil {
			return err
		}
		if err := tx.DeleteInvoiceItems(ctx, inv.ID); err != nil {
			return err
		}
		return tx.InsertInvoiceItems(ctx, inv.Items)
	})
	if err != nil {
		return InvoiceResult{}, err
	}

	warnings, err := s.claimSerialLines(ctx, inv.Items, status.Finalized(), actor)
	return InvoiceResult{Invoice: inv, Warnings: warnings}, err
}

// DeleteInvoice removes a draft invoice, releasing any units its lines still
// hold.
func (s *Service) DeleteInvoice(ctx context.Context, id uuid.UUID, actor uuid.UUID) error {
	existing, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return err
	}
	if existing.Status != InvoiceStatusDraft {
		return fmt.Errorf("%w: only draft invoices can be deleted", ErrInvalidState)
	}
	for _, item := range existing.Items {
		if _, err := s.serials.ReleaseClaim(ctx, item.ID, actor); err != nil {
			return err
		}
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeleteInvoiceItems(ctx, id); err != nil {
			return err
		}
		return tx.DeleteInvoice(ctx, id)
	})
}

// GetInvoice loads one invoice with its lines.
func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// ListInvoices lists invoices without lines.
func (s *Service) ListInvoices(ctx context.Context) ([]Invoice, error) {
	return s.repo.ListInvoices(ctx)
}

// ScanOverdue marks sent and partial invoices whose due date passed as
// overdue and returns how many flipped. Run from the scheduler.
func (s *Service) ScanOverdue(ctx context.Context, asOf time.Time) (int, error) {
	count, err := s.repo.MarkOverdue(ctx, asOf)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.Info("invoices marked overdue", "count", count, "as_of", asOf)
	}
	return count, nil
}

func (s *Service) normalizeStatus(status, fallback InvoiceStatus) (InvoiceStatus, error) {
	if status == "" {
		return fallback, nil
	}
	if status == InvoiceStatusOverdue {
		return "", fmt.Errorf("%w: status overdue is set by the overdue scan and cannot be set directly", ErrInvalidInput)
	}
	if !status.Valid() {
		return "", fmt.Errorf("%w: unknown invoice status %q", ErrInvalidInput, status)
	}
	return status, nil
}

// validateSerialLines checks every serialized line before any write: the
// serial count must equal the quantity and every unit must be claimable for
// the intended operation. On an edit, heldClaims carries the invoice's own
// item ids so its current reservations stay claimable.
func (s *Service) validateSerialLines(ctx context.Context, items []InvoiceItemInput, status InvoiceStatus, heldClaims map[uuid.UUID]bool) error {
	operation := serials.OperationReserve
	if status.Finalized() {
		operation = serials.OperationSell
	}
	for _, item := range items {
		if item.ProductID == uuid.Nil || item.Quantity <= 0 {
			return fmt.Errorf("%w: each line needs a product and a positive quantity", ErrInvalidInput)
		}
		product, err := s.catalog.Get(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, products.ErrNotFound) {
				return fmt.Errorf("%w: product %s", ErrNotFound, item.ProductID)
			}
			return err
		}
		normalized := serials.NormalizeSerialNumbers(item.SerialNumbers)
		if !product.IsSerialized {
			if len(normalized) > 0 {
				return fmt.Errorf("%w: product %s is not serialized but serial numbers were provided", ErrInvalidInput, product.Name)
			}
			continue
		}
		if len(normalized) != item.Quantity {
			return fmt.Errorf("%w: product %s: %d serial numbers for quantity %d", ErrInvalidInput, product.Name, len(normalized), item.Quantity)
		}
		if _, err := s.serials.ValidateForOperation(ctx, item.ProductID, normalized, operation, heldClaims); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) priceInvoice(ctx context.Context, inv *Invoice, inputs []InvoiceItemInput) error {
	inv.Items = inv.Items[:0]
	lines := make([]pricing.LineInput, 0, len(inputs))
	for _, in := range inputs {
		taxType, taxRate, err := s.catalog.SaleTax(ctx, in.ProductID)
		if err != nil {
			if errors.Is(err, products.ErrNotFound) {
				return fmt.Errorf("%w: product %s", ErrNotFound, in.ProductID)
			}
			return err
		}
		line := pricing.LineInput{
			Quantity:  float64(in.Quantity),
			UnitPrice: in.UnitPrice,
			Discount:  in.Discount,
			TaxType:   taxType,
			TaxRate:   taxRate,
		}
		totals := pricing.ComputeLine(line)
		lines = append(lines, line)
		inv.Items = append(inv.Items, InvoiceItem{
			ID:            uuid.New(),
			SaleInvoiceID: inv.ID,
			ProductID:     in.ProductID,
			Quantity:      in.Quantity,
			UnitPrice:     in.UnitPrice,
			Discount:      in.Discount,
			TaxType:       taxType,
			TaxAmount:     totals.Tax,
			Total:         totals.Total,
			SerialNumbers: serials.NormalizeSerialNumbers(in.SerialNumbers),
		})
	}
	doc := pricing.ComputeDocument(lines, inv.RoundingAdjustment)
	inv.Subtotal = doc.Subtotal
	inv.DiscountAmount = doc.DiscountAmount
	inv.TaxAmount = doc.TaxAmount
	inv.TotalAmount = doc.TotalAmount
	return nil
}

func (s *Service) claimSerialLines(ctx context.Context, items []InvoiceItem, finalize bool, actor uuid.UUID) ([]string, error) {
	var warnings []string
	for _, item := range items {
		if len(item.SerialNumbers) == 0 {
			continue
		}
		result, err := s.serials.Claim(ctx, item.ProductID, item.SerialNumbers, item.ID, finalize, actor)
		warnings = append(warnings, result.Warnings...)
		if err != nil {
			return warnings, err
		}
	}
	return warnings, nil
}
