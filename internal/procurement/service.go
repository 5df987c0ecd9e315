package procurement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alsubhan/versal/internal/ledger"
	"github.com/alsubhan/versal/internal/masterdata/products"
	"github.com/alsubhan/versal/internal/pricing"
	"github.com/alsubhan/versal/internal/serials"
	"github.com/alsubhan/versal/internal/shared"
)

// TxRepository is the write surface available inside a transaction.
type TxRepository interface {
	InsertPurchaseOrder(ctx context.Context, po *PurchaseOrder) error
	InsertPurchaseOrderItems(ctx context.Context, items []PurchaseOrderItem) error
	UpdatePurchaseOrder(ctx context.Context, po *PurchaseOrder) error
	DeletePurchaseOrderItems(ctx context.Context, poID uuid.UUID) error
	DeletePurchaseOrder(ctx context.Context, poID uuid.UUID) error
	SetPurchaseOrderStatus(ctx context.Context, poID uuid.UUID, status POStatus) error
	SetPurchaseOrderItemReceived(ctx context.Context, itemID uuid.UUID, received int) error
	InsertGoodsReceipt(ctx context.Context, grn *GoodsReceipt) error
	InsertGoodsReceiptItems(ctx context.Context, items []GoodsReceiptItem) error
	UpdateGoodsReceipt(ctx context.Context, grn *GoodsReceipt) error
	DeleteGoodsReceiptItems(ctx context.Context, grnID uuid.UUID) error
	DeleteGoodsReceipt(ctx context.Context, grnID uuid.UUID) error
}

// RepositoryPort abstracts procurement persistence.
type RepositoryPort interface {
	GetPurchaseOrder(ctx context.Context, id uuid.UUID) (PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context) ([]PurchaseOrder, error)
	GetGoodsReceipt(ctx context.Context, id uuid.UUID) (GoodsReceipt, error)
	ListGoodsReceipts(ctx context.Context, poID uuid.UUID) ([]GoodsReceipt, error)
	ListCompletedReceiptItems(ctx context.Context, poID uuid.UUID) ([]GoodsReceiptItem, error)
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
}

// CatalogPort exposes product and tax lookups.
type CatalogPort interface {
	Get(ctx context.Context, id uuid.UUID) (products.Product, error)
	PurchaseTax(ctx context.Context, id uuid.UUID) (pricing.TaxType, float64, error)
}

// SerialPort registers serialized units received on a goods receipt.
type SerialPort interface {
	CreateBatch(ctx context.Context, productID uuid.UUID, serialNumbers []string, grnItemID uuid.UUID, actor uuid.UUID) (serials.BatchResult, error)
	Existing(ctx context.Context, productID uuid.UUID, serialNumbers []string) (map[string]bool, error)
}

// LedgerPort records inventory transactions best-effort.
type LedgerPort interface {
	TryRecord(ctx context.Context, entry ledger.Entry) bool
}

// IdempotencyPort guards against duplicate document posting.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service implements purchase order and goods receipt operations.
type Service struct {
	repo        RepositoryPort
	catalog     CatalogPort
	serials     SerialPort
	ledger      LedgerPort
	idempotency IdempotencyPort
	logger      *slog.Logger
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, catalog CatalogPort, serials SerialPort, ledger LedgerPort, idempotency IdempotencyPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, catalog: catalog, serials: serials, ledger: ledger, idempotency: idempotency, logger: logger}
}

// PurchaseOrderItemInput is a client-supplied ordered line.
type PurchaseOrderItemInput struct {
	ProductID uuid.UUID
	Quantity  int
	UnitCost  float64
	Discount  float64
}

// PurchaseOrderInput is a client-supplied purchase order.
type PurchaseOrderInput struct {
	OrderNumber        string
	SupplierID         uuid.UUID
	Status             POStatus
	OrderDate          time.Time
	ExpectedDate       time.Time
	RoundingAdjustment float64
	Notes              string
	Items              []PurchaseOrderItemInput
}

// GoodsReceiptItemInput is a client-supplied received line. The accepted
// quantity is never taken from the client; it is always received minus
// rejected.
type GoodsReceiptItemInput struct {
	PurchaseOrderItemID uuid.UUID
	ProductID           uuid.UUID
	OrderedQuantity     int
	ReceivedQuantity    int
	RejectedQuantity    int
	UnitCost            float64
	Discount            float64
	SerialNumbers       []string
}

func (in GoodsReceiptItemInput) accepted() int {
	return in.ReceivedQuantity - in.RejectedQuantity
}

// GoodsReceiptInput is a client-supplied goods receipt. PurchaseOrderID may
// be Nil for direct receipts.
type GoodsReceiptInput struct {
	GRNNumber           string
	PurchaseOrderID     uuid.UUID
	SupplierID          uuid.UUID
	Status              GRNStatus
	ReceivedDate        time.Time
	VendorInvoiceNumber string
	RoundingAdjustment  float64
	Notes               string
	Items               []GoodsReceiptItemInput
}

// GoodsReceiptResult carries the persisted receipt plus non-fatal warnings
// from serial registration and ledger writes.
type GoodsReceiptResult struct {
	Receipt  GoodsReceipt
	Warnings []string
}

// CreatePurchaseOrder persists a new purchase order with computed totals.
// Clients cannot create an order in received status; that status is derived
// from reconciliation.
func (s *Service) CreatePurchaseOrder(ctx context.Context, input PurchaseOrderInput, actor uuid.UUID) (PurchaseOrder, error) {
	status, err := s.normalizePOStatus(input.Status)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if strings.TrimSpace(input.OrderNumber) == "" {
		return PurchaseOrder{}, fmt.Errorf("%w: order number is required", ErrInvalidInput)
	}
	if input.SupplierID == uuid.Nil {
		return PurchaseOrder{}, fmt.Errorf("%w: supplier is required", ErrInvalidInput)
	}

	po := PurchaseOrder{
		ID:                 uuid.New(),
		OrderNumber:        strings.TrimSpace(input.OrderNumber),
		SupplierID:         input.SupplierID,
		Status:             status,
		OrderDate:          input.OrderDate,
		ExpectedDate:       input.ExpectedDate,
		RoundingAdjustment: input.RoundingAdjustment,
		Notes:              input.Notes,
		CreatedBy:          actor,
	}
	if err := s.pricePurchaseOrder(ctx, &po, input.Items); err != nil {
		return PurchaseOrder{}, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertPurchaseOrder(ctx, &po); err != nil {
			return err
		}
		return tx.InsertPurchaseOrderItems(ctx, po.Items)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

// UpdatePurchaseOrder replaces the order head and lines. Only draft and
// pending orders accept edits.
func (s *Service) UpdatePurchaseOrder(ctx context.Context, id uuid.UUID, input PurchaseOrderInput, actor uuid.UUID) (PurchaseOrder, error) {
	existing, err := s.repo.GetPurchaseOrder(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if !existing.Status.Editable() {
		return PurchaseOrder{}, fmt.Errorf("%w: purchase order in status %s cannot be edited", ErrInvalidState, existing.Status)
	}
	status, err := s.normalizePOStatus(input.Status)
	if err != nil {
		return PurchaseOrder{}, err
	}

	po := existing
	po.OrderNumber = strings.TrimSpace(input.OrderNumber)
	po.SupplierID = input.SupplierID
	po.Status = status
	po.OrderDate = input.OrderDate
	po.ExpectedDate = input.ExpectedDate
	po.RoundingAdjustment = input.RoundingAdjustment
	po.Notes = input.Notes
	if po.OrderNumber == "" {
		po.OrderNumber = existing.OrderNumber
	}
	if po.SupplierID == uuid.Nil {
		po.SupplierID = existing.SupplierID
	}
	if err := s.pricePurchaseOrder(ctx, &po, input.Items); err != nil {
		return PurchaseOrder{}, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdatePurchaseOrder(ctx, &po); err != nil {
			return err
		}
		if err := tx.DeletePurchaseOrderItems(ctx, po.ID); err != nil {
			return err
		}
		return tx.InsertPurchaseOrderItems(ctx, po.Items)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

// DeletePurchaseOrder removes a draft order.
func (s *Service) DeletePurchaseOrder(ctx context.Context, id uuid.UUID) error {
	existing, err := s.repo.GetPurchaseOrder(ctx, id)
	if err != nil {
		return err
	}
	if existing.Status != POStatusDraft {
		return fmt.Errorf("%w: only draft purchase orders can be deleted", ErrInvalidState)
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeletePurchaseOrderItems(ctx, id); err != nil {
			return err
		}
		return tx.DeletePurchaseOrder(ctx, id)
	})
}

// GetPurchaseOrder loads one order with its lines.
func (s *Service) GetPurchaseOrder(ctx context.Context, id uuid.UUID) (PurchaseOrder, error) {
	return s.repo.GetPurchaseOrder(ctx, id)
}

// ListPurchaseOrders lists orders without lines.
func (s *Service) ListPurchaseOrders(ctx context.Context) ([]PurchaseOrder, error) {
	return s.repo.ListPurchaseOrders(ctx)
}

func (s *Service) normalizePOStatus(status POStatus) (POStatus, error) {
	if status == "" {
		return POStatusDraft, nil
	}
	if status == POStatusReceived {
		return "", fmt.Errorf("%w: status received is derived from receipts and cannot be set directly", ErrInvalidInput)
	}
	if !status.Valid() {
		return "", fmt.Errorf("%w: unknown purchase order status %q", ErrInvalidInput, status)
	}
	return status, nil
}

func (s *Service) pricePurchaseOrder(ctx context.Context, po *PurchaseOrder, inputs []PurchaseOrderItemInput) error {
	po.Items = po.Items[:0]
	lines := make([]pricing.LineInput, 0, len(inputs))
	for _, in := range inputs {
		if in.ProductID == uuid.Nil || in.Quantity <= 0 {
			return fmt.Errorf("%w: each line needs a product and a positive quantity", ErrInvalidInput)
		}
		taxType, taxRate, err := s.catalog.PurchaseTax(ctx, in.ProductID)
		if err != nil {
			if errors.Is(err, products.ErrNotFound) {
				return fmt.Errorf("%w: product %s", ErrNotFound, in.ProductID)
			}
			return err
		}
		line := pricing.LineInput{
			Quantity:  float64(in.Quantity),
			UnitPrice: in.UnitCost,
			Discount:  in.Discount,
			TaxType:   taxType,
			TaxRate:   taxRate,
		}
		totals := pricing.ComputeLine(line)
		lines = append(lines, line)
		po.Items = append(po.Items, PurchaseOrderItem{
			ID:              uuid.New(),
			PurchaseOrderID: po.ID,
			ProductID:       in.ProductID,
			Quantity:        in.Quantity,
			UnitCost:        in.UnitCost,
			Discount:        in.Discount,
			TaxType:         taxType,
			TaxAmount:       totals.Tax,
			Total:           totals.Total,
		})
	}
	doc := pricing.ComputeDocument(lines, po.RoundingAdjustment)
	po.Subtotal = doc.Subtotal
	po.DiscountAmount = doc.DiscountAmount
	po.TaxAmount = doc.TaxAmount
	po.TotalAmount = doc.TotalAmount
	return nil
}

// CreateGoodsReceipt persists a goods receipt. Receipts without a purchase
// order get a synthetic approved order derived from their own lines. Serial
// registration and ledger writes happen after the receipt commits; their
// failures surface as warnings, not errors.
func (s *Service) CreateGoodsReceipt(ctx context.Context, input GoodsReceiptInput, actor uuid.UUID) (GoodsReceiptResult, error) {
	status := input.Status
	if status == "" {
		status = GRNStatusDraft
	}
	if !status.Valid() {
		return GoodsReceiptResult{}, fmt.Errorf("%w: unknown goods receipt status %q", ErrInvalidInput, status)
	}
	grnNumber := strings.TrimSpace(input.GRNNumber)
	if grnNumber == "" {
		return GoodsReceiptResult{}, fmt.Errorf("%w: GRN number is required", ErrInvalidInput)
	}
	if input.SupplierID == uuid.Nil {
		return GoodsReceiptResult{}, fmt.Errorf("%w: supplier is required", ErrInvalidInput)
	}
	if len(input.Items) == 0 {
		return GoodsReceiptResult{}, fmt.Errorf("%w: at least one line is required", ErrInvalidInput)
	}
	if err := s.validateReceiptItems(ctx, input.Items); err != nil {
		return GoodsReceiptResult{}, err
	}

	idemKey := "grn:" + grnNumber
	if err := s.idempotency.CheckAndInsert(ctx, idemKey, "procurement"); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			return GoodsReceiptResult{}, fmt.Errorf("%w: GRN %s was already posted", ErrDuplicate, grnNumber)
		}
		return GoodsReceiptResult{}, err
	}

	grn := GoodsReceipt{
		ID:                  uuid.New(),
		GRNNumber:           grnNumber,
		PurchaseOrderID:     input.PurchaseOrderID,
		SupplierID:          input.SupplierID,
		Status:              status,
		ReceivedDate:        input.ReceivedDate,
		VendorInvoiceNumber: input.VendorInvoiceNumber,
		RoundingAdjustment:  input.RoundingAdjustment,
		Notes:               input.Notes,
		CreatedBy:           actor,
	}
	if err := s.priceGoodsReceipt(ctx, &grn, input.Items); err != nil {
		_ = s.idempotency.Delete(ctx, idemKey)
		return GoodsReceiptResult{}, err
	}

	var syntheticPO *PurchaseOrder
	if grn.PurchaseOrderID == uuid.Nil {
		po, err := s.buildSyntheticOrder(ctx, grn, input.Items, actor)
		if err != nil {
			_ = s.idempotency.Delete(ctx, idemKey)
			return GoodsReceiptResult{}, err
		}
		syntheticPO = &po
		grn.PurchaseOrderID = po.ID
		for i := range grn.Items {
			grn.Items[i].PurchaseOrderItemID = po.Items[i].ID
		}
	} else {
		po, err := s.repo.GetPurchaseOrder(ctx, grn.PurchaseOrderID)
		if err != nil {
			_ = s.idempotency.Delete(ctx, idemKey)
			if errors.Is(err, ErrNotFound) {
				return GoodsReceiptResult{}, fmt.Errorf("%w: purchase order %s", ErrNotFound, grn.PurchaseOrderID)
			}
			return GoodsReceiptResult{}, err
		}
		if po.Status == POStatusCancelled {
			_ = s.idempotency.Delete(ctx, idemKey)
			return GoodsReceiptResult{}, fmt.Errorf("%w: purchase order %s is cancelled", ErrInvalidState, po.OrderNumber)
		}
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if syntheticPO != nil {
			if err := tx.InsertPurchaseOrder(ctx, syntheticPO); err != nil {
				return err
			}
			if err := tx.InsertPurchaseOrderItems(ctx, syntheticPO.Items); err != nil {
				return err
			}
		}
		if err := tx.InsertGoodsReceipt(ctx, &grn); err != nil {
			return err
		}
		return tx.InsertGoodsReceiptItems(ctx, grn.Items)
	})
	if err != nil {
		_ = s.idempotency.Delete(ctx, idemKey)
		return GoodsReceiptResult{}, err
	}

	result := GoodsReceiptResult{Receipt: grn}
	result.Warnings = append(result.Warnings, s.registerStock(ctx, grn.Items, actor)...)
	s.reconcileAfter(ctx, grn.PurchaseOrderID)
	return result, nil
}

// UpdateGoodsReceipt replaces the receipt head and lines. Only draft and
// partial receipts accept edits.
func (s *Service) UpdateGoodsReceipt(ctx context.Context, id uuid.UUID, input GoodsReceiptInput, actor uuid.UUID) (GoodsReceiptResult, error) {
	existing, err := s.repo.GetGoodsReceipt(ctx, id)
	if err != nil {
		return GoodsReceiptResult{}, err
	}
	if !existing.Status.Editable() {
		return GoodsReceiptResult{}, fmt.Errorf("%w: goods receipt in status %s cannot be edited", ErrInvalidState, existing.Status)
	}
	status := input.Status
	if status == "" {
		status = existing.Status
	}
	if !status.Valid() {
		return GoodsReceiptResult{}, fmt.Errorf("%w: unknown goods receipt status %q", ErrInvalidInput, status)
	}
	if len(input.Items) == 0 {
		return GoodsReceiptResult{}, fmt.Errorf("%w: at least one line is required", ErrInvalidInput)
	}
	if err := s.validateReceiptItems(ctx, input.Items); err != nil {
		return GoodsReceiptResult{}, err
	}

	grn := existing
	grn.Status = status
	grn.ReceivedDate = input.ReceivedDate
	grn.VendorInvoiceNumber = input.VendorInvoiceNumber
	grn.RoundingAdjustment = input.RoundingAdjustment
	grn.Notes = input.Notes
	if err := s.priceGoodsReceipt(ctx, &grn, input.Items); err != nil {
		return GoodsReceiptResult{}, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateGoodsReceipt(ctx, &grn); err != nil {
			return err
		}
		if err := tx.DeleteGoodsReceiptItems(ctx, grn.ID); err != nil {
			return err
		}
		return tx.InsertGoodsReceiptItems(ctx, grn.Items)
	})
	if err != nil {
		return GoodsReceiptResult{}, err
	}

	result := GoodsReceiptResult{Receipt: grn}
	// register only serials the registry does not hold yet; a resubmitted
	// line keeps its existing units and contributes just the additions
	newItems := make([]GoodsReceiptItem, 0, len(grn.Items))
	for _, item := range grn.Items {
		if len(item.SerialNumbers) == 0 {
			newItems = append(newItems, item)
			continue
		}
		known, err := s.serials.Existing(ctx, item.ProductID, item.SerialNumbers)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("serial lookup failed for product %s: %v", item.ProductID, err))
			continue
		}
		fresh := item
		fresh.SerialNumbers = make([]string, 0, len(item.SerialNumbers))
		for _, serial := range item.SerialNumbers {
			if !known[serial] {
				fresh.SerialNumbers = append(fresh.SerialNumbers, serial)
			}
		}
		if len(fresh.SerialNumbers) == 0 {
			continue
		}
		newItems = append(newItems, fresh)
	}
	result.Warnings = append(result.Warnings, s.registerStock(ctx, newItems, actor)...)
	s.reconcileAfter(ctx, grn.PurchaseOrderID)
	return result, nil
}

// DeleteGoodsReceipt removes a draft receipt.
func (s *Service) DeleteGoodsReceipt(ctx context.Context, id uuid.UUID) error {
	existing, err := s.repo.GetGoodsReceipt(ctx, id)
	if err != nil {
		return err
	}
	if existing.Status != GRNStatusDraft {
		return fmt.Errorf("%w: only draft goods receipts can be deleted", ErrInvalidState)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeleteGoodsReceiptItems(ctx, id); err != nil {
			return err
		}
		return tx.DeleteGoodsReceipt(ctx, id)
	})
	if err != nil {
		return err
	}
	s.reconcileAfter(ctx, existing.PurchaseOrderID)
	return nil
}

// GetGoodsReceipt loads one receipt with its lines.
func (s *Service) GetGoodsReceipt(ctx context.Context, id uuid.UUID) (GoodsReceipt, error) {
	return s.repo.GetGoodsReceipt(ctx, id)
}

// ListGoodsReceipts lists receipts, optionally scoped to a purchase order.
func (s *Service) ListGoodsReceipts(ctx context.Context, poID uuid.UUID) ([]GoodsReceipt, error) {
	return s.repo.ListGoodsReceipts(ctx, poID)
}

func (s *Service) validateReceiptItems(ctx context.Context, items []GoodsReceiptItemInput) error {
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return fmt.Errorf("%w: each line needs a product", ErrInvalidInput)
		}
		if item.ReceivedQuantity < 0 || item.RejectedQuantity < 0 {
			return fmt.Errorf("%w: quantities cannot be negative", ErrInvalidInput)
		}
		if item.RejectedQuantity > item.ReceivedQuantity {
			return fmt.Errorf("%w: rejected quantity cannot exceed received quantity", ErrInvalidInput)
		}
		normalized := serials.NormalizeSerialNumbers(item.SerialNumbers)
		if len(normalized) == 0 {
			continue
		}
		product, err := s.catalog.Get(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, products.ErrNotFound) {
				return fmt.Errorf("%w: product %s", ErrNotFound, item.ProductID)
			}
			return err
		}
		if !product.IsSerialized {
			return fmt.Errorf("%w: product %s is not serialized but serial numbers were provided", ErrInvalidInput, product.Name)
		}
		if len(normalized) != item.accepted() {
			return fmt.Errorf("%w: product %s: %d serial numbers for accepted quantity %d", ErrInvalidInput, product.Name, len(normalized), item.accepted())
		}
	}
	return nil
}

func (s *Service) priceGoodsReceipt(ctx context.Context, grn *GoodsReceipt, inputs []GoodsReceiptItemInput) error {
	grn.Items = grn.Items[:0]
	lines := make([]pricing.LineInput, 0, len(inputs))
	for _, in := range inputs {
		taxType, taxRate, err := s.catalog.PurchaseTax(ctx, in.ProductID)
		if err != nil {
			if errors.Is(err, products.ErrNotFound) {
				return fmt.Errorf("%w: product %s", ErrNotFound, in.ProductID)
			}
			return err
		}
		// lines are priced on what physically arrived; rejected units still
		// cost money until the supplier credits them
		line := pricing.LineInput{
			Quantity:  float64(in.ReceivedQuantity),
			UnitPrice: in.UnitCost,
			Discount:  in.Discount,
			TaxType:   taxType,
			TaxRate:   taxRate,
		}
		totals := pricing.ComputeLine(line)
		lines = append(lines, line)
		grn.Items = append(grn.Items, GoodsReceiptItem{
			ID:                  uuid.New(),
			GoodsReceiptID:      grn.ID,
			PurchaseOrderItemID: in.PurchaseOrderItemID,
			ProductID:           in.ProductID,
			OrderedQuantity:     in.OrderedQuantity,
			ReceivedQuantity:    in.ReceivedQuantity,
			AcceptedQuantity:    in.accepted(),
			RejectedQuantity:    in.RejectedQuantity,
			UnitCost:            in.UnitCost,
			Discount:            in.Discount,
			TaxType:             taxType,
			TaxAmount:           totals.Tax,
			Total:               totals.Total,
			SerialNumbers:       serials.NormalizeSerialNumbers(in.SerialNumbers),
		})
	}
	doc := pricing.ComputeDocument(lines, grn.RoundingAdjustment)
	grn.Subtotal = doc.Subtotal
	grn.DiscountAmount = doc.DiscountAmount
	grn.TaxAmount = doc.TaxAmount
	grn.TotalAmount = doc.TotalAmount
	return nil
}

// buildSyntheticOrder derives an approved purchase order from a direct
// receipt so reconciliation has an order to settle.
func (s *Service) buildSyntheticOrder(ctx context.Context, grn GoodsReceipt, inputs []GoodsReceiptItemInput, actor uuid.UUID) (PurchaseOrder, error) {
	po := PurchaseOrder{
		ID:                 uuid.New(),
		OrderNumber:        fmt.Sprintf("PO-%s-%s", time.Now().Format("20060102"), strings.ToUpper(uuid.NewString()[:8])),
		SupplierID:         grn.SupplierID,
		Status:             POStatusApproved,
		OrderDate:          grn.ReceivedDate,
		ExpectedDate:       grn.ReceivedDate,
		RoundingAdjustment: grn.RoundingAdjustment,
		Notes:              fmt.Sprintf("auto-created for direct GRN %s", grn.GRNNumber),
		CreatedBy:          actor,
	}
	orderInputs := make([]PurchaseOrderItemInput, 0, len(inputs))
	for _, in := range inputs {
		quantity := in.accepted()
		if quantity <= 0 {
			quantity = in.ReceivedQuantity
		}
		if quantity <= 0 {
			quantity = 1
		}
		orderInputs = append(orderInputs, PurchaseOrderItemInput{
			ProductID: in.ProductID,
			Quantity:  quantity,
			UnitCost:  in.UnitCost,
			Discount:  in.Discount,
		})
	}
	if err := s.pricePurchaseOrder(ctx, &po, orderInputs); err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

// registerStock registers serialized units and records receipt transactions
// for non-serialized lines. Everything here is post-commit and best-effort.
func (s *Service) registerStock(ctx context.Context, items []GoodsReceiptItem, actor uuid.UUID) []string {
	var warnings []string
	for _, item := range items {
		if len(item.SerialNumbers) > 0 {
			result, err := s.serials.CreateBatch(ctx, item.ProductID, item.SerialNumbers, item.ID, actor)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("serial registration failed for product %s: %v", item.ProductID, err))
				continue
			}
			warnings = append(warnings, result.Warnings...)
			continue
		}
		if item.AcceptedQuantity <= 0 {
			continue
		}
		recorded := s.ledger.TryRecord(ctx, ledger.Entry{
			ProductID:      item.ProductID,
			Type:           ledger.EntryReceipt,
			QuantityChange: item.AcceptedQuantity,
			ReferenceType:  ledger.ReferenceGRNItem,
			ReferenceID:    item.ID,
			Notes:          fmt.Sprintf("received %d units", item.AcceptedQuantity),
			CreatedBy:      actor,
		})
		if !recorded {
			warnings = append(warnings, fmt.Sprintf("receipt transaction not recorded for product %s", item.ProductID))
		}
	}
	return warnings
}

// Reconcile recomputes per-line received quantities from completed receipts
// and derives the purchase order status. Cancelled orders are left alone. An
// order with no lines is trivially received.
func (s *Service) Reconcile(ctx context.Context, poID uuid.UUID) (POStatus, error) {
	po, err := s.repo.GetPurchaseOrder(ctx, poID)
	if err != nil {
		return "", err
	}
	if po.Status == POStatusCancelled {
		return POStatusCancelled, nil
	}

	if len(po.Items) == 0 {
		if po.Status != POStatusReceived {
			err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
				return tx.SetPurchaseOrderStatus(ctx, po.ID, POStatusReceived)
			})
			if err != nil {
				return "", err
			}
		}
		return POStatusReceived, nil
	}

	receiptItems, err := s.repo.ListCompletedReceiptItems(ctx, poID)
	if err != nil {
		return "", err
	}
	accepted := map[uuid.UUID]int{}
	for _, item := range receiptItems {
		if item.PurchaseOrderItemID == uuid.Nil {
			continue
		}
		accepted[item.PurchaseOrderItemID] += item.AcceptedQuantity
	}

	allMet := true
	for _, item := range po.Items {
		if accepted[item.ID] < item.Quantity {
			allMet = false
			break
		}
	}

	next := po.Status
	switch {
	case allMet && po.Status != POStatusReceived:
		next = POStatusReceived
	case !allMet && po.Status == POStatusReceived:
		next = POStatusApproved
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, item := range po.Items {
			if err := tx.SetPurchaseOrderItemReceived(ctx, item.ID, accepted[item.ID]); err != nil {
				return err
			}
		}
		if next != po.Status {
			return tx.SetPurchaseOrderStatus(ctx, po.ID, next)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return next, nil
}

// reconcileAfter is the post-write hook; reconciliation failure never fails
// the write that triggered it.
func (s *Service) reconcileAfter(ctx context.Context, poID uuid.UUID) {
	if poID == uuid.Nil {
		return
	}
	if _, err := s.Reconcile(ctx, poID); err != nil {
		s.logger.Warn("purchase order reconciliation failed", "purchase_order_id", poID, "error", err)
	}
}
