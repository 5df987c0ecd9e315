// Package procurement covers purchase orders and goods receipts, including
// the reconciliation that derives a purchase order's received status from
// its completed receipts.
package procurement

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/alsubhan/versal/internal/pricing"
)

// POStatus is the purchase order lifecycle state. The received status is
// owned by reconciliation and is never accepted from clients.
type POStatus string

const (
	POStatusDraft     POStatus = "draft"
	POStatusPending   POStatus = "pending"
	POStatusApproved  POStatus = "approved"
	POStatusReceived  POStatus = "received"
	POStatusCancelled POStatus = "cancelled"
)

// Valid reports whether s is a known purchase order status.
func (s POStatus) Valid() bool {
	switch s {
	case POStatusDraft, POStatusPending, POStatusApproved, POStatusReceived, POStatusCancelled:
		return true
	}
	return false
}

// Editable reports whether a purchase order in this status accepts edits.
func (s POStatus) Editable() bool {
	return s == POStatusDraft || s == POStatusPending
}

// GRNStatus is the goods receipt lifecycle state. Only completed receipts
// count toward purchase order reconciliation.
type GRNStatus string

const (
	GRNStatusDraft     GRNStatus = "draft"
	GRNStatusPartial   GRNStatus = "partial"
	GRNStatusCompleted GRNStatus = "completed"
	GRNStatusRejected  GRNStatus = "rejected"
)

// Valid reports whether s is a known goods receipt status.
func (s GRNStatus) Valid() bool {
	switch s {
	case GRNStatusDraft, GRNStatusPartial, GRNStatusCompleted, GRNStatusRejected:
		return true
	}
	return false
}

// Editable reports whether a goods receipt in this status accepts edits.
func (s GRNStatus) Editable() bool {
	return s == GRNStatusDraft || s == GRNStatusPartial
}

// PurchaseOrder is an order placed with a supplier.
type PurchaseOrder struct {
	ID                 uuid.UUID
	OrderNumber        string
	SupplierID         uuid.UUID
	Status             POStatus
	OrderDate          time.Time
	ExpectedDate       time.Time
	Subtotal           float64
	DiscountAmount     float64
	TaxAmount          float64
	RoundingAdjustment float64
	TotalAmount        float64
	Notes              string
	CreatedBy          uuid.UUID
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Items              []PurchaseOrderItem
}

// PurchaseOrderItem is one ordered line. ReceivedQuantity is maintained by
// reconciliation, not by clients.
type PurchaseOrderItem struct {
	ID               uuid.UUID
	PurchaseOrderID  uuid.UUID
	ProductID        uuid.UUID
	Quantity         int
	ReceivedQuantity int
	UnitCost         float64
	Discount         float64
	TaxType          pricing.TaxType
	TaxAmount        float64
	Total            float64
}

// GoodsReceipt records stock arriving from a supplier. A receipt created
// without a purchase order gets a synthetic approved order so reconciliation
// has something to settle against.
type GoodsReceipt struct {
	ID                  uuid.UUID
	GRNNumber           string
	PurchaseOrderID     uuid.UUID
	SupplierID          uuid.UUID
	Status              GRNStatus
	ReceivedDate        time.Time
	VendorInvoiceNumber string
	Subtotal            float64
	DiscountAmount      float64
	TaxAmount           float64
	RoundingAdjustment  float64
	TotalAmount         float64
	Notes               string
	CreatedBy           uuid.UUID
	CreatedAt           time.Time
	UpdatedAt           time.Time
	Items               []GoodsReceiptItem
}

// GoodsReceiptItem is one received line. PurchaseOrderItemID is Nil for
// lines that do not settle an ordered line; those are excluded from
// reconciliation.
type GoodsReceiptItem struct {
	ID                  uuid.UUID
	GoodsReceiptID      uuid.UUID
	PurchaseOrderItemID uuid.UUID
	ProductID           uuid.UUID
	OrderedQuantity     int
	ReceivedQuantity    int
	AcceptedQuantity    int
	RejectedQuantity    int
	UnitCost            float64
	Discount            float64
	TaxType             pricing.TaxType
	TaxAmount           float64
	Total               float64
	SerialNumbers       []string
}

var (
	// ErrNotFound indicates the document does not exist.
	ErrNotFound = errors.New("procurement: not found")
	// ErrInvalidInput indicates a malformed or inconsistent request.
	ErrInvalidInput = errors.New("procurement: invalid input")
	// ErrInvalidState indicates the document status forbids the operation.
	ErrInvalidState = errors.New("procurement: invalid state")
	// ErrDuplicate indicates a document number collision.
	ErrDuplicate = errors.New("procurement: duplicate document number")
)
