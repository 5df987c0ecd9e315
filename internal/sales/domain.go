// Package sales covers sale invoices, including the binding of serialized
// units to invoice lines and the overdue scan.
package sales

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/alsubhan/versal/internal/pricing"
)

// InvoiceStatus is the sale invoice lifecycle state. The overdue status is
// set by the scheduled scan, never by clients.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPartial   InvoiceStatus = "partial"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Valid reports whether s is a known invoice status.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPartial, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

// Editable reports whether an invoice in this status accepts edits.
func (s InvoiceStatus) Editable() bool {
	return s == InvoiceStatusDraft || s == InvoiceStatusSent || s == InvoiceStatusPartial
}

// Finalized reports whether serials on this invoice are sold rather than
// reserved.
func (s InvoiceStatus) Finalized() bool {
	return s == InvoiceStatusSent
}

// Invoice is one sale document.
type Invoice struct {
	ID                 uuid.UUID
	InvoiceNumber      string
	CustomerID         uuid.UUID
	Status             InvoiceStatus
	InvoiceDate        time.Time
	DueDate            time.Time
	Subtotal           float64
	DiscountAmount     float64
	TaxAmount          float64
	RoundingAdjustment float64
	TotalAmount        float64
	Notes              string
	CreatedBy          uuid.UUID
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Items              []InvoiceItem
}

// InvoiceItem is one sold line. For serialized products SerialNumbers must
// name exactly Quantity units; each item id doubles as the claim reference
// stamped onto the units it binds.
type InvoiceItem struct {
	ID            uuid.UUID
	SaleInvoiceID uuid.UUID
	ProductID     uuid.UUID
	Quantity      int
	UnitPrice     float64
	Discount      float64
	TaxType       pricing.TaxType
	TaxAmount     float64
	Total         float64
	SerialNumbers []string
}

var (
	// ErrNotFound indicates the invoice does not exist.
	ErrNotFound = errors.New("sales: not found")
	// ErrInvalidInput indicates a malformed or inconsistent request.
	ErrInvalidInput = errors.New("sales: invalid input")
	// ErrInvalidState indicates the invoice status forbids the operation.
	ErrInvalidState = errors.New("sales: invalid state")
	// ErrDuplicate indicates an invoice number collision.
	ErrDuplicate = errors.New("sales: duplicate invoice number")
)
