// Package ledger keeps the append-only audit log of inventory quantity
// changes. Entries are created once and never updated or deleted.
package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// EntryType enumerates supported inventory movements.
type EntryType string

const (
	EntryReceipt            EntryType = "receipt"
	EntryReservation        EntryType = "reservation"
	EntryReservationRelease EntryType = "reservation_release"
	EntrySale               EntryType = "sale"
	EntryReturn             EntryType = "return"
	EntryScrap              EntryType = "scrap"
	EntryAdjustment         EntryType = "adjustment"
	EntryInitialStock       EntryType = "initial_stock"
)

// ReferenceType names the document kind that caused a quantity change.
type ReferenceType string

const (
	ReferenceGRNItem         ReferenceType = "grn_item"
	ReferenceSaleInvoiceItem ReferenceType = "sale_invoice_item"
	ReferenceProductSerial   ReferenceType = "product_serial"
	ReferenceAdjustment      ReferenceType = "adjustment"
)

// Entry is one immutable ledger row. QuantityChange is signed: positive adds
// to usable inventory, negative removes from it.
type Entry struct {
	ID             uuid.UUID
	ProductID      uuid.UUID
	Type           EntryType
	QuantityChange int
	ReferenceType  ReferenceType
	ReferenceID    uuid.UUID
	Notes          string
	CreatedBy      uuid.UUID
	CreatedAt      time.Time
}

// Filter narrows ledger listings.
type Filter struct {
	ProductID   uuid.UUID
	Type        EntryType
	ReferenceID uuid.UUID
	Limit       int
}

// ErrInvalidEntry indicates a structurally invalid ledger entry.
var ErrInvalidEntry = errors.New("ledger: invalid entry")
