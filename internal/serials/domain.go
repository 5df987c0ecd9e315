// Package serials owns the lifecycle of individual serialized units. A unit
// is created when a goods receipt records its serial number and then walks a
// fixed state graph; it is never deleted.
package serials

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alsubhan/versal/internal/ledger"
)

// Status is the lifecycle state of one serialized unit.
type Status string

const (
	StatusAvailable Status = "available"
	StatusReserved  Status = "reserved"
	StatusSold      Status = "sold"
	StatusReturned  Status = "returned"
	StatusScrapped  Status = "scrapped"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusReserved, StatusSold, StatusReturned, StatusScrapped:
		return true
	}
	return false
}

// Operation names the business intent a serial is validated for.
type Operation string

const (
	OperationOrder   Operation = "order"
	OperationReserve Operation = "reserve"
	OperationSell    Operation = "sell"
)

// Unit is one physical unit of a serialized product. SerialNumber is unique
// within its product, not globally.
type Unit struct {
	ID                uuid.UUID
	ProductID         uuid.UUID
	SerialNumber      string
	Status            Status
	GRNItemID         uuid.UUID
	SaleInvoiceItemID uuid.UUID
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Filter narrows serial listings.
type Filter struct {
	ProductID uuid.UUID
	Status    Status
	Limit     int
}

var (
	// ErrNotFound indicates a serial does not exist for the product.
	ErrNotFound = errors.New("serials: not found")
	// ErrInvalidInput indicates malformed serial input.
	ErrInvalidInput = errors.New("serials: invalid input")
	// ErrInvalidState indicates a transition the state graph does not allow.
	ErrInvalidState = errors.New("serials: invalid state transition")
)

// transitionEntry maps a status transition to its ledger entry type and
// signed quantity change. ok is false for the recognised available→available
// no-op, which must not emit a ledger entry. Any pair not listed here is a
// contract violation surfaced as ErrInvalidState by callers.
func transitionEntry(from, to Status) (entryType ledger.EntryType, quantityChange int, ok bool, valid bool) {
	switch {
	case from == StatusAvailable && to == StatusReserved:
		return ledger.EntryReservation, -1, true, true
	case from == StatusReserved && to == StatusSold:
		return ledger.EntrySale, -1, true, true
	case from == StatusAvailable && to == StatusSold:
		return ledger.EntrySale, -1, true, true
	case from == StatusSold && to == StatusReturned:
		return ledger.EntryReturn, +1, true, true
	case from == StatusReserved && to == StatusAvailable:
		return ledger.EntryReservationRelease, +1, true, true
	case (from == StatusAvailable || from == StatusReserved || from == StatusSold) && to == StatusScrapped:
		return ledger.EntryScrap, -1, true, true
	case from == StatusAvailable && to == StatusAvailable:
		return "", 0, false, true
	default:
		return "", 0, false, false
	}
}

// NormalizeSerialNumbers trims each serial and drops empties and duplicates,
// preserving first-seen order.
func NormalizeSerialNumbers(serialNumbers []string) []string {
	seen := make(map[string]struct{}, len(serialNumbers))
	out := make([]string, 0, len(serialNumbers))
	for _, s := range serialNumbers {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ParseSerialNumbers accepts the free-form serial input clients send on
// receipt items: a comma or newline separated string.
func ParseSerialNumbers(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r", "\n")
	raw = strings.ReplaceAll(raw, ",", "\n")
	return NormalizeSerialNumbers(strings.Split(raw, "\n"))
}
