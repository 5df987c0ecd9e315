package serials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/alsubhan/versal/internal/ledger"
	"github.com/alsubhan/versal/internal/masterdata/products"
)

// StatusUpdate describes a conditional status change. The update applies only
// when the unit's current status is one of From; the affected-row count tells
// the caller whether the claim won.
type StatusUpdate struct {
	ProductID    uuid.UUID
	SerialNumber string
	From         []Status
	To           Status
	ClaimID      uuid.UUID
	ClearClaim   bool
}

// RepositoryPort abstracts persistence for the registry.
type RepositoryPort interface {
	InsertBatch(ctx context.Context, units []Unit) error
	GetBySerial(ctx context.Context, productID uuid.UUID, serialNumber string) (Unit, error)
	List(ctx context.Context, filter Filter) ([]Unit, error)
	Lookup(ctx context.Context, serialNumber string) ([]Unit, error)
	ListByClaim(ctx context.Context, claimID uuid.UUID) ([]Unit, error)
	UpdateStatus(ctx context.Context, update StatusUpdate) (Unit, error)
}

// ProductPort exposes the catalog lookups the registry needs.
type ProductPort interface {
	Get(ctx context.Context, id uuid.UUID) (products.Product, error)
}

// LedgerPort records inventory transactions best-effort.
type LedgerPort interface {
	TryRecord(ctx context.Context, entry ledger.Entry) bool
}

// Registry enforces the serialized-unit state machine and keeps the ledger
// in step with every transition.
type Registry struct {
	repo     RepositoryPort
	products ProductPort
	ledger   LedgerPort
	logger   *slog.Logger
}

// NewRegistry constructs a Registry.
func NewRegistry(repo RepositoryPort, products ProductPort, ledger LedgerPort, logger *slog.Logger) *Registry {
	return &Registry{repo: repo, products: products, ledger: ledger, logger: logger}
}

// BatchResult reports a batch receipt outcome.
type BatchResult struct {
	SerialNumbers []string
	Warnings      []string
}

// ClaimResult reports claimed serials and any ledger warnings.
type ClaimResult struct {
	SerialNumbers []string
	Warnings      []string
}

// CreateBatch registers one unit per normalized serial in status available
// and emits a single aggregated receipt transaction for the whole batch.
// An empty normalized list is a no-op.
func (r *Registry) CreateBatch(ctx context.Context, productID uuid.UUID, serialNumbers []string, grnItemID uuid.UUID, actor uuid.UUID) (BatchResult, error) {
	normalized := NormalizeSerialNumbers(serialNumbers)
	if len(normalized) == 0 {
		return BatchResult{}, nil
	}

	units := make([]Unit, 0, len(normalized))
	for _, serial := range normalized {
		units = append(units, Unit{
			ProductID:    productID,
			SerialNumber: serial,
			Status:       StatusAvailable,
			GRNItemID:    grnItemID,
		})
	}
	if err := r.repo.InsertBatch(ctx, units); err != nil {
		return BatchResult{}, err
	}

	result := BatchResult{SerialNumbers: normalized}
	recorded := r.ledger.TryRecord(ctx, ledger.Entry{
		ProductID:      productID,
		Type:           ledger.EntryReceipt,
		QuantityChange: len(normalized),
		ReferenceType:  ledger.ReferenceGRNItem,
		ReferenceID:    grnItemID,
		Notes:          fmt.Sprintf("serialized receipt of %d units: %s", len(normalized), strings.Join(normalized, ", ")),
		CreatedBy:      actor,
	})
	if !recorded {
		result.Warnings = append(result.Warnings, "receipt transaction not recorded")
	}
	return result, nil
}

// Existing reports which of the given serials are already registered for the
// product.
func (r *Registry) Existing(ctx context.Context, productID uuid.UUID, serialNumbers []string) (map[string]bool, error) {
	normalized := NormalizeSerialNumbers(serialNumbers)
	existing := make(map[string]bool, len(normalized))
	for _, serial := range normalized {
		if _, err := r.repo.GetBySerial(ctx, productID, serial); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		existing[serial] = true
	}
	return existing, nil
}

// ValidateForOperation checks that every supplied serial exists for the
// product and is in a status the operation allows, returning the normalized
// list. A unit reserved under one of heldClaims counts as claimable, so a
// document edit can keep its own reservations. Quantity/serial-count matching
// is the caller's contract.
func (r *Registry) ValidateForOperation(ctx context.Context, productID uuid.UUID, serialNumbers []string, operation Operation, heldClaims map[uuid.UUID]bool) ([]string, error) {
	normalized := NormalizeSerialNumbers(serialNumbers)
	if len(normalized) == 0 {
		return nil, nil
	}

	product, err := r.products.Get(ctx, productID)
	if err != nil {
		if errors.Is(err, products.ErrNotFound) {
			return nil, fmt.Errorf("%w: product %s", ErrNotFound, productID)
		}
		return nil, err
	}
	if !product.IsSerialized {
		return nil, fmt.Errorf("%w: product is not serialized but serial numbers were provided", ErrInvalidInput)
	}

	for _, serial := range normalized {
		unit, err := r.repo.GetBySerial(ctx, productID, serial)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w: serial %q not found for product", ErrNotFound, serial)
			}
			return nil, err
		}
		if statusAllowed(unit.Status, operation) {
			continue
		}
		if unit.Status == StatusReserved && heldClaims[unit.SaleInvoiceItemID] {
			continue
		}
		return nil, fmt.Errorf("%w: serial %q is %s", ErrInvalidState, serial, unit.Status)
	}
	return normalized, nil
}

func statusAllowed(status Status, operation Operation) bool {
	switch operation {
	case OperationSell:
		return status == StatusAvailable || status == StatusReserved
	default: // order, reserve
		return status == StatusAvailable
	}
}

// Claim transitions serials to reserved (finalize=false) or sold
// (finalize=true), stamping the invoice-item claim reference. Each serial is
// claimed with one conditional update so two concurrent requests cannot both
// win the same unit; the loser gets ErrInvalidState.
func (r *Registry) Claim(ctx context.Context, productID uuid.UUID, serialNumbers []string, claimRef uuid.UUID, finalize bool, actor uuid.UUID) (ClaimResult, error) {
	normalized := NormalizeSerialNumbers(serialNumbers)
	result := ClaimResult{}

	from := []Status{StatusAvailable}
	to := StatusReserved
	entryType := ledger.EntryReservation
	if finalize {
		from = []Status{StatusAvailable, StatusReserved}
		to = StatusSold
		entryType = ledger.EntrySale
	}

	for _, serial := range normalized {
		_, err := r.repo.UpdateStatus(ctx, StatusUpdate{
			ProductID:    productID,
			SerialNumber: serial,
			From:         from,
			To:           to,
			ClaimID:      claimRef,
		})
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return result, r.classifyClaimFailure(ctx, productID, serial, finalize)
			}
			return result, err
		}
		result.SerialNumbers = append(result.SerialNumbers, serial)

		recorded := r.ledger.TryRecord(ctx, ledger.Entry{
			ProductID:      productID,
			Type:           entryType,
			QuantityChange: -1,
			ReferenceType:  ledger.ReferenceSaleInvoiceItem,
			ReferenceID:    claimRef,
			Notes:          fmt.Sprintf("serial %s %s", serial, to),
			CreatedBy:      actor,
		})
		if !recorded {
			result.Warnings = append(result.Warnings, fmt.Sprintf("transaction for serial %s not recorded", serial))
		}
	}
	return result, nil
}

// classifyClaimFailure turns a lost conditional update into the precise
// client error: the serial is either missing or in a status that blocks the
// claim.
func (r *Registry) classifyClaimFailure(ctx context.Context, productID uuid.UUID, serial string, finalize bool) error {
	unit, err := r.repo.GetBySerial(ctx, productID, serial)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: serial %q not found for product", ErrNotFound, serial)
		}
		return err
	}
	verb := "reserved"
	if finalize {
		verb = "sold"
	}
	return fmt.Errorf("%w: serial %q cannot be %s (current status: %s)", ErrInvalidState, serial, verb, unit.Status)
}

// Release returns reserved serials to available and clears their claim,
// emitting one reservation_release transaction per serial.
func (r *Registry) Release(ctx context.Context, productID uuid.UUID, serialNumbers []string, claimRef uuid.UUID, actor uuid.UUID) (ClaimResult, error) {
	normalized := NormalizeSerialNumbers(serialNumbers)
	result := ClaimResult{}
	for _, serial := range normalized {
		_, err := r.repo.UpdateStatus(ctx, StatusUpdate{
			ProductID:    productID,
			SerialNumber: serial,
			From:         []Status{StatusReserved},
			To:           StatusAvailable,
			ClearClaim:   true,
		})
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return result, fmt.Errorf("%w: serial %q is not reserved", ErrInvalidState, serial)
			}
			return result, err
		}
		result.SerialNumbers = append(result.SerialNumbers, serial)
		if !r.recordRelease(ctx, productID, serial, claimRef, actor) {
			result.Warnings = append(result.Warnings, fmt.Sprintf("transaction for serial %s not recorded", serial))
		}
	}
	return result, nil
}

// ReleaseClaim releases every serial still reserved under the given invoice
// item, used when an invoice's items are replaced or deleted so superseded
// claims are not orphaned. Sold units are left untouched.
func (r *Registry) ReleaseClaim(ctx context.Context, claimRef uuid.UUID, actor uuid.UUID) ([]Unit, error) {
	units, err := r.repo.ListByClaim(ctx, claimRef)
	if err != nil {
		return nil, err
	}
	released := []Unit{}
	for _, unit := range units {
		if unit.Status != StatusReserved {
			continue
		}
		updated, err := r.repo.UpdateStatus(ctx, StatusUpdate{
			ProductID:    unit.ProductID,
			SerialNumber: unit.SerialNumber,
			From:         []Status{StatusReserved},
			To:           StatusAvailable,
			ClearClaim:   true,
		})
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue // lost to a concurrent transition
			}
			return released, err
		}
		released = append(released, updated)
		r.recordRelease(ctx, unit.ProductID, unit.SerialNumber, claimRef, actor)
	}
	return released, nil
}

func (r *Registry) recordRelease(ctx context.Context, productID uuid.UUID, serial string, claimRef uuid.UUID, actor uuid.UUID) bool {
	return r.ledger.TryRecord(ctx, ledger.Entry{
		ProductID:      productID,
		Type:           ledger.EntryReservationRelease,
		QuantityChange: +1,
		ReferenceType:  ledger.ReferenceSaleInvoiceItem,
		ReferenceID:    claimRef,
		Notes:          fmt.Sprintf("serial %s released", serial),
		CreatedBy:      actor,
	})
}

// Return moves a sold serial to returned and records the +1 return
// transaction.
func (r *Registry) Return(ctx context.Context, productID uuid.UUID, serialNumber, notes string, actor uuid.UUID) (Unit, error) {
	return r.UpdateStatus(ctx, productID, serialNumber, StatusReturned, notes, actor)
}

// Scrap moves a serial to the terminal scrapped status and records the -1
// scrap transaction.
func (r *Registry) Scrap(ctx context.Context, productID uuid.UUID, serialNumber, notes string, actor uuid.UUID) (Unit, error) {
	return r.UpdateStatus(ctx, productID, serialNumber, StatusScrapped, notes, actor)
}

// UpdateStatus applies a manual status correction. Only transitions in the
// state graph are accepted; re-asserting available on an already-available
// unit succeeds without writing a transaction.
func (r *Registry) UpdateStatus(ctx context.Context, productID uuid.UUID, serialNumber string, to Status, notes string, actor uuid.UUID) (Unit, error) {
	serialNumber = strings.TrimSpace(serialNumber)
	if serialNumber == "" {
		return Unit{}, fmt.Errorf("%w: serial number required", ErrInvalidInput)
	}
	current, err := r.repo.GetBySerial(ctx, productID, serialNumber)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Unit{}, fmt.Errorf("%w: serial %q not found for product", ErrNotFound, serialNumber)
		}
		return Unit{}, err
	}

	entryType, quantityChange, emits, valid := transitionEntry(current.Status, to)
	if !valid {
		return Unit{}, fmt.Errorf("%w: %s -> %s", ErrInvalidState, current.Status, to)
	}
	if current.Status == to && !emits {
		return current, nil
	}

	updated, err := r.repo.UpdateStatus(ctx, StatusUpdate{
		ProductID:    productID,
		SerialNumber: serialNumber,
		From:         []Status{current.Status},
		To:           to,
		ClearClaim:   to == StatusAvailable,
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Unit{}, fmt.Errorf("%w: serial %q is %s", ErrInvalidState, serialNumber, current.Status)
		}
		return Unit{}, err
	}

	if emits {
		if notes == "" {
			notes = fmt.Sprintf("serial %s status changed from %s to %s", serialNumber, current.Status, to)
		}
		r.ledger.TryRecord(ctx, ledger.Entry{
			ProductID:      productID,
			Type:           entryType,
			QuantityChange: quantityChange,
			ReferenceType:  ledger.ReferenceProductSerial,
			ReferenceID:    updated.ID,
			Notes:          notes,
			CreatedBy:      actor,
		})
	}
	return updated, nil
}

// List returns serials matching the filter.
func (r *Registry) List(ctx context.Context, filter Filter) ([]Unit, error) {
	return r.repo.List(ctx, filter)
}

// Lookup finds units carrying the serial number across products.
func (r *Registry) Lookup(ctx context.Context, serialNumber string) ([]Unit, error) {
	serialNumber = strings.TrimSpace(serialNumber)
	if serialNumber == "" {
		return nil, fmt.Errorf("%w: serial number required", ErrInvalidInput)
	}
	return r.repo.Lookup(ctx, serialNumber)
}
