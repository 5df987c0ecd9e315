package serials

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/alsubhan/versal/internal/ledger"
	"github.com/alsubhan/versal/internal/masterdata/products"
)

type memorySerialRepo struct {
	units map[string]*Unit // keyed by productID/serial
}

func newMemorySerialRepo() *memorySerialRepo {
	return &memorySerialRepo{units: map[string]*Unit{}}
}

func serialKey(productID uuid.UUID, serial string) string {
	return productID.String() + "/" + serial
}

func (m *memorySerialRepo) InsertBatch(_ context.Context, units []Unit) error {
	for _, unit := range units {
		key := serialKey(unit.ProductID, unit.SerialNumber)
		if _, exists := m.units[key]; exists {
			return fmt.Errorf("%w: duplicate serial number for product", ErrInvalidInput)
		}
	}
	for _, unit := range units {
		unit.ID = uuid.New()
		copied := unit
		m.units[serialKey(unit.ProductID, unit.SerialNumber)] = &copied
	}
	return nil
}

func (m *memorySerialRepo) GetBySerial(_ context.Context, productID uuid.UUID, serialNumber string) (Unit, error) {
	unit, ok := m.units[serialKey(productID, serialNumber)]
	if !ok {
		return Unit{}, ErrNotFound
	}
	return *unit, nil
}

func (m *memorySerialRepo) List(_ context.Context, filter Filter) ([]Unit, error) {
	out := []Unit{}
	for _, unit := range m.units {
		if filter.ProductID != uuid.Nil && unit.ProductID != filter.ProductID {
			continue
		}
		if filter.Status != "" && unit.Status != filter.Status {
			continue
		}
		out = append(out, *unit)
	}
	return out, nil
}

func (m *memorySerialRepo) Lookup(_ context.Context, serialNumber string) ([]Unit, error) {
	out := []Unit{}
	for _, unit := range m.units {
		if unit.SerialNumber == serialNumber {
			out = append(out, *unit)
		}
	}
	return out, nil
}

func (m *memorySerialRepo) ListByClaim(_ context.Context, claimID uuid.UUID) ([]Unit, error) {
	out := []Unit{}
	for _, unit := range m.units {
		if unit.SaleInvoiceItemID == claimID {
			out = append(out, *unit)
		}
	}
	return out, nil
}

func (m *memorySerialRepo) UpdateStatus(_ context.Context, update StatusUpdate) (Unit, error) {
	unit, ok := m.units[serialKey(update.ProductID, update.SerialNumber)]
	if !ok {
		return Unit{}, ErrNotFound
	}
	matched := false
	for _, from := range update.From {
		if unit.Status == from {
			matched = true
			break
		}
	}
	if !matched {
		return Unit{}, ErrNotFound
	}
	unit.Status = update.To
	if update.ClearClaim {
		unit.SaleInvoiceItemID = uuid.Nil
	} else if update.ClaimID != uuid.Nil {
		unit.SaleInvoiceItemID = update.ClaimID
	}
	return *unit, nil
}

type memoryProductPort struct {
	products map[uuid.UUID]products.Product
}

func (m *memoryProductPort) Get(_ context.Context, id uuid.UUID) (products.Product, error) {
	product, ok := m.products[id]
	if !ok {
		return products.Product{}, products.ErrNotFound
	}
	return product, nil
}

type memoryLedgerPort struct {
	entries []ledger.Entry
	failing bool
}

func (m *memoryLedgerPort) TryRecord(_ context.Context, entry ledger.Entry) bool {
	if m.failing {
		return false
	}
	m.entries = append(m.entries, entry)
	return true
}

func newTestRegistry(t *testing.T) (*Registry, *memorySerialRepo, *memoryProductPort, *memoryLedgerPort) {
	t.Helper()
	repo := newMemorySerialRepo()
	catalog := &memoryProductPort{products: map[uuid.UUID]products.Product{}}
	recorder := &memoryLedgerPort{}
	registry := NewRegistry(repo, catalog, recorder, slog.Default())
	return registry, repo, catalog, recorder
}

func seedSerializedProduct(catalog *memoryProductPort) uuid.UUID {
	id := uuid.New()
	catalog.products[id] = products.Product{ID: id, Name: "Router X1", IsSerialized: true}
	return id
}

func TestCreateBatchEmitsSingleAggregatedReceipt(t *testing.T) {
	registry, repo, catalog, recorder := newTestRegistry(t)
	productID := seedSerializedProduct(catalog)
	grnItemID := uuid.New()

	result, err := registry.CreateBatch(context.Background(), productID, []string{" SN-1 ", "SN-2", "SN-2", "", "SN-3"}, grnItemID, uuid.New())
	require.NoError(t, err)
	require.Equal(t, []string{"SN-1", "SN-2", "SN-3"}, result.SerialNumbers)
	require.Empty(t, result.Warnings)

	require.Len(t, recorder.entries, 1)
	entry := recorder.entries[0]
	require.Equal(t, ledger.EntryReceipt, entry.Type)
	require.Equal(t, 3, entry.QuantityChange)
	require.Equal(t, ledger.ReferenceGRNItem, entry.ReferenceType)
	require.Equal(t, grnItemID, entry.ReferenceID)

	unit, err := repo.GetBySerial(context.Background(), productID, "SN-2")
	require.NoError(t, err)
	require.Equal(t, StatusAvailable, unit.Status)
}

func TestCreateBatchEmptyAfterNormalizationIsNoOp(t *testing.T) {
	registry, repo, catalog, recorder := newTestRegistry(t)
	productID := seedSerializedProduct(catalog)

	result, err := registry.CreateBatch(context.Background(), productID, []string{"  ", ""}, uuid.New(), uuid.New())
	require.NoError(t, err)
	require.Empty(t, result.SerialNumbers)
	require.Empty(t, recorder.entries)
	require.Empty(t, repo.units)
}

func TestCreateBatchLedgerFailureIsWarningOnly(t *testing.T) {
	registry, _, catalog, recorder := newTestRegistry(t)
	recorder.failing = true
	productID := seedSerializedProduct(catalog)

	result, err := registry.CreateBatch(context.Background(), productID, []string{"SN-1"}, uuid.New(), uuid.New())
	require.NoError(t, err)
	require.Equal(t, []string{"SN-1"}, result.SerialNumbers)
	require.Len(t, result.Warnings, 1)
}

func TestValidateForOperationRejectsNonSerializedProduct(t *testing.T) {
	registry, _, catalog, _ := newTestRegistry(t)
	id := uuid.New()
	catalog.products[id] = products.Product{ID: id, Name: "Bulk Cable", IsSerialized: false}

	_, err := registry.ValidateForOperation(context.Background(), id, []string{"SN-1"}, OperationSell, nil)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestValidateForOperationStatusRules(t *testing.T) {
	registry, repo, catalog, _ := newTestRegistry(t)
	productID := seedSerializedProduct(catalog)
	_, err := registry.CreateBatch(context.Background(), productID, []string{"SN-A", "SN-R"}, uuid.New(), uuid.New())
	require.NoError(t, err)
	repo.units[serialKey(productID, "SN-R")].Status = StatusReserved

	// reserve requires available
	_, err = registry.ValidateForOperation(context.Background(), productID, []string{"SN-R"}, OperationReserve, nil)
	require.ErrorIs(t, err, ErrInvalidState)

	// sell accepts both available and reserved
	serialsOK, err := registry.ValidateForOperation(context.Background(), productID, []string{"SN-A", "SN-R"}, OperationSell, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"SN-A", "SN-R"}, serialsOK)

	_, err = registry.ValidateForOperation(context.Background(), productID, []string{"SN-MISSING"}, OperationSell, nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestValidateForOperationHonorsHeldClaims(t *testing.T) {
	registry, repo, catalog, _ := newTestRegistry(t)
	productID := seedSerializedProduct(catalog)
	_, err := registry.CreateBatch(context.Background(), productID, []string{"SN-1"}, uuid.New(), uuid.New())
	require.NoError(t, err)

	claimRef := uuid.New()
	repo.units[serialKey(productID, "SN-1")].Status = StatusReserved
	repo.units[serialKey(productID, "SN-1")].SaleInvoiceItemID = claimRef

	// a stranger cannot re-reserve the unit
	_, err = registry.ValidateForOperation(context.Background(), productID, []string{"SN-1"}, OperationReserve, nil)
	require.ErrorIs(t, err, ErrInvalidState)

	// the claim holder can
	serialsOK, err := registry.ValidateForOperation(context.Background(), productID, []string{"SN-1"}, OperationReserve, map[uuid.UUID]bool{claimRef: true})
	require.NoError(t, err)
	require.Equal(t, []string{"SN-1"}, serialsOK)
}

func TestExistingReportsRegisteredSerials(t *testing.T) {
	registry, _, catalog, _ := newTestRegistry(t)
	productID := seedSerializedProduct(catalog)
	_, err := registry.CreateBatch(context.Background(), productID, []string{"SN-1", "SN-2"}, uuid.New(), uuid.New())
	require.NoError(t, err)

	existing, err := registry.Existing(context.Background(), productID, []string{"SN-1", "SN-3"})
	require.NoError(t, err)
	require.True(t, existing["SN-1"])
	require.False(t, existing["SN-3"])
}

func TestClaimReserveAndFinalize(t *testing.T) {
	registry, repo, catalog, recorder := newTestRegistry(t)
	productID := seedSerializedProduct(catalog)
	_, err := registry.CreateBatch(context.Background(), productID, []string{"SN-1", "SN-2"}, uuid.New(), uuid.New())
	require.NoError(t, err)
	recorder.entries = nil
	claimRef := uuid.New()

	result, err := registry.Claim(context.Background(), productID, []string{"SN-1", "SN-2"}, claimRef, false, uuid.New())
	require.NoError(t, err)
	require.Len(t, result.SerialNumbers, 2)
	require.Len(t, recorder.entries, 2)
	for _, entry := range recorder.entries {
		require.Equal(t, ledger.EntryReservation, entry.Type)
		require.Equal(t, -1, entry.QuantityChange)
		require.Equal(t, claimRef, entry.ReferenceID)
	}
	require.Equal(t, StatusReserved, repo.units[serialKey(productID, "SN-1")].Status)
	require.Equal(t, claimRef, repo.units[serialKey(productID, "SN-1")].SaleInvoiceItemID)

	// finalizing the same claim moves reserved units to sold
	recorder.entries = nil
	result, err = registry.Claim(context.Background(), productID, []string{"SN-1", "SN-2"}, claimRef, true, uuid.New())
	require.NoError(t, err)
	require.Len(t, result.SerialNumbers, 2)
	require.Equal(t, StatusSold, repo.units[serialKey(productID, "SN-1")].Status)
	require.Equal(t, ledger.EntrySale, recorder.entries[0].Type)
}

func TestClaimBlockedSerialReportsCurrentStatus(t *testing.T) {
	registry, repo, catalog, _ := newTestRegistry(t)
	productID := seedSerializedProduct(catalog)
	_, err := registry.CreateBatch(context.Background(), productID, []string{"SN-1"}, uuid.New(), uuid.New())
	require.NoError(t, err)
	repo.units[serialKey(productID, "SN-1")].Status = StatusSold

	_, err = registry.Claim(context.Background(), productID, []string{"SN-1"}, uuid.New(), false, uuid.New())
	require.ErrorIs(t, err, ErrInvalidState)
	require.Contains(t, err.Error(), "sold")

	_, err = registry.Claim(context.Background(), productID, []string{"SN-404"}, uuid.New(), false, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReleaseClaimFreesOnlyReservedUnits(t *testing.T) {
	registry, repo, catalog, recorder := newTestRegistry(t)
	productID := seedSerializedProduct(catalog)
	_, err := registry.CreateBatch(context.Background(), productID, []string{"SN-1", "SN-2", "SN-3"}, uuid.New(), uuid.New())
	require.NoError(t, err)
	claimRef := uuid.New()

	_, err = registry.Claim(context.Background(), productID, []string{"SN-1", "SN-2"}, claimRef, false, uuid.New())
	require.NoError(t, err)
	// SN-2 was shipped in the meantime
	repo.units[serialKey(productID, "SN-2")].Status = StatusSold
	recorder.entries = nil

	released, err := registry.ReleaseClaim(context.Background(), claimRef, uuid.New())
	require.NoError(t, err)
	require.Len(t, released, 1)
	require.Equal(t, "SN-1", released[0].SerialNumber)
	require.Equal(t, StatusAvailable, repo.units[serialKey(productID, "SN-1")].Status)
	require.Equal(t, uuid.Nil, repo.units[serialKey(productID, "SN-1")].SaleInvoiceItemID)
	require.Equal(t, StatusSold, repo.units[serialKey(productID, "SN-2")].Status)

	require.Len(t, recorder.entries, 1)
	require.Equal(t, ledger.EntryReservationRelease, recorder.entries[0].Type)
	require.Equal(t, +1, recorder.entries[0].QuantityChange)
}

func TestUpdateStatusStateGraph(t *testing.T) {
	registry, _, catalog, recorder := newTestRegistry(t)
	productID := seedSerializedProduct(catalog)
	actor := uuid.New()
	_, err := registry.CreateBatch(context.Background(), productID, []string{"SN-1"}, uuid.New(), actor)
	require.NoError(t, err)
	recorder.entries = nil

	// available -> available is accepted and emits nothing
	unit, err := registry.UpdateStatus(context.Background(), productID, "SN-1", StatusAvailable, "", actor)
	require.NoError(t, err)
	require.Equal(t, StatusAvailable, unit.Status)
	require.Empty(t, recorder.entries)

	// available -> returned is not in the graph
	_, err = registry.UpdateStatus(context.Background(), productID, "SN-1", StatusReturned, "", actor)
	require.ErrorIs(t, err, ErrInvalidState)

	// available -> sold -> returned walks the graph with ledger entries
	_, err = registry.UpdateStatus(context.Background(), productID, "SN-1", StatusSold, "", actor)
	require.NoError(t, err)
	unit, err = registry.Return(context.Background(), productID, "SN-1", "customer return", actor)
	require.NoError(t, err)
	require.Equal(t, StatusReturned, unit.Status)

	require.Len(t, recorder.entries, 2)
	require.Equal(t, ledger.EntrySale, recorder.entries[0].Type)
	require.Equal(t, -1, recorder.entries[0].QuantityChange)
	require.Equal(t, ledger.EntryReturn, recorder.entries[1].Type)
	require.Equal(t, +1, recorder.entries[1].QuantityChange)
	require.Equal(t, "customer return", recorder.entries[1].Notes)

	// returned is terminal for scrap purposes too
	_, err = registry.Scrap(context.Background(), productID, "SN-1", "", actor)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestScrapFromEachUsableStatus(t *testing.T) {
	registry, repo, catalog, recorder := newTestRegistry(t)
	productID := seedSerializedProduct(catalog)
	actor := uuid.New()
	_, err := registry.CreateBatch(context.Background(), productID, []string{"SN-A", "SN-R", "SN-S"}, uuid.New(), actor)
	require.NoError(t, err)
	repo.units[serialKey(productID, "SN-R")].Status = StatusReserved
	repo.units[serialKey(productID, "SN-S")].Status = StatusSold
	recorder.entries = nil

	for _, serial := range []string{"SN-A", "SN-R", "SN-S"} {
		unit, err := registry.Scrap(context.Background(), productID, serial, "damaged", actor)
		require.NoError(t, err)
		require.Equal(t, StatusScrapped, unit.Status)
	}
	require.Len(t, recorder.entries, 3)
	for _, entry := range recorder.entries {
		require.Equal(t, ledger.EntryScrap, entry.Type)
		require.Equal(t, -1, entry.QuantityChange)
	}
}

func TestCreateBatchRejectsDuplicateExistingSerial(t *testing.T) {
	registry, _, catalog, _ := newTestRegistry(t)
	productID := seedSerializedProduct(catalog)
	_, err := registry.CreateBatch(context.Background(), productID, []string{"SN-1"}, uuid.New(), uuid.New())
	require.NoError(t, err)

	_, err = registry.CreateBatch(context.Background(), productID, []string{"SN-1"}, uuid.New(), uuid.New())
	require.ErrorIs(t, err, ErrInvalidInput)
}
