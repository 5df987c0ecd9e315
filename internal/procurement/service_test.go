package procurement

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/alsubhan/versal/internal/ledger"
	"github.com/alsubhan/versal/internal/masterdata/products"
	"github.com/alsubhan/versal/internal/pricing"
	"github.com/alsubhan/versal/internal/serials"
	"github.com/alsubhan/versal/internal/shared"
)

type memoryRepo struct {
	orders   map[uuid.UUID]*PurchaseOrder
	receipts map[uuid.UUID]*GoodsReceipt
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		orders:   map[uuid.UUID]*PurchaseOrder{},
		receipts: map[uuid.UUID]*GoodsReceipt{},
	}
}

func (m *memoryRepo) GetPurchaseOrder(_ context.Context, id uuid.UUID) (PurchaseOrder, error) {
	po, ok := m.orders[id]
	if !ok {
		return PurchaseOrder{}, ErrNotFound
	}
	return *po, nil
}

func (m *memoryRepo) ListPurchaseOrders(_ context.Context) ([]PurchaseOrder, error) {
	out := []PurchaseOrder{}
	for _, po := range m.orders {
		out = append(out, *po)
	}
	return out, nil
}

func (m *memoryRepo) GetGoodsReceipt(_ context.Context, id uuid.UUID) (GoodsReceipt, error) {
	grn, ok := m.receipts[id]
	if !ok {
		return GoodsReceipt{}, ErrNotFound
	}
	return *grn, nil
}

func (m *memoryRepo) ListGoodsReceipts(_ context.Context, poID uuid.UUID) ([]GoodsReceipt, error) {
	out := []GoodsReceipt{}
	for _, grn := range m.receipts {
		if poID != uuid.Nil && grn.PurchaseOrderID != poID {
			continue
		}
		out = append(out, *grn)
	}
	return out, nil
}

func (m *memoryRepo) ListCompletedReceiptItems(_ context.Context, poID uuid.UUID) ([]GoodsReceiptItem, error) {
	out := []GoodsReceiptItem{}
	for _, grn := range m.receipts {
		if grn.PurchaseOrderID != poID || grn.Status != GRNStatusCompleted {
			continue
		}
		out = append(out, grn.Items...)
	}
	return out, nil
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) InsertPurchaseOrder(_ context.Context, po *PurchaseOrder) error {
	for _, existing := range m.orders {
		if existing.OrderNumber == po.OrderNumber {
			return ErrDuplicate
		}
	}
	copied := *po
	m.orders[po.ID] = &copied
	return nil
}

func (m *memoryRepo) InsertPurchaseOrderItems(_ context.Context, items []PurchaseOrderItem) error {
	for _, item := range items {
		po, ok := m.orders[item.PurchaseOrderID]
		if !ok {
			return ErrNotFound
		}
		po.Items = append(po.Items, item)
	}
	return nil
}

func (m *memoryRepo) UpdatePurchaseOrder(_ context.Context, po *PurchaseOrder) error {
	existing, ok := m.orders[po.ID]
	if !ok {
		return ErrNotFound
	}
	items := existing.Items
	copied := *po
	copied.Items = items
	m.orders[po.ID] = &copied
	return nil
}

func (m *memoryRepo) DeletePurchaseOrderItems(_ context.Context, poID uuid.UUID) error {
	if po, ok := m.orders[poID]; ok {
		po.Items = nil
	}
	return nil
}

func (m *memoryRepo) DeletePurchaseOrder(_ context.Context, poID uuid.UUID) error {
	delete(m.orders, poID)
	return nil
}

func (m *memoryRepo) SetPurchaseOrderStatus(_ context.Context, poID uuid.UUID, status POStatus) error {
	po, ok := m.orders[poID]
	if !ok {
		return ErrNotFound
	}
	po.Status = status
	return nil
}

func (m *memoryRepo) SetPurchaseOrderItemReceived(_ context.Context, itemID uuid.UUID, received int) error {
	for _, po := range m.orders {
		for i := range po.Items {
			if po.Items[i].ID == itemID {
				po.Items[i].ReceivedQuantity = received
				return nil
			}
		}
	}
	return ErrNotFound
}

func (m *memoryRepo) InsertGoodsReceipt(_ context.Context, grn *GoodsReceipt) error {
	for _, existing := range m.receipts {
		if existing.GRNNumber == grn.GRNNumber {
			return ErrDuplicate
		}
	}
	copied := *grn
	copied.Items = nil
	m.receipts[grn.ID] = &copied
	return nil
}

func (m *memoryRepo) InsertGoodsReceiptItems(_ context.Context, items []GoodsReceiptItem) error {
	for _, item := range items {
		grn, ok := m.receipts[item.GoodsReceiptID]
		if !ok {
			return ErrNotFound
		}
		grn.Items = append(grn.Items, item)
	}
	return nil
}

func (m *memoryRepo) UpdateGoodsReceipt(_ context.Context, grn *GoodsReceipt) error {
	existing, ok := m.receipts[grn.ID]
	if !ok {
		return ErrNotFound
	}
	items := existing.Items
	copied := *grn
	copied.Items = items
	m.receipts[grn.ID] = &copied
	return nil
}

func (m *memoryRepo) DeleteGoodsReceiptItems(_ context.Context, grnID uuid.UUID) error {
	if grn, ok := m.receipts[grnID]; ok {
		grn.Items = nil
	}
	return nil
}

func (m *memoryRepo) DeleteGoodsReceipt(_ context.Context, grnID uuid.UUID) error {
	delete(m.receipts, grnID)
	return nil
}

type memoryCatalog struct {
	products map[uuid.UUID]products.Product
	taxRates map[uuid.UUID]float64
	taxTypes map[uuid.UUID]pricing.TaxType
}

func newMemoryCatalog() *memoryCatalog {
	return &memoryCatalog{
		products: map[uuid.UUID]products.Product{},
		taxRates: map[uuid.UUID]float64{},
		taxTypes: map[uuid.UUID]pricing.TaxType{},
	}
}

func (m *memoryCatalog) Get(_ context.Context, id uuid.UUID) (products.Product, error) {
	product, ok := m.products[id]
	if !ok {
		return products.Product{}, products.ErrNotFound
	}
	return product, nil
}

func (m *memoryCatalog) PurchaseTax(_ context.Context, id uuid.UUID) (pricing.TaxType, float64, error) {
	if _, ok := m.products[id]; !ok {
		return "", 0, products.ErrNotFound
	}
	taxType, ok := m.taxTypes[id]
	if !ok {
		taxType = pricing.TaxExclusive
	}
	return taxType, m.taxRates[id], nil
}

func (m *memoryCatalog) add(serialized bool, rate float64) uuid.UUID {
	id := uuid.New()
	m.products[id] = products.Product{ID: id, Name: "P-" + id.String()[:8], IsSerialized: serialized}
	m.taxRates[id] = rate
	return id
}

type stubSerialPort struct {
	batches []struct {
		productID uuid.UUID
		serials   []string
	}
	registered map[string]bool
	err        error
}

func serialKey(productID uuid.UUID, serial string) string {
	return productID.String() + "/" + serial
}

func (s *stubSerialPort) CreateBatch(_ context.Context, productID uuid.UUID, serialNumbers []string, _ uuid.UUID, _ uuid.UUID) (serials.BatchResult, error) {
	if s.err != nil {
		return serials.BatchResult{}, s.err
	}
	if s.registered == nil {
		s.registered = map[string]bool{}
	}
	for _, serial := range serialNumbers {
		s.registered[serialKey(productID, serial)] = true
	}
	s.batches = append(s.batches, struct {
		productID uuid.UUID
		serials   []string
	}{productID, serialNumbers})
	return serials.BatchResult{SerialNumbers: serialNumbers}, nil
}

func (s *stubSerialPort) Existing(_ context.Context, productID uuid.UUID, serialNumbers []string) (map[string]bool, error) {
	existing := map[string]bool{}
	for _, serial := range serialNumbers {
		if s.registered[serialKey(productID, serial)] {
			existing[serial] = true
		}
	}
	return existing, nil
}

type stubLedger struct {
	entries []ledger.Entry
}

func (s *stubLedger) TryRecord(_ context.Context, entry ledger.Entry) bool {
	s.entries = append(s.entries, entry)
	return true
}

type stubIdempotency struct {
	keys map[string]bool
}

func (s *stubIdempotency) CheckAndInsert(_ context.Context, key, _ string) error {
	if s.keys == nil {
		s.keys = map[string]bool{}
	}
	if s.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	s.keys[key] = true
	return nil
}

func (s *stubIdempotency) Delete(_ context.Context, key string) error {
	delete(s.keys, key)
	return nil
}

func newTestService(t *testing.T) (*Service, *memoryRepo, *memoryCatalog, *stubSerialPort, *stubLedger) {
	t.Helper()
	repo := newMemoryRepo()
	catalog := newMemoryCatalog()
	serialPort := &stubSerialPort{}
	ledgerPort := &stubLedger{}
	svc := NewService(repo, catalog, serialPort, ledgerPort, &stubIdempotency{}, slog.Default())
	return svc, repo, catalog, serialPort, ledgerPort
}

func orderInput(productID uuid.UUID, quantity int) PurchaseOrderInput {
	return PurchaseOrderInput{
		OrderNumber: "PO-1001",
		SupplierID:  uuid.New(),
		OrderDate:   time.Now(),
		Items:       []PurchaseOrderItemInput{{ProductID: productID, Quantity: quantity, UnitCost: 50}},
	}
}

func receiptInput(po PurchaseOrder, accepted int, status GRNStatus) GoodsReceiptInput {
	return GoodsReceiptInput{
		GRNNumber:       "GRN-" + uuid.NewString()[:8],
		PurchaseOrderID: po.ID,
		SupplierID:      po.SupplierID,
		Status:          status,
		ReceivedDate:    time.Now(),
		Items: []GoodsReceiptItemInput{{
			PurchaseOrderItemID: po.Items[0].ID,
			ProductID:           po.Items[0].ProductID,
			OrderedQuantity:     po.Items[0].Quantity,
			ReceivedQuantity:    accepted,
			UnitCost:            50,
		}},
	}
}

func TestCreatePurchaseOrderRejectsReceivedStatus(t *testing.T) {
	svc, _, catalog, _, _ := newTestService(t)
	productID := catalog.add(false, 0)

	input := orderInput(productID, 5)
	input.Status = POStatusReceived
	_, err := svc.CreatePurchaseOrder(context.Background(), input, uuid.New())
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreatePurchaseOrderComputesTotals(t *testing.T) {
	svc, _, catalog, _, _ := newTestService(t)
	productID := catalog.add(false, 0.10)

	po, err := svc.CreatePurchaseOrder(context.Background(), orderInput(productID, 2), uuid.New())
	require.NoError(t, err)
	require.Equal(t, POStatusDraft, po.Status)
	require.InDelta(t, 100.0, po.Subtotal, 0.001)
	require.InDelta(t, 10.0, po.TaxAmount, 0.001)
	require.InDelta(t, 110.0, po.TotalAmount, 0.001)
}

func TestUpdatePurchaseOrderStatusWhitelist(t *testing.T) {
	svc, repo, catalog, _, _ := newTestService(t)
	productID := catalog.add(false, 0)
	po, err := svc.CreatePurchaseOrder(context.Background(), orderInput(productID, 5), uuid.New())
	require.NoError(t, err)

	repo.orders[po.ID].Status = POStatusApproved
	_, err = svc.UpdatePurchaseOrder(context.Background(), po.ID, orderInput(productID, 6), uuid.New())
	require.ErrorIs(t, err, ErrInvalidState)

	require.ErrorIs(t, svc.DeletePurchaseOrder(context.Background(), po.ID), ErrInvalidState)
}

func TestReconcileFullCoverageMarksReceived(t *testing.T) {
	svc, repo, catalog, _, _ := newTestService(t)
	productID := catalog.add(false, 0)
	po, err := svc.CreatePurchaseOrder(context.Background(), orderInput(productID, 10), uuid.New())
	require.NoError(t, err)
	repo.orders[po.ID].Status = POStatusApproved

	_, err = svc.CreateGoodsReceipt(context.Background(), receiptInput(po, 4, GRNStatusCompleted), uuid.New())
	require.NoError(t, err)
	require.Equal(t, POStatusApproved, repo.orders[po.ID].Status)
	require.Equal(t, 4, repo.orders[po.ID].Items[0].ReceivedQuantity)

	_, err = svc.CreateGoodsReceipt(context.Background(), receiptInput(po, 6, GRNStatusCompleted), uuid.New())
	require.NoError(t, err)
	require.Equal(t, POStatusReceived, repo.orders[po.ID].Status)
	require.Equal(t, 10, repo.orders[po.ID].Items[0].ReceivedQuantity)
}

func TestReconcileIgnoresDraftReceipts(t *testing.T) {
	svc, repo, catalog, _, _ := newTestService(t)
	productID := catalog.add(false, 0)
	po, err := svc.CreatePurchaseOrder(context.Background(), orderInput(productID, 5), uuid.New())
	require.NoError(t, err)
	repo.orders[po.ID].Status = POStatusApproved

	_, err = svc.CreateGoodsReceipt(context.Background(), receiptInput(po, 5, GRNStatusDraft), uuid.New())
	require.NoError(t, err)
	require.Equal(t, POStatusApproved, repo.orders[po.ID].Status)
	require.Equal(t, 0, repo.orders[po.ID].Items[0].ReceivedQuantity)
}

func TestReconcileIgnoresUnlinkedLines(t *testing.T) {
	svc, repo, catalog, _, _ := newTestService(t)
	productID := catalog.add(false, 0)
	po, err := svc.CreatePurchaseOrder(context.Background(), orderInput(productID, 5), uuid.New())
	require.NoError(t, err)
	repo.orders[po.ID].Status = POStatusApproved

	input := receiptInput(po, 5, GRNStatusCompleted)
	input.Items[0].PurchaseOrderItemID = uuid.Nil
	_, err = svc.CreateGoodsReceipt(context.Background(), input, uuid.New())
	require.NoError(t, err)
	require.Equal(t, POStatusApproved, repo.orders[po.ID].Status)
}

func TestReconcileCancelledOrderIsSticky(t *testing.T) {
	svc, repo, catalog, _, _ := newTestService(t)
	productID := catalog.add(false, 0)
	po, err := svc.CreatePurchaseOrder(context.Background(), orderInput(productID, 5), uuid.New())
	require.NoError(t, err)
	repo.orders[po.ID].Status = POStatusCancelled

	status, err := svc.Reconcile(context.Background(), po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusCancelled, status)
}

func TestReconcileOrderWithoutLinesIsReceived(t *testing.T) {
	svc, repo, _, _, _ := newTestService(t)
	po := &PurchaseOrder{ID: uuid.New(), OrderNumber: "PO-EMPTY", SupplierID: uuid.New(), Status: POStatusApproved}
	repo.orders[po.ID] = po

	status, err := svc.Reconcile(context.Background(), po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusReceived, status)
	require.Equal(t, POStatusReceived, repo.orders[po.ID].Status)
}

func TestReconcileRevertsReceivedWhenCoverageDrops(t *testing.T) {
	svc, repo, catalog, _, _ := newTestService(t)
	productID := catalog.add(false, 0)
	po, err := svc.CreatePurchaseOrder(context.Background(), orderInput(productID, 5), uuid.New())
	require.NoError(t, err)
	repo.orders[po.ID].Status = POStatusApproved

	result, err := svc.CreateGoodsReceipt(context.Background(), receiptInput(po, 5, GRNStatusCompleted), uuid.New())
	require.NoError(t, err)
	require.Equal(t, POStatusReceived, repo.orders[po.ID].Status)

	// the receipt is downgraded out of completed
	repo.receipts[result.Receipt.ID].Status = GRNStatusRejected
	status, err := svc.Reconcile(context.Background(), po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusApproved, status)
	require.Equal(t, POStatusApproved, repo.orders[po.ID].Status)
}

func TestReconcileRequiresEveryLineCovered(t *testing.T) {
	svc, repo, catalog, _, _ := newTestService(t)
	productA := catalog.add(false, 0)
	productB := catalog.add(false, 0)

	input := PurchaseOrderInput{
		OrderNumber: "PO-2001",
		SupplierID:  uuid.New(),
		OrderDate:   time.Now(),
		Items: []PurchaseOrderItemInput{
			{ProductID: productA, Quantity: 10, UnitCost: 50},
			{ProductID: productB, Quantity: 5, UnitCost: 30},
		},
	}
	po, err := svc.CreatePurchaseOrder(context.Background(), input, uuid.New())
	require.NoError(t, err)
	repo.orders[po.ID].Status = POStatusApproved

	grnInput := GoodsReceiptInput{
		GRNNumber:       "GRN-TWO-LINE",
		PurchaseOrderID: po.ID,
		SupplierID:      po.SupplierID,
		Status:          GRNStatusCompleted,
		ReceivedDate:    time.Now(),
		Items: []GoodsReceiptItemInput{
			{PurchaseOrderItemID: po.Items[0].ID, ProductID: productA, OrderedQuantity: 10, ReceivedQuantity: 10, UnitCost: 50},
			{PurchaseOrderItemID: po.Items[1].ID, ProductID: productB, OrderedQuantity: 5, ReceivedQuantity: 4, UnitCost: 30},
		},
	}
	_, err = svc.CreateGoodsReceipt(context.Background(), grnInput, uuid.New())
	require.NoError(t, err)
	// one short line keeps the whole order open
	require.Equal(t, POStatusApproved, repo.orders[po.ID].Status)
	require.Equal(t, 10, repo.orders[po.ID].Items[0].ReceivedQuantity)
	require.Equal(t, 4, repo.orders[po.ID].Items[1].ReceivedQuantity)

	topUp := GoodsReceiptInput{
		GRNNumber:       "GRN-TOP-UP",
		PurchaseOrderID: po.ID,
		SupplierID:      po.SupplierID,
		Status:          GRNStatusCompleted,
		ReceivedDate:    time.Now(),
		Items: []GoodsReceiptItemInput{
			{PurchaseOrderItemID: po.Items[1].ID, ProductID: productB, OrderedQuantity: 5, ReceivedQuantity: 1, UnitCost: 30},
		},
	}
	result, err := svc.CreateGoodsReceipt(context.Background(), topUp, uuid.New())
	require.NoError(t, err)
	require.Equal(t, POStatusReceived, repo.orders[po.ID].Status)
	require.Equal(t, 5, repo.orders[po.ID].Items[1].ReceivedQuantity)

	// losing the top-up reopens the order
	repo.receipts[result.Receipt.ID].Status = GRNStatusRejected
	status, err := svc.Reconcile(context.Background(), po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusApproved, status)
}

func TestCreateGoodsReceiptDirectModeSynthesizesOrder(t *testing.T) {
	svc, repo, catalog, _, ledgerPort := newTestService(t)
	productID := catalog.add(false, 0)

	input := GoodsReceiptInput{
		GRNNumber:    "GRN-DIRECT-1",
		SupplierID:   uuid.New(),
		Status:       GRNStatusCompleted,
		ReceivedDate: time.Now(),
		Items: []GoodsReceiptItemInput{{
			ProductID:        productID,
			ReceivedQuantity: 3,
			UnitCost:         20,
		}},
	}
	result, err := svc.CreateGoodsReceipt(context.Background(), input, uuid.New())
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, result.Receipt.PurchaseOrderID)

	po := repo.orders[result.Receipt.PurchaseOrderID]
	require.NotNil(t, po)
	require.Equal(t, POStatusReceived, po.Status) // fully covered immediately
	require.Len(t, po.Items, 1)
	require.Equal(t, 3, po.Items[0].Quantity)
	require.Contains(t, po.Notes, "GRN-DIRECT-1")

	// non-serialized line got a receipt transaction
	require.Len(t, ledgerPort.entries, 1)
	require.Equal(t, ledger.EntryReceipt, ledgerPort.entries[0].Type)
	require.Equal(t, 3, ledgerPort.entries[0].QuantityChange)
}

func TestCreateGoodsReceiptRegistersSerials(t *testing.T) {
	svc, repo, catalog, serialPort, ledgerPort := newTestService(t)
	productID := catalog.add(true, 0)
	po, err := svc.CreatePurchaseOrder(context.Background(), orderInput(productID, 2), uuid.New())
	require.NoError(t, err)
	repo.orders[po.ID].Status = POStatusApproved

	input := receiptInput(po, 2, GRNStatusCompleted)
	input.Items[0].SerialNumbers = []string{"SN-1", "SN-2"}
	result, err := svc.CreateGoodsReceipt(context.Background(), input, uuid.New())
	require.NoError(t, err)
	require.Empty(t, result.Warnings)

	require.Len(t, serialPort.batches, 1)
	require.Equal(t, []string{"SN-1", "SN-2"}, serialPort.batches[0].serials)
	// serialized lines are recorded by the serial registry, not here
	require.Empty(t, ledgerPort.entries)
}

func TestCreateGoodsReceiptSerialCountMustMatchAccepted(t *testing.T) {
	svc, repo, catalog, _, _ := newTestService(t)
	productID := catalog.add(true, 0)
	po, err := svc.CreatePurchaseOrder(context.Background(), orderInput(productID, 2), uuid.New())
	require.NoError(t, err)
	repo.orders[po.ID].Status = POStatusApproved

	input := receiptInput(po, 2, GRNStatusCompleted)
	input.Items[0].SerialNumbers = []string{"SN-1"}
	_, err = svc.CreateGoodsReceipt(context.Background(), input, uuid.New())
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestGoodsReceiptDerivesAcceptedFromRejected(t *testing.T) {
	svc, repo, catalog, _, _ := newTestService(t)
	productID := catalog.add(false, 0)
	po, err := svc.CreatePurchaseOrder(context.Background(), orderInput(productID, 10), uuid.New())
	require.NoError(t, err)
	repo.orders[po.ID].Status = POStatusApproved

	input := receiptInput(po, 10, GRNStatusCompleted)
	input.Items[0].RejectedQuantity = 7
	result, err := svc.CreateGoodsReceipt(context.Background(), input, uuid.New())
	require.NoError(t, err)
	require.Equal(t, 3, result.Receipt.Items[0].AcceptedQuantity)

	// only the three accepted units count toward completion
	require.Equal(t, POStatusApproved, repo.orders[po.ID].Status)
	require.Equal(t, 3, repo.orders[po.ID].Items[0].ReceivedQuantity)
}

func TestGoodsReceiptRejectedCannotExceedReceived(t *testing.T) {
	svc, repo, catalog, _, _ := newTestService(t)
	productID := catalog.add(false, 0)
	po, err := svc.CreatePurchaseOrder(context.Background(), orderInput(productID, 10), uuid.New())
	require.NoError(t, err)
	repo.orders[po.ID].Status = POStatusApproved

	input := receiptInput(po, 1, GRNStatusCompleted)
	input.Items[0].RejectedQuantity = 2
	_, err = svc.CreateGoodsReceipt(context.Background(), input, uuid.New())
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Empty(t, repo.receipts)
}

func TestGoodsReceiptPricedOnReceivedQuantity(t *testing.T) {
	svc, repo, catalog, _, _ := newTestService(t)
	productID := catalog.add(false, 0.10)
	po, err := svc.CreatePurchaseOrder(context.Background(), orderInput(productID, 10), uuid.New())
	require.NoError(t, err)
	repo.orders[po.ID].Status = POStatusApproved

	input := receiptInput(po, 5, GRNStatusCompleted)
	input.Items[0].RejectedQuantity = 2
	result, err := svc.CreateGoodsReceipt(context.Background(), input, uuid.New())
	require.NoError(t, err)
	// all five received units are billed even though two were rejected
	require.InDelta(t, 250.0, result.Receipt.Subtotal, 0.001)
	require.InDelta(t, 25.0, result.Receipt.TaxAmount, 0.001)
	require.InDelta(t, 275.0, result.Receipt.TotalAmount, 0.001)
	require.Equal(t, 3, result.Receipt.Items[0].AcceptedQuantity)
}

func TestCreateGoodsReceiptDuplicateNumberRejected(t *testing.T) {
	svc, repo, catalog, _, _ := newTestService(t)
	productID := catalog.add(false, 0)
	po, err := svc.CreatePurchaseOrder(context.Background(), orderInput(productID, 5), uuid.New())
	require.NoError(t, err)
	repo.orders[po.ID].Status = POStatusApproved

	input := receiptInput(po, 2, GRNStatusDraft)
	input.GRNNumber = "GRN-SAME"
	_, err = svc.CreateGoodsReceipt(context.Background(), input, uuid.New())
	require.NoError(t, err)

	input.Items[0].ReceivedQuantity = 3
	_, err = svc.CreateGoodsReceipt(context.Background(), input, uuid.New())
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestUpdateGoodsReceiptStatusWhitelist(t *testing.T) {
	svc, repo, catalog, _, _ := newTestService(t)
	productID := catalog.add(false, 0)
	po, err := svc.CreatePurchaseOrder(context.Background(), orderInput(productID, 5), uuid.New())
	require.NoError(t, err)
	repo.orders[po.ID].Status = POStatusApproved

	result, err := svc.CreateGoodsReceipt(context.Background(), receiptInput(po, 5, GRNStatusCompleted), uuid.New())
	require.NoError(t, err)

	_, err = svc.UpdateGoodsReceipt(context.Background(), result.Receipt.ID, receiptInput(po, 4, GRNStatusCompleted), uuid.New())
	require.ErrorIs(t, err, ErrInvalidState)

	require.ErrorIs(t, svc.DeleteGoodsReceipt(context.Background(), result.Receipt.ID), ErrInvalidState)
}

func TestUpdateGoodsReceiptRegistersOnlyAddedSerials(t *testing.T) {
	svc, repo, catalog, serialPort, _ := newTestService(t)
	productID := catalog.add(true, 0)
	po, err := svc.CreatePurchaseOrder(context.Background(), orderInput(productID, 3), uuid.New())
	require.NoError(t, err)
	repo.orders[po.ID].Status = POStatusApproved

	input := receiptInput(po, 2, GRNStatusDraft)
	input.Items[0].SerialNumbers = []string{"SN-1", "SN-2"}
	result, err := svc.CreateGoodsReceipt(context.Background(), input, uuid.New())
	require.NoError(t, err)
	require.Len(t, serialPort.batches, 1)

	update := receiptInput(po, 3, GRNStatusDraft)
	update.Items[0].SerialNumbers = []string{"SN-1", "SN-2", "SN-3"}
	_, err = svc.UpdateGoodsReceipt(context.Background(), result.Receipt.ID, update, uuid.New())
	require.NoError(t, err)
	require.Len(t, serialPort.batches, 2)
	require.Equal(t, []string{"SN-3"}, serialPort.batches[1].serials)
}

func TestUpdateGoodsReceiptUnchangedSerialsNotReRegistered(t *testing.T) {
	svc, repo, catalog, serialPort, _ := newTestService(t)
	productID := catalog.add(true, 0)
	po, err := svc.CreatePurchaseOrder(context.Background(), orderInput(productID, 2), uuid.New())
	require.NoError(t, err)
	repo.orders[po.ID].Status = POStatusApproved

	input := receiptInput(po, 2, GRNStatusDraft)
	input.Items[0].SerialNumbers = []string{"SN-1", "SN-2"}
	result, err := svc.CreateGoodsReceipt(context.Background(), input, uuid.New())
	require.NoError(t, err)

	update := receiptInput(po, 2, GRNStatusDraft)
	update.Items[0].SerialNumbers = []string{"SN-1", "SN-2"}
	_, err = svc.UpdateGoodsReceipt(context.Background(), result.Receipt.ID, update, uuid.New())
	require.NoError(t, err)
	require.Len(t, serialPort.batches, 1)
}

func TestCreateGoodsReceiptAgainstCancelledOrder(t *testing.T) {
	svc, repo, catalog, _, _ := newTestService(t)
	productID := catalog.add(false, 0)
	po, err := svc.CreatePurchaseOrder(context.Background(), orderInput(productID, 5), uuid.New())
	require.NoError(t, err)
	repo.orders[po.ID].Status = POStatusCancelled

	_, err = svc.CreateGoodsReceipt(context.Background(), receiptInput(po, 5, GRNStatusCompleted), uuid.New())
	require.ErrorIs(t, err, ErrInvalidState)
}
