package procurement

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/alsubhan/versal/internal/platform/httpx"
	"github.com/alsubhan/versal/internal/pricing"
	"github.com/alsubhan/versal/internal/serials"
	"github.com/alsubhan/versal/internal/shared"
)

// Handler exposes procurement over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountOrderRoutes registers purchase order endpoints.
func (h *Handler) MountOrderRoutes(r chi.Router) {
	r.Get("/", h.listOrders)
	r.Post("/", h.createOrder)
	r.Get("/{orderID}", h.getOrder)
	r.Put("/{orderID}", h.updateOrder)
	r.Delete("/{orderID}", h.deleteOrder)
	r.Post("/{orderID}/reconcile", h.reconcileOrder)
}

// MountReceiptRoutes registers goods receipt endpoints.
func (h *Handler) MountReceiptRoutes(r chi.Router) {
	r.Get("/", h.listReceipts)
	r.Post("/", h.createReceipt)
	r.Get("/{grnID}", h.getReceipt)
	r.Put("/{grnID}", h.updateReceipt)
	r.Delete("/{grnID}", h.deleteReceipt)
}

type orderItemRequest struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"gt=0"`
	UnitCost  float64   `json:"unitCost" validate:"gte=0"`
	Discount  float64   `json:"discount" validate:"gte=0"`
}

type orderRequest struct {
	OrderNumber        string             `json:"orderNumber" validate:"required"`
	SupplierID         uuid.UUID          `json:"supplierId" validate:"required"`
	Status             POStatus           `json:"status"`
	OrderDate          time.Time          `json:"orderDate"`
	ExpectedDate       time.Time          `json:"expectedDate"`
	RoundingAdjustment float64            `json:"roundingAdjustment"`
	Notes              string             `json:"notes"`
	Items              []orderItemRequest `json:"items" validate:"dive"`
}

func (req orderRequest) toInput() PurchaseOrderInput {
	input := PurchaseOrderInput{
		OrderNumber:        req.OrderNumber,
		SupplierID:         req.SupplierID,
		Status:             req.Status,
		OrderDate:          req.OrderDate,
		ExpectedDate:       req.ExpectedDate,
		RoundingAdjustment: req.RoundingAdjustment,
		Notes:              req.Notes,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, PurchaseOrderItemInput(item))
	}
	return input
}

type orderItemResponse struct {
	ID               uuid.UUID       `json:"id"`
	ProductID        uuid.UUID       `json:"productId"`
	Quantity         int             `json:"quantity"`
	ReceivedQuantity int             `json:"receivedQuantity"`
	UnitCost         float64         `json:"unitCost"`
	Discount         float64         `json:"discount"`
	TaxType          pricing.TaxType `json:"taxType"`
	TaxAmount        float64         `json:"taxAmount"`
	Total            float64         `json:"total"`
}

type orderResponse struct {
	ID                 uuid.UUID           `json:"id"`
	OrderNumber        string              `json:"orderNumber"`
	SupplierID         uuid.UUID           `json:"supplierId"`
	Status             POStatus            `json:"status"`
	OrderDate          time.Time           `json:"orderDate"`
	ExpectedDate       time.Time           `json:"expectedDate"`
	Subtotal           float64             `json:"subtotal"`
	DiscountAmount     float64             `json:"discountAmount"`
	TaxAmount          float64             `json:"taxAmount"`
	RoundingAdjustment float64             `json:"roundingAdjustment"`
	TotalAmount        float64             `json:"totalAmount"`
	Notes              string              `json:"notes,omitempty"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
	Items              []orderItemResponse `json:"items,omitempty"`
}

func toOrderResponse(po PurchaseOrder) orderResponse {
	resp := orderResponse{
		ID:                 po.ID,
		OrderNumber:        po.OrderNumber,
		SupplierID:         po.SupplierID,
		Status:             po.Status,
		OrderDate:          po.OrderDate,
		ExpectedDate:       po.ExpectedDate,
		Subtotal:           po.Subtotal,
		DiscountAmount:     po.DiscountAmount,
		TaxAmount:          po.TaxAmount,
		RoundingAdjustment: po.RoundingAdjustment,
		TotalAmount:        po.TotalAmount,
		Notes:              po.Notes,
		CreatedAt:          po.CreatedAt,
		UpdatedAt:          po.UpdatedAt,
	}
	for _, item := range po.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ID:               item.ID,
			ProductID:        item.ProductID,
			Quantity:         item.Quantity,
			ReceivedQuantity: item.ReceivedQuantity,
			UnitCost:         item.UnitCost,
			Discount:         item.Discount,
			TaxType:          item.TaxType,
			TaxAmount:        item.TaxAmount,
			Total:            item.Total,
		})
	}
	return resp
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListPurchaseOrders(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, po := range orders {
		out = append(out, toOrderResponse(po))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": out})
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if !h.decode(w, r, &req) {
		return
	}
	po, err := h.service.CreatePurchaseOrder(r.Context(), req.toInput(), shared.ActorID(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toOrderResponse(po))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "orderID")
	if !ok {
		return
	}
	po, err := h.service.GetPurchaseOrder(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(po))
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "orderID")
	if !ok {
		return
	}
	var req orderRequest
	if !h.decode(w, r, &req) {
		return
	}
	po, err := h.service.UpdatePurchaseOrder(r.Context(), id, req.toInput(), shared.ActorID(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(po))
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "orderID")
	if !ok {
		return
	}
	if err := h.service.DeletePurchaseOrder(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) reconcileOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "orderID")
	if !ok {
		return
	}
	status, err := h.service.Reconcile(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": status})
}

type receiptItemRequest struct {
	PurchaseOrderItemID uuid.UUID `json:"purchaseOrderItemId"`
	ProductID           uuid.UUID `json:"productId" validate:"required"`
	OrderedQuantity     int       `json:"orderedQuantity" validate:"gte=0"`
	ReceivedQuantity    int       `json:"receivedQuantity" validate:"gte=0"`
	RejectedQuantity    int       `json:"rejectedQuantity" validate:"gte=0"`
	UnitCost            float64   `json:"unitCost" validate:"gte=0"`
	Discount            float64   `json:"discount" validate:"gte=0"`
	SerialNumbers       []string  `json:"serialNumbers"`
}

type receiptRequest struct {
	GRNNumber           string               `json:"grnNumber" validate:"required"`
	PurchaseOrderID     uuid.UUID            `json:"purchaseOrderId"`
	SupplierID          uuid.UUID            `json:"supplierId"`
	Status              GRNStatus            `json:"status"`
	ReceivedDate        time.Time            `json:"receivedDate"`
	VendorInvoiceNumber string               `json:"vendorInvoiceNumber"`
	RoundingAdjustment  float64              `json:"roundingAdjustment"`
	Notes               string               `json:"notes"`
	Items               []receiptItemRequest `json:"items" validate:"dive"`
}

func (req receiptRequest) toInput() GoodsReceiptInput {
	input := GoodsReceiptInput{
		GRNNumber:           req.GRNNumber,
		PurchaseOrderID:     req.PurchaseOrderID,
		SupplierID:          req.SupplierID,
		Status:              req.Status,
		ReceivedDate:        req.ReceivedDate,
		VendorInvoiceNumber: req.VendorInvoiceNumber,
		RoundingAdjustment:  req.RoundingAdjustment,
		Notes:               req.Notes,
	}
	for _, item := range req.Items {
		in := GoodsReceiptItemInput(item)
		in.SerialNumbers = splitSerials(item.SerialNumbers)
		input.Items = append(input.Items, in)
	}
	return input
}

// splitSerials expands free-form entries: clients send serials either as a
// JSON array or as comma/newline separated strings inside one.
func splitSerials(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		out = append(out, serials.ParseSerialNumbers(s)...)
	}
	return out
}

type receiptItemResponse struct {
	ID                  uuid.UUID       `json:"id"`
	PurchaseOrderItemID string          `json:"purchaseOrderItemId,omitempty"`
	ProductID           uuid.UUID       `json:"productId"`
	OrderedQuantity     int             `json:"orderedQuantity"`
	ReceivedQuantity    int             `json:"receivedQuantity"`
	AcceptedQuantity    int             `json:"acceptedQuantity"`
	RejectedQuantity    int             `json:"rejectedQuantity"`
	UnitCost            float64         `json:"unitCost"`
	Discount            float64         `json:"discount"`
	TaxType             pricing.TaxType `json:"taxType"`
	TaxAmount           float64         `json:"taxAmount"`
	Total               float64         `json:"total"`
	SerialNumbers       []string        `json:"serialNumbers,omitempty"`
}

type receiptResponse struct {
	ID                  uuid.UUID             `json:"id"`
	GRNNumber           string                `json:"grnNumber"`
	PurchaseOrderID     uuid.UUID             `json:"purchaseOrderId"`
	SupplierID          uuid.UUID             `json:"supplierId"`
	Status              GRNStatus             `json:"status"`
	ReceivedDate        time.Time             `json:"receivedDate"`
	VendorInvoiceNumber string                `json:"vendorInvoiceNumber,omitempty"`
	Subtotal            float64               `json:"subtotal"`
	DiscountAmount      float64               `json:"discountAmount"`
	TaxAmount           float64               `json:"taxAmount"`
	RoundingAdjustment  float64               `json:"roundingAdjustment"`
	TotalAmount         float64               `json:"totalAmount"`
	Notes               string                `json:"notes,omitempty"`
	CreatedAt           time.Time             `json:"createdAt"`
	UpdatedAt           time.Time             `json:"updatedAt"`
	Items               []receiptItemResponse `json:"items,omitempty"`
	Warnings            []string              `json:"warnings,omitempty"`
}

func toReceiptResponse(grn GoodsReceipt, warnings []string) receiptResponse {
	resp := receiptResponse{
		ID:                  grn.ID,
		GRNNumber:           grn.GRNNumber,
		PurchaseOrderID:     grn.PurchaseOrderID,
		SupplierID:          grn.SupplierID,
		Status:              grn.Status,
		ReceivedDate:        grn.ReceivedDate,
		VendorInvoiceNumber: grn.VendorInvoiceNumber,
		Subtotal:            grn.Subtotal,
		DiscountAmount:      grn.DiscountAmount,
		TaxAmount:           grn.TaxAmount,
		RoundingAdjustment:  grn.RoundingAdjustment,
		TotalAmount:         grn.TotalAmount,
		Notes:               grn.Notes,
		CreatedAt:           grn.CreatedAt,
		UpdatedAt:           grn.UpdatedAt,
		Warnings:            warnings,
	}
	for _, item := range grn.Items {
		out := receiptItemResponse{
			ID:               item.ID,
			ProductID:        item.ProductID,
			OrderedQuantity:  item.OrderedQuantity,
			ReceivedQuantity: item.ReceivedQuantity,
			AcceptedQuantity: item.AcceptedQuantity,
			RejectedQuantity: item.RejectedQuantity,
			UnitCost:         item.UnitCost,
			Discount:         item.Discount,
			TaxType:          item.TaxType,
			TaxAmount:        item.TaxAmount,
			Total:            item.Total,
			SerialNumbers:    item.SerialNumbers,
		}
		if item.PurchaseOrderItemID != uuid.Nil {
			out.PurchaseOrderItemID = item.PurchaseOrderItemID.String()
		}
		resp.Items = append(resp.Items, out)
	}
	return resp
}

func (h *Handler) listReceipts(w http.ResponseWriter, r *http.Request) {
	var poID uuid.UUID
	if raw := r.URL.Query().Get("purchaseOrderId"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid purchaseOrderId")
			return
		}
		poID = parsed
	}
	receipts, err := h.service.ListGoodsReceipts(r.Context(), poID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]receiptResponse, 0, len(receipts))
	for _, grn := range receipts {
		out = append(out, toReceiptResponse(grn, nil))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": out})
}

func (h *Handler) createReceipt(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.CreateGoodsReceipt(r.Context(), req.toInput(), shared.ActorID(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toReceiptResponse(result.Receipt, result.Warnings))
}

func (h *Handler) getReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "grnID")
	if !ok {
		return
	}
	grn, err := h.service.GetGoodsReceipt(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReceiptResponse(grn, nil))
}

func (h *Handler) updateReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "grnID")
	if !ok {
		return
	}
	var req receiptRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.UpdateGoodsReceipt(r.Context(), id, req.toInput(), shared.ActorID(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReceiptResponse(result.Receipt, result.Warnings))
}

func (h *Handler) deleteReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "grnID")
	if !ok {
		return
	}
	if err := h.service.DeleteGoodsReceipt(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("procurement request failed", "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "internal server error")
	}
}
