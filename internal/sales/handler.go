package sales

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

// Handler exposes sale invoices over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers invoice endpoints on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{invoiceID}", h.get)
	r.Put("/{invoiceID}", h.update)
	r.Delete("/{invoiceID}", h.delete)
}

type itemRequest struct {
	ProductID     uuid.UUID `json:"productId" validate:"required"`
	Quantity      int       `json:"quantity" validate:"gt=0"`
	UnitPrice     float64   `json:"unitPrice" validate:"gte=0"`
	Discount      float64   `json:"discount" validate:"gte=0"`
	SerialNumbers []string  `json:"serialNumbers"`
}

type invoiceRequest struct {
	InvoiceNumber      string        `json:"invoiceNumber" validate:"required"`
	CustomerID         uuid.UUID     `json:"customerId" validate:"required"`
	Status             InvoiceStatus `json:"status"`
	InvoiceDate        time.Time     `json:"invoiceDate"`
	DueDate            time.Time     `json:"dueDate"`
	RoundingAdjustment float64       `json:"roundingAdjustment"`
	Notes              string        `json:"notes"`
	Items              []itemRequest `json:"items" validate:"dive"`
}

func (req invoiceRequest) toInput() InvoiceInput {
	input := InvoiceInput{
		InvoiceNumber:      req.InvoiceNumber,
		CustomerID:         req.CustomerID,
		Status:             req.Status,
		InvoiceDate:        req.InvoiceDate,
		DueDate:            req.DueDate,
		RoundingAdjustment: req.RoundingAdjustment,
		Notes:              req.Notes,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, InvoiceItemInput(item))
	}
	return input
}

type itemResponse struct {
	ID            uuid.UUID       `json:"id"`
	ProductID     uuid.UUID       `json:"productId"`
	Quantity      int             `json:"quantity"`
	UnitPrice     float64         `json:"unitPrice"`
	Discount      float64         `json:"discount"`
	TaxType       pricing.TaxType `json:"taxType"`
	TaxAmount     float64         `json:"taxAmount"`
	Total         float64         `json:"total"`
	SerialNumbers []string        `json:"serialNumbers,omitempty"`
}

type invoiceResponse struct {
	ID                 uuid.UUID      `json:"id"`
	InvoiceNumber      string         `json:"invoiceNumber"`
	CustomerID         uuid.UUID      `json:"customerId"`
	Status             InvoiceStatus  `json:"status"`
	InvoiceDate        time.Time      `json:"invoiceDate"`
	DueDate            time.Time      `json:"dueDate"`
	Subtotal           float64        `json:"subtotal"`
	DiscountAmount     float64        `json:"discountAmount"`
	TaxAmount          float64        `json:"taxAmount"`
	RoundingAdjustment float64        `json:"roundingAdjustment"`
	TotalAmount        float64        `json:"totalAmount"`
	Notes              string         `json:"notes,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
	Items              []itemResponse `json:"items,omitempty"`
	Warnings           []string       `json:"warnings,omitempty"`
}

func toInvoiceResponse(inv Invoice, warnings []string) invoiceResponse {
	resp := invoiceResponse{
		ID:                 inv.ID,
		InvoiceNumber:      inv.InvoiceNumber,
		CustomerID:         inv.CustomerID,
		Status:             inv.Status,
		InvoiceDate:        inv.InvoiceDate,
		DueDate:            inv.DueDate,
		Subtotal:           inv.Subtotal,
		DiscountAmount:     inv.DiscountAmount,
		TaxAmount:          inv.TaxAmount,
		RoundingAdjustment: inv.RoundingAdjustment,
		TotalAmount:        inv.TotalAmount,
		Notes:              inv.Notes,
		CreatedAt:          inv.CreatedAt,
		UpdatedAt:          inv.UpdatedAt,
		Warnings:           warnings,
	}
	for _, item := range inv.Items {
		resp.Items = append(resp.Items, itemResponse{
			ID:            item.ID,
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			Discount:      item.Discount,
			TaxType:       item.TaxType,
			TaxAmount:     item.TaxAmount,
			Total:         item.Total,
			SerialNumbers: item.SerialNumbers,
		})
	}
	return resp
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.service.ListInvoices(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]invoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, toInvoiceResponse(inv, nil))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": out})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.CreateInvoice(r.Context(), req.toInput(), shared.ActorID(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toInvoiceResponse(result.Invoice, result.Warnings))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	inv, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(inv, nil))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req invoiceRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.UpdateInvoice(r.Context(), id, req.toInput(), shared.ActorID(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(result.Invoice, result.Warnings))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteInvoice(r.Context(), id, shared.ActorID(r.Context())); err != nil {
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

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "invoiceID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, serials.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidInput), errors.Is(err, serials.ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidState), errors.Is(err, serials.ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("sales request failed", "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "internal server error")
	}
}
