package serials

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/alsubhan/versal/internal/platform/httpx"
	"github.com/alsubhan/versal/internal/shared"
)

// Handler exposes the serial registry over HTTP.
type Handler struct {
	logger   *slog.Logger
	registry *Registry
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, registry *Registry) *Handler {
	return &Handler{logger: logger, registry: registry}
}

// MountRoutes registers serial endpoints on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/lookup", h.lookup)
	r.Post("/status", h.updateStatus)
	r.Post("/return", h.returnUnit)
	r.Post("/scrap", h.scrapUnit)
	r.Post("/release", h.releaseUnits)
}

type unitResponse struct {
	ID                uuid.UUID `json:"id"`
	ProductID         uuid.UUID `json:"productId"`
	SerialNumber      string    `json:"serialNumber"`
	Status            Status    `json:"status"`
	GRNItemID         string    `json:"grnItemId,omitempty"`
	SaleInvoiceItemID string    `json:"saleInvoiceItemId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func toUnitResponse(unit Unit) unitResponse {
	resp := unitResponse{
		ID:           unit.ID,
		ProductID:    unit.ProductID,
		SerialNumber: unit.SerialNumber,
		Status:       unit.Status,
		CreatedAt:    unit.CreatedAt,
		UpdatedAt:    unit.UpdatedAt,
	}
	if unit.GRNItemID != uuid.Nil {
		resp.GRNItemID = unit.GRNItemID.String()
	}
	if unit.SaleInvoiceItemID != uuid.Nil {
		resp.SaleInvoiceItemID = unit.SaleInvoiceItemID.String()
	}
	return resp
}

func toUnitResponses(units []Unit) []unitResponse {
	out := make([]unitResponse, 0, len(units))
	for _, unit := range units {
		out = append(out, toUnitResponse(unit))
	}
	return out
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := Filter{Status: Status(r.URL.Query().Get("status"))}
	if raw := r.URL.Query().Get("productId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid productId")
			return
		}
		filter.ProductID = id
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid limit")
			return
		}
		filter.Limit = limit
	}

	units, err := h.registry.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list serials failed", "error", err)
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": toUnitResponses(units)})
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) {
	units, err := h.registry.Lookup(r.Context(), r.URL.Query().Get("serialNumber"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": toUnitResponses(units)})
}

type statusRequest struct {
	ProductID    uuid.UUID `json:"productId"`
	SerialNumber string    `json:"serialNumber"`
	Status       Status    `json:"status"`
	Notes        string    `json:"notes"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if req.ProductID == uuid.Nil || !req.Status.Valid() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "productId and a valid status are required")
		return
	}
	unit, err := h.registry.UpdateStatus(r.Context(), req.ProductID, req.SerialNumber, req.Status, req.Notes, shared.ActorID(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toUnitResponse(unit))
}

type serialActionRequest struct {
	ProductID    uuid.UUID `json:"productId"`
	SerialNumber string    `json:"serialNumber"`
	Notes        string    `json:"notes"`
}

func (h *Handler) returnUnit(w http.ResponseWriter, r *http.Request) {
	h.applyAction(w, r, h.registry.Return)
}

func (h *Handler) scrapUnit(w http.ResponseWriter, r *http.Request) {
	h.applyAction(w, r, h.registry.Scrap)
}

func (h *Handler) applyAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, productID uuid.UUID, serialNumber, notes string, actor uuid.UUID) (Unit, error)) {
	var req serialActionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if req.ProductID == uuid.Nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "productId is required")
		return
	}
	unit, err := action(r.Context(), req.ProductID, req.SerialNumber, req.Notes, shared.ActorID(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toUnitResponse(unit))
}

type releaseRequest struct {
	ProductID     uuid.UUID `json:"productId"`
	SerialNumbers []string  `json:"serialNumbers"`
	ClaimID       uuid.UUID `json:"claimId"`
}

func (h *Handler) releaseUnits(w http.ResponseWriter, r *http.Request) {
	var req releaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if req.ProductID == uuid.Nil || len(req.SerialNumbers) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "productId and serialNumbers are required")
		return
	}
	result, err := h.registry.Release(r.Context(), req.ProductID, req.SerialNumbers, req.ClaimID, shared.ActorID(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"released": result.SerialNumbers,
		"warnings": result.Warnings,
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("serials request failed", "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "internal server error")
	}
}
