package products

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/alsubhan/versal/internal/pricing"
	"github.com/alsubhan/versal/internal/platform/httpx"
)

// Handler wires catalog endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers product routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/{productID}", h.handleGet)
}

type productResponse struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	SKUCode         string          `json:"skuCode"`
	HSNCode         string          `json:"hsnCode"`
	EANCode         string          `json:"eanCode"`
	IsSerialized    bool            `json:"isSerialized"`
	UnitPrice       float64         `json:"unitPrice"`
	CostPrice       float64         `json:"costPrice"`
	PurchaseTaxType pricing.TaxType `json:"purchaseTaxType"`
	SaleTaxType     pricing.TaxType `json:"saleTaxType"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list products", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	out := make([]productResponse, 0, len(items))
	for _, p := range items {
		out = append(out, toProductResponse(p))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "product not found")
			return
		}
		h.logger.Error("get product", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, toProductResponse(product))
}

func toProductResponse(p Product) productResponse {
	return productResponse{
		ID:              p.ID,
		Name:            p.Name,
		SKUCode:         p.SKUCode,
		HSNCode:         p.HSNCode,
		EANCode:         p.EANCode,
		IsSerialized:    p.IsSerialized,
		UnitPrice:       p.UnitPrice,
		CostPrice:       p.CostPrice,
		PurchaseTaxType: p.PurchaseTaxType.Normalize(),
		SaleTaxType:     p.SaleTaxType.Normalize(),
	}
}
