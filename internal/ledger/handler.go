package ledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/alsubhan/versal/internal/platform/httpx"
)

// Handler exposes read access to the inventory transaction ledger.
type Handler struct {
	logger   *slog.Logger
	recorder *Recorder
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, recorder *Recorder) *Handler {
	return &Handler{logger: logger, recorder: recorder}
}

// MountRoutes registers ledger endpoints on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
}

type entryResponse struct {
	ID             uuid.UUID `json:"id"`
	ProductID      uuid.UUID `json:"productId"`
	Type           EntryType `json:"transactionType"`
	QuantityChange int       `json:"quantityChange"`
	ReferenceType  string    `json:"referenceType,omitempty"`
	ReferenceID    string    `json:"referenceId,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	CreatedBy      string    `json:"createdBy,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := Filter{
		Type: EntryType(r.URL.Query().Get("transactionType")),
	}
	if raw := r.URL.Query().Get("productId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid productId")
			return
		}
		filter.ProductID = id
	}
	if raw := r.URL.Query().Get("referenceId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid referenceId")
			return
		}
		filter.ReferenceID = id
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid limit")
			return
		}
		filter.Limit = limit
	}

	entries, err := h.recorder.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list inventory transactions failed", "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "internal server error")
		return
	}

	out := make([]entryResponse, 0, len(entries))
	for _, entry := range entries {
		resp := entryResponse{
			ID:             entry.ID,
			ProductID:      entry.ProductID,
			Type:           entry.Type,
			QuantityChange: entry.QuantityChange,
			ReferenceType:  string(entry.ReferenceType),
			Notes:          entry.Notes,
			CreatedAt:      entry.CreatedAt,
		}
		if entry.ReferenceID != uuid.Nil {
			resp.ReferenceID = entry.ReferenceID.String()
		}
		if entry.CreatedBy != uuid.Nil {
			resp.CreatedBy = entry.CreatedBy.String()
		}
		out = append(out, resp)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": out})
}
