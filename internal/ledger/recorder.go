package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// RepositoryPort abstracts persistence for the recorder.
type RepositoryPort interface {
	Insert(ctx context.Context, entry Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
}

// Recorder appends entries to the ledger. Writes triggered by business
// operations are best-effort: the primary operation must not fail because
// its audit entry could not be stored.
type Recorder struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewRecorder constructs a Recorder.
func NewRecorder(repo RepositoryPort, logger *slog.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

// Record inserts one entry and returns any persistence error.
func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	if entry.ProductID == uuid.Nil || entry.Type == "" || entry.QuantityChange == 0 {
		return fmt.Errorf("%w: product, type and quantity change required", ErrInvalidEntry)
	}
	return r.repo.Insert(ctx, entry)
}

// TryRecord inserts one entry, logging and swallowing failure. It returns
// false when the entry was not stored so callers can surface a warning.
func (r *Recorder) TryRecord(ctx context.Context, entry Entry) bool {
	if err := r.Record(ctx, entry); err != nil {
		if r.logger != nil {
			r.logger.Warn("ledger entry not recorded",
				slog.String("product_id", entry.ProductID.String()),
				slog.String("type", string(entry.Type)),
				slog.Int("quantity_change", entry.QuantityChange),
				slog.Any("error", err))
		}
		return false
	}
	return true
}

// List returns entries matching the filter, newest first.
func (r *Recorder) List(ctx context.Context, filter Filter) ([]Entry, error) {
	return r.repo.List(ctx, filter)
}
