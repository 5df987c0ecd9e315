// Package jobs holds background task definitions and the Asynq worker
// wiring.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/alsubhan/versal/internal/sales"
	"github.com/alsubhan/versal/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInvoiceOverdueScan flips past-due invoices to overdue.
	TaskInvoiceOverdueScan = "sales:overdue_scan"
	// TaskIdempotencyCleanup prunes old idempotency keys.
	TaskIdempotencyCleanup = "shared:idempotency_cleanup"
)

// OverdueScanPayload carries scheduling metadata.
type OverdueScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewOverdueScanTask constructs the overdue scan task.
func NewOverdueScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(OverdueScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceOverdueScan, body, asynq.Queue(QueueDefault)), nil
}

// OverdueScanJob runs the invoice overdue scan.
type OverdueScanJob struct {
	service *sales.Service
	logger  *slog.Logger
}

// NewOverdueScanJob constructs the job.
func NewOverdueScanJob(service *sales.Service, logger *slog.Logger) *OverdueScanJob {
	return &OverdueScanJob{service: service, logger: logger}
}

// Handle processes TaskInvoiceOverdueScan tasks.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload OverdueScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	count, err := j.service.ScanOverdue(ctx, time.Now())
	if err != nil {
		j.logger.Error("overdue scan failed", "error", err)
		return err
	}
	j.logger.Info("overdue scan finished", "marked", count)
	return nil
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskIdempotencyCleanup, nil, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupJob prunes idempotency keys older than the retention
// window.
type IdempotencyCleanupJob struct {
	store     *shared.IdempotencyStore
	retention time.Duration
	logger    *slog.Logger
}

// NewIdempotencyCleanupJob constructs the job.
func NewIdempotencyCleanupJob(store *shared.IdempotencyStore, retention time.Duration, logger *slog.Logger) *IdempotencyCleanupJob {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &IdempotencyCleanupJob{store: store, retention: retention, logger: logger}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if err := j.store.Cleanup(ctx, j.retention); err != nil {
		j.logger.Error("idempotency cleanup failed", "error", err)
		return err
	}
	return nil
}
