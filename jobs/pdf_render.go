package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/voyagedesk/voyagedesk/internal/documents"
	"github.com/voyagedesk/voyagedesk/internal/pdfexport"
	"github.com/voyagedesk/voyagedesk/internal/shared"
)

// PDFRenderJob prerenders document PDFs so the first download hits cache.
type PDFRenderJob struct {
	Documents   *documents.Service
	Exporter    *pdfexport.Exporter
	Idempotency *shared.IdempotencyStore
	Logger      *slog.Logger
}

// NewPDFRenderJob wires dependencies for the prerender handler.
func NewPDFRenderJob(docs *documents.Service, exporter *pdfexport.Exporter, idem *shared.IdempotencyStore, logger *slog.Logger) *PDFRenderJob {
	return &PDFRenderJob{Documents: docs, Exporter: exporter, Idempotency: idem, Logger: logger}
}

// Handle processes TaskRenderDocumentPDF tasks. A document updated since the
// task was enqueued is skipped; the newer version gets its own task.
func (j *PDFRenderJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("pdf render: handler not configured")
	}
	var payload RenderDocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	id, err := uuid.Parse(payload.DocumentID)
	if err != nil {
		return asynq.SkipRetry
	}

	doc, err := j.Documents.Get(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return err
	}
	if doc.UpdatedAt.UnixNano() != payload.UpdatedAt {
		j.logger().Info("skipping stale prerender", slog.String("document", doc.Number))
		return nil
	}

	key := renderDedupeKey(payload)
	if j.Idempotency != nil {
		if err := j.Idempotency.CheckAndInsert(ctx, key, "jobs.pdf_render"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return nil
			}
			return err
		}
	}

	if _, err := j.Exporter.Export(ctx, doc); err != nil {
		if j.Idempotency != nil {
			_ = j.Idempotency.Delete(ctx, key)
		}
		return err
	}
	j.logger().Info("prerendered document pdf", slog.String("document", doc.Number))
	return nil
}

// IdempotencyCleanupJob prunes old idempotency keys on a schedule.
type IdempotencyCleanupJob struct {
	Store     *shared.IdempotencyStore
	Logger    *slog.Logger
	Retention time.Duration
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	retention := j.Retention
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	removed, err := j.Store.Cleanup(ctx, retention)
	if err != nil {
		return err
	}
	if j.Logger != nil {
		j.Logger.Info("idempotency keys cleaned", slog.Int64("removed", removed), slog.Duration("retention", retention))
	}
	return nil
}

// renderDedupeKey scopes the idempotency claim to one document version.
func renderDedupeKey(payload RenderDocumentPayload) string {
	return fmt.Sprintf("pdf-render:%s:%d", payload.DocumentID, payload.UpdatedAt)
}

func (j *PDFRenderJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
