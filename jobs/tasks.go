package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRenderDocumentPDF prerenders a document PDF into the cache.
	TaskRenderDocumentPDF = "pdf:render"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// RenderDocumentPayload identifies the document version to render.
type RenderDocumentPayload struct {
	DocumentID string `json:"document_id"`
	UpdatedAt  int64  `json:"updated_at"`
}

// NewRenderDocumentTask constructs an Asynq task for PDF prerendering.
func NewRenderDocumentTask(payload RenderDocumentPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRenderDocumentPDF, data), nil
}

// NewIdempotencyCleanupTask constructs the maintenance task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}
