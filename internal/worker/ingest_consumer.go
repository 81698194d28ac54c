package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nsqio/go-nsq"

	"stocktake/backend/internal/middleware"
	"stocktake/backend/internal/status"
)

const IngestHandlerName = "ingest-worker"

// IngestConsumer drains ingest.task messages: it loads the uploaded file,
// runs the chunk/embed/upsert pipeline, and keeps the processing status
// record honest on both the success and failure paths.
type IngestConsumer struct {
	pipeline    Ingester
	coordinator Coordinator
	jobs        FailedJobRecorder
}

func NewIngestConsumer(p Ingester, c Coordinator, jobs FailedJobRecorder) *IngestConsumer {
	return &IngestConsumer{pipeline: p, coordinator: c, jobs: jobs}
}

func (h *IngestConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var task IngestTask
	if err := json.Unmarshal(m.Body, &task); err != nil {
		// Poison pill: invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}

	ctx := context.Background()
	if task.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, task.CorrelationID)
	}

	if err := h.process(ctx, task); err != nil {
		slog.ErrorContext(ctx, "ingestion failed",
			"resource_id", task.ResourceID, "file", task.FilePath, "error", err)
		// On lock contention another writer owns the slot; touching the
		// status record here would clobber their run.
		if !errors.Is(err, status.ErrLockHeld) {
			if setErr := h.coordinator.SetError(ctx, err.Error()); setErr != nil {
				slog.ErrorContext(ctx, "failed to record processing error", "error", setErr)
			}
		}
		h.recordFailure(ctx, task, m.Body, err)
		// The run is terminal; a blind NSQ redelivery would race the next
		// upload for the processing slot.
		return nil
	}
	return nil
}

func (h *IngestConsumer) process(ctx context.Context, task IngestTask) error {
	userID := task.UserID
	if userID == "" {
		userID = "anonymous"
	}

	// The upload handler already holds the lock for this user, so Start
	// succeeds through own-lock reacquisition.
	if err := h.coordinator.Start(ctx, userID); err != nil {
		return fmt.Errorf("start processing: %w", err)
	}

	payload, err := os.ReadFile(filepath.Clean(task.FilePath))
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	result, err := h.pipeline.Ingest(ctx, task.ResourceID, string(payload))
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	if err := h.coordinator.End(ctx); err != nil {
		return fmt.Errorf("end processing: %w", err)
	}

	slog.InfoContext(ctx, "ingestion complete",
		"resource_id", task.ResourceID,
		"chunks_processed", result.ChunksProcessed,
		"total_chunks", result.TotalChunks)

	if err := os.Remove(task.FilePath); err != nil {
		slog.WarnContext(ctx, "failed to remove processed upload", "file", task.FilePath, "error", err)
	}
	return nil
}

func (h *IngestConsumer) recordFailure(ctx context.Context, task IngestTask, body []byte, jobErr error) {
	if h.jobs == nil {
		return
	}
	if err := h.jobs.Record(ctx, task.ResourceID, IngestHandlerName, body, jobErr); err != nil {
		slog.ErrorContext(ctx, "failed to record failed job", "error", err)
	}
}
