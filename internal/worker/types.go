package worker

import (
	"context"

	"stocktake/backend/internal/pipeline"
	"stocktake/backend/internal/status"
)

// IngestTask is the queue payload for one file ingestion run. FilePath points
// at the already-saved upload on local disk.
type IngestTask struct {
	ResourceID    string `json:"resource_id"`
	FilePath      string `json:"file_path"`
	UserID        string `json:"user_id"`
	CorrelationID string `json:"correlation_id"`
}

type Ingester interface {
	Ingest(ctx context.Context, resourceID, payload string) (pipeline.Result, error)
}

type Coordinator interface {
	Start(ctx context.Context, userID string) error
	End(ctx context.Context) error
	SetError(ctx context.Context, message string) error
}

type FailedJobRecorder interface {
	Record(ctx context.Context, resourceID, handler string, payload []byte, jobErr error) error
}

var _ Coordinator = (*status.Coordinator)(nil)
