package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"stocktake/backend/internal/config"
	"stocktake/backend/internal/middleware"
	"stocktake/backend/internal/status"
	"stocktake/backend/internal/vectorstore"
	"stocktake/backend/internal/worker"
)

// ErrBusy signals that an ingestion run holds the processing slot.
var ErrBusy = errors.New("another upload is being processed")

type Coordinator interface {
	TryAcquireLock(ctx context.Context, userID string) (bool, error)
	GetStatus(ctx context.Context) (*status.ProcessingStatus, error)
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// UploadReceipt is returned to the client once the file is queued.
type UploadReceipt struct {
	ResourceID string `json:"resource_id"`
	Filename   string `json:"filename"`
	SizeBytes  int64  `json:"size_bytes"`
}

type Config struct {
	UploadDir       string
	DefaultResource string
	Dimension       int
}

// Service owns the dataset lifecycle: accepting an upload and queueing its
// ingestion, exposing run status, and clearing the vector store.
type Service struct {
	coordinator Coordinator
	pub         EventPublisher
	store       vectorstore.Store
	cfg         Config
}

func NewService(coordinator Coordinator, pub EventPublisher, store vectorstore.Store, cfg Config) *Service {
	if cfg.UploadDir == "" {
		cfg.UploadDir = "./uploads"
	}
	if cfg.DefaultResource == "" {
		cfg.DefaultResource = "inventory-data"
	}
	return &Service{coordinator: coordinator, pub: pub, store: store, cfg: cfg}
}

// Upload claims the processing slot for userID, persists the file, and
// queues the ingestion task. The slot stays claimed until the worker
// finishes the run; a concurrent caller gets ErrBusy.
func (s *Service) Upload(ctx context.Context, userID, filename string, file io.Reader) (*UploadReceipt, error) {
	ok, err := s.coordinator.TryAcquireLock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrBusy
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}

	stored := fmt.Sprintf("%s_%s", uuid.New().String(), filepath.Base(filename))
	path := filepath.Clean(filepath.Join(s.cfg.UploadDir, stored))

	dst, err := os.Create(path) // #nosec G304 -- path is constructed from UUID + sanitized basename, not user-controlled
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	size, err := io.Copy(dst, file)
	if err != nil {
		if removeErr := os.Remove(path); removeErr != nil {
			slog.WarnContext(ctx, "failed to clean up upload", "path", path, "error", removeErr)
		}
		return nil, fmt.Errorf("write upload file: %w", err)
	}

	task := worker.IngestTask{
		ResourceID:    s.cfg.DefaultResource,
		FilePath:      path,
		UserID:        userID,
		CorrelationID: middleware.GetCorrelationID(ctx),
	}
	body, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("marshal task: %w", err)
	}
	if err := s.pub.Publish(config.TopicIngestTask, body); err != nil {
		if removeErr := os.Remove(path); removeErr != nil {
			slog.WarnContext(ctx, "failed to clean up upload", "path", path, "error", removeErr)
		}
		return nil, fmt.Errorf("publish ingest task: %w", err)
	}

	slog.InfoContext(ctx, "upload queued",
		"resource_id", task.ResourceID, "file", path, "user_id", userID, "size_bytes", size)

	return &UploadReceipt{
		ResourceID: task.ResourceID,
		Filename:   filepath.Base(filename),
		SizeBytes:  size,
	}, nil
}

func (s *Service) Status(ctx context.Context) (*status.ProcessingStatus, error) {
	return s.coordinator.GetStatus(ctx)
}

// Clear purges every stored chunk. Refused while an ingestion run is active
// so the purge cannot race the writer.
func (s *Service) Clear(ctx context.Context) (int, error) {
	st, err := s.coordinator.GetStatus(ctx)
	if err != nil {
		return 0, fmt.Errorf("read status: %w", err)
	}
	if st.IsProcessing {
		return 0, ErrBusy
	}

	deleted, err := vectorstore.Purge(ctx, s.store, vectorstore.PurgeOptions{Dimension: s.cfg.Dimension})
	if err != nil {
		return deleted, fmt.Errorf("purge vectors: %w", err)
	}

	slog.InfoContext(ctx, "vector store cleared", "deleted", deleted)
	return deleted, nil
}
