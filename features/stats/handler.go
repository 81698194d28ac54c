package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"stocktake/backend/internal/middleware"
	"stocktake/backend/internal/status"
)

type JobRepo interface {
	Count(ctx context.Context) (int, error)
}

type ChunkCounter interface {
	Count(ctx context.Context) (int, error)
}

type StatusReader interface {
	GetStatus(ctx context.Context) (*status.ProcessingStatus, error)
}

type Handler struct {
	jobs   JobRepo
	chunks ChunkCounter
	status StatusReader
}

func NewHandler(j JobRepo, c ChunkCounter, s StatusReader) *Handler {
	return &Handler{jobs: j, chunks: c, status: s}
}

type StatsResponse struct {
	Chunks       int  `json:"chunks"`
	FailedJobs   int  `json:"failed_jobs"`
	IsProcessing bool `json:"is_processing"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	slog.InfoContext(ctx, "getting stats", "correlationId", correlationID)

	cCount, err := h.chunks.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count chunks", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count chunks", http.StatusInternalServerError)
		return
	}

	jCount, err := h.jobs.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count jobs", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count jobs", http.StatusInternalServerError)
		return
	}

	st, err := h.status.GetStatus(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read processing status", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to read processing status", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Chunks:       cCount,
		FailedJobs:   jCount,
		IsProcessing: st.IsProcessing,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
