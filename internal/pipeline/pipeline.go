package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"

	"stocktake/backend/internal/chunk"
	"stocktake/backend/internal/vectorstore"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	Upsert(ctx context.Context, entries []vectorstore.Entry) error
}

// ProgressReporter receives batch-level accounting; in production this is
// the processing coordinator.
type ProgressReporter interface {
	UpdateProgress(ctx context.Context, current, total int, message string) error
}

type Config struct {
	MaxChunkBytes int           // chunk budget, default 2000
	BatchSize     int           // chunks embedded concurrently, default 4
	BatchInterval time.Duration // minimum spacing between batches, default 2s
}

func DefaultConfig() Config {
	return Config{MaxChunkBytes: 2000, BatchSize: 4, BatchInterval: 2 * time.Second}
}

// Result reports ingestion accounting. ChunksProcessed < TotalChunks is a
// partial success: some chunks were dropped after their embeddings failed,
// but everything that embedded cleanly is in the store.
type Result struct {
	ChunksProcessed int `json:"chunks_processed"`
	TotalChunks     int `json:"total_chunks"`
}

// Service runs the chunk -> embed -> upsert pipeline. Batches are strictly
// sequential (rate-limit pressure, monotonic progress); only the embeds
// inside one batch fan out, onto a worker pool sized to the batch.
type Service struct {
	embedder Embedder
	store    VectorStore
	progress ProgressReporter
	pool     *ants.Pool
	limiter  *rate.Limiter
	cfg      Config
}

func NewService(embedder Embedder, store VectorStore, progress ProgressReporter, cfg Config) (*Service, error) {
	if cfg.MaxChunkBytes <= 0 {
		cfg.MaxChunkBytes = 2000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 4
	}
	if cfg.BatchInterval <= 0 {
		cfg.BatchInterval = 2 * time.Second
	}

	pool, err := ants.NewPool(cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	return &Service{
		embedder: embedder,
		store:    store,
		progress: progress,
		pool:     pool,
		limiter:  rate.NewLimiter(rate.Every(cfg.BatchInterval), 1),
		cfg:      cfg,
	}, nil
}

// Close releases the worker pool.
func (s *Service) Close() {
	s.pool.Release()
}

// Ingest chunks the payload, embeds each chunk, and upserts the results
// under ids derived from resourceID. A single chunk's embedding failure is
// counted and skipped; a store failure aborts the run.
func (s *Service) Ingest(ctx context.Context, resourceID, payload string) (Result, error) {
	chunks := chunk.Split(payload, s.cfg.MaxChunkBytes)
	total := len(chunks)
	res := Result{TotalChunks: total}

	s.report(ctx, 0, total, fmt.Sprintf("split payload into %d chunks", total))
	if total == 0 {
		return res, nil
	}

	for start := 0; start < total; start += s.cfg.BatchSize {
		if err := s.limiter.Wait(ctx); err != nil {
			return res, err
		}
		end := min(start+s.cfg.BatchSize, total)

		vectors := make([][]float32, end-start)
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			i := i
			wg.Add(1)
			task := func() {
				defer wg.Done()
				vec, err := s.embedder.Embed(ctx, chunks[i])
				if err != nil {
					slog.ErrorContext(ctx, "chunk embedding failed, skipping",
						"resource_id", resourceID, "chunk_index", i, "error", err)
					return
				}
				vectors[i-start] = vec
			}
			if err := s.pool.Submit(task); err != nil {
				// Pool refused the task (released or overloaded); run inline
				// rather than losing the chunk.
				task()
			}
		}
		wg.Wait()

		entries := make([]vectorstore.Entry, 0, end-start)
		for i := start; i < end; i++ {
			vec := vectors[i-start]
			if vec == nil {
				continue
			}
			entries = append(entries, vectorstore.Entry{
				ID:     fmt.Sprintf("%s-%d", resourceID, i),
				Vector: vec,
				Metadata: map[string]interface{}{
					"content":    chunks[i],
					"resourceId": resourceID,
					"chunkIndex": i,
				},
			})
		}

		if len(entries) > 0 {
			if err := s.store.Upsert(ctx, entries); err != nil {
				return res, fmt.Errorf("upsert batch at chunk %d: %w", start, err)
			}
			res.ChunksProcessed += len(entries)
		}

		s.report(ctx, res.ChunksProcessed, total,
			fmt.Sprintf("embedded %d of %d chunks", res.ChunksProcessed, total))
	}

	if res.ChunksProcessed < total {
		slog.WarnContext(ctx, "ingestion completed partially",
			"resource_id", resourceID, "processed", res.ChunksProcessed, "total", total)
	}
	return res, nil
}

// report treats progress persistence as observability: a failed write is
// logged, never fatal to the run.
func (s *Service) report(ctx context.Context, current, total int, message string) {
	if s.progress == nil {
		return
	}
	if err := s.progress.UpdateProgress(ctx, current, total, message); err != nil {
		slog.WarnContext(ctx, "progress update failed", "error", err)
	}
}
