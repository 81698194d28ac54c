package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"stocktake/backend/features/dataset"
	"stocktake/backend/features/job"
	"stocktake/backend/features/query"
	"stocktake/backend/features/stats"
	"stocktake/backend/internal/config"
	"stocktake/backend/internal/embed"
	"stocktake/backend/internal/middleware"
	"stocktake/backend/internal/pipeline"
	"stocktake/backend/internal/retrieval"
	"stocktake/backend/internal/settings"
	"stocktake/backend/internal/status"
	"stocktake/backend/internal/vectorstore"
	"stocktake/backend/internal/worker"
)

// VectorStore is everything the application needs from the vector backend.
type VectorStore interface {
	vectorstore.Store
	EnsureSchema(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type App struct {
	Handler        http.Handler
	Coordinator    *status.Coordinator
	Pipeline       *pipeline.Service
	IngestConsumer *worker.IngestConsumer

	port int
}

func New(
	cfg *config.Config,
	db *sql.DB,
	vecStore VectorStore,
	taskPub TaskPublisher,
	backend embed.Backend,
) (*App, error) {

	// Coordination
	statusRepo := status.NewPostgresRepo(db)
	coordinator := status.NewCoordinator(statusRepo, cfg.LockTTL(), cfg.ProcessingTimeout())

	// Feature: Settings
	settingsRepo := settings.NewPostgresRepo(db)
	settingsService := settings.NewService(settingsRepo)
	settingsHandler := settings.NewHandler(settingsService)

	// Embedding
	embedCfg := embed.Config{
		Dimension:  cfg.EmbeddingDimension,
		MaxRetries: cfg.EmbedRetryAttempts,
		RetryDelay: cfg.EmbedRetryDelay(),
	}
	embedder := embed.NewGenerator(backend, embedCfg)

	// Ingestion pipeline
	pipelineSvc, err := pipeline.NewService(embedder, vecStore, coordinator, pipeline.Config{
		MaxChunkBytes: cfg.ChunkMaxBytes,
		BatchSize:     cfg.BatchSize,
		BatchInterval: cfg.BatchInterval(),
	})
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}

	// Feature: Dataset
	datasetService := dataset.NewService(coordinator, taskPub, vecStore, dataset.Config{
		UploadDir:       cfg.UploadDir,
		DefaultResource: cfg.DefaultResource,
		Dimension:       cfg.EmbeddingDimension,
	})
	datasetHandler := dataset.NewHandler(datasetService, cfg.MaxUploadSizeMB)

	// Feature: Job
	jobRepo := job.NewPostgresRepo(db)
	jobService := job.NewService(jobRepo, taskPub)
	jobHandler := job.NewHandler(jobService)

	// Feature: Stats
	statsHandler := stats.NewHandler(jobRepo, vecStore, coordinator)

	// Feature: Query
	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}
	retrievalService := retrieval.NewService(embedder, vecStore, settingsService, queryLogger)
	queryHandler := query.NewHandler(retrievalService)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID, X-Correlation-ID")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /datasets/upload", middleware.CorrelationID(enableCORS(datasetHandler.Upload)))
	mux.Handle("GET /datasets/status", middleware.CorrelationID(enableCORS(datasetHandler.Status)))
	mux.Handle("DELETE /datasets", middleware.CorrelationID(enableCORS(datasetHandler.Clear)))

	mux.Handle("POST /query", middleware.CorrelationID(enableCORS(queryHandler.Query)))

	mux.Handle("GET /settings", middleware.CorrelationID(enableCORS(settingsHandler.GetSettings)))
	mux.Handle("PUT /settings", middleware.CorrelationID(enableCORS(settingsHandler.UpdateSettings)))

	mux.Handle("GET /jobs/failed", middleware.CorrelationID(enableCORS(jobHandler.List)))
	mux.Handle("POST /jobs/{id}/retry", middleware.CorrelationID(enableCORS(jobHandler.Retry)))

	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Worker
	ingestConsumer := worker.NewIngestConsumer(pipelineSvc, coordinator, jobService)

	port := cfg.ServerPort
	if port == 0 {
		port = 8081
	}

	return &App{
		Handler:        mux,
		Coordinator:    coordinator,
		Pipeline:       pipelineSvc,
		IngestConsumer: ingestConsumer,
		port:           port,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
