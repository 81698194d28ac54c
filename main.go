package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"stocktake/backend/internal/adapter/gemini"
	"stocktake/backend/internal/app"
	"stocktake/backend/internal/config"
	"stocktake/backend/internal/logger"

	"github.com/nsqio/go-nsq"
)

func main() {
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("application exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer deps.DB.Close()
	defer deps.NSQProducer.Stop()

	embedder, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel)
	if err != nil {
		return fmt.Errorf("create embedding client: %w", err)
	}
	defer embedder.Close()

	a, err := app.New(cfg, deps.DB, deps.VectorStore, deps.NSQProducer, embedder)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	defer a.Pipeline.Close()

	if cfg.EnableWorker {
		consumer, err := nsq.NewConsumer(config.TopicIngestTask, config.ChannelIngest, nsq.NewConfig())
		if err != nil {
			return fmt.Errorf("create ingest consumer: %w", err)
		}
		defer consumer.Stop()

		consumer.AddHandler(a.IngestConsumer)
		if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
			return fmt.Errorf("connect to nsqlookupd: %w", err)
		}
		slog.Info("ingest consumer connected", "topic", config.TopicIngestTask, "channel", config.ChannelIngest)
	}

	if !cfg.EnableAPI {
		slog.Info("api disabled, running worker only")
		<-ctx.Done()
		return nil
	}

	return a.Run(ctx)
}
