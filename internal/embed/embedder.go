package embed

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Backend is the raw embedding model call. The vector it returns is not
// guaranteed to match the store's dimension.
type Backend interface {
	EmbedContent(ctx context.Context, text string) ([]float32, error)
}

// TraceHook observes every successfully generated vector before dimension
// reconciliation. Intended for offline debugging; the default is nil (no-op).
type TraceHook func(text string, vector []float32)

// Config tunes retry behavior and the target dimension.
type Config struct {
	Dimension  int           // required width of every returned vector
	MaxRetries int           // attempts beyond the first call
	RetryDelay time.Duration // initial backoff delay, doubled per retry
}

func DefaultConfig(dimension int) Config {
	return Config{
		Dimension:  dimension,
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

// Generator produces store-ready vectors: it calls the backend, retries
// rate-limit failures with exponential backoff, and reconciles the native
// width to the configured dimension. All other errors fail fast.
type Generator struct {
	backend Backend
	cfg     Config
	trace   TraceHook
}

func NewGenerator(backend Backend, cfg Config) *Generator {
	if cfg.Dimension <= 0 {
		cfg.Dimension = 1536
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Generator{backend: backend, cfg: cfg}
}

// WithTraceHook sets the vector observation hook and returns the generator.
func (g *Generator) WithTraceHook(hook TraceHook) *Generator {
	g.trace = hook
	return g
}

func (g *Generator) Dimension() int {
	return g.cfg.Dimension
}

func (g *Generator) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	delay := g.cfg.RetryDelay

	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.WarnContext(ctx, "embedding rate limited, backing off",
				"attempt", attempt, "max_retries", g.cfg.MaxRetries, "delay", delay)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			delay *= 2
		}

		vec, err := g.backend.EmbedContent(ctx, text)
		if err == nil {
			if g.trace != nil {
				g.trace(text, vec)
			}
			return ReconcileDimensions(vec, g.cfg.Dimension), nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !IsRateLimit(err) {
			return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
		}
	}

	return nil, fmt.Errorf("%w after %d retries: %w", ErrEmbeddingFailed, g.cfg.MaxRetries, lastErr)
}
