package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"stocktake/backend/internal/settings"
	"stocktake/backend/internal/vectorstore"
)

// ContextItem is one ranked piece of retrieved context. Metadata carries
// resourceId/chunkIndex for provenance display.
type ContextItem struct {
	ID       string                 `json:"id"`
	Content  string                 `json:"content"`
	Score    float32                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Searcher interface {
	Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]vectorstore.Match, error)
}

type SettingsService interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

// Service embeds a question and fetches nearest-neighbor context. The widen
// heuristic is driven entirely by settings data so it can be tuned without
// touching this code.
type Service struct {
	embedder Embedder
	store    Searcher
	settings SettingsService
	logger   *QueryLogger

	mu         sync.Mutex
	widenRegex *regexp.Regexp
	widenSrc   string
}

func NewService(e Embedder, s Searcher, set SettingsService, l *QueryLogger) *Service {
	return &Service{embedder: e, store: s, settings: set, logger: l}
}

// Retrieve returns up to k context items ranked by similarity. k <= 0 falls
// back to the configured top-K. An empty result is a valid outcome; an
// embedding failure is not, so callers can tell "no data" apart from
// "retrieval infrastructure down".
func (s *Service) Retrieve(ctx context.Context, query string, k int) ([]ContextItem, error) {
	start := time.Now()

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		slog.WarnContext(ctx, "settings unavailable, using defaults", "error", err)
		cfg = settings.Default()
	}

	if k <= 0 {
		k = cfg.SearchTopK
	}
	widened := false
	if s.shouldWiden(ctx, query, cfg) {
		k *= cfg.WidenMultiplier
		widened = true
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := s.store.Query(ctx, vec, k, true)
	if err != nil {
		return nil, fmt.Errorf("query vector store: %w", err)
	}

	items := make([]ContextItem, 0, len(matches))
	for _, m := range matches {
		item := ContextItem{ID: m.ID, Score: m.Score, Metadata: m.Metadata}
		if content, ok := m.Metadata["content"].(string); ok {
			item.Content = content
		}
		items = append(items, item)
	}

	if s.logger != nil {
		s.logger.Log(QueryLogEntry{
			Query:      query,
			TopK:       k,
			Widened:    widened,
			NumResults: len(items),
			Duration:   time.Since(start),
		})
	}
	return items, nil
}

// shouldWiden reports whether the query looks like a structured-code lookup:
// it contains a product-code token and a locational/quantity keyword.
func (s *Service) shouldWiden(ctx context.Context, query string, cfg *settings.Settings) bool {
	re := s.compiledPattern(ctx, cfg.WidenPattern)
	if re == nil || !re.MatchString(query) {
		return false
	}
	lower := strings.ToLower(query)
	for _, kw := range cfg.WidenKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// compiledPattern caches the compiled widen regex, keyed by its source, so
// settings changes take effect without restarting.
func (s *Service) compiledPattern(ctx context.Context, pattern string) *regexp.Regexp {
	if pattern == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.widenSrc == pattern && s.widenRegex != nil {
		return s.widenRegex
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		slog.WarnContext(ctx, "invalid widen pattern, heuristic disabled", "pattern", pattern, "error", err)
		return nil
	}
	s.widenSrc = pattern
	s.widenRegex = re
	return re
}
