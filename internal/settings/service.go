package settings

import (
	"context"
	"fmt"
	"regexp"
)

// Defaults for the singleton row; the widen pattern matches product-code
// style tokens such as "AB-1042" or "SKU12345".
const (
	DefaultSearchTopK      = 5
	DefaultWidenPattern    = `\b[A-Z]{2,}[-_]?\d{2,}\b`
	DefaultWidenMultiplier = 3
)

var DefaultWidenKeywords = []string{"where", "location", "aisle", "shelf", "stock", "quantity", "how many"}

// Settings tunes retrieval at runtime. The widen heuristic is configuration
// data, not code: a query matching WidenPattern that also mentions one of
// WidenKeywords gets its top-K multiplied by WidenMultiplier.
type Settings struct {
	ID              int      `json:"-"`
	SearchTopK      int      `json:"search_top_k"`
	WidenPattern    string   `json:"widen_pattern"`
	WidenKeywords   []string `json:"widen_keywords"`
	WidenMultiplier int      `json:"widen_multiplier"`
}

func Default() *Settings {
	return &Settings{
		SearchTopK:      DefaultSearchTopK,
		WidenPattern:    DefaultWidenPattern,
		WidenKeywords:   DefaultWidenKeywords,
		WidenMultiplier: DefaultWidenMultiplier,
	}
}

type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, s *Settings) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context) (*Settings, error) {
	return s.repo.Get(ctx)
}

func (s *Service) Update(ctx context.Context, set *Settings) error {
	if err := set.Validate(); err != nil {
		return err
	}
	return s.repo.Update(ctx, set)
}

func (s *Settings) Validate() error {
	if s.SearchTopK < 1 {
		return fmt.Errorf("search_top_k must be at least 1, got %d", s.SearchTopK)
	}
	if s.WidenMultiplier < 1 {
		return fmt.Errorf("widen_multiplier must be at least 1, got %d", s.WidenMultiplier)
	}
	if _, err := regexp.Compile(s.WidenPattern); err != nil {
		return fmt.Errorf("widen_pattern is not a valid regexp: %w", err)
	}
	return nil
}
