package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stocktake/backend/internal/settings"
	"stocktake/backend/internal/vectorstore"
)

type stubEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	return s.vector, s.err
}

type stubSearcher struct {
	matches []vectorstore.Match
	err     error
	lastK   int
}

func (s *stubSearcher) Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]vectorstore.Match, error) {
	s.lastK = topK
	return s.matches, s.err
}

type stubSettings struct {
	settings *settings.Settings
	err      error
}

func (s *stubSettings) Get(ctx context.Context) (*settings.Settings, error) {
	return s.settings, s.err
}

func newService(embedder *stubEmbedder, searcher *stubSearcher, set *stubSettings) *Service {
	if set == nil {
		set = &stubSettings{settings: settings.Default()}
	}
	return NewService(embedder, searcher, set, nil)
}

func TestRetrieve(t *testing.T) {
	t.Run("Maps Matches To Context Items", func(t *testing.T) {
		searcher := &stubSearcher{matches: []vectorstore.Match{
			{ID: "inventory-data-0", Score: 0.92, Metadata: map[string]interface{}{"content": "Record 1:\nsku: AB-100", "chunkIndex": float64(0)}},
			{ID: "inventory-data-3", Score: 0.71, Metadata: map[string]interface{}{"content": "Record 4:\nsku: CD-200"}},
		}}
		svc := newService(&stubEmbedder{vector: []float32{0.1, 0.2}}, searcher, nil)

		items, err := svc.Retrieve(context.Background(), "what is AB-100", 2)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "inventory-data-0", items[0].ID)
		assert.Equal(t, "Record 1:\nsku: AB-100", items[0].Content)
		assert.InDelta(t, 0.92, items[0].Score, 0.001)
		assert.Equal(t, float64(0), items[0].Metadata["chunkIndex"])
	})

	t.Run("Defaults TopK From Settings", func(t *testing.T) {
		searcher := &stubSearcher{}
		svc := newService(&stubEmbedder{vector: []float32{0.1}}, searcher, nil)

		_, err := svc.Retrieve(context.Background(), "anything interesting in stock?", 0)
		require.NoError(t, err)
		assert.Equal(t, settings.DefaultSearchTopK, searcher.lastK)
	})

	t.Run("Widens Structured Code Query", func(t *testing.T) {
		searcher := &stubSearcher{}
		svc := newService(&stubEmbedder{vector: []float32{0.1}}, searcher, nil)

		_, err := svc.Retrieve(context.Background(), "where is SKU-1234 located?", 5)
		require.NoError(t, err)
		assert.Equal(t, 5*settings.DefaultWidenMultiplier, searcher.lastK)
	})

	t.Run("Does Not Widen Without Keyword", func(t *testing.T) {
		searcher := &stubSearcher{}
		svc := newService(&stubEmbedder{vector: []float32{0.1}}, searcher, nil)

		_, err := svc.Retrieve(context.Background(), "tell me about SKU-1234", 5)
		require.NoError(t, err)
		assert.Equal(t, 5, searcher.lastK)
	})

	t.Run("Does Not Widen Without Code Token", func(t *testing.T) {
		searcher := &stubSearcher{}
		svc := newService(&stubEmbedder{vector: []float32{0.1}}, searcher, nil)

		_, err := svc.Retrieve(context.Background(), "where are the hammers?", 5)
		require.NoError(t, err)
		assert.Equal(t, 5, searcher.lastK)
	})

	t.Run("Falls Back To Defaults When Settings Unavailable", func(t *testing.T) {
		searcher := &stubSearcher{}
		set := &stubSettings{err: errors.New("db down")}
		svc := newService(&stubEmbedder{vector: []float32{0.1}}, searcher, set)

		_, err := svc.Retrieve(context.Background(), "how many widgets", 0)
		require.NoError(t, err)
		assert.Equal(t, settings.DefaultSearchTopK, searcher.lastK)
	})

	t.Run("Embed Failure Aborts", func(t *testing.T) {
		svc := newService(&stubEmbedder{err: errors.New("quota exceeded")}, &stubSearcher{}, nil)

		_, err := svc.Retrieve(context.Background(), "anything", 3)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "embed query")
	})

	t.Run("Store Failure Aborts", func(t *testing.T) {
		searcher := &stubSearcher{err: errors.New("connection refused")}
		svc := newService(&stubEmbedder{vector: []float32{0.1}}, searcher, nil)

		_, err := svc.Retrieve(context.Background(), "anything", 3)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "query vector store")
	})

	t.Run("Empty Store Returns Empty Slice", func(t *testing.T) {
		svc := newService(&stubEmbedder{vector: []float32{0.1}}, &stubSearcher{}, nil)

		items, err := svc.Retrieve(context.Background(), "anything", 3)
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}

func TestShouldWiden_InvalidPattern(t *testing.T) {
	set := settings.Default()
	set.WidenPattern = "(["
	svc := newService(&stubEmbedder{vector: []float32{0.1}}, &stubSearcher{}, &stubSettings{settings: set})

	assert.False(t, svc.shouldWiden(context.Background(), "where is SKU-1234", set))
}

func TestCompiledPattern_RecompilesOnChange(t *testing.T) {
	svc := newService(&stubEmbedder{}, &stubSearcher{}, nil)
	ctx := context.Background()

	first := svc.compiledPattern(ctx, `\d+`)
	require.NotNil(t, first)
	assert.Same(t, first, svc.compiledPattern(ctx, `\d+`))

	second := svc.compiledPattern(ctx, `[a-z]+`)
	require.NotNil(t, second)
	assert.NotSame(t, first, second)
}
