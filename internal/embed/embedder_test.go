package embed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	calls    int
	failures int   // fail the first N calls
	failWith error // error used for those failures
	width    int   // native vector width on success
}

func (s *stubBackend) EmbedContent(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, s.failWith
	}
	vec := make([]float32, s.width)
	for i := range vec {
		vec[i] = 0.5
	}
	return vec, nil
}

func TestGenerator_DimensionReconciliation(t *testing.T) {
	const target = 8
	tests := []struct {
		name        string
		nativeWidth int
	}{
		{"Native Half", target / 2},
		{"Native Exact", target},
		{"Native Double", target * 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &stubBackend{width: tt.nativeWidth}
			gen := NewGenerator(backend, Config{Dimension: target, MaxRetries: 0, RetryDelay: time.Millisecond})

			vec, err := gen.Embed(context.Background(), "hello")
			require.NoError(t, err)
			require.Len(t, vec, target)

			for i := 0; i < min(tt.nativeWidth, target); i++ {
				assert.Equal(t, float32(0.5), vec[i])
			}
			for i := tt.nativeWidth; i < target; i++ {
				assert.Equal(t, float32(0), vec[i], "tail must be zero-padded")
			}
		})
	}
}

func TestGenerator_RetryOnRateLimit(t *testing.T) {
	t.Run("Succeeds On Third Attempt", func(t *testing.T) {
		backend := &stubBackend{
			failures: 2,
			failWith: errors.New("google: rate limit exceeded (429)"),
			width:    4,
		}
		gen := NewGenerator(backend, Config{Dimension: 4, MaxRetries: 3, RetryDelay: 20 * time.Millisecond})

		start := time.Now()
		vec, err := gen.Embed(context.Background(), "hello")
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.Len(t, vec, 4)
		assert.Equal(t, 3, backend.calls)
		// First two backoff delays: 20ms + 40ms.
		assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
	})

	t.Run("Exhausts Budget", func(t *testing.T) {
		backend := &stubBackend{
			failures: 10,
			failWith: errors.New("too many requests"),
			width:    4,
		}
		gen := NewGenerator(backend, Config{Dimension: 4, MaxRetries: 2, RetryDelay: time.Millisecond})

		_, err := gen.Embed(context.Background(), "hello")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmbeddingFailed)
		assert.Equal(t, 3, backend.calls) // initial + 2 retries
	})

	t.Run("Permanent Error Fails Fast", func(t *testing.T) {
		backend := &stubBackend{
			failures: 10,
			failWith: errors.New("401 invalid api key"),
			width:    4,
		}
		gen := NewGenerator(backend, Config{Dimension: 4, MaxRetries: 5, RetryDelay: time.Millisecond})

		_, err := gen.Embed(context.Background(), "hello")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmbeddingFailed)
		assert.Equal(t, 1, backend.calls)
	})

	t.Run("Context Cancelled During Backoff", func(t *testing.T) {
		backend := &stubBackend{
			failures: 10,
			failWith: errors.New("429"),
			width:    4,
		}
		gen := NewGenerator(backend, Config{Dimension: 4, MaxRetries: 5, RetryDelay: time.Hour})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := gen.Embed(ctx, "hello")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestGenerator_TraceHook(t *testing.T) {
	backend := &stubBackend{width: 16}
	var observedText string
	var observedWidth int

	gen := NewGenerator(backend, Config{Dimension: 8, MaxRetries: 0, RetryDelay: time.Millisecond}).
		WithTraceHook(func(text string, vec []float32) {
			observedText = text
			observedWidth = len(vec)
		})

	_, err := gen.Embed(context.Background(), "trace me")
	require.NoError(t, err)
	assert.Equal(t, "trace me", observedText)
	assert.Equal(t, 16, observedWidth, "hook sees the native vector, pre-reconciliation")
}

func TestIsRateLimit(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("429 Too Many Requests"), true},
		{errors.New("Rate Limit hit"), true},
		{errors.New("RESOURCE EXHAUSTED"), true},
		{errors.New("500 internal"), false},
		{errors.New("401 unauthorized"), false},
		{nil, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRateLimit(tt.err), "%v", tt.err)
	}
}

func TestReconcileDimensions(t *testing.T) {
	t.Run("Truncate", func(t *testing.T) {
		out := ReconcileDimensions([]float32{1, 2, 3, 4}, 2)
		assert.Equal(t, []float32{1, 2}, out)
	})
	t.Run("Zero Pad", func(t *testing.T) {
		out := ReconcileDimensions([]float32{1, 2}, 4)
		assert.Equal(t, []float32{1, 2, 0, 0}, out)
	})
	t.Run("Exact", func(t *testing.T) {
		in := []float32{1, 2, 3}
		out := ReconcileDimensions(in, 3)
		assert.Equal(t, in, out)
	})
	t.Run("Does Not Mutate Input", func(t *testing.T) {
		in := []float32{1, 2, 3, 4}
		_ = ReconcileDimensions(in, 2)
		assert.Equal(t, []float32{1, 2, 3, 4}, in)
	})
	t.Run("Nil Input", func(t *testing.T) {
		assert.Equal(t, []float32{0, 0}, ReconcileDimensions(nil, 2))
	})
	t.Run("Invalid Target", func(t *testing.T) {
		assert.Nil(t, ReconcileDimensions([]float32{1}, 0))
	})
}
