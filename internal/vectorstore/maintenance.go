package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// PurgeOptions bounds the query-then-delete loop of Purge.
type PurgeOptions struct {
	Dimension   int           // width of the zero vector used to enumerate ids
	QueryBatch  int           // ids fetched per round, default 1000
	DeleteBatch int           // ids deleted per call, default 100
	Delay       time.Duration // pause between rounds, default 200ms
}

func (o *PurgeOptions) defaults() {
	if o.QueryBatch <= 0 {
		o.QueryBatch = 1000
	}
	if o.DeleteBatch <= 0 {
		o.DeleteBatch = 100
	}
	if o.Delay <= 0 {
		o.Delay = 200 * time.Millisecond
	}
}

// Purge deletes every vector in the store in bounded batches: query up to
// QueryBatch ids with a zero vector, delete them DeleteBatch at a time, and
// stop once a query returns fewer results than requested. The inter-round
// delay keeps the backend's rate limiter quiet. Returns the number of
// vectors deleted.
func Purge(ctx context.Context, store Store, opts PurgeOptions) (int, error) {
	opts.defaults()
	zero := make([]float32, opts.Dimension)
	deleted := 0

	for round := 0; ; round++ {
		if round > 0 {
			timer := time.NewTimer(opts.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return deleted, ctx.Err()
			case <-timer.C:
			}
		}

		matches, err := store.Query(ctx, zero, opts.QueryBatch, false)
		if err != nil {
			return deleted, fmt.Errorf("purge query: %w", err)
		}
		if len(matches) == 0 {
			return deleted, nil
		}

		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.ID
		}
		for start := 0; start < len(ids); start += opts.DeleteBatch {
			end := min(start+opts.DeleteBatch, len(ids))
			if err := store.Delete(ctx, ids[start:end]); err != nil {
				return deleted, fmt.Errorf("purge delete: %w", err)
			}
			deleted += end - start
		}
		slog.InfoContext(ctx, "purged vector batch", "round", round+1, "deleted", deleted)

		if len(matches) < opts.QueryBatch {
			return deleted, nil
		}
	}
}

// EnsureDimension resets the store when its reported dimension disagrees
// with the required one. A reported dimension of 0 means the store is empty
// and any width can be written safely.
func EnsureDimension(ctx context.Context, store Store, dimension int) error {
	actual, err := store.DescribeDimension(ctx)
	if err != nil {
		return fmt.Errorf("describe dimension: %w", err)
	}
	if actual == 0 || actual == dimension {
		return nil
	}
	slog.WarnContext(ctx, "vector dimension mismatch, resetting index",
		"stored", actual, "required", dimension)
	if err := store.Reset(ctx); err != nil {
		return fmt.Errorf("reset index: %w", err)
	}
	return nil
}
