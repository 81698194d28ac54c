package vectorstore

import "context"

// Entry is one vector bound for the store, keyed by a deterministic chunk id
// (resourceId + "-" + index) so re-ingestion overwrites instead of duplicating.
type Entry struct {
	ID       string
	Vector   []float32
	Metadata map[string]interface{}
}

// Match is one ranked query result.
type Match struct {
	ID       string
	Score    float32
	Metadata map[string]interface{}
}

// Store is the contract over an external similarity-search service. The
// backend has no native list API, so "enumerate everything" is expressed as
// a zero-vector query with a large topK.
type Store interface {
	Upsert(ctx context.Context, entries []Entry) error
	Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]Match, error)
	Delete(ctx context.Context, ids []string) error
	// DescribeDimension reports the width of stored vectors, 0 when the
	// store holds no data.
	DescribeDimension(ctx context.Context) (int, error)
	// Reset drops and recreates the index. Mixed-dimension vectors must
	// never coexist, so this is the remedy for a dimension mismatch.
	Reset(ctx context.Context) error
}
