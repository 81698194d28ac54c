package embed

import (
	"errors"
	"strings"
)

// ErrEmbeddingFailed wraps the final backend error once the retry budget is
// exhausted or a non-retryable error occurs.
var ErrEmbeddingFailed = errors.New("embedding generation failed")

var rateLimitMarkers = []string{
	"429",
	"rate limit",
	"too many requests",
	"resource exhausted",
}

// IsRateLimit reports whether an error belongs to the rate-limit class.
// Embedding backends surface these inconsistently (status code, gRPC code,
// message text), so classification matches on message substrings.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
